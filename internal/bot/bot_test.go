package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lovespark.app/admin/internal/common"
	"lovespark.app/admin/internal/config"
	"lovespark.app/admin/internal/features/admin"
	"lovespark.app/admin/internal/features/coins"
)

const (
	adminID  int64 = 100
	password       = "s3cret"
)

func TestParseCommand(t *testing.T) {
	p := NewCommandParser()

	tests := []struct {
		text  string
		cmd   string
		args  []string
		isCmd bool
	}{
		{"/help", "help", nil, true},
		{"  /COINS 42 -10 штраф  ", "coins", []string{"42", "-10", "штраф"}, true},
		{"!txs 42", "txs", []string{"42"}, true},
		{".balance 7", "balance", []string{"7"}, true},
		{"/buy@LoveSparkAdminBot 7 1", "buy", []string{"7", "1"}, true},
		{"привет", "", nil, false},
		{"/", "", nil, false},
		{"", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			cmd, args, ok := p.ParseCommand(tt.text)
			assert.Equal(t, tt.isCmd, ok)
			assert.Equal(t, tt.cmd, cmd)
			assert.Equal(t, tt.args, args)
		})
	}
}

type sentMessage struct {
	chatID int64
	text   string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeSender) SendMessage(_ context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{chatID: params.ChatID.ID, text: params.Text})
	return &telego.Message{}, nil
}

func (f *fakeSender) last(t *testing.T) sentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// sessionStore — хранилище сессий в памяти.
type sessionStore struct {
	mu       sync.Mutex
	sessions []*admin.Session
}

func (s *sessionStore) CreateSession(_ context.Context, sess *admin.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.ID = int64(len(s.sessions) + 1)
	sess.IsActive = true
	s.sessions = append(s.sessions, sess)
	return nil
}

func (s *sessionStore) GetActiveSession(_ context.Context, subject string, now time.Time) (*admin.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.Subject == subject && sess.IsActive && sess.ExpiresAt.After(now) {
			return sess, nil
		}
	}
	return nil, common.ErrUnauthorized
}

func (s *sessionStore) GetSessionByToken(context.Context, string, time.Time) (*admin.Session, error) {
	return nil, common.ErrUnauthorized
}

func (s *sessionStore) DeactivateSessions(_ context.Context, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.Subject == subject {
			sess.IsActive = false
		}
	}
	return nil
}

func (s *sessionStore) UpdateActivity(context.Context, int64, time.Time) error { return nil }

func (s *sessionStore) LogAttempt(context.Context, string, bool, time.Time) error { return nil }

func (s *sessionStore) CountFailedAttempts(context.Context, string, time.Time) (int, error) {
	return 0, nil
}

// summaryStore отдаёт только сводку; остальное консоли в этих тестах не нужно.
type summaryStore struct{}

func (summaryStore) InUserTx(context.Context, int64, func(coins.LedgerTx) error) error {
	return common.ErrUserNotFound
}

func (summaryStore) Get(context.Context, int64) (*coins.Transaction, error) {
	return nil, common.ErrTransactionNotFound
}

func (summaryStore) List(context.Context, coins.ListFilter, common.Paging) ([]*coins.Transaction, int, error) {
	return nil, 0, nil
}

func (summaryStore) Summary(_ context.Context, userID int64) (*coins.Summary, error) {
	if userID != 42 {
		return nil, common.ErrUserNotFound
	}
	return &coins.Summary{UserID: userID, Balance: 150, TotalCredited: 200, TotalDebited: 50, Count: 3}, nil
}

func (summaryStore) Mismatches(context.Context) ([]coins.Mismatch, error) { return nil, nil }

func newTestBot(t *testing.T, rateLimit int) (*Bot, *fakeSender) {
	t.Helper()
	hash, err := admin.HashPassword(password)
	require.NoError(t, err)

	cfg := &config.Config{
		AdminIDs:               []int64{adminID},
		AdminPasswordHash:      hash,
		AdminSessionTTL:        time.Hour,
		AdminMaxLoginAttempts:  3,
		LedgerMaxRetries:       1,
		PaginationDefaultLimit: 20,
		PaginationMaxLimit:     100,
		RateLimitRequests:      rateLimit,
		RateLimitWindow:        time.Minute,
		BotMaxInflight:         4,
	}

	adminSvc := admin.NewService(&sessionStore{}, nil, cfg)
	coinsSvc := coins.NewService(summaryStore{}, nil, cfg)

	sender := &fakeSender{}
	b := newBot(sender, cfg, admin.NewHandler(adminSvc), coins.NewHandler(coinsSvc, time.UTC), nil)
	t.Cleanup(b.rateLimiter.Close)
	return b, sender
}

func privateMessage(from int64, text string) telego.Update {
	return telego.Update{Message: &telego.Message{
		From: &telego.User{ID: from, Username: "tester"},
		Chat: telego.Chat{ID: from, Type: telego.ChatTypePrivate},
		Text: text,
	}}
}

func TestHandleUpdate_IgnoresStrangers(t *testing.T) {
	b, sender := newTestBot(t, 10)
	ctx := context.Background()

	b.handleUpdate(ctx, privateMessage(555, "/help"))

	group := privateMessage(adminID, "/help")
	group.Message.Chat = telego.Chat{ID: -1001, Type: telego.ChatTypeSupergroup}
	b.handleUpdate(ctx, group)

	b.handleUpdate(ctx, telego.Update{})

	assert.Zero(t, sender.count())
}

func TestHandleUpdate_LoginFlow(t *testing.T) {
	b, sender := newTestBot(t, 20)
	ctx := context.Background()

	b.handleUpdate(ctx, privateMessage(adminID, "/help"))
	assert.Equal(t, helpText, sender.last(t).text)
	assert.Equal(t, adminID, sender.last(t).chatID)

	b.handleUpdate(ctx, privateMessage(adminID, "/balance 42"))
	assert.Equal(t, "🔒 Сначала войдите: /login", sender.last(t).text)

	b.handleUpdate(ctx, privateMessage(adminID, "/login"))
	assert.Contains(t, sender.last(t).text, "Введите пароль")

	b.handleUpdate(ctx, privateMessage(adminID, password))
	assert.Contains(t, sender.last(t).text, "Аутентификация успешна")

	b.handleUpdate(ctx, privateMessage(adminID, "/balance 42"))
	assert.Contains(t, sender.last(t).text, "Баланс пользователя 42")

	b.handleUpdate(ctx, privateMessage(adminID, "/balance 9"))
	assert.Equal(t, "❌ пользователь не найден", sender.last(t).text)

	b.handleUpdate(ctx, privateMessage(adminID, "/unknown"))
	assert.Contains(t, sender.last(t).text, "Неизвестная команда")

	b.handleUpdate(ctx, privateMessage(adminID, "/logout"))
	assert.Equal(t, "👋 Сессия завершена", sender.last(t).text)

	b.handleUpdate(ctx, privateMessage(adminID, "/txs 42"))
	assert.Equal(t, "🔒 Сначала войдите: /login", sender.last(t).text)
}

func TestHandleUpdate_PlainTextWithoutPendingLogin(t *testing.T) {
	b, sender := newTestBot(t, 10)

	b.handleUpdate(context.Background(), privateMessage(adminID, "просто текст"))
	assert.Zero(t, sender.count())
}

func TestHandleUpdate_RateLimited(t *testing.T) {
	b, sender := newTestBot(t, 2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		b.handleUpdate(ctx, privateMessage(adminID, "/help"))
	}
	assert.Equal(t, 2, sender.count())
}

func TestHandleUpdate_RecoversFromPanic(t *testing.T) {
	b, sender := newTestBot(t, 10)
	ctx := context.Background()

	b.handleUpdate(ctx, privateMessage(adminID, "/login "+password))
	require.Contains(t, sender.last(t).text, "успешна")

	// Обработчик премиума не подключён: паника должна быть перехвачена
	assert.NotPanics(t, func() {
		b.handleUpdate(ctx, privateMessage(adminID, "/packages"))
	})
}
