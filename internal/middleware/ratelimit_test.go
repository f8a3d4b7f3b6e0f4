package middleware

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Close()

	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	assert.True(t, rl.Allow("tg:1"))
	assert.True(t, rl.Allow("tg:1"))
	assert.False(t, rl.Allow("tg:1"))

	// Отдельный лимит на ключ
	assert.True(t, rl.Allow("web:10.0.0.1"))

	mu.Lock()
	now = now.Add(61 * time.Second)
	mu.Unlock()
	assert.True(t, rl.Allow("tg:1"))
}

func TestRecoverFromPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		defer RecoverFromPanic("test")
		panic("boom")
	})
}
