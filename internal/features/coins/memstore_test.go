package coins

import (
	"context"
	"sort"
	"sync"

	"lovespark.app/admin/internal/common"
)

// memStore — хранилище в памяти с той же семантикой InUserTx, что и
// PostgreSQL: блокировка на пользователя, изменения видны только после
// успешного завершения fn.
type memStore struct {
	mu       sync.Mutex
	userLock map[int64]*sync.Mutex
	balances map[int64]int64
	txs      map[int64]*Transaction
	nextID   int64

	// failNext — сколько следующих InUserTx вернуть с конфликтом блокировок
	failNext int
}

func newMemStore(userIDs ...int64) *memStore {
	s := &memStore{
		userLock: map[int64]*sync.Mutex{},
		balances: map[int64]int64{},
		txs:      map[int64]*Transaction{},
	}
	for _, id := range userIDs {
		s.userLock[id] = &sync.Mutex{}
		s.balances[id] = 0
	}
	return s
}

func (s *memStore) InUserTx(ctx context.Context, userID int64, fn func(tx LedgerTx) error) error {
	s.mu.Lock()
	if s.failNext > 0 {
		s.failNext--
		s.mu.Unlock()
		return common.ErrConcurrentModification
	}
	lock, ok := s.userLock[userID]
	s.mu.Unlock()
	if !ok {
		return common.ErrUserNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	tx := &memTx{store: s, userID: userID, balance: s.balances[userID], deleted: map[int64]bool{}}
	s.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}

	// commit
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] = tx.balance
	for _, t := range tx.inserted {
		s.nextID++
		t.ID = s.nextID
		cp := *t
		s.txs[t.ID] = &cp
	}
	for id := range tx.deleted {
		delete(s.txs, id)
	}
	return nil
}

func (s *memStore) Get(_ context.Context, id int64) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txs[id]
	if !ok {
		return nil, common.ErrTransactionNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) List(_ context.Context, f ListFilter, p common.Paging) ([]*Transaction, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*Transaction
	for _, t := range s.txs {
		if f.UserID != nil && t.UserID != *f.UserID {
			continue
		}
		if f.Type != nil && t.Type != *f.Type {
			continue
		}
		if f.ReferenceType != nil && (t.ReferenceType == nil || *t.ReferenceType != *f.ReferenceType) {
			continue
		}
		if f.PackageID != nil && (t.PackageID == nil || *t.PackageID != *f.PackageID) {
			continue
		}
		cp := *t
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	from, to := p.Window(len(all))
	return all[from:to], len(all), nil
}

func (s *memStore) Summary(_ context.Context, userID int64) (*Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bal, ok := s.balances[userID]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	sum := &Summary{UserID: userID, Balance: bal}
	for _, t := range s.txs {
		if t.UserID != userID {
			continue
		}
		sum.Count++
		if t.Amount > 0 {
			sum.TotalCredited += t.Amount
		} else {
			sum.TotalDebited -= t.Amount
		}
	}
	return sum, nil
}

func (s *memStore) Mismatches(_ context.Context) ([]Mismatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Mismatch
	for userID, bal := range s.balances {
		if sum := s.ledgerSumLocked(userID); sum != bal {
			out = append(out, Mismatch{UserID: userID, Balance: bal, LedgerSum: sum})
		}
	}
	return out, nil
}

func (s *memStore) balance(userID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[userID]
}

func (s *memStore) ledgerSum(userID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledgerSumLocked(userID)
}

func (s *memStore) ledgerSumLocked(userID int64) int64 {
	var sum int64
	for _, t := range s.txs {
		if t.UserID == userID {
			sum += t.Amount
		}
	}
	return sum
}

// memTx копит изменения до фиксации.
type memTx struct {
	store    *memStore
	userID   int64
	balance  int64
	inserted []*Transaction
	deleted  map[int64]bool
}

func (t *memTx) Balance(context.Context) (int64, error) { return t.balance, nil }

func (t *memTx) SetBalance(_ context.Context, coins int64) error {
	t.balance = coins
	return nil
}

func (t *memTx) Insert(_ context.Context, tr *Transaction) error {
	t.inserted = append(t.inserted, tr)
	return nil
}

func (t *memTx) GetForUpdate(_ context.Context, id int64) (*Transaction, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	tr, ok := t.store.txs[id]
	if !ok || tr.UserID != t.userID || t.deleted[id] {
		return nil, common.ErrTransactionNotFound
	}
	cp := *tr
	return &cp, nil
}

func (t *memTx) Delete(_ context.Context, id int64) error {
	t.deleted[id] = true
	return nil
}
