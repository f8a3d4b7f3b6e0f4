package premium

import (
	"context"
	"sort"
	"sync"
	"time"

	"lovespark.app/admin/internal/common"
)

// memStore — хранилище в памяти: блокировка на пользователя и
// копия подписок, фиксируемая только при успехе fn.
type memStore struct {
	mu       sync.Mutex
	userLock map[int64]*sync.Mutex
	premium  map[int64]bool
	packages map[int64]*Package
	subs     map[int64]*Subscription
	nextID   int64
	now      func() time.Time
}

func newMemStore(now func() time.Time, userIDs ...int64) *memStore {
	s := &memStore{
		userLock: map[int64]*sync.Mutex{},
		premium:  map[int64]bool{},
		packages: map[int64]*Package{},
		subs:     map[int64]*Subscription{},
		now:      now,
	}
	for _, id := range userIDs {
		s.userLock[id] = &sync.Mutex{}
	}
	return s
}

func (s *memStore) addPackage(p *Package) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packages[p.ID] = p
}

func (s *memStore) InUserTx(_ context.Context, userID int64, fn func(tx SubTx) error) error {
	s.mu.Lock()
	lock, ok := s.userLock[userID]
	s.mu.Unlock()
	if !ok {
		return common.ErrUserNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	tx := &memTx{store: s, userID: userID, premium: s.premium[userID], subs: map[int64]*Subscription{}}
	for id, sub := range s.subs {
		if sub.UserID == userID {
			cp := *sub
			tx.subs[id] = &cp
		}
	}
	s.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.premium[userID] = tx.premium
	for id, sub := range tx.subs {
		s.subs[id] = sub
	}
	return nil
}

func (s *memStore) GetPackage(_ context.Context, id int64) (*Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.packages[id]
	if !ok {
		return nil, common.ErrPackageNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) ListPackages(_ context.Context, onlyActive bool) ([]*Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Package
	for _, p := range s.packages {
		if onlyActive && !p.IsActive {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) Get(_ context.Context, id int64) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, common.ErrSubscriptionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *memStore) List(_ context.Context, f ListFilter, now time.Time, p common.Paging) ([]*Subscription, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*Subscription
	for _, sub := range s.subs {
		if f.UserID != nil && sub.UserID != *f.UserID {
			continue
		}
		if f.PackageID != nil && sub.PackageID != *f.PackageID {
			continue
		}
		if f.Status != nil && sub.StatusAt(now) != *f.Status {
			continue
		}
		cp := *sub
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	from, to := p.Window(len(all))
	return all[from:to], len(all), nil
}

func (s *memStore) StalePremiumUsers(_ context.Context, now time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for userID, premium := range s.premium {
		if premium && s.countCurrentLocked(userID, now) == 0 {
			ids = append(ids, userID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *memStore) isPremium(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.premium[userID]
}

func (s *memStore) activeCount(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sub := range s.subs {
		if sub.UserID == userID && sub.IsActive {
			n++
		}
	}
	return n
}

func (s *memStore) countCurrentLocked(userID int64, now time.Time) int {
	n := 0
	for _, sub := range s.subs {
		if sub.UserID == userID && sub.StatusAt(now) == StatusActive {
			n++
		}
	}
	return n
}

type memTx struct {
	store   *memStore
	userID  int64
	premium bool
	subs    map[int64]*Subscription
}

func (t *memTx) GetForUpdate(_ context.Context, id int64) (*Subscription, error) {
	sub, ok := t.subs[id]
	if !ok {
		return nil, common.ErrSubscriptionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (t *memTx) DeactivateOthers(_ context.Context, exceptID int64) (int, error) {
	n := 0
	for id, sub := range t.subs {
		if id != exceptID && sub.IsActive {
			sub.IsActive = false
			n++
		}
	}
	return n, nil
}

func (t *memTx) Insert(_ context.Context, s *Subscription) error {
	t.store.mu.Lock()
	t.store.nextID++
	s.ID = t.store.nextID
	t.store.mu.Unlock()

	s.CreatedAt = t.store.now()
	s.UpdatedAt = s.CreatedAt
	cp := *s
	t.subs[s.ID] = &cp
	return nil
}

func (t *memTx) Update(_ context.Context, s *Subscription) error {
	if _, ok := t.subs[s.ID]; !ok {
		return common.ErrSubscriptionNotFound
	}
	s.UpdatedAt = t.store.now()
	cp := *s
	t.subs[s.ID] = &cp
	return nil
}

func (t *memTx) CountCurrent(_ context.Context, now time.Time) (int, error) {
	n := 0
	for _, sub := range t.subs {
		if sub.StatusAt(now) == StatusActive {
			n++
		}
	}
	return n, nil
}

func (t *memTx) IsPremium(context.Context) (bool, error) { return t.premium, nil }

func (t *memTx) SetPremium(_ context.Context, premium bool) error {
	t.premium = premium
	return nil
}
