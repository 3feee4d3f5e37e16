package user

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/namaste/namaste/internal/platform/cache"
)

// MemoryStore is the in-process Store used in demo deployments and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*User
	now   cache.Clock
}

func NewMemoryStore(now cache.Clock) *MemoryStore {
	if now == nil {
		now = cache.SystemClock
	}
	return &MemoryStore{users: make(map[string]*User), now: now}
}

func clone(u *User) *User {
	cp := *u
	if u.LastLogin != nil {
		t := *u.LastLogin
		cp.LastLogin = &t
	}
	return &cp
}

func (s *MemoryStore) FindByABHAID(_ context.Context, abhaID string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[abhaID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, abhaID)
	}
	return clone(u), nil
}

func keep(fresh, old string) string {
	if fresh != "" {
		return fresh
	}
	return old
}

func (s *MemoryStore) Upsert(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	existing, ok := s.users[u.ABHAID]
	if !ok {
		stored := clone(u)
		stored.IsActive = true
		stored.LastLogin = nil
		stored.CreatedAt, stored.UpdatedAt = now, now
		s.users[u.ABHAID] = stored
		u.IsActive, u.LastLogin, u.CreatedAt, u.UpdatedAt = true, nil, now, now
		return nil
	}

	existing.ABHANumber = u.ABHANumber
	existing.Name = u.Name
	existing.Email = keep(u.Email, existing.Email)
	existing.Mobile = keep(u.Mobile, existing.Mobile)
	existing.Gender = keep(u.Gender, existing.Gender)
	existing.DateOfBirth = keep(u.DateOfBirth, existing.DateOfBirth)
	existing.HealthID = keep(u.HealthID, existing.HealthID)
	if u.Address != nil {
		existing.Address = u.Address
	}
	existing.Profile = u.Profile
	existing.UpdatedAt = now

	*u = *clone(existing)
	return nil
}

func (s *MemoryStore) UpdateContact(_ context.Context, abhaID string, upd ContactUpdate) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[abhaID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, abhaID)
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Mobile != nil {
		u.Mobile = *upd.Mobile
	}
	u.UpdatedAt = s.now()
	return clone(u), nil
}

func (s *MemoryStore) TouchLastLogin(_ context.Context, abhaID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[abhaID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, abhaID)
	}
	u.LastLogin = &at
	return nil
}

func (s *MemoryStore) Deactivate(_ context.Context, abhaID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[abhaID]
	if !ok || !u.IsActive {
		return false, nil
	}
	u.IsActive = false
	u.UpdatedAt = s.now()
	return true, nil
}

func (s *MemoryStore) collect(keepUser func(*User) bool, less func(a, b *User) bool, limit int) []*User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*User
	for _, u := range s.users {
		if keepUser(u) {
			out = append(out, clone(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *MemoryStore) Search(_ context.Context, query string, limit int) ([]*User, error) {
	q := strings.ToLower(query)
	return s.collect(func(u *User) bool {
		return u.IsActive && (strings.Contains(strings.ToLower(u.Name), q) ||
			strings.Contains(u.ABHANumber, q) ||
			strings.Contains(strings.ToLower(u.Email), q))
	}, func(a, b *User) bool { return a.Name < b.Name }, limit), nil
}

func (s *MemoryStore) Recent(_ context.Context, limit int) ([]*User, error) {
	return s.collect(func(u *User) bool {
		return u.IsActive && u.LastLogin != nil
	}, func(a, b *User) bool { return a.LastLogin.After(*b.LastLogin) }, limit), nil
}

func (s *MemoryStore) Stats(_ context.Context, since time.Time) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := &Stats{Total: len(s.users)}
	for _, u := range s.users {
		if u.IsActive {
			st.Active++
		} else {
			st.Inactive++
		}
		if u.LastLogin != nil && !u.LastLogin.Before(since) {
			st.RecentLogins++
		}
	}
	return st, nil
}
