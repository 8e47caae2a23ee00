// internal/matchstore/memory.go

package matchstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process. It implements Store and UserStore
// and is used for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	matches []*Match
	byID    map[string]*Match
	users   map[int64]*User
	housing []*Housing
	seq     int64
	userSeq int64
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  make(map[string]*Match),
		users: make(map[int64]*User),
		now:   time.Now,
	}
}

func (s *MemoryStore) List(_ context.Context, userID int64, cursor string, limit int) (*Page, error) {
	after, err := parseCursor(cursor)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	page := &Page{Matches: []Match{}}
	for _, m := range s.matches {
		if m.Seq <= after || !m.Involves(userID) {
			continue
		}
		if limit > 0 && len(page.Matches) == limit {
			page.NextCursor = formatCursor(page.Matches[len(page.Matches)-1].Seq)
			break
		}
		page.Matches = append(page.Matches, *m)
	}
	return page, nil
}

func (s *MemoryStore) Create(_ context.Context, from, to int64) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.matches {
		if m.FromUser == from && m.ToUser == to {
			return nil, ErrConflict
		}
		if m.Status == StatusMatched && m.FromUser == to && m.ToUser == from {
			return nil, ErrConflict
		}
	}

	now := s.now().UTC()
	s.seq++
	m := &Match{
		ID:        uuid.NewString(),
		FromUser:  from,
		ToUser:    to,
		Status:    StatusPending,
		Seq:       s.seq,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.matches = append(s.matches, m)
	s.byID[m.ID] = m

	out := *m
	return &out, nil
}

func (s *MemoryStore) Confirm(_ context.Context, id string, userID int64) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[id]
	switch {
	case !ok:
		return nil, ErrNotFound
	case m.Status == StatusMatched:
		return nil, ErrConflict
	case m.ToUser != userID:
		return nil, ErrForbidden
	}

	m.Status = StatusMatched
	m.UpdatedAt = s.now().UTC()
	out := *m
	return &out, nil
}

func (s *MemoryStore) IsMatched(_ context.Context, a, b int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.matches {
		if m.Status != StatusMatched {
			continue
		}
		if (m.FromUser == a && m.ToUser == b) || (m.FromUser == b && m.ToUser == a) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) UserExists(_ context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[id]
	return ok, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrEmailTaken
		}
	}

	now := s.now().UTC()
	s.userSeq++
	u.ID = s.userSeq
	u.CreatedAt, u.UpdatedAt = now, now
	stored := *u
	s.users[u.ID] = &stored
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			out := *u
			return &out, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *MemoryStore) UpdateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[u.ID]
	if !ok {
		return ErrUserNotFound
	}
	u.UpdatedAt = s.now().UTC()
	u.CreatedAt = existing.CreatedAt
	stored := *u
	s.users[u.ID] = &stored
	return nil
}

func (s *MemoryStore) Recommendations(_ context.Context, userID int64, limit int) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	liked := make(map[int64]bool)
	for _, m := range s.matches {
		if m.FromUser == userID {
			liked[m.ToUser] = true
		}
	}

	out := make([]User, 0)
	for id, u := range s.users {
		if id == userID || liked[id] {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CreateHousing(_ context.Context, h *Housing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[h.OwnerID]; !ok {
		return ErrUserNotFound
	}
	h.ID = int64(len(s.housing) + 1)
	h.CreatedAt = s.now().UTC()
	stored := *h
	s.housing = append(s.housing, &stored)
	return nil
}

func (s *MemoryStore) GetHousing(_ context.Context, id int64) (*Housing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id < 1 || id > int64(len(s.housing)) {
		return nil, ErrHousingNotFound
	}
	out := *s.housing[id-1]
	return &out, nil
}

func (s *MemoryStore) ListHousing(_ context.Context, ownerID int64) ([]Housing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Housing, 0)
	for i := len(s.housing) - 1; i >= 0; i-- {
		if s.housing[i].OwnerID == ownerID {
			out = append(out, *s.housing[i])
		}
	}
	return out, nil
}
