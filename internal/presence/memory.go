package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pfcontrol/stripsync/internal/model"
)

// MemoryStore keeps presence in-process. Only correct for a single server process.
type MemoryStore struct {
	mu           sync.Mutex
	participants map[string]map[string]model.ActiveParticipant
	locks        map[string]map[string]model.FieldEditLock
	ttl          time.Duration
	now          func() time.Time
}

// NewMemoryStore creates a memory store whose edit locks expire after lockTTL.
func NewMemoryStore(lockTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		participants: make(map[string]map[string]model.ActiveParticipant),
		locks:        make(map[string]map[string]model.FieldEditLock),
		ttl:          lockTTL,
		now:          time.Now,
	}
}

func (s *MemoryStore) Upsert(_ context.Context, sessionID string, p model.ActiveParticipant) (model.ActiveParticipant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.participants[sessionID]
	if m == nil {
		m = make(map[string]model.ActiveParticipant)
		s.participants[sessionID] = m
	}
	p = merge(m[p.ID], p, m[p.ID].ID != "", s.now())
	m[p.ID] = p
	return p, nil
}

func (s *MemoryStore) SetPosition(_ context.Context, sessionID, userID, position string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[sessionID][userID]
	if !ok {
		return false, nil
	}
	p.Position = position
	s.participants[sessionID][userID] = p
	return true, nil
}

func (s *MemoryStore) Remove(_ context.Context, sessionID, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.participants[sessionID]
	delete(m, userID)
	if len(m) == 0 {
		delete(s.participants, sessionID)
		return 0, nil
	}
	return len(m), nil
}

func (s *MemoryStore) List(_ context.Context, sessionID string) ([]model.ActiveParticipant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ActiveParticipant, 0, len(s.participants[sessionID]))
	for _, p := range s.participants[sessionID] {
		out = append(out, p)
	}
	sortParticipants(out)
	return out, nil
}

func (s *MemoryStore) Sessions(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.participants))
	for id := range s.participants {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) ClearSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.participants, sessionID)
	delete(s.locks, sessionID)
	return nil
}

func (s *MemoryStore) AcquireLock(_ context.Context, sessionID string, lock model.FieldEditLock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lock.Timestamp.IsZero() {
		lock.Timestamp = s.now()
	}
	if s.locks[sessionID] == nil {
		s.locks[sessionID] = make(map[string]model.FieldEditLock)
	}
	s.locks[sessionID][lockField(lock.FlightID, lock.FieldName)] = lock
	return nil
}

func (s *MemoryStore) ReleaseLock(_ context.Context, sessionID, flightID, fieldName, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := lockField(flightID, fieldName)
	if l, ok := s.locks[sessionID][key]; ok && l.UserID == userID {
		delete(s.locks[sessionID], key)
	}
	return nil
}

func (s *MemoryStore) ReleaseUserLocks(_ context.Context, sessionID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, l := range s.locks[sessionID] {
		if l.UserID == userID {
			delete(s.locks[sessionID], k)
		}
	}
	return nil
}

func (s *MemoryStore) ListLocks(_ context.Context, sessionID string) ([]model.FieldEditLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	out := make([]model.FieldEditLock, 0, len(s.locks[sessionID]))
	for k, l := range s.locks[sessionID] {
		if expired(l, now, s.ttl) {
			delete(s.locks[sessionID], k)
			continue
		}
		out = append(out, l)
	}
	sortLocks(out)
	return out, nil
}

// merge folds an incoming participant record into the existing one.
func merge(prev, next model.ActiveParticipant, exists bool, now time.Time) model.ActiveParticipant {
	if !exists {
		if next.JoinedAt.IsZero() {
			next.JoinedAt = now
		}
		return next
	}
	next.JoinedAt = prev.JoinedAt
	if next.Position == "" {
		next.Position = prev.Position
	}
	if next.Avatar == "" {
		next.Avatar = prev.Avatar
	}
	return next
}

func sortParticipants(ps []model.ActiveParticipant) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].JoinedAt.Equal(ps[j].JoinedAt) {
			return ps[i].JoinedAt.Before(ps[j].JoinedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}

func sortLocks(ls []model.FieldEditLock) {
	sort.Slice(ls, func(i, j int) bool {
		if ls[i].FlightID != ls[j].FlightID {
			return ls[i].FlightID < ls[j].FlightID
		}
		return ls[i].FieldName < ls[j].FieldName
	})
}
