package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pfcontrol/stripsync/internal/errs"
	"github.com/pfcontrol/stripsync/internal/model"
)

// MemoryStore is an in-process Store for single-node development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
	flights  map[string]map[string]model.Flight // sessionID -> flightID -> flight
	now      func() time.Time
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]model.Session),
		flights:  make(map[string]map[string]model.Flight),
		now:      time.Now,
	}
}

// PutSession inserts or replaces a session.
func (s *MemoryStore) PutSession(sess model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.AirportICAO = strings.ToUpper(sess.AirportICAO)
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now()
	}
	s.sessions[sess.ID] = sess
}

func (s *MemoryStore) GetSession(_ context.Context, sessionID string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, errs.ErrSessionNotFound
	}
	return &sess, nil
}

func (s *MemoryStore) ListSessions(_ context.Context) ([]model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.AirportICAO != "" {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateSession(_ context.Context, sessionID string, patch model.SessionPatch) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, errs.ErrSessionNotFound
	}
	if patch.ActiveRunway != nil {
		sess.ActiveRunway = *patch.ActiveRunway
	}
	if patch.ATIS != nil {
		sess.ATIS = *patch.ATIS
	}
	s.sessions[sessionID] = sess
	return &sess, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return errs.ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	delete(s.flights, sessionID)
	return nil
}

func (s *MemoryStore) GetFlight(_ context.Context, sessionID, flightID string) (*model.Flight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.flights[sessionID][flightID]
	if !ok {
		return nil, errs.ErrFlightNotFound
	}
	return &f, nil
}

func (s *MemoryStore) ListFlights(_ context.Context, sessionID string, since time.Time) ([]model.Flight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Flight, 0, len(s.flights[sessionID]))
	for _, f := range s.flights[sessionID] {
		if !since.IsZero() && f.CreatedAt.Before(since) {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CreateFlight(_ context.Context, f *model.Flight) (*model.Flight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[f.SessionID]; !ok {
		return nil, errs.ErrSessionNotFound
	}
	cp := *f
	now := s.now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	if s.flights[cp.SessionID] == nil {
		s.flights[cp.SessionID] = make(map[string]model.Flight)
	}
	s.flights[cp.SessionID][cp.ID] = cp
	return &cp, nil
}

func (s *MemoryStore) UpdateFlight(_ context.Context, sessionID, flightID string, updates model.FlightUpdates) (*model.Flight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flights[sessionID][flightID]
	if !ok {
		return nil, errs.ErrFlightNotFound
	}
	updates.ApplyTo(&f)
	f.UpdatedAt = s.now()
	s.flights[sessionID][flightID] = f
	return &f, nil
}

func (s *MemoryStore) DeleteFlight(_ context.Context, sessionID, flightID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flights[sessionID][flightID]; !ok {
		return errs.ErrFlightNotFound
	}
	delete(s.flights[sessionID], flightID)
	return nil
}
