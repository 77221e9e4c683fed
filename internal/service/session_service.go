package service

import (
	"context"
	"fmt"

	"github.com/pfcontrol/stripsync/internal/model"
	"github.com/pfcontrol/stripsync/internal/realtime"
	"github.com/pfcontrol/stripsync/internal/store"
	"go.uber.org/zap"
)

// SessionServicer is what the REST session handler needs.
type SessionServicer interface {
	Delete(ctx context.Context, sessionID string) error
	Participants(ctx context.Context, sessionID string) ([]model.ActiveParticipant, error)
}

// SessionClosed is sent to every connection of a deleted session before it is closed.
type SessionClosed struct {
	SessionID string `json:"sessionId"`
}

// SessionService manages session teardown and membership queries.
type SessionService struct {
	store    store.Store
	presence *PresenceService
	index    *FlightIndex
	fabric   realtime.Fabric
	log      *zap.Logger
}

// NewSessionService creates a session service.
func NewSessionService(st store.Store, ps *PresenceService, index *FlightIndex, fabric realtime.Fabric, log *zap.Logger) *SessionService {
	return &SessionService{store: st, presence: ps, index: index, fabric: fabric, log: log}
}

// Delete removes the session, drops its presence state and ATIS timer, and closes
// every connection to it on every process.
func (s *SessionService) Delete(ctx context.Context, sessionID string) error {
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	if err := s.presence.EvictSession(ctx, sessionID); err != nil {
		s.log.Warn("evict presence failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	s.index.RemoveSession(sessionID)

	msg := SessionClosed{SessionID: sessionID}
	for _, ch := range realtime.SessionChannels {
		room := realtime.SessionRoom(ch, sessionID)
		if err := s.fabric.Kick(ctx, room, model.EventSessionClosed, msg); err != nil {
			return fmt.Errorf("close %s: %w", room, err)
		}
	}
	s.log.Info("session deleted", zap.String("session_id", sessionID))
	return nil
}

// Participants returns the active participants of an existing session.
func (s *SessionService) Participants(ctx context.Context, sessionID string) ([]model.ActiveParticipant, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.presence.Participants(ctx, sessionID)
}
