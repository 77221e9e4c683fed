package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pfcontrol/stripsync/internal/errs"
	"github.com/pfcontrol/stripsync/internal/flight"
	"github.com/pfcontrol/stripsync/internal/model"
	"github.com/pfcontrol/stripsync/internal/presence"
	"github.com/pfcontrol/stripsync/internal/realtime"
	"go.uber.org/zap"
)

// RoleEventController is the participant role label of verified event controllers.
const RoleEventController = "Event Controller"

const maxPositionLen = 32

// PresenceService tracks who is connected to each session on the presence channel
// and owns the lifecycle that hangs off it: field edit locks and ATIS timers.
type PresenceService struct {
	presence presence.Store
	hub      *realtime.Hub
	fabric   realtime.Fabric
	atis     *ATISScheduler
	log      *zap.Logger
	now      func() time.Time

	// timers serialises starting and stopping ATIS timers against membership.
	timers sync.Mutex
}

// NewPresenceService creates the presence service.
func NewPresenceService(ps presence.Store, hub *realtime.Hub, fabric realtime.Fabric, sched *ATISScheduler, log *zap.Logger) *PresenceService {
	return &PresenceService{
		presence: ps,
		hub:      hub,
		fabric:   fabric,
		atis:     sched,
		log:      log,
		now:      time.Now,
	}
}

func presenceRoom(sessionID string) string {
	return realtime.SessionRoom(realtime.ChannelPresence, sessionID)
}

func participantRoles(c *realtime.Client) []string {
	roles := make([]string, 0, 2)
	if c.EventController {
		roles = append(roles, RoleEventController)
	}
	return append(roles, string(c.Role))
}

// Join records c as an active participant and subscribes it to its session room and
// its private user room. A user reconnecting replaces their previous entry.
func (s *PresenceService) Join(ctx context.Context, c *realtime.Client) error {
	p, err := s.presence.Upsert(ctx, c.SessionID, model.ActiveParticipant{
		ID:       c.UserID,
		Username: c.Username,
		Avatar:   c.Avatar,
		Roles:    participantRoles(c),
		JoinedAt: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("presence upsert: %w", err)
	}
	s.hub.Join(c, presenceRoom(c.SessionID))
	s.hub.Join(c, realtime.UserRoom(c.UserID))

	s.broadcastUsers(ctx, c.SessionID)
	if locks, err := s.presence.ListLocks(ctx, c.SessionID); err == nil {
		c.Emit(model.EventFieldEditingUpdate, locks)
	}

	s.timers.Lock()
	_, err = s.atis.Ensure(ctx, c.SessionID)
	s.timers.Unlock()
	if err != nil {
		s.log.Warn("atis timer not started", zap.String("session_id", c.SessionID), zap.Error(err))
	}
	s.log.Info("participant joined",
		zap.String("session_id", c.SessionID),
		zap.String("user_id", p.ID),
		zap.Strings("roles", p.Roles))
	return nil
}

// Leave handles a presence connection going away. It must run after the client is
// unregistered from the hub. The participant is only removed once the user has no
// other presence connection to the session on this process; the last participant
// out stops the session's ATIS timer.
func (s *PresenceService) Leave(ctx context.Context, c *realtime.Client) error {
	if s.hub.CountUser(presenceRoom(c.SessionID), c.UserID) > 0 {
		return nil
	}
	if err := s.presence.ReleaseUserLocks(ctx, c.SessionID, c.UserID); err != nil {
		s.log.Warn("release locks failed", zap.String("session_id", c.SessionID), zap.Error(err))
	}
	remaining, err := s.presence.Remove(ctx, c.SessionID, c.UserID)
	if err != nil {
		return fmt.Errorf("presence remove: %w", err)
	}
	s.log.Info("participant left",
		zap.String("session_id", c.SessionID),
		zap.String("user_id", c.UserID),
		zap.Int("remaining", remaining))

	if remaining == 0 && s.stopIfEmpty(ctx, c.SessionID) {
		return nil
	}
	s.broadcastUsers(ctx, c.SessionID)
	s.broadcastLocks(ctx, c.SessionID)
	return nil
}

// stopIfEmpty stops the ATIS timer of sessionID if nobody is present. A join that
// lands after the last participant was removed keeps the timer running.
func (s *PresenceService) stopIfEmpty(ctx context.Context, sessionID string) bool {
	s.timers.Lock()
	defer s.timers.Unlock()
	users, err := s.presence.List(ctx, sessionID)
	if err != nil {
		s.log.Warn("list participants failed", zap.String("session_id", sessionID), zap.Error(err))
		return false
	}
	if len(users) > 0 {
		return false
	}
	s.atis.Stop(sessionID)
	return true
}

// PositionChange updates the position label of c's participant entry.
func (s *PresenceService) PositionChange(ctx context.Context, c *realtime.Client, req model.PositionChangeRequest) error {
	pos := flight.Sanitize("remark", req.Position)
	if len([]rune(pos)) > maxPositionLen {
		pos = string([]rune(pos)[:maxPositionLen])
	}
	ok, err := s.presence.SetPosition(ctx, c.SessionID, c.UserID, pos)
	if err != nil {
		return err
	}
	if ok {
		s.broadcastUsers(ctx, c.SessionID)
	}
	return nil
}

// FieldEditingStart marks a flight field as being edited by c.
func (s *PresenceService) FieldEditingStart(ctx context.Context, c *realtime.Client, req model.FieldEditingRequest) error {
	if !c.IsController() {
		return errs.ErrNotAuthorized
	}
	if err := validateLockTarget(req); err != nil {
		return err
	}
	err := s.presence.AcquireLock(ctx, c.SessionID, model.FieldEditLock{
		FlightID:  req.FlightID,
		FieldName: req.FieldName,
		UserID:    c.UserID,
		Username:  c.Username,
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		return err
	}
	s.broadcastLocks(ctx, c.SessionID)
	return nil
}

// FieldEditingStop releases c's lock on a flight field.
func (s *PresenceService) FieldEditingStop(ctx context.Context, c *realtime.Client, req model.FieldEditingRequest) error {
	if err := validateLockTarget(req); err != nil {
		return err
	}
	if err := s.presence.ReleaseLock(ctx, c.SessionID, req.FlightID, req.FieldName, c.UserID); err != nil {
		return err
	}
	s.broadcastLocks(ctx, c.SessionID)
	return nil
}

func validateLockTarget(req model.FieldEditingRequest) error {
	if req.FlightID == "" {
		return errs.Invalid("flightId", "is required")
	}
	if _, ok := flight.ControllerFields[req.FieldName]; !ok {
		return errs.Invalid("fieldName", "unknown field")
	}
	return nil
}

// Participants lists the active participants of a session.
func (s *PresenceService) Participants(ctx context.Context, sessionID string) ([]model.ActiveParticipant, error) {
	return s.presence.List(ctx, sessionID)
}

// ActiveSessions lists sessions with at least one participant.
func (s *PresenceService) ActiveSessions(ctx context.Context) ([]string, error) {
	return s.presence.Sessions(ctx)
}

// EvictSession drops all presence state of a deleted session.
func (s *PresenceService) EvictSession(ctx context.Context, sessionID string) error {
	s.timers.Lock()
	s.atis.Stop(sessionID)
	s.timers.Unlock()
	return s.presence.ClearSession(ctx, sessionID)
}

func (s *PresenceService) broadcastUsers(ctx context.Context, sessionID string) {
	users, err := s.presence.List(ctx, sessionID)
	if err != nil {
		s.log.Warn("list participants failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	if err := s.fabric.Publish(ctx, presenceRoom(sessionID), model.EventSessionUsersUpdate, users, ""); err != nil {
		s.log.Error("users broadcast failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (s *PresenceService) broadcastLocks(ctx context.Context, sessionID string) {
	locks, err := s.presence.ListLocks(ctx, sessionID)
	if err != nil {
		s.log.Warn("list locks failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	if err := s.fabric.Publish(ctx, presenceRoom(sessionID), model.EventFieldEditingUpdate, locks, ""); err != nil {
		s.log.Error("locks broadcast failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}
