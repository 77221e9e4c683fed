package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pfcontrol/stripsync/internal/atis"
	"github.com/pfcontrol/stripsync/internal/errs"
	"github.com/pfcontrol/stripsync/internal/flight"
	"github.com/pfcontrol/stripsync/internal/model"
	"github.com/pfcontrol/stripsync/internal/realtime"
	"github.com/pfcontrol/stripsync/internal/store"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ATISUpdatedBySystem is the updatedBy value of timer-driven rotations.
const ATISUpdatedBySystem = "system"

const rotateTimeout = 30 * time.Second

// ATISScheduler keeps at most one recurring rotation job per session on a shared cron.
type ATISScheduler struct {
	cron     *cron.Cron
	interval time.Duration
	store    store.Store
	gen      atis.Generator
	fabric   realtime.Fabric
	log      *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewATISScheduler creates a scheduler that registers its jobs on c.
func NewATISScheduler(c *cron.Cron, interval time.Duration, st store.Store, gen atis.Generator, fabric realtime.Fabric, log *zap.Logger) *ATISScheduler {
	return &ATISScheduler{
		cron:     c,
		interval: interval,
		store:    st,
		gen:      gen,
		fabric:   fabric,
		log:      log,
		now:      time.Now,
		entries:  make(map[string]cron.EntryID),
	}
}

// Ensure starts the rotation job for sessionID unless one is running or the session
// has no regenerable ATIS. It reports whether a job is running afterwards.
func (s *ATISScheduler) Ensure(ctx context.Context, sessionID string) (bool, error) {
	if s.Has(sessionID) {
		return true, nil
	}
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if !sess.ATIS.Configured() {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[sessionID]; !ok {
		s.entries[sessionID] = s.schedule(sessionID)
		s.log.Info("atis timer started", zap.String("session_id", sessionID), zap.Duration("interval", s.interval))
	}
	return true, nil
}

// Reset restarts the interval for sessionID from now.
func (s *ATISScheduler) Reset(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[sessionID]; ok {
		s.cron.Remove(id)
	}
	s.entries[sessionID] = s.schedule(sessionID)
}

// Stop cancels the job for sessionID, if any.
func (s *ATISScheduler) Stop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[sessionID]; ok {
		s.cron.Remove(id)
		delete(s.entries, sessionID)
		s.log.Info("atis timer stopped", zap.String("session_id", sessionID))
	}
}

// Has reports whether a job is registered for sessionID.
func (s *ATISScheduler) Has(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[sessionID]
	return ok
}

// Len returns the number of running jobs.
func (s *ATISScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// schedule must be called with mu held.
func (s *ATISScheduler) schedule(sessionID string) cron.EntryID {
	return s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), rotateTimeout)
		defer cancel()
		if err := s.Rotate(ctx, sessionID); err != nil {
			if errors.Is(err, errs.ErrSessionNotFound) {
				s.Stop(sessionID)
				return
			}
			s.log.Warn("atis rotation failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}))
}

// Rotate advances the ATIS letter, regenerates the text from the stored
// configuration, persists it and broadcasts it. A generator failure leaves the
// stored ATIS and the job untouched.
func (s *ATISScheduler) Rotate(ctx context.Context, sessionID string) error {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	cur := sess.ATIS
	if !cur.Configured() {
		return nil
	}
	next := atis.NextLetter(cur.Letter)
	text, err := s.gen.Generate(ctx, atis.Request{
		ICAO:             cur.ICAO,
		Ident:            next,
		LandingRunways:   cur.LandingRunways,
		DepartingRunways: cur.DepartingRunways,
		Approaches:       cur.SelectedApproaches,
		Remarks:          cur.Remarks,
	})
	if err != nil {
		return err
	}
	cur.Letter = next
	cur.Text = text
	cur.Timestamp = s.now().UTC()
	if _, err := s.store.UpdateSession(ctx, sessionID, model.SessionPatch{ATIS: &cur}); err != nil {
		return fmt.Errorf("store atis: %w", err)
	}
	s.broadcast(ctx, sessionID, model.ATISUpdate{ATIS: cur, UpdatedBy: ATISUpdatedBySystem, IsAutoGenerated: true})
	s.log.Info("atis rotated", zap.String("session_id", sessionID), zap.String("letter", next))
	return nil
}

// ApplyGenerated stores an ATIS a controller generated, broadcasts it and restarts
// the rotation interval so the next automatic rotation is a full interval away.
func (s *ATISScheduler) ApplyGenerated(ctx context.Context, c *realtime.Client, req model.ATISGeneratedRequest) (*model.ATISState, error) {
	if !c.IsController() {
		return nil, errs.ErrNotAuthorized
	}
	letter := strings.ToUpper(strings.TrimSpace(req.ATIS.Letter))
	if len(letter) != 1 || letter[0] < 'A' || letter[0] > 'Z' {
		return nil, errs.Invalid("atis.letter", "must be a single letter")
	}
	text := flight.Sanitize("pdc_remarks", req.ATIS.Text)
	if text == "" {
		return nil, errs.Invalid("atis.text", "is required")
	}
	state := model.ATISState{
		Letter:             letter,
		Text:               text,
		Timestamp:          s.now().UTC(),
		ICAO:               flight.Sanitize("departure", req.ICAO),
		LandingRunways:     sanitizeAll("runway", req.LandingRunways),
		DepartingRunways:   sanitizeAll("runway", req.DepartingRunways),
		SelectedApproaches: sanitizeAll("remark", req.SelectedApproaches),
		Remarks:            flight.Sanitize("remark", req.Remarks),
	}
	if _, err := s.store.UpdateSession(ctx, c.SessionID, model.SessionPatch{ATIS: &state}); err != nil {
		return nil, fmt.Errorf("store atis: %w", err)
	}
	updatedBy := c.Username
	if updatedBy == "" {
		updatedBy = c.UserID
	}
	s.broadcast(ctx, c.SessionID, model.ATISUpdate{ATIS: state, UpdatedBy: updatedBy, IsAutoGenerated: false})
	if state.Configured() {
		s.Reset(c.SessionID)
	}
	return &state, nil
}

func (s *ATISScheduler) broadcast(ctx context.Context, sessionID string, msg model.ATISUpdate) {
	for _, ch := range []string{realtime.ChannelPresence, realtime.ChannelFlights} {
		room := realtime.SessionRoom(ch, sessionID)
		if err := s.fabric.Publish(ctx, room, model.EventATISUpdate, msg, ""); err != nil {
			s.log.Error("atis broadcast failed", zap.String("room", room), zap.Error(err))
		}
	}
}

func sanitizeAll(field string, in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = flight.Sanitize(field, v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
