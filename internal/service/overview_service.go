package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pfcontrol/stripsync/internal/directory"
	"github.com/pfcontrol/stripsync/internal/errs"
	"github.com/pfcontrol/stripsync/internal/model"
	"github.com/pfcontrol/stripsync/internal/realtime"
	"github.com/pfcontrol/stripsync/internal/store"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	overviewFetchLimit = 8
	refreshTimeout     = 10 * time.Second
)

// OverviewService builds the network-wide overview of active PFATC sessions and
// keeps overview clients current while any are connected to this process.
type OverviewService struct {
	store    store.Store
	presence *PresenceService
	dir      directory.Directory
	flights  *FlightService
	hub      *realtime.Hub
	fabric   realtime.Fabric
	cron     *cron.Cron
	interval time.Duration
	window   time.Duration
	log      *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	entry   cron.EntryID
	running bool
}

// NewOverviewService creates the overview service. Refreshes run on c every interval;
// window bounds how far back flights are included.
func NewOverviewService(st store.Store, ps *PresenceService, dir directory.Directory, flights *FlightService, hub *realtime.Hub, fabric realtime.Fabric, c *cron.Cron, interval, window time.Duration, log *zap.Logger) *OverviewService {
	return &OverviewService{
		store:    st,
		presence: ps,
		dir:      dir,
		flights:  flights,
		hub:      hub,
		fabric:   fabric,
		cron:     c,
		interval: interval,
		window:   window,
		log:      log,
		now:      time.Now,
	}
}

// Attach subscribes c to the overview, sends it a snapshot and makes sure the
// periodic refresh runs.
func (s *OverviewService) Attach(ctx context.Context, c *realtime.Client) error {
	s.mu.Lock()
	s.hub.Join(c, realtime.RoomOverview)
	s.startRefreshLocked()
	s.mu.Unlock()

	snap, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	c.Emit(model.EventOverviewData, snap)
	return nil
}

// Detach stops the periodic refresh once no overview client is left on this
// process. It must run after the client is unregistered from the hub.
func (s *OverviewService) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.hub.RoomSize(realtime.RoomOverview) > 0 {
		return
	}
	s.cron.Remove(s.entry)
	s.running = false
	s.log.Debug("overview refresh stopped")
}

// Refreshing reports whether the periodic refresh is scheduled.
func (s *OverviewService) Refreshing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *OverviewService) startRefreshLocked() {
	if s.running {
		return
	}
	s.entry = s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		s.Refresh(ctx)
	}))
	s.running = true
	s.log.Debug("overview refresh started", zap.Duration("interval", s.interval))
}

// Refresh pushes a fresh snapshot to the overview clients of this process.
// Every process refreshes its own clients, so this does not go through the fabric.
func (s *OverviewService) Refresh(ctx context.Context) {
	if s.hub.RoomSize(realtime.RoomOverview) == 0 {
		return
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		s.log.Warn("overview snapshot failed", zap.Error(err))
		return
	}
	frame, err := realtime.Frame(model.EventOverviewData, snap)
	if err != nil {
		s.log.Error("overview encode failed", zap.Error(err))
		return
	}
	s.hub.Deliver(realtime.RoomOverview, frame, "")
}

// Snapshot assembles the overview of every PFATC session with at least one
// participant. A session whose flights cannot be read is listed without flights.
func (s *OverviewService) Snapshot(ctx context.Context) (*model.OverviewSnapshot, error) {
	ids, err := s.presence.ActiveSessions(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]*model.OverviewSession, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(overviewFetchLimit)
	for i, id := range ids {
		g.Go(func() error {
			e, err := s.sessionEntry(gctx, id)
			if err != nil {
				s.log.Debug("overview session skipped", zap.String("session_id", id), zap.Error(err))
				return nil
			}
			entries[i] = e
			return nil
		})
	}
	_ = g.Wait()

	snap := &model.OverviewSnapshot{
		ActiveSessions:    make([]model.OverviewSession, 0, len(entries)),
		ArrivalsByAirport: make(map[string][]model.Flight),
		LastUpdated:       s.now().UTC(),
	}
	for _, e := range entries {
		if e == nil {
			continue
		}
		snap.ActiveSessions = append(snap.ActiveSessions, *e)
		snap.TotalFlights += e.FlightCount
		for _, f := range e.Flights {
			if dest := strings.ToUpper(strings.TrimSpace(f.Arrival)); dest != "" {
				snap.ArrivalsByAirport[dest] = append(snap.ArrivalsByAirport[dest], f)
			}
		}
	}
	sort.Slice(snap.ActiveSessions, func(i, j int) bool {
		a, b := snap.ActiveSessions[i], snap.ActiveSessions[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.SessionID < b.SessionID
	})
	snap.TotalActiveSessions = len(snap.ActiveSessions)
	return snap, nil
}

// sessionEntry returns errs.ErrSessionNotFound for sessions the overview excludes.
func (s *OverviewService) sessionEntry(ctx context.Context, sessionID string) (*model.OverviewSession, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsPFATC {
		return nil, errs.ErrSessionNotFound
	}
	users, err := s.presence.Participants(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, errs.ErrSessionNotFound
	}

	var since time.Time
	if s.window > 0 {
		since = s.now().Add(-s.window)
	}
	flights, err := s.store.ListFlights(ctx, sessionID, since)
	if err != nil {
		s.log.Warn("overview flights unavailable", zap.String("session_id", sessionID), zap.Error(err))
		flights = nil
	}
	pub := make([]model.Flight, 0, len(flights))
	for _, f := range flights {
		pub = append(pub, f.Sanitized())
	}

	return &model.OverviewSession{
		SessionID:    sess.ID,
		AirportICAO:  sess.AirportICAO,
		ActiveRunway: sess.ActiveRunway,
		CreatedAt:    sess.CreatedAt,
		CreatedBy:    sess.CreatedBy,
		IsPFATC:      sess.IsPFATC,
		ActiveUsers:  len(users),
		Controllers:  s.controllers(ctx, users),
		Flights:      pub,
		FlightCount:  len(pub),
	}, nil
}

// controllers enriches controller participants with directory profiles. A failed
// lookup keeps the bare participant.
func (s *OverviewService) controllers(ctx context.Context, users []model.ActiveParticipant) []model.OverviewController {
	out := make([]model.OverviewController, 0, len(users))
	for _, u := range users {
		if !hasRole(u.Roles, string(model.RoleController)) {
			continue
		}
		oc := model.OverviewController{ActiveParticipant: u}
		prof, err := s.dir.Profile(ctx, u.ID)
		if err != nil {
			s.log.Debug("controller profile unavailable", zap.String("user_id", u.ID), zap.Error(err))
		} else {
			oc.Rating = prof.Rating
			oc.RoleBadges = prof.Roles
			oc.EventBadges = prof.EventBadges
			if oc.Avatar == "" {
				oc.Avatar = prof.Avatar
			}
		}
		out = append(out, oc)
	}
	return out
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// UpdateFlight lets an event controller patch a flight of any PFATC session from the
// overview. Afterwards the session's entry is pushed to every overview client.
func (s *OverviewService) UpdateFlight(ctx context.Context, c *realtime.Client, req model.UpdateFlightRequest) (*model.Flight, error) {
	if !c.EventController {
		fail(s.log, c, ActionUpdate, req.FlightID, errs.ErrNotAuthorized)
		return nil, errs.ErrNotAuthorized
	}
	if req.SessionID == "" {
		err := errs.Invalid("sessionId", "is required")
		fail(s.log, c, ActionUpdate, req.FlightID, err)
		return nil, err
	}
	if err := s.flights.admitsEventController(ctx, c, req.SessionID); err != nil {
		fail(s.log, c, ActionUpdate, req.FlightID, err)
		return nil, err
	}
	updated, err := s.flights.UpdateAs(ctx, c, req.SessionID, req)
	if err != nil {
		return nil, err
	}
	s.PushSession(ctx, req.SessionID)
	return updated, nil
}

// PushSession broadcasts the current entry of one session to overview clients on
// every process.
func (s *OverviewService) PushSession(ctx context.Context, sessionID string) {
	e, err := s.sessionEntry(ctx, sessionID)
	if err != nil {
		s.log.Debug("overview point update skipped", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	if err := s.fabric.Publish(ctx, realtime.RoomOverview, model.EventOverviewSessionUpdate, e, ""); err != nil {
		s.log.Error("overview broadcast failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}
