package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pfcontrol/stripsync/internal/errs"
	"github.com/pfcontrol/stripsync/internal/model"
	"github.com/pfcontrol/stripsync/internal/realtime"
	"github.com/pfcontrol/stripsync/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ArrivalRouter forwards flight changes to the arrivals rooms of sessions whose
// airport is the flight's destination.
type ArrivalRouter struct {
	store  store.Store
	fabric realtime.Fabric
	index  *FlightIndex
	limit  int
	window time.Duration
	log    *zap.Logger
	now    func() time.Time
}

// NewArrivalRouter creates a router. limit bounds concurrent publishes per flight;
// window bounds the flights scanned when locating an unindexed flight.
func NewArrivalRouter(st store.Store, fabric realtime.Fabric, index *FlightIndex, limit int, window time.Duration, log *zap.Logger) *ArrivalRouter {
	if limit <= 0 {
		limit = 8
	}
	return &ArrivalRouter{
		store:  st,
		fabric: fabric,
		index:  index,
		limit:  limit,
		window: window,
		log:    log,
		now:    time.Now,
	}
}

// Propagate sends f to every other session whose airport matches f.Arrival and
// returns how many sessions were targeted. Failures are logged per target session
// and never abort the others.
func (r *ArrivalRouter) Propagate(ctx context.Context, originSessionID string, f model.Flight, except string) int {
	dest := strings.TrimSpace(f.Arrival)
	if dest == "" {
		return 0
	}
	sessions, err := r.store.ListSessions(ctx)
	if err != nil {
		r.log.Warn("arrival routing skipped",
			zap.String("flight_id", f.ID),
			zap.String("arrival", dest),
			zap.Error(err))
		return 0
	}

	msg := model.ArrivalUpdated{Flight: f, SourceSessionID: originSessionID}
	var g errgroup.Group
	g.SetLimit(r.limit)
	targeted := 0
	for _, sess := range sessions {
		if sess.ID == originSessionID || !strings.EqualFold(sess.AirportICAO, dest) {
			continue
		}
		targeted++
		room := realtime.SessionRoom(realtime.ChannelArrivals, sess.ID)
		g.Go(func() error {
			if err := r.fabric.Publish(ctx, room, model.EventArrivalUpdated, msg, except); err != nil {
				r.log.Warn("arrival broadcast failed",
					zap.String("flight_id", f.ID),
					zap.String("target_session_id", sess.ID),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return targeted
}

// LocateOrigin returns the session that owns flightID. The index is consulted
// first; a miss or stale entry falls back to scanning recent flights of every
// session, refilling the index as it goes.
func (r *ArrivalRouter) LocateOrigin(ctx context.Context, flightID string) (string, error) {
	if flightID == "" {
		return "", errs.Invalid("flightId", "is required")
	}
	if sid, ok := r.index.Lookup(flightID); ok {
		_, err := r.store.GetFlight(ctx, sid, flightID)
		if err == nil {
			return sid, nil
		}
		if !errors.Is(err, errs.ErrFlightNotFound) && !errors.Is(err, errs.ErrSessionNotFound) {
			return "", err
		}
		r.index.Remove(flightID)
	}

	sessions, err := r.store.ListSessions(ctx)
	if err != nil {
		return "", fmt.Errorf("list sessions: %w", err)
	}
	var since time.Time
	if r.window > 0 {
		since = r.now().Add(-r.window)
	}
	for _, sess := range sessions {
		flights, err := r.store.ListFlights(ctx, sess.ID, since)
		if err != nil {
			r.log.Warn("flight scan failed", zap.String("session_id", sess.ID), zap.Error(err))
			continue
		}
		found := false
		for _, f := range flights {
			r.index.Put(f.ID, sess.ID)
			if f.ID == flightID {
				found = true
			}
		}
		if found {
			return sess.ID, nil
		}
	}
	return "", errs.ErrFlightNotFound
}
