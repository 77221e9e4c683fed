package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pfcontrol/stripsync/internal/errs"
	"github.com/pfcontrol/stripsync/internal/flight"
	"github.com/pfcontrol/stripsync/internal/model"
	"github.com/pfcontrol/stripsync/internal/realtime"
	"github.com/pfcontrol/stripsync/internal/store"
	"go.uber.org/zap"
)

// Action names reported in flightError.
const (
	ActionAdd           = "add"
	ActionUpdate        = "update"
	ActionDelete        = "delete"
	ActionUpdateSession = "updateSession"
	ActionIssuePDC      = "issuePDC"
	ActionRequestPDC    = "requestPDC"
	ActionContactMe     = "contactMe"
	ActionUpdateArrival = "updateArrival"
)

// FlightService is the flight mutation coordinator: it validates, authorizes and
// persists flight changes, then fans them out. Nothing is broadcast unless the store
// accepted the change first.
type FlightService struct {
	store    store.Store
	procs    flight.ProcedureLookup
	fabric   realtime.Fabric
	arrivals *ArrivalRouter
	index    *FlightIndex
	log      *zap.Logger
	now      func() time.Time
}

// NewFlightService creates the coordinator.
func NewFlightService(st store.Store, procs flight.ProcedureLookup, fabric realtime.Fabric, arrivals *ArrivalRouter, index *FlightIndex, log *zap.Logger) *FlightService {
	return &FlightService{
		store:    st,
		procs:    procs,
		fabric:   fabric,
		arrivals: arrivals,
		index:    index,
		log:      log,
		now:      time.Now,
	}
}

func flightsRoom(sessionID string) string {
	return realtime.SessionRoom(realtime.ChannelFlights, sessionID)
}

// publish broadcasts after a successful write. A failed broadcast is logged; the
// write already happened and the author is acknowledged directly.
func (s *FlightService) publish(ctx context.Context, room, event string, data any, except string) {
	if err := s.fabric.Publish(ctx, room, event, data, except); err != nil {
		s.log.Error("broadcast failed", zap.String("room", room), zap.String("event", event), zap.Error(err))
	}
}

// Add files a new flight in the client's session. Any connected client may add.
func (s *FlightService) Add(ctx context.Context, c *realtime.Client, draft model.FlightDraft) (*model.Flight, error) {
	created, err := s.add(ctx, c, draft)
	if err != nil {
		fail(s.log, c, ActionAdd, "", err)
		return nil, err
	}
	return created, nil
}

func (s *FlightService) add(ctx context.Context, c *realtime.Client, draft model.FlightDraft) (*model.Flight, error) {
	sess, err := s.store.GetSession(ctx, c.SessionID)
	if err != nil {
		return nil, err
	}
	f, err := flight.Build(sess, draft, s.procs)
	if err != nil {
		return nil, err
	}
	created, err := s.store.CreateFlight(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("create flight: %w", err)
	}
	s.index.Put(created.ID, sess.ID)

	pub := created.Sanitized()
	s.publish(ctx, flightsRoom(sess.ID), model.EventFlightAdded, pub, c.ID)
	// Only the author ever sees the pilot access token.
	c.Emit(model.EventFlightAdded, created)

	s.arrivals.Propagate(ctx, sess.ID, pub, "")
	s.log.Info("flight added",
		zap.String("session_id", sess.ID),
		zap.String("flight_id", created.ID),
		zap.String("callsign", created.Callsign))
	return created, nil
}

// Update patches a flight in the client's session. Controllers only.
func (s *FlightService) Update(ctx context.Context, c *realtime.Client, req model.UpdateFlightRequest) (*model.Flight, error) {
	if !c.IsController() {
		fail(s.log, c, ActionUpdate, req.FlightID, errs.ErrNotAuthorized)
		return nil, errs.ErrNotAuthorized
	}
	updated, updates, err := s.apply(ctx, c, c.SessionID, req.FlightID, req.Updates, flight.ControllerFields)
	if err != nil {
		fail(s.log, c, ActionUpdate, req.FlightID, err)
		return nil, err
	}
	s.acknowledge(c, updated, updates)
	return updated, nil
}

// UpdateAs patches a flight in sessionID on behalf of a client outside that session's
// flights room. The caller has already authorized the client.
func (s *FlightService) UpdateAs(ctx context.Context, c *realtime.Client, sessionID string, req model.UpdateFlightRequest) (*model.Flight, error) {
	updated, updates, err := s.apply(ctx, c, sessionID, req.FlightID, req.Updates, flight.ControllerFields)
	if err != nil {
		fail(s.log, c, ActionUpdate, req.FlightID, err)
		return nil, err
	}
	c.Emit(model.EventFlightUpdateAck, model.FlightUpdateAck{FlightID: updated.ID, Updates: updates})
	return updated, nil
}

// UpdateArrival patches the arrival-owned fields of a flight from an arrivals room.
// The arrivals room owns no storage, so the flight's origin session is located first.
func (s *FlightService) UpdateArrival(ctx context.Context, c *realtime.Client, req model.UpdateFlightRequest) (*model.Flight, error) {
	if !c.IsController() {
		fail(s.log, c, ActionUpdateArrival, req.FlightID, errs.ErrNotAuthorized)
		return nil, errs.ErrNotAuthorized
	}
	origin, err := s.arrivals.LocateOrigin(ctx, req.FlightID)
	if err != nil {
		fail(s.log, c, ActionUpdateArrival, req.FlightID, err)
		return nil, err
	}
	updated, updates, err := s.apply(ctx, c, origin, req.FlightID, req.Updates, flight.ArrivalFields)
	if err != nil {
		fail(s.log, c, ActionUpdateArrival, req.FlightID, err)
		return nil, err
	}
	c.Emit(model.EventArrivalUpdated, model.ArrivalUpdated{Flight: updated.Sanitized(), SourceSessionID: origin})
	c.Emit(model.EventFlightUpdateAck, model.FlightUpdateAck{FlightID: updated.ID, Updates: updates})
	return updated, nil
}

// apply validates and persists a patch, then broadcasts it to the owning session
// and routes it to matching arrivals rooms. c is excluded from both broadcasts.
func (s *FlightService) apply(ctx context.Context, c *realtime.Client, sessionID, flightID string, patch map[string]any, allowed flight.FieldSet) (*model.Flight, map[string]any, error) {
	if flightID == "" {
		return nil, nil, errs.Invalid("flightId", "is required")
	}
	updates, err := flight.ValidatePatch(patch, allowed)
	if err != nil {
		return nil, nil, err
	}
	updated, err := s.store.UpdateFlight(ctx, sessionID, flightID, updates)
	if err != nil {
		return nil, nil, fmt.Errorf("update flight: %w", err)
	}
	s.index.Put(updated.ID, sessionID)

	pub := updated.Sanitized()
	s.publish(ctx, flightsRoom(sessionID), model.EventFlightUpdated, pub, c.ID)
	s.arrivals.Propagate(ctx, sessionID, pub, c.ID)
	return updated, updates, nil
}

// acknowledge delivers the result to the author directly rather than via the
// broadcast round trip.
func (s *FlightService) acknowledge(c *realtime.Client, f *model.Flight, updates map[string]any) {
	c.Emit(model.EventFlightUpdated, f.Sanitized())
	c.Emit(model.EventFlightUpdateAck, model.FlightUpdateAck{FlightID: f.ID, Updates: updates})
}

// Delete removes a flight from the client's session. Controllers only.
func (s *FlightService) Delete(ctx context.Context, c *realtime.Client, req model.DeleteFlightRequest) error {
	if !c.IsController() {
		fail(s.log, c, ActionDelete, req.FlightID, errs.ErrNotAuthorized)
		return errs.ErrNotAuthorized
	}
	if req.FlightID == "" {
		err := errs.Invalid("flightId", "is required")
		fail(s.log, c, ActionDelete, "", err)
		return err
	}
	if err := s.store.DeleteFlight(ctx, c.SessionID, req.FlightID); err != nil {
		err = fmt.Errorf("delete flight: %w", err)
		fail(s.log, c, ActionDelete, req.FlightID, err)
		return err
	}
	s.index.Remove(req.FlightID)

	msg := model.FlightDeleted{FlightID: req.FlightID}
	s.publish(ctx, flightsRoom(c.SessionID), model.EventFlightDeleted, msg, c.ID)
	c.Emit(model.EventFlightDeleted, msg)
	return nil
}

// UpdateSession changes session settings. Controllers only.
func (s *FlightService) UpdateSession(ctx context.Context, c *realtime.Client, req model.UpdateSessionRequest) (*model.Session, error) {
	if !c.IsController() {
		fail(s.log, c, ActionUpdateSession, "", errs.ErrNotAuthorized)
		return nil, errs.ErrNotAuthorized
	}
	if req.ActiveRunway == nil {
		err := errs.Invalid("activeRunway", "is required")
		fail(s.log, c, ActionUpdateSession, "", err)
		return nil, err
	}
	rwy := flight.Sanitize("runway", *req.ActiveRunway)
	sess, err := s.store.UpdateSession(ctx, c.SessionID, model.SessionPatch{ActiveRunway: &rwy})
	if err != nil {
		err = fmt.Errorf("update session: %w", err)
		fail(s.log, c, ActionUpdateSession, "", err)
		return nil, err
	}
	s.publish(ctx, flightsRoom(sess.ID), model.EventSessionUpdated, sess, c.ID)
	c.Emit(model.EventSessionUpdated, sess)
	return sess, nil
}

// IssuePDC stores a pre-departure clearance on the flight and marks it cleared.
func (s *FlightService) IssuePDC(ctx context.Context, c *realtime.Client, req model.IssuePDCRequest) error {
	if !c.IsController() {
		fail(s.log, c, ActionIssuePDC, req.FlightID, errs.ErrNotAuthorized)
		return errs.ErrNotAuthorized
	}
	text := flight.Sanitize("pdc_remarks", req.PDCText)
	if req.FlightID == "" || text == "" {
		err := errs.Invalid("pdcText", "flightId and pdcText are required")
		fail(s.log, c, ActionIssuePDC, req.FlightID, err)
		return err
	}
	updated, err := s.store.UpdateFlight(ctx, c.SessionID, req.FlightID, model.FlightUpdates{
		"pdc_remarks": text,
		"clearance":   true,
	})
	if err != nil {
		err = fmt.Errorf("issue pdc: %w", err)
		fail(s.log, c, ActionIssuePDC, req.FlightID, err)
		return err
	}
	room := flightsRoom(c.SessionID)
	issued := model.PDCIssued{FlightID: updated.ID, PDCText: text, IssuedBy: c.Username, UpdatedAt: updated.UpdatedAt}
	pub := updated.Sanitized()
	s.publish(ctx, room, model.EventFlightUpdated, pub, c.ID)
	s.publish(ctx, room, model.EventPDCIssued, issued, c.ID)
	c.Emit(model.EventFlightUpdated, pub)
	c.Emit(model.EventPDCIssued, issued)
	return nil
}

// RequestPDC lets anyone in the session ask controllers for a clearance.
func (s *FlightService) RequestPDC(ctx context.Context, c *realtime.Client, req model.RequestPDCRequest) error {
	if req.FlightID == "" {
		err := errs.Invalid("flightId", "is required")
		fail(s.log, c, ActionRequestPDC, "", err)
		return err
	}
	f, err := s.store.GetFlight(ctx, c.SessionID, req.FlightID)
	if err != nil {
		fail(s.log, c, ActionRequestPDC, req.FlightID, err)
		return err
	}
	callsign := flight.Sanitize("callsign", req.Callsign)
	if callsign == "" {
		callsign = f.Callsign
	}
	s.publish(ctx, flightsRoom(c.SessionID), model.EventPDCRequest, model.PDCRequest{
		FlightID:    f.ID,
		Callsign:    callsign,
		Note:        flight.Sanitize("remark", req.Note),
		RequestedBy: c.UserID,
		RequestedAt: s.now(),
	}, c.ID)
	return nil
}

// admitsEventController fails unless c holds the event-controller capability and
// the target session admits event controllers.
func (s *FlightService) admitsEventController(ctx context.Context, c *realtime.Client, sessionID string) error {
	if !c.EventController {
		return errs.ErrNotAuthorized
	}
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !sess.IsPFATC {
		return errs.ErrNotAuthorized
	}
	return nil
}

// ContactMe forwards a controller's request for a pilot to make contact.
// The target session defaults to the client's; other sessions need the
// event-controller capability.
func (s *FlightService) ContactMe(ctx context.Context, c *realtime.Client, req model.ContactMeRequest) error {
	sessionID := c.SessionID
	if req.SessionID != "" && req.SessionID != c.SessionID {
		if err := s.admitsEventController(ctx, c, req.SessionID); err != nil {
			fail(s.log, c, ActionContactMe, req.FlightID, err)
			return err
		}
		sessionID = req.SessionID
	}
	if !c.IsController() {
		fail(s.log, c, ActionContactMe, req.FlightID, errs.ErrNotAuthorized)
		return errs.ErrNotAuthorized
	}
	f, err := s.store.GetFlight(ctx, sessionID, req.FlightID)
	if err != nil {
		fail(s.log, c, ActionContactMe, req.FlightID, err)
		return err
	}
	s.publish(ctx, flightsRoom(sessionID), model.EventContactMe, model.ContactMe{
		FlightID: f.ID,
		Message:  flight.Sanitize("remark", req.Message),
		Station:  flight.Sanitize("station", req.Station),
		Position: flight.Sanitize("remark", req.Position),
		SentBy:   c.Username,
		SentAt:   s.now(),
	}, "")
	return nil
}
