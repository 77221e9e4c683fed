package handler

import (
	"context"
	"encoding/json"

	"github.com/pfcontrol/stripsync/internal/errs"
	"github.com/pfcontrol/stripsync/internal/model"
	"github.com/pfcontrol/stripsync/internal/realtime"
	"github.com/pfcontrol/stripsync/internal/service"
	"go.uber.org/zap"
)

func decode[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 {
		return v, errs.Invalid("data", "payload is required")
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errs.Invalid("data", "malformed payload")
	}
	return v, nil
}

// reject reports a failure that happened before a service was reached.
func reject(log *zap.Logger, c *realtime.Client, action string, err error) {
	log.Debug("event rejected",
		zap.String("action", action),
		zap.String("session_id", c.SessionID),
		zap.String("user_id", c.UserID),
		zap.Error(err))
	c.Emit(model.EventFlightError, model.FlightError{Action: action, Error: errs.Public(err)})
}

func unknownEvent(log *zap.Logger, c *realtime.Client, event string) {
	log.Debug("unknown event",
		zap.String("event", event),
		zap.String("channel", c.Channel),
		zap.String("client_id", c.ID))
}

// FlightsChannel serves /sockets/flights.
type FlightsChannel struct {
	flights *service.FlightService
	hub     *realtime.Hub
	log     *zap.Logger
}

// NewFlightsChannel creates the flights channel.
func NewFlightsChannel(flights *service.FlightService, hub *realtime.Hub, log *zap.Logger) *FlightsChannel {
	return &FlightsChannel{flights: flights, hub: hub, log: log}
}

func (ch *FlightsChannel) Connect(_ context.Context, c *realtime.Client) error {
	ch.hub.Join(c, realtime.SessionRoom(realtime.ChannelFlights, c.SessionID))
	return nil
}

func (ch *FlightsChannel) Handle(ctx context.Context, c *realtime.Client, event string, data json.RawMessage) {
	switch event {
	case model.EventAddFlight:
		draft, err := decode[model.FlightDraft](data)
		if err != nil {
			reject(ch.log, c, service.ActionAdd, err)
			return
		}
		_, _ = ch.flights.Add(ctx, c, draft)
	case model.EventUpdateFlight:
		req, err := decode[model.UpdateFlightRequest](data)
		if err != nil {
			reject(ch.log, c, service.ActionUpdate, err)
			return
		}
		_, _ = ch.flights.Update(ctx, c, req)
	case model.EventDeleteFlight:
		req, err := decode[model.DeleteFlightRequest](data)
		if err != nil {
			reject(ch.log, c, service.ActionDelete, err)
			return
		}
		_ = ch.flights.Delete(ctx, c, req)
	case model.EventUpdateSession:
		req, err := decode[model.UpdateSessionRequest](data)
		if err != nil {
			reject(ch.log, c, service.ActionUpdateSession, err)
			return
		}
		_, _ = ch.flights.UpdateSession(ctx, c, req)
	case model.EventIssuePDC:
		req, err := decode[model.IssuePDCRequest](data)
		if err != nil {
			reject(ch.log, c, service.ActionIssuePDC, err)
			return
		}
		_ = ch.flights.IssuePDC(ctx, c, req)
	case model.EventRequestPDC:
		req, err := decode[model.RequestPDCRequest](data)
		if err != nil {
			reject(ch.log, c, service.ActionRequestPDC, err)
			return
		}
		_ = ch.flights.RequestPDC(ctx, c, req)
	case model.EventContactMe:
		req, err := decode[model.ContactMeRequest](data)
		if err != nil {
			reject(ch.log, c, service.ActionContactMe, err)
			return
		}
		_ = ch.flights.ContactMe(ctx, c, req)
	default:
		unknownEvent(ch.log, c, event)
	}
}

func (ch *FlightsChannel) Disconnect(context.Context, *realtime.Client) {}

// ArrivalsChannel serves /sockets/arrivals.
type ArrivalsChannel struct {
	flights *service.FlightService
	hub     *realtime.Hub
	log     *zap.Logger
}

// NewArrivalsChannel creates the arrivals channel.
func NewArrivalsChannel(flights *service.FlightService, hub *realtime.Hub, log *zap.Logger) *ArrivalsChannel {
	return &ArrivalsChannel{flights: flights, hub: hub, log: log}
}

func (ch *ArrivalsChannel) Connect(_ context.Context, c *realtime.Client) error {
	ch.hub.Join(c, realtime.SessionRoom(realtime.ChannelArrivals, c.SessionID))
	return nil
}

func (ch *ArrivalsChannel) Handle(ctx context.Context, c *realtime.Client, event string, data json.RawMessage) {
	if event != model.EventUpdateArrival {
		unknownEvent(ch.log, c, event)
		return
	}
	req, err := decode[model.UpdateFlightRequest](data)
	if err != nil {
		reject(ch.log, c, service.ActionUpdateArrival, err)
		return
	}
	_, _ = ch.flights.UpdateArrival(ctx, c, req)
}

func (ch *ArrivalsChannel) Disconnect(context.Context, *realtime.Client) {}

// PresenceChannel serves /sockets/session-users.
type PresenceChannel struct {
	presence *service.PresenceService
	atis     *service.ATISScheduler
	log      *zap.Logger
}

// NewPresenceChannel creates the presence channel.
func NewPresenceChannel(ps *service.PresenceService, sched *service.ATISScheduler, log *zap.Logger) *PresenceChannel {
	return &PresenceChannel{presence: ps, atis: sched, log: log}
}

func (ch *PresenceChannel) Connect(ctx context.Context, c *realtime.Client) error {
	return ch.presence.Join(ctx, c)
}

func (ch *PresenceChannel) Handle(ctx context.Context, c *realtime.Client, event string, data json.RawMessage) {
	var err error
	switch event {
	case model.EventPositionChange:
		var req model.PositionChangeRequest
		if req, err = decode[model.PositionChangeRequest](data); err == nil {
			err = ch.presence.PositionChange(ctx, c, req)
		}
	case model.EventFieldEditingStart:
		var req model.FieldEditingRequest
		if req, err = decode[model.FieldEditingRequest](data); err == nil {
			err = ch.presence.FieldEditingStart(ctx, c, req)
		}
	case model.EventFieldEditingStop:
		var req model.FieldEditingRequest
		if req, err = decode[model.FieldEditingRequest](data); err == nil {
			err = ch.presence.FieldEditingStop(ctx, c, req)
		}
	case model.EventATISGenerated:
		var req model.ATISGeneratedRequest
		if req, err = decode[model.ATISGeneratedRequest](data); err == nil {
			_, err = ch.atis.ApplyGenerated(ctx, c, req)
		}
	default:
		unknownEvent(ch.log, c, event)
		return
	}
	if err != nil {
		if !errs.IsBenign(err) {
			ch.log.Error("presence event failed",
				zap.String("event", event),
				zap.String("session_id", c.SessionID),
				zap.Error(err))
		}
		reject(ch.log, c, event, err)
	}
}

func (ch *PresenceChannel) Disconnect(ctx context.Context, c *realtime.Client) {
	if err := ch.presence.Leave(ctx, c); err != nil {
		ch.log.Error("presence leave failed",
			zap.String("session_id", c.SessionID),
			zap.String("user_id", c.UserID),
			zap.Error(err))
	}
}

// ChatChannel serves /sockets/chat.
type ChatChannel struct {
	chat *service.ChatService
	hub  *realtime.Hub
	log  *zap.Logger
}

// NewChatChannel creates the chat channel.
func NewChatChannel(chat *service.ChatService, hub *realtime.Hub, log *zap.Logger) *ChatChannel {
	return &ChatChannel{chat: chat, hub: hub, log: log}
}

func (ch *ChatChannel) Connect(_ context.Context, c *realtime.Client) error {
	ch.hub.Join(c, realtime.SessionRoom(realtime.ChannelChat, c.SessionID))
	return nil
}

func (ch *ChatChannel) Handle(ctx context.Context, c *realtime.Client, event string, data json.RawMessage) {
	if event != model.EventChatMessage {
		unknownEvent(ch.log, c, event)
		return
	}
	req, err := decode[model.ChatMessageRequest](data)
	if err == nil {
		_, err = ch.chat.Message(ctx, c, req)
	}
	if err != nil {
		reject(ch.log, c, event, err)
	}
}

func (ch *ChatChannel) Disconnect(context.Context, *realtime.Client) {}

// SectorChannel serves /sockets/sector-controllers.
type SectorChannel struct {
	sector  *service.SectorService
	flights *service.FlightService
	hub     *realtime.Hub
	log     *zap.Logger
}

// NewSectorChannel creates the sector-controllers channel.
func NewSectorChannel(sector *service.SectorService, flights *service.FlightService, hub *realtime.Hub, log *zap.Logger) *SectorChannel {
	return &SectorChannel{sector: sector, flights: flights, hub: hub, log: log}
}

func (ch *SectorChannel) Connect(_ context.Context, c *realtime.Client) error {
	ch.hub.Join(c, realtime.SessionRoom(realtime.ChannelSector, c.SessionID))
	ch.hub.Join(c, realtime.RoomSectorControllers)
	return nil
}

func (ch *SectorChannel) Handle(ctx context.Context, c *realtime.Client, event string, data json.RawMessage) {
	switch event {
	case model.EventStationSelected:
		req, err := decode[model.StationSelectedRequest](data)
		if err == nil {
			_, err = ch.sector.StationSelected(ctx, c, req)
		}
		if err != nil {
			reject(ch.log, c, event, err)
		}
	case model.EventContactMe:
		req, err := decode[model.ContactMeRequest](data)
		if err != nil {
			reject(ch.log, c, service.ActionContactMe, err)
			return
		}
		_ = ch.flights.ContactMe(ctx, c, req)
	default:
		unknownEvent(ch.log, c, event)
	}
}

func (ch *SectorChannel) Disconnect(context.Context, *realtime.Client) {}

// OverviewChannel serves /sockets/overview.
type OverviewChannel struct {
	overview *service.OverviewService
	log      *zap.Logger
}

// NewOverviewChannel creates the overview channel.
func NewOverviewChannel(ov *service.OverviewService, log *zap.Logger) *OverviewChannel {
	return &OverviewChannel{overview: ov, log: log}
}

func (ch *OverviewChannel) Connect(ctx context.Context, c *realtime.Client) error {
	return ch.overview.Attach(ctx, c)
}

func (ch *OverviewChannel) Handle(ctx context.Context, c *realtime.Client, event string, data json.RawMessage) {
	if event != model.EventUpdateFlight {
		unknownEvent(ch.log, c, event)
		return
	}
	req, err := decode[model.UpdateFlightRequest](data)
	if err != nil {
		reject(ch.log, c, service.ActionUpdate, err)
		return
	}
	_, _ = ch.overview.UpdateFlight(ctx, c, req)
}

func (ch *OverviewChannel) Disconnect(context.Context, *realtime.Client) {
	ch.overview.Detach()
}
