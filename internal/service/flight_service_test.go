package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/pfcontrol/stripsync/internal/errs"
	"github.com/pfcontrol/stripsync/internal/model"
	"github.com/pfcontrol/stripsync/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ifrSquawk = regexp.MustCompile(`^[1-6]{4}$`)

func TestAddFlight(t *testing.T) {
	h := newHarness(t)
	author := h.conn(realtime.ChannelFlights, "jfk", "pilot1", model.RolePilot)
	other := h.conn(realtime.ChannelFlights, "jfk", "ctl1", model.RoleController)

	f := h.addFlight(author, model.FlightDraft{Callsign: "dal123", Aircraft: "b738", Arrival: "kbos", CruisingFL: "150"})

	assert.Equal(t, "DAL123", f.Callsign)
	assert.Equal(t, "KJFK", f.Departure, "departure defaults to the session airport")
	assert.Equal(t, "22R", f.Runway, "runway defaults to the active runway")
	assert.Equal(t, "DEEZZ5", f.SID)
	assert.Equal(t, "M", f.WTC)
	assert.Equal(t, model.FlightTypeIFR, f.FlightType)
	assert.Regexp(t, ifrSquawk, f.Squawk)
	assert.Len(t, f.AccessToken, 64)

	mine := events(drain(author), model.EventFlightAdded)
	require.Len(t, mine, 1)
	assert.Equal(t, f.AccessToken, decodeFrame[model.Flight](t, mine[0]).AccessToken)

	theirs := events(drain(other), model.EventFlightAdded)
	require.Len(t, theirs, 1)
	got := decodeFrame[model.Flight](t, theirs[0])
	assert.Equal(t, f.ID, got.ID)
	assert.Empty(t, got.AccessToken, "the access token is only sent to the author")

	sid, ok := h.index.Lookup(f.ID)
	require.True(t, ok)
	assert.Equal(t, "jfk", sid)
}

func TestAddFlightSquawk(t *testing.T) {
	h := newHarness(t)
	c := h.conn(realtime.ChannelFlights, "jfk", "pilot1", model.RolePilot)

	for i := 0; i < 20; i++ {
		vfr := h.addFlight(c, model.FlightDraft{Callsign: "N123AB", Aircraft: "C172", FlightType: "vfr"})
		assert.Equal(t, "7000", vfr.Squawk)
		assert.Equal(t, "L", vfr.WTC)

		ifr := h.addFlight(c, model.FlightDraft{Callsign: "AAL1", Aircraft: "A321", FlightType: "IFR"})
		assert.Regexp(t, ifrSquawk, ifr.Squawk)
	}
}

func TestAddFlightRejections(t *testing.T) {
	h := newHarness(t)
	c := h.conn(realtime.ChannelFlights, "egll", "pilot1", model.RolePilot)

	tests := []struct {
		name  string
		draft model.FlightDraft
		want  string
	}{
		{"missing callsign", model.FlightDraft{Aircraft: "A320"}, "callsign: is required"},
		{"bad flight type", model.FlightDraft{Callsign: "BAW1", FlightType: "SVFR"}, "flight_type: must be IFR or VFR"},
		{"no procedure", model.FlightDraft{Callsign: "BAW1", Runway: "09R"}, "no departure procedure for EGLL runway 09R"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.flights.Add(context.Background(), c, tt.draft)
			require.Error(t, err)
			got := events(drain(c), model.EventFlightError)
			require.Len(t, got, 1)
			fe := decodeFrame[model.FlightError](t, got[0])
			assert.Equal(t, ActionAdd, fe.Action)
			assert.Contains(t, fe.Error, tt.want)
		})
	}
	flights, err := h.store.ListFlights(context.Background(), "egll", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, flights)
}

func TestPilotCannotMutate(t *testing.T) {
	h := newHarness(t)
	ctl := h.conn(realtime.ChannelFlights, "jfk", "ctl1", model.RoleController)
	pilot := h.conn(realtime.ChannelFlights, "jfk", "pilot1", model.RolePilot)
	f := h.addFlight(ctl, model.FlightDraft{Callsign: "DAL1", Aircraft: "B738"})
	drain(ctl)
	drain(pilot)

	ctx := context.Background()
	_, err := h.flights.Update(ctx, pilot, model.UpdateFlightRequest{FlightID: f.ID, Updates: map[string]any{"remark": "hijack"}})
	assert.ErrorIs(t, err, errs.ErrNotAuthorized)
	err = h.flights.Delete(ctx, pilot, model.DeleteFlightRequest{FlightID: f.ID})
	assert.ErrorIs(t, err, errs.ErrNotAuthorized)

	got := events(drain(pilot), model.EventFlightError)
	require.Len(t, got, 2)
	for _, fr := range got {
		assert.Equal(t, "Not authorized", decodeFrame[model.FlightError](t, fr).Error)
	}
	assert.Empty(t, drain(ctl), "nothing is broadcast")

	stored, err := h.store.GetFlight(ctx, "jfk", f.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Remark)
	assert.Equal(t, f.UpdatedAt, stored.UpdatedAt)
}

func TestUpdateFlightLevel(t *testing.T) {
	tests := []struct {
		name  string
		value any
		ok    bool
	}{
		{"150 accepted", 150, true},
		{"string 150 accepted", "150", true},
		{"0 accepted", 0, true},
		{"200 accepted", 200, true},
		{"201 rejected", 201, false},
		{"152 rejected", 152, false},
		{"negative rejected", -5, false},
		{"fraction rejected", 150.5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctl := h.conn(realtime.ChannelFlights, "jfk", "ctl1", model.RoleController)
			f := h.addFlight(ctl, model.FlightDraft{Callsign: "DAL1", Aircraft: "B738"})
			drain(ctl)

			updated, err := h.flights.Update(context.Background(), ctl, model.UpdateFlightRequest{
				FlightID: f.ID,
				Updates:  map[string]any{"cruisingFL": tt.value},
			})
			stored, getErr := h.store.GetFlight(context.Background(), "jfk", f.ID)
			require.NoError(t, getErr)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, updated.CruisingFL, stored.CruisingFL)
				return
			}
			require.Error(t, err)
			assert.Equal(t, f.CruisingFL, stored.CruisingFL, "rejected patch leaves the store untouched")
			fe := events(drain(ctl), model.EventFlightError)
			require.Len(t, fe, 1)
			assert.Contains(t, decodeFrame[model.FlightError](t, fe[0]).Error, "cruisingFL")
		})
	}
}

func TestUpdateRejectsWholePatch(t *testing.T) {
	h := newHarness(t)
	ctl := h.conn(realtime.ChannelFlights, "jfk", "ctl1", model.RoleController)
	f := h.addFlight(ctl, model.FlightDraft{Callsign: "DAL1", Aircraft: "B738"})

	for name, patch := range map[string]map[string]any{
		"hidden":     {"hidden": true},
		"bad squawk": {"remark": "ok", "squawk": "12345"},
		"unknown":    {"remark": "ok", "owner": "me"},
		"empty":      {},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := h.flights.Update(context.Background(), ctl, model.UpdateFlightRequest{FlightID: f.ID, Updates: patch})
			var ve *errs.ValidationError
			require.ErrorAs(t, err, &ve)
			stored, err := h.store.GetFlight(context.Background(), "jfk", f.ID)
			require.NoError(t, err)
			assert.Empty(t, stored.Remark)
		})
	}
}

func TestUpdateDeliversExactlyOnce(t *testing.T) {
	h := newHarness(t)
	author := h.conn(realtime.ChannelFlights, "jfk", "ctl1", model.RoleController)
	peer := h.conn(realtime.ChannelFlights, "jfk", "ctl2", model.RoleController)
	pilot := h.conn(realtime.ChannelFlights, "jfk", "pilot1", model.RolePilot)
	outsider := h.conn(realtime.ChannelFlights, "bos", "ctl3", model.RoleController)

	f := h.addFlight(pilot, model.FlightDraft{Callsign: "DAL1", Aircraft: "B738"})
	for _, c := range []*realtime.Client{author, peer, pilot, outsider} {
		drain(c)
	}

	_, err := h.flights.Update(context.Background(), author, model.UpdateFlightRequest{
		FlightID: f.ID,
		Updates:  map[string]any{"remark": "  cleared to land ", "status": "taxi", "callsign": "dal-1"},
	})
	require.NoError(t, err)

	for _, c := range []*realtime.Client{author, peer, pilot} {
		got := events(drain(c), model.EventFlightUpdated)
		require.Len(t, got, 1, "client %s", c.UserID)
		fl := decodeFrame[model.Flight](t, got[0])
		assert.Equal(t, "cleared to land", fl.Remark)
		assert.Equal(t, "TAXI", fl.Status)
		assert.Equal(t, "DAL1", fl.Callsign)
		assert.Empty(t, fl.AccessToken)
	}
	assert.Empty(t, drain(outsider))
}

func TestUpdateAck(t *testing.T) {
	h := newHarness(t)
	author := h.conn(realtime.ChannelFlights, "jfk", "ctl1", model.RoleController)
	f := h.addFlight(author, model.FlightDraft{Callsign: "DAL1", Aircraft: "B738"})
	drain(author)

	_, err := h.flights.Update(context.Background(), author, model.UpdateFlightRequest{
		FlightID: f.ID,
		Updates:  map[string]any{"clearedFL": "50"},
	})
	require.NoError(t, err)
	acks := events(drain(author), model.EventFlightUpdateAck)
	require.Len(t, acks, 1)
	ack := decodeFrame[model.FlightUpdateAck](t, acks[0])
	assert.Equal(t, f.ID, ack.FlightID)
	assert.EqualValues(t, 50, ack.Updates["clearedFL"])
}

func TestUpdateMissingFlight(t *testing.T) {
	h := newHarness(t)
	ctl := h.conn(realtime.ChannelFlights, "jfk", "ctl1", model.RoleController)
	_, err := h.flights.Update(context.Background(), ctl, model.UpdateFlightRequest{FlightID: "nope", Updates: map[string]any{"remark": "x"}})
	assert.ErrorIs(t, err, errs.ErrFlightNotFound)
	fe := events(drain(ctl), model.EventFlightError)
	require.Len(t, fe, 1)
	assert.Equal(t, "Flight not found", decodeFrame[model.FlightError](t, fe[0]).Error)
}

func TestDeleteFlight(t *testing.T) {
	h := newHarness(t)
	author := h.conn(realtime.ChannelFlights, "jfk", "ctl1", model.RoleController)
	peer := h.conn(realtime.ChannelFlights, "jfk", "pilot1", model.RolePilot)
	f := h.addFlight(author, model.FlightDraft{Callsign: "DAL1", Aircraft: "B738"})
	drain(author)
	drain(peer)

	require.NoError(t, h.flights.Delete(context.Background(), author, model.DeleteFlightRequest{FlightID: f.ID}))
	for _, c := range []*realtime.Client{author, peer} {
		got := events(drain(c), model.EventFlightDeleted)
		require.Len(t, got, 1)
		assert.Equal(t, f.ID, decodeFrame[model.FlightDeleted](t, got[0]).FlightID)
	}
	_, ok := h.index.Lookup(f.ID)
	assert.False(t, ok)
	_, err := h.store.GetFlight(context.Background(), "jfk", f.ID)
	assert.ErrorIs(t, err, errs.ErrFlightNotFound)
}

func TestUpdateSession(t *testing.T) {
	h := newHarness(t)
	ctl := h.conn(realtime.ChannelFlights, "jfk", "ctl1", model.RoleController)
	pilot := h.conn(realtime.ChannelFlights, "jfk", "pilot1", model.RolePilot)
	rwy := "31l"

	_, err := h.flights.UpdateSession(context.Background(), pilot, model.UpdateSessionRequest{ActiveRunway: &rwy})
	assert.ErrorIs(t, err, errs.ErrNotAuthorized)
	drain(pilot)

	sess, err := h.flights.UpdateSession(context.Background(), ctl, model.UpdateSessionRequest{ActiveRunway: &rwy})
	require.NoError(t, err)
	assert.Equal(t, "31L", sess.ActiveRunway)
	for _, c := range []*realtime.Client{ctl, pilot} {
		got := events(drain(c), model.EventSessionUpdated)
		require.Len(t, got, 1)
		assert.Equal(t, "31L", decodeFrame[model.Session](t, got[0]).ActiveRunway)
	}
}

func TestIssueAndRequestPDC(t *testing.T) {
	h := newHarness(t)
	ctl := h.conn(realtime.ChannelFlights, "jfk", "ctl1", model.RoleController)
	pilot := h.conn(realtime.ChannelFlights, "jfk", "pilot1", model.RolePilot)
	f := h.addFlight(pilot, model.FlightDraft{Callsign: "DAL1", Aircraft: "B738"})
	drain(ctl)
	drain(pilot)
	ctx := context.Background()

	require.NoError(t, h.flights.RequestPDC(ctx, pilot, model.RequestPDCRequest{FlightID: f.ID, Note: "ready"}))
	reqs := events(drain(ctl), model.EventPDCRequest)
	require.Len(t, reqs, 1)
	assert.Equal(t, "DAL1", decodeFrame[model.PDCRequest](t, reqs[0]).Callsign)

	assert.ErrorIs(t, h.flights.IssuePDC(ctx, pilot, model.IssuePDCRequest{FlightID: f.ID, PDCText: "x"}), errs.ErrNotAuthorized)
	drain(pilot)

	require.NoError(t, h.flights.IssuePDC(ctx, ctl, model.IssuePDCRequest{FlightID: f.ID, PDCText: "CLRD TO KBOS VIA DEEZZ5"}))
	got := drain(pilot)
	require.Len(t, events(got, model.EventPDCIssued), 1)
	require.Len(t, events(got, model.EventFlightUpdated), 1)

	stored, err := h.store.GetFlight(ctx, "jfk", f.ID)
	require.NoError(t, err)
	assert.True(t, stored.Clearance)
	assert.Equal(t, "CLRD TO KBOS VIA DEEZZ5", stored.PDCRemarks)
}

func TestContactMe(t *testing.T) {
	h := newHarness(t)
	ctl := h.conn(realtime.ChannelFlights, "jfk", "ctl1", model.RoleController)
	pilot := h.conn(realtime.ChannelFlights, "jfk", "pilot1", model.RolePilot)
	f := h.addFlight(pilot, model.FlightDraft{Callsign: "DAL1", Aircraft: "B738"})
	drain(pilot)

	sector := h.conn(realtime.ChannelSector, "bos", "ctr1", model.RoleController)
	err := h.flights.ContactMe(context.Background(), sector, model.ContactMeRequest{SessionID: "jfk", FlightID: f.ID})
	assert.ErrorIs(t, err, errs.ErrNotAuthorized, "other sessions need the event controller capability")

	sector.EventController = true
	require.NoError(t, h.flights.ContactMe(context.Background(), sector, model.ContactMeRequest{
		SessionID: "jfk", FlightID: f.ID, Message: "contact me on 124.35", Station: "bos_ctr",
	}))
	require.NoError(t, h.flights.ContactMe(context.Background(), ctl, model.ContactMeRequest{FlightID: f.ID, Message: "monitor tower"}))

	got := events(drain(pilot), model.EventContactMe)
	require.Len(t, got, 2)
	assert.Equal(t, "BOS_CTR", decodeFrame[model.ContactMe](t, got[0]).Station)

	egll := h.conn(realtime.ChannelFlights, "egll", "ctl2", model.RoleController)
	g := h.addFlight(egll, model.FlightDraft{Callsign: "BAW1", Aircraft: "A320"})
	drain(egll)
	err = h.flights.ContactMe(context.Background(), sector, model.ContactMeRequest{SessionID: "egll", FlightID: g.ID})
	assert.ErrorIs(t, err, errs.ErrNotAuthorized, "egll does not admit event controllers")
	assert.Empty(t, events(drain(egll), model.EventContactMe))
}
