package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pfcontrol/stripsync/internal/airport"
	"github.com/pfcontrol/stripsync/internal/atis"
	"github.com/pfcontrol/stripsync/internal/auth"
	"github.com/pfcontrol/stripsync/internal/directory"
	"github.com/pfcontrol/stripsync/internal/model"
	"github.com/pfcontrol/stripsync/internal/presence"
	"github.com/pfcontrol/stripsync/internal/realtime"
	"github.com/pfcontrol/stripsync/internal/store"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls []atis.Request
	text  string
	err   error
}

func (g *fakeGenerator) Generate(_ context.Context, req atis.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if g.err != nil {
		return "", g.err
	}
	return g.text + " INFORMATION " + req.Ident, nil
}

type harness struct {
	t        *testing.T
	store    *store.MemoryStore
	presence *presence.MemoryStore
	hub      *realtime.Hub
	fabric   *realtime.LocalFabric
	cron     *cron.Cron
	dir      *directory.StaticDirectory
	gen      *fakeGenerator
	verifier *auth.Verifier

	index     *FlightIndex
	arrivals  *ArrivalRouter
	flights   *FlightService
	atis      *ATISScheduler
	users     *PresenceService
	overview  *OverviewService
	chat      *ChatService
	sector    *SectorService
	sessions  *SessionService
	gateway   *Gateway
}

var configuredATIS = model.ATISState{
	Letter:           "A",
	Text:             "KJFK INFORMATION A",
	ICAO:             "KJFK",
	LandingRunways:   []string{"22L"},
	DepartingRunways: []string{"22R"},
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zap.NewNop()
	h := &harness{
		t:        t,
		store:    store.NewMemoryStore(),
		presence: presence.NewMemoryStore(30 * time.Second),
		cron:     cron.New(),
		dir:      directory.NewStaticDirectory(),
		gen:      &fakeGenerator{text: "KJFK ATIS"},
		verifier: auth.NewVerifier("test-secret"),
	}
	h.hub = realtime.NewHub(log)
	h.fabric = realtime.NewLocalFabric(h.hub)

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h.store.PutSession(model.Session{ID: "jfk", AccessID: "jfk-access-0001", AirportICAO: "KJFK", ActiveRunway: "22R", IsPFATC: true, ATIS: configuredATIS, CreatedAt: created})
	h.store.PutSession(model.Session{ID: "bos", AccessID: "bos-access-0001", AirportICAO: "kbos", ActiveRunway: "27", IsPFATC: true, CreatedAt: created.Add(time.Minute)})
	h.store.PutSession(model.Session{ID: "egll", AccessID: "egll-access-001", AirportICAO: "EGLL", ActiveRunway: "27R", CreatedAt: created.Add(2 * time.Minute)})

	h.index = NewFlightIndex()
	h.arrivals = NewArrivalRouter(h.store, h.fabric, h.index, 8, 2*time.Hour, log)
	h.flights = NewFlightService(h.store, airport.MustLoad(), h.fabric, h.arrivals, h.index, log)
	h.atis = NewATISScheduler(h.cron, 30*time.Minute, h.store, h.gen, h.fabric, log)
	h.users = NewPresenceService(h.presence, h.hub, h.fabric, h.atis, log)
	h.overview = NewOverviewService(h.store, h.users, h.dir, h.flights, h.hub, h.fabric, h.cron, 15*time.Second, 2*time.Hour, log)
	h.chat = NewChatService(h.fabric, NewMentionRouter(h.fabric, log), log)
	h.sector = NewSectorService(h.fabric, h.users, log)
	h.sessions = NewSessionService(h.store, h.users, h.index, h.fabric, log)
	h.gateway = NewGateway(h.store, h.dir, h.verifier, true, log)
	return h
}

// conn registers a client and joins its channel's session room.
func (h *harness) conn(channel, sessionID, userID string, role model.Role) *realtime.Client {
	h.t.Helper()
	c := realtime.NewClient(channel, sessionID, userID, role)
	c.Username = userID
	cleanup := h.hub.Register(c)
	h.t.Cleanup(cleanup)
	h.hub.Join(c, realtime.SessionRoom(channel, sessionID))
	return c
}

// join connects a presence client the way the presence channel does.
func (h *harness) join(sessionID, userID string, role model.Role) (*realtime.Client, func()) {
	h.t.Helper()
	c := realtime.NewClient(realtime.ChannelPresence, sessionID, userID, role)
	c.Username = userID
	cleanup := h.hub.Register(c)
	require.NoError(h.t, h.users.Join(context.Background(), c))
	leave := func() {
		cleanup()
		require.NoError(h.t, h.users.Leave(context.Background(), c))
	}
	return c, leave
}

func (h *harness) addFlight(c *realtime.Client, draft model.FlightDraft) *model.Flight {
	h.t.Helper()
	f, err := h.flights.Add(context.Background(), c, draft)
	require.NoError(h.t, err)
	return f
}

type frame struct {
	Event string
	Data  json.RawMessage
}

func drain(c *realtime.Client) []frame {
	var out []frame
	for {
		select {
		case raw, ok := <-c.Send():
			if !ok {
				return out
			}
			var env model.Envelope
			if err := json.Unmarshal(raw, &env); err == nil {
				out = append(out, frame{Event: env.Event, Data: env.Data})
			}
		default:
			return out
		}
	}
}

func events(frames []frame, name string) []frame {
	var out []frame
	for _, f := range frames {
		if f.Event == name {
			out = append(out, f)
		}
	}
	return out
}

func decodeFrame[T any](t *testing.T, f frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Data, &v))
	return v
}
