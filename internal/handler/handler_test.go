package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pfcontrol/stripsync/internal/airport"
	"github.com/pfcontrol/stripsync/internal/atis"
	"github.com/pfcontrol/stripsync/internal/auth"
	"github.com/pfcontrol/stripsync/internal/directory"
	"github.com/pfcontrol/stripsync/internal/handler"
	"github.com/pfcontrol/stripsync/internal/model"
	"github.com/pfcontrol/stripsync/internal/presence"
	"github.com/pfcontrol/stripsync/internal/realtime"
	"github.com/pfcontrol/stripsync/internal/router"
	"github.com/pfcontrol/stripsync/internal/service"
	"github.com/pfcontrol/stripsync/internal/store"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticGenerator struct{}

func (staticGenerator) Generate(_ context.Context, req atis.Request) (string, error) {
	return req.ICAO + " INFORMATION " + req.Ident, nil
}

type server struct {
	*httptest.Server
	hub *realtime.Hub
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()

	st := store.NewMemoryStore()
	st.PutSession(model.Session{ID: "jfk", AccessID: "jfk-access-0001", AirportICAO: "KJFK", ActiveRunway: "22R", IsPFATC: true, CreatedAt: time.Now()})
	st.PutSession(model.Session{ID: "bos", AccessID: "bos-access-0001", AirportICAO: "KBOS", ActiveRunway: "27", CreatedAt: time.Now()})

	hub := realtime.NewHub(log)
	fabric := realtime.NewLocalFabric(hub)
	c := cron.New()
	dir := directory.NewStaticDirectory()

	index := service.NewFlightIndex()
	arrivals := service.NewArrivalRouter(st, fabric, index, 4, time.Hour, log)
	flights := service.NewFlightService(st, airport.MustLoad(), fabric, arrivals, index, log)
	sched := service.NewATISScheduler(c, 30*time.Minute, st, staticGenerator{}, fabric, log)
	ps := service.NewPresenceService(presence.NewMemoryStore(30*time.Second), hub, fabric, sched, log)
	overview := service.NewOverviewService(st, ps, dir, flights, hub, fabric, c, 15*time.Second, time.Hour, log)
	chat := service.NewChatService(fabric, service.NewMentionRouter(fabric, log), log)
	sector := service.NewSectorService(fabric, ps, log)
	sessions := service.NewSessionService(st, ps, index, fabric, log)
	gw := service.NewGateway(st, dir, auth.NewVerifier(""), true, log)

	ws := func(name string, ch handler.Channel) *handler.WSHandler {
		return handler.NewWSHandler(name, ch, gw, hub, handler.SocketConfig{MaxMessageSize: 64 << 10}, log)
	}
	r := router.New(
		handler.NewSessionHandler(sessions, log),
		router.Sockets{
			Flights:  ws(realtime.ChannelFlights, handler.NewFlightsChannel(flights, hub, log)),
			Arrivals: ws(realtime.ChannelArrivals, handler.NewArrivalsChannel(flights, hub, log)),
			Presence: ws(realtime.ChannelPresence, handler.NewPresenceChannel(ps, sched, log)),
			Chat:     ws(realtime.ChannelChat, handler.NewChatChannel(chat, hub, log)),
			Sector:   ws(realtime.ChannelSector, handler.NewSectorChannel(sector, flights, hub, log)),
			Overview: ws(realtime.ChannelOverview, handler.NewOverviewChannel(overview, log)),
		},
		handler.NewHealthHandler(hub, nil),
	)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &server{Server: srv, hub: hub}
}

func (s *server) dial(t *testing.T, path string, q url.Values) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(s.URL, "http") + path + "?" + q.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(model.Envelope{Event: event, Data: raw}))
}

// await reads frames until one named event arrives.
func await(t *testing.T, conn *websocket.Conn, event string) model.Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var env model.Envelope
		require.NoError(t, conn.ReadJSON(&env), "waiting for %s", event)
		if env.Event == event {
			return env
		}
	}
}

func TestFlightsSocket(t *testing.T) {
	s := newServer(t)
	ctl := s.dial(t, "/sockets/flights", url.Values{"sessionId": {"jfk"}, "accessId": {"jfk-access-0001"}, "userId": {"ctl"}})
	pilot := s.dial(t, "/sockets/flights", url.Values{"sessionId": {"jfk"}})
	require.Eventually(t, func() bool { return s.hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	// Garbage and unknown events are ignored without dropping the connection.
	require.NoError(t, ctl.WriteMessage(websocket.TextMessage, []byte("{not json")))
	send(t, ctl, "launchMissiles", map[string]any{})

	send(t, ctl, model.EventAddFlight, model.FlightDraft{Callsign: "dal1", Aircraft: "B738"})

	env := await(t, ctl, model.EventFlightAdded)
	var mine model.Flight
	require.NoError(t, json.Unmarshal(env.Data, &mine))
	assert.Equal(t, "DAL1", mine.Callsign)

	env = await(t, pilot, model.EventFlightAdded)
	var theirs model.Flight
	require.NoError(t, json.Unmarshal(env.Data, &theirs))
	assert.Equal(t, mine.ID, theirs.ID)
	assert.Empty(t, theirs.AccessToken)

	send(t, pilot, model.EventDeleteFlight, model.DeleteFlightRequest{FlightID: mine.ID})
	env = await(t, pilot, model.EventFlightError)
	var fe model.FlightError
	require.NoError(t, json.Unmarshal(env.Data, &fe))
	assert.Equal(t, service.ActionDelete, fe.Action)
}

func TestSocketRejected(t *testing.T) {
	s := newServer(t)
	for name, q := range map[string]url.Values{
		"unknown session":  {"sessionId": {"nowhere"}},
		"arrivals pilot":   {"sessionId": {"bos"}, "userId": {"u1"}},
		"malformed access": {"sessionId": {"bos"}, "accessId": {"x"}},
	} {
		t.Run(name, func(t *testing.T) {
			path := "/sockets/flights"
			if name == "arrivals pilot" {
				path = "/sockets/arrivals"
			}
			conn := s.dial(t, path, q)
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			_, _, err := conn.ReadMessage()
			assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
		})
	}
	assert.Zero(t, s.hub.ClientCount())
}

func TestSessionEndpoints(t *testing.T) {
	s := newServer(t)
	pres := s.dial(t, "/sockets/session-users", url.Values{"sessionId": {"bos"}, "userId": {"u1"}, "username": {"Una"}})
	await(t, pres, model.EventSessionUsersUpdate)
	flights := s.dial(t, "/sockets/flights", url.Values{"sessionId": {"bos"}})
	require.Eventually(t, func() bool { return s.hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(s.URL + "/sessions/bos/users")
	require.NoError(t, err)
	var body handler.SessionUsersResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body.Users, 1)
	assert.Equal(t, "Una", body.Users[0].Username)

	req, err := http.NewRequest(http.MethodDelete, s.URL+"/sessions/bos", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	for _, conn := range []*websocket.Conn{pres, flights} {
		env := await(t, conn, model.EventSessionClosed)
		assert.JSONEq(t, `{"sessionId":"bos"}`, string(env.Data))
		_, _, err := conn.ReadMessage()
		assert.Error(t, err, "connection is closed after sessionClosed")
	}

	resp, err = http.Get(s.URL + "/sessions/bos/users")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	for _, path := range []string{"/health", "/ready"} {
		resp, err := http.Get(s.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}
