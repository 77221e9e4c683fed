package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pfcontrol/stripsync/internal/errs"
	"github.com/pfcontrol/stripsync/internal/model"
	"github.com/pfcontrol/stripsync/internal/realtime"
	"github.com/pfcontrol/stripsync/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	messageTimeout = 15 * time.Second
	// inflightPerConn bounds concurrently running handlers of one connection.
	inflightPerConn = 16
)

// Channel is the behaviour of one socket channel.
type Channel interface {
	// Connect joins the client's rooms and sends its initial state.
	Connect(ctx context.Context, c *realtime.Client) error
	// Handle processes one inbound event.
	Handle(ctx context.Context, c *realtime.Client, event string, data json.RawMessage)
	// Disconnect reverts what Connect did. The client is already unregistered.
	Disconnect(ctx context.Context, c *realtime.Client)
}

// SocketConfig tunes the websocket endpoints.
type SocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	MaxMessageSize  int64
}

// WSHandler serves one channel's websocket endpoint.
type WSHandler struct {
	name     string
	channel  Channel
	gateway  *service.Gateway
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	maxMsg   int64
	logger   *zap.Logger
}

// NewWSHandler creates the websocket handler for the named channel.
func NewWSHandler(name string, ch Channel, gw *service.Gateway, hub *realtime.Hub, cfg SocketConfig, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		name:    name,
		channel: ch,
		gateway: gw,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			// Browser clients are served from other origins; identity is checked at the gateway.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		maxMsg: cfg.MaxMessageSize,
		logger: logger.With(zap.String("channel", name)),
	}
}

// handshakeFrom reads connection credentials from the query, the Authorization
// header or the auth_token cookie.
func handshakeFrom(r *http.Request) service.Handshake {
	q := r.URL.Query()
	h := service.Handshake{
		SessionID: q.Get("sessionId"),
		AccessID:  q.Get("accessId"),
		UserID:    q.Get("userId"),
		Username:  q.Get("username"),
		Token:     q.Get("token"),
	}
	h.IsEventController, _ = strconv.ParseBool(q.Get("isEventController"))
	if h.Token == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			h.Token = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if h.Token == "" {
		if ck, err := r.Cookie("auth_token"); err == nil {
			h.Token = ck.Value
		}
	}
	return h
}

// ServeWS upgrades the request, authenticates it and runs the connection until it closes.
func (h *WSHandler) ServeWS(c *gin.Context) {
	hs := handshakeFrom(c.Request)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	if h.maxMsg > 0 {
		conn.SetReadLimit(h.maxMsg)
	}

	client, err := h.gateway.Authenticate(c.Request.Context(), h.name, hs)
	if err != nil {
		h.logger.Info("connection rejected",
			zap.String("session_id", hs.SessionID),
			zap.String("user_id", hs.UserID),
			zap.Error(err))
		code := websocket.ClosePolicyViolation
		if !errors.Is(err, errs.ErrInvalidCredentials) && !errors.Is(err, errs.ErrNotAuthorized) && !errors.Is(err, errs.ErrCapabilityRevoked) {
			code = websocket.CloseInternalServerErr
		}
		closeConn(conn, code)
		return
	}

	kicked := make(chan struct{})
	var kickOnce sync.Once
	client.OnKick(func() { kickOnce.Do(func() { close(kicked) }) })

	cleanup := h.hub.Register(client)
	var disconnectOnce sync.Once
	disconnect := func() {
		disconnectOnce.Do(func() {
			cleanup()
			ctx, cancel := context.WithTimeout(context.Background(), messageTimeout)
			defer cancel()
			h.channel.Disconnect(ctx, client)
		})
	}
	defer disconnect()

	connectCtx, cancel := context.WithTimeout(context.Background(), messageTimeout)
	err = h.channel.Connect(connectCtx, client)
	cancel()
	if err != nil {
		h.logger.Error("connect failed",
			zap.String("session_id", client.SessionID),
			zap.String("user_id", client.UserID),
			zap.Error(err))
		closeConn(conn, websocket.CloseInternalServerErr)
		return
	}

	done := make(chan struct{})
	go func() {
		h.writePump(conn, client, kicked)
		close(done)
	}()
	h.readPump(conn, client)
	disconnect()
	<-done
}

func (h *WSHandler) readPump(conn *websocket.Conn, client *realtime.Client) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	var g errgroup.Group
	g.SetLimit(inflightPerConn)
	defer func() { _ = g.Wait() }()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Debug("read error", zap.String("client_id", client.ID), zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var env model.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			h.logger.Debug("malformed frame", zap.String("client_id", client.ID), zap.Error(err))
			continue
		}
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), messageTimeout)
			defer cancel()
			defer func() {
				if r := recover(); r != nil {
					h.logger.Error("handler panic",
						zap.String("event", env.Event),
						zap.String("session_id", client.SessionID),
						zap.Any("panic", r))
				}
			}()
			h.channel.Handle(ctx, client, env.Event, env.Data)
			return nil
		})
	}
}

// writePump drains the client's queue. When the client is kicked it flushes what
// is queued and closes the connection.
func (h *WSHandler) writePump(conn *websocket.Conn, client *realtime.Client, kicked <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	write := func(frame []byte) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, frame) == nil
	}
	for {
		select {
		case frame, ok := <-client.Send():
			if !ok {
				closeConn(conn, websocket.CloseNormalClosure)
				return
			}
			if !write(frame) {
				return
			}
		case <-kicked:
		flush:
			for {
				select {
				case frame, ok := <-client.Send():
					if !ok || !write(frame) {
						break flush
					}
				default:
					break flush
				}
			}
			closeConn(conn, websocket.CloseNormalClosure)
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func closeConn(conn *websocket.Conn, code int) {
	msg := websocket.FormatCloseMessage(code, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
