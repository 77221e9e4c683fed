package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/pfcontrol/stripsync/internal/auth"
	"github.com/pfcontrol/stripsync/internal/directory"
	"github.com/pfcontrol/stripsync/internal/errs"
	"github.com/pfcontrol/stripsync/internal/model"
	"github.com/pfcontrol/stripsync/internal/realtime"
	"github.com/pfcontrol/stripsync/internal/store"
	"go.uber.org/zap"
)

var (
	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	accessIDPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{8,128}$`)
	userIDPattern    = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,64}$`)
)

// Handshake is what a client presents when opening a channel.
type Handshake struct {
	SessionID         string
	AccessID          string
	UserID            string
	Username          string
	Token             string
	IsEventController bool
}

// ChannelPolicy describes what a channel demands of a connection.
type ChannelPolicy struct {
	NeedsSession    bool
	NeedsIdentity   bool
	NeedsController bool
}

// Policies per channel.
var Policies = map[string]ChannelPolicy{
	realtime.ChannelFlights:  {NeedsSession: true},
	realtime.ChannelArrivals: {NeedsSession: true, NeedsController: true},
	realtime.ChannelPresence: {NeedsSession: true, NeedsIdentity: true},
	realtime.ChannelChat:     {NeedsSession: true, NeedsIdentity: true},
	realtime.ChannelSector:   {NeedsSession: true, NeedsIdentity: true, NeedsController: true},
	realtime.ChannelOverview: {NeedsIdentity: true},
}

// Gateway authenticates connections and resolves their role.
type Gateway struct {
	store    store.Store
	dir      directory.Directory
	verifier *auth.Verifier
	// trustQuery accepts userId/username from the query string when no verifier is configured.
	trustQuery bool
	log        *zap.Logger
}

// NewGateway creates the connection gateway.
func NewGateway(st store.Store, dir directory.Directory, verifier *auth.Verifier, trustQuery bool, log *zap.Logger) *Gateway {
	return &Gateway{store: st, dir: dir, verifier: verifier, trustQuery: trustQuery, log: log}
}

// Authenticate validates h for channel and returns a client carrying the resolved role.
// Any error means the connection must be closed without joining anything.
func (g *Gateway) Authenticate(ctx context.Context, channel string, h Handshake) (*realtime.Client, error) {
	policy, ok := Policies[channel]
	if !ok {
		return nil, fmt.Errorf("%w: unknown channel %q", errs.ErrInvalidCredentials, channel)
	}

	ident, err := g.identity(h)
	if err != nil {
		return nil, err
	}
	if policy.NeedsIdentity && ident.UserID == "" {
		return nil, fmt.Errorf("%w: identity required", errs.ErrInvalidCredentials)
	}

	role := model.RolePilot
	eventController := false
	var sess *model.Session

	if policy.NeedsSession {
		if !sessionIDPattern.MatchString(h.SessionID) {
			return nil, fmt.Errorf("%w: malformed session id", errs.ErrInvalidCredentials)
		}
		if h.AccessID != "" && !accessIDPattern.MatchString(h.AccessID) {
			return nil, fmt.Errorf("%w: malformed access id", errs.ErrInvalidCredentials)
		}
		sess, err = g.store.GetSession(ctx, h.SessionID)
		if err != nil {
			if errors.Is(err, errs.ErrSessionNotFound) {
				return nil, fmt.Errorf("%w: %v", errs.ErrInvalidCredentials, err)
			}
			return nil, err
		}
		if h.AccessID != "" && subtle.ConstantTimeCompare([]byte(h.AccessID), []byte(sess.AccessID)) == 1 {
			role = model.RoleController
		}
	}

	if h.IsEventController {
		ok, err := g.checkEventController(ctx, ident.UserID, sess, policy)
		if err != nil {
			return nil, err
		}
		// Off the overview, the capability only counts in sessions that admit it.
		eventController = ok || !policy.NeedsSession
		if ok {
			role = model.RoleController
		}
	}

	if policy.NeedsController && role != model.RoleController {
		return nil, fmt.Errorf("%w: controller role required", errs.ErrNotAuthorized)
	}

	if ident.UserID == "" {
		ident.UserID = "anon-" + uuid.New().String()
	}
	c := realtime.NewClient(channel, h.SessionID, ident.UserID, role)
	c.Username = ident.Username
	c.Avatar = ident.Avatar
	c.EventController = eventController
	g.log.Debug("connection authenticated",
		zap.String("channel", channel),
		zap.String("session_id", h.SessionID),
		zap.String("user_id", ident.UserID),
		zap.String("role", string(role)),
		zap.Bool("event_controller", eventController))
	return c, nil
}

// checkEventController verifies the claimed capability server-side and reports whether
// it grants the controller role in sess. A claim that does not verify is a rejection;
// a session that does not admit event controllers leaves the role unchanged.
func (g *Gateway) checkEventController(ctx context.Context, userID string, sess *model.Session, policy ChannelPolicy) (bool, error) {
	if userID == "" || !userIDPattern.MatchString(userID) {
		return false, fmt.Errorf("%w: event controller requires identity", errs.ErrInvalidCredentials)
	}
	has, err := g.dir.HasCapability(ctx, userID, directory.CapabilityEventController)
	if err != nil {
		return false, err
	}
	if !has {
		return false, fmt.Errorf("%w: event controller", errs.ErrCapabilityRevoked)
	}
	if !policy.NeedsSession {
		return false, nil
	}
	return sess != nil && sess.IsPFATC, nil
}

func (g *Gateway) identity(h Handshake) (auth.Identity, error) {
	if h.Token != "" && g.verifier != nil && g.verifier.Enabled() {
		id, err := g.verifier.Verify(h.Token)
		if err != nil {
			return auth.Identity{}, err
		}
		if h.UserID != "" && h.UserID != id.UserID {
			return auth.Identity{}, fmt.Errorf("%w: user id does not match token", errs.ErrInvalidCredentials)
		}
		return id, nil
	}
	if h.UserID == "" {
		return auth.Identity{}, nil
	}
	if !g.trustQuery {
		return auth.Identity{}, fmt.Errorf("%w: token required", errs.ErrInvalidCredentials)
	}
	if !userIDPattern.MatchString(h.UserID) {
		return auth.Identity{}, fmt.Errorf("%w: malformed user id", errs.ErrInvalidCredentials)
	}
	name := h.Username
	if name == "" {
		name = h.UserID
	}
	return auth.Identity{UserID: h.UserID, Username: name}, nil
}
