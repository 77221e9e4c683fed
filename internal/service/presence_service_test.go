package service

import (
	"context"
	"testing"

	"github.com/pfcontrol/stripsync/internal/errs"
	"github.com/pfcontrol/stripsync/internal/model"
	"github.com/pfcontrol/stripsync/internal/presence"
	"github.com/pfcontrol/stripsync/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func lastUsers(t *testing.T, c *realtime.Client) []model.ActiveParticipant {
	t.Helper()
	got := events(drain(c), model.EventSessionUsersUpdate)
	require.NotEmpty(t, got)
	return decodeFrame[[]model.ActiveParticipant](t, got[len(got)-1])
}

func TestJoinReplacesDuplicateUser(t *testing.T) {
	h := newHarness(t)
	watcher, _ := h.join("bos", "watcher", model.RolePilot)

	_, leaveFirst := h.join("bos", "u1", model.RoleController)
	_, _ = h.join("bos", "u1", model.RoleController)

	users := lastUsers(t, watcher)
	assert.Len(t, users, 2, "distinct users only")

	// Closing one tab keeps the user present while another tab is open.
	leaveFirst()
	list, err := h.users.Participants(context.Background(), "bos")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestJoinRoles(t *testing.T) {
	h := newHarness(t)
	c := realtime.NewClient(realtime.ChannelPresence, "bos", "evt1", model.RoleController)
	c.EventController = true
	h.t.Cleanup(h.hub.Register(c))
	require.NoError(t, h.users.Join(context.Background(), c))

	users := lastUsers(t, c)
	require.Len(t, users, 1)
	assert.Equal(t, []string{RoleEventController, "controller"}, users[0].Roles)
	assert.Equal(t, 1, h.hub.RoomSize(realtime.UserRoom("evt1")))
}

func TestLastLeaveStopsATISTimer(t *testing.T) {
	h := newHarness(t)
	_, leaveA := h.join("jfk", "a", model.RoleController)
	_, leaveB := h.join("jfk", "b", model.RolePilot)
	require.True(t, h.atis.Has("jfk"))
	assert.Len(t, h.cron.Entries(), 1, "one timer per session")

	c, leaveC := h.join("jfk", "a2", model.RoleController)
	require.NoError(t, h.users.FieldEditingStart(context.Background(), c, model.FieldEditingRequest{FlightID: "f1", FieldName: "remark"}))

	leaveA()
	assert.True(t, h.atis.Has("jfk"))
	leaveB()
	assert.True(t, h.atis.Has("jfk"))

	leaveC()
	assert.False(t, h.atis.Has("jfk"))
	assert.Empty(t, h.cron.Entries())
	locks, err := h.presence.ListLocks(context.Background(), "jfk")
	require.NoError(t, err)
	assert.Empty(t, locks)

	_, _ = h.join("jfk", "a", model.RoleController)
	assert.True(t, h.atis.Has("jfk"), "reconnect starts a fresh timer")
	assert.Len(t, h.cron.Entries(), 1)
}

func TestLeaveIsIdempotent(t *testing.T) {
	h := newHarness(t)
	_, leave := h.join("jfk", "a", model.RoleController)
	leave()
	leave()
	assert.False(t, h.atis.Has("jfk"))
}

func TestNoTimerWithoutATISConfig(t *testing.T) {
	h := newHarness(t)
	_, _ = h.join("bos", "a", model.RoleController)
	assert.False(t, h.atis.Has("bos"))
}

func TestFieldEditingLocks(t *testing.T) {
	h := newHarness(t)
	ctl, _ := h.join("bos", "ctl", model.RoleController)
	pilot, _ := h.join("bos", "pilot", model.RolePilot)
	drain(ctl)
	drain(pilot)
	ctx := context.Background()

	err := h.users.FieldEditingStart(ctx, pilot, model.FieldEditingRequest{FlightID: "f1", FieldName: "remark"})
	assert.ErrorIs(t, err, errs.ErrNotAuthorized)
	err = h.users.FieldEditingStart(ctx, ctl, model.FieldEditingRequest{FlightID: "f1", FieldName: "bogus"})
	var ve *errs.ValidationError
	assert.ErrorAs(t, err, &ve)

	require.NoError(t, h.users.FieldEditingStart(ctx, ctl, model.FieldEditingRequest{FlightID: "f1", FieldName: "remark"}))
	got := events(drain(pilot), model.EventFieldEditingUpdate)
	require.Len(t, got, 1)
	locks := decodeFrame[[]model.FieldEditLock](t, got[0])
	require.Len(t, locks, 1)
	assert.Equal(t, "ctl", locks[0].UserID)

	require.NoError(t, h.users.FieldEditingStop(ctx, ctl, model.FieldEditingRequest{FlightID: "f1", FieldName: "remark"}))
	got = events(drain(pilot), model.EventFieldEditingUpdate)
	require.Len(t, got, 1)
	assert.Empty(t, decodeFrame[[]model.FieldEditLock](t, got[0]))
}

func TestPositionChange(t *testing.T) {
	h := newHarness(t)
	c, _ := h.join("bos", "ctl", model.RoleController)
	drain(c)
	require.NoError(t, h.users.PositionChange(context.Background(), c, model.PositionChangeRequest{Position: "KBOS_TWR"}))
	users := lastUsers(t, c)
	require.Len(t, users, 1)
	assert.Equal(t, "KBOS_TWR", users[0].Position)
}

// hookedStore runs afterRemove once, right after the next Remove returns.
type hookedStore struct {
	presence.Store
	afterRemove func()
}

func (s *hookedStore) Remove(ctx context.Context, sessionID, userID string) (int, error) {
	n, err := s.Store.Remove(ctx, sessionID, userID)
	if hook := s.afterRemove; hook != nil {
		s.afterRemove = nil
		hook()
	}
	return n, err
}

func TestJoinDuringLastLeave(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	st := &hookedStore{Store: h.presence}
	ps := NewPresenceService(st, h.hub, h.fabric, h.atis, zap.NewNop())

	a := realtime.NewClient(realtime.ChannelPresence, "jfk", "a", model.RoleController)
	unregisterA := h.hub.Register(a)
	require.NoError(t, ps.Join(ctx, a))
	require.True(t, h.atis.Has("jfk"))

	b := realtime.NewClient(realtime.ChannelPresence, "jfk", "b", model.RolePilot)
	t.Cleanup(h.hub.Register(b))
	st.afterRemove = func() { require.NoError(t, ps.Join(ctx, b)) }

	unregisterA()
	require.NoError(t, ps.Leave(ctx, a))

	users, err := ps.Participants(ctx, "jfk")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "b", users[0].ID)
	assert.True(t, h.atis.Has("jfk"), "b is still connected")
	assert.Len(t, h.cron.Entries(), 1)

	sessions, err := ps.ActiveSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"jfk"}, sessions)

	last := lastUsers(t, b)
	require.Len(t, last, 1)
	assert.Equal(t, "b", last[0].ID)
}
