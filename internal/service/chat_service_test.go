package service

import (
	"context"
	"testing"

	"github.com/pfcontrol/stripsync/internal/errs"
	"github.com/pfcontrol/stripsync/internal/model"
	"github.com/pfcontrol/stripsync/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestChatMessage(t *testing.T) {
	h := newHarness(t)
	author := h.conn(realtime.ChannelChat, "bos", "alice", model.RoleController)
	peer := h.conn(realtime.ChannelChat, "bos", "bob", model.RolePilot)
	other := h.conn(realtime.ChannelChat, "jfk", "carol", model.RolePilot)
	bobPresence, _ := h.join("bos", "bob", model.RolePilot)
	alicePresence, _ := h.join("bos", "alice", model.RoleController)
	drain(bobPresence)
	drain(alicePresence)

	msg, err := h.chat.Message(context.Background(), author, model.ChatMessageRequest{
		Message:  "  bob taxi via A  ",
		Mentions: []string{"bob", "bob", "alice", "", "bad id!"},
	})
	require.NoError(t, err)
	assert.Equal(t, "bob taxi via A", msg.Message)
	assert.Equal(t, []string{"bob"}, msg.Mentions, "deduplicated, without the author")
	assert.NotEmpty(t, msg.ID)

	for _, c := range []*realtime.Client{author, peer} {
		got := events(drain(c), model.EventChatMessage)
		require.Len(t, got, 1)
		assert.Equal(t, msg.ID, decodeFrame[model.ChatMessage](t, got[0]).ID)
	}
	assert.Empty(t, drain(other))

	mentions := events(drain(bobPresence), model.EventChatMention)
	require.Len(t, mentions, 1)
	m := decodeFrame[model.ChatMention](t, mentions[0])
	assert.Equal(t, msg.ID, m.MessageID)
	assert.Equal(t, "alice", m.MentionedBy)
	assert.Empty(t, events(drain(alicePresence), model.EventChatMention))
}

func TestChatMessageRequiresText(t *testing.T) {
	h := newHarness(t)
	author := h.conn(realtime.ChannelChat, "bos", "alice", model.RoleController)
	_, err := h.chat.Message(context.Background(), author, model.ChatMessageRequest{Message: " \n "})
	var ve *errs.ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Empty(t, drain(author))
}

func TestSendMentionToUser(t *testing.T) {
	h := newHarness(t)
	router := NewMentionRouter(h.fabric, zap.NewNop())
	assert.Error(t, router.SendMentionToUser(context.Background(), "", model.ChatMention{}))
	// Nobody connected: delivered to no one, not an error.
	assert.NoError(t, router.SendMentionToUser(context.Background(), "ghost", model.ChatMention{MessageID: "m1"}))
}

func TestStationSelected(t *testing.T) {
	h := newHarness(t)
	sector := h.conn(realtime.ChannelSector, "bos", "ctl", model.RoleController)
	h.hub.Join(sector, realtime.RoomSectorControllers)
	remote := h.conn(realtime.ChannelSector, "jfk", "ctl2", model.RoleController)
	h.hub.Join(remote, realtime.RoomSectorControllers)
	presenceConn, _ := h.join("bos", "ctl", model.RoleController)
	drain(presenceConn)

	sel, err := h.sector.StationSelected(context.Background(), sector, model.StationSelectedRequest{Station: "bos_app"})
	require.NoError(t, err)
	assert.Equal(t, "BOS_APP", sel.Station)

	got := events(drain(remote), model.EventSectorControllersUpdate)
	require.Len(t, got, 1)
	assert.Equal(t, "bos", decodeFrame[SectorSelection](t, got[0]).SessionID)

	users := lastUsers(t, presenceConn)
	require.Len(t, users, 1)
	assert.Equal(t, "BOS_APP", users[0].Position)

	_, err = h.sector.StationSelected(context.Background(), sector, model.StationSelectedRequest{Station: "  "})
	var ve *errs.ValidationError
	assert.ErrorAs(t, err, &ve)
}
