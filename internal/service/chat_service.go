package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pfcontrol/stripsync/internal/errs"
	"github.com/pfcontrol/stripsync/internal/flight"
	"github.com/pfcontrol/stripsync/internal/model"
	"github.com/pfcontrol/stripsync/internal/realtime"
	"go.uber.org/zap"
)

// MentionRouter delivers targeted notifications to a user's private room.
type MentionRouter struct {
	fabric realtime.Fabric
	log    *zap.Logger
}

// NewMentionRouter creates a mention router.
func NewMentionRouter(fabric realtime.Fabric, log *zap.Logger) *MentionRouter {
	return &MentionRouter{fabric: fabric, log: log}
}

// SendMentionToUser emits chatMention to every connection of userID on any
// process. A user with no connection receives nothing.
func (m *MentionRouter) SendMentionToUser(ctx context.Context, userID string, mention model.ChatMention) error {
	if userID == "" {
		return errs.Invalid("userId", "is required")
	}
	return m.fabric.Publish(ctx, realtime.UserRoom(userID), model.EventChatMention, mention, "")
}

// ChatService relays chat lines within a session.
type ChatService struct {
	fabric   realtime.Fabric
	mentions *MentionRouter
	log      *zap.Logger
	now      func() time.Time
}

// NewChatService creates the chat service.
func NewChatService(fabric realtime.Fabric, mentions *MentionRouter, log *zap.Logger) *ChatService {
	return &ChatService{fabric: fabric, mentions: mentions, log: log, now: time.Now}
}

// Message broadcasts a chat line to the session and notifies each mentioned user once.
func (s *ChatService) Message(ctx context.Context, c *realtime.Client, req model.ChatMessageRequest) (*model.ChatMessage, error) {
	text := flight.Sanitize("remark", req.Message)
	if text == "" {
		return nil, errs.Invalid("message", "is required")
	}
	msg := &model.ChatMessage{
		ID:        uuid.New().String(),
		SessionID: c.SessionID,
		UserID:    c.UserID,
		Username:  c.Username,
		Avatar:    c.Avatar,
		Message:   text,
		SentAt:    s.now().UTC(),
	}
	seen := make(map[string]struct{}, len(req.Mentions))
	for _, uid := range req.Mentions {
		if _, dup := seen[uid]; dup || uid == "" || uid == c.UserID || !userIDPattern.MatchString(uid) {
			continue
		}
		seen[uid] = struct{}{}
		msg.Mentions = append(msg.Mentions, uid)
	}

	room := realtime.SessionRoom(realtime.ChannelChat, c.SessionID)
	if err := s.fabric.Publish(ctx, room, model.EventChatMessage, msg, ""); err != nil {
		return nil, err
	}
	mentionedBy := c.Username
	if mentionedBy == "" {
		mentionedBy = c.UserID
	}
	for _, uid := range msg.Mentions {
		err := s.mentions.SendMentionToUser(ctx, uid, model.ChatMention{
			MessageID:   msg.ID,
			SessionID:   c.SessionID,
			Message:     text,
			MentionedBy: mentionedBy,
			SentAt:      msg.SentAt,
		})
		if err != nil {
			s.log.Warn("mention delivery failed", zap.String("user_id", uid), zap.Error(err))
		}
	}
	return msg, nil
}

// SectorSelection is broadcast when a sector controller picks a station.
type SectorSelection struct {
	SessionID  string    `json:"sessionId"`
	UserID     string    `json:"userId"`
	Username   string    `json:"username"`
	Station    string    `json:"station"`
	SelectedAt time.Time `json:"selectedAt"`
}

// SectorService tracks station selections of sector controllers.
type SectorService struct {
	fabric   realtime.Fabric
	presence *PresenceService
	log      *zap.Logger
	now      func() time.Time
}

// NewSectorService creates the sector service.
func NewSectorService(fabric realtime.Fabric, ps *PresenceService, log *zap.Logger) *SectorService {
	return &SectorService{fabric: fabric, presence: ps, log: log, now: time.Now}
}

// StationSelected records c's station as its presence position, when c is present
// in the session, and announces it to all sector controllers.
func (s *SectorService) StationSelected(ctx context.Context, c *realtime.Client, req model.StationSelectedRequest) (*SectorSelection, error) {
	station := flight.Sanitize("station", req.Station)
	if station == "" {
		return nil, errs.Invalid("station", "is required")
	}
	if err := s.presence.PositionChange(ctx, c, model.PositionChangeRequest{Position: station}); err != nil {
		s.log.Warn("station position not stored", zap.String("session_id", c.SessionID), zap.Error(err))
	}
	sel := &SectorSelection{
		SessionID:  c.SessionID,
		UserID:     c.UserID,
		Username:   c.Username,
		Station:    station,
		SelectedAt: s.now().UTC(),
	}
	if err := s.fabric.Publish(ctx, realtime.RoomSectorControllers, model.EventSectorControllersUpdate, sel, ""); err != nil {
		return nil, err
	}
	return sel, nil
}
