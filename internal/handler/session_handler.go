package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pfcontrol/stripsync/internal/errs"
	"github.com/pfcontrol/stripsync/internal/model"
	"github.com/pfcontrol/stripsync/internal/service"
	"go.uber.org/zap"
)

// SessionHandler handles REST API for sessions.
type SessionHandler struct {
	svc    service.SessionServicer
	logger *zap.Logger
}

// SessionUsersResponse is the body of GET /sessions/:id/users.
type SessionUsersResponse struct {
	SessionID string                    `json:"sessionId"`
	Users     []model.ActiveParticipant `json:"users"`
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(svc service.SessionServicer, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{svc: svc, logger: logger}
}

// DeleteSession godoc
// DELETE /sessions/:id
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session id required"})
		return
	}
	if err := h.svc.Delete(c.Request.Context(), sessionID); err != nil {
		if errors.Is(err, errs.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		h.logger.Error("delete session failed", zap.String("session_id", sessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete session"})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetSessionUsers godoc
// GET /sessions/:id/users
func (h *SessionHandler) GetSessionUsers(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session id required"})
		return
	}
	users, err := h.svc.Participants(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, errs.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		h.logger.Error("list session users failed", zap.String("session_id", sessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get users"})
		return
	}
	c.JSON(http.StatusOK, SessionUsersResponse{SessionID: sessionID, Users: users})
}
