package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pfcontrol/stripsync/internal/handler"
	"github.com/pfcontrol/stripsync/pkg/constants"
)

// Sockets holds one websocket handler per channel.
type Sockets struct {
	Flights  *handler.WSHandler
	Arrivals *handler.WSHandler
	Presence *handler.WSHandler
	Chat     *handler.WSHandler
	Sector   *handler.WSHandler
	Overview *handler.WSHandler
}

// New builds the HTTP router.
func New(
	sessionHandler *handler.SessionHandler,
	sockets Sockets,
	health *handler.HealthHandler,
) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET(constants.PathHealth, health.Health)
	r.GET(constants.PathReady, health.Ready)

	// REST sessions
	sessions := r.Group("/sessions")
	{
		sessions.DELETE("/:id", sessionHandler.DeleteSession)
		sessions.GET("/:id/users", sessionHandler.GetSessionUsers)
	}

	r.GET(constants.PathSocketFlights, sockets.Flights.ServeWS)
	r.GET(constants.PathSocketArrivals, sockets.Arrivals.ServeWS)
	r.GET(constants.PathSocketPresence, sockets.Presence.ServeWS)
	r.GET(constants.PathSocketChat, sockets.Chat.ServeWS)
	r.GET(constants.PathSocketSector, sockets.Sector.ServeWS)
	r.GET(constants.PathSocketOverview, sockets.Overview.ServeWS)

	return r
}
