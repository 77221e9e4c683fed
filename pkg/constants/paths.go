package constants

// HTTP paths.
const (
	PathHealth = "/health"
	PathReady  = "/ready"
)

// Socket paths, one per channel.
const (
	PathSocketFlights  = "/sockets/flights"
	PathSocketArrivals = "/sockets/arrivals"
	PathSocketPresence = "/sockets/session-users"
	PathSocketChat     = "/sockets/chat"
	PathSocketSector   = "/sockets/sector-controllers"
	PathSocketOverview = "/sockets/overview"
)
