package realtime

// Channel names, one per socket path.
const (
	ChannelFlights  = "flights"
	ChannelArrivals = "arrivals"
	ChannelPresence = "session-users"
	ChannelChat     = "chat"
	ChannelSector   = "sector-controllers"
	ChannelOverview = "overview"
)

// RoomOverview is the single room of overview clients.
const RoomOverview = "overview"

// RoomSectorControllers holds every sector controller regardless of session.
const RoomSectorControllers = "sector-controllers"

// SessionRoom is the room of a session on a channel.
func SessionRoom(channel, sessionID string) string {
	return channel + ":" + sessionID
}

// UserRoom is a user's private room for mentions.
func UserRoom(userID string) string {
	return "user:" + userID
}

// SessionChannels lists the channels that have a per-session room.
var SessionChannels = []string{ChannelFlights, ChannelArrivals, ChannelPresence, ChannelChat, ChannelSector}
