package model

import "time"

// OverviewController is a connected controller with profile enrichment.
type OverviewController struct {
	ActiveParticipant
	Rating      string      `json:"rating,omitempty"`
	RoleBadges  []RoleBadge `json:"roleBadges,omitempty"`
	EventBadges []string    `json:"eventBadges,omitempty"`
}

// OverviewSession is one active session in the overview.
type OverviewSession struct {
	SessionID    string               `json:"sessionId"`
	AirportICAO  string               `json:"airportIcao"`
	ActiveRunway string               `json:"activeRunway"`
	CreatedAt    time.Time            `json:"createdAt"`
	CreatedBy    string               `json:"createdBy,omitempty"`
	IsPFATC      bool                 `json:"isPFATC"`
	ActiveUsers  int                  `json:"activeUsers"`
	Controllers  []OverviewController `json:"controllers"`
	Flights      []Flight             `json:"flights"`
	FlightCount  int                  `json:"flightCount"`
}

// OverviewSnapshot is the full payload of overviewData.
type OverviewSnapshot struct {
	ActiveSessions      []OverviewSession   `json:"activeSessions"`
	TotalActiveSessions int                 `json:"totalActiveSessions"`
	TotalFlights        int                 `json:"totalFlights"`
	ArrivalsByAirport   map[string][]Flight `json:"arrivalsByAirport"`
	LastUpdated         time.Time           `json:"lastUpdated"`
}
