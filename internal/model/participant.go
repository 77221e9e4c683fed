package model

import "time"

// Role is the connection role resolved once at connect time.
type Role string

const (
	RoleController Role = "controller"
	RolePilot      Role = "pilot"
)

// ActiveParticipant is one connected user in a session, shared across processes.
type ActiveParticipant struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar,omitempty"`
	Position string    `json:"position"`
	Roles    []string  `json:"roles"`
	JoinedAt time.Time `json:"joinedAt"`
}

// FieldEditLock marks a flight field as being edited by one user.
type FieldEditLock struct {
	FlightID  string    `json:"flightId"`
	FieldName string    `json:"fieldName"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// RoleBadge is a role shown next to a controller in overviews.
type RoleBadge struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

// ControllerProfile is the profile data used to enrich controller entries.
type ControllerProfile struct {
	UserID       string      `json:"userId"`
	Username     string      `json:"username"`
	Avatar       string      `json:"avatar,omitempty"`
	Rating       string      `json:"rating,omitempty"`
	Roles        []RoleBadge `json:"roles,omitempty"`
	EventBadges  []string    `json:"eventBadges,omitempty"`
	Capabilities []string    `json:"-"`
}
