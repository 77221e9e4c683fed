package model

import (
	"encoding/json"
	"time"
)

// Client → server events.
const (
	EventAddFlight         = "addFlight"
	EventUpdateFlight      = "updateFlight"
	EventDeleteFlight      = "deleteFlight"
	EventUpdateSession     = "updateSession"
	EventIssuePDC          = "issuePDC"
	EventRequestPDC        = "requestPDC"
	EventContactMe         = "contactMe"
	EventFieldEditingStart = "fieldEditingStart"
	EventFieldEditingStop  = "fieldEditingStop"
	EventPositionChange    = "positionChange"
	EventATISGenerated     = "atisGenerated"
	EventUpdateArrival     = "updateArrival"
	EventChatMessage       = "chatMessage"
	EventStationSelected   = "stationSelected"
)

// Server → client events.
const (
	EventFlightAdded             = "flightAdded"
	EventFlightUpdated           = "flightUpdated"
	EventFlightDeleted           = "flightDeleted"
	EventFlightUpdateAck         = "flightUpdateAck"
	EventFlightError             = "flightError"
	EventArrivalUpdated          = "arrivalUpdated"
	EventSessionUpdated          = "sessionUpdated"
	EventSessionUsersUpdate      = "sessionUsersUpdate"
	EventFieldEditingUpdate      = "fieldEditingUpdate"
	EventATISUpdate              = "atisUpdate"
	EventPDCIssued               = "pdcIssued"
	EventPDCRequest              = "pdcRequest"
	EventOverviewData            = "overviewData"
	EventOverviewSessionUpdate   = "overviewSessionUpdate"
	EventChatMention             = "chatMention"
	EventSectorControllersUpdate = "sectorControllersUpdate"
	EventSessionClosed           = "sessionClosed"
)

// Envelope is the JSON frame exchanged on every channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// UpdateFlightRequest is the payload of updateFlight / updateArrival.
type UpdateFlightRequest struct {
	SessionID string         `json:"sessionId,omitempty"`
	FlightID  string         `json:"flightId"`
	Updates   map[string]any `json:"updates"`
}

// DeleteFlightRequest accepts either a bare id or {flightId}.
type DeleteFlightRequest struct {
	FlightID string `json:"flightId"`
}

// UnmarshalJSON accepts `"id"` as well as `{"flightId":"id"}`.
func (r *DeleteFlightRequest) UnmarshalJSON(b []byte) error {
	var id string
	if err := json.Unmarshal(b, &id); err == nil {
		r.FlightID = id
		return nil
	}
	type plain DeleteFlightRequest
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = DeleteFlightRequest(p)
	return nil
}

// UpdateSessionRequest is the payload of updateSession.
type UpdateSessionRequest struct {
	ActiveRunway *string `json:"activeRunway"`
}

// IssuePDCRequest is the payload of issuePDC.
type IssuePDCRequest struct {
	FlightID string `json:"flightId"`
	PDCText  string `json:"pdcText"`
}

// RequestPDCRequest is the payload of requestPDC.
type RequestPDCRequest struct {
	FlightID string `json:"flightId"`
	Callsign string `json:"callsign"`
	Note     string `json:"note"`
}

// ContactMeRequest is the payload of contactMe.
type ContactMeRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	FlightID  string `json:"flightId"`
	Message   string `json:"message"`
	Station   string `json:"station"`
	Position  string `json:"position"`
}

// FieldEditingRequest is the payload of fieldEditingStart/Stop.
type FieldEditingRequest struct {
	FlightID  string `json:"flightId"`
	FieldName string `json:"fieldName"`
}

// PositionChangeRequest is the payload of positionChange.
type PositionChangeRequest struct {
	Position string `json:"position"`
}

// StationSelectedRequest is the payload of stationSelected.
type StationSelectedRequest struct {
	Station string `json:"station"`
}

// ATISGeneratedRequest is the payload of atisGenerated.
type ATISGeneratedRequest struct {
	ATIS               ATISText `json:"atis"`
	ICAO               string   `json:"icao"`
	LandingRunways     []string `json:"landingRunways"`
	DepartingRunways   []string `json:"departingRunways"`
	SelectedApproaches []string `json:"selectedApproaches"`
	Remarks            string   `json:"remarks"`
}

// ATISText is the generated text and its identifier.
type ATISText struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

// ChatMessageRequest is the payload of chatMessage.
type ChatMessageRequest struct {
	Message  string   `json:"message"`
	Mentions []string `json:"mentions"`
}

// FlightError is sent to the initiator when an action fails.
type FlightError struct {
	Action   string `json:"action"`
	FlightID string `json:"flightId,omitempty"`
	Error    string `json:"error"`
}

// FlightUpdateAck confirms an update to its author.
type FlightUpdateAck struct {
	FlightID string         `json:"flightId"`
	Updates  map[string]any `json:"updates"`
}

// FlightDeleted announces a removed flight.
type FlightDeleted struct {
	FlightID string `json:"flightId"`
}

// ArrivalUpdated carries a flight into another session's arrivals view.
type ArrivalUpdated struct {
	Flight
	SourceSessionID string `json:"sourceSessionId"`
}

// ATISUpdate is broadcast whenever a session's ATIS changes.
type ATISUpdate struct {
	ATIS            ATISState `json:"atis"`
	UpdatedBy       string    `json:"updatedBy"`
	IsAutoGenerated bool      `json:"isAutoGenerated"`
}

// PDCIssued is broadcast when a controller issues a pre-departure clearance.
type PDCIssued struct {
	FlightID  string    `json:"flightId"`
	PDCText   string    `json:"pdcText"`
	IssuedBy  string    `json:"issuedBy"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PDCRequest is broadcast when a pilot asks for a clearance.
type PDCRequest struct {
	FlightID    string    `json:"flightId"`
	Callsign    string    `json:"callsign"`
	Note        string    `json:"note,omitempty"`
	RequestedBy string    `json:"requestedBy,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
}

// ContactMe is forwarded to the pilots of a session.
type ContactMe struct {
	FlightID string    `json:"flightId"`
	Message  string    `json:"message"`
	Station  string    `json:"station"`
	Position string    `json:"position"`
	SentBy   string    `json:"sentBy"`
	SentAt   time.Time `json:"sentAt"`
}

// ChatMessage is a broadcast chat line.
type ChatMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar,omitempty"`
	Message   string    `json:"message"`
	Mentions  []string  `json:"mentions,omitempty"`
	SentAt    time.Time `json:"sentAt"`
}

// ChatMention notifies a mentioned user.
type ChatMention struct {
	MessageID   string    `json:"messageId"`
	SessionID   string    `json:"sessionId"`
	Message     string    `json:"message"`
	MentionedBy string    `json:"mentionedBy"`
	SentAt      time.Time `json:"sentAt"`
}
