package model

import "time"

// Flight rules.
const (
	FlightTypeIFR = "IFR"
	FlightTypeVFR = "VFR"
)

// Flight is one flight strip.
type Flight struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Callsign    string    `json:"callsign"`
	Aircraft    string    `json:"aircraft"`
	WTC         string    `json:"wtc"`
	FlightType  string    `json:"flight_type"`
	Departure   string    `json:"departure"`
	Arrival     string    `json:"arrival"`
	Alternate   string    `json:"alternate,omitempty"`
	Route       string    `json:"route"`
	Runway      string    `json:"runway"`
	SID         string    `json:"sid"`
	STAR        string    `json:"star"`
	CruisingFL  int       `json:"cruisingFL"`
	ClearedFL   int       `json:"clearedFL"`
	Squawk      string    `json:"squawk"`
	Status      string    `json:"status"`
	Clearance   bool      `json:"clearance"`
	Remark      string    `json:"remark"`
	Gate        string    `json:"gate"`
	Stand       string    `json:"stand"`
	PDCRemarks  string    `json:"pdc_remarks,omitempty"`
	Hidden      bool      `json:"hidden"`
	AccessToken string    `json:"access_token,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Sanitized returns a copy safe for broadcast: the pilot access token never leaves the author.
func (f Flight) Sanitized() Flight {
	f.AccessToken = ""
	return f
}

// FlightDraft is the client payload of addFlight.
type FlightDraft struct {
	Callsign   string `json:"callsign"`
	Aircraft   string `json:"aircraft"`
	FlightType string `json:"flight_type"`
	Departure  string `json:"departure"`
	Arrival    string `json:"arrival"`
	Alternate  string `json:"alternate"`
	Route      string `json:"route"`
	Runway     string `json:"runway"`
	Stand      string `json:"stand"`
	Gate       string `json:"gate"`
	CruisingFL any    `json:"cruisingFL"`
	Remark     string `json:"remark"`
}

// FlightFromEntity converts a stored row.
func FlightFromEntity(e *FlightEntity) *Flight {
	return &Flight{
		ID:          e.ID,
		SessionID:   e.SessionID,
		Callsign:    e.Callsign,
		Aircraft:    e.Aircraft,
		WTC:         e.WTC,
		FlightType:  e.FlightType,
		Departure:   e.Departure,
		Arrival:     e.Arrival,
		Alternate:   e.Alternate,
		Route:       e.Route,
		Runway:      e.Runway,
		SID:         e.SID,
		STAR:        e.STAR,
		CruisingFL:  e.CruisingFL,
		ClearedFL:   e.ClearedFL,
		Squawk:      e.Squawk,
		Status:      e.Status,
		Clearance:   e.Clearance,
		Remark:      e.Remark,
		Gate:        e.Gate,
		Stand:       e.Stand,
		PDCRemarks:  e.PDCRemarks,
		Hidden:      e.Hidden,
		AccessToken: e.AccessToken,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

// FlightToEntity converts to a stored row.
func FlightToEntity(f *Flight) *FlightEntity {
	return &FlightEntity{
		ID:          f.ID,
		SessionID:   f.SessionID,
		Callsign:    f.Callsign,
		Aircraft:    f.Aircraft,
		WTC:         f.WTC,
		FlightType:  f.FlightType,
		Departure:   f.Departure,
		Arrival:     f.Arrival,
		Alternate:   f.Alternate,
		Route:       f.Route,
		Runway:      f.Runway,
		SID:         f.SID,
		STAR:        f.STAR,
		CruisingFL:  f.CruisingFL,
		ClearedFL:   f.ClearedFL,
		Squawk:      f.Squawk,
		Status:      f.Status,
		Clearance:   f.Clearance,
		Remark:      f.Remark,
		Gate:        f.Gate,
		Stand:       f.Stand,
		PDCRemarks:  f.PDCRemarks,
		Hidden:      f.Hidden,
		AccessToken: f.AccessToken,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}
