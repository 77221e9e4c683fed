package model

import "time"

// Session is the engine view of a controlled airport session.
type Session struct {
	ID           string    `json:"sessionId"`
	AccessID     string    `json:"-"`
	ActiveRunway string    `json:"activeRunway"`
	AirportICAO  string    `json:"airportIcao"`
	IsPFATC      bool      `json:"isPFATC"`
	ATIS         ATISState `json:"atis"`
	CreatedBy    string    `json:"createdBy,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ATISState is the stored ATIS text together with the configuration used to regenerate it.
type ATISState struct {
	Letter             string    `json:"letter"`
	Text               string    `json:"text"`
	Timestamp          time.Time `json:"timestamp"`
	ICAO               string    `json:"icao,omitempty"`
	LandingRunways     []string  `json:"landingRunways,omitempty"`
	DepartingRunways   []string  `json:"departingRunways,omitempty"`
	SelectedApproaches []string  `json:"selectedApproaches,omitempty"`
	Remarks            string    `json:"remarks,omitempty"`
}

// Configured reports whether the ATIS has enough configuration to be regenerated.
func (a ATISState) Configured() bool {
	return a.ICAO != "" && (len(a.LandingRunways) > 0 || len(a.DepartingRunways) > 0)
}

// SessionPatch lists the session fields the engine may change. Nil means untouched.
type SessionPatch struct {
	ActiveRunway *string
	ATIS         *ATISState
}

// SessionFromEntity converts a stored row.
func SessionFromEntity(e *SessionEntity) *Session {
	return &Session{
		ID:           e.ID,
		AccessID:     e.AccessID,
		ActiveRunway: e.ActiveRunway,
		AirportICAO:  e.AirportICAO,
		IsPFATC:      e.IsPFATC,
		ATIS:         e.ATIS,
		CreatedBy:    e.CreatedBy,
		CreatedAt:    e.CreatedAt,
	}
}
