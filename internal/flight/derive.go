package flight

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	mrand "math/rand/v2"
	"strings"

	"github.com/google/uuid"
	"github.com/pfcontrol/stripsync/internal/errs"
	"github.com/pfcontrol/stripsync/internal/model"
)

// VFRSquawk is the conspicuity code given to every VFR flight.
const VFRSquawk = "7000"

// ProcedureLookup provides the static data needed to file a flight.
type ProcedureLookup interface {
	WakeCategory(aircraft string) string
	AssignSID(icao, runway, arrival string) (string, error)
}

// Squawk returns VFRSquawk for VFR flights, otherwise four digits drawn from 1–6.
func Squawk(flightType string, rng *mrand.Rand) string {
	if strings.EqualFold(flightType, model.FlightTypeVFR) {
		return VFRSquawk
	}
	b := make([]byte, 4)
	for i := range b {
		var n int
		if rng != nil {
			n = rng.IntN(6)
		} else {
			n = mrand.IntN(6)
		}
		b[i] = byte('1' + n)
	}
	return string(b)
}

// NewAccessToken returns a single-use pilot token (32 random bytes, hex).
func NewAccessToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("access token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Build turns a draft into a new flight for sess, deriving id, squawk, wake category,
// SID and access token. Departure and runway default to the session's airport and
// active runway.
func Build(sess *model.Session, draft model.FlightDraft, procs ProcedureLookup) (*model.Flight, error) {
	f := &model.Flight{
		ID:         uuid.New().String(),
		SessionID:  sess.ID,
		Callsign:   Sanitize("callsign", draft.Callsign),
		Aircraft:   Sanitize("aircraft", draft.Aircraft),
		FlightType: strings.ToUpper(strings.TrimSpace(draft.FlightType)),
		Departure:  Sanitize("departure", draft.Departure),
		Arrival:    Sanitize("arrival", draft.Arrival),
		Alternate:  Sanitize("alternate", draft.Alternate),
		Route:      Sanitize("route", draft.Route),
		Runway:     Sanitize("runway", draft.Runway),
		Stand:      Sanitize("stand", draft.Stand),
		Gate:       Sanitize("gate", draft.Gate),
		Remark:     Sanitize("remark", draft.Remark),
		Status:     "PENDING",
	}
	if f.Callsign == "" {
		return nil, errs.Invalid("callsign", "is required")
	}
	if f.FlightType == "" {
		f.FlightType = model.FlightTypeIFR
	}
	if f.FlightType != model.FlightTypeIFR && f.FlightType != model.FlightTypeVFR {
		return nil, errs.Invalid("flight_type", "must be IFR or VFR")
	}
	if f.Departure == "" {
		f.Departure = sess.AirportICAO
	}
	if f.Runway == "" {
		f.Runway = Sanitize("runway", sess.ActiveRunway)
	}
	if draft.CruisingFL != nil && draft.CruisingFL != "" {
		fl, err := ParseFlightLevel("cruisingFL", draft.CruisingFL)
		if err != nil {
			return nil, err
		}
		f.CruisingFL = fl
	}

	f.Squawk = Squawk(f.FlightType, nil)
	f.WTC = procs.WakeCategory(f.Aircraft)

	sid, err := procs.AssignSID(f.Departure, f.Runway, f.Arrival)
	if err != nil {
		return nil, err
	}
	f.SID = sid

	token, err := NewAccessToken()
	if err != nil {
		return nil, err
	}
	f.AccessToken = token
	return f, nil
}
