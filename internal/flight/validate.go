package flight

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pfcontrol/stripsync/internal/errs"
	"github.com/pfcontrol/stripsync/internal/model"
)

// Flight level bounds, in hundreds of feet.
const (
	MinFlightLevel  = 0
	MaxFlightLevel  = 200
	FlightLevelStep = 5
)

// Statuses a strip may move through.
var Statuses = []string{"PENDING", "STUP", "PUSH", "TAXI", "RWY", "DEPA", "ARR", "TAXIIN", "PARKED"}

// FieldSet is the set of patchable fields for a given caller.
type FieldSet map[string]struct{}

func newFieldSet(names ...string) FieldSet {
	s := make(FieldSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// ControllerFields may be patched by a controller in the owning session.
var ControllerFields = newFieldSet(
	"callsign", "aircraft", "flight_type", "departure", "arrival", "alternate", "route",
	"runway", "sid", "star", "cruisingFL", "clearedFL", "squawk", "status", "clearance",
	"remark", "gate", "stand", "pdc_remarks",
)

// ArrivalFields may be patched from another session's arrivals view.
var ArrivalFields = newFieldSet("clearedFL", "status", "star", "remark", "squawk", "gate")

// ValidatePatch checks every field of a client patch against allowed and returns the
// normalised updates. Any failure rejects the whole patch.
func ValidatePatch(patch map[string]any, allowed FieldSet) (model.FlightUpdates, error) {
	if len(patch) == 0 {
		return nil, errs.Invalid("updates", "no fields to update")
	}
	if _, ok := patch["hidden"]; ok {
		return nil, errs.Invalid("hidden", "field is system-managed")
	}
	out := make(model.FlightUpdates, len(patch))
	for field, raw := range patch {
		if _, ok := allowed[field]; !ok {
			return nil, errs.Invalid(field, "field cannot be updated")
		}
		v, err := normalise(field, raw)
		if err != nil {
			return nil, err
		}
		out[field] = v
	}
	return out, nil
}

func normalise(field string, raw any) (any, error) {
	switch field {
	case "cruisingFL", "clearedFL":
		return ParseFlightLevel(field, raw)
	case "squawk":
		s, err := asString(field, raw)
		if err != nil {
			return nil, err
		}
		if err := ValidateSquawk(s); err != nil {
			return nil, err
		}
		return s, nil
	case "clearance":
		b, ok := raw.(bool)
		if !ok {
			return nil, errs.Invalid(field, "must be a boolean")
		}
		return b, nil
	case "status":
		s, err := asString(field, raw)
		if err != nil {
			return nil, err
		}
		s = strings.ToUpper(strings.TrimSpace(s))
		for _, st := range Statuses {
			if s == st {
				return s, nil
			}
		}
		return nil, errs.Invalid(field, "unknown status")
	case "flight_type":
		s, err := asString(field, raw)
		if err != nil {
			return nil, err
		}
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != model.FlightTypeIFR && s != model.FlightTypeVFR {
			return nil, errs.Invalid(field, "must be IFR or VFR")
		}
		return s, nil
	default:
		s, err := asString(field, raw)
		if err != nil {
			return nil, err
		}
		return Sanitize(field, s), nil
	}
}

func asString(field string, raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case json.Number:
		return v.String(), nil
	case int:
		return strconv.Itoa(v), nil
	default:
		return "", errs.Invalid(field, "must be a string")
	}
}

// ValidateSquawk requires 1–4 numeric digits.
func ValidateSquawk(s string) error {
	if len(s) < 1 || len(s) > 4 {
		return errs.Invalid("squawk", "must be 1-4 digits")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return errs.Invalid("squawk", "must be 1-4 digits")
		}
	}
	return nil
}

// ParseFlightLevel accepts a JSON number or numeric string and requires an integer
// in [MinFlightLevel, MaxFlightLevel] in steps of FlightLevelStep. Null or an empty
// string clears the level to 0.
func ParseFlightLevel(field string, raw any) (int, error) {
	var f float64
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case float64:
		f = v
	case int:
		f = float64(v)
	case json.Number:
		p, err := v.Float64()
		if err != nil {
			return 0, errs.Invalid(field, "must be a number")
		}
		f = p
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, nil
		}
		p, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, errs.Invalid(field, "must be a number")
		}
		f = p
	default:
		return 0, errs.Invalid(field, "must be a number")
	}
	if f != math.Trunc(f) {
		return 0, errs.Invalid(field, "must be an integer")
	}
	n := int(f)
	if n < MinFlightLevel || n > MaxFlightLevel {
		return 0, errs.Invalid(field, fmt.Sprintf("must be between %d and %d", MinFlightLevel, MaxFlightLevel))
	}
	if n%FlightLevelStep != 0 {
		return 0, errs.Invalid(field, fmt.Sprintf("must be a multiple of %d", FlightLevelStep))
	}
	return n, nil
}
