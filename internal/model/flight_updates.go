package model

// FlightUpdates is a validated patch keyed by the flight's JSON field names.
// Values are already normalised: strings, ints or bools.
type FlightUpdates map[string]any

// flightColumns maps JSON field names to storage columns.
var flightColumns = map[string]string{
	"callsign":    "callsign",
	"aircraft":    "aircraft",
	"wtc":         "wtc",
	"flight_type": "flight_type",
	"departure":   "departure",
	"arrival":     "arrival",
	"alternate":   "alternate",
	"route":       "route",
	"runway":      "runway",
	"sid":         "sid",
	"star":        "star",
	"cruisingFL":  "cruising_fl",
	"clearedFL":   "cleared_fl",
	"squawk":      "squawk",
	"status":      "status",
	"clearance":   "clearance",
	"remark":      "remark",
	"gate":        "gate",
	"stand":       "stand",
	"pdc_remarks": "pdc_remarks",
	"hidden":      "hidden",
}

// Columns returns the patch keyed by storage column. Unknown keys are dropped.
func (u FlightUpdates) Columns() map[string]any {
	out := make(map[string]any, len(u))
	for k, v := range u {
		if col, ok := flightColumns[k]; ok {
			out[col] = v
		}
	}
	return out
}

// ApplyTo writes the patch onto f.
func (u FlightUpdates) ApplyTo(f *Flight) {
	for k, v := range u {
		switch k {
		case "callsign":
			f.Callsign, _ = v.(string)
		case "aircraft":
			f.Aircraft, _ = v.(string)
		case "wtc":
			f.WTC, _ = v.(string)
		case "flight_type":
			f.FlightType, _ = v.(string)
		case "departure":
			f.Departure, _ = v.(string)
		case "arrival":
			f.Arrival, _ = v.(string)
		case "alternate":
			f.Alternate, _ = v.(string)
		case "route":
			f.Route, _ = v.(string)
		case "runway":
			f.Runway, _ = v.(string)
		case "sid":
			f.SID, _ = v.(string)
		case "star":
			f.STAR, _ = v.(string)
		case "cruisingFL":
			f.CruisingFL, _ = v.(int)
		case "clearedFL":
			f.ClearedFL, _ = v.(int)
		case "squawk":
			f.Squawk, _ = v.(string)
		case "status":
			f.Status, _ = v.(string)
		case "clearance":
			f.Clearance, _ = v.(bool)
		case "remark":
			f.Remark, _ = v.(string)
		case "gate":
			f.Gate, _ = v.(string)
		case "stand":
			f.Stand, _ = v.(string)
		case "pdc_remarks":
			f.PDCRemarks, _ = v.(string)
		case "hidden":
			f.Hidden, _ = v.(bool)
		}
	}
}
