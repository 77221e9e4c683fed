// Package airport holds the static procedure and aircraft data used when a flight is filed.
package airport

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pfcontrol/stripsync/internal/errs"
)

//go:embed data/*.json
var dataFS embed.FS

// Procedure is a departure procedure and the arrival ICAO prefixes it serves.
// An empty destination list serves any arrival.
type Procedure struct {
	Name         string   `json:"name"`
	Destinations []string `json:"destinations"`
}

// Airport is the procedure data of one aerodrome.
type Airport struct {
	Runways map[string][]Procedure `json:"runways"`
	STARs   []string               `json:"stars"`
}

// Database is a read-only lookup over the embedded data.
type Database struct {
	airports map[string]Airport
	wtc      map[string]string
}

// Load parses the embedded airport and aircraft data.
func Load() (*Database, error) {
	db := &Database{}
	if err := decode("data/airports.json", &db.airports); err != nil {
		return nil, err
	}
	if err := decode("data/wtc.json", &db.wtc); err != nil {
		return nil, err
	}
	return db, nil
}

// MustLoad is Load for package-level initialisation; the data is compiled in.
func MustLoad() *Database {
	db, err := Load()
	if err != nil {
		panic(err)
	}
	return db
}

func decode(name string, v any) error {
	raw, err := dataFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("airport data %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("airport data %s: %w", name, err)
	}
	return nil
}

// WakeCategory returns the wake turbulence category for an ICAO aircraft type.
// Unknown types are treated as medium.
func (d *Database) WakeCategory(aircraft string) string {
	if c, ok := d.wtc[strings.ToUpper(strings.TrimSpace(aircraft))]; ok {
		return c
	}
	return "M"
}

// Runways lists the runways with departure procedures at icao, sorted.
func (d *Database) Runways(icao string) []string {
	ap, ok := d.airports[strings.ToUpper(icao)]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(ap.Runways))
	for r := range ap.Runways {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// AssignSID picks the departure procedure for a flight leaving icao from runway
// towards arrival: the first procedure serving the arrival's prefix, otherwise the
// runway's first procedure.
func (d *Database) AssignSID(icao, runway, arrival string) (string, error) {
	icao = strings.ToUpper(icao)
	runway = strings.ToUpper(runway)
	arrival = strings.ToUpper(arrival)

	ap, ok := d.airports[icao]
	procs := ap.Runways[runway]
	if !ok || len(procs) == 0 {
		return "", fmt.Errorf("%w for %s runway %s", errs.ErrNoDepartureProcedure, icao, runway)
	}
	if arrival != "" {
		for _, p := range procs {
			for _, prefix := range p.Destinations {
				if strings.HasPrefix(arrival, strings.ToUpper(prefix)) {
					return p.Name, nil
				}
			}
		}
	}
	return procs[0].Name, nil
}
