package service

import "sync"

// FlightIndex maps flight ids to their owning session. It is filled incrementally
// as flights are created, listed or located, so arrivals-room edits avoid scanning
// every session. Entries are per-process hints; a miss falls back to a scan.
type FlightIndex struct {
	mu        sync.RWMutex
	bySession map[string]map[string]struct{}
	byFlight  map[string]string
}

// NewFlightIndex creates an empty index.
func NewFlightIndex() *FlightIndex {
	return &FlightIndex{
		bySession: make(map[string]map[string]struct{}),
		byFlight:  make(map[string]string),
	}
}

// Put records that flightID belongs to sessionID.
func (x *FlightIndex) Put(flightID, sessionID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if prev, ok := x.byFlight[flightID]; ok && prev != sessionID {
		delete(x.bySession[prev], flightID)
	}
	x.byFlight[flightID] = sessionID
	if x.bySession[sessionID] == nil {
		x.bySession[sessionID] = make(map[string]struct{})
	}
	x.bySession[sessionID][flightID] = struct{}{}
}

// Lookup returns the session owning flightID.
func (x *FlightIndex) Lookup(flightID string) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	s, ok := x.byFlight[flightID]
	return s, ok
}

// Remove forgets flightID.
func (x *FlightIndex) Remove(flightID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if s, ok := x.byFlight[flightID]; ok {
		delete(x.bySession[s], flightID)
		if len(x.bySession[s]) == 0 {
			delete(x.bySession, s)
		}
	}
	delete(x.byFlight, flightID)
}

// RemoveSession forgets every flight of sessionID.
func (x *FlightIndex) RemoveSession(sessionID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for f := range x.bySession[sessionID] {
		delete(x.byFlight, f)
	}
	delete(x.bySession, sessionID)
}

// Len returns the number of indexed flights.
func (x *FlightIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byFlight)
}
