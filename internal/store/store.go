// Package store is the port to the durable Session/Flight store.
//
// The engine only reads sessions and patches named fields; creation of sessions
// belongs to the platform's CRUD API. Flights are created, patched and deleted
// through here by the flight coordinator.
package store

import (
	"context"
	"time"

	"github.com/pfcontrol/stripsync/internal/model"
)

// Store is the durable Session/Flight store.
type Store interface {
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
	// ListSessions returns every session that has an airport configured.
	ListSessions(ctx context.Context) ([]model.Session, error)
	UpdateSession(ctx context.Context, sessionID string, patch model.SessionPatch) (*model.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error

	GetFlight(ctx context.Context, sessionID, flightID string) (*model.Flight, error)
	// ListFlights returns flights created at or after since, oldest first. Zero since returns all.
	ListFlights(ctx context.Context, sessionID string, since time.Time) ([]model.Flight, error)
	CreateFlight(ctx context.Context, f *model.Flight) (*model.Flight, error)
	UpdateFlight(ctx context.Context, sessionID, flightID string, updates model.FlightUpdates) (*model.Flight, error)
	DeleteFlight(ctx context.Context, sessionID, flightID string) error
}
