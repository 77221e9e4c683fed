package store

import (
	"context"
	"testing"
	"time"

	"github.com/pfcontrol/stripsync/internal/errs"
	"github.com/pfcontrol/stripsync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSessions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	t.Run("missing session", func(t *testing.T) {
		_, err := s.GetSession(ctx, "nope")
		assert.ErrorIs(t, err, errs.ErrSessionNotFound)
	})

	t.Run("put uppercases icao and lists", func(t *testing.T) {
		s.PutSession(model.Session{ID: "a", AccessID: "secret-a", AirportICAO: "kjfk"})
		s.PutSession(model.Session{ID: "blank", AccessID: "secret-b"})

		got, err := s.GetSession(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "KJFK", got.AirportICAO)

		list, err := s.ListSessions(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "a", list[0].ID)
	})

	t.Run("patch runway", func(t *testing.T) {
		rwy := "22R"
		got, err := s.UpdateSession(ctx, "a", model.SessionPatch{ActiveRunway: &rwy})
		require.NoError(t, err)
		assert.Equal(t, "22R", got.ActiveRunway)
	})
}

func TestMemoryStoreFlights(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.PutSession(model.Session{ID: "a", AccessID: "secret-a", AirportICAO: "KJFK"})

	_, err := s.CreateFlight(ctx, &model.Flight{ID: "f1", SessionID: "missing"})
	assert.ErrorIs(t, err, errs.ErrSessionNotFound)

	created, err := s.CreateFlight(ctx, &model.Flight{ID: "f1", SessionID: "a", Callsign: "DAL1"})
	require.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())

	updated, err := s.UpdateFlight(ctx, "a", "f1", model.FlightUpdates{"cruisingFL": 150, "status": "TAXI"})
	require.NoError(t, err)
	assert.Equal(t, 150, updated.CruisingFL)
	assert.Equal(t, "TAXI", updated.Status)

	_, err = s.UpdateFlight(ctx, "a", "ghost", model.FlightUpdates{"status": "TAXI"})
	assert.ErrorIs(t, err, errs.ErrFlightNotFound)

	recent, err := s.ListFlights(ctx, "a", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, recent)

	all, err := s.ListFlights(ctx, "a", time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeleteSession(ctx, "a"))
	_, err = s.GetFlight(ctx, "a", "f1")
	assert.ErrorIs(t, err, errs.ErrFlightNotFound)
}
