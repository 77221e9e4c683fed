package airport

import (
	"testing"

	"github.com/pfcontrol/stripsync/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignSID(t *testing.T) {
	db, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name    string
		icao    string
		runway  string
		arrival string
		want    string
		wantErr bool
	}{
		{name: "arrival prefix match", icao: "EGLL", runway: "27R", arrival: "EKCH", want: "BPK7J"},
		{name: "domestic prefix", icao: "egll", runway: "27r", arrival: "EGPH", want: "CPT3J"},
		{name: "fallback first", icao: "EGLL", runway: "27R", arrival: "KJFK", want: "DVR4J"},
		{name: "no arrival", icao: "KJFK", runway: "31L", want: "SKORR5"},
		{name: "unknown runway", icao: "KJFK", runway: "13R", wantErr: true},
		{name: "unknown airport", icao: "ZZZZ", runway: "01", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.AssignSID(tt.icao, tt.runway, tt.arrival)
			if tt.wantErr {
				assert.ErrorIs(t, err, errs.ErrNoDepartureProcedure)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWakeCategory(t *testing.T) {
	db := MustLoad()
	assert.Equal(t, "J", db.WakeCategory("a388"))
	assert.Equal(t, "H", db.WakeCategory("B77W"))
	assert.Equal(t, "L", db.WakeCategory(" C172 "))
	assert.Equal(t, "M", db.WakeCategory("XXXX"))
}

func TestRunways(t *testing.T) {
	db := MustLoad()
	assert.Equal(t, []string{"04L", "22R", "31L"}, db.Runways("KJFK"))
	assert.Nil(t, db.Runways("ZZZZ"))
}
