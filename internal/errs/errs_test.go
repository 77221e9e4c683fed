package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublic(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "not authorized", err: fmt.Errorf("update: %w", ErrNotAuthorized), want: "Not authorized"},
		{name: "validation", err: Invalid("cruisingFL", "must be between 0 and 200"), want: "cruisingFL: must be between 0 and 200"},
		{name: "flight gone", err: fmt.Errorf("store: %w", ErrFlightNotFound), want: "Flight not found"},
		{name: "session gone", err: ErrSessionNotFound, want: "Session not found"},
		{name: "upstream hidden", err: fmt.Errorf("db: %w", errors.New("connection refused")), want: "Internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Public(tt.err))
		})
	}
}

func TestIsBenign(t *testing.T) {
	assert.True(t, IsBenign(Invalid("squawk", "bad")))
	assert.True(t, IsBenign(fmt.Errorf("x: %w", ErrFlightNotFound)))
	assert.False(t, IsBenign(ErrUpstream))
}
