package auth

import (
	"testing"
	"time"

	"github.com/pfcontrol/stripsync/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := NewVerifier("test-secret")
	tok, err := v.Sign(Identity{UserID: "u1", Username: "alice", Avatar: "a.png"}, time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u1", Username: "alice", Avatar: "a.png"}, id)
}

func TestVerifyRejects(t *testing.T) {
	v := NewVerifier("test-secret")
	other := NewVerifier("other-secret")

	forged, err := other.Sign(Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)
	expired, err := v.Sign(Identity{UserID: "u1"}, -time.Minute)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"empty":   "",
		"garbage": "not.a.jwt",
		"forged":  forged,
		"expired": expired,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(tok)
			assert.ErrorIs(t, err, errs.ErrInvalidCredentials)
		})
	}
}

func TestDisabledVerifier(t *testing.T) {
	v := NewVerifier("")
	assert.False(t, v.Enabled())
	_, err := v.Verify("anything")
	assert.Error(t, err)
}
