// Package presence is the Shared Presence Store: who is connected to each session
// and which flight fields are being edited. It is the cross-process source of truth
// for session membership.
package presence

import (
	"context"
	"time"

	"github.com/pfcontrol/stripsync/internal/model"
)

// Store holds active participants and field edit locks per session.
type Store interface {
	// Upsert merges p into the session, keeping the original JoinedAt of a returning user.
	Upsert(ctx context.Context, sessionID string, p model.ActiveParticipant) (model.ActiveParticipant, error)
	// SetPosition updates a participant's position label. Missing participants report false.
	SetPosition(ctx context.Context, sessionID, userID, position string) (bool, error)
	// Remove deletes the participant and returns how many remain in the session.
	Remove(ctx context.Context, sessionID, userID string) (int, error)
	List(ctx context.Context, sessionID string) ([]model.ActiveParticipant, error)
	// Sessions lists the sessions with at least one participant.
	Sessions(ctx context.Context) ([]string, error)
	// ClearSession drops participants and locks of a session.
	ClearSession(ctx context.Context, sessionID string) error

	AcquireLock(ctx context.Context, sessionID string, lock model.FieldEditLock) error
	ReleaseLock(ctx context.Context, sessionID, flightID, fieldName, userID string) error
	ReleaseUserLocks(ctx context.Context, sessionID, userID string) error
	// ListLocks returns unexpired locks, pruning expired ones.
	ListLocks(ctx context.Context, sessionID string) ([]model.FieldEditLock, error)
}

func lockField(flightID, fieldName string) string {
	return flightID + "|" + fieldName
}

func expired(l model.FieldEditLock, now time.Time, ttl time.Duration) bool {
	return now.Sub(l.Timestamp) > ttl
}
