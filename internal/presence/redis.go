package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pfcontrol/stripsync/internal/model"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "stripsync:"

func participantsKey(sessionID string) string { return keyPrefix + "presence:" + sessionID }
func locksKey(sessionID string) string        { return keyPrefix + "locks:" + sessionID }

const sessionsKey = keyPrefix + "presence:sessions"

// RedisStore keeps presence in Redis so every server process sees the same membership.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewRedisStore creates a Redis-backed store whose edit locks expire after lockTTL.
func NewRedisStore(rdb *redis.Client, lockTTL time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: lockTTL, now: time.Now}
}

func (s *RedisStore) Upsert(ctx context.Context, sessionID string, p model.ActiveParticipant) (model.ActiveParticipant, error) {
	key := participantsKey(sessionID)
	var prev model.ActiveParticipant
	raw, err := s.rdb.HGet(ctx, key, p.ID).Bytes()
	exists := err == nil
	if err != nil && !errors.Is(err, redis.Nil) {
		return model.ActiveParticipant{}, fmt.Errorf("presence get: %w", err)
	}
	if exists {
		if err := json.Unmarshal(raw, &prev); err != nil {
			exists = false
		}
	}
	p = merge(prev, p, exists, s.now())
	body, err := json.Marshal(p)
	if err != nil {
		return model.ActiveParticipant{}, err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, p.ID, body)
		pipe.SAdd(ctx, sessionsKey, sessionID)
		return nil
	})
	if err != nil {
		return model.ActiveParticipant{}, fmt.Errorf("presence upsert: %w", err)
	}
	return p, nil
}

func (s *RedisStore) SetPosition(ctx context.Context, sessionID, userID, position string) (bool, error) {
	key := participantsKey(sessionID)
	raw, err := s.rdb.HGet(ctx, key, userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("presence get: %w", err)
	}
	var p model.ActiveParticipant
	if err := json.Unmarshal(raw, &p); err != nil {
		return false, fmt.Errorf("presence decode: %w", err)
	}
	p.Position = position
	body, err := json.Marshal(p)
	if err != nil {
		return false, err
	}
	if err := s.rdb.HSet(ctx, key, userID, body).Err(); err != nil {
		return false, fmt.Errorf("presence set position: %w", err)
	}
	return true, nil
}

// removeScript deletes a participant and, in the same step, drops the session from
// the active set when it was the last one.
var removeScript = redis.NewScript(`
redis.call('HDEL', KEYS[1], ARGV[1])
local n = redis.call('HLEN', KEYS[1])
if n == 0 then
  redis.call('SREM', KEYS[2], ARGV[2])
end
return n
`)

func (s *RedisStore) Remove(ctx context.Context, sessionID, userID string) (int, error) {
	n, err := removeScript.Run(ctx, s.rdb, []string{participantsKey(sessionID), sessionsKey}, userID, sessionID).Int()
	if err != nil {
		return 0, fmt.Errorf("presence remove: %w", err)
	}
	return n, nil
}

func (s *RedisStore) List(ctx context.Context, sessionID string) ([]model.ActiveParticipant, error) {
	vals, err := s.rdb.HGetAll(ctx, participantsKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence list: %w", err)
	}
	out := make([]model.ActiveParticipant, 0, len(vals))
	for _, v := range vals {
		var p model.ActiveParticipant
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	sortParticipants(out)
	return out, nil
}

func (s *RedisStore) Sessions(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, sessionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("presence sessions: %w", err)
	}
	return ids, nil
}

func (s *RedisStore) ClearSession(ctx context.Context, sessionID string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, participantsKey(sessionID), locksKey(sessionID))
		pipe.SRem(ctx, sessionsKey, sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("presence clear: %w", err)
	}
	return nil
}

func (s *RedisStore) AcquireLock(ctx context.Context, sessionID string, lock model.FieldEditLock) error {
	if lock.Timestamp.IsZero() {
		lock.Timestamp = s.now()
	}
	body, err := json.Marshal(lock)
	if err != nil {
		return err
	}
	key := locksKey(sessionID)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, lockField(lock.FlightID, lock.FieldName), body)
		// Whole-hash expiry reclaims locks of sessions nobody returns to.
		pipe.Expire(ctx, key, 2*s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	return nil
}

func (s *RedisStore) ReleaseLock(ctx context.Context, sessionID, flightID, fieldName, userID string) error {
	key := locksKey(sessionID)
	field := lockField(flightID, fieldName)
	raw, err := s.rdb.HGet(ctx, key, field).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lock get: %w", err)
	}
	var l model.FieldEditLock
	if err := json.Unmarshal(raw, &l); err == nil && l.UserID != userID {
		return nil
	}
	return s.rdb.HDel(ctx, key, field).Err()
}

func (s *RedisStore) ReleaseUserLocks(ctx context.Context, sessionID, userID string) error {
	key := locksKey(sessionID)
	vals, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("lock list: %w", err)
	}
	var drop []string
	for field, v := range vals {
		var l model.FieldEditLock
		if err := json.Unmarshal([]byte(v), &l); err != nil || l.UserID == userID {
			drop = append(drop, field)
		}
	}
	if len(drop) == 0 {
		return nil
	}
	return s.rdb.HDel(ctx, key, drop...).Err()
}

func (s *RedisStore) ListLocks(ctx context.Context, sessionID string) ([]model.FieldEditLock, error) {
	key := locksKey(sessionID)
	vals, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("lock list: %w", err)
	}
	now := s.now()
	out := make([]model.FieldEditLock, 0, len(vals))
	var drop []string
	for field, v := range vals {
		var l model.FieldEditLock
		if err := json.Unmarshal([]byte(v), &l); err != nil || expired(l, now, s.ttl) {
			drop = append(drop, field)
			continue
		}
		out = append(out, l)
	}
	if len(drop) > 0 {
		if err := s.rdb.HDel(ctx, key, drop...).Err(); err != nil {
			return nil, fmt.Errorf("lock prune: %w", err)
		}
	}
	sortLocks(out)
	return out, nil
}
