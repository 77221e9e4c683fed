package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Fabric broadcasts to a room across every server process.
type Fabric interface {
	// Publish sends event to every connection in room except the connection with id except.
	Publish(ctx context.Context, room, event string, data any, except string) error
	// Kick sends event to room and then closes every connection in it.
	Kick(ctx context.Context, room, event string, data any) error
	// Run delivers broadcasts from other processes until ctx is done.
	Run(ctx context.Context) error
}

// LocalFabric delivers to this process's hub only.
type LocalFabric struct {
	hub *Hub
}

// NewLocalFabric creates a single-process fabric.
func NewLocalFabric(hub *Hub) *LocalFabric {
	return &LocalFabric{hub: hub}
}

func (f *LocalFabric) Publish(_ context.Context, room, event string, data any, except string) error {
	frame, err := Frame(event, data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	f.hub.Deliver(room, frame, except)
	return nil
}

func (f *LocalFabric) Kick(_ context.Context, room, event string, data any) error {
	frame, err := Frame(event, data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	f.hub.Kick(room, frame)
	return nil
}

func (f *LocalFabric) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// DefaultRedisChannel carries room broadcasts between processes.
const DefaultRedisChannel = "stripsync:rooms"

type wireMessage struct {
	Origin string          `json:"origin"`
	Room   string          `json:"room"`
	Frame  json.RawMessage `json:"frame"`
	Except string          `json:"except,omitempty"`
	Kick   bool            `json:"kick,omitempty"`
}

// RedisFabric fans room broadcasts out through Redis pub/sub. Every process,
// including the publisher, delivers from the subscription so ordering per room is
// the order Redis saw.
type RedisFabric struct {
	hub     *Hub
	rdb     *redis.Client
	channel string
	origin  string
	log     *zap.Logger
	ready   chan struct{}
}

// NewRedisFabric creates a fabric publishing on channel.
func NewRedisFabric(hub *Hub, rdb *redis.Client, channel string, log *zap.Logger) *RedisFabric {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisFabric{
		hub:     hub,
		rdb:     rdb,
		channel: channel,
		origin:  uuid.New().String(),
		log:     log,
		ready:   make(chan struct{}),
	}
}

// Ready is closed once the subscription is established.
func (f *RedisFabric) Ready() <-chan struct{} {
	return f.ready
}

func (f *RedisFabric) Publish(ctx context.Context, room, event string, data any, except string) error {
	return f.publish(ctx, room, event, data, except, false)
}

func (f *RedisFabric) Kick(ctx context.Context, room, event string, data any) error {
	return f.publish(ctx, room, event, data, "", true)
}

func (f *RedisFabric) publish(ctx context.Context, room, event string, data any, except string, kick bool) error {
	frame, err := Frame(event, data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	msg, err := json.Marshal(wireMessage{Origin: f.origin, Room: room, Frame: frame, Except: except, Kick: kick})
	if err != nil {
		return err
	}
	if err := f.rdb.Publish(ctx, f.channel, msg).Err(); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event, room, err)
	}
	return nil
}

func (f *RedisFabric) Run(ctx context.Context) error {
	sub := f.rdb.Subscribe(ctx, f.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", f.channel, err)
	}
	close(f.ready)
	f.log.Info("room fabric subscribed", zap.String("channel", f.channel), zap.String("origin", f.origin))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var wm wireMessage
			if err := json.Unmarshal([]byte(m.Payload), &wm); err != nil {
				f.log.Warn("room fabric: bad message", zap.Error(err))
				continue
			}
			if wm.Kick {
				f.hub.Kick(wm.Room, wm.Frame)
				continue
			}
			f.hub.Deliver(wm.Room, wm.Frame, wm.Except)
		}
	}
}
