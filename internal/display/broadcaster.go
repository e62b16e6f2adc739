package display

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/counterline/poscore/pkg/enums"
	"github.com/counterline/poscore/pkg/logger"
	"github.com/counterline/poscore/pkg/redis"
)

// Event is one frame pushed to the customer-facing screen.
type Event struct {
	Type       enums.DisplayEventType `json:"type"`
	TerminalID string                 `json:"terminal_id"`
	At         time.Time              `json:"at"`
	Payload    any                    `json:"payload,omitempty"`
}

// Sink delivers display events somewhere. Implementations must be safe for
// concurrent use; delivery is one-way and best-effort.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// Broadcaster fans cart and payment state out to the customer display. Emit
// never fails the caller: a dead display must not block a sale.
type Broadcaster struct {
	sink       Sink
	terminalID string
	now        func() time.Time
	logg       *logger.Logger
}

// NewBroadcaster wires the broadcaster to a sink. A nil sink disables
// broadcasting entirely.
func NewBroadcaster(sink Sink, terminalID string, logg *logger.Logger) (*Broadcaster, error) {
	if logg == nil {
		return nil, fmt.Errorf("display logger required")
	}
	if sink == nil {
		sink = NoopSink{}
	}
	return &Broadcaster{
		sink:       sink,
		terminalID: terminalID,
		now:        time.Now,
		logg:       logg,
	}, nil
}

// Emit pushes one event and swallows delivery failures with a warning.
func (b *Broadcaster) Emit(ctx context.Context, eventType enums.DisplayEventType, payload any) {
	if b == nil {
		return
	}
	event := Event{
		Type:       eventType,
		TerminalID: b.terminalID,
		At:         b.now().UTC(),
		Payload:    payload,
	}
	if err := b.sink.Emit(ctx, event); err != nil {
		b.logg.Warn(b.logg.WithField(ctx, "display_event", eventType.String()),
			"customer display emit failed: "+err.Error())
	}
}

// NoopSink drops every event. Used when no second screen is attached and in
// tests.
type NoopSink struct{}

func (NoopSink) Emit(context.Context, Event) error { return nil }

// RedisSink publishes events on a pub/sub channel the display process
// subscribes to.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink binds the sink to a channel.
func NewRedisSink(client *redis.Client, channel string) (*RedisSink, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if channel == "" {
		return nil, fmt.Errorf("display channel required")
	}
	return &RedisSink{client: client, channel: channel}, nil
}

func (s *RedisSink) Emit(ctx context.Context, event Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding display event: %w", err)
	}
	return s.client.Publish(ctx, s.channel, raw)
}
