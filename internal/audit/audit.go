package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Event types emitted by the engine.
const (
	EventLoginSuccess     = "login_success"
	EventLoginFailure     = "login_failure"
	EventLoginRateLimited = "login_rate_limited"
	EventRefreshSuccess   = "refresh_success"
	EventRefreshFailure   = "refresh_failure"
	EventLogout           = "logout"
	EventSessionRevoked   = "session_revoked"
	EventRehashed         = "password_rehashed"
)

// Event is one audit record. ID is a ULID, so events sort by creation time.
type Event struct {
	ID        string            `json:"id" bson:"_id"`
	Timestamp time.Time         `json:"timestamp" bson:"timestamp"`
	EventType string            `json:"event_type" bson:"event_type"`
	Username  string            `json:"username,omitempty" bson:"username,omitempty"`
	UserID    string            `json:"user_id,omitempty" bson:"user_id,omitempty"`
	TokenID   string            `json:"jti,omitempty" bson:"jti,omitempty"`
	IP        string            `json:"ip,omitempty" bson:"ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty" bson:"user_agent,omitempty"`
	Success   bool              `json:"success" bson:"success"`
	Error     string            `json:"error,omitempty" bson:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// NewEvent returns an event of the given type stamped with a fresh ID and
// the current UTC time.
func NewEvent(eventType string) Event {
	now := time.Now().UTC()
	return Event{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Timestamp: now,
		EventType: eventType,
	}
}

// Sink receives audit events. A returned error is logged by the dispatcher
// and the event is dropped.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) error { return nil }

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) error {
	select {
	case s.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.writer.Write(data)
	return err
}

// LogSink writes events through a zerolog logger at info level, failures at
// warn.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "audit").Logger()}
}

func (s *LogSink) Emit(_ context.Context, event Event) error {
	ev := s.logger.Info()
	if !event.Success {
		ev = s.logger.Warn()
	}
	ev = ev.Str("event_id", event.ID).
		Str("event_type", event.EventType).
		Time("at", event.Timestamp).
		Bool("success", event.Success)
	if event.Username != "" {
		ev = ev.Str("username", event.Username)
	}
	if event.IP != "" {
		ev = ev.Str("ip", event.IP)
	}
	if event.Error != "" {
		ev = ev.Str("error", event.Error)
	}
	if len(event.Metadata) > 0 {
		meta := zerolog.Dict()
		for k, v := range event.Metadata {
			meta = meta.Str(k, v)
		}
		ev = ev.Dict("metadata", meta)
	}
	ev.Msg("audit")
	return nil
}

// MultiSink fans an event out to several sinks and returns the first error.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, event Event) error {
	var first error
	for _, s := range m {
		if err := s.Emit(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
