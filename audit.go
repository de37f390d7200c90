package goTodo

import (
	"io"

	internalaudit "github.com/MrEthical07/goTodo/internal/audit"
	"github.com/rs/zerolog"
)

// AuditEvent is one audit record. ID is a ULID.
type AuditEvent = internalaudit.Event

// AuditSink consumes audit events. Errors are logged by the dispatcher and
// never reach the caller of Login, Refresh or Logout.
type AuditSink = internalaudit.Sink

// NoOpSink drops audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers audit events on a channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON audit event per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// LogSink writes audit events through a zerolog logger.
type LogSink = internalaudit.LogSink

// MultiSink fans events out to several sinks.
type MultiSink = internalaudit.MultiSink

// Audit event types.
const (
	AuditLoginSuccess     = internalaudit.EventLoginSuccess
	AuditLoginFailure     = internalaudit.EventLoginFailure
	AuditLoginRateLimited = internalaudit.EventLoginRateLimited
	AuditRefreshSuccess   = internalaudit.EventRefreshSuccess
	AuditRefreshFailure   = internalaudit.EventRefreshFailure
	AuditLogout           = internalaudit.EventLogout
	AuditSessionRevoked   = internalaudit.EventSessionRevoked
	AuditPasswordRehashed = internalaudit.EventRehashed
)

// NewChannelSink returns a sink that delivers events on a buffered channel.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink that writes JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return internalaudit.NewLogSink(logger)
}
