package goTodo

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goTodo/internal/audit"
	"github.com/MrEthical07/goTodo/internal/rate"
	"github.com/MrEthical07/goTodo/jwt"
	"github.com/MrEthical07/goTodo/password"
	"github.com/MrEthical07/goTodo/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// dummyPassword is hashed once at build time. Logins for unknown users verify
// against its digest so they cost the same as a wrong password.
const dummyPassword = "goTodo-timing-equalizer"

// Builder assembles an [Engine]. Configure it during initialization, call
// Build once, then discard it.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userProvider UserProvider
	auditSink    AuditSink
	logger       zerolog.Logger
	metrics      *Metrics
	now          func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		logger: zerolog.Nop(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the key-value client used for sessions and login
// throttling. It is required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserProvider sets the account lookup. It is required.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithAuditSink sets where audit events are delivered. Without one, events
// are discarded.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source for token issuance and session TTLs.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetrics shares an existing Metrics, so counters recorded before the
// engine exists (bootstrap probe failures) are exported with the rest. It
// takes precedence over the Metrics config.
func (b *Builder) WithMetrics(m *Metrics) *Builder {
	b.metrics = m
	return b
}

// WithMetricsEnabled toggles in-process metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the validate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component. A Builder
// can only be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	tokens, err := jwt.NewManager(jwt.Config{
		Secret:        cfg.JWT.Secret,
		SigningMethod: jwt.SigningMethod(cfg.JWT.Algorithm),
		DefaultTTL:    cfg.JWT.AccessTTL,
		Leeway:        cfg.JWT.Leeway,
		Issuer:        cfg.JWT.Issuer,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		return nil, err
	}
	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy digest: %w", err)
	}

	metrics := b.metrics
	if metrics == nil {
		metrics = NewMetrics(cfg.Metrics)
	}

	sink := b.auditSink
	if sink == nil {
		sink = audit.NoOpSink{}
	}

	engine := &Engine{
		config:  cfg,
		logger:  b.logger,
		users:   b.userProvider,
		hasher:  hasher,
		tokens:  tokens,
		metrics: metrics,
		sessions: session.NewStore(
			b.redis,
			session.WithNamespace(cfg.Session.Namespace),
			session.WithClock(now),
		),
		limiter: rate.New(b.redis, cfg.RateLimit),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, sink, b.logger),
		dummyHash: dummy,
	}

	for _, w := range cfg.Lint() {
		ev := b.logger.Info()
		if w.Severity >= LintWarn {
			ev = b.logger.Warn()
		}
		ev.Str("code", w.Code).Str("severity", w.Severity.String()).Msg(w.Message)
	}

	b.built = true

	return engine, nil
}
