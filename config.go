package goTodo

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goTodo/internal/backends"
	"github.com/MrEthical07/goTodo/internal/bootstrap"
	"github.com/MrEthical07/goTodo/internal/logging"
	"github.com/MrEthical07/goTodo/internal/rate"
	"github.com/MrEthical07/goTodo/jwt"
	"github.com/MrEthical07/goTodo/password"
	"github.com/MrEthical07/goTodo/session"
)

// Config is the complete runtime configuration. Start from [DefaultConfig]
// or [LoadConfig] and adjust fields before passing it to the Builder.
type Config struct {
	App       AppConfig
	JWT       JWTConfig
	Password  PasswordConfig
	Session   SessionConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Audit     AuditConfig
	RateLimit RateLimitConfig
	Bootstrap BootstrapConfig
}

// AppConfig describes the running service.
type AppConfig struct {
	Name        string
	Version     string
	Description string
	Debug       bool
	Host        string
	Port        int
	// ConfigSource records where configuration was loaded from. It is set
	// by LoadConfig and reported by the health endpoint.
	ConfigSource string
}

// JWTConfig controls token issuance.
type JWTConfig struct {
	Secret     []byte
	Algorithm  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration
	Issuer     string
}

// PasswordConfig selects the hashing algorithm and its costs.
type PasswordConfig = password.Config

// SessionConfig controls the session store key layout.
type SessionConfig struct {
	Namespace string
}

// MongoConfig holds document store connection parameters.
type MongoConfig = backends.MongoConfig

// RedisConfig holds key-value store connection parameters.
type RedisConfig = backends.RedisConfig

// LogConfig controls process logging.
type LogConfig = logging.Config

// RateLimitConfig controls failed-login throttling.
type RateLimitConfig = rate.Config

// MetricsConfig enables in-process counters and the validate latency
// histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// AuditConfig controls asynchronous audit delivery.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// BootstrapConfig controls how backing-service clients are released.
type BootstrapConfig struct {
	Cleanup bootstrap.CleanupMode
}

// DefaultConfig returns development defaults. The JWT secret is a
// placeholder that must be replaced outside development.
func DefaultConfig() Config {
	redisReady := backends.DefaultRedisReadyPolicy()
	mongoReady := backends.DefaultMongoReadyPolicy()

	return Config{
		App: AppConfig{
			Name:        "Todo App",
			Version:     "0.1.0",
			Description: "A simple Todo API",
			Debug:       true,
			Host:        "localhost",
			Port:        8000,
		},
		JWT: JWTConfig{
			Secret:     []byte(DefaultSecret),
			Algorithm:  string(jwt.MethodHS256),
			AccessTTL:  30 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Password: password.DefaultConfig(),
		Session: SessionConfig{
			Namespace: session.DefaultNamespace,
		},
		Mongo: MongoConfig{
			Host:           "localhost",
			Port:           27017,
			Database:       "todo_app_db",
			User:           "todo_user",
			Password:       "change-me-in-production",
			AuthSource:     "admin",
			ConnectTimeout: 10 * time.Second,
			Ready:          mongoReady,
		},
		Redis: RedisConfig{
			Host:           "localhost",
			Port:           6379,
			CertReqs:       backends.CertNone,
			ConnectTimeout: 10 * time.Second,
			SocketTimeout:  30 * time.Second,
			PoolSize:       100,
			Ready:          redisReady,
		},
		Log: logging.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		RateLimit: rate.DefaultConfig(),
		Bootstrap: BootstrapConfig{
			Cleanup: bootstrap.CleanupAlways,
		},
	}
}

// DefaultSecret is the development signing secret.
const DefaultSecret = "change-me-in-production"

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = append([]byte(nil), cfg.JWT.Secret...)
	out.Log.Handlers = append([]string(nil), cfg.Log.Handlers...)
	return out
}

// Validate reports the first inconsistent setting. An empty JWT secret is
// not rejected here: token operations fail with ErrConfiguration instead.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if c.JWT.Algorithm != "" && c.JWT.Algorithm != string(jwt.MethodHS256) {
		return fmt.Errorf("unsupported JWT algorithm %q", c.JWT.Algorithm)
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	switch c.Password.Algorithm {
	case "", password.AlgorithmBcrypt, password.AlgorithmArgon2id:
	default:
		return fmt.Errorf("unsupported password algorithm %q", c.Password.Algorithm)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.MaxLoginAttempts <= 0 {
			return errors.New("RateLimit MaxLoginAttempts must be > 0")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	if c.Redis.URL == "" && (c.Redis.Host == "" || c.Redis.Port <= 0) {
		return errors.New("Redis requires URL or Host and Port")
	}
	if c.Mongo.URI == "" && (c.Mongo.Host == "" || c.Mongo.Port <= 0) {
		return errors.New("Mongo requires URI or Host and Port")
	}
	if c.Mongo.Database == "" {
		return errors.New("Mongo Database must be set")
	}
	if c.Redis.Ready.Attempts <= 0 || c.Mongo.Ready.Attempts <= 0 {
		return errors.New("readiness Attempts must be > 0")
	}
	if c.Redis.Ready.InitialDelay < 0 || c.Mongo.Ready.InitialDelay < 0 {
		return errors.New("readiness InitialDelay must be >= 0")
	}

	return nil
}

// UsesDefaultSecret reports whether the development secret is still in use.
func (c *Config) UsesDefaultSecret() bool {
	return string(c.JWT.Secret) == DefaultSecret
}
