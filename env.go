package goTodo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goTodo/internal/backends"
	"github.com/MrEthical07/goTodo/internal/bootstrap"
	"github.com/MrEthical07/goTodo/password"
	"github.com/joho/godotenv"
)

// DefaultEnvFile is read by LoadConfig when no path is given.
const DefaultEnvFile = ".env"

// LoadConfig returns DefaultConfig overridden by environment variables.
//
// Variables from envFile (default ".env") are loaded first when the file
// exists; variables already set in the process environment win. Empty
// variables are treated as unset. Every malformed value is reported.
func LoadConfig(envFile ...string) (Config, error) {
	path := DefaultEnvFile
	if len(envFile) > 0 && envFile[0] != "" {
		path = envFile[0]
	}

	cfg := DefaultConfig()
	cfg.App.ConfigSource = "Loaded from environment variables (no .env file found)"
	if _, err := os.Stat(path); err == nil {
		if err := godotenv.Load(path); err != nil {
			return cfg, fmt.Errorf("load %s: %w", path, err)
		}
		abs, _ := filepath.Abs(path)
		cfg.App.ConfigSource = "Loaded from .env file: " + abs
	}

	var r envReader

	cfg.App.Name = r.getString("APP_NAME", cfg.App.Name)
	cfg.App.Version = r.getString("APP_VERSION", cfg.App.Version)
	cfg.App.Description = r.getString("APP_DESCRIPTION", cfg.App.Description)
	cfg.App.Debug = r.getBool("APP_DEBUG", cfg.App.Debug)
	cfg.App.Host = r.getString("APP_HOST", cfg.App.Host)
	cfg.App.Port = r.getInt("APP_PORT", cfg.App.Port)

	cfg.JWT.Secret = []byte(r.getString("SECURITY_SECRET_KEY", string(cfg.JWT.Secret)))
	cfg.JWT.Algorithm = strings.ToUpper(r.getString("SECURITY_JWT_ALGORITHM", cfg.JWT.Algorithm))
	cfg.JWT.AccessTTL = r.getMinutes("SECURITY_ACCESS_TOKEN_EXPIRE_MINUTES", cfg.JWT.AccessTTL)
	cfg.JWT.RefreshTTL = r.getMinutes("SECURITY_REFRESH_TOKEN_EXPIRE_MINUTES", cfg.JWT.RefreshTTL)
	cfg.JWT.Leeway = r.getDuration("SECURITY_JWT_LEEWAY", cfg.JWT.Leeway)
	cfg.JWT.Issuer = r.getString("SECURITY_JWT_ISSUER", cfg.JWT.Issuer)
	cfg.Password.Algorithm = password.Algorithm(strings.ToLower(r.getString("SECURITY_PASSWORD_ALGORITHM", string(cfg.Password.Algorithm))))
	cfg.Password.BcryptCost = r.getInt("SECURITY_BCRYPT_COST", cfg.Password.BcryptCost)

	cfg.Session.Namespace = r.getString("SESSION_NAMESPACE", cfg.Session.Namespace)

	cfg.Mongo.URI = r.getString("DATABASE_URI", cfg.Mongo.URI)
	cfg.Mongo.Host = r.getString("DATABASE_HOST", cfg.Mongo.Host)
	cfg.Mongo.Port = r.getInt("DATABASE_PORT", cfg.Mongo.Port)
	cfg.Mongo.Database = r.getString("DATABASE_NAME", cfg.Mongo.Database)
	cfg.Mongo.User = r.getString("DATABASE_USER", cfg.Mongo.User)
	cfg.Mongo.Password = r.getString("DATABASE_PASSWORD", cfg.Mongo.Password)
	cfg.Mongo.AuthSource = r.getString("DATABASE_AUTH_SOURCE", cfg.Mongo.AuthSource)
	cfg.Mongo.Ready.Attempts = r.getInt("MONGO_READY_ATTEMPTS", cfg.Mongo.Ready.Attempts)
	cfg.Mongo.Ready.InitialDelay = r.getDuration("MONGO_READY_DELAY", cfg.Mongo.Ready.InitialDelay)
	cfg.Mongo.Ready.MaxDelay = r.getDuration("MONGO_READY_MAX_DELAY", cfg.Mongo.Ready.MaxDelay)

	cfg.Redis.URL = r.getString("REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Host = r.getString("REDIS_HOST", cfg.Redis.Host)
	cfg.Redis.Port = r.getInt("REDIS_PORT", cfg.Redis.Port)
	cfg.Redis.Username = r.getString("REDIS_USERNAME", cfg.Redis.Username)
	cfg.Redis.Password = r.getString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = r.getInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.TLS = r.getBool("REDIS_SSL", cfg.Redis.TLS)
	cfg.Redis.CertReqs = backends.ParseCertRequirement(r.getString("REDIS_SSL_CERT_REQS", string(cfg.Redis.CertReqs)))
	cfg.Redis.ConnectTimeout = r.getSeconds("REDIS_SOCKET_CONNECT_TIMEOUT", cfg.Redis.ConnectTimeout)
	cfg.Redis.SocketTimeout = r.getSeconds("REDIS_SOCKET_TIMEOUT", cfg.Redis.SocketTimeout)
	cfg.Redis.PoolSize = r.getInt("REDIS_CONNECTION_POOL_MAX_CONNECTIONS", cfg.Redis.PoolSize)
	cfg.Redis.Ready.Attempts = r.getInt("REDIS_READY_ATTEMPTS", cfg.Redis.Ready.Attempts)
	cfg.Redis.Ready.InitialDelay = r.getDuration("REDIS_READY_DELAY", cfg.Redis.Ready.InitialDelay)
	cfg.Redis.Ready.MaxDelay = r.getDuration("REDIS_READY_MAX_DELAY", cfg.Redis.Ready.MaxDelay)

	cfg.Log.Level = r.getString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(r.getString("LOG_FORMAT", cfg.Log.Format))
	cfg.Log.File = r.getString("LOG_FILE", cfg.Log.File)
	cfg.Log.Retention = r.getString("LOG_RETENTION", cfg.Log.Retention)
	cfg.Log.Rotation = r.getString("LOG_ROTATION", cfg.Log.Rotation)
	if v := r.getString("LOG_DATE_FORMAT", ""); v != "" {
		cfg.Log.DateLayout = strftimeLayout(v)
	}
	if v := r.getString("LOG_HANDLERS", ""); v != "" {
		cfg.Log.Handlers = splitList(v)
	}

	cfg.Bootstrap.Cleanup = bootstrap.ParseCleanupMode(r.getString("BOOTSTRAP_CLEANUP", cfg.Bootstrap.Cleanup.String()))

	cfg.RateLimit.Enabled = r.getBool("LOGIN_RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.MaxLoginAttempts = r.getInt("LOGIN_MAX_ATTEMPTS", cfg.RateLimit.MaxLoginAttempts)
	cfg.RateLimit.Window = r.getDuration("LOGIN_WINDOW", cfg.RateLimit.Window)

	cfg.Audit.Enabled = r.getBool("AUDIT_ENABLED", cfg.Audit.Enabled)
	cfg.Audit.BufferSize = r.getInt("AUDIT_BUFFER_SIZE", cfg.Audit.BufferSize)
	cfg.Metrics.Enabled = r.getBool("METRICS_ENABLED", cfg.Metrics.Enabled)

	if err := errors.Join(r.errs...); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// envReader collects parse errors so LoadConfig can report all of them.
type envReader struct {
	errs []error
}

func (r *envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (r *envReader) getString(key, def string) string {
	if v, ok := r.lookup(key); ok {
		return v
	}
	return def
}

func (r *envReader) getInt(key string, def int) int {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("environment variable %s must be an integer: %w", key, err))
		return def
	}
	return n
}

func (r *envReader) getBool(key string, def bool) bool {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("environment variable %s must be a valid boolean: %w", key, err))
		return def
	}
	return b
}

// getDuration accepts Go durations ("250ms") and bare integers as milliseconds.
func (r *envReader) getDuration(key string, def time.Duration) time.Duration {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	r.errs = append(r.errs, fmt.Errorf("environment variable %s must be a valid duration", key))
	return def
}

func (r *envReader) getMinutes(key string, def time.Duration) time.Duration {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("environment variable %s must be a whole number of minutes: %w", key, err))
		return def
	}
	return time.Duration(n) * time.Minute
}

func (r *envReader) getSeconds(key string, def time.Duration) time.Duration {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("environment variable %s must be a number of seconds: %w", key, err))
		return def
	}
	return time.Duration(n * float64(time.Second))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var strftimeDirectives = strings.NewReplacer(
	"%Y", "2006",
	"%y", "06",
	"%m", "01",
	"%d", "02",
	"%H", "15",
	"%I", "03",
	"%M", "04",
	"%S", "05",
	"%p", "PM",
	"%b", "Jan",
	"%B", "January",
	"%a", "Mon",
	"%A", "Monday",
	"%z", "-0700",
	"%Z", "MST",
	"%f", "000000",
	"%%", "%",
)

// strftimeLayout converts the common strftime directives used by
// LOG_DATE_FORMAT into a Go time layout.
func strftimeLayout(format string) string {
	return strftimeDirectives.Replace(format)
}
