package backends

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goTodo/internal/bootstrap"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CertRequirement controls how strictly a TLS Redis connection checks the
// server certificate.
type CertRequirement string

const (
	// CertNone skips certificate verification.
	CertNone CertRequirement = "none"
	// CertOptional verifies the presented chain but not the host name.
	CertOptional CertRequirement = "optional"
	// CertRequired performs full chain and host name verification.
	CertRequired CertRequirement = "required"
)

// ParseCertRequirement maps a configuration string to a requirement. Unknown
// values fall back to CertNone.
func ParseCertRequirement(s string) CertRequirement {
	switch CertRequirement(strings.ToLower(strings.TrimSpace(s))) {
	case CertOptional:
		return CertOptional
	case CertRequired:
		return CertRequired
	default:
		return CertNone
	}
}

// RedisConfig holds the connection parameters for the key-value store.
type RedisConfig struct {
	// URL overrides Host/Port/Username/Password/DB/TLS when set.
	URL            string
	Host           string
	Port           int
	Username       string
	Password       string
	DB             int
	TLS            bool
	CertReqs       CertRequirement
	ConnectTimeout time.Duration
	SocketTimeout  time.Duration
	PoolSize       int
	Ready          bootstrap.Policy
}

// DefaultRedisReadyPolicy is the readiness budget for the key-value store.
func DefaultRedisReadyPolicy() bootstrap.Policy {
	return bootstrap.Policy{
		Attempts:     20,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     3 * time.Second,
		Multiplier:   1.5,
	}
}

// RedisURL returns cfg.URL or builds redis[s]://[user:pass@]host:port/db.
func RedisURL(cfg RedisConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}

	u := url.URL{
		Scheme: "redis",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + strconv.Itoa(cfg.DB),
	}
	if cfg.TLS {
		u.Scheme = "rediss"
	}
	switch {
	case cfg.Username != "" && cfg.Password != "":
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	case cfg.Password != "":
		u.User = url.UserPassword("", cfg.Password)
	}
	return u.String()
}

// NewRedisClient builds a client from cfg without contacting the server.
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(RedisURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	if cfg.ConnectTimeout > 0 {
		opts.DialTimeout = cfg.ConnectTimeout
	}
	if cfg.SocketTimeout > 0 {
		opts.ReadTimeout = cfg.SocketTimeout
		opts.WriteTimeout = cfg.SocketTimeout
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	if opts.TLSConfig != nil || cfg.TLS {
		serverName := ""
		if opts.TLSConfig != nil {
			serverName = opts.TLSConfig.ServerName
		}
		if serverName == "" {
			serverName, _, _ = net.SplitHostPort(opts.Addr)
		}
		opts.TLSConfig = redisTLSConfig(cfg.CertReqs, serverName)
	}

	return redis.NewClient(opts), nil
}

func redisTLSConfig(req CertRequirement, serverName string) *tls.Config {
	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: serverName,
	}

	switch req {
	case CertRequired:
	case CertOptional:
		// Chain is checked by hand so the host name can be skipped.
		cfg.InsecureSkipVerify = true
		cfg.VerifyPeerCertificate = verifyChainOnly
	default:
		cfg.InsecureSkipVerify = true
	}
	return cfg
}

func verifyChainOnly(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	if len(rawCerts) == 0 {
		return nil
	}
	certs := make([]*x509.Certificate, 0, len(rawCerts))
	for _, raw := range rawCerts {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return fmt.Errorf("parse redis server certificate: %w", err)
		}
		certs = append(certs, cert)
	}

	intermediates := x509.NewCertPool()
	for _, c := range certs[1:] {
		intermediates.AddCert(c)
	}
	_, err := certs[0].Verify(x509.VerifyOptions{Intermediates: intermediates})
	return err
}

// PingRedis is the key-value store readiness probe.
func PingRedis(ctx context.Context, client redis.UniversalClient) error {
	if client == nil {
		return errors.New("nil redis client")
	}
	return client.Ping(ctx).Err()
}

// RedisLifespan wires the Redis client into the bootstrap lifecycle.
func RedisLifespan(cfg RedisConfig, mode bootstrap.CleanupMode, logger zerolog.Logger) *bootstrap.Lifespan[*redis.Client] {
	return &bootstrap.Lifespan[*redis.Client]{
		Name: "redis",
		Build: func(context.Context) (*redis.Client, error) {
			return NewRedisClient(cfg)
		},
		Probe: func(ctx context.Context, c *redis.Client) error {
			return PingRedis(ctx, c)
		},
		Close: func(c *redis.Client) error {
			return c.Close()
		},
		Policy:  cfg.Ready,
		Cleanup: mode,
		Logger:  logger,
	}
}
