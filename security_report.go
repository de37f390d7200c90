package goTodo

import (
	"time"

	"github.com/MrEthical07/goTodo/password"
)

// SecurityReport summarizes the security-relevant settings of a built Engine.
type SecurityReport struct {
	SigningAlgorithm   string
	DefaultSecret      bool
	AccessTTL          time.Duration
	RefreshTTL         time.Duration
	Leeway             time.Duration
	PasswordAlgorithm  password.Algorithm
	BcryptCost         int
	Argon2             password.Argon2Config
	RateLimitingActive bool
	MaxLoginAttempts   int
	LoginWindow        time.Duration
	ThrottleByIP       bool
	AuditEnabled       bool
	MetricsEnabled     bool
	Findings           LintResult
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	cfg := e.config
	algorithm := cfg.Password.Algorithm
	if algorithm == "" {
		algorithm = password.AlgorithmBcrypt
	}

	return SecurityReport{
		SigningAlgorithm:   cfg.JWT.Algorithm,
		DefaultSecret:      cfg.UsesDefaultSecret(),
		AccessTTL:          cfg.JWT.AccessTTL,
		RefreshTTL:         cfg.JWT.RefreshTTL,
		Leeway:             cfg.JWT.Leeway,
		PasswordAlgorithm:  algorithm,
		BcryptCost:         cfg.Password.BcryptCost,
		Argon2:             cfg.Password.Argon2,
		RateLimitingActive: cfg.RateLimit.Enabled && cfg.RateLimit.MaxLoginAttempts > 0 && cfg.RateLimit.Window > 0,
		MaxLoginAttempts:   cfg.RateLimit.MaxLoginAttempts,
		LoginWindow:        cfg.RateLimit.Window,
		ThrottleByIP:       cfg.RateLimit.ThrottleByIP,
		AuditEnabled:       cfg.Audit.Enabled,
		MetricsEnabled:     e.metrics.Enabled(),
		Findings:           cfg.Lint(),
	}
}
