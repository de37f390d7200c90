package goTodo

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goTodo/internal/backends"
	"github.com/MrEthical07/goTodo/internal/bootstrap"
	"github.com/MrEthical07/goTodo/password"
)

// LintSeverity ranks configuration warnings.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintHigh:
		return "HIGH"
	case LintWarn:
		return "WARN"
	default:
		return "INFO"
	}
}

// LintWarning is one finding from [Config.Lint]. Code is stable and safe to
// match on.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of findings.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	codes := make([]string, len(r))
	for i, w := range r {
		codes[i] = w.Code
	}
	return codes
}

// BySeverity returns the warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins every warning at or above min into one error, or returns nil.
func (r LintResult) AsError(min LintSeverity) error {
	var errs []error
	for _, w := range r.BySeverity(min) {
		errs = append(errs, fmt.Errorf("%s [%s]: %s", w.Code, w.Severity, w.Message))
	}
	return errors.Join(errs...)
}

const (
	minSecretLength     = 32
	maxLeeway           = time.Minute
	maxAccessTTL        = time.Hour
	maxRefreshTTL       = 14 * 24 * time.Hour
	minArgon2MemoryKiB  = 64 * 1024
	minProductionBcrypt = 10
)

// Lint reports settings that are valid but weaken the deployment. Unlike
// Validate it never blocks Build; the Builder logs the findings.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, format string, args ...any) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	switch {
	case c.UsesDefaultSecret():
		add("default_secret", LintHigh, "JWT secret is the development default; set SECURITY_SECRET_KEY")
	case len(c.JWT.Secret) < minSecretLength:
		add("secret_short", LintWarn, "JWT secret is %d bytes; use at least %d", len(c.JWT.Secret), minSecretLength)
	}

	if c.App.Debug {
		add("debug_enabled", LintInfo, "APP_DEBUG is on")
	}
	if c.JWT.Leeway > maxLeeway {
		add("leeway_large", LintWarn, "JWT leeway %s exceeds %s", c.JWT.Leeway, maxLeeway)
	}
	if c.JWT.AccessTTL > maxAccessTTL {
		add("access_ttl_long", LintWarn, "access token lifetime %s exceeds %s", c.JWT.AccessTTL, maxAccessTTL)
	}
	if c.JWT.RefreshTTL > maxRefreshTTL {
		add("refresh_ttl_long", LintWarn, "refresh token lifetime %s exceeds %s", c.JWT.RefreshTTL, maxRefreshTTL)
	}

	if !c.RateLimit.Enabled {
		add("rate_limits_disabled", LintHigh, "failed-login throttling is disabled")
	} else if !c.RateLimit.ThrottleByIP {
		add("ip_throttle_disabled", LintInfo, "failed logins are only counted per username")
	}

	switch c.Password.Algorithm {
	case password.AlgorithmArgon2id:
		if c.Password.Argon2.Memory < minArgon2MemoryKiB {
			add("argon2_memory_low", LintWarn, "argon2id memory %d KiB is below %d KiB", c.Password.Argon2.Memory, minArgon2MemoryKiB)
		}
	default:
		if cost := c.Password.BcryptCost; cost != 0 && cost < minProductionBcrypt {
			add("bcrypt_cost_low", LintWarn, "bcrypt cost %d is below %d", c.Password.BcryptCost, minProductionBcrypt)
		}
	}

	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "authentication events are not audited")
	}
	if c.Redis.TLS && c.Redis.CertReqs == backends.CertNone {
		add("redis_tls_unverified", LintWarn, "Redis TLS does not verify the server certificate")
	}
	if c.Bootstrap.Cleanup == bootstrap.CleanupLegacy {
		add("bootstrap_legacy_cleanup", LintInfo, "clients that fail readiness are left open")
	}

	return ws
}

// String renders one finding per line.
func (r LintResult) String() string {
	var b strings.Builder
	for _, w := range r {
		fmt.Fprintf(&b, "%s %s: %s\n", w.Severity, w.Code, w.Message)
	}
	return b.String()
}
