package goTodo

import (
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goTodo/internal/backends"
	"github.com/MrEthical07/goTodo/password"
)

func productionConfig() Config {
	cfg := DefaultConfig()
	cfg.App.Debug = false
	cfg.JWT.Secret = []byte(strings.Repeat("k", 48))
	return cfg
}

func TestLint_ProductionConfigClean(t *testing.T) {
	cfg := productionConfig()
	if ws := cfg.Lint(); len(ws) != 0 {
		t.Fatalf("expected no warnings, got:\n%s", ws)
	}
}

func TestLint_DefaultConfigFlagsSecret(t *testing.T) {
	cfg := DefaultConfig()
	ws := cfg.Lint()

	if !containsCode(ws.Codes(), "default_secret") {
		t.Fatalf("expected default_secret, got %v", ws.Codes())
	}
	if !containsCode(ws.Codes(), "debug_enabled") {
		t.Fatalf("expected debug_enabled, got %v", ws.Codes())
	}
	if containsCode(ws.Codes(), "rate_limits_disabled") {
		t.Fatal("default config must keep login throttling on")
	}
}

func TestLint_ShortSecret(t *testing.T) {
	cfg := productionConfig()
	cfg.JWT.Secret = []byte("short")
	if !containsCode(cfg.Lint().Codes(), "secret_short") {
		t.Fatal("expected secret_short warning")
	}
}

func TestLint_TokenLifetimes(t *testing.T) {
	cfg := productionConfig()
	cfg.JWT.Leeway = 90 * time.Second
	cfg.JWT.AccessTTL = 2 * time.Hour
	cfg.JWT.RefreshTTL = 30 * 24 * time.Hour

	codes := cfg.Lint().Codes()
	for _, code := range []string{"leeway_large", "access_ttl_long", "refresh_ttl_long"} {
		if !containsCode(codes, code) {
			t.Errorf("expected %s warning, got %v", code, codes)
		}
	}
}

func TestLint_RateLimits(t *testing.T) {
	cfg := productionConfig()
	cfg.RateLimit.ThrottleByIP = false
	if !containsCode(cfg.Lint().Codes(), "ip_throttle_disabled") {
		t.Error("expected ip_throttle_disabled warning")
	}

	cfg.RateLimit.Enabled = false
	codes := cfg.Lint().Codes()
	if !containsCode(codes, "rate_limits_disabled") {
		t.Error("expected rate_limits_disabled warning")
	}
	if containsCode(codes, "ip_throttle_disabled") {
		t.Error("ip_throttle_disabled is implied by rate_limits_disabled")
	}
}

func TestLint_PasswordCosts(t *testing.T) {
	cfg := productionConfig()
	cfg.Password.BcryptCost = 4
	if !containsCode(cfg.Lint().Codes(), "bcrypt_cost_low") {
		t.Error("expected bcrypt_cost_low warning")
	}

	cfg.Password.Algorithm = password.AlgorithmArgon2id
	cfg.Password.Argon2.Memory = 16 * 1024
	codes := cfg.Lint().Codes()
	if !containsCode(codes, "argon2_memory_low") {
		t.Error("expected argon2_memory_low warning")
	}
	if containsCode(codes, "bcrypt_cost_low") {
		t.Error("bcrypt cost is irrelevant when hashing with argon2id")
	}

	cfg.Password.Argon2.Memory = 64 * 1024
	if containsCode(cfg.Lint().Codes(), "argon2_memory_low") {
		t.Error("should not warn when memory == 64 MiB")
	}
}

func TestLint_AuditAndRedisTLS(t *testing.T) {
	cfg := productionConfig()
	cfg.Audit.Enabled = false
	cfg.Redis.TLS = true
	cfg.Redis.CertReqs = backends.CertNone

	codes := cfg.Lint().Codes()
	if !containsCode(codes, "audit_disabled") || !containsCode(codes, "redis_tls_unverified") {
		t.Fatalf("unexpected codes %v", codes)
	}

	cfg.Redis.CertReqs = backends.CertRequired
	if containsCode(cfg.Lint().Codes(), "redis_tls_unverified") {
		t.Fatal("verified TLS should not warn")
	}
}

func TestLint_SeverityAndAsError(t *testing.T) {
	cfg := productionConfig()
	cfg.App.Debug = true
	if err := cfg.Lint().AsError(LintHigh); err != nil {
		t.Fatalf("info findings must not fail AsError(LintHigh): %v", err)
	}

	cfg.RateLimit.Enabled = false
	ws := cfg.Lint()
	high := ws.BySeverity(LintHigh)
	if len(high) != 1 || high[0].Code != "rate_limits_disabled" {
		t.Fatalf("unexpected HIGH findings %+v", high)
	}
	err := ws.AsError(LintHigh)
	if err == nil || !strings.Contains(err.Error(), "rate_limits_disabled [HIGH]") {
		t.Fatalf("AsError = %v", err)
	}
}

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
