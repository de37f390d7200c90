package internaldefs

import (
	goTodo "github.com/MrEthical07/goTodo"
)

// BucketCount is the number of validate latency buckets, +Inf included.
const BucketCount = 8

// CounterDef names one engine counter.
type CounterDef struct {
	ID   goTodo.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   goTodo.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for events discarded by the audit buffer.
const AuditDroppedName = "todo_audit_dropped_total"

// AuditDroppedHelp describes AuditDroppedName.
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: goTodo.MetricLoginSuccess, Name: "todo_login_success_total", Help: "Successful login attempts."},
	{ID: goTodo.MetricLoginFailure, Name: "todo_login_failure_total", Help: "Failed login attempts."},
	{ID: goTodo.MetricLoginRateLimited, Name: "todo_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: goTodo.MetricRefreshSuccess, Name: "todo_refresh_success_total", Help: "Successful refresh operations."},
	{ID: goTodo.MetricRefreshFailure, Name: "todo_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: goTodo.MetricTokenIssued, Name: "todo_token_issued_total", Help: "Signed access and refresh tokens."},
	{ID: goTodo.MetricTokenInvalid, Name: "todo_token_invalid_total", Help: "Tokens rejected for signature or format."},
	{ID: goTodo.MetricTokenExpired, Name: "todo_token_expired_total", Help: "Tokens rejected as expired."},
	{ID: goTodo.MetricTokenKindMismatch, Name: "todo_token_kind_mismatch_total", Help: "Tokens presented as the wrong kind."},
	{ID: goTodo.MetricSessionStored, Name: "todo_session_stored_total", Help: "Session records written."},
	{ID: goTodo.MetricSessionRevoked, Name: "todo_session_revoked_total", Help: "Session records revoked."},
	{ID: goTodo.MetricSessionInactive, Name: "todo_session_inactive_total", Help: "Valid tokens whose session was replaced or revoked."},
	{ID: goTodo.MetricLogout, Name: "todo_logout_total", Help: "Logout operations."},
	{ID: goTodo.MetricPasswordRehashed, Name: "todo_password_rehashed_total", Help: "Password digests upgraded at login."},
	{ID: goTodo.MetricBackendUnavailable, Name: "todo_backend_unavailable_total", Help: "Requests failed by a backing service error."},
	{ID: goTodo.MetricBootstrapProbeFailure, Name: "todo_bootstrap_probe_failure_total", Help: "Failed readiness probes during startup."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goTodo.MetricValidateLatency, Name: "todo_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds are the Prometheus le labels of the latency buckets.
var HistogramBounds = [BucketCount]string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are instrument-name-safe forms of HistogramBounds.
var HistogramBoundSuffix = [BucketCount]string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing
// buckets.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := range raw {
		running += raw[i]
		out[i] = running
	}
	return out
}
