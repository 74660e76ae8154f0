package internaldefs

import (
	"github.com/MrEthical07/statelessauth"
)

// CounterDef names one Engine counter.
type CounterDef struct {
	ID   statelessauth.MetricID
	Name string
	Help string
}

// HistogramDef names one Engine latency histogram.
type HistogramDef struct {
	ID   statelessauth.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "statelessauth_audit_dropped_total"

// CounterDefs lists every exported counter.
var CounterDefs = []CounterDef{
	{ID: statelessauth.MetricRegisterSuccess, Name: "statelessauth_register_success_total", Help: "Successful registrations."},
	{ID: statelessauth.MetricRegisterDuplicate, Name: "statelessauth_register_duplicate_total", Help: "Registrations rejected for an existing email."},
	{ID: statelessauth.MetricRegisterInvalid, Name: "statelessauth_register_invalid_total", Help: "Registrations rejected by input validation."},
	{ID: statelessauth.MetricLoginSuccess, Name: "statelessauth_login_success_total", Help: "Successful logins."},
	{ID: statelessauth.MetricLoginFailure, Name: "statelessauth_login_failure_total", Help: "Failed logins."},
	{ID: statelessauth.MetricRefreshSuccess, Name: "statelessauth_refresh_success_total", Help: "Access tokens issued from a refresh token."},
	{ID: statelessauth.MetricRefreshFailure, Name: "statelessauth_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: statelessauth.MetricLogout, Name: "statelessauth_logout_total", Help: "Logouts."},
	{ID: statelessauth.MetricAuthenticateSuccess, Name: "statelessauth_authenticate_success_total", Help: "Bearer tokens bound to a security context."},
	{ID: statelessauth.MetricAuthenticateRejected, Name: "statelessauth_authenticate_rejected_total", Help: "Bearer tokens that left the request unauthenticated."},
	{ID: statelessauth.MetricTokenExpired, Name: "statelessauth_token_expired_total", Help: "Token verifications failed on expiry."},
	{ID: statelessauth.MetricTokenMalformed, Name: "statelessauth_token_malformed_total", Help: "Token verifications failed on decoding or claims."},
	{ID: statelessauth.MetricTokenTampered, Name: "statelessauth_token_tampered_total", Help: "Token verifications failed on signature or algorithm."},
	{ID: statelessauth.MetricPasswordUpgraded, Name: "statelessauth_password_upgraded_total", Help: "Password hashes re-written after login."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: statelessauth.MetricLoginLatency, Name: "statelessauth_login_latency_seconds", Help: "Login latency."},
	{ID: statelessauth.MetricAuthenticateLatency, Name: "statelessauth_authenticate_latency_seconds", Help: "Bearer authentication latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The Engine
// keeps one more bucket for +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf last.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed 8-bucket array, zero-filling.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
