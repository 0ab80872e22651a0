package internaldefs

import (
	"strconv"

	"github.com/MrEthical07/authflow"
)

// CounterDef names one counter for every exporter.
type CounterDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authflow.MetricLoginSuccess, Name: "authflow_login_success_total", Help: "Logins accepted with a token."},
	{ID: authflow.MetricLoginFailure, Name: "authflow_login_failure_total", Help: "Logins rejected by the service or missing a token."},
	{ID: authflow.MetricRegisterSuccess, Name: "authflow_register_success_total", Help: "Accounts registered."},
	{ID: authflow.MetricRegisterFailure, Name: "authflow_register_failure_total", Help: "Failed registrations."},
	{ID: authflow.MetricLogout, Name: "authflow_logout_total", Help: "Local logouts."},
	{ID: authflow.MetricResetStart, Name: "authflow_reset_start_total", Help: "Reset codes generated."},
	{ID: authflow.MetricResetStartRejected, Name: "authflow_reset_start_rejected_total", Help: "Reset starts rejected for a blank email."},
	{ID: authflow.MetricResetVerifySuccess, Name: "authflow_reset_verify_success_total", Help: "Reset codes verified."},
	{ID: authflow.MetricResetVerifyFailure, Name: "authflow_reset_verify_failure_total", Help: "Reset code checks that failed."},
	{ID: authflow.MetricResetCodeExpired, Name: "authflow_reset_code_expired_total", Help: "Reset code checks after expiry."},
	{ID: authflow.MetricResetFinishSuccess, Name: "authflow_reset_finish_success_total", Help: "Reset sessions completed."},
	{ID: authflow.MetricResetFinishFailure, Name: "authflow_reset_finish_failure_total", Help: "Reset completions refused."},
}

var HistogramDefs = []HistogramDef{
	{ID: authflow.MetricServiceLatency, Name: "authflow_service_latency_seconds", Help: "Authentication service round-trip latency."},
}

const AuditDroppedName = "authflow_audit_dropped_total"

const AuditDroppedHelp = "Audit events dropped by the dispatcher."

// UpperBounds returns authflow.LatencyBuckets in seconds. The overflow slot
// has no bound.
func UpperBounds() []float64 {
	out := make([]float64, len(authflow.LatencyBuckets))
	for i, b := range authflow.LatencyBuckets {
		out[i] = b.Seconds()
	}
	return out
}

// BucketLabels returns the "le" label of every slot: "0.005", ..., "+Inf".
func BucketLabels() []string {
	bounds := UpperBounds()
	out := make([]string, 0, len(bounds)+1)
	for _, b := range bounds {
		out = append(out, strconv.FormatFloat(b, 'f', -1, 64))
	}
	return append(out, "+Inf")
}

// Cumulative pads or truncates raw per-slot counts to the slot count and
// turns them into running totals. The last entry is the sample count.
func Cumulative(raw []uint64) []uint64 {
	out := make([]uint64, len(authflow.LatencyBuckets)+1)
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
