package telemetry

// SLI metric names used for instrumentation.
const (
	// Latency
	MetricAPILatencyP50 = "api.latency.p50"
	MetricAPILatencyP95 = "api.latency.p95"
	MetricAPILatencyP99 = "api.latency.p99"

	// Throughput
	MetricRequestsPerSec = "api.requests_per_second"

	// Data freshness
	MetricFixLatency      = "positioning.fix_latency"
	MetricPositionAge     = "positioning.position_age_seconds"
	MetricStabilityWindow = "positioning.time_to_stable_seconds"

	// Availability
	MetricUptime = "service.uptime_percentage"

	// Business
	MetricSessionsOpened = "business.sessions_opened"
	MetricCompletions    = "business.completions_recorded"
)
