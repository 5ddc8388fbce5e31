package types

// Wire-level constants. These values are part of the payload contract with
// the ingestion pipeline and must not change between releases.
const (
	// SchemaVersion is the payload schema version embedded in submission paths.
	SchemaVersion = 1

	// SDKVersion is reported as telemetry_sdk_build in every ping's client_info.
	SDKVersion = "0.20.0"

	// PingInfoStorage is the reserved store for per-ping bookkeeping
	// (sequence numbers and start times).
	PingInfoStorage = "glean_ping_info"

	// ClientInfoStorage is the reserved store for client_info metrics.
	ClientInfoStorage = "glean_client_info"

	// KnownClientID is the fixed client id recorded while upload is disabled.
	KnownClientID = "c0ffeec0-ffee-c0ff-eec0-ffeec0ffeec0"

	// DeletionRequestPingName is the ping submitted when upload is disabled.
	DeletionRequestPingName = "deletion-request"

	// DefaultTelemetryEndpoint receives pings unless configured otherwise.
	DefaultTelemetryEndpoint = "https://incoming.telemetry.mozilla.org"

	// MaxSourceTags caps the number of tags accepted for X-Source-Tags.
	MaxSourceTags = 5
)

// Reserved event extras. Stamped onto stored events by the events database
// and stripped before payload assembly. The "#" prefix keeps them out of the
// user-definable extra key space.
const (
	ExecutionCounterExtra = "#glean_execution_counter"
	ReferenceTimeExtra    = "#glean_reference_time"
)

// maxSafeInteger is the largest integer exactly representable in an IEEE 754
// double (2^53 - 1). Counters and quantities saturate here so payloads stay
// faithful after a JSON round trip.
const maxSafeInteger int64 = 9007199254740991

// MaxSafeInteger is the saturation bound for counter and quantity metrics.
func MaxSafeInteger() int64 { return maxSafeInteger }

// ReservedMetricCategory prefixes metrics recorded by the SDK about itself.
const ReservedMetricCategory = "glean"

// ReservedMetricIdentifiers returns the metadata identifiers for an internal
// SDK metric. The "reserved#" infix cannot collide with user metrics because
// "#" is rejected by metric naming rules.
func ReservedMetricIdentifiers(name string) (category, metricName string) {
	return ReservedMetricCategory, "reserved#" + name
}

// ReservedIdentifierPrefix marks identifiers that never surface in payloads.
const ReservedIdentifierPrefix = "glean.reserved#"
