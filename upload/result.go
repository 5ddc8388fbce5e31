// Package upload drives pending pings to the telemetry endpoint: request
// preparation, retry policy, rate limiting, and the upload worker itself.
package upload

// ResultStatus classifies one upload attempt.
type ResultStatus int

const (
	// RecoverableFailure means the attempt may be retried (network error,
	// server error).
	RecoverableFailure ResultStatus = iota
	// UnrecoverableFailure means retrying cannot help; the ping is
	// dropped.
	UnrecoverableFailure
	// Success means the server responded. The HTTP status decides what
	// happens next.
	Success
)

func (s ResultStatus) String() string {
	switch s {
	case RecoverableFailure:
		return "recoverable failure"
	case UnrecoverableFailure:
		return "unrecoverable failure"
	case Success:
		return "success"
	}
	return "unknown"
}

// UploadResult is the outcome of one upload attempt.
type UploadResult struct {
	Status ResultStatus
	// HTTPStatus is only meaningful when Status is Success.
	HTTPStatus int
}

// Policy bounds the uploader's persistence.
type Policy struct {
	// MaxRecoverableFailures is how many recoverable failures one ping
	// may accumulate before uploading halts.
	MaxRecoverableFailures int
	// MaxPingBodySize caps the serialized (pre-compression) ping body.
	// Oversize pings are dropped, never retried.
	MaxPingBodySize int
}

// DefaultPolicy returns the stock upload policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxRecoverableFailures: 3,
		MaxPingBodySize:        1024 * 1024,
	}
}
