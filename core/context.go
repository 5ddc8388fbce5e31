// Package core holds the shared SDK state and the contracts between the
// recording pipeline's subsystems.
//
// Context replaces any notion of process-global state: every database and
// metric type receives the Context it operates on, so tests can build fully
// isolated SDK instances side by side.
package core

import (
	"sync/atomic"
	"time"

	"github.com/pellucid-io/beacon/dispatcher"
	"github.com/pellucid-io/beacon/log"
	"github.com/pellucid-io/beacon/types"
)

// MetricsDatabase stores metric values partitioned by lifetime and ping.
type MetricsDatabase interface {
	// Record replaces the stored value of the metric in every destination
	// ping.
	Record(meta *types.CommonMetricData, value types.Value)
	// Transform rewrites the stored value of the metric in every
	// destination ping. The transform sees nil when nothing is stored yet
	// and returns the new storage representation.
	Transform(meta *types.CommonMetricData, kind types.Kind, transform func(old any) any)
	// GetMetric returns the validated value stored for the metric in the
	// given ping, or nil. Corrupt values are deleted on read.
	GetMetric(ping string, meta *types.CommonMetricData, kind types.Kind) types.Value
	// GetPingMetrics assembles the metrics section of a ping payload,
	// optionally clearing ping-lifetime data. ok is false when the ping
	// has no metrics at all.
	GetPingMetrics(ping string, clear bool) (payload map[string]any, ok bool)
	// Clear wipes one lifetime, or a single ping's slice of it when ping
	// is non-empty.
	Clear(lifetime types.Lifetime, ping string)
	// ClearAll wipes every lifetime.
	ClearAll()
}

// EventsDatabase stores the append-only event log.
type EventsDatabase interface {
	// Initialize injects restart markers for stores that carried events
	// over from a previous run. Must run on the dispatcher flow during
	// SDK init.
	Initialize()
	// Record appends the event to every destination ping's log.
	Record(meta *types.CommonMetricData, event *types.RecordedEvent)
	// GetPingEvents assembles the events section of a ping payload with
	// cross-run timestamps reconciled. ok is false when the ping has no
	// events.
	GetPingEvents(ping string, clear bool) (payload []map[string]any, ok bool)
	// ClearAll wipes the event log.
	ClearAll()
}

// PingsDatabase stores collected pings awaiting upload.
type PingsDatabase interface {
	// RecordPing persists a collected ping and synchronously notifies the
	// attached observer.
	RecordPing(path, identifier string, payload map[string]any, headers map[string]string)
	// ClearAll wipes the pending queue.
	ClearAll()
}

// ErrorTracker counts metric recording failures. Implemented by the error
// manager; the indirection keeps the databases decoupled from it.
type ErrorTracker interface {
	// Record logs the failure and bumps the metric's error counter by
	// numErrors (when positive).
	Record(meta *types.CommonMetricData, errType types.ErrorType, message string, numErrors int)
}

// DebugOptions are runtime debugging switches.
type DebugOptions struct {
	// LogPings pretty-prints every collected ping payload.
	LogPings bool
	// DebugViewTag is sent as X-Debug-ID so the pipeline routes pings to
	// the debug view.
	DebugViewTag string
	// SourceTags are sent as X-Source-Tags.
	SourceTags []string
}

// Context is the shared state of one SDK instance. It is assembled at
// initialization time and handed to every subsystem; fields are set once
// during wiring except where noted.
type Context struct {
	ApplicationID string
	Dispatcher    *dispatcher.Dispatcher
	Logger        *log.Logger

	Metrics MetricsDatabase
	Events  EventsDatabase
	Pings   PingsDatabase
	Errors  ErrorTracker

	// StartTime anchors event timestamps and default ping start times.
	StartTime time.Time

	// Debug may be swapped at runtime through the SDK's debug setters,
	// always on the dispatcher flow.
	Debug DebugOptions

	initialized   atomic.Bool
	uploadEnabled atomic.Bool

	// nowFn and monotonicFn are swappable for tests.
	nowFn       func() time.Time
	monotonicFn func() int64
}

// NewContext creates a Context anchored at the current instant.
func NewContext() *Context {
	start := time.Now()
	return &Context{
		StartTime: start,
		nowFn:     time.Now,
		monotonicFn: func() int64 {
			return time.Since(start).Milliseconds()
		},
	}
}

// Initialized reports whether SDK initialization has completed on the
// dispatcher flow.
func (c *Context) Initialized() bool { return c.initialized.Load() }

// SetInitialized flips the initialized flag.
func (c *Context) SetInitialized(v bool) { c.initialized.Store(v) }

// UploadEnabled reports whether telemetry collection and upload are on.
func (c *Context) UploadEnabled() bool { return c.uploadEnabled.Load() }

// SetUploadEnabled flips the upload flag. Callers are responsible for the
// associated state transitions (core metrics, deletion-request).
func (c *Context) SetUploadEnabled(v bool) { c.uploadEnabled.Store(v) }

// Now returns wall-clock time through the injectable clock.
func (c *Context) Now() time.Time { return c.nowFn() }

// MonotonicNow returns milliseconds of monotonic time since SDK start.
func (c *Context) MonotonicNow() int64 { return c.monotonicFn() }

// SetClock replaces the wall and monotonic clocks. Test hook.
func (c *Context) SetClock(now func() time.Time, monotonic func() int64) {
	if now != nil {
		c.nowFn = now
	}
	if monotonic != nil {
		c.monotonicFn = monotonic
	}
}
