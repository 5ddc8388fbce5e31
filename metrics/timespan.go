package metrics

import (
	"math"

	"github.com/pellucid-io/beacon/core"
	"github.com/pellucid-io/beacon/types"
)

// TimespanMetric measures a single duration between Start and Stop calls.
// Only one span can be recorded; later spans are discarded with an
// invalid_state error.
type TimespanMetric struct {
	metricBase
	unit types.TimeUnit

	// startTime is the pending span's monotonic start in milliseconds.
	// Only touched on the dispatcher flow.
	startTime *int64
}

// NewTimespan creates a timespan metric reporting in the given unit.
func NewTimespan(ctx *core.Context, meta types.CommonMetricData, unit types.TimeUnit) *TimespanMetric {
	return &TimespanMetric{
		metricBase: metricBase{ctx: ctx, meta: meta, kind: types.KindTimespan},
		unit:       unit,
	}
}

// Start begins the span. The instant is captured before dispatch so queue
// delay is not measured.
func (m *TimespanMetric) Start() {
	start := m.ctx.MonotonicNow()
	m.launch("timespan.start", func() error {
		if m.startTime != nil {
			m.recordError(types.InvalidState, "Timespan already started.")
			return nil
		}
		m.startTime = &start
		return nil
	})
}

// Stop ends the span and records it.
func (m *TimespanMetric) Stop() {
	stop := m.ctx.MonotonicNow()
	m.launch("timespan.stop", func() error {
		if m.startTime == nil {
			m.recordError(types.InvalidState, "Timespan not running.")
			return nil
		}
		elapsed := stop - *m.startTime
		m.startTime = nil
		if elapsed < 0 {
			m.recordError(types.InvalidState, "Timespan was negative.")
			return nil
		}
		m.setRawSync(elapsed)
		return nil
	})
}

// Cancel abandons a started span without recording anything.
func (m *TimespanMetric) Cancel() {
	m.launch("timespan.cancel", func() error {
		m.startTime = nil
		return nil
	})
}

// SetRawNanos records an externally measured duration in nanoseconds.
// Useful when the measured code cannot call Start/Stop itself.
func (m *TimespanMetric) SetRawNanos(nanos int64) {
	m.launch("timespan.setraw", func() error {
		ms := int64(math.Round(float64(nanos) / 1e6))
		m.setRawSync(ms)
		return nil
	})
}

// setRawSync stores the span unless one is already recorded.
func (m *TimespanMetric) setRawSync(ms int64) {
	if !m.shouldRecord() {
		return
	}
	recorded := false
	m.ctx.Metrics.Transform(&m.meta, types.KindTimespan, func(old any) any {
		if old != nil {
			if _, err := types.FromStored(types.KindTimespan, old); err == nil {
				recorded = true
				return old
			}
		}
		return types.TimespanValue{Millis: ms, Unit: m.unit}.Stored()
	})
	if recorded {
		m.recordError(types.InvalidState, "Timespan value already recorded. New value discarded.")
	}
}

// TestGetValue returns the recorded span converted to the metric's unit.
// Blocks on the dispatcher.
func (m *TimespanMetric) TestGetValue(pings ...string) (int64, bool) {
	v := m.testValue(pings)
	if v == nil {
		return 0, false
	}
	return v.(types.TimespanValue).Span(), true
}
