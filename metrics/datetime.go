package metrics

import (
	"time"

	"github.com/pellucid-io/beacon/core"
	"github.com/pellucid-io/beacon/types"
)

// DatetimeMetric records a point in time at a configured resolution,
// preserving the device's UTC offset.
type DatetimeMetric struct {
	metricBase
	unit types.TimeUnit
}

// NewDatetime creates a datetime metric recording at the given resolution.
func NewDatetime(ctx *core.Context, meta types.CommonMetricData, unit types.TimeUnit) *DatetimeMetric {
	return &DatetimeMetric{
		metricBase: metricBase{ctx: ctx, meta: meta, kind: types.KindDatetime},
		unit:       unit,
	}
}

// Set records the current time.
func (m *DatetimeMetric) Set() {
	// Capture before dispatch so the queue delay is not recorded.
	now := m.ctx.Now()
	m.SetTime(now)
}

// SetTime records an explicit time.
func (m *DatetimeMetric) SetTime(t time.Time) {
	m.launch("datetime.set", func() error {
		m.setSync(t)
		return nil
	})
}

// setSync performs the record on the dispatcher flow.
func (m *DatetimeMetric) setSync(t time.Time) {
	if !m.shouldRecord() {
		return
	}
	m.ctx.Metrics.Record(&m.meta, types.NewDatetime(t, m.unit))
}

// SetTimeSync is the undispatched record path. Only for use on the
// dispatcher flow.
func (m *DatetimeMetric) SetTimeSync(t time.Time) { m.setSync(t) }

// TestGetValue returns the recorded instant, truncated to the metric's
// resolution and carrying the original UTC offset. Blocks on the dispatcher.
func (m *DatetimeMetric) TestGetValue(pings ...string) (time.Time, bool) {
	v := m.testValue(pings)
	if v == nil {
		return time.Time{}, false
	}
	t, err := v.(types.DatetimeValue).Time()
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// TestGetValueAsString returns the payload rendering of the recorded
// instant. Blocks on the dispatcher.
func (m *DatetimeMetric) TestGetValueAsString(pings ...string) (string, bool) {
	v := m.testValue(pings)
	if v == nil {
		return "", false
	}
	return v.Payload().(string), true
}
