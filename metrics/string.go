package metrics

import (
	"fmt"

	"github.com/pellucid-io/beacon/core"
	"github.com/pellucid-io/beacon/types"
)

// StringMetric records a short string such as a release channel name.
type StringMetric struct {
	metricBase
}

// NewString creates a string metric.
func NewString(ctx *core.Context, meta types.CommonMetricData) *StringMetric {
	return &StringMetric{metricBase{ctx: ctx, meta: meta, kind: types.KindString}}
}

// Set records value, truncating past the limit with an invalid_overflow
// error.
func (m *StringMetric) Set(value string) {
	m.launch("string.set", func() error {
		m.setSync(value)
		return nil
	})
}

// setSync performs the record on the dispatcher flow. The core metrics
// share it for undispatched client info recording.
func (m *StringMetric) setSync(value string) {
	if !m.shouldRecord() {
		return
	}
	truncated, over := types.TruncateString(value, types.MaxStringLength)
	if over {
		m.recordError(types.InvalidOverflow,
			fmt.Sprintf("Value length %d exceeds maximum of %d.", len([]rune(value)), types.MaxStringLength))
	}
	m.ctx.Metrics.Record(&m.meta, types.StringValue(truncated))
}

// SetSync is the undispatched record path. Only for use on the dispatcher
// flow.
func (m *StringMetric) SetSync(value string) { m.setSync(value) }

// TestGetValue returns the recorded string. Blocks on the dispatcher.
func (m *StringMetric) TestGetValue(pings ...string) (string, bool) {
	v := m.testValue(pings)
	if v == nil {
		return "", false
	}
	return string(v.(types.StringValue)), true
}
