package metrics

import (
	"fmt"

	"github.com/pellucid-io/beacon/core"
	"github.com/pellucid-io/beacon/types"
)

// CounterMetric counts occurrences. The stored count only grows and
// saturates at the largest double-exact integer.
type CounterMetric struct {
	metricBase
}

// NewCounter creates a counter metric.
func NewCounter(ctx *core.Context, meta types.CommonMetricData) *CounterMetric {
	return &CounterMetric{metricBase{ctx: ctx, meta: meta, kind: types.KindCounter}}
}

// Add increments the counter by amount. Zero and negative amounts record an
// invalid_value error instead.
func (m *CounterMetric) Add(amount int64) {
	m.launch("counter.add", func() error {
		m.addSync(amount)
		return nil
	})
}

// Inc increments the counter by one.
func (m *CounterMetric) Inc() { m.Add(1) }

// addSync performs the increment on the dispatcher flow. The events
// database shares it for execution counters.
func (m *CounterMetric) addSync(amount int64) {
	if !m.shouldRecord() {
		return
	}
	if amount <= 0 {
		m.recordError(types.InvalidValue,
			fmt.Sprintf("Added negative and zero value %d.", amount))
		return
	}
	m.ctx.Metrics.Transform(&m.meta, types.KindCounter, types.CounterAdd(amount))
}

// TestGetValue returns the recorded count. Blocks on the dispatcher.
func (m *CounterMetric) TestGetValue(pings ...string) (int64, bool) {
	v := m.testValue(pings)
	if v == nil {
		return 0, false
	}
	return int64(v.(types.CounterValue)), true
}
