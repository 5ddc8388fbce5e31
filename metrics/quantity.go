package metrics

import (
	"fmt"

	"github.com/pellucid-io/beacon/core"
	"github.com/pellucid-io/beacon/types"
)

// QuantityMetric records a non-negative integer, e.g. a screen width.
type QuantityMetric struct {
	metricBase
}

// NewQuantity creates a quantity metric.
func NewQuantity(ctx *core.Context, meta types.CommonMetricData) *QuantityMetric {
	return &QuantityMetric{metricBase{ctx: ctx, meta: meta, kind: types.KindQuantity}}
}

// Set records value. Negative values record an invalid_value error instead.
// Values over the double-exact bound saturate.
func (m *QuantityMetric) Set(value int64) {
	m.launch("quantity.set", func() error {
		if !m.shouldRecord() {
			return nil
		}
		if value < 0 {
			m.recordError(types.InvalidValue,
				fmt.Sprintf("Set negative value %d.", value))
			return nil
		}
		if value > types.MaxSafeInteger() {
			value = types.MaxSafeInteger()
		}
		m.ctx.Metrics.Record(&m.meta, types.QuantityValue(value))
		return nil
	})
}

// TestGetValue returns the recorded quantity. Blocks on the dispatcher.
func (m *QuantityMetric) TestGetValue(pings ...string) (int64, bool) {
	v := m.testValue(pings)
	if v == nil {
		return 0, false
	}
	return int64(v.(types.QuantityValue)), true
}
