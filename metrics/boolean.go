package metrics

import (
	"github.com/pellucid-io/beacon/core"
	"github.com/pellucid-io/beacon/types"
)

// BooleanMetric records a single true/false flag.
type BooleanMetric struct {
	metricBase
}

// NewBoolean creates a boolean metric.
func NewBoolean(ctx *core.Context, meta types.CommonMetricData) *BooleanMetric {
	return &BooleanMetric{metricBase{ctx: ctx, meta: meta, kind: types.KindBoolean}}
}

// Set records the flag.
func (m *BooleanMetric) Set(value bool) {
	m.launch("boolean.set", func() error {
		if !m.shouldRecord() {
			return nil
		}
		m.ctx.Metrics.Record(&m.meta, types.BooleanValue(value))
		return nil
	})
}

// TestGetValue returns the recorded flag. Blocks on the dispatcher.
func (m *BooleanMetric) TestGetValue(pings ...string) (bool, bool) {
	v := m.testValue(pings)
	if v == nil {
		return false, false
	}
	return bool(v.(types.BooleanValue)), true
}
