package metrics

import (
	"fmt"

	"github.com/pellucid-io/beacon/core"
	"github.com/pellucid-io/beacon/types"
)

// TextMetric records free-form text up to 200 KiB, e.g. a crash log excerpt.
type TextMetric struct {
	metricBase
}

// NewText creates a text metric.
func NewText(ctx *core.Context, meta types.CommonMetricData) *TextMetric {
	return &TextMetric{metricBase{ctx: ctx, meta: meta, kind: types.KindText}}
}

// Set records value, truncating past the limit with an invalid_overflow
// error.
func (m *TextMetric) Set(value string) {
	m.launch("text.set", func() error {
		if !m.shouldRecord() {
			return nil
		}
		truncated, over := types.TruncateString(value, types.MaxTextLength)
		if over {
			m.recordError(types.InvalidOverflow,
				fmt.Sprintf("Value length %d exceeds maximum of %d.", len([]rune(value)), types.MaxTextLength))
		}
		m.ctx.Metrics.Record(&m.meta, types.TextValue(truncated))
		return nil
	})
}

// TestGetValue returns the recorded text. Blocks on the dispatcher.
func (m *TextMetric) TestGetValue(pings ...string) (string, bool) {
	v := m.testValue(pings)
	if v == nil {
		return "", false
	}
	return string(v.(types.TextValue)), true
}
