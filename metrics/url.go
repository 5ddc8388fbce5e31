package metrics

import (
	"github.com/pellucid-io/beacon/core"
	"github.com/pellucid-io/beacon/types"
)

// URLMetric records a URL. The scheme is required, data URLs are rejected,
// and anything over the length limit is dropped rather than truncated, since
// a cut URL is not a URL.
type URLMetric struct {
	metricBase
}

// NewURL creates a url metric.
func NewURL(ctx *core.Context, meta types.CommonMetricData) *URLMetric {
	return &URLMetric{metricBase{ctx: ctx, meta: meta, kind: types.KindURL}}
}

// Set records value after validation.
func (m *URLMetric) Set(value string) {
	m.launch("url.set", func() error {
		if !m.shouldRecord() {
			return nil
		}
		v, rerr := types.ValidateURLString(value)
		if rerr != nil {
			m.recordError(rerr.Type, rerr.Message)
			return nil
		}
		m.ctx.Metrics.Record(&m.meta, v)
		return nil
	})
}

// TestGetValue returns the recorded URL as stored (not percent-encoded).
// Blocks on the dispatcher.
func (m *URLMetric) TestGetValue(pings ...string) (string, bool) {
	v := m.testValue(pings)
	if v == nil {
		return "", false
	}
	return string(v.(types.URLValue)), true
}
