package metrics

import (
	"github.com/pellucid-io/beacon/core"
	"github.com/pellucid-io/beacon/types"
)

// metricBase is the common plumbing of every metric type: the context it
// records through, its metadata, and its storage kind.
type metricBase struct {
	ctx  *core.Context
	meta types.CommonMetricData
	kind types.Kind
}

// Meta exposes the metric's metadata, mainly for error-count lookups in
// tests.
func (m *metricBase) Meta() *types.CommonMetricData { return &m.meta }

// shouldRecord reports whether recording is allowed: the upload kill
// switch must be on and the metric not disabled.
func (m *metricBase) shouldRecord() bool {
	return m.ctx.UploadEnabled() && !m.meta.Disabled
}

// launch queues work on the SDK's dispatcher.
func (m *metricBase) launch(name string, task func() error) {
	m.ctx.Dispatcher.Launch(task, name)
}

// testValue reads the metric's validated value on the dispatcher flow.
// pings picks the target ping, defaulting to the metric's first one.
func (m *metricBase) testValue(pings []string) types.Value {
	target := m.meta.SendInPings[0]
	if len(pings) > 0 {
		target = pings[0]
	}
	var out types.Value
	_ = m.ctx.Dispatcher.TestLaunch(func() error {
		out = m.ctx.Metrics.GetMetric(target, &m.meta, m.kind)
		return nil
	})
	return out
}

// recordError funnels a validation failure to the error manager.
func (m *metricBase) recordError(errType types.ErrorType, message string) {
	m.ctx.Errors.Record(&m.meta, errType, message, 1)
}
