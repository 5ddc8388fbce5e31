package metrics

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/pellucid-io/beacon/core"
	"github.com/pellucid-io/beacon/types"
)

// UUIDMetric records a UUID in canonical hyphenated form.
type UUIDMetric struct {
	metricBase
}

// NewUUID creates a uuid metric.
func NewUUID(ctx *core.Context, meta types.CommonMetricData) *UUIDMetric {
	return &UUIDMetric{metricBase{ctx: ctx, meta: meta, kind: types.KindUUID}}
}

// Set records value. Non-UUID strings record an invalid_value error.
func (m *UUIDMetric) Set(value string) {
	m.launch("uuid.set", func() error {
		m.setSync(value)
		return nil
	})
}

func (m *UUIDMetric) setSync(value string) {
	if !m.shouldRecord() {
		return
	}
	if !types.ValidateUUIDString(value) {
		m.recordError(types.InvalidValue,
			fmt.Sprintf("%q is not a valid UUID.", value))
		return
	}
	m.ctx.Metrics.Record(&m.meta, types.UUIDValue(value))
}

// GenerateAndSet records a fresh random UUID and returns it.
func (m *UUIDMetric) GenerateAndSet() string {
	id := uuid.NewString()
	m.Set(id)
	return id
}

// SetSync is the undispatched record path. Only for use on the dispatcher
// flow.
func (m *UUIDMetric) SetSync(value string) { m.setSync(value) }

// GenerateAndSetSync records a fresh random UUID without dispatching and
// returns it. Only for use on the dispatcher flow.
func (m *UUIDMetric) GenerateAndSetSync() string {
	id := uuid.NewString()
	m.setSync(id)
	return id
}

// TestGetValue returns the recorded UUID. Blocks on the dispatcher.
func (m *UUIDMetric) TestGetValue(pings ...string) (string, bool) {
	v := m.testValue(pings)
	if v == nil {
		return "", false
	}
	return string(v.(types.UUIDValue)), true
}
