package metrics

import (
	"fmt"
	"slices"

	"github.com/pellucid-io/beacon/core"
	"github.com/pellucid-io/beacon/types"
)

// EventMetric records occurrences of an event with optional extra details.
// Events land in the events database, not the metrics stores, so their
// relative order survives into the payload.
type EventMetric struct {
	metricBase
	allowedExtraKeys []string
}

// NewEvent creates an event metric accepting the given extra keys.
func NewEvent(ctx *core.Context, meta types.CommonMetricData, allowedExtraKeys []string) *EventMetric {
	return &EventMetric{
		metricBase:       metricBase{ctx: ctx, meta: meta, kind: types.KindEvent},
		allowedExtraKeys: allowedExtraKeys,
	}
}

// Record logs one occurrence. Extra values may be strings, booleans or
// numbers; string values truncate past the limit with an invalid_overflow
// error, unknown keys are dropped with an invalid_value error. The timestamp
// is captured before dispatch.
func (m *EventMetric) Record(extra map[string]any) {
	timestamp := m.ctx.MonotonicNow()
	m.launch("event.record", func() error {
		if !m.shouldRecord() {
			return nil
		}
		event := &types.RecordedEvent{
			Category:  m.meta.Category,
			Name:      m.meta.Name,
			Timestamp: timestamp,
		}
		if len(extra) > 0 {
			cleaned := make(map[string]any, len(extra))
			for key, value := range extra {
				if !slices.Contains(m.allowedExtraKeys, key) {
					m.recordError(types.InvalidValue,
						fmt.Sprintf("Invalid extra key %q for event %q.", key, m.meta.BaseIdentifier()))
					continue
				}
				if s, isString := value.(string); isString {
					truncated, over := types.TruncateString(s, types.MaxExtraValueLength)
					if over {
						m.recordError(types.InvalidOverflow,
							fmt.Sprintf("Extra value length %d exceeds maximum of %d.", len([]rune(s)), types.MaxExtraValueLength))
					}
					value = truncated
				}
				cleaned[key] = value
			}
			if len(cleaned) > 0 {
				event.Extra = cleaned
			}
		}
		m.ctx.Events.Record(&m.meta, event)
		return nil
	})
}

// TestGetValue returns the payload-shaped events recorded for this metric in
// the given ping. Blocks on the dispatcher.
func (m *EventMetric) TestGetValue(pings ...string) ([]map[string]any, bool) {
	target := m.meta.SendInPings[0]
	if len(pings) > 0 {
		target = pings[0]
	}
	var out []map[string]any
	_ = m.ctx.Dispatcher.TestLaunch(func() error {
		events, ok := m.ctx.Events.GetPingEvents(target, false)
		if !ok {
			return nil
		}
		for _, ev := range events {
			if ev["category"] == m.meta.Category && ev["name"] == m.meta.Name {
				out = append(out, ev)
			}
		}
		return nil
	})
	return out, len(out) > 0
}
