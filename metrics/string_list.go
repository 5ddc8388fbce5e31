package metrics

import (
	"fmt"

	"github.com/pellucid-io/beacon/core"
	"github.com/pellucid-io/beacon/types"
)

// StringListMetric records an ordered list of short strings.
type StringListMetric struct {
	metricBase
}

// NewStringList creates a string_list metric.
func NewStringList(ctx *core.Context, meta types.CommonMetricData) *StringListMetric {
	return &StringListMetric{metricBase{ctx: ctx, meta: meta, kind: types.KindStringList}}
}

// Set replaces the list. Lists past the item limit are cut with an
// invalid_value error; over-long items are truncated with invalid_overflow
// errors.
func (m *StringListMetric) Set(values []string) {
	m.launch("string_list.set", func() error {
		if !m.shouldRecord() {
			return nil
		}
		list := values
		if len(list) > types.MaxStringListItems {
			m.recordError(types.InvalidValue,
				fmt.Sprintf("String list length of %d exceeds maximum of %d.", len(list), types.MaxStringListItems))
			list = list[:types.MaxStringListItems]
		}
		out := make([]string, len(list))
		for i, v := range list {
			out[i] = m.truncateItem(v)
		}
		m.ctx.Metrics.Record(&m.meta, types.StringListValue(out))
		return nil
	})
}

// Add appends value to the list. Nothing is appended once the list is full;
// that records an invalid_value error instead.
func (m *StringListMetric) Add(value string) {
	m.launch("string_list.add", func() error {
		if !m.shouldRecord() {
			return nil
		}
		item := m.truncateItem(value)
		full := false
		m.ctx.Metrics.Transform(&m.meta, types.KindStringList, func(old any) any {
			current, err := types.FromStored(types.KindStringList, old)
			if old == nil || err != nil {
				return []string{item}
			}
			list := []string(current.(types.StringListValue))
			if len(list) >= types.MaxStringListItems {
				full = true
				return list
			}
			return append(list, item)
		})
		if full {
			m.recordError(types.InvalidValue,
				fmt.Sprintf("String list length of %d exceeds maximum of %d.", types.MaxStringListItems+1, types.MaxStringListItems))
		}
		return nil
	})
}

func (m *StringListMetric) truncateItem(value string) string {
	truncated, over := types.TruncateString(value, types.MaxListItemLength)
	if over {
		m.recordError(types.InvalidOverflow,
			fmt.Sprintf("Value length %d exceeds maximum of %d.", len([]rune(value)), types.MaxListItemLength))
	}
	return truncated
}

// TestGetValue returns the recorded list. Blocks on the dispatcher.
func (m *StringListMetric) TestGetValue(pings ...string) ([]string, bool) {
	v := m.testValue(pings)
	if v == nil {
		return nil, false
	}
	return []string(v.(types.StringListValue)), true
}
