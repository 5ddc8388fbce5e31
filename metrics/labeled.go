package metrics

import (
	"github.com/pellucid-io/beacon/core"
	"github.com/pellucid-io/beacon/types"
)

// Labeled is a factory for per-label submetrics of one metric. With a static
// label list, unknown labels fold into the catch-all immediately; without
// one, labels validate lazily against stored data on first record, so the
// per-metric label quota counts what actually got used.
type Labeled[M any] struct {
	ctx    *core.Context
	meta   types.CommonMetricData
	labels []string
	build  func(*core.Context, types.CommonMetricData) M
}

// Get returns the submetric for label. Submetrics are cheap value handles;
// callers may Get on every use or keep the result.
func (l *Labeled[M]) Get(label string) M {
	meta := l.meta
	if l.labels != nil {
		meta.Name = types.CombineIdentifierAndLabel(meta.Name, types.ValidateStaticLabel(label, l.labels))
	} else {
		meta = meta.WithDynamicLabel(label)
	}
	return l.build(l.ctx, meta)
}

// NewLabeledCounter creates a labeled counter metric. A nil labels slice
// allows dynamic labels.
func NewLabeledCounter(ctx *core.Context, meta types.CommonMetricData, labels []string) *Labeled[*CounterMetric] {
	return &Labeled[*CounterMetric]{ctx: ctx, meta: meta, labels: labels, build: NewCounter}
}

// NewLabeledBoolean creates a labeled boolean metric.
func NewLabeledBoolean(ctx *core.Context, meta types.CommonMetricData, labels []string) *Labeled[*BooleanMetric] {
	return &Labeled[*BooleanMetric]{ctx: ctx, meta: meta, labels: labels, build: NewBoolean}
}

// NewLabeledString creates a labeled string metric.
func NewLabeledString(ctx *core.Context, meta types.CommonMetricData, labels []string) *Labeled[*StringMetric] {
	return &Labeled[*StringMetric]{ctx: ctx, meta: meta, labels: labels, build: NewString}
}
