package types

import "strings"

// Lifetime controls which store a metric's values live in and when they are
// cleared.
type Lifetime string

const (
	// LifetimePing clears values every time they are collected into a ping.
	LifetimePing Lifetime = "ping"
	// LifetimeApplication clears values once per application run.
	LifetimeApplication Lifetime = "application"
	// LifetimeUser keeps values until explicitly cleared.
	LifetimeUser Lifetime = "user"
)

// Valid reports whether l is one of the three known lifetimes.
func (l Lifetime) Valid() bool {
	switch l {
	case LifetimePing, LifetimeApplication, LifetimeUser:
		return true
	}
	return false
}

// CommonMetricData is the metadata shared by every metric type. Instances are
// value types: the labeled-metric factory copies the base metadata and fills
// in DynamicLabel per submetric.
type CommonMetricData struct {
	Category    string
	Name        string
	SendInPings []string
	Lifetime    Lifetime
	Disabled    bool

	// DynamicLabel carries the not-yet-validated label of a submetric
	// obtained from a labeled metric. It is resolved against stored data
	// the first time the submetric records, then folded into the
	// identifier.
	DynamicLabel *string
}

// BaseIdentifier returns the identifier of the metric without any label, i.e.
// "category.name" (or just "name" for uncategorized metrics).
func (m *CommonMetricData) BaseIdentifier() string {
	if m.Category == "" {
		return m.Name
	}
	return m.Category + "." + m.Name
}

// HasDynamicLabel reports whether the metric still has an unresolved label.
func (m *CommonMetricData) HasDynamicLabel() bool {
	return m.DynamicLabel != nil
}

// WithDynamicLabel returns a copy of the metadata carrying the given label.
func (m CommonMetricData) WithDynamicLabel(label string) CommonMetricData {
	m.DynamicLabel = &label
	return m
}

// CombineIdentifierAndLabel joins a base identifier with a validated label.
// The "/" separator is what the payload assembler later splits on to build
// the labeled_* sections.
func CombineIdentifierAndLabel(baseIdentifier, label string) string {
	return baseIdentifier + "/" + label
}

// StripLabel removes the label part (if any) from a metric identifier.
// Error metric names are keyed by the base identifier so that all labels of
// one metric share an error count.
func StripLabel(identifier string) string {
	id, _, _ := strings.Cut(identifier, "/")
	return id
}
