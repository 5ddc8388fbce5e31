package types

import "regexp"

// Label rules for labeled metrics.
const (
	// MaxLabels caps the distinct dynamic labels a metric may accumulate.
	// Further labels fold into OtherLabel.
	MaxLabels = 16

	// MaxLabelLength is the longest acceptable label.
	MaxLabelLength = 61

	// OtherLabel absorbs overflow and invalid labels.
	OtherLabel = "__other__"
)

// labelRegex accepts snake_case identifiers with optional dotted segments,
// each segment at most 30 characters.
var labelRegex = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,29}(\.[a-z_][a-z0-9_-]{0,29})*$`)

// LabelConformsToRegex reports whether label matches the accepted shape.
// Length is checked separately so the two failure modes report distinct
// messages.
func LabelConformsToRegex(label string) bool {
	return labelRegex.MatchString(label)
}

// ValidateStaticLabel resolves a label against a compile-time allow list.
// Unknown labels fold into OtherLabel without recording an error.
func ValidateStaticLabel(label string, allowed []string) string {
	for _, a := range allowed {
		if a == label {
			return label
		}
	}
	return OtherLabel
}
