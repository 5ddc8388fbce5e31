package types

import (
	"regexp"
	"strings"
)

// Kind discriminates the closed set of metric value variants.
type Kind string

const (
	KindBoolean    Kind = "boolean"
	KindCounter    Kind = "counter"
	KindDatetime   Kind = "datetime"
	KindEvent      Kind = "event"
	KindQuantity   Kind = "quantity"
	KindString     Kind = "string"
	KindStringList Kind = "string_list"
	KindText       Kind = "text"
	KindTimespan   Kind = "timespan"
	KindURL        Kind = "url"
	KindUUID       Kind = "uuid"
)

// Value limits.
const (
	MaxStringLength     = 100
	MaxStringListItems  = 20
	MaxListItemLength   = 50
	MaxTextLength       = 200 * 1024
	MaxURLLength        = 2048
	MaxExtraValueLength = 100
)

// Value is one variant of the closed metric-value union. Every variant knows
// how to shape itself for storage and for the ping payload.
type Value interface {
	Kind() Kind
	// Stored returns the storage-tree representation of the value.
	Stored() any
	// Payload returns the value as it appears in a ping payload.
	Payload() any
}

// FromStored validates a raw storage value against the given kind and
// returns the typed variant. A non-nil error means the stored value is
// corrupt and should be discarded.
func FromStored(kind Kind, raw any) (Value, error) {
	switch kind {
	case KindBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, Errorf(InvalidType, "expected boolean, got %T", raw)
		}
		return BooleanValue(b), nil
	case KindCounter:
		n, ok := AsInt64(raw)
		if !ok {
			return nil, Errorf(InvalidType, "expected integer, got %T", raw)
		}
		if n <= 0 {
			return nil, Errorf(InvalidValue, "counter must be positive, got %d", n)
		}
		return CounterValue(n), nil
	case KindQuantity:
		n, ok := AsInt64(raw)
		if !ok {
			return nil, Errorf(InvalidType, "expected integer, got %T", raw)
		}
		if n < 0 {
			return nil, Errorf(InvalidValue, "quantity must not be negative, got %d", n)
		}
		return QuantityValue(n), nil
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return nil, Errorf(InvalidType, "expected string, got %T", raw)
		}
		if len([]rune(s)) > MaxStringLength {
			return nil, Errorf(InvalidOverflow, "string longer than %d characters", MaxStringLength)
		}
		return StringValue(s), nil
	case KindText:
		s, ok := raw.(string)
		if !ok {
			return nil, Errorf(InvalidType, "expected string, got %T", raw)
		}
		if len([]rune(s)) > MaxTextLength {
			return nil, Errorf(InvalidOverflow, "text longer than %d characters", MaxTextLength)
		}
		return TextValue(s), nil
	case KindStringList:
		list, ok := asStringSlice(raw)
		if !ok {
			return nil, Errorf(InvalidType, "expected string list, got %T", raw)
		}
		if len(list) > MaxStringListItems {
			return nil, Errorf(InvalidOverflow, "list longer than %d items", MaxStringListItems)
		}
		for _, s := range list {
			if len([]rune(s)) > MaxListItemLength {
				return nil, Errorf(InvalidOverflow, "list item longer than %d characters", MaxListItemLength)
			}
		}
		return StringListValue(list), nil
	case KindURL:
		s, ok := raw.(string)
		if !ok {
			return nil, Errorf(InvalidType, "expected string, got %T", raw)
		}
		return validateURL(s)
	case KindUUID:
		s, ok := raw.(string)
		if !ok {
			return nil, Errorf(InvalidType, "expected string, got %T", raw)
		}
		if !uuidRegex.MatchString(s) {
			return nil, Errorf(InvalidValue, "%q is not a valid UUID", s)
		}
		return UUIDValue(s), nil
	case KindDatetime:
		return datetimeFromStored(raw)
	case KindTimespan:
		return timespanFromStored(raw)
	}
	return nil, Errorf(InvalidType, "unknown metric kind %q", kind)
}

// BooleanValue is a recorded boolean metric.
type BooleanValue bool

func (v BooleanValue) Kind() Kind   { return KindBoolean }
func (v BooleanValue) Stored() any  { return bool(v) }
func (v BooleanValue) Payload() any { return bool(v) }

// CounterValue is a recorded counter metric. Always positive.
type CounterValue int64

func (v CounterValue) Kind() Kind   { return KindCounter }
func (v CounterValue) Stored() any  { return int64(v) }
func (v CounterValue) Payload() any { return int64(v) }

// SaturatingAdd adds amount to the counter, capping at the largest integer
// a double can represent exactly.
func (v CounterValue) SaturatingAdd(amount int64) CounterValue {
	sum := int64(v) + amount
	if sum > maxSafeInteger || sum < int64(v) {
		return CounterValue(maxSafeInteger)
	}
	return CounterValue(sum)
}

// CounterAdd returns a storage transform that adds amount to a stored
// counter. A missing or corrupt stored value restarts the count at amount.
func CounterAdd(amount int64) func(old any) any {
	return func(old any) any {
		v, err := FromStored(KindCounter, old)
		if old == nil || err != nil {
			if amount > maxSafeInteger {
				return maxSafeInteger
			}
			return amount
		}
		return v.(CounterValue).SaturatingAdd(amount).Stored()
	}
}

// QuantityValue is a recorded quantity metric. Never negative.
type QuantityValue int64

func (v QuantityValue) Kind() Kind   { return KindQuantity }
func (v QuantityValue) Stored() any  { return int64(v) }
func (v QuantityValue) Payload() any { return int64(v) }

// StringValue is a recorded string metric.
type StringValue string

func (v StringValue) Kind() Kind   { return KindString }
func (v StringValue) Stored() any  { return string(v) }
func (v StringValue) Payload() any { return string(v) }

// TextValue is a recorded text metric.
type TextValue string

func (v TextValue) Kind() Kind   { return KindText }
func (v TextValue) Stored() any  { return string(v) }
func (v TextValue) Payload() any { return string(v) }

// StringListValue is a recorded string_list metric.
type StringListValue []string

func (v StringListValue) Kind() Kind  { return KindStringList }
func (v StringListValue) Stored() any { return []string(v) }
func (v StringListValue) Payload() any {
	// Copy so payload mutation cannot reach storage.
	out := make([]string, len(v))
	copy(out, v)
	return out
}

// URLValue is a recorded url metric.
type URLValue string

func (v URLValue) Kind() Kind  { return KindURL }
func (v URLValue) Stored() any { return string(v) }

// Payload percent-encodes the URL the way JavaScript's encodeURI does:
// reserved and unreserved URI characters pass through, everything else is
// UTF-8 percent-escaped.
func (v URLValue) Payload() any { return encodeURI(string(v)) }

// UUIDValue is a recorded uuid metric, canonical hyphenated form.
type UUIDValue string

func (v UUIDValue) Kind() Kind   { return KindUUID }
func (v UUIDValue) Stored() any  { return string(v) }
func (v UUIDValue) Payload() any { return string(v) }

var (
	// Any hyphenated hex UUID is accepted, version nibble included, so the
	// pan-client known id used while upload is off validates too.
	uuidRegex = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	// A URL must carry an explicit scheme. The path part is unconstrained.
	urlSchemeRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-+.]*:(.*)$`)
)

// ValidateUUIDString reports whether s is a canonical hyphenated UUID.
func ValidateUUIDString(s string) bool { return uuidRegex.MatchString(s) }

func validateURL(s string) (Value, error) {
	if len(s) > MaxURLLength {
		return nil, Errorf(InvalidOverflow, "URL length %d exceeds maximum of %d", len(s), MaxURLLength)
	}
	if strings.HasPrefix(s, "data:") {
		return nil, Errorf(InvalidValue, "URL metric does not support data URLs")
	}
	if !urlSchemeRegex.MatchString(s) {
		return nil, Errorf(InvalidValue, "%q does not start with a valid URL scheme", s)
	}
	return URLValue(s), nil
}

// ValidateURLString runs the url metric validation on s.
func ValidateURLString(s string) (URLValue, *RecordingError) {
	v, err := validateURL(s)
	if err != nil {
		return "", err.(*RecordingError)
	}
	return v.(URLValue), nil
}

// TruncateString cuts s at max characters. The second return reports whether
// truncation happened, so callers can record an overflow error.
func TruncateString(s string, max int) (string, bool) {
	r := []rune(s)
	if len(r) <= max {
		return s, false
	}
	return string(r[:max]), true
}

// AsInt64 coerces the numeric types a storage round trip can produce into an
// int64. Fractional floats are rejected.
func AsInt64(raw any) (int64, bool) {
	switch n := raw.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float32:
		if float32(int64(n)) == n {
			return int64(n), true
		}
	case float64:
		if float64(int64(n)) == n {
			return int64(n), true
		}
	}
	return 0, false
}

func asStringSlice(raw any) ([]string, bool) {
	switch list := raw.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// encodeURI mirrors ECMAScript's encodeURI: it leaves URI reserved and
// unreserved characters intact and percent-encodes everything else as UTF-8.
func encodeURI(s string) string {
	const keep = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789;,/?:@&=+$-_.!~*'()#"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(keep, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteString(percentEncode(c))
	}
	return b.String()
}

func percentEncode(c byte) string {
	const hex = "0123456789ABCDEF"
	return string([]byte{'%', hex[c>>4], hex[c&0xf]})
}
