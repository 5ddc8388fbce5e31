package types

import "math"

// TimespanValue is a recorded timespan metric. The span is kept in
// milliseconds and converted to the metric's unit at payload time.
type TimespanValue struct {
	Millis int64
	Unit   TimeUnit
}

func (v TimespanValue) Kind() Kind { return KindTimespan }

func (v TimespanValue) Stored() any {
	return map[string]any{
		"timespan": v.Millis,
		"timeUnit": string(v.Unit),
	}
}

// Span converts the stored milliseconds to the metric's time unit. Units
// coarser than a millisecond round to nearest.
func (v TimespanValue) Span() int64 {
	switch v.Unit {
	case UnitNanosecond:
		return v.Millis * 1e6
	case UnitMicrosecond:
		return v.Millis * 1e3
	case UnitMillisecond:
		return v.Millis
	case UnitSecond:
		return int64(math.Round(float64(v.Millis) / 1e3))
	case UnitMinute:
		return int64(math.Round(float64(v.Millis) / (1e3 * 60)))
	case UnitHour:
		return int64(math.Round(float64(v.Millis) / (1e3 * 60 * 60)))
	case UnitDay:
		return int64(math.Round(float64(v.Millis) / (1e3 * 60 * 60 * 24)))
	}
	return v.Millis
}

func (v TimespanValue) Payload() any {
	return map[string]any{
		"time_unit": string(v.Unit),
		"value":     v.Span(),
	}
}

func timespanFromStored(raw any) (Value, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, Errorf(InvalidType, "expected timespan object, got %T", raw)
	}
	if len(m) != 2 {
		return nil, Errorf(InvalidType, "timespan object has %d keys, want 2", len(m))
	}
	unitRaw, ok := m["timeUnit"].(string)
	if !ok || !TimeUnit(unitRaw).Valid() {
		return nil, Errorf(InvalidType, "timespan has invalid time unit %v", m["timeUnit"])
	}
	ms, ok := AsInt64(m["timespan"])
	if !ok {
		return nil, Errorf(InvalidType, "timespan has invalid span %v", m["timespan"])
	}
	if ms < 0 {
		return nil, Errorf(InvalidValue, "timespan must not be negative, got %d", ms)
	}
	return TimespanValue{Millis: ms, Unit: TimeUnit(unitRaw)}, nil
}
