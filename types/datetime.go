package types

import (
	"fmt"
	"time"
)

// TimeUnit is the resolution for datetime and timespan metrics.
type TimeUnit string

const (
	UnitNanosecond  TimeUnit = "nanosecond"
	UnitMicrosecond TimeUnit = "microsecond"
	UnitMillisecond TimeUnit = "millisecond"
	UnitSecond      TimeUnit = "second"
	UnitMinute      TimeUnit = "minute"
	UnitHour        TimeUnit = "hour"
	UnitDay         TimeUnit = "day"
)

// Valid reports whether u is a known time unit.
func (u TimeUnit) Valid() bool {
	switch u {
	case UnitNanosecond, UnitMicrosecond, UnitMillisecond, UnitSecond,
		UnitMinute, UnitHour, UnitDay:
		return true
	}
	return false
}

// storedDateLayout is the UTC instant format kept in storage. Millisecond
// precision, always 24 characters.
const storedDateLayout = "2006-01-02T15:04:05.000Z07:00"

// DatetimeValue is a recorded datetime metric. The instant is kept in UTC;
// Timezone preserves the recording device's offset in minutes west of UTC so
// the payload can restore local time.
type DatetimeValue struct {
	Unit     TimeUnit
	Timezone int
	Date     string
}

// NewDatetime captures t at the given resolution. Truncation happens on the
// local wall clock. Day resolution zeroes minutes and below; the hour is
// kept.
func NewDatetime(t time.Time, unit TimeUnit) DatetimeValue {
	_, offSec := t.Zone()
	tz := -offSec / 60

	y, mo, d := t.Date()
	h, min, sec := t.Hour(), t.Minute(), t.Second()
	ms := t.Nanosecond() / int(time.Millisecond)
	switch unit {
	case UnitDay, UnitHour:
		min, sec, ms = 0, 0, 0
	case UnitMinute:
		sec, ms = 0, 0
	case UnitSecond:
		ms = 0
	}
	truncated := time.Date(y, mo, d, h, min, sec, ms*int(time.Millisecond), t.Location())

	return DatetimeValue{
		Unit:     unit,
		Timezone: tz,
		Date:     truncated.UTC().Format(storedDateLayout),
	}
}

func (v DatetimeValue) Kind() Kind { return KindDatetime }

func (v DatetimeValue) Stored() any {
	return map[string]any{
		"timeUnit": string(v.Unit),
		"timezone": v.Timezone,
		"date":     v.Date,
	}
}

// Time returns the recorded instant carrying the original UTC offset.
func (v DatetimeValue) Time() (time.Time, error) {
	t, err := time.Parse(storedDateLayout, v.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt datetime %q: %w", v.Date, err)
	}
	return t.In(time.FixedZone("", -v.Timezone*60)), nil
}

// Payload formats the value in the device's local time at the metric's
// resolution, e.g. "2021-11-25+05:00" for day resolution or
// "2021-11-25T08:15:07.055-03:00" for millisecond and finer.
func (v DatetimeValue) Payload() any {
	utc, err := time.Parse(storedDateLayout, v.Date)
	if err != nil {
		return v.Date
	}
	local := utc.Add(-time.Duration(v.Timezone) * time.Minute).UTC()

	tz := formatTimezoneOffset(v.Timezone)
	switch v.Unit {
	case UnitDay:
		return local.Format("2006-01-02") + tz
	case UnitHour:
		return local.Format("2006-01-02T15") + tz
	case UnitMinute:
		return local.Format("2006-01-02T15:04") + tz
	case UnitSecond:
		return local.Format("2006-01-02T15:04:05") + tz
	default:
		return local.Format("2006-01-02T15:04:05.000") + tz
	}
}

// formatTimezoneOffset renders minutes west of UTC as an ISO offset suffix.
// A zero offset renders as "-00:00", matching the wire format consumers
// already accept.
func formatTimezoneOffset(timezone int) string {
	offset := (timezone / 60) * -1
	sign := "-"
	if offset > 0 {
		sign = "+"
	}
	if offset < 0 {
		offset = -offset
	}
	return fmt.Sprintf("%s%02d:00", sign, offset)
}

func datetimeFromStored(raw any) (Value, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, Errorf(InvalidType, "expected datetime object, got %T", raw)
	}
	if len(m) != 3 {
		return nil, Errorf(InvalidType, "datetime object has %d keys, want 3", len(m))
	}
	unitRaw, ok := m["timeUnit"].(string)
	if !ok || !TimeUnit(unitRaw).Valid() {
		return nil, Errorf(InvalidType, "datetime has invalid time unit %v", m["timeUnit"])
	}
	tz, ok := AsInt64(m["timezone"])
	if !ok {
		return nil, Errorf(InvalidType, "datetime has invalid timezone %v", m["timezone"])
	}
	date, ok := m["date"].(string)
	if !ok || len(date) != len("2006-01-02T15:04:05.000Z") {
		return nil, Errorf(InvalidType, "datetime has invalid date %v", m["date"])
	}
	return DatetimeValue{Unit: TimeUnit(unitRaw), Timezone: int(tz), Date: date}, nil
}
