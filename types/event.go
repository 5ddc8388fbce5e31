package types

import (
	"fmt"
	"sort"
	"strconv"
)

// RecordedEvent is a single entry in the events store. Timestamp is
// milliseconds of monotonic time since process start; cross-run ordering is
// reconstructed at payload time from execution counters and restart markers.
type RecordedEvent struct {
	Category  string
	Name      string
	Timestamp int64
	Extra     map[string]any
}

// Identifier returns "category.name".
func (e *RecordedEvent) Identifier() string {
	if e.Category == "" {
		return e.Name
	}
	return e.Category + "." + e.Name
}

// Stored returns the storage-tree representation of the event.
func (e *RecordedEvent) Stored() any {
	m := map[string]any{
		"category":  e.Category,
		"name":      e.Name,
		"timestamp": e.Timestamp,
	}
	if len(e.Extra) > 0 {
		extra := make(map[string]any, len(e.Extra))
		for k, v := range e.Extra {
			extra[k] = v
		}
		m["extra"] = extra
	}
	return m
}

// EventFromStored validates a raw storage value as a recorded event.
func EventFromStored(raw any) (*RecordedEvent, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, Errorf(InvalidType, "expected event object, got %T", raw)
	}
	category, ok := m["category"].(string)
	if !ok {
		return nil, Errorf(InvalidType, "event has invalid category %v", m["category"])
	}
	name, ok := m["name"].(string)
	if !ok {
		return nil, Errorf(InvalidType, "event has invalid name %v", m["name"])
	}
	ts, ok := AsInt64(m["timestamp"])
	if !ok || ts < 0 {
		return nil, Errorf(InvalidType, "event has invalid timestamp %v", m["timestamp"])
	}
	ev := &RecordedEvent{Category: category, Name: name, Timestamp: ts}
	if rawExtra, present := m["extra"]; present {
		extra, ok := rawExtra.(map[string]any)
		if !ok {
			return nil, Errorf(InvalidType, "event has invalid extras %v", rawExtra)
		}
		ev.Extra = extra
	}
	return ev, nil
}

// ExecutionCounter returns the session counter stamped on the event, or 0 if
// missing.
func (e *RecordedEvent) ExecutionCounter() int64 {
	if e.Extra == nil {
		return 0
	}
	n, _ := AsInt64(e.Extra[ExecutionCounterExtra])
	return n
}

// ReferenceTime returns the restart marker's wall-clock anchor, if present.
func (e *RecordedEvent) ReferenceTime() (string, bool) {
	if e.Extra == nil {
		return "", false
	}
	s, ok := e.Extra[ReferenceTimeExtra].(string)
	return s, ok
}

// WithTimestamp returns a copy of the event at a different timestamp.
func (e *RecordedEvent) WithTimestamp(ts int64) *RecordedEvent {
	clone := *e
	clone.Timestamp = ts
	return &clone
}

// PayloadEvent shapes the event for a ping payload: reserved extras are
// stripped and remaining extra values are stringified.
func (e *RecordedEvent) PayloadEvent() map[string]any {
	out := map[string]any{
		"category":  e.Category,
		"name":      e.Name,
		"timestamp": e.Timestamp,
	}
	extra := make(map[string]string)
	for k, v := range e.Extra {
		if k == ExecutionCounterExtra || k == ReferenceTimeExtra {
			continue
		}
		extra[k] = stringifyExtra(v)
	}
	if len(extra) > 0 {
		out["extra"] = extra
	}
	return out
}

// SortEvents orders events by execution counter, then timestamp. Events
// recorded in different sessions compare on the counter first because raw
// timestamps restart with the process.
func SortEvents(events []*RecordedEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		ci, cj := events[i].ExecutionCounter(), events[j].ExecutionCounter()
		if ci != cj {
			return ci < cj
		}
		return events[i].Timestamp < events[j].Timestamp
	})
}

func stringifyExtra(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
