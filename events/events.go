// Package events implements the append-only event log.
//
// Event timestamps are monotonic milliseconds since process start, which
// restarts at zero every run. To keep cross-run order, every stored event is
// stamped with a per-ping execution counter and every new run injects a
// "glean.restarted" marker carrying a wall-clock reference time. Payload
// assembly stitches runs back together from those markers.
package events

import (
	"fmt"
	"time"

	"github.com/pellucid-io/beacon/core"
	"github.com/pellucid-io/beacon/log"
	"github.com/pellucid-io/beacon/storage"
	"github.com/pellucid-io/beacon/types"
)

// storeName is the events store. Part of the on-disk layout.
const storeName = "events"

// referenceTimeLayout formats restart markers' wall-clock anchors.
const referenceTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Database stores recorded events per destination ping.
type Database struct {
	ctx    *core.Context
	logger *log.Logger
	store  storage.Store
}

// Verify Database implements the context contract.
var _ core.EventsDatabase = (*Database)(nil)

// NewDatabase opens the events store through the factory.
func NewDatabase(ctx *core.Context, open storage.Factory, logger *log.Logger) (*Database, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	store, err := open(storeName)
	if err != nil {
		return nil, fmt.Errorf("open events store: %w", err)
	}
	return &Database{ctx: ctx, logger: logger, store: store}, nil
}

// executionCounterMeta is the reserved counter tracking how many runs have
// recorded into a ping's event log.
func executionCounterMeta(ping string) types.CommonMetricData {
	category, name := types.ReservedMetricIdentifiers("execution_counter")
	return types.CommonMetricData{
		Category:    category,
		Name:        name,
		SendInPings: []string{ping},
		Lifetime:    types.LifetimePing,
	}
}

// restartedMeta is the marker event separating runs. Unlike the execution
// counter it is not reserved-prefixed: the markers surface in payloads.
func restartedMeta(ping string) types.CommonMetricData {
	return types.CommonMetricData{
		Category:    types.ReservedMetricCategory,
		Name:        "restarted",
		SendInPings: []string{ping},
		Lifetime:    types.LifetimePing,
	}
}

// Initialize stamps a new run onto every store that carried events over:
// the execution counter increments and a restart marker anchored at SDK
// start lands at monotonic zero. Must run on the dispatcher flow.
func (d *Database) Initialize() {
	raw, err := d.store.Get()
	if err != nil {
		d.logger.Error("failed to scan events store", map[string]any{"error": err.Error()})
		return
	}
	tree, ok := raw.(map[string]any)
	if !ok {
		return
	}
	for ping := range tree {
		counter := d.incrementExecutionCounter(ping)
		d.appendRestarted(ping, counter, 0, d.ctx.StartTime)
	}
}

// Record appends the event to every destination ping's log. The first event
// a run records into a ping also starts the run's execution counter and
// restart marker.
func (d *Database) Record(meta *types.CommonMetricData, event *types.RecordedEvent) {
	if meta.Disabled {
		return
	}
	for _, ping := range meta.SendInPings {
		counter := d.executionCounter(ping)
		if counter == 0 {
			counter = d.incrementExecutionCounter(ping)
			// Markers always land at monotonic zero so they sort ahead of
			// every event of their run, whatever timestamp it carries.
			d.appendRestarted(ping, counter, 0, d.ctx.Now())
		}
		d.append(ping, stamp(event, counter))
	}
}

// executionCounter reads the current run counter for a ping, 0 when unset.
func (d *Database) executionCounter(ping string) int64 {
	meta := executionCounterMeta(ping)
	v := d.ctx.Metrics.GetMetric(ping, &meta, types.KindCounter)
	if v == nil {
		return 0
	}
	return int64(v.(types.CounterValue))
}

func (d *Database) incrementExecutionCounter(ping string) int64 {
	meta := executionCounterMeta(ping)
	d.ctx.Metrics.Transform(&meta, types.KindCounter, types.CounterAdd(1))
	return d.executionCounter(ping)
}

// appendRestarted writes a restart marker carrying the wall-clock anchor.
func (d *Database) appendRestarted(ping string, counter int64, timestamp int64, at time.Time) {
	meta := restartedMeta(ping)
	event := &types.RecordedEvent{
		Category:  meta.Category,
		Name:      meta.Name,
		Timestamp: timestamp,
		Extra: map[string]any{
			types.ReferenceTimeExtra: at.Format(referenceTimeLayout),
		},
	}
	d.append(ping, stamp(event, counter))
}

// stamp copies the event with the execution counter extra attached.
func stamp(event *types.RecordedEvent, counter int64) *types.RecordedEvent {
	clone := *event
	clone.Extra = make(map[string]any, len(event.Extra)+1)
	for k, v := range event.Extra {
		clone.Extra[k] = v
	}
	clone.Extra[types.ExecutionCounterExtra] = counter
	return &clone
}

// append pushes the event onto a ping's log.
func (d *Database) append(ping string, event *types.RecordedEvent) {
	err := d.store.Update([]string{ping}, func(old any) any {
		list, _ := old.([]any)
		return append(list, event.Stored())
	})
	if err != nil {
		d.logger.Error("failed to append event", map[string]any{
			"ping":  ping,
			"event": event.Identifier(),
			"error": err.Error(),
		})
	}
}

// pingEvents reads and validates one ping's log. A single corrupt entry
// discards the whole log.
func (d *Database) pingEvents(ping string) []*types.RecordedEvent {
	raw, err := d.store.Get(ping)
	if err != nil || raw == nil {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		d.deleteCorrupt(ping, fmt.Sprintf("unexpected shape %T", raw))
		return nil
	}
	events := make([]*types.RecordedEvent, 0, len(list))
	for _, item := range list {
		event, verr := types.EventFromStored(item)
		if verr != nil {
			d.deleteCorrupt(ping, verr.Error())
			return nil
		}
		events = append(events, event)
	}
	return events
}

func (d *Database) deleteCorrupt(ping, reason string) {
	d.logger.Error("deleting corrupt event data", map[string]any{
		"ping":   ping,
		"reason": reason,
	})
	_ = d.store.Delete(ping)
}

// GetPingEvents assembles the events section of a ping payload. The stored
// log is cleared when requested and present.
func (d *Database) GetPingEvents(ping string, clear bool) ([]map[string]any, bool) {
	events := d.pingEvents(ping)
	if clear && len(events) > 0 {
		if err := d.store.Delete(ping); err != nil {
			d.logger.Error("failed to clear event data", map[string]any{
				"ping":  ping,
				"error": err.Error(),
			})
		}
	}
	if len(events) == 0 {
		return nil, false
	}
	payload := d.preparePayload(ping, events)
	if len(payload) == 0 {
		return nil, false
	}
	return payload, true
}

// preparePayload reconciles timestamps across runs and shapes the events
// for the payload.
//
// Events sort by (execution counter, timestamp). The leading restart marker,
// if any, only provides the wall-clock anchor and is dropped. Every later
// marker moves the running offset forward by the wall-clock gap between
// runs; events of run N ride on that offset, while first-run events shift so
// the ping's first event lands at timestamp zero. A marker that would break
// monotonic order (clock skew between runs) is pinned right after the
// previous event and reported as an invalid_value on glean.restarted.
func (d *Database) preparePayload(ping string, events []*types.RecordedEvent) []map[string]any {
	types.SortEvents(events)

	lastRestart := d.ctx.StartTime
	if ref, ok := events[0].ReferenceTime(); ok {
		if t, err := time.Parse(referenceTimeLayout, ref); err == nil {
			lastRestart = t
			events = events[1:]
		}
	}

	var firstEventOffset int64
	if len(events) > 0 {
		firstEventOffset = events[0].Timestamp
	}

	var restartedOffset int64
	for i, event := range events {
		if ref, ok := event.ReferenceTime(); ok {
			next := lastRestart
			if t, err := time.Parse(referenceTimeLayout, ref); err == nil {
				next = t
			}
			dateOffset := next.Sub(lastRestart).Milliseconds()
			lastRestart = next

			var previousTimestamp int64
			if i > 0 {
				previousTimestamp = events[i-1].Timestamp
			}
			newOffset := restartedOffset + dateOffset
			if newOffset <= previousTimestamp {
				restartedOffset = previousTimestamp + 1
				meta := restartedMeta(ping)
				d.ctx.Errors.Record(&meta, types.InvalidValue,
					fmt.Sprintf("Invalid time offset between application sessions found for ping %q. Ignoring.", ping), 1)
			} else {
				restartedOffset = newOffset
			}
		}

		if event.ExecutionCounter() == 1 {
			events[i] = event.WithTimestamp(event.Timestamp - firstEventOffset)
		} else {
			events[i] = event.WithTimestamp(event.Timestamp + restartedOffset)
		}
	}

	payload := make([]map[string]any, len(events))
	for i, event := range events {
		payload[i] = event.PayloadEvent()
	}
	return payload
}

// ClearAll wipes the event log.
func (d *Database) ClearAll() {
	if err := d.store.Delete(); err != nil {
		d.logger.Error("failed to clear events store", map[string]any{"error": err.Error()})
	}
}
