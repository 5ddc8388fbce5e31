package pings

import (
	"encoding/json"
	"strings"

	"github.com/pellucid-io/beacon/core"
	"github.com/pellucid-io/beacon/log"
	"github.com/pellucid-io/beacon/types"
)

// Maker assembles ping payloads out of the metrics and events databases.
type Maker struct {
	ctx    *core.Context
	logger *log.Logger
}

// NewMaker creates a payload maker.
func NewMaker(ctx *core.Context, logger *log.Logger) *Maker {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Maker{ctx: ctx, logger: logger}
}

// sequenceNumberMeta is the per-ping upload sequence counter, kept with user
// lifetime in the reserved ping-info store.
func sequenceNumberMeta(pingName string) types.CommonMetricData {
	return types.CommonMetricData{
		Name:        pingName + "#sequence",
		SendInPings: []string{types.PingInfoStorage},
		Lifetime:    types.LifetimeUser,
	}
}

// startTimeMeta is the per-ping collection window start, minute resolution.
func startTimeMeta(pingName string) types.CommonMetricData {
	return types.CommonMetricData{
		Name:        pingName + "#start",
		SendInPings: []string{types.PingInfoStorage},
		Lifetime:    types.LifetimeUser,
	}
}

// sequenceNumber returns the ping's current sequence number and increments
// the stored one. The first ping of a name gets 0.
func (m *Maker) sequenceNumber(pingName string) int64 {
	meta := sequenceNumberMeta(pingName)
	var seq int64
	if v := m.ctx.Metrics.GetMetric(types.PingInfoStorage, &meta, types.KindCounter); v != nil {
		seq = int64(v.(types.CounterValue))
	}
	m.ctx.Metrics.Transform(&meta, types.KindCounter, types.CounterAdd(1))
	return seq
}

// startEndTimes returns the ping's collection window. The window opens at
// the previously stored end (SDK start for the first ping) and closes now;
// the close instant becomes the next window's start.
func (m *Maker) startEndTimes(pingName string) (startTime, endTime string) {
	meta := startTimeMeta(pingName)
	start := types.NewDatetime(m.ctx.StartTime, types.UnitMinute)
	if v := m.ctx.Metrics.GetMetric(types.PingInfoStorage, &meta, types.KindDatetime); v != nil {
		start = v.(types.DatetimeValue)
	}
	end := types.NewDatetime(m.ctx.Now(), types.UnitMinute)
	m.ctx.Metrics.Record(&meta, end)
	return start.Payload().(string), end.Payload().(string)
}

// buildPingInfo assembles the ping_info section.
func (m *Maker) buildPingInfo(pingName, reason string) map[string]any {
	start, end := m.startEndTimes(pingName)
	info := map[string]any{
		"seq":        m.sequenceNumber(pingName),
		"start_time": start,
		"end_time":   end,
	}
	if reason != "" {
		info["reason"] = reason
	}
	return info
}

// buildClientInfo assembles the client_info section from the reserved
// client-info store, which is cleared in the process. Values of all metric
// kinds flatten into one object; client_id is withheld unless the ping
// opted in.
func (m *Maker) buildClientInfo(includeClientID bool) map[string]any {
	clientInfo := make(map[string]any)
	if sections, ok := m.ctx.Metrics.GetPingMetrics(types.ClientInfoStorage, true); ok {
		for _, section := range sections {
			if byID, isMap := section.(map[string]any); isMap {
				for id, value := range byID {
					clientInfo[id] = value
				}
			}
		}
	}
	clientInfo["telemetry_sdk_build"] = types.SDKVersion
	if !includeClientID {
		delete(clientInfo, "client_id")
	}
	return clientInfo
}

// CollectPayload builds the full payload of one ping submission, or nil when
// the ping is empty and does not send empty.
func (m *Maker) CollectPayload(ping *PingType, reason string) map[string]any {
	events, hasEvents := m.ctx.Events.GetPingEvents(ping.name, true)
	metrics, hasMetrics := m.ctx.Metrics.GetPingMetrics(ping.name, true)
	if !hasMetrics && !hasEvents && !ping.sendIfEmpty {
		m.logger.Info("nothing to send, ping discarded", map[string]any{"ping": ping.name})
		return nil
	}

	payload := map[string]any{
		"ping_info":   m.buildPingInfo(ping.name, reason),
		"client_info": m.buildClientInfo(ping.includeClientID),
	}
	if hasMetrics {
		payload["metrics"] = metrics
	}
	if hasEvents {
		payload["events"] = events
	}
	return payload
}

// CollectAndStore assembles the ping and pushes it into the pending queue.
// The collection hook may rewrite the payload; a hook error vetoes the ping.
func (m *Maker) CollectAndStore(ping *PingType, reason, identifier string) {
	payload := m.CollectPayload(ping, reason)
	if payload == nil {
		return
	}

	if ping.afterCollection != nil {
		rewritten, err := ping.afterCollection(payload)
		if err != nil {
			m.logger.Error("ping collection hook failed, discarding ping", map[string]any{
				"ping":  ping.name,
				"error": err.Error(),
			})
			return
		}
		payload = rewritten
	}

	if m.ctx.Debug.LogPings {
		if pretty, err := json.MarshalIndent(payload, "", "  "); err == nil {
			m.logger.Info("collected ping", map[string]any{
				"ping":    ping.name,
				"payload": string(pretty),
			})
		}
	}

	var headers map[string]string
	if m.ctx.Debug.DebugViewTag != "" {
		headers = map[string]string{"X-Debug-ID": m.ctx.Debug.DebugViewTag}
	}
	if len(m.ctx.Debug.SourceTags) > 0 {
		if headers == nil {
			headers = make(map[string]string, 1)
		}
		headers["X-Source-Tags"] = strings.Join(m.ctx.Debug.SourceTags, ",")
	}

	path := types.SubmissionPath(m.ctx.ApplicationID, ping.name, identifier)
	m.ctx.Pings.RecordPing(path, identifier, payload, headers)
}
