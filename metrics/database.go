// Package metrics implements the metric types and the lifetime-partitioned
// database they record into.
//
// Values are stored as [ping][metricKind][identifier] trees, one tree per
// lifetime. Identifiers of labeled submetrics carry the label after a "/";
// the payload assembler later splits on it to build labeled_* sections.
package metrics

import (
	"fmt"
	"strings"

	"github.com/pellucid-io/beacon/core"
	"github.com/pellucid-io/beacon/log"
	"github.com/pellucid-io/beacon/storage"
	"github.com/pellucid-io/beacon/types"
)

// Store names, one per lifetime. Part of the on-disk layout.
const (
	userStoreName = "userLifetimeMetrics"
	pingStoreName = "pingLifetimeMetrics"
	appStoreName  = "appLifetimeMetrics"
)

// Database stores metric values for the three lifetimes.
type Database struct {
	ctx    *core.Context
	logger *log.Logger

	userStore storage.Store
	pingStore storage.Store
	appStore  storage.Store
}

// Verify Database implements the context contract.
var _ core.MetricsDatabase = (*Database)(nil)

// NewDatabase opens the three lifetime stores through the factory.
func NewDatabase(ctx *core.Context, open storage.Factory, logger *log.Logger) (*Database, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	user, err := open(userStoreName)
	if err != nil {
		return nil, fmt.Errorf("open user lifetime store: %w", err)
	}
	ping, err := open(pingStoreName)
	if err != nil {
		return nil, fmt.Errorf("open ping lifetime store: %w", err)
	}
	app, err := open(appStoreName)
	if err != nil {
		return nil, fmt.Errorf("open application lifetime store: %w", err)
	}
	return &Database{
		ctx:       ctx,
		logger:    logger,
		userStore: user,
		pingStore: ping,
		appStore:  app,
	}, nil
}

func (d *Database) chooseStore(lifetime types.Lifetime) storage.Store {
	switch lifetime {
	case types.LifetimeUser:
		return d.userStore
	case types.LifetimeApplication:
		return d.appStore
	default:
		return d.pingStore
	}
}

// Record replaces the stored value of the metric in every destination ping.
func (d *Database) Record(meta *types.CommonMetricData, value types.Value) {
	d.Transform(meta, value.Kind(), func(any) any { return value.Stored() })
}

// Transform rewrites the stored value of the metric in every destination
// ping. Disabled metrics record nothing.
func (d *Database) Transform(meta *types.CommonMetricData, kind types.Kind, transform func(old any) any) {
	if meta.Disabled {
		return
	}
	identifier := d.identifier(meta, kind)
	store := d.chooseStore(meta.Lifetime)
	for _, ping := range meta.SendInPings {
		err := store.Update([]string{ping, string(kind), identifier}, transform)
		if err != nil {
			d.logger.Error("failed to update stored metric", map[string]any{
				"metric": identifier,
				"ping":   ping,
				"error":  err.Error(),
			})
		}
	}
}

// identifier resolves the metric's storage identifier, folding in a dynamic
// label when one is pending.
func (d *Database) identifier(meta *types.CommonMetricData, kind types.Kind) string {
	if !meta.HasDynamicLabel() {
		return meta.BaseIdentifier()
	}
	return d.validDynamicLabel(meta, kind)
}

// validDynamicLabel resolves a submetric label against stored data: labels
// already on record are reused, new labels past the quota or failing
// validation fold into the catch-all label.
func (d *Database) validDynamicLabel(meta *types.CommonMetricData, kind types.Kind) string {
	base := meta.BaseIdentifier()
	label := *meta.DynamicLabel
	key := types.CombineIdentifierAndLabel(base, label)
	store := d.chooseStore(meta.Lifetime)

	for _, ping := range meta.SendInPings {
		if v, _ := store.Get(ping, string(kind), key); v != nil {
			return key
		}
	}

	usedKeys := 0
	for _, ping := range meta.SendInPings {
		usedKeys += d.countByBase(store, ping, kind, base)
	}
	if usedKeys >= types.MaxLabels {
		return types.CombineIdentifierAndLabel(base, types.OtherLabel)
	}

	if len(label) > types.MaxLabelLength {
		d.ctx.Errors.Record(meta, types.InvalidLabel,
			fmt.Sprintf("Label length %d exceeds maximum of %d.", len(label), types.MaxLabelLength), 1)
		return types.CombineIdentifierAndLabel(base, types.OtherLabel)
	}
	if !types.LabelConformsToRegex(label) {
		d.ctx.Errors.Record(meta, types.InvalidLabel,
			fmt.Sprintf("Label must be snake_case, got %q.", label), 1)
		return types.CombineIdentifierAndLabel(base, types.OtherLabel)
	}
	return key
}

// countByBase counts the stored identifiers of one metric across its labels.
func (d *Database) countByBase(store storage.Store, ping string, kind types.Kind, base string) int {
	raw, err := store.Get(ping, string(kind))
	if err != nil {
		return 0
	}
	byID, ok := raw.(map[string]any)
	if !ok {
		return 0
	}
	n := 0
	for id := range byID {
		if strings.HasPrefix(id, base) {
			n++
		}
	}
	return n
}

// GetMetric returns the validated value stored for the metric in the given
// ping. Corrupt values are logged and deleted.
func (d *Database) GetMetric(ping string, meta *types.CommonMetricData, kind types.Kind) types.Value {
	identifier := d.identifier(meta, kind)
	store := d.chooseStore(meta.Lifetime)
	index := []string{ping, string(kind), identifier}

	raw, err := store.Get(index...)
	if err != nil {
		d.logger.Error("failed to read stored metric", map[string]any{
			"metric": identifier,
			"ping":   ping,
			"error":  err.Error(),
		})
		return nil
	}
	if raw == nil {
		return nil
	}
	value, verr := types.FromStored(kind, raw)
	if verr != nil {
		d.logger.Error("deleting corrupt stored metric", map[string]any{
			"metric": identifier,
			"ping":   ping,
			"error":  verr.Error(),
		})
		_ = store.Delete(index...)
		return nil
	}
	return value
}

// getAndValidatePingData returns one ping's slice of a lifetime store as
// [kind][identifier] -> Value. A single corrupt entry discards the whole
// slice.
func (d *Database) getAndValidatePingData(ping string, lifetime types.Lifetime) map[string]map[string]types.Value {
	store := d.chooseStore(lifetime)
	raw, err := store.Get(ping)
	if err != nil || raw == nil {
		return nil
	}
	byKind, ok := raw.(map[string]any)
	if !ok {
		d.deleteCorruptPingData(store, ping, lifetime, fmt.Sprintf("unexpected shape %T", raw))
		return nil
	}

	out := make(map[string]map[string]types.Value, len(byKind))
	for kind, rawByID := range byKind {
		byID, ok := rawByID.(map[string]any)
		if !ok {
			d.deleteCorruptPingData(store, ping, lifetime, fmt.Sprintf("metric kind %q is not an object", kind))
			return nil
		}
		values := make(map[string]types.Value, len(byID))
		for id, rawValue := range byID {
			value, verr := types.FromStored(types.Kind(kind), rawValue)
			if verr != nil {
				d.deleteCorruptPingData(store, ping, lifetime, fmt.Sprintf("metric %q: %v", id, verr))
				return nil
			}
			values[id] = value
		}
		out[kind] = values
	}
	return out
}

func (d *Database) deleteCorruptPingData(store storage.Store, ping string, lifetime types.Lifetime, reason string) {
	d.logger.Error("deleting corrupt ping data", map[string]any{
		"ping":     ping,
		"lifetime": string(lifetime),
		"reason":   reason,
	})
	_ = store.Delete(ping)
}

// GetPingMetrics assembles the metrics section of a ping payload. Data from
// all three lifetimes merges user < ping < application. Ping-lifetime data
// is cleared when requested and present.
func (d *Database) GetPingMetrics(ping string, clear bool) (map[string]any, bool) {
	userData := d.getAndValidatePingData(ping, types.LifetimeUser)
	pingData := d.getAndValidatePingData(ping, types.LifetimePing)
	appData := d.getAndValidatePingData(ping, types.LifetimeApplication)

	if clear && len(pingData) > 0 {
		d.Clear(types.LifetimePing, ping)
	}

	merged := make(map[string]map[string]types.Value)
	for _, data := range []map[string]map[string]types.Value{userData, pingData, appData} {
		for kind, values := range data {
			if merged[kind] == nil {
				merged[kind] = make(map[string]types.Value, len(values))
			}
			for id, value := range values {
				merged[kind][id] = value
			}
		}
	}

	payload := make(map[string]any)
	for kind, values := range merged {
		for id, value := range values {
			if strings.HasPrefix(id, types.ReservedIdentifierPrefix) {
				continue
			}
			if strings.Contains(id, "/") {
				addLabeledToPayload(payload, kind, id, value)
				continue
			}
			section, _ := payload[kind].(map[string]any)
			if section == nil {
				section = make(map[string]any)
				payload[kind] = section
			}
			section[id] = value.Payload()
		}
	}
	if len(payload) == 0 {
		return nil, false
	}
	return payload, true
}

// addLabeledToPayload slots a labeled submetric value into the
// labeled_<kind> payload section.
func addLabeledToPayload(payload map[string]any, kind, id string, value types.Value) {
	base, label, _ := strings.Cut(id, "/")
	sectionName := "labeled_" + kind
	section, _ := payload[sectionName].(map[string]any)
	if section == nil {
		section = make(map[string]any)
		payload[sectionName] = section
	}
	byLabel, _ := section[base].(map[string]any)
	if byLabel == nil {
		byLabel = make(map[string]any)
		section[base] = byLabel
	}
	byLabel[label] = value.Payload()
}

// Clear wipes one lifetime, or a single ping's slice of it.
func (d *Database) Clear(lifetime types.Lifetime, ping string) {
	store := d.chooseStore(lifetime)
	var err error
	if ping != "" {
		err = store.Delete(ping)
	} else {
		err = store.Delete()
	}
	if err != nil {
		d.logger.Error("failed to clear metrics store", map[string]any{
			"lifetime": string(lifetime),
			"error":    err.Error(),
		})
	}
}

// ClearAll wipes every lifetime.
func (d *Database) ClearAll() {
	d.Clear(types.LifetimeUser, "")
	d.Clear(types.LifetimePing, "")
	d.Clear(types.LifetimeApplication, "")
}
