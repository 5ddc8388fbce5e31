package metrics_test

import (
	"strings"
	"testing"

	"github.com/pellucid-io/beacon/metrics"
	"github.com/pellucid-io/beacon/types"
)

func TestLabeledCounter_StaticLabels(t *testing.T) {
	ctx := newTestContext(t)
	labeled := metrics.NewLabeledCounter(ctx, pingMeta("errors"), []string{"network", "parse"})

	labeled.Get("network").Add(2)
	labeled.Get("network").Inc()
	labeled.Get("bogus").Inc()

	if got, ok := labeled.Get("network").TestGetValue(); !ok || got != 3 {
		t.Fatalf("network count = %d, %v, want 3", got, ok)
	}
	if got, ok := labeled.Get(types.OtherLabel).TestGetValue(); !ok || got != 1 {
		t.Fatalf("__other__ count = %d, %v, want 1", got, ok)
	}
}

func TestLabeledCounter_DynamicLabelQuota(t *testing.T) {
	ctx := newTestContext(t)
	labeled := metrics.NewLabeledCounter(ctx, pingMeta("hits"), nil)

	labels := []string{
		"l01", "l02", "l03", "l04", "l05", "l06", "l07", "l08",
		"l09", "l10", "l11", "l12", "l13", "l14", "l15", "l16",
	}
	for _, label := range labels {
		labeled.Get(label).Inc()
	}
	labeled.Get("l17").Inc()
	labeled.Get("l18").Inc()

	if got, ok := labeled.Get("l01").TestGetValue(); !ok || got != 1 {
		t.Fatalf("l01 count = %d, %v, want 1", got, ok)
	}
	// Reads past the quota fold into the catch-all too.
	if got, ok := labeled.Get("l17").TestGetValue(); !ok || got != 2 {
		t.Fatalf("l17 resolved to %d, %v, want the catch-all tally", got, ok)
	}
	if got, ok := labeled.Get(types.OtherLabel).TestGetValue(); !ok || got != 2 {
		t.Fatalf("__other__ count = %d, %v, want 2", got, ok)
	}
}

func TestLabeledCounter_DynamicLabelReusedPastQuota(t *testing.T) {
	ctx := newTestContext(t)
	labeled := metrics.NewLabeledCounter(ctx, pingMeta("hits"), nil)

	labels := []string{
		"l01", "l02", "l03", "l04", "l05", "l06", "l07", "l08",
		"l09", "l10", "l11", "l12", "l13", "l14", "l15", "l16",
	}
	for _, label := range labels {
		labeled.Get(label).Inc()
	}
	// A label already on record keeps its slot even with the quota spent.
	labeled.Get("l05").Inc()

	if got, ok := labeled.Get("l05").TestGetValue(); !ok || got != 2 {
		t.Fatalf("l05 count = %d, %v, want 2", got, ok)
	}
}

func TestLabeledCounter_InvalidDynamicLabel(t *testing.T) {
	ctx := newTestContext(t)
	labeled := metrics.NewLabeledCounter(ctx, pingMeta("hits"), nil)

	labeled.Get("Not A Label").Inc()
	labeled.Get(strings.Repeat("a", types.MaxLabelLength+1)).Inc()

	if got, ok := labeled.Get(types.OtherLabel).TestGetValue(); !ok || got != 2 {
		t.Fatalf("__other__ count = %d, %v, want 2", got, ok)
	}
	errs := ctx.Errors.(*metrics.ErrorManager)
	meta := pingMeta("hits")
	if n := errs.TestGetNumRecordedErrors(&meta, types.InvalidLabel); n != 2 {
		t.Fatalf("invalid_label errors = %d, want 2", n)
	}
}

func TestDatabase_GetPingMetricsMergesLifetimes(t *testing.T) {
	ctx := newTestContext(t)
	db := ctx.Metrics.(*metrics.Database)

	userMeta := pingMeta("channel")
	userMeta.Lifetime = types.LifetimeUser
	appMeta := pingMeta("channel")
	appMeta.Lifetime = types.LifetimeApplication

	db.Record(&userMeta, types.StringValue("user"))
	payload, ok := db.GetPingMetrics("prototype", false)
	if !ok {
		t.Fatal("no payload from user lifetime data")
	}
	if got := payload["string"].(map[string]any)["test.channel"]; got != "user" {
		t.Fatalf("string payload = %v, want user value", got)
	}

	// Application-lifetime data shadows the user-lifetime value.
	db.Record(&appMeta, types.StringValue("app"))
	payload, _ = db.GetPingMetrics("prototype", false)
	if got := payload["string"].(map[string]any)["test.channel"]; got != "app" {
		t.Fatalf("string payload = %v, want application value", got)
	}
}

func TestDatabase_GetPingMetricsClearsPingLifetime(t *testing.T) {
	ctx := newTestContext(t)
	db := ctx.Metrics.(*metrics.Database)

	meta := pingMeta("channel")
	db.Record(&meta, types.StringValue("once"))

	if _, ok := db.GetPingMetrics("prototype", true); !ok {
		t.Fatal("first collection returned no payload")
	}
	if _, ok := db.GetPingMetrics("prototype", true); ok {
		t.Fatal("ping lifetime data survived collection")
	}
}

func TestDatabase_GetPingMetricsLabeledSections(t *testing.T) {
	ctx := newTestContext(t)
	db := ctx.Metrics.(*metrics.Database)

	labeled := metrics.NewLabeledCounter(ctx, pingMeta("hits"), nil)
	labeled.Get("search").Add(4)
	labeled.Get("home").Inc()
	ctx.Dispatcher.BlockOnQueue()

	payload, ok := db.GetPingMetrics("prototype", false)
	if !ok {
		t.Fatal("no payload")
	}
	section, ok := payload["labeled_counter"].(map[string]any)
	if !ok {
		t.Fatalf("payload has no labeled_counter section: %v", payload)
	}
	byLabel := section["test.hits"].(map[string]any)
	if byLabel["search"] != int64(4) || byLabel["home"] != int64(1) {
		t.Fatalf("labeled payload = %v", byLabel)
	}
}

func TestDatabase_GetPingMetricsSkipsReservedIdentifiers(t *testing.T) {
	ctx := newTestContext(t)
	db := ctx.Metrics.(*metrics.Database)

	reserved := pingMeta("")
	reserved.Category = ""
	reserved.Name = types.ReservedIdentifierPrefix + "execution_counter"
	db.Record(&reserved, types.CounterValue(7))

	if payload, ok := db.GetPingMetrics("prototype", false); ok {
		t.Fatalf("reserved identifier leaked into the payload: %v", payload)
	}
}

func TestDatabase_GetMetricDeletesCorruptValue(t *testing.T) {
	ctx := newTestContext(t)
	db := ctx.Metrics.(*metrics.Database)

	meta := pingMeta("clicks")
	db.Transform(&meta, types.KindCounter, func(any) any { return "garbage" })

	if v := db.GetMetric("prototype", &meta, types.KindCounter); v != nil {
		t.Fatalf("GetMetric returned %v for a corrupt slot", v)
	}
	// The corrupt slot is gone, so a fresh add starts from scratch.
	counter := metrics.NewCounter(ctx, meta)
	counter.Add(2)
	if got, ok := counter.TestGetValue(); !ok || got != 2 {
		t.Fatalf("count after corruption = %d, %v, want 2", got, ok)
	}
}

func TestDatabase_CorruptValueDiscardsPingSlice(t *testing.T) {
	ctx := newTestContext(t)
	db := ctx.Metrics.(*metrics.Database)

	good := pingMeta("channel")
	db.Record(&good, types.StringValue("ok"))
	bad := pingMeta("clicks")
	db.Transform(&bad, types.KindCounter, func(any) any { return "garbage" })

	if payload, ok := db.GetPingMetrics("prototype", false); ok {
		t.Fatalf("corrupt slice still produced a payload: %v", payload)
	}
}

func TestDatabase_ClearAll(t *testing.T) {
	ctx := newTestContext(t)
	db := ctx.Metrics.(*metrics.Database)

	for _, lifetime := range []types.Lifetime{types.LifetimeUser, types.LifetimePing, types.LifetimeApplication} {
		meta := pingMeta("channel")
		meta.Lifetime = lifetime
		db.Record(&meta, types.StringValue("x"))
	}
	db.ClearAll()

	if payload, ok := db.GetPingMetrics("prototype", false); ok {
		t.Fatalf("data survived ClearAll: %v", payload)
	}
}
