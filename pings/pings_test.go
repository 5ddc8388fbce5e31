package pings_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/pellucid-io/beacon/core"
	"github.com/pellucid-io/beacon/dispatcher"
	"github.com/pellucid-io/beacon/events"
	"github.com/pellucid-io/beacon/log"
	"github.com/pellucid-io/beacon/metrics"
	"github.com/pellucid-io/beacon/pings"
	"github.com/pellucid-io/beacon/storage"
	"github.com/pellucid-io/beacon/types"
)

// captureObserver records every queue notification.
type captureObserver struct {
	ids  []string
	seen map[string]*types.PendingPing
}

func newCaptureObserver() *captureObserver {
	return &captureObserver{seen: make(map[string]*types.PendingPing)}
}

func (c *captureObserver) Update(identifier string, ping *types.PendingPing) {
	c.ids = append(c.ids, identifier)
	c.seen[identifier] = ping
}

func newTestContext(t *testing.T) (*core.Context, *pings.Database) {
	t.Helper()
	ctx := core.NewContext()
	ctx.ApplicationID = "test-app"
	ctx.Logger = log.NewNop()
	ctx.Dispatcher = dispatcher.New(0, nil)
	ctx.Dispatcher.FlushInit(nil)

	open := storage.MemoryFactory()
	mdb, err := metrics.NewDatabase(ctx, open, nil)
	if err != nil {
		t.Fatalf("NewDatabase (metrics) failed: %v", err)
	}
	edb, err := events.NewDatabase(ctx, open, nil)
	if err != nil {
		t.Fatalf("NewDatabase (events) failed: %v", err)
	}
	pdb, err := pings.NewDatabase(ctx, open, nil)
	if err != nil {
		t.Fatalf("NewDatabase (pings) failed: %v", err)
	}
	ctx.Metrics = mdb
	ctx.Events = edb
	ctx.Pings = pdb
	ctx.Errors = metrics.NewErrorManager(ctx, nil)
	ctx.SetInitialized(true)
	ctx.SetUploadEnabled(true)
	t.Cleanup(ctx.Dispatcher.Shutdown)
	return ctx, pdb
}

func TestPingType_SubmitBuildsPayload(t *testing.T) {
	ctx, db := newTestContext(t)
	start := time.Date(2021, 11, 25, 8, 0, 0, 0, time.UTC)
	now := start
	ctx.StartTime = start
	ctx.SetClock(func() time.Time { return now }, nil)

	observer := newCaptureObserver()
	db.AttachObserver(observer)

	counter := metrics.NewCounter(ctx, types.CommonMetricData{
		Category:    "test",
		Name:        "clicks",
		SendInPings: []string{"prototype"},
		Lifetime:    types.LifetimePing,
	})
	counter.Add(3)
	ctx.Dispatcher.BlockOnQueue()

	ping := pings.NewPingType(ctx, pings.PingTypeConfig{
		Name:        "prototype",
		ReasonCodes: []string{"periodic"},
	}, nil)
	now = start.Add(5 * time.Minute)
	ping.Submit("periodic")
	ctx.Dispatcher.BlockOnQueue()

	if len(observer.ids) != 1 {
		t.Fatalf("queued %d pings, want 1", len(observer.ids))
	}
	identifier := observer.ids[0]
	queued := observer.seen[identifier]

	wantPath := "/submit/test-app/prototype/1/" + identifier
	if queued.Path != wantPath {
		t.Fatalf("Path = %q, want %q", queued.Path, wantPath)
	}

	info := queued.Payload["ping_info"].(map[string]any)
	if info["seq"] != int64(0) || info["reason"] != "periodic" {
		t.Fatalf("ping_info = %v", info)
	}
	if info["start_time"] != "2021-11-25T08:00-00:00" || info["end_time"] != "2021-11-25T08:05-00:00" {
		t.Fatalf("collection window = %v .. %v", info["start_time"], info["end_time"])
	}

	clientInfo := queued.Payload["client_info"].(map[string]any)
	if clientInfo["telemetry_sdk_build"] != types.SDKVersion {
		t.Fatalf("client_info = %v", clientInfo)
	}
	if _, found := clientInfo["client_id"]; found {
		t.Fatal("client_id sent without IncludeClientID")
	}

	section := queued.Payload["metrics"].(map[string]any)["counter"].(map[string]any)
	if section["test.clicks"] != int64(3) {
		t.Fatalf("metrics section = %v", section)
	}
}

func TestPingType_SequenceAndWindowAdvance(t *testing.T) {
	ctx, db := newTestContext(t)
	start := time.Date(2021, 11, 25, 8, 0, 0, 0, time.UTC)
	now := start
	ctx.StartTime = start
	ctx.SetClock(func() time.Time { return now }, nil)

	observer := newCaptureObserver()
	db.AttachObserver(observer)

	ping := pings.NewPingType(ctx, pings.PingTypeConfig{Name: "prototype", SendIfEmpty: true}, nil)
	now = start.Add(5 * time.Minute)
	ping.Submit("")
	now = start.Add(20 * time.Minute)
	ping.Submit("")
	ctx.Dispatcher.BlockOnQueue()

	if len(observer.ids) != 2 {
		t.Fatalf("queued %d pings, want 2", len(observer.ids))
	}
	second := observer.seen[observer.ids[1]].Payload["ping_info"].(map[string]any)
	if second["seq"] != int64(1) {
		t.Fatalf("second seq = %v, want 1", second["seq"])
	}
	// The second window opens where the first one closed.
	if second["start_time"] != "2021-11-25T08:05-00:00" || second["end_time"] != "2021-11-25T08:20-00:00" {
		t.Fatalf("second window = %v .. %v", second["start_time"], second["end_time"])
	}
	if _, found := second["reason"]; found {
		t.Fatalf("empty reason surfaced in ping_info: %v", second)
	}
}

func TestPingType_EmptyPingDiscarded(t *testing.T) {
	ctx, db := newTestContext(t)
	observer := newCaptureObserver()
	db.AttachObserver(observer)

	ping := pings.NewPingType(ctx, pings.PingTypeConfig{Name: "prototype"}, nil)
	ping.Submit("")
	ctx.Dispatcher.BlockOnQueue()

	if len(observer.ids) != 0 {
		t.Fatalf("empty ping was queued: %v", observer.ids)
	}
}

func TestPingType_SubmitGating(t *testing.T) {
	ctx, db := newTestContext(t)
	observer := newCaptureObserver()
	db.AttachObserver(observer)
	ping := pings.NewPingType(ctx, pings.PingTypeConfig{Name: "prototype", SendIfEmpty: true}, nil)

	ctx.SetInitialized(false)
	ping.Submit("")
	ctx.Dispatcher.BlockOnQueue()
	if len(observer.ids) != 0 {
		t.Fatal("ping queued before initialization")
	}

	ctx.SetInitialized(true)
	ctx.SetUploadEnabled(false)
	ping.Submit("")
	ctx.Dispatcher.BlockOnQueue()
	if len(observer.ids) != 0 {
		t.Fatal("ping queued while upload disabled")
	}
}

func TestPingType_UnknownReasonDropped(t *testing.T) {
	ctx, db := newTestContext(t)
	observer := newCaptureObserver()
	db.AttachObserver(observer)

	ping := pings.NewPingType(ctx, pings.PingTypeConfig{
		Name:        "prototype",
		SendIfEmpty: true,
		ReasonCodes: []string{"periodic"},
	}, nil)
	ping.Submit("bogus")
	ctx.Dispatcher.BlockOnQueue()

	if len(observer.ids) != 1 {
		t.Fatalf("queued %d pings, want 1", len(observer.ids))
	}
	info := observer.seen[observer.ids[0]].Payload["ping_info"].(map[string]any)
	if _, found := info["reason"]; found {
		t.Fatalf("unknown reason surfaced in ping_info: %v", info)
	}
}

func TestPingType_CollectionHook(t *testing.T) {
	ctx, db := newTestContext(t)
	observer := newCaptureObserver()
	db.AttachObserver(observer)

	rewritten := pings.NewPingType(ctx, pings.PingTypeConfig{
		Name:        "rewritten",
		SendIfEmpty: true,
		AfterCollection: func(payload map[string]any) (map[string]any, error) {
			payload["sealed"] = true
			return payload, nil
		},
	}, nil)
	vetoed := pings.NewPingType(ctx, pings.PingTypeConfig{
		Name:        "vetoed",
		SendIfEmpty: true,
		AfterCollection: func(map[string]any) (map[string]any, error) {
			return nil, fmt.Errorf("no")
		},
	}, nil)

	rewritten.Submit("")
	vetoed.Submit("")
	ctx.Dispatcher.BlockOnQueue()

	if len(observer.ids) != 1 {
		t.Fatalf("queued %d pings, want 1", len(observer.ids))
	}
	if observer.seen[observer.ids[0]].Payload["sealed"] != true {
		t.Fatal("collection hook rewrite was dropped")
	}
}

func TestPingType_DebugHeaders(t *testing.T) {
	ctx, db := newTestContext(t)
	observer := newCaptureObserver()
	db.AttachObserver(observer)
	ctx.Debug.DebugViewTag = "my-tag"
	ctx.Debug.SourceTags = []string{"automation", "ci"}

	ping := pings.NewPingType(ctx, pings.PingTypeConfig{Name: "prototype", SendIfEmpty: true}, nil)
	ping.Submit("")
	ctx.Dispatcher.BlockOnQueue()

	headers := observer.seen[observer.ids[0]].Headers
	if headers["X-Debug-ID"] != "my-tag" || headers["X-Source-Tags"] != "automation,ci" {
		t.Fatalf("headers = %v", headers)
	}
}

func TestDatabase_ScanEnforcesCountQuota(t *testing.T) {
	ctx, db := newTestContext(t)
	base := time.Date(2021, 11, 25, 8, 0, 0, 0, time.UTC)
	now := base
	ctx.SetClock(func() time.Time { return now }, nil)

	total := pings.MaxPendingPings + 10
	for i := 0; i < total; i++ {
		now = base.Add(time.Duration(i) * time.Second)
		db.RecordPing("/submit/test-app/prototype/1/doc", fmt.Sprintf("ping-%03d", i), map[string]any{"n": i}, nil)
	}

	observer := newCaptureObserver()
	db.AttachObserver(observer)
	db.ScanPendingPings()

	if len(observer.ids) != pings.MaxPendingPings {
		t.Fatalf("scan delivered %d pings, want %d", len(observer.ids), pings.MaxPendingPings)
	}
	// The oldest pings past the quota are gone, newest survive oldest-first.
	if observer.ids[0] != "ping-010" {
		t.Fatalf("first delivered = %s, want ping-010", observer.ids[0])
	}
	if last := observer.ids[len(observer.ids)-1]; last != fmt.Sprintf("ping-%03d", total-1) {
		t.Fatalf("last delivered = %s", last)
	}

	// Quota enforcement deleted the surplus for good.
	rescan := newCaptureObserver()
	db.AttachObserver(rescan)
	db.ScanPendingPings()
	for _, id := range rescan.ids {
		if id < "ping-010" {
			t.Fatalf("deleted ping %s reappeared", id)
		}
	}
}

func TestDatabase_ScanExemptsDeletionRequests(t *testing.T) {
	ctx, db := newTestContext(t)
	base := time.Date(2021, 11, 25, 8, 0, 0, 0, time.UTC)
	now := base
	ctx.SetClock(func() time.Time { return now }, nil)

	// The deletion-request is the oldest entry in an over-quota queue.
	deletionPath := "/submit/test-app/" + types.DeletionRequestPingName + "/1/doc"
	db.RecordPing(deletionPath, "deletion-ping", map[string]any{}, nil)
	for i := 0; i < pings.MaxPendingPings+10; i++ {
		now = base.Add(time.Duration(i+1) * time.Second)
		db.RecordPing("/submit/test-app/prototype/1/doc", fmt.Sprintf("ping-%03d", i), map[string]any{"n": i}, nil)
	}

	observer := newCaptureObserver()
	db.AttachObserver(observer)
	db.ScanPendingPings()

	if len(observer.ids) != pings.MaxPendingPings+1 {
		t.Fatalf("scan delivered %d pings, want %d", len(observer.ids), pings.MaxPendingPings+1)
	}
	if observer.ids[0] != "deletion-ping" {
		t.Fatalf("first delivered = %s, want the deletion-request", observer.ids[0])
	}
}
