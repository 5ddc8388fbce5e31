package redisstore_test

import (
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/pellucid-io/beacon/iox"
	"github.com/pellucid-io/beacon/storage/redisstore"
)

func newTestClient(t *testing.T) *redisstore.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redisstore.New(redisstore.Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(iox.CloseFunc(client))
	return client
}

func TestNew_RequiresURL(t *testing.T) {
	if _, err := redisstore.New(redisstore.Config{}); err == nil {
		t.Fatal("New accepted empty URL")
	}
	if _, err := redisstore.New(redisstore.Config{URL: "not a url"}); err == nil {
		t.Fatal("New accepted malformed URL")
	}
}

func TestRedisStore_UpdateGetDelete(t *testing.T) {
	client := newTestClient(t)
	store, err := client.Open("pings")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	err = store.Update([]string{"doc-1", "path"}, func(old any) any {
		if old != nil {
			t.Fatalf("expected empty slot, got %v", old)
		}
		return "/submit/app/prototype/1/doc-1"
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	v, err := store.Get("doc-1", "path")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != "/submit/app/prototype/1/doc-1" {
		t.Fatalf("Get = %v", v)
	}

	if err := store.Delete("doc-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if v, _ := store.Get("doc-1"); v != nil {
		t.Fatalf("deleted entry still present: %v", v)
	}
}

func TestRedisStore_SnapshotSurvivesReopen(t *testing.T) {
	mr := miniredis.RunT(t)
	url := "redis://" + mr.Addr()

	client, err := redisstore.New(redisstore.Config{URL: url})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	store, _ := client.Open("metrics")
	_ = store.Update([]string{"ping", "counter", "app.starts"}, func(any) any { return int64(2) })
	iox.DiscardClose(client)

	client, err = redisstore.New(redisstore.Config{URL: url})
	if err != nil {
		t.Fatalf("reconnect failed: %v", err)
	}
	t.Cleanup(iox.CloseFunc(client))

	store, _ = client.Open("metrics")
	v, err := store.Get("ping", "counter", "app.starts")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	n, _ := v.(int64)
	if n != 2 {
		t.Fatalf("counter after reconnect = %v, want 2", v)
	}
}

func TestRedisStore_StoresAreIsolated(t *testing.T) {
	client := newTestClient(t)
	a, _ := client.Open("events")
	b, _ := client.Open("pings")

	_ = a.Update([]string{"k"}, func(any) any { return "events" })
	_ = b.Update([]string{"k"}, func(any) any { return "pings" })

	va, _ := a.Get("k")
	vb, _ := b.Get("k")
	if va != "events" || vb != "pings" {
		t.Fatalf("stores bled into each other: %v, %v", va, vb)
	}
}

func TestRedisStore_ClearRemovesKey(t *testing.T) {
	client := newTestClient(t)
	store, _ := client.Open("events")
	_ = store.Update([]string{"ping"}, func(any) any { return []any{"e1"} })

	if err := store.Delete(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if v, _ := store.Get(); v != nil {
		t.Fatalf("store not empty after clear: %v", v)
	}
}
