package storage

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pellucid-io/beacon/log"
)

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.db")

	s, err := NewFileStore(path, log.NewNop())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := s.Update([]string{"ping", "string", "app.channel"}, func(any) any { return "nightly" }); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := s.Update([]string{"ping", "counter", "app.starts"}, func(any) any { return int64(3) }); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	reopened, err := NewFileStore(path, log.NewNop())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	v, err := reopened.Get("ping", "string", "app.channel")
	if err != nil || v != "nightly" {
		t.Fatalf("Get after reopen = %v, %v", v, err)
	}
	count, _ := reopened.Get("ping", "counter", "app.starts")
	got, _ := count.(int64)
	if got != 3 {
		t.Fatalf("counter after reopen = %v, want 3", count)
	}
}

func TestFileStore_DeletePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pings.db")

	s, err := NewFileStore(path, log.NewNop())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	_ = s.Update([]string{"doc-1"}, func(any) any { return map[string]any{"path": "/submit"} })
	if err := s.Delete("doc-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	reopened, err := NewFileStore(path, log.NewNop())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if v, _ := reopened.Get("doc-1"); v != nil {
		t.Fatalf("deleted entry survived reopen: %v", v)
	}
}

func TestFileStore_CorruptSnapshotStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	if err := os.WriteFile(path, []byte("not msgpack at all"), 0o600); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	s, err := NewFileStore(path, log.NewNop())
	if err != nil {
		t.Fatalf("NewFileStore failed on corrupt snapshot: %v", err)
	}
	if v, _ := s.Get(); v != nil {
		t.Fatalf("corrupt snapshot produced data: %v", v)
	}
}

func TestFileFactory_OneFilePerStore(t *testing.T) {
	dir := t.TempDir()
	open := FileFactory(dir, log.NewNop())

	a, err := open("userLifetimeMetrics")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	b, err := open("pings")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	_ = a.Update([]string{"k"}, func(any) any { return "user" })
	_ = b.Update([]string{"k"}, func(any) any { return "pings" })

	for _, name := range []string{"userLifetimeMetrics.db", "pings.db"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("snapshot %s missing: %v", name, err)
		}
	}

	va, _ := a.Get("k")
	vb, _ := b.Get("k")
	if !reflect.DeepEqual([]any{va, vb}, []any{"user", "pings"}) {
		t.Fatalf("stores bled into each other: %v, %v", va, vb)
	}
}
