package storage

import (
	"reflect"
	"testing"
)

func TestMemoryStore_NestedUpdateAndGet(t *testing.T) {
	s := NewMemoryStore()

	err := s.Update([]string{"metrics", "counter", "ui.clicks"}, func(old any) any {
		if old != nil {
			t.Fatalf("expected empty slot, got %v", old)
		}
		return int64(1)
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	v, err := s.Get("metrics", "counter", "ui.clicks")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != int64(1) {
		t.Fatalf("Get = %v, want 1", v)
	}

	// Intermediate levels were created as objects.
	section, err := s.Get("metrics", "counter")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	want := map[string]any{"ui.clicks": int64(1)}
	if !reflect.DeepEqual(section, want) {
		t.Fatalf("section = %v, want %v", section, want)
	}
}

func TestMemoryStore_GetMissingReturnsNil(t *testing.T) {
	s := NewMemoryStore()
	v, err := s.Get("nothing", "here")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != nil {
		t.Fatalf("Get on missing index = %v, want nil", v)
	}
	whole, err := s.Get()
	if err != nil || whole != nil {
		t.Fatalf("Get() on empty store = %v, %v", whole, err)
	}
}

func TestMemoryStore_UpdateRequiresIndex(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Update(nil, func(any) any { return 1 }); err != ErrEmptyIndex {
		t.Fatalf("Update(nil) = %v, want ErrEmptyIndex", err)
	}
}

func TestMemoryStore_UpdateOverwritesNonObjectIntermediate(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Update([]string{"slot"}, func(any) any { return "scalar" }); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := s.Update([]string{"slot", "nested"}, func(any) any { return true }); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	v, _ := s.Get("slot", "nested")
	if v != true {
		t.Fatalf("Get = %v, want true", v)
	}
}

func TestMemoryStore_DeleteAndClear(t *testing.T) {
	s := NewMemoryStore()
	_ = s.Update([]string{"a", "x"}, func(any) any { return 1 })
	_ = s.Update([]string{"a", "y"}, func(any) any { return 2 })

	if err := s.Delete("a", "x"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if v, _ := s.Get("a", "x"); v != nil {
		t.Fatal("deleted entry still present")
	}
	if v, _ := s.Get("a", "y"); v == nil {
		t.Fatal("sibling entry deleted too")
	}

	// Deleting something missing is fine.
	if err := s.Delete("does", "not", "exist"); err != nil {
		t.Fatalf("Delete on missing index failed: %v", err)
	}

	if err := s.Delete(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if v, _ := s.Get(); v != nil {
		t.Fatal("store not empty after clear")
	}
}

func TestMemoryStore_GetReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	_ = s.Update([]string{"obj"}, func(any) any {
		return map[string]any{"inner": []any{"a", "b"}}
	})

	v, _ := s.Get("obj")
	v.(map[string]any)["inner"] = "mutated"

	again, _ := s.Get("obj")
	inner, ok := again.(map[string]any)["inner"].([]any)
	if !ok || len(inner) != 2 {
		t.Fatalf("stored value was mutated through the Get copy: %v", again)
	}
}
