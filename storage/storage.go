// Package storage defines the key-value tree persistence used by every
// database in the SDK, plus the built-in backends (memory, file, redis).
//
// A Store holds one named tree of string-keyed nested objects. Leaves are
// JSON-like values: booleans, integers, strings, lists and objects. Index
// paths address positions in the tree, e.g. ["metrics", "counter",
// "ui.clicks"].
package storage

import (
	"errors"
	"fmt"
)

// ErrEmptyIndex is returned by Update when called without an index. Updating
// the tree root would bypass the per-leaf transform contract.
var ErrEmptyIndex = errors.New("storage: update requires a non-empty index")

// Store is the persistence contract. Implementations must tolerate
// concurrent use from the dispatcher goroutine and test goroutines.
type Store interface {
	// Get returns the value at index, or nil when nothing is recorded
	// there. An empty index returns the whole tree.
	Get(index ...string) (any, error)

	// Update applies transform to the value at index (nil when absent) and
	// stores the result. Missing intermediate levels are created;
	// non-object intermediates are overwritten.
	Update(index []string, transform func(old any) any) error

	// Delete removes the value at index. Deleting a missing entry is a
	// no-op. An empty index clears the whole tree.
	Delete(index ...string) error
}

// Factory opens the named store. The platform decides the backend.
type Factory func(name string) (Store, error)

// Lookup walks the tree along index. An empty index returns the whole tree
// (nil when empty). Backends that materialize the tree in memory share this
// so index semantics stay identical across them.
func Lookup(tree map[string]any, index []string) any {
	if len(index) == 0 {
		if len(tree) == 0 {
			return nil
		}
		return tree
	}
	return getNested(tree, index)
}

// Apply applies transform at index, creating intermediate objects as needed.
func Apply(tree map[string]any, index []string, transform func(old any) any) error {
	return updateNested(tree, index, transform)
}

// Remove deletes the entry at index. Missing entries are ignored.
func Remove(tree map[string]any, index []string) {
	deleteNested(tree, index)
}

// getNested walks the tree along index. Returns nil when any level is
// missing or not an object.
func getNested(tree map[string]any, index []string) any {
	var cur any = tree
	for _, key := range index {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = obj[key]
		if !ok {
			return nil
		}
	}
	return cur
}

// updateNested applies transform at index, creating intermediate objects as
// needed.
func updateNested(tree map[string]any, index []string, transform func(old any) any) error {
	if len(index) == 0 {
		return ErrEmptyIndex
	}
	cursor := tree
	for _, key := range index[:len(index)-1] {
		next, ok := cursor[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cursor[key] = next
		}
		cursor = next
	}
	last := index[len(index)-1]
	cursor[last] = transform(cursor[last])
	return nil
}

// deleteNested removes the entry at index. Missing entries are ignored.
func deleteNested(tree map[string]any, index []string) {
	cursor := tree
	for _, key := range index[:len(index)-1] {
		next, ok := cursor[key].(map[string]any)
		if !ok {
			return
		}
		cursor = next
	}
	delete(cursor, index[len(index)-1])
}

// deepCopy clones a JSON-like value so callers cannot mutate stored state.
func deepCopy(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = deepCopy(item)
		}
		return out
	case []string:
		out := make([]string, len(x))
		copy(out, x)
		return out
	default:
		return x
	}
}

// StoreError annotates a backend failure with the operation and index.
type StoreError struct {
	Op    string
	Index []string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("storage %s %v: %v", e.Op, e.Index, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
