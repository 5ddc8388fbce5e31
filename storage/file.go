package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pellucid-io/beacon/iox"
	"github.com/pellucid-io/beacon/log"
)

// FileStore persists the tree as a msgpack snapshot, rewritten on every
// mutation. Snapshots are written to a temp file and renamed so a crash
// mid-write leaves the previous snapshot intact.
type FileStore struct {
	mu     sync.Mutex
	path   string
	tree   map[string]any
	logger *log.Logger
}

// Verify FileStore implements Store.
var _ Store = (*FileStore)(nil)

// NewFileStore opens (or creates) the snapshot at path. A corrupt snapshot
// is logged and replaced by an empty tree rather than failing open.
func NewFileStore(path string, logger *log.Logger) (*FileStore, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	s := &FileStore{path: path, tree: make(map[string]any), logger: logger}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}
	if err := msgpack.Unmarshal(data, &s.tree); err != nil {
		logger.Warn("discarding corrupt storage snapshot", map[string]any{
			"path":  path,
			"error": err.Error(),
		})
		s.tree = make(map[string]any)
	}
	return s, nil
}

// Get returns a deep copy of the value at index.
func (s *FileStore) Get(index ...string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(index) == 0 {
		if len(s.tree) == 0 {
			return nil, nil
		}
		return deepCopy(s.tree), nil
	}
	v := getNested(s.tree, index)
	if v == nil {
		return nil, nil
	}
	return deepCopy(v), nil
}

// Update applies transform at index and rewrites the snapshot.
func (s *FileStore) Update(index []string, transform func(old any) any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := updateNested(s.tree, index, transform); err != nil {
		return err
	}
	if err := s.persist(); err != nil {
		return &StoreError{Op: "update", Index: index, Err: err}
	}
	return nil
}

// Delete removes the value at index and rewrites the snapshot.
func (s *FileStore) Delete(index ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(index) == 0 {
		s.tree = make(map[string]any)
	} else {
		deleteNested(s.tree, index)
	}
	if err := s.persist(); err != nil {
		return &StoreError{Op: "delete", Index: index, Err: err}
	}
	return nil
}

// persist writes the snapshot atomically. Caller must hold mu.
func (s *FileStore) persist() error {
	data, err := msgpack.Marshal(s.tree)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		iox.DiscardClose(tmp)
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("swap snapshot: %w", err)
	}
	return nil
}

// FileFactory returns a Factory that opens one snapshot file per store name
// under dir.
func FileFactory(dir string, logger *log.Logger) Factory {
	return func(name string) (Store, error) {
		return NewFileStore(filepath.Join(dir, name+".db"), logger)
	}
}
