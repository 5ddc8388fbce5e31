// Package redisstore implements a redis-backed storage.Store.
//
// Each named store lives in a single redis key holding a msgpack snapshot of
// the whole tree. Mutations are read-modify-write under a process-local
// lock: the SDK's dispatcher is the only writer, so no cross-process
// coordination is needed.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pellucid-io/beacon/storage"
)

// DefaultTimeout is the default per-command timeout.
const DefaultTimeout = 5 * time.Second

// DefaultKeyPrefix namespaces the SDK's keys inside a shared redis.
const DefaultKeyPrefix = "beacon"

// Config configures the redis storage backend.
type Config struct {
	// URL is the redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// KeyPrefix namespaces store keys (default: beacon).
	KeyPrefix string
	// Timeout is the per-command timeout (default 5s).
	Timeout time.Duration
}

// Client owns the redis connection and opens stores against it.
type Client struct {
	config Config
	client *goredis.Client
}

// New creates a redis storage client from the given config.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("redisstore requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redisstore: invalid URL: %w", err)
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{config: cfg, client: goredis.NewClient(opts)}, nil
}

// Open returns the named store.
func (c *Client) Open(name string) (storage.Store, error) {
	return &redisStore{
		client:  c.client,
		key:     c.config.KeyPrefix + ":" + name,
		timeout: c.config.Timeout,
	}, nil
}

// Factory returns a storage.Factory backed by this client.
func (c *Client) Factory() storage.Factory {
	return func(name string) (storage.Store, error) { return c.Open(name) }
}

// Close releases the redis connection.
func (c *Client) Close() error { return c.client.Close() }

type redisStore struct {
	mu      sync.Mutex
	client  *goredis.Client
	key     string
	timeout time.Duration
}

// Verify redisStore implements storage.Store.
var _ storage.Store = (*redisStore)(nil)

func (s *redisStore) Get(index ...string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tree, err := s.load()
	if err != nil {
		return nil, &storage.StoreError{Op: "get", Index: index, Err: err}
	}
	return storage.Lookup(tree, index), nil
}

func (s *redisStore) Update(index []string, transform func(old any) any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tree, err := s.load()
	if err != nil {
		return &storage.StoreError{Op: "update", Index: index, Err: err}
	}
	if err := storage.Apply(tree, index, transform); err != nil {
		return err
	}
	if err := s.save(tree); err != nil {
		return &storage.StoreError{Op: "update", Index: index, Err: err}
	}
	return nil
}

func (s *redisStore) Delete(index ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(index) == 0 {
		ctx, cancel := s.opContext()
		defer cancel()
		if err := s.client.Del(ctx, s.key).Err(); err != nil {
			return &storage.StoreError{Op: "delete", Err: err}
		}
		return nil
	}
	tree, err := s.load()
	if err != nil {
		return &storage.StoreError{Op: "delete", Index: index, Err: err}
	}
	storage.Remove(tree, index)
	if err := s.save(tree); err != nil {
		return &storage.StoreError{Op: "delete", Index: index, Err: err}
	}
	return nil
}

// load fetches and decodes the snapshot. Caller must hold mu.
func (s *redisStore) load() (map[string]any, error) {
	ctx, cancel := s.opContext()
	defer cancel()

	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return make(map[string]any), nil
	}
	if err != nil {
		return nil, err
	}
	tree := make(map[string]any)
	if err := msgpack.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return tree, nil
}

// save encodes and writes the snapshot. Caller must hold mu.
func (s *redisStore) save(tree map[string]any) error {
	data, err := msgpack.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	ctx, cancel := s.opContext()
	defer cancel()
	return s.client.Set(ctx, s.key, data, 0).Err()
}

func (s *redisStore) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}
