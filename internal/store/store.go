// Package store implements the artifact store: a typed key->value
// filesystem cache, one JSON file per key under <db_path>/<collection>/<key>,
// with a change-notification feed per collection. Writes are atomic via a
// temp-file rename; durability is best-effort.
package store

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	jsoncodec "github.com/goccy/go-json"
	"github.com/patrickmn/go-cache"

	"github.com/hanssonlabs/puckline/internal/telemetry"
)

// ChangeEvent is published on a collection's change feed after a successful write.
type ChangeEvent struct {
	Key   string
	Value []byte // raw serialized form, for zero-copy fanout
}

// Store is a typed key-value filesystem cache. All methods are safe for
// concurrent use; an internal mutex per collection guards the file writes
// (file content itself is still last-writer-wins at the OS level across
// processes).
type Store struct {
	root string

	mu          sync.Mutex
	collections map[string]*collection
	fastCache   *cache.Cache
}

type collection struct {
	mu       sync.Mutex
	watchers []chan ChangeEvent
}

// New opens (creating if absent) a filesystem-backed artifact store rooted at dbPath.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(dbPath, 0o755); err != nil {
		return nil, err
	}
	return &Store{
		root:        dbPath,
		collections: make(map[string]*collection),
		fastCache:   cache.New(30*time.Second, time.Minute),
	}, nil
}

func (s *Store) collectionFor(name string) *collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &collection{}
		s.collections[name] = c
	}
	return c
}

func (s *Store) path(collectionName, key string) string {
	return filepath.Join(s.root, collectionName, key+".json")
}

func (s *Store) fastKey(collectionName, key string) string { return collectionName + "/" + key }

// ReadRaw returns the serialized bytes for a key without re-encoding, or
// (nil, false) if absent. Failure reading a single key is never fatal: it
// is logged and treated as absent.
func (s *Store) ReadRaw(collectionName, key string) ([]byte, bool) {
	if v, ok := s.fastCache.Get(s.fastKey(collectionName, key)); ok {
		return v.([]byte), true
	}
	data, err := os.ReadFile(s.path(collectionName, key))
	if err != nil {
		if !os.IsNotExist(err) {
			telemetry.Warnf("store: read %s/%s: %v", collectionName, key, err)
		}
		return nil, false
	}
	s.fastCache.SetDefault(s.fastKey(collectionName, key), data)
	return data, true
}

// Read deserializes the value stored at key into dst (a pointer), returning
// false if the key is absent or unreadable.
func (s *Store) Read(collectionName, key string, dst any) bool {
	data, ok := s.ReadRaw(collectionName, key)
	if !ok {
		return false
	}
	if err := jsoncodec.Unmarshal(data, dst); err != nil {
		telemetry.Warnf("store: decode %s/%s: %v", collectionName, key, err)
		return false
	}
	return true
}

// Write atomically serializes value and replaces the file at key, then
// publishes the change to the collection's subscribers. Write errors are
// logged but never returned: persistence is best-effort.
func (s *Store) Write(collectionName, key string, value any) {
	data, err := jsoncodec.Marshal(value)
	if err != nil {
		telemetry.Warnf("store: encode %s/%s: %v", collectionName, key, err)
		return
	}
	s.WriteRaw(collectionName, key, data)
}

// WriteRaw stores pre-serialized bytes, for callers that already hold a wire form.
func (s *Store) WriteRaw(collectionName, key string, data []byte) {
	c := s.collectionFor(collectionName)
	c.mu.Lock()
	defer c.mu.Unlock()

	dir := filepath.Join(s.root, collectionName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		telemetry.Metrics.StoreWriteErrors.Inc()
		telemetry.Warnf("store: mkdir %s: %v", dir, err)
		return
	}

	target := s.path(collectionName, key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		telemetry.Metrics.StoreWriteErrors.Inc()
		telemetry.Warnf("store: write %s/%s: %v", collectionName, key, err)
		return
	}
	if err := os.Rename(tmp, target); err != nil {
		telemetry.Metrics.StoreWriteErrors.Inc()
		telemetry.Warnf("store: rename %s/%s: %v", collectionName, key, err)
		return
	}

	s.fastCache.SetDefault(s.fastKey(collectionName, key), data)
	telemetry.Metrics.StoreWrites.Inc()
	telemetry.Debugf("store: wrote %s/%s (%s)", collectionName, key, humanize.Bytes(uint64(len(data))))

	s.publish(c, collectionName, key, data)
}

func (s *Store) publish(c *collection, collectionName, key string, data []byte) {
	for _, ch := range c.watchers {
		select {
		case ch <- ChangeEvent{Key: key, Value: data}:
		default:
			telemetry.Warnf("store: change feed full, dropping notification for %s/%s", collectionName, key)
		}
	}
}

// Watch returns a channel receiving every successful write to a collection
// from this point forward. The channel is buffered; a slow reader misses
// interim writes rather than blocking producers.
func (s *Store) Watch(collectionName string) <-chan ChangeEvent {
	c := s.collectionFor(collectionName)
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan ChangeEvent, 64)
	c.watchers = append(c.watchers, ch)
	return ch
}

// IsStale reports whether key is missing, or its mtime is older than maxAge.
// A nil maxAge with the file present means "never stale".
func (s *Store) IsStale(collectionName, key string, maxAge *time.Duration) bool {
	info, err := os.Stat(s.path(collectionName, key))
	if err != nil {
		return true
	}
	if maxAge == nil {
		return false
	}
	return time.Since(info.ModTime()) > *maxAge
}

// ReadAll walks a collection directory, decoding every entry via decode.
// Per-entry decode failures are logged and skipped, not fatal.
func (s *Store) ReadAll(collectionName string, decode func(key string, data []byte)) {
	dir := filepath.Join(s.root, collectionName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			telemetry.Warnf("store: read_all %s: %v", collectionName, err)
		}
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		key := name[:len(name)-len(filepath.Ext(name))]
		data, ok := s.ReadRaw(collectionName, key)
		if !ok {
			continue
		}
		decode(key, data)
	}
}
