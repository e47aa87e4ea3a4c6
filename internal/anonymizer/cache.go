// Package anonymizer — cache.go
//
// DetectionCache stores classifier results keyed by a content hash of
// the classified text, so re-ingesting a document (or re-running a
// chunk) never repeats a model call. Entries survive process restarts
// when the bbolt implementation is used.
//
// Two implementations:
//   - memoryCache — in-memory only, used in tests and when no path is
//     configured.
//   - bboltCache  — embedded key-value store (bbolt), used in production,
//     usually wrapped by the S3-FIFO layer to bound on-disk size.
//
// The interface is intentionally minimal: the classifier writes one
// entry per classified text and reads per-text lookups. Iteration and
// batch operations are not needed.
package anonymizer

import (
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// DetectionCache is the cross-session classifier result cache.
// All implementations must be safe for concurrent use.
type DetectionCache interface {
	// Get returns the cached serialized detections for a content hash.
	Get(key string) (detections string, ok bool)

	// Set stores key → detections. Overwrites any existing entry.
	Set(key, detections string)

	// Delete removes the entry for key, if present.
	Delete(key string)

	// Close releases any resources held by the cache (file handles).
	Close() error
}

// --- memoryCache ---------------------------------------------------------

// memoryCache is a thread-safe in-memory DetectionCache.
type memoryCache struct {
	mu    sync.RWMutex
	store map[string]string
}

// NewMemoryCache returns an in-memory DetectionCache suitable for tests
// and for deployments without a configured cache path.
func NewMemoryCache() DetectionCache {
	return &memoryCache{store: make(map[string]string)}
}

func (c *memoryCache) Get(key string) (string, bool) {
	c.mu.RLock()
	v, ok := c.store[key]
	c.mu.RUnlock()
	return v, ok
}

func (c *memoryCache) Set(key, detections string) {
	c.mu.Lock()
	c.store[key] = detections
	c.mu.Unlock()
}

func (c *memoryCache) Delete(key string) {
	c.mu.Lock()
	delete(c.store, key)
	c.mu.Unlock()
}

func (c *memoryCache) Close() error { return nil }

// --- bboltCache ----------------------------------------------------------

const bboltBucket = "entity_detections"

// bboltCache is a DetectionCache backed by an embedded bbolt database.
// The database file is created at the given path if it does not exist.
type bboltCache struct {
	db     *bolt.DB
	logger *zap.Logger
}

// NewBboltCache opens (or creates) the bbolt database at path and
// ensures the bucket exists.
func NewBboltCache(path string, logger *zap.Logger) (DetectionCache, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open detection cache %q: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bboltBucket))
		return err
	}); err != nil {
		db.Close() //nolint:errcheck // best-effort close on init failure
		return nil, fmt.Errorf("create detection cache bucket: %w", err)
	}

	logger.Info("detection cache opened", zap.String("path", path))
	return &bboltCache{db: db, logger: logger}, nil
}

func (c *bboltCache) Get(key string) (string, bool) {
	var detections string
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bboltBucket))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			detections = string(v)
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("detection cache read failed", zap.Error(err))
		return "", false
	}
	return detections, detections != ""
}

func (c *bboltCache) Set(key, detections string) {
	if err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bboltBucket))
		if b == nil {
			return fmt.Errorf("bucket %q not found", bboltBucket)
		}
		return b.Put([]byte(key), []byte(detections))
	}); err != nil {
		c.logger.Warn("detection cache write failed", zap.Error(err))
	}
}

func (c *bboltCache) Delete(key string) {
	if err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bboltBucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	}); err != nil {
		c.logger.Warn("detection cache delete failed", zap.Error(err))
	}
}

func (c *bboltCache) Close() error {
	return c.db.Close()
}
