// Package cache persists vision results keyed by content, so that
// re-running the organizer over the same photos costs zero API calls.
// Detection entries are keyed by (SHA-256 of the original file bytes,
// prompt kind): renames and moves hit the cache, re-encodes miss it, and a
// prompt revision bumps the kind rather than poisoning old entries.
// Comparison entries are keyed the same way over a digest of the two
// descriptions being compared.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/smegmarip/photo-organizer/internal/vision"
)

// ============================================================================
// Analysis Cache
// ============================================================================

// FileName is the cache file, kept in the working directory so it is shared
// across runs and output directories.
const FileName = ".outfit_detection_cache.json"

// schemaVersion is written on every flush. Readers ignore keys they do not
// understand, so additive changes do not need a bump.
const schemaVersion = 1

// flushEvery is how many puts may accumulate before an automatic flush.
const flushEvery = 5

// Prompt kinds. Each kind is an independent cache namespace per key. The
// describe and detect kinds are keyed by image content hash; the compare
// kind is keyed by PairKey over the two descriptions, which makes warm-cache
// re-runs free of vision calls entirely.
const (
	KindDescribe = "describe_face"
	KindDetect   = "detect_subjects"
	KindCompare  = "compare_descriptions"
)

// cacheFile is the on-disk shape.
type cacheFile struct {
	Version int                                   `json:"version"`
	Entries map[string]map[string]json.RawMessage `json:"entries"`
}

// Stats reports cache effectiveness for the end-of-run summary.
type Stats struct {
	Entries int
	Hits    int
	Misses  int
}

// Cache is a single-writer in-memory cache with periodic on-disk flushes.
// Safe for concurrent readers; flushes replace the file atomically so a
// crash mid-write never corrupts it.
type Cache struct {
	fs   afero.Fs
	path string

	mu      sync.RWMutex
	entries map[string]map[string]json.RawMessage
	dirty   int
	hits    int
	misses  int
}

// Load opens the cache at path, returning an empty cache when the file does
// not exist. A corrupt or unreadable file is an error: silently starting
// empty would re-spend the API budget the cache exists to protect.
func Load(fs afero.Fs, path string) (*Cache, error) {
	c := &Cache{
		fs:      fs,
		path:    path,
		entries: make(map[string]map[string]json.RawMessage),
	}

	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("failed to read cache %q: %w", path, err)
	}

	var file cacheFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse cache %q: %w", path, err)
	}
	if file.Entries != nil {
		c.entries = file.Entries
	}
	log.Debugf("loaded analysis cache with %d entries from %s", len(c.entries), path)
	return c, nil
}

// Get returns the raw cached payload for (hash, kind).
func (c *Cache) Get(hash, kind string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kinds, ok := c.entries[hash]
	if !ok {
		c.misses++
		return nil, false
	}
	payload, ok := kinds[kind]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	return payload, true
}

// Put stores a payload under (hash, kind), flushing when enough writes have
// accumulated. Flush failures are logged, not returned: a broken disk must
// not abort an analysis run that can still finish in memory.
func (c *Cache) Put(hash, kind string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	c.mu.Lock()
	kinds, ok := c.entries[hash]
	if !ok {
		kinds = make(map[string]json.RawMessage)
		c.entries[hash] = kinds
	}
	kinds[kind] = raw
	c.dirty++
	needsFlush := c.dirty >= flushEvery
	c.mu.Unlock()

	if needsFlush {
		if err := c.Flush(); err != nil {
			log.Warnf("failed to flush analysis cache: %v", err)
		}
	}
	return nil
}

// Detections returns the cached subject detections for an image hash.
func (c *Cache) Detections(hash string) ([]vision.SubjectDetection, bool) {
	raw, ok := c.Get(hash, KindDetect)
	if !ok {
		return nil, false
	}
	var detections []vision.SubjectDetection
	if err := json.Unmarshal(raw, &detections); err != nil {
		log.Warnf("discarding unreadable %s cache entry for %s: %v", KindDetect, hash, err)
		return nil, false
	}
	return detections, true
}

// PutDetections stores subject detections for an image hash.
func (c *Cache) PutDetections(hash string, detections []vision.SubjectDetection) error {
	return c.Put(hash, KindDetect, detections)
}

// Description returns the cached single-subject description for an image
// hash.
func (c *Cache) Description(hash string) (string, bool) {
	raw, ok := c.Get(hash, KindDescribe)
	if !ok {
		return "", false
	}
	var description string
	if err := json.Unmarshal(raw, &description); err != nil {
		log.Warnf("discarding unreadable %s cache entry for %s: %v", KindDescribe, hash, err)
		return "", false
	}
	return description, true
}

// PutDescription stores a single-subject description for an image hash.
func (c *Cache) PutDescription(hash, description string) error {
	return c.Put(hash, KindDescribe, description)
}

// PairKey derives the cache key for an ordered pair of descriptions. The
// pair is ordered because the comparison prompt is: compare(a, b) and
// compare(b, a) are distinct calls.
func PairKey(description1, description2 string) string {
	h := sha256.New()
	h.Write([]byte(description1))
	h.Write([]byte{0})
	h.Write([]byte(description2))
	return hex.EncodeToString(h.Sum(nil))
}

// Comparison returns the cached similarity result for a description pair
// key.
func (c *Cache) Comparison(pairKey string) (vision.Comparison, bool) {
	raw, ok := c.Get(pairKey, KindCompare)
	if !ok {
		return vision.Comparison{}, false
	}
	var comparison vision.Comparison
	if err := json.Unmarshal(raw, &comparison); err != nil {
		log.Warnf("discarding unreadable %s cache entry for %s: %v", KindCompare, pairKey, err)
		return vision.Comparison{}, false
	}
	return comparison, true
}

// PutComparison stores a similarity result for a description pair key.
func (c *Cache) PutComparison(pairKey string, comparison vision.Comparison) error {
	return c.Put(pairKey, KindCompare, comparison)
}

// Flush writes the cache to disk via a temp file and rename, so readers
// never observe a partial file.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dirty == 0 {
		return nil
	}

	raw, err := json.MarshalIndent(cacheFile{Version: schemaVersion, Entries: c.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := c.fs.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := afero.WriteFile(c.fs, tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := c.fs.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("failed to replace cache: %w", err)
	}

	log.Debugf("flushed analysis cache (%d entries) to %s", len(c.entries), c.path)
	c.dirty = 0
	return nil
}

// Len returns the number of images with at least one cached result.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of cache effectiveness counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}
