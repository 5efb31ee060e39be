package cache

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gantryci/gantry/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var bucketEntries = []byte("cache_entries")

// Entry is one stored cache record
type Entry struct {
	Key     string    `json:"key"`
	Payload []byte    `json:"payload"`
	SavedAt time.Time `json:"saved_at"`
}

// BoltCache implements the build-layer cache store on BoltDB. Writes are
// published atomically by the bolt transaction; a reader never observes a
// partially-written payload.
type BoltCache struct {
	db        *bolt.DB
	retention time.Duration

	// now is replaceable for retention tests
	now func() time.Time
}

// NewBoltCache opens (or creates) the cache database under dataDir
func NewBoltCache(dataDir string, retention time.Duration) (*BoltCache, error) {
	dbPath := filepath.Join(dataDir, "cache.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEntries)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	return &BoltCache{db: db, retention: retention, now: time.Now}, nil
}

// Close closes the database
func (c *BoltCache) Close() error {
	return c.db.Close()
}

// Restore looks up a cache entry. The exact key is tried first; on miss,
// the caller-supplied prefixes are scanned in priority order and the first
// prefix that matches any live entry wins. Expired entries are misses.
func (c *BoltCache) Restore(key types.CacheKey, restoreKeys []string) (payload []byte, matchedKey string, hit bool, err error) {
	cutoff := c.now().Add(-c.retention)

	err = c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEntries)

		if entry, ok := c.liveEntry(b.Get([]byte(key.String())), cutoff); ok {
			payload = copyBytes(entry.Payload)
			matchedKey = entry.Key
			hit = true
			return nil
		}

		cur := b.Cursor()
		for _, prefix := range restoreKeys {
			p := []byte(prefix)
			for k, v := cur.Seek(p); k != nil && strings.HasPrefix(string(k), prefix); k, v = cur.Next() {
				if entry, ok := c.liveEntry(v, cutoff); ok {
					payload = copyBytes(entry.Payload)
					matchedKey = entry.Key
					hit = true
					return nil
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, "", false, fmt.Errorf("cache restore failed: %w", err)
	}
	return payload, matchedKey, hit, nil
}

// Save writes payload under the run's own exact key. A restore-key match is
// never written back in place, so one generation cannot overwrite the base
// its siblings still restore from.
func (c *BoltCache) Save(key types.CacheKey, payload []byte) error {
	entry := Entry{
		Key:     key.String(),
		Payload: payload,
		SavedAt: c.now(),
	}

	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put([]byte(entry.Key), data)
	})
	if err != nil {
		return fmt.Errorf("cache save failed: %w", err)
	}
	return nil
}

// Prune deletes expired entries and returns how many were removed
func (c *BoltCache) Prune() (int, error) {
	cutoff := c.now().Add(-c.retention)
	removed := 0

	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		cur := b.Cursor()
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			if _, ok := c.liveEntry(v, cutoff); !ok {
				if err := cur.Delete(); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("cache prune failed: %w", err)
	}
	return removed, nil
}

// liveEntry decodes raw and reports whether it is present and unexpired
func (c *BoltCache) liveEntry(raw []byte, cutoff time.Time) (Entry, bool) {
	if raw == nil {
		return Entry{}, false
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, false
	}
	if entry.SavedAt.Before(cutoff) {
		return Entry{}, false
	}
	return entry, true
}

// copyBytes copies tx-scoped bytes out of the transaction
func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
