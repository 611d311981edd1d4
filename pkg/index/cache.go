package index

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

var termsBucket = []byte("terms")

// Cache persists the index between runs in a bbolt file, one key per term
// with a JSON posting list.
type Cache struct {
	db *bbolt.DB
}

// OpenCache opens (creating if needed) the cache file at path.
func OpenCache(path string) (*Cache, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open index cache: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(termsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init index cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Restore loads all cached terms into the index.
func (c *Cache) Restore(x *Index) error {
	terms := make(map[string][]string)
	err := c.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(termsBucket).ForEach(func(k, v []byte) error {
			var paths []string
			if err := json.Unmarshal(v, &paths); err != nil {
				return fmt.Errorf("corrupted posting list for %q: %w", k, err)
			}
			terms[string(k)] = paths
			return nil
		})
	})
	if err != nil {
		return err
	}
	x.Load(terms)
	return nil
}

// Persist writes the current index contents into the cache, replacing what
// was stored before.
func (c *Cache) Persist(x *Index) error {
	snap := x.Snapshot()
	return c.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(termsBucket); err != nil {
			return err
		}
		b, err := tx.CreateBucket(termsBucket)
		if err != nil {
			return err
		}
		for term, paths := range snap {
			data, err := json.Marshal(paths)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(term), data); err != nil {
				return err
			}
		}
		return nil
	})
}
