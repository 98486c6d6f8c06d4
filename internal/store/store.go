// Package store implements the chain-template catalog and execution
// history (§4 domain stack): a bbolt-backed key/value store that persists
// named chain templates (the template files described in spec.md §6) and
// the outcome of every chain run, with an in-memory read cache.
//
// Grounded on the teacher's persistence.go (WorkflowStore): bucket-per-
// concern layout, a warm-started memory cache for templates, and a
// time-ordered secondary index for listing a chain's execution history.
// "Durable storage" here is explicitly not the "durable task queue" the
// spec's Non-goals exclude — this package never dequeues work, it only
// records what a chain kind's template looked like and what happened the
// last time it ran.
package store

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketTemplates  = []byte("templates")
	bucketExecutions = []byte("executions")
	bucketIndexes    = []byte("executions_by_chain")
)

// Template is a named, persisted chain template: the parsed top-level
// mapping described in spec.md §6, keyed by its Name (the chain's
// configured name).
type Template struct {
	Name     string         `json:"name"`
	Kind     string         `json:"kind"`
	Document map[string]any `json:"document"`
}

// Execution records one completed chain run, keyed by the chain's id.
// Fields mirror Chain.Snapshot()/Chain.Result() so a caller can persist
// both without re-deriving a separate schema.
type Execution struct {
	ChainID   string         `json:"chain_id"`
	ChainName string         `json:"chain_name"`
	Status    string         `json:"status"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
	Result    map[string]any `json:"result"`
}

// Store is a bbolt-backed catalog of chain templates plus their execution
// history. Safe for concurrent use.
type Store struct {
	db *bbolt.DB

	mu            sync.RWMutex
	templateCache map[string]Template
}

// Open creates/opens the bbolt file at path and warms the template cache.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketTemplates, bucketExecutions, bucketIndexes} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create buckets: %w", err)
	}

	s := &Store{db: db, templateCache: map[string]Template{}}
	if err := s.warmTemplateCache(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) warmTemplateCache() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketTemplates)
		return bucket.ForEach(func(k, v []byte) error {
			var tmpl Template
			if err := json.Unmarshal(v, &tmpl); err != nil {
				return nil
			}
			s.mu.Lock()
			s.templateCache[tmpl.Name] = tmpl
			s.mu.Unlock()
			return nil
		})
	})
}

// PutTemplate persists tmpl under its Name, replacing any prior version.
func (s *Store) PutTemplate(tmpl Template) error {
	data, err := json.Marshal(tmpl)
	if err != nil {
		return fmt.Errorf("store: marshal template %q: %w", tmpl.Name, err)
	}

	if err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTemplates).Put([]byte(tmpl.Name), data)
	}); err != nil {
		return fmt.Errorf("store: write template %q: %w", tmpl.Name, err)
	}

	s.mu.Lock()
	s.templateCache[tmpl.Name] = tmpl
	s.mu.Unlock()
	return nil
}

// GetTemplate returns the template registered under name, from the memory
// cache, and whether it was found.
func (s *Store) GetTemplate(name string) (Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tmpl, ok := s.templateCache[name]
	return tmpl, ok
}

// ListTemplates returns every registered template.
func (s *Store) ListTemplates() []Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Template, 0, len(s.templateCache))
	for _, tmpl := range s.templateCache {
		out = append(out, tmpl)
	}
	return out
}

// DeleteTemplate removes the template registered under name.
func (s *Store) DeleteTemplate(name string) error {
	if err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTemplates).Delete([]byte(name))
	}); err != nil {
		return fmt.Errorf("store: delete template %q: %w", name, err)
	}

	s.mu.Lock()
	delete(s.templateCache, name)
	s.mu.Unlock()
	return nil
}

// PutExecution records a completed chain run and indexes it by chain name
// and start time, for time-ordered ListExecutions queries.
func (s *Store) PutExecution(exec Execution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("store: marshal execution %q: %w", exec.ChainID, err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketExecutions).Put([]byte(exec.ChainID), data); err != nil {
			return err
		}
		indexKey := fmt.Sprintf("%s:%d:%s", exec.ChainName, exec.StartTime.UnixNano(), exec.ChainID)
		return tx.Bucket(bucketIndexes).Put([]byte(indexKey), []byte(exec.ChainID))
	})
}

// GetExecution retrieves one execution record by chain id.
func (s *Store) GetExecution(chainID string) (Execution, bool, error) {
	var exec Execution
	var found bool

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketExecutions).Get([]byte(chainID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &exec)
	})

	return exec, found, err
}

// ListExecutions returns up to limit executions for chainName, oldest
// matching entry first, mirroring the teacher's cursor-seek-by-prefix
// pattern over a ":"-delimited composite index key.
func (s *Store) ListExecutions(chainName string, limit int) ([]Execution, error) {
	out := make([]Execution, 0, limit)

	err := s.db.View(func(tx *bbolt.Tx) error {
		indexBucket := tx.Bucket(bucketIndexes)
		execBucket := tx.Bucket(bucketExecutions)

		prefix := []byte(chainName + ":")
		cursor := indexBucket.Cursor()

		for k, v := cursor.Seek(prefix); k != nil && len(out) < limit; k, v = cursor.Next() {
			if !hasPrefix(k, prefix) {
				break
			}

			data := execBucket.Get(v)
			if data == nil {
				continue
			}

			var exec Execution
			if err := json.Unmarshal(data, &exec); err != nil {
				continue
			}
			out = append(out, exec)
		}

		return nil
	})

	return out, err
}

// PutBytes writes value under key in bucket, creating bucket if it does
// not yet exist. Used by internal/schedule to persist its own small config
// records without this package needing to know their shapes.
func (s *Store) PutBytes(bucket, key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), value)
	})
}

// GetBytes reads the value stored under key in bucket.
func (s *Store) GetBytes(bucket, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	return value, value != nil, err
}

// DeleteBytes removes key from bucket.
func (s *Store) DeleteBytes(bucket, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// ForEachBytes iterates every key/value pair in bucket. A missing bucket
// is treated as empty, not an error.
func (s *Store) ForEachBytes(bucket string, fn func(key string, value []byte) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			return fn(string(k), v)
		})
	})
}

func hasPrefix(data, prefix []byte) bool {
	if len(data) < len(prefix) {
		return false
	}
	for i := range prefix {
		if data[i] != prefix[i] {
			return false
		}
	}
	return true
}
