package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fastygo/agritrace/domain"
)

// Store is a FIFO queue of notifications persisted in BoltDB. Keys are the
// bucket's sequence numbers, so cursor order is enqueue order.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

// Open initializes the BoltDB file and ensures the bucket exists.
func Open(path string, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = "ledger_outbox"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:     db,
		bucket: []byte(bucket),
	}, nil
}

// NotifyAppended enqueues the committed event.
func (s *Store) NotifyAppended(_ context.Context, event domain.TrackingEvent, facilityStock float64) error {
	return s.Enqueue(FromEvent(event, facilityStock))
}

// Enqueue appends a notification to the tail of the queue.
func (s *Store) Enqueue(n Notification) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	n.normalize()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		payload, err := json.Marshal(n)
		if err != nil {
			return err
		}
		return b.Put(sequenceKey(seq), payload)
	})
}

// Batch returns up to limit notifications from the head without removing them.
func (s *Store) Batch(limit int) ([]Notification, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 50
	}

	var out []Notification
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil && len(out) < limit; k, v = c.Next() {
			var n Notification
			if err := json.Unmarshal(v, &n); err != nil {
				continue
			}
			n.key = append([]byte(nil), k...)
			out = append(out, n)
		}
		return nil
	})
	return out, err
}

// Remove deletes a notification returned by Batch.
func (s *Store) Remove(n Notification) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if len(n.key) == 0 {
		return s.deleteByID(n.ID)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete(n.key)
	})
}

// Requeue moves a notification to the tail and counts the failed attempt.
func (s *Store) Requeue(n Notification) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if len(n.key) == 0 {
		if err := s.deleteByID(n.ID); err != nil {
			return err
		}
	}
	n.Attempts++
	n.normalize()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if len(n.key) > 0 {
			if err := b.Delete(n.key); err != nil {
				return err
			}
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		payload, err := json.Marshal(n)
		if err != nil {
			return err
		}
		return b.Put(sequenceKey(seq), payload)
	})
}

// Size returns the number of queued notifications.
func (s *Store) Size() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Cleanup removes notifications enqueued before olderThan, along with any
// entry that no longer decodes, and reports how many were dropped.
func (s *Store) Cleanup(olderThan time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var dropped int
	err := s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil; {
			var n Notification
			if err := json.Unmarshal(v, &n); err == nil && !n.EnqueuedAt.Before(olderThan) {
				k, v = c.Next()
				continue
			}
			key := append([]byte(nil), k...)
			if err := c.Delete(); err != nil {
				return err
			}
			dropped++
			k, v = c.Seek(key)
		}
		return nil
	})
	return dropped, err
}

// Close closes the Bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Stats exposes Bolt statistics for monitoring endpoints.
func (s *Store) Stats() bolt.Stats {
	if s == nil || s.db == nil {
		return bolt.Stats{}
	}
	return s.db.Stats()
}

func (s *Store) deleteByID(id string) error {
	if id == "" {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var n Notification
			if err := json.Unmarshal(v, &n); err != nil {
				continue
			}
			if n.ID == id {
				return c.Delete()
			}
		}
		return nil
	})
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
