// Package store provides bbolt-based persistence for the change-management
// pipeline: the change ledger, the snapshot ring, and the pending-confirmation
// map all live in a single embedded database file so that confirm, cancel,
// and revert work across process restarts.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names.
var (
	bucketChanges   = []byte("changes")
	bucketSnapshots = []byte("snapshots")
	bucketPending   = []byte("pending")
	bucketKV        = []byte("kv")
)

// Lookup errors.
var (
	ErrChangeNotFound   = errors.New("change not found")
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrPendingNotFound  = errors.New("no pending operation found")

	// ErrAmbiguousSnapshotID reports a short-id prefix matching more than
	// one stored snapshot.
	ErrAmbiguousSnapshotID = errors.New("ambiguous snapshot id prefix")
)

// Options bounds the ring buffers.
type Options struct {
	MaxChanges   int // change ledger capacity
	MaxSnapshots int // snapshot ring capacity
}

// DefaultOptions returns the recommended capacities.
func DefaultOptions() Options {
	return Options{MaxChanges: 100, MaxSnapshots: 10}
}

// Store represents the bbolt database store.
type Store struct {
	db   *bolt.DB
	opts Options
}

// New opens or creates a bbolt database at the given path.
func New(dbPath string, opts Options) (*Store, error) {
	if opts.MaxChanges <= 0 {
		opts.MaxChanges = DefaultOptions().MaxChanges
	}
	if opts.MaxSnapshots <= 0 {
		opts.MaxSnapshots = DefaultOptions().MaxSnapshots
	}

	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, opts: opts}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// initialize creates all required buckets.
func (s *Store) initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketChanges,
			bucketSnapshots,
			bucketPending,
			bucketKV,
		}
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// seqKey builds a zero-padded key from a bucket sequence number so that
// cursor order matches insertion order.
func seqKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%020d", seq))
}

// evictOldest deletes entries from the front of the bucket until at most
// max remain. Buckets are small (bounded rings), so counting by cursor is
// cheap.
func evictOldest(b *bolt.Bucket, max int) error {
	count := 0
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		count++
	}
	for count > max {
		k, _ := c.First()
		if k == nil {
			break
		}
		if err := b.Delete(k); err != nil {
			return err
		}
		count--
	}
	return nil
}
