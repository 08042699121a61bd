package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/fundwise/steward/internal/models"
	bolt "go.etcd.io/bbolt"
)

// PutPending stores a pending operation keyed by its id.
func (s *Store) PutPending(p *models.PendingOperation) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal pending: %w", err)
		}
		return tx.Bucket(bucketPending).Put([]byte(p.ID), data)
	})
}

// TakePending atomically removes and returns the pending operation with the
// given id. An entry older than ttl is deleted and reported as not found, so
// an expired operation can never be confirmed. The remove happens in the same
// transaction as the lookup, so no operation can be taken twice.
func (s *Store) TakePending(id string, ttl time.Duration) (*models.PendingOperation, error) {
	var taken *models.PendingOperation
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPending)
		v := b.Get([]byte(id))
		if v == nil {
			return ErrPendingNotFound
		}

		var p models.PendingOperation
		if err := json.Unmarshal(v, &p); err != nil {
			return fmt.Errorf("unmarshal pending: %w", err)
		}
		if err := b.Delete([]byte(id)); err != nil {
			return err
		}
		if p.Expired(ttl, time.Now()) {
			return ErrPendingNotFound
		}
		taken = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return taken, nil
}

// LivePending returns the unexpired pending operations ordered oldest first,
// deleting any expired entries it encounters along the way.
func (s *Store) LivePending(ttl time.Duration) ([]*models.PendingOperation, error) {
	var out []*models.PendingOperation
	now := time.Now()
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPending)
		var expired [][]byte

		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var p models.PendingOperation
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("unmarshal pending: %w", err)
			}
			if p.Expired(ttl, now) {
				key := make([]byte, len(k))
				copy(key, k)
				expired = append(expired, key)
				continue
			}
			out = append(out, &p)
		}

		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
