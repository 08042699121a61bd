package store

import (
	"encoding/json"
	"fmt"

	"github.com/fundwise/steward/internal/models"
	bolt "go.etcd.io/bbolt"
)

// AppendChange appends a change record to the ledger, evicting the oldest
// entries once the configured capacity is exceeded. The record's Seq is
// assigned here.
func (s *Store) AppendChange(rec *models.ChangeRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChanges)

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		rec.Seq = seq

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal change: %w", err)
		}
		if err := b.Put(seqKey(seq), data); err != nil {
			return err
		}

		return evictOldest(b, s.opts.MaxChanges)
	})
}

// RecentChanges returns up to n change records, newest first.
func (s *Store) RecentChanges(n int) ([]*models.ChangeRecord, error) {
	var out []*models.ChangeRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketChanges).Cursor()
		for k, v := c.Last(); k != nil && (n <= 0 || len(out) < n); k, v = c.Prev() {
			var rec models.ChangeRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal change: %w", err)
			}
			out = append(out, &rec)
		}
		return nil
	})
	return out, err
}

// RevertableChanges returns the changes that can still be reverted, newest first.
func (s *Store) RevertableChanges() ([]*models.ChangeRecord, error) {
	all, err := s.RecentChanges(0)
	if err != nil {
		return nil, err
	}
	var out []*models.ChangeRecord
	for _, rec := range all {
		if rec.CanRevert {
			out = append(out, rec)
		}
	}
	return out, nil
}

// CriticalChanges returns the entries whose kind is destructive at scale or
// whose affected-record count exceeds the threshold, newest first.
func (s *Store) CriticalChanges(threshold int) ([]*models.ChangeRecord, error) {
	all, err := s.RecentChanges(0)
	if err != nil {
		return nil, err
	}
	var out []*models.ChangeRecord
	for _, rec := range all {
		switch rec.Kind {
		case models.OpBulkDelete, models.OpBulkUpdate, models.OpEraseAll:
			out = append(out, rec)
		default:
			if rec.AffectedRecords > threshold {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

// GetChange looks up a change record by id, accepting short-id prefixes.
func (s *Store) GetChange(id string) (*models.ChangeRecord, error) {
	var found *models.ChangeRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		rec, _, err := findChange(tx, id)
		if err != nil {
			return err
		}
		found = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// MarkChangeReverted flips CanRevert to false on the given change record.
// Reverting is single-shot, so this is the only mutation a ledger entry
// ever sees.
func (s *Store) MarkChangeReverted(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		rec, key, err := findChange(tx, id)
		if err != nil {
			return err
		}
		rec.CanRevert = false
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal change: %w", err)
		}
		return tx.Bucket(bucketChanges).Put(key, data)
	})
}

// findChange scans the ledger for an entry with the given id or unique
// short-id prefix. The ledger is capacity-bounded, so a scan is fine.
func findChange(tx *bolt.Tx, id string) (*models.ChangeRecord, []byte, error) {
	if id == "" {
		return nil, nil, ErrChangeNotFound
	}
	var (
		found    *models.ChangeRecord
		foundKey []byte
	)
	c := tx.Bucket(bucketChanges).Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var rec models.ChangeRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return nil, nil, fmt.Errorf("unmarshal change: %w", err)
		}
		if rec.ID == id {
			key := make([]byte, len(k))
			copy(key, k)
			return &rec, key, nil
		}
		if len(id) >= 8 && len(id) < len(rec.ID) && rec.ID[:len(id)] == id {
			if found != nil {
				return nil, nil, fmt.Errorf("ambiguous change id prefix %q", id)
			}
			r := rec
			found = &r
			foundKey = make([]byte, len(k))
			copy(foundKey, k)
		}
	}
	if found == nil {
		return nil, nil, ErrChangeNotFound
	}
	return found, foundKey, nil
}
