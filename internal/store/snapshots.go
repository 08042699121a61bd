package store

import (
	"encoding/json"
	"fmt"

	"github.com/fundwise/steward/internal/models"
	bolt "go.etcd.io/bbolt"
)

// PutSnapshot stores a backup snapshot, evicting the oldest once the ring
// capacity is exceeded. The snapshot's Seq is assigned here.
func (s *Store) PutSnapshot(snap *models.BackupSnapshot) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSnapshots)

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		snap.Seq = seq

		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		if err := b.Put(seqKey(seq), data); err != nil {
			return err
		}
		return evictOldest(b, s.opts.MaxSnapshots)
	})
}

// ListSnapshots returns snapshot metadata, newest first.
func (s *Store) ListSnapshots() ([]*models.SnapshotInfo, error) {
	var out []*models.SnapshotInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSnapshots).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var snap models.BackupSnapshot
			if err := json.Unmarshal(v, &snap); err != nil {
				return fmt.Errorf("unmarshal snapshot: %w", err)
			}
			out = append(out, snap.Info())
		}
		return nil
	})
	return out, err
}

// GetSnapshot looks up a full snapshot by id, accepting short-id prefixes.
func (s *Store) GetSnapshot(id string) (*models.BackupSnapshot, error) {
	if id == "" {
		return nil, ErrSnapshotNotFound
	}
	var found *models.BackupSnapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSnapshots).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var snap models.BackupSnapshot
			if err := json.Unmarshal(v, &snap); err != nil {
				return fmt.Errorf("unmarshal snapshot: %w", err)
			}
			if snap.ID == id {
				found = &snap
				return nil
			}
			if len(id) >= 8 && len(id) < len(snap.ID) && snap.ID[:len(id)] == id {
				if found != nil {
					return fmt.Errorf("%w %q", ErrAmbiguousSnapshotID, id)
				}
				sc := snap
				found = &sc
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrSnapshotNotFound
	}
	return found, nil
}
