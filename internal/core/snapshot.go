package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fundwise/steward/internal/models"
	"github.com/fundwise/steward/internal/sheets"
	"github.com/fundwise/steward/internal/store"
)

// SnapshotManager captures and stores full point-in-time copies of every
// table. Snapshots live in a capacity-bounded ring; the oldest is evicted
// first.
type SnapshotManager struct {
	client sheets.ClientInterface
	st     *store.Store
}

// NewSnapshotManager creates a snapshot manager.
func NewSnapshotManager(client sheets.ClientInterface, st *store.Store) *SnapshotManager {
	return &SnapshotManager{client: client, st: st}
}

// Create reads every table and stores the copy under a fresh id. The size
// is the serialized byte length, an observability estimate only.
func (m *SnapshotManager) Create(ctx context.Context, description string) (*models.BackupSnapshot, error) {
	tables := make(map[models.Table][]models.Row, len(models.DataTables))
	for _, t := range models.DataTables {
		rows, err := m.client.GetRows(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", t, err)
		}
		tables[t] = rows
	}

	data, err := json.Marshal(tables)
	if err != nil {
		return nil, fmt.Errorf("estimate snapshot size: %w", err)
	}

	snap := &models.BackupSnapshot{
		ID:          uuid.NewString(),
		Timestamp:   time.Now(),
		Description: description,
		Size:        int64(len(data)),
		Tables:      tables,
	}

	if err := m.st.PutSnapshot(snap); err != nil {
		return nil, fmt.Errorf("store snapshot: %w", err)
	}
	return snap, nil
}

// List returns snapshot metadata, newest first.
func (m *SnapshotManager) List() ([]*models.SnapshotInfo, error) {
	return m.st.ListSnapshots()
}

// Get returns a full snapshot by id.
func (m *SnapshotManager) Get(id string) (*models.BackupSnapshot, error) {
	return m.st.GetSnapshot(id)
}

// Restore overwrites every table from the snapshot, returning the number of
// rows written. The caller is responsible for gating (restore is a
// critical-tier operation) and for taking the safety snapshot first; the
// executor does both. A restore is not revertible.
func (m *SnapshotManager) Restore(ctx context.Context, snap *models.BackupSnapshot) (int, error) {
	written := 0
	for _, t := range models.DataTables {
		want := snap.Tables[t]
		current, err := m.client.GetRows(ctx, t)
		if err != nil {
			return written, fmt.Errorf("restore read %s: %w", t, err)
		}

		cols := len(models.Columns[t])
		for i := 0; i < len(want) || i < len(current); i++ {
			switch {
			case i < len(want) && i < len(current):
				if err := m.client.UpdateRow(ctx, t, i, want[i]); err != nil {
					return written, fmt.Errorf("restore %s row %d: %w", t, i, err)
				}
			case i < len(want):
				if err := m.client.AppendRows(ctx, t, []models.Row{want[i]}); err != nil {
					return written, fmt.Errorf("restore append %s: %w", t, err)
				}
			default:
				// Rows created after the snapshot are blanked out.
				if err := m.client.UpdateRow(ctx, t, i, make(models.Row, cols)); err != nil {
					return written, fmt.Errorf("restore blank %s row %d: %w", t, i, err)
				}
			}
			written++
		}
	}
	return written, nil
}
