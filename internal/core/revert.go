package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fundwise/steward/internal/models"
	"github.com/fundwise/steward/internal/sheets"
	"github.com/fundwise/steward/internal/store"
)

// Reverter undoes a recorded change by writing the inverse of what the
// change did. Row indexes recorded at change time are still valid because
// deletion blanks rows in place and never shifts the ones below.
type Reverter struct {
	client    sheets.ClientInterface
	st        *store.Store
	snapshots *SnapshotManager
	notifier  CacheNotifier
	logger    *slog.Logger
}

// NewReverter creates a reverter.
func NewReverter(client sheets.ClientInterface, st *store.Store, snaps *SnapshotManager, notifier CacheNotifier, logger *slog.Logger) *Reverter {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reverter{client: client, st: st, snapshots: snaps, notifier: notifier, logger: logger}
}

// Revert undoes the change identified by id (full or short form). Each
// change can be reverted once, the reversal itself enters the ledger as a
// non-revertible record. If applying the inverse fails partway the change
// is left unmarked so a retry is possible.
func (r *Reverter) Revert(ctx context.Context, id string) (*models.ChangeRecord, error) {
	rec, err := r.st.GetChange(id)
	if err != nil {
		if errors.Is(err, store.ErrChangeNotFound) {
			return nil, &RevertIneligibleError{ID: id}
		}
		return nil, err
	}
	if !rec.CanRevert || rec.RevertData == nil {
		return nil, &RevertIneligibleError{ID: rec.ShortID()}
	}

	if _, err := r.snapshots.Create(ctx, "auto-backup before reverting "+rec.ShortID()); err != nil {
		return nil, fmt.Errorf("pre-revert backup failed: %w", err)
	}

	restored, err := r.apply(ctx, rec.RevertData)
	if err != nil {
		return nil, fmt.Errorf("revert %s: %w", rec.ShortID(), err)
	}

	inverse := &models.ChangeRecord{
		ID:              uuid.NewString(),
		Timestamp:       time.Now(),
		Kind:            models.OpRevert,
		Table:           rec.Table,
		Description:     fmt.Sprintf("revert of %s (%s on %s)", rec.ShortID(), rec.Kind, rec.Table),
		BeforeData:      rec.AfterData,
		AfterData:       restored,
		AffectedRecords: len(restored),
		CanRevert:       false,
	}
	if err := r.st.AppendChange(inverse); err != nil {
		return nil, fmt.Errorf("record revert: %w", err)
	}
	// Appending the reversal can evict the original from a full ledger, in
	// which case there is nothing left to mark.
	if err := r.st.MarkChangeReverted(rec.ID); err != nil && !errors.Is(err, store.ErrChangeNotFound) {
		return nil, fmt.Errorf("mark reverted: %w", err)
	}

	r.notifier.Invalidate(rec.Table)

	r.logger.Info("change reverted",
		"change_id", rec.ShortID(),
		"revert_id", inverse.ShortID(),
		"kind", rec.Kind,
		"table", rec.Table,
		"restored", len(restored),
	)

	return inverse, nil
}

// apply writes the inverse rows. For creates the inverse is blanking the
// rows that were appended, for updates and deletes it is writing the
// before-state back at the recorded index.
func (r *Reverter) apply(ctx context.Context, rd *models.RevertData) ([]models.RowChange, error) {
	var restored []models.RowChange

	switch rd.Kind {
	case models.OpCreate, models.OpBulkCreate:
		h, err := handlerFor(rd.Kind, rd.Table)
		if err != nil {
			return nil, err
		}
		rows, err := r.client.GetRows(ctx, rd.Table)
		if err != nil {
			return nil, err
		}
		for _, rc := range rd.Rows {
			if err := verifyRow(rows, rd.Table, rc); err != nil {
				return restored, err
			}
			if err := r.client.UpdateRow(ctx, rd.Table, rc.Index, h.blankRow()); err != nil {
				return restored, err
			}
			restored = append(restored, models.RowChange{Index: rc.Index, Row: h.blankRow()})
		}

	case models.OpUpdate, models.OpDelete, models.OpBulkUpdate, models.OpBulkDelete:
		for _, rc := range rd.Rows {
			if err := r.client.UpdateRow(ctx, rd.Table, rc.Index, rc.Row); err != nil {
				return restored, err
			}
			restored = append(restored, rc)
		}

	default:
		return nil, validationf("cannot revert a %s operation", rd.Kind)
	}

	return restored, nil
}

// verifyRow checks that the row at the recorded index still carries the id
// the change created. A mismatch means the table was rewritten outside this
// tool and blanking the row would hit unrelated data.
func verifyRow(rows []models.Row, table models.Table, rc models.RowChange) error {
	if rc.Index >= len(rows) {
		return validationf("row %d no longer exists in %s", rc.Index, table)
	}
	if len(rows[rc.Index]) == 0 || len(rc.Row) == 0 || rows[rc.Index][0] != rc.Row[0] {
		return validationf("row %d in %s was modified outside the change history", rc.Index, table)
	}
	return nil
}
