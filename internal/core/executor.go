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

// Executor dispatches classified operations to per-table handlers on the
// tabular store adapter. The store has no transactions and no history, so
// the executor captures "before" state itself, reading every affected row
// before the write is issued.
type Executor struct {
	client    sheets.ClientInterface
	st        *store.Store
	snapshots *SnapshotManager
	notifier  CacheNotifier
	logger    *slog.Logger
}

// NewExecutor creates an executor.
func NewExecutor(client sheets.ClientInterface, st *store.Store, snaps *SnapshotManager, notifier CacheNotifier, logger *slog.Logger) *Executor {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		client:    client,
		st:        st,
		snapshots: snaps,
		notifier:  notifier,
		logger:    logger,
	}
}

// opResult collects what a dispatch actually did.
type opResult struct {
	before   []models.RowChange
	after    []models.RowChange
	affected int
	revert   *models.RevertData
	tables   []models.Table // tables touched, for cache invalidation
}

// Execute runs an already-classified operation. On success a ChangeRecord
// is appended to the ledger and the affected tables are invalidated. A
// partial bulk failure still writes a ledger entry covering the rows that
// were written, and returns it alongside a PartialBulkError.
func (e *Executor) Execute(ctx context.Context, op *models.Operation) (*models.ChangeRecord, error) {
	if !op.Kind.Valid() || op.Kind == models.OpRevert || op.Kind == models.OpBackup {
		return nil, &UnknownTargetError{Kind: op.Kind, Table: op.Table}
	}
	if !op.Table.Valid() {
		return nil, &UnknownTargetError{Kind: op.Kind, Table: op.Table}
	}
	if op.Table == models.TableAll && op.Kind != models.OpEraseAll && op.Kind != models.OpRestore {
		return nil, &UnknownTargetError{Kind: op.Kind, Table: op.Table}
	}

	// High and critical operations get a safety snapshot before the store
	// is touched. A failed snapshot aborts the operation. Restore takes its
	// own snapshot after resolving the target.
	if op.RiskTier.AtLeast(models.RiskHigh) && op.Kind != models.OpRestore {
		if _, err := e.snapshots.Create(ctx, "auto-backup before: "+op.Description); err != nil {
			return nil, fmt.Errorf("pre-operation backup failed: %w", err)
		}
	}

	res, execErr := e.dispatch(ctx, op)
	if res == nil || res.affected == 0 {
		// Nothing changed: no ledger entry. Any snapshot already taken
		// stays, extra backups are always safe to keep.
		if execErr == nil {
			execErr = validationf("no records matched %s on %s", op.Kind, op.Table)
		}
		return nil, execErr
	}

	rec := &models.ChangeRecord{
		ID:              uuid.NewString(),
		Timestamp:       time.Now(),
		Kind:            op.Kind,
		Table:           op.Table,
		Description:     op.Description,
		BeforeData:      res.before,
		AfterData:       res.after,
		AffectedRecords: res.affected,
		CanRevert:       op.Kind.Revertible() && res.revert != nil,
		RevertData:      res.revert,
	}

	if err := e.st.AppendChange(rec); err != nil {
		return nil, fmt.Errorf("record change: %w", err)
	}

	for _, t := range res.tables {
		e.notifier.Invalidate(t)
	}

	e.logger.Info("operation executed",
		"change_id", rec.ShortID(),
		"kind", op.Kind,
		"table", op.Table,
		"risk", op.RiskTier,
		"affected", rec.AffectedRecords,
	)

	return rec, execErr
}

func (e *Executor) dispatch(ctx context.Context, op *models.Operation) (*opResult, error) {
	switch op.Kind {
	case models.OpCreate:
		return e.create(ctx, op)
	case models.OpUpdate:
		return e.update(ctx, op)
	case models.OpDelete:
		return e.delete(ctx, op)
	case models.OpBulkCreate:
		return e.bulkCreate(ctx, op)
	case models.OpBulkUpdate:
		return e.bulkUpdate(ctx, op)
	case models.OpBulkDelete:
		return e.bulkDelete(ctx, op)
	case models.OpEraseAll:
		return e.eraseAll(ctx, op)
	case models.OpRestore:
		return e.restore(ctx, op)
	default:
		return nil, &UnknownTargetError{Kind: op.Kind, Table: op.Table}
	}
}

func (e *Executor) create(ctx context.Context, op *models.Operation) (*opResult, error) {
	h, err := handlerFor(op.Kind, op.Table)
	if err != nil {
		return nil, err
	}

	rows, err := e.client.GetRows(ctx, op.Table)
	if err != nil {
		return nil, err
	}

	id := payloadString(op.Payload, "id")
	if id == "" {
		id = uuid.NewString()[:8]
	} else if h.findByID(rows, id) >= 0 {
		return nil, validationf("record %q already exists in %s", id, op.Table)
	}

	row, err := h.rowFromFields(id, op.Payload)
	if err != nil {
		return nil, err
	}

	if err := e.client.AppendRows(ctx, op.Table, []models.Row{row}); err != nil {
		return nil, err
	}

	created := []models.RowChange{{Index: len(rows), Row: row}}
	return &opResult{
		after:    created,
		affected: 1,
		revert:   &models.RevertData{Kind: models.OpCreate, Table: op.Table, Rows: created},
		tables:   []models.Table{op.Table},
	}, nil
}

func (e *Executor) update(ctx context.Context, op *models.Operation) (*opResult, error) {
	h, err := handlerFor(op.Kind, op.Table)
	if err != nil {
		return nil, err
	}

	id := payloadString(op.Payload, "id")
	if id == "" {
		return nil, validationf("update on %s requires an id", op.Table)
	}

	rows, err := e.client.GetRows(ctx, op.Table)
	if err != nil {
		return nil, err
	}

	idx := h.findByID(rows, id)
	if idx < 0 {
		return nil, validationf("no record %q in %s", id, op.Table)
	}

	before := rows[idx].Clone()
	after, err := h.applyFields(before, updateFields(op.Payload))
	if err != nil {
		return nil, err
	}

	if err := e.client.UpdateRow(ctx, op.Table, idx, after); err != nil {
		return nil, err
	}

	beforeChange := []models.RowChange{{Index: idx, Row: before}}
	return &opResult{
		before:   beforeChange,
		after:    []models.RowChange{{Index: idx, Row: after}},
		affected: 1,
		revert:   &models.RevertData{Kind: models.OpUpdate, Table: op.Table, Rows: beforeChange},
		tables:   []models.Table{op.Table},
	}, nil
}

func (e *Executor) delete(ctx context.Context, op *models.Operation) (*opResult, error) {
	h, err := handlerFor(op.Kind, op.Table)
	if err != nil {
		return nil, err
	}

	ids := payloadIDs(op.Payload)
	if len(ids) == 0 {
		return nil, validationf("delete on %s requires an id", op.Table)
	}

	rows, err := e.client.GetRows(ctx, op.Table)
	if err != nil {
		return nil, err
	}

	res := &opResult{tables: []models.Table{op.Table}}
	var lastErr error
	failed := 0
	for _, id := range ids {
		idx := h.findByID(rows, id)
		if idx < 0 {
			lastErr = validationf("no record %q in %s", id, op.Table)
			failed++
			continue
		}
		before := rows[idx].Clone()
		if err := e.client.UpdateRow(ctx, op.Table, idx, h.blankRow()); err != nil {
			lastErr = err
			failed++
			continue
		}
		res.before = append(res.before, models.RowChange{Index: idx, Row: before})
		res.after = append(res.after, models.RowChange{Index: idx, Row: h.blankRow()})
		res.affected++
	}

	if res.affected == 0 {
		return nil, lastErr
	}
	res.revert = &models.RevertData{Kind: models.OpDelete, Table: op.Table, Rows: res.before}

	if failed > 0 {
		return res, &PartialBulkError{Requested: len(ids), Succeeded: res.affected, Err: lastErr}
	}
	return res, nil
}

func (e *Executor) bulkCreate(ctx context.Context, op *models.Operation) (*opResult, error) {
	h, err := handlerFor(op.Kind, op.Table)
	if err != nil {
		return nil, err
	}

	records := payloadRecords(op.Payload)
	if len(records) == 0 {
		return nil, validationf("bulk_create on %s requires records", op.Table)
	}

	rows, err := e.client.GetRows(ctx, op.Table)
	if err != nil {
		return nil, err
	}

	res := &opResult{tables: []models.Table{op.Table}}
	var lastErr error
	failed := 0
	next := len(rows)
	for _, fields := range records {
		id := payloadString(fields, "id")
		if id == "" {
			id = uuid.NewString()[:8]
		}
		row, err := h.rowFromFields(id, fields)
		if err != nil {
			lastErr = err
			failed++
			continue
		}
		// Rows are appended one at a time so a mid-batch failure leaves an
		// accurate account of what actually landed.
		if err := e.client.AppendRows(ctx, op.Table, []models.Row{row}); err != nil {
			lastErr = err
			failed++
			continue
		}
		res.after = append(res.after, models.RowChange{Index: next, Row: row})
		res.affected++
		next++
	}

	if res.affected == 0 {
		return nil, lastErr
	}
	res.revert = &models.RevertData{Kind: models.OpBulkCreate, Table: op.Table, Rows: res.after}

	if failed > 0 {
		return res, &PartialBulkError{Requested: len(records), Succeeded: res.affected, Err: lastErr}
	}
	return res, nil
}

func (e *Executor) bulkUpdate(ctx context.Context, op *models.Operation) (*opResult, error) {
	h, err := handlerFor(op.Kind, op.Table)
	if err != nil {
		return nil, err
	}

	rows, err := e.client.GetRows(ctx, op.Table)
	if err != nil {
		return nil, err
	}

	// Two payload shapes: explicit records each carrying an id, or a
	// where-selector with a set of fields applied to every match.
	type target struct {
		idx    int
		fields map[string]any
	}
	var targets []target

	if records := payloadRecords(op.Payload); len(records) > 0 {
		for _, fields := range records {
			id := payloadString(fields, "id")
			if id == "" {
				continue
			}
			if idx := h.findByID(rows, id); idx >= 0 {
				targets = append(targets, target{idx: idx, fields: updateFields(fields)})
			}
		}
	} else {
		where := payloadMap(op.Payload, "where")
		set := payloadMap(op.Payload, "set")
		if len(where) == 0 || len(set) == 0 {
			return nil, validationf("bulk_update on %s requires records, or where and set", op.Table)
		}
		for idx, row := range rows {
			if h.matches(row, where) {
				targets = append(targets, target{idx: idx, fields: set})
			}
		}
	}

	if len(targets) == 0 {
		return nil, validationf("bulk_update matched no records in %s", op.Table)
	}

	res := &opResult{tables: []models.Table{op.Table}}
	var lastErr error
	failed := 0
	for _, tg := range targets {
		before := rows[tg.idx].Clone()
		after, err := h.applyFields(before, tg.fields)
		if err != nil {
			lastErr = err
			failed++
			continue
		}
		if err := e.client.UpdateRow(ctx, op.Table, tg.idx, after); err != nil {
			lastErr = err
			failed++
			continue
		}
		res.before = append(res.before, models.RowChange{Index: tg.idx, Row: before})
		res.after = append(res.after, models.RowChange{Index: tg.idx, Row: after})
		res.affected++
	}

	if res.affected == 0 {
		return nil, lastErr
	}
	res.revert = &models.RevertData{Kind: models.OpBulkUpdate, Table: op.Table, Rows: res.before}

	if failed > 0 {
		return res, &PartialBulkError{Requested: len(targets), Succeeded: res.affected, Err: lastErr}
	}
	return res, nil
}

func (e *Executor) bulkDelete(ctx context.Context, op *models.Operation) (*opResult, error) {
	h, err := handlerFor(op.Kind, op.Table)
	if err != nil {
		return nil, err
	}

	ids := payloadIDs(op.Payload)
	where := payloadMap(op.Payload, "where")
	if len(ids) == 0 && len(where) == 0 {
		return nil, validationf("bulk_delete on %s requires ids or a where selector", op.Table)
	}

	rows, err := e.client.GetRows(ctx, op.Table)
	if err != nil {
		return nil, err
	}

	var indexes []int
	if len(ids) > 0 {
		for _, id := range ids {
			if idx := h.findByID(rows, id); idx >= 0 {
				indexes = append(indexes, idx)
			}
		}
	} else {
		for idx, row := range rows {
			if h.matches(row, where) {
				indexes = append(indexes, idx)
			}
		}
	}

	if len(indexes) == 0 {
		return nil, validationf("bulk_delete matched no records in %s", op.Table)
	}

	res := &opResult{tables: []models.Table{op.Table}}
	var lastErr error
	failed := 0
	for _, idx := range indexes {
		before := rows[idx].Clone()
		if err := e.client.UpdateRow(ctx, op.Table, idx, h.blankRow()); err != nil {
			lastErr = err
			failed++
			continue
		}
		res.before = append(res.before, models.RowChange{Index: idx, Row: before})
		res.affected++
	}

	if res.affected == 0 {
		return nil, lastErr
	}
	res.revert = &models.RevertData{Kind: models.OpBulkDelete, Table: op.Table, Rows: res.before}

	if failed > 0 {
		return res, &PartialBulkError{Requested: len(indexes), Succeeded: res.affected, Err: lastErr}
	}
	return res, nil
}

// eraseAll blanks every row of the target table, or of every table. The
// prior state is recoverable only through the automatic pre-operation
// snapshot, so the resulting change record is not revertible.
func (e *Executor) eraseAll(ctx context.Context, op *models.Operation) (*opResult, error) {
	tables := []models.Table{op.Table}
	if op.Table == models.TableAll {
		tables = models.DataTables
	}

	res := &opResult{}
	var lastErr error
	failedRows := 0
	unread := 0
	for _, t := range tables {
		h, err := handlerFor(op.Kind, t)
		if err != nil {
			return nil, err
		}
		rows, err := e.client.GetRows(ctx, t)
		if err != nil {
			if res.affected == 0 {
				return nil, err
			}
			lastErr = fmt.Errorf("read %s: %w", t, err)
			unread++
			continue
		}
		touched := false
		for idx, row := range rows {
			if row.Blank() {
				continue
			}
			if err := e.client.UpdateRow(ctx, t, idx, h.blankRow()); err != nil {
				lastErr = err
				failedRows++
				continue
			}
			res.affected++
			touched = true
		}
		if touched {
			res.tables = append(res.tables, t)
		}
	}

	if res.affected == 0 && lastErr != nil {
		return nil, lastErr
	}
	if failedRows > 0 || unread > 0 {
		// Requested counts only rows a write was attempted on. Tables whose
		// read failed have an unknown row count and are reported through the
		// error instead.
		err := lastErr
		if unread > 0 {
			err = fmt.Errorf("%d table(s) left unread: %w", unread, lastErr)
		}
		return res, &PartialBulkError{Requested: res.affected + failedRows, Succeeded: res.affected, Err: err}
	}
	return res, nil
}

// restore overwrites every table from a stored snapshot. The target is
// resolved before the safety snapshot is taken: storing the safety copy can
// evict the oldest ring entry, which may be the target itself.
func (e *Executor) restore(ctx context.Context, op *models.Operation) (*opResult, error) {
	id := payloadString(op.Payload, "snapshot_id")
	if id == "" {
		return nil, validationf("restore requires a snapshot_id")
	}

	snap, err := e.snapshots.Get(id)
	switch {
	case errors.Is(err, store.ErrSnapshotNotFound):
		return nil, validationf("no snapshot %q", id)
	case errors.Is(err, store.ErrAmbiguousSnapshotID):
		return nil, &ValidationError{Msg: err.Error()}
	case err != nil:
		return nil, err
	}

	if _, err := e.snapshots.Create(ctx, "auto-backup before: "+op.Description); err != nil {
		return nil, fmt.Errorf("pre-operation backup failed: %w", err)
	}

	written, err := e.snapshots.Restore(ctx, snap)
	if err != nil {
		if written == 0 {
			return nil, err
		}
		return &opResult{affected: written, tables: models.DataTables},
			&PartialBulkError{Requested: written, Succeeded: written, Err: err}
	}

	return &opResult{affected: written, tables: models.DataTables}, nil
}
