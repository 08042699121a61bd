package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fundwise/steward/internal/interpreter"
	"github.com/fundwise/steward/internal/models"
	"github.com/fundwise/steward/internal/sheets"
	"github.com/fundwise/steward/internal/store"
)

// Pipeline is the single entry point for every mutation. Text goes through
// the interpreter, the resulting command is classified, gated if risky, and
// executed against the store adapter with full ledger bookkeeping. The CLI
// and the HTTP server both sit on top of this type and nothing else writes.
type Pipeline struct {
	mu        sync.Mutex
	interp    interpreter.Interpreter
	executor  *Executor
	reverter  *Reverter
	gate      *Gate
	snapshots *SnapshotManager
	st        *store.Store
	logger    *slog.Logger

	criticalThreshold int
}

// PipelineOptions configures a pipeline.
type PipelineOptions struct {
	Interpreter       interpreter.Interpreter
	Client            sheets.ClientInterface
	Store             *store.Store
	Notifier          CacheNotifier
	Logger            *slog.Logger
	PendingTTL        time.Duration
	CriticalThreshold int
}

// NewPipeline wires the pipeline components together.
func NewPipeline(opts PipelineOptions) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = 5 * time.Minute
	}
	if opts.CriticalThreshold <= 0 {
		opts.CriticalThreshold = 10
	}

	snaps := NewSnapshotManager(opts.Client, opts.Store)
	return &Pipeline{
		interp:            opts.Interpreter,
		executor:          NewExecutor(opts.Client, opts.Store, snaps, opts.Notifier, opts.Logger),
		reverter:          NewReverter(opts.Client, opts.Store, snaps, opts.Notifier, opts.Logger),
		gate:              NewGate(opts.Store, opts.PendingTTL),
		snapshots:         snaps,
		st:                opts.Store,
		logger:            opts.Logger,
		criticalThreshold: opts.CriticalThreshold,
	}
}

// ExecuteText interprets a natural-language request and runs the resulting
// command. Text the interpreter judges to be conversation rather than a
// data operation returns a failed Result, not an error.
func (p *Pipeline) ExecuteText(ctx context.Context, text string) (*models.Result, error) {
	cmd, err := p.interp.Parse(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("interpret request: %w", err)
	}
	if cmd == nil {
		return &models.Result{Success: false, Message: "not a data operation"}, nil
	}
	return p.ExecuteCommand(ctx, cmd)
}

// ExecuteCommand classifies and runs a structured command. Medium risk and
// above is parked in the confirmation gate instead of executing, and the
// Result carries the pending id the caller must confirm.
func (p *Pipeline) ExecuteCommand(ctx context.Context, cmd *models.Command) (*models.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch cmd.Action {
	case string(models.OpRevert):
		return p.revertLocked(ctx, cmd)
	case string(models.OpBackup):
		return p.snapshotLocked(ctx, cmd.Description)
	}

	op, err := operationFromCommand(cmd)
	if err != nil {
		return &models.Result{Success: false, Message: err.Error()}, nil
	}
	ApplyClassification(op, cmd.RequiresConfirmation)

	if op.RequiresConfirmation {
		pending, err := p.gate.Hold(op)
		if err != nil {
			return nil, err
		}
		return &models.Result{
			Success:              true,
			Message:              p.gate.Prompt(pending),
			PendingID:            pending.ID,
			ConfirmationRequired: true,
		}, nil
	}

	return p.executeLocked(ctx, op)
}

// ConfirmOperation executes a previously gated operation. The pending id is
// consumed whether execution succeeds or not.
func (p *Pipeline) ConfirmOperation(ctx context.Context, pendingID string) (*models.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	op, err := p.gate.Take(pendingID)
	if err != nil {
		if errors.Is(err, store.ErrPendingNotFound) {
			return &models.Result{Success: false, Message: "no pending operation found (unknown, expired, or already handled)"}, nil
		}
		return nil, err
	}
	return p.executeLocked(ctx, op)
}

// CancelOperation discards a pending operation without executing it.
func (p *Pipeline) CancelOperation(pendingID string) (*models.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.gate.Cancel(pendingID); err != nil {
		if errors.Is(err, store.ErrPendingNotFound) {
			return &models.Result{Success: false, Message: "no pending operation found (unknown, expired, or already handled)"}, nil
		}
		return nil, err
	}
	return &models.Result{Success: true, Message: "operation cancelled"}, nil
}

// RevertChange undoes a recorded change by its full or short id.
func (p *Pipeline) RevertChange(ctx context.Context, changeID string) (*models.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doRevert(ctx, changeID)
}

func (p *Pipeline) doRevert(ctx context.Context, changeID string) (*models.Result, error) {
	rec, err := p.reverter.Revert(ctx, changeID)
	if err != nil {
		var ineligible *RevertIneligibleError
		if errors.As(err, &ineligible) {
			return &models.Result{Success: false, Message: err.Error()}, nil
		}
		return nil, err
	}
	return &models.Result{
		Success:         true,
		Message:         rec.Description,
		ChangeID:        rec.ID,
		AffectedRecords: rec.AffectedRecords,
	}, nil
}

func (p *Pipeline) revertLocked(ctx context.Context, cmd *models.Command) (*models.Result, error) {
	id := payloadString(cmd.Parameters, "change_id")
	if id == "" {
		id = payloadString(cmd.Parameters, "id")
	}
	if id == "" {
		return &models.Result{Success: false, Message: "revert requires a change id"}, nil
	}
	return p.doRevert(ctx, id)
}

// CreateSnapshot takes a manual full backup.
func (p *Pipeline) CreateSnapshot(ctx context.Context, description string) (*models.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked(ctx, description)
}

func (p *Pipeline) snapshotLocked(ctx context.Context, description string) (*models.Result, error) {
	if description == "" {
		description = "manual backup"
	}
	snap, err := p.snapshots.Create(ctx, description)
	if err != nil {
		return nil, err
	}
	return &models.Result{
		Success:    true,
		Message:    fmt.Sprintf("snapshot %s created (%d bytes)", snap.ID[:8], snap.Size),
		SnapshotID: snap.ID,
	}, nil
}

// RestoreSnapshot rolls every table back to a stored snapshot. Restore is
// critical tier and always goes through the confirmation gate.
func (p *Pipeline) RestoreSnapshot(ctx context.Context, snapshotID string) (*models.Result, error) {
	cmd := &models.Command{
		Action:      string(models.OpRestore),
		Target:      string(models.TableAll),
		Parameters:  map[string]any{"snapshot_id": snapshotID},
		Description: "restore from snapshot " + snapshotID,
	}
	return p.ExecuteCommand(ctx, cmd)
}

// ListSnapshots returns stored snapshot metadata, newest first.
func (p *Pipeline) ListSnapshots() ([]*models.SnapshotInfo, error) {
	return p.snapshots.List()
}

// GetStatus reports recent activity, revertable and critical changes,
// snapshots, and live pending operations.
func (p *Pipeline) GetStatus() (*models.Status, error) {
	recent, err := p.st.RecentChanges(10)
	if err != nil {
		return nil, err
	}
	revertable, err := p.st.RevertableChanges()
	if err != nil {
		return nil, err
	}
	critical, err := p.st.CriticalChanges(p.criticalThreshold)
	if err != nil {
		return nil, err
	}
	snaps, err := p.snapshots.List()
	if err != nil {
		return nil, err
	}
	pending, err := p.gate.Live()
	if err != nil {
		return nil, err
	}
	return &models.Status{
		RecentChanges:      recent,
		RevertableChanges:  revertable,
		CriticalOperations: critical,
		Snapshots:          snaps,
		PendingOperations:  pending,
	}, nil
}

// RecentChanges returns the newest n ledger entries.
func (p *Pipeline) RecentChanges(n int) ([]*models.ChangeRecord, error) {
	return p.st.RecentChanges(n)
}

// executeLocked runs a classified operation and shapes the outcome into a
// Result. Partial bulk failures succeed with a caveat in the message, the
// ledger already holds the actual counts.
func (p *Pipeline) executeLocked(ctx context.Context, op *models.Operation) (*models.Result, error) {
	rec, err := p.executor.Execute(ctx, op)
	if err != nil {
		var partial *PartialBulkError
		if errors.As(err, &partial) && rec != nil {
			return &models.Result{
				Success:         true,
				Message:         partial.Error(),
				ChangeID:        rec.ID,
				AffectedRecords: rec.AffectedRecords,
			}, nil
		}
		var unknown *UnknownTargetError
		var invalid *ValidationError
		if errors.As(err, &unknown) || errors.As(err, &invalid) {
			return &models.Result{Success: false, Message: err.Error()}, nil
		}
		return nil, err
	}

	msg := fmt.Sprintf("%s on %s: %d record(s) affected", op.Kind, op.Table, rec.AffectedRecords)
	return &models.Result{
		Success:         true,
		Message:         msg,
		ChangeID:        rec.ID,
		AffectedRecords: rec.AffectedRecords,
	}, nil
}

// operationFromCommand validates a command's action and target and shapes
// it into an executable operation.
func operationFromCommand(cmd *models.Command) (*models.Operation, error) {
	kind := models.OperationKind(cmd.Action)
	if !kind.Valid() || kind == models.OpRevert || kind == models.OpBackup {
		return nil, validationf("unknown action %q", cmd.Action)
	}
	table := models.Table(cmd.Target)
	if !table.Valid() {
		return nil, &UnknownTargetError{Kind: kind, Table: table}
	}
	desc := cmd.Description
	if desc == "" {
		desc = fmt.Sprintf("%s on %s", kind, table)
	}
	return &models.Operation{
		Kind:        kind,
		Table:       table,
		Payload:     cmd.Parameters,
		Description: desc,
	}, nil
}
