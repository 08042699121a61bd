package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fundwise/steward/internal/models"
	"github.com/fundwise/steward/internal/store"
)

// Gate holds operations that require explicit confirmation before execution.
// Pending operations are keyed by a fresh id, never reused, and expire after
// the configured wait window so a stale operation can never be confirmed.
type Gate struct {
	st  *store.Store
	ttl time.Duration
}

// NewGate creates a confirmation gate backed by the given store.
func NewGate(st *store.Store, ttl time.Duration) *Gate {
	return &Gate{st: st, ttl: ttl}
}

// Hold stores the operation as pending and returns it with its fresh id.
func (g *Gate) Hold(op *models.Operation) (*models.PendingOperation, error) {
	p := &models.PendingOperation{
		ID:        uuid.NewString(),
		Operation: op,
		CreatedAt: time.Now(),
	}
	if err := g.st.PutPending(p); err != nil {
		return nil, fmt.Errorf("hold operation: %w", err)
	}
	return p, nil
}

// Prompt renders the confirmation message for a pending operation.
func (g *Gate) Prompt(p *models.PendingOperation) string {
	op := p.Operation
	return fmt.Sprintf(
		"%s-risk operation on %s: %s. Run \"confirm %s\" to execute or \"cancel %s\" to discard. Expires in %s.",
		op.RiskTier, op.Table, op.Description, p.ID, p.ID, g.ttl)
}

// Take atomically removes the pending operation and returns it for
// execution. Unknown and expired ids both report store.ErrPendingNotFound,
// so an id can be confirmed at most once.
func (g *Gate) Take(id string) (*models.Operation, error) {
	p, err := g.st.TakePending(id, g.ttl)
	if err != nil {
		return nil, err
	}
	return p.Operation, nil
}

// Cancel removes the pending operation without executing it.
func (g *Gate) Cancel(id string) error {
	_, err := g.st.TakePending(id, g.ttl)
	return err
}

// Live returns the unexpired pending operations, sweeping out expired ones.
func (g *Gate) Live() ([]*models.PendingOperation, error) {
	return g.st.LivePending(g.ttl)
}
