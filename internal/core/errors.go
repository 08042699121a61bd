package core

import (
	"fmt"

	"github.com/fundwise/steward/internal/models"
)

// UnknownTargetError reports a table/action combination the executor does
// not support. No snapshot is taken and no ledger entry is written.
type UnknownTargetError struct {
	Kind  models.OperationKind
	Table models.Table
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("unsupported operation: %s on %q", e.Kind, e.Table)
}

// ValidationError reports a payload that cannot be translated into store
// primitives, e.g. an update without an id or a reference to a missing record.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// PartialBulkError reports a bulk operation that succeeded on some records
// and failed on others. The ledger entry records only the rows actually
// written; affected counts are actuals, never the requested count.
type PartialBulkError struct {
	Requested int
	Succeeded int
	Err       error // last underlying failure
}

func (e *PartialBulkError) Error() string {
	return fmt.Sprintf("bulk operation partially failed: %d of %d records affected: %v",
		e.Succeeded, e.Requested, e.Err)
}

func (e *PartialBulkError) Unwrap() error {
	return e.Err
}

// RevertIneligibleError reports a revert attempt on an unknown change or on
// a change that was already reverted.
type RevertIneligibleError struct {
	ID string
}

func (e *RevertIneligibleError) Error() string {
	return fmt.Sprintf("change %q cannot be reverted", e.ID)
}
