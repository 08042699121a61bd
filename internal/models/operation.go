// Package models defines the core data structures used throughout steward
// including operations, change records, snapshots, and table rows.
package models

import "time"

// OperationKind represents the type of data operation
type OperationKind string

const (
	OpCreate     OperationKind = "create"
	OpUpdate     OperationKind = "update"
	OpDelete     OperationKind = "delete"
	OpBulkCreate OperationKind = "bulk_create"
	OpBulkUpdate OperationKind = "bulk_update"
	OpBulkDelete OperationKind = "bulk_delete"
	OpEraseAll   OperationKind = "erase_all"
	OpRevert     OperationKind = "revert"
	OpBackup     OperationKind = "backup"
	OpRestore    OperationKind = "restore"
)

// IsBulk returns true for the bulk_* operation kinds
func (k OperationKind) IsBulk() bool {
	return k == OpBulkCreate || k == OpBulkUpdate || k == OpBulkDelete
}

// Valid returns true if the kind is part of the fixed operation vocabulary
func (k OperationKind) Valid() bool {
	switch k {
	case OpCreate, OpUpdate, OpDelete, OpBulkCreate, OpBulkUpdate, OpBulkDelete,
		OpEraseAll, OpRevert, OpBackup, OpRestore:
		return true
	}
	return false
}

// Revertible returns true if a successful operation of this kind can be
// undone by the revert engine. Reverts, backups, and restores are themselves
// never revertible, and erase_all can only be recovered from a snapshot.
func (k OperationKind) Revertible() bool {
	switch k {
	case OpCreate, OpUpdate, OpDelete, OpBulkCreate, OpBulkUpdate, OpBulkDelete:
		return true
	}
	return false
}

// RiskTier classifies how dangerous an operation is
type RiskTier string

const (
	RiskLow      RiskTier = "low"
	RiskMedium   RiskTier = "medium"
	RiskHigh     RiskTier = "high"
	RiskCritical RiskTier = "critical"
)

var riskRank = map[RiskTier]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// AtLeast returns true if the tier is equal to or above other
func (r RiskTier) AtLeast(other RiskTier) bool {
	return riskRank[r] >= riskRank[other]
}

// Operation is the unit of work submitted for execution
type Operation struct {
	Kind                 OperationKind  `json:"kind"`
	Table                Table          `json:"table"`
	Payload              map[string]any `json:"payload,omitempty"`
	Description          string         `json:"description"`
	RiskTier             RiskTier       `json:"risk_tier,omitempty"`
	RequiresConfirmation bool           `json:"requires_confirmation"`
}

// Command is the structured output of the command interpreter
type Command struct {
	Action               string         `json:"action"`
	Target               string         `json:"target"`
	Parameters           map[string]any `json:"parameters,omitempty"`
	Description          string         `json:"description"`
	RiskLevel            string         `json:"risk_level,omitempty"`
	RequiresConfirmation *bool          `json:"requires_confirmation,omitempty"`
}

// PendingOperation is an operation held in the confirmation gate
type PendingOperation struct {
	ID        string     `json:"id"`
	Operation *Operation `json:"operation"`
	CreatedAt time.Time  `json:"created_at"`
}

// Expired returns true if the pending operation has outlived the wait window
func (p *PendingOperation) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(p.CreatedAt) > ttl
}
