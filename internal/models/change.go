package models

import "time"

// ChangeRecord is an immutable ledger entry describing one executed mutation.
// Only CanRevert is ever updated after creation.
type ChangeRecord struct {
	ID              string        `json:"id"`
	Seq             uint64        `json:"seq"` // assigned by the ledger on append
	Timestamp       time.Time     `json:"timestamp"`
	Kind            OperationKind `json:"operation_kind"`
	Table           Table         `json:"table"`
	Description     string        `json:"description"`
	BeforeData      []RowChange   `json:"before_data,omitempty"`
	AfterData       []RowChange   `json:"after_data,omitempty"`
	AffectedRecords int           `json:"affected_records"`
	CanRevert       bool          `json:"can_revert"`
	RevertData      *RevertData   `json:"revert_data,omitempty"`
}

// ShortID returns a shortened change ID for display (first 8 characters)
func (c *ChangeRecord) ShortID() string {
	if len(c.ID) > 8 {
		return c.ID[:8]
	}
	return c.ID
}

// RevertData holds the information needed to construct the inverse operation
type RevertData struct {
	Kind  OperationKind `json:"kind"`
	Table Table         `json:"table"`
	// Rows are the created rows for create/bulk_create, and the captured
	// before-state rows for update/delete and their bulk variants.
	Rows []RowChange `json:"rows"`
}
