package models

import "time"

// BackupSnapshot is a full point-in-time copy of every table
type BackupSnapshot struct {
	ID          string          `json:"id"`
	Seq         uint64          `json:"seq"` // assigned by the store on put
	Timestamp   time.Time       `json:"timestamp"`
	Description string          `json:"description"`
	Size        int64           `json:"size"` // serialized byte estimate
	Tables      map[Table][]Row `json:"tables"`
}

// Info returns the snapshot's metadata without its table data
func (s *BackupSnapshot) Info() *SnapshotInfo {
	rows := 0
	for _, t := range s.Tables {
		rows += len(t)
	}
	return &SnapshotInfo{
		ID:          s.ID,
		Timestamp:   s.Timestamp,
		Description: s.Description,
		Size:        s.Size,
		RowCount:    rows,
	}
}

// SnapshotInfo is the listing view of a snapshot
type SnapshotInfo struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
	Size        int64     `json:"size"`
	RowCount    int       `json:"row_count"`
}

// Status is the aggregate pipeline state returned to callers
type Status struct {
	RecentChanges      []*ChangeRecord     `json:"recent_changes"`
	RevertableChanges  []*ChangeRecord     `json:"revertable_changes"`
	CriticalOperations []*ChangeRecord     `json:"critical_operations"`
	Snapshots          []*SnapshotInfo     `json:"snapshots"`
	PendingOperations  []*PendingOperation `json:"pending_operations"`
}

// Result is the structured outcome of a pipeline call. Failures are always
// reported here rather than propagated as faults.
type Result struct {
	Success              bool   `json:"success"`
	Message              string `json:"message"`
	ChangeID             string `json:"change_id,omitempty"`
	PendingID            string `json:"pending_id,omitempty"`
	ConfirmationRequired bool   `json:"confirmation_required,omitempty"`
	SnapshotID           string `json:"snapshot_id,omitempty"`
	AffectedRecords      int    `json:"affected_records,omitempty"`
}
