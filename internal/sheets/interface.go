package sheets

import (
	"context"

	"github.com/fundwise/steward/internal/models"
)

// ClientInterface defines the contract for the tabular store adapter.
// This interface enables mocking for testing the core package.
//
// The backing service exposes no delete primitive: a row is deleted by
// overwriting it with empty cells, and appended rows always land at the
// end of the table.
type ClientInterface interface {
	// GetRows returns all data rows of a table, including blanked ones,
	// so row indexes stay stable across deletes.
	GetRows(ctx context.Context, table models.Table) ([]models.Row, error)

	// AppendRows appends rows to the end of a table.
	AppendRows(ctx context.Context, table models.Table, rows []models.Row) error

	// UpdateRow overwrites the row at the given zero-based data row index.
	UpdateRow(ctx context.Context, table models.Table, rowIndex int, row models.Row) error

	// Ping verifies connectivity and authentication.
	Ping(ctx context.Context) error
}

// Verify that *Client implements ClientInterface at compile time
var _ ClientInterface = (*Client)(nil)
var _ ClientInterface = (*RetryClient)(nil)
var _ ClientInterface = (*MockClient)(nil)
