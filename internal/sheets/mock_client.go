package sheets

import (
	"context"
	"fmt"
	"sync"

	"github.com/fundwise/steward/internal/models"
)

// MockClient is an in-memory implementation of ClientInterface for testing.
type MockClient struct {
	mu sync.Mutex
	// Tables stores rows per table
	Tables map[models.Table][]models.Row
	// Err can be set to make every method return an error
	Err error
	// ReadErrs makes GetRows fail for the named tables only
	ReadErrs map[models.Table]error
	// FailAfter, when > 0, fails each write once this many writes have
	// succeeded. Used to exercise partial bulk failures.
	FailAfter int
	writes    int
	// Calls records the method names invoked, in order
	Calls []string
}

// NewMockClient creates a MockClient with empty tables.
func NewMockClient() *MockClient {
	tables := make(map[models.Table][]models.Row)
	for _, t := range models.DataTables {
		tables[t] = nil
	}
	return &MockClient{Tables: tables, FailAfter: -1}
}

// Seed replaces the rows of a table.
func (m *MockClient) Seed(table models.Table, rows []models.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tables[table] = rows
}

// Rows returns a copy of the current rows of a table.
func (m *MockClient) Rows(table models.Table) []models.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Row, len(m.Tables[table]))
	for i, r := range m.Tables[table] {
		out[i] = r.Clone()
	}
	return out
}

func (m *MockClient) failWrite() error {
	if m.FailAfter >= 0 && m.writes >= m.FailAfter {
		return &APIError{Status: 503, Op: "write", Message: "service unavailable"}
	}
	m.writes++
	return nil
}

func (m *MockClient) GetRows(ctx context.Context, table models.Table) ([]models.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "GetRows:"+string(table))
	if m.Err != nil {
		return nil, m.Err
	}
	if err := m.ReadErrs[table]; err != nil {
		return nil, err
	}
	if !table.Valid() || table == models.TableAll {
		return nil, &APIError{Status: 404, Op: "get rows", Message: fmt.Sprintf("table %q not found", table)}
	}
	out := make([]models.Row, len(m.Tables[table]))
	for i, r := range m.Tables[table] {
		out[i] = r.Clone()
	}
	return out, nil
}

func (m *MockClient) AppendRows(ctx context.Context, table models.Table, rows []models.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "AppendRows:"+string(table))
	if m.Err != nil {
		return m.Err
	}
	if err := m.failWrite(); err != nil {
		return err
	}
	for _, r := range rows {
		m.Tables[table] = append(m.Tables[table], r.Clone())
	}
	return nil
}

func (m *MockClient) UpdateRow(ctx context.Context, table models.Table, rowIndex int, row models.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "UpdateRow:"+string(table))
	if m.Err != nil {
		return m.Err
	}
	if err := m.failWrite(); err != nil {
		return err
	}
	if rowIndex < 0 || rowIndex >= len(m.Tables[table]) {
		return &APIError{Status: 404, Op: "update row", Message: fmt.Sprintf("row %d out of range", rowIndex)}
	}
	m.Tables[table][rowIndex] = row.Clone()
	return nil
}

func (m *MockClient) Ping(ctx context.Context) error {
	if m.Err != nil {
		return m.Err
	}
	return nil
}
