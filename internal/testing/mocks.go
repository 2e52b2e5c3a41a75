package testing

import (
	"context"
	"sync"

	"github.com/aristath/propfolio/internal/records"
)

// MockRecordSource is an in-memory records.Source for testing
type MockRecordSource struct {
	mu      sync.RWMutex
	rows    map[records.Table]map[string][]records.Record
	errs    map[records.Table]error
	pingErr error
	calls   map[records.Table]int
}

// NewMockRecordSource creates an empty mock source
func NewMockRecordSource() *MockRecordSource {
	return &MockRecordSource{
		rows:  make(map[records.Table]map[string][]records.Record),
		errs:  make(map[records.Table]error),
		calls: make(map[records.Table]int),
	}
}

// SetRows sets the rows returned for a table and user
func (m *MockRecordSource) SetRows(table records.Table, userID string, rows ...records.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows[table] == nil {
		m.rows[table] = make(map[string][]records.Record)
	}
	m.rows[table][userID] = rows
}

// SetError makes every fetch from table fail with err
func (m *MockRecordSource) SetError(table records.Table, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[table] = err
}

// SetPingError sets the error returned by Ping
func (m *MockRecordSource) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingErr = err
}

// Calls returns how many times table was fetched
func (m *MockRecordSource) Calls(table records.Table) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[table]
}

// Fetch returns the configured rows or error
func (m *MockRecordSource) Fetch(ctx context.Context, table records.Table, userID string) ([]records.Record, error) {
	m.mu.Lock()
	m.calls[table]++
	err := m.errs[table]
	rows := m.rows[table][userID]
	m.mu.Unlock()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Name returns the backend name
func (m *MockRecordSource) Name() string {
	return "mock"
}

// Ping returns the configured ping error
func (m *MockRecordSource) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingErr
}
