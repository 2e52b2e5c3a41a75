// Package testing provides testing utilities and helpers for the propfolio project.
package testing

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/aristath/propfolio/internal/database"
	"github.com/aristath/propfolio/internal/records"
)

// NewTestDB creates a migrated record store in a temporary file.
// Returns the database and an idempotent cleanup function.
func NewTestDB(t *testing.T) (*database.DB, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "test_records_*.db")
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := database.New(database.Config{Path: tmpPath, Name: "records"})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to create test database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	closed := false
	return db, func() {
		if closed {
			return
		}
		closed = true
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database: %v", err)
		}
		for _, suffix := range []string{"", "-wal", "-shm"} {
			_ = os.Remove(tmpPath + suffix)
		}
	}
}

// InsertRows writes rows into table in one transaction. Every row gets
// userID as its user_id column; columns are taken in sorted order.
func InsertRows(t *testing.T, db *database.DB, table records.Table, userID string, rows ...records.Record) {
	t.Helper()

	if !table.Valid() {
		t.Fatalf("Unknown table %q", table)
	}

	err := database.WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		for _, row := range rows {
			cols := make([]string, 0, len(row)+1)
			for col := range row {
				if col != records.UserIDField {
					cols = append(cols, col)
				}
			}
			sort.Strings(cols)

			args := make([]interface{}, 0, len(cols)+1)
			args = append(args, userID)
			for _, col := range cols {
				args = append(args, row[col])
			}

			query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
				table,
				strings.Join(append([]string{records.UserIDField}, cols...), ", "),
				strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", "),
			)
			if _, err := tx.ExecContext(context.Background(), query, args...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to insert into %s: %v", table, err)
	}
}
