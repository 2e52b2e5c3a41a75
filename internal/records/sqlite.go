package records

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/propfolio/internal/utils"
	"github.com/rs/zerolog"
)

// slowQueryThreshold is the fetch time that gets logged as a warning
const slowQueryThreshold = time.Second

// SQLStore is the subset of the database wrapper the SQLite source needs
type SQLStore interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QuickCheck(ctx context.Context) error
}

// SQLiteSource reads records from the local SQLite record store
type SQLiteSource struct {
	db  SQLStore
	log zerolog.Logger
}

// NewSQLiteSource creates a source over an opened and migrated record store
func NewSQLiteSource(db SQLStore, log zerolog.Logger) *SQLiteSource {
	return &SQLiteSource{
		db:  db,
		log: log.With().Str("repo", "records_sqlite").Logger(),
	}
}

// Name returns the backend name
func (s *SQLiteSource) Name() string {
	return "sqlite"
}

// Ping checks the store is reachable
func (s *SQLiteSource) Ping(ctx context.Context) error {
	return s.db.QuickCheck(ctx)
}

// Fetch returns the user's rows from table in insertion order
func (s *SQLiteSource) Fetch(ctx context.Context, table Table, userID string) ([]Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	done := utils.MeasureDBQuery(string(table), slowQueryThreshold, s.log.With().Str("user_id", userID).Logger())

	// Table name is from the closed set checked above
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ? ORDER BY rowid", table, UserIDField)
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}

	var out []Record
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}

		rec := make(Record, len(columns))
		for i, col := range columns {
			// Driver buffers are reused between rows
			if b, ok := values[i].([]byte); ok {
				values[i] = append([]byte(nil), b...)
			}
			rec[col] = values[i]
		}
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", table, err)
	}

	done(len(out))
	return out, nil
}
