package records

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/surrealdb/surrealdb.go"
)

// SurrealOptions configures ConnectSurreal
type SurrealOptions struct {
	URL       string
	Username  string
	Password  string
	Namespace string
	Database  string
}

// ConnectSurreal opens a SurrealDB connection, signs in, selects the
// namespace/database and defines every record table.
func ConnectSurreal(ctx context.Context, opts SurrealOptions) (*surrealdb.DB, error) {
	db, err := surrealdb.New(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": opts.Username,
		"pass": opts.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, classifySurrealError(fmt.Errorf("failed to sign in to SurrealDB: %w", err))
	}

	if err := db.Use(ctx, opts.Namespace, opts.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	// Querying an undefined table is an error in SurrealDB v2+
	for _, table := range allTables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			db.Close(ctx)
			return nil, fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}

	return db, nil
}

type surrealQueryFunc func(ctx context.Context, sql string, vars map[string]any) ([]Record, error)

// SurrealSource reads records from SurrealDB tables
type SurrealSource struct {
	query surrealQueryFunc
	log   zerolog.Logger
}

// NewSurrealSource creates a source over a connected database
func NewSurrealSource(db *surrealdb.DB, log zerolog.Logger) *SurrealSource {
	return newSurrealSource(func(ctx context.Context, sql string, vars map[string]any) ([]Record, error) {
		results, err := surrealdb.Query[[]map[string]any](ctx, db, sql, vars)
		if err != nil {
			return nil, err
		}
		if results == nil || len(*results) == 0 {
			return nil, nil
		}
		rows := (*results)[0].Result
		out := make([]Record, 0, len(rows))
		for _, row := range rows {
			out = append(out, Record(row))
		}
		return out, nil
	}, log)
}

func newSurrealSource(query surrealQueryFunc, log zerolog.Logger) *SurrealSource {
	return &SurrealSource{
		query: query,
		log:   log.With().Str("repo", "records_surrealdb").Logger(),
	}
}

// Name returns the backend name
func (s *SurrealSource) Name() string {
	return "surrealdb"
}

// Ping runs a trivial query
func (s *SurrealSource) Ping(ctx context.Context) error {
	if _, err := s.query(ctx, "RETURN true", nil); err != nil {
		return classifySurrealError(fmt.Errorf("surrealdb ping failed: %w", err))
	}
	return nil
}

// Fetch selects the user's rows from table
func (s *SurrealSource) Fetch(ctx context.Context, table Table, userID string) ([]Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	sql := "SELECT * FROM type::table($table) WHERE user_id = $user_id"
	recs, err := s.query(ctx, sql, map[string]any{
		"table":   string(table),
		"user_id": userID,
	})
	if err != nil {
		return nil, classifySurrealError(fmt.Errorf("failed to select %s: %w", table, err))
	}

	s.log.Debug().
		Str("table", string(table)).
		Str("user_id", userID).
		Int("rows", len(recs)).
		Msg("Fetched records")

	return recs, nil
}

// classifySurrealError marks authentication failures with ErrSourceCredentials.
// The driver reports them as plain RPC errors, so the message is all there is.
func classifySurrealError(err error) error {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"authentication", "not allowed", "permission", "token has expired", "invalid token"} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", ErrSourceCredentials, err)
		}
	}
	return err
}
