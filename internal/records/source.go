// Package records provides read-only access to per-user investment records.
//
// A Source resolves (table, user id) pairs into loosely typed rows. Three
// backends exist: SQLite (the default local store), S3 objects and SurrealDB.
// Rows carry whatever numeric representation the backend produced; use the
// Record accessors to coerce them.
package records

import (
	"context"
	"errors"
	"fmt"
)

// Table names a record collection
type Table string

const (
	TableRoiStats            Table = "user_roi_stats"
	TableInvestmentStats     Table = "user_investment_stats"
	TableMonthlyRoi          Table = "monthly_roi"
	TableMonthlyGrowth       Table = "monthly_investment_growth"
	TableGeoDistribution     Table = "geographic_distribution"
	TablePropertyInvestments Table = "property_investments"
	TableEventCounts         Table = "user_event_counts"
)

// UserIDField is the column every table is filtered on
const UserIDField = "user_id"

var allTables = []Table{
	TableRoiStats,
	TableInvestmentStats,
	TableMonthlyRoi,
	TableMonthlyGrowth,
	TableGeoDistribution,
	TablePropertyInvestments,
	TableEventCounts,
}

// Tables returns every known table in a stable order
func Tables() []Table {
	out := make([]Table, len(allTables))
	copy(out, allTables)
	return out
}

// Valid reports whether t is a known table
func (t Table) Valid() bool {
	for _, known := range allTables {
		if t == known {
			return true
		}
	}
	return false
}

var (
	// ErrUnauthenticated is returned when the backend rejects the caller's identity.
	// Callers treat it as fatal rather than as missing data.
	ErrUnauthenticated = errors.New("record source rejected caller identity")

	// ErrSourceCredentials is returned when the backend rejects the service's own
	// credentials. It says nothing about the caller, so reads degrade to absent.
	ErrSourceCredentials = errors.New("record source rejected service credentials")

	// ErrUnknownTable is returned for table names outside the known set
	ErrUnknownTable = errors.New("unknown record table")
)

// Source is a read-only record backend keyed by (table, user id).
//
// Fetch returns an empty slice, not an error, when the user has no rows.
type Source interface {
	Fetch(ctx context.Context, table Table, userID string) ([]Record, error)
	Name() string
	Ping(ctx context.Context) error
}

func checkTable(t Table) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTable, string(t))
	}
	return nil
}
