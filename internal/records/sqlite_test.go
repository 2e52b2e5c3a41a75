package records

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aristath/propfolio/internal/database"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecordStore(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "records.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func TestSQLiteSource_Fetch(t *testing.T) {
	db := newRecordStore(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		INSERT INTO property_investments (user_id, property_id, price, type_name) VALUES
			('u1', 'p1', 100, 'Villa'),
			('u2', 'p2', 999, 'Villa'),
			('u1', 'p3', '300.50', 'Apartment'),
			('u1', 'p4', 'unknown', NULL)`)
	require.NoError(t, err)

	src := NewSQLiteSource(db, zerolog.Nop())
	assert.Equal(t, "sqlite", src.Name())
	require.NoError(t, src.Ping(ctx))

	recs, err := src.Fetch(ctx, TablePropertyInvestments, "u1")
	require.NoError(t, err)
	require.Len(t, recs, 3)

	// Insertion order is preserved
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i], _ = r.String("property_id")
	}
	assert.Equal(t, []string{"p1", "p3", "p4"}, ids)

	price, ok := recs[1].Decimal("price")
	assert.True(t, ok)
	assert.Equal(t, "300.5", price.String())

	_, ok = recs[2].Decimal("price")
	assert.False(t, ok, "non-numeric text stays text under NUMERIC affinity")
	_, ok = recs[2].String("type_name")
	assert.False(t, ok)
}

func TestSQLiteSource_NoRows(t *testing.T) {
	db := newRecordStore(t)
	src := NewSQLiteSource(db, zerolog.Nop())

	recs, err := src.Fetch(context.Background(), TableRoiStats, "nobody")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSQLiteSource_UnknownTable(t *testing.T) {
	db := newRecordStore(t)
	src := NewSQLiteSource(db, zerolog.Nop())

	_, err := src.Fetch(context.Background(), Table("sqlite_master"), "u1")
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestSQLiteSource_CancelledContext(t *testing.T) {
	db := newRecordStore(t)
	src := NewSQLiteSource(db, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Fetch(ctx, TableMonthlyRoi, "u1")
	assert.ErrorIs(t, err, context.Canceled)
}
