package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/aristath/propfolio/internal/records"
	"github.com/rs/zerolog"
)

// Repository implements RecordReader over a record source
type Repository struct {
	source records.Source
	log    zerolog.Logger
}

// NewRepository creates a new analytics repository
func NewRepository(source records.Source, log zerolog.Logger) *Repository {
	return &Repository{
		source: source,
		log:    log.With().Str("repo", "analytics").Str("source", source.Name()).Logger(),
	}
}

// GetRoiSnapshot returns the user's ROI summary, or nil when there is none
func (r *Repository) GetRoiSnapshot(ctx context.Context, userID string) (*RoiSnapshot, error) {
	rec, err := r.fetchOne(ctx, records.TableRoiStats, userID)
	if err != nil || rec == nil {
		return nil, err
	}

	return &RoiSnapshot{
		AverageROI: rec.NullDecimal("average_roi"),
		RoiChange:  rec.NullDecimal("roi_change"),
	}, nil
}

// GetInvestmentSnapshot returns the user's investment summary, or nil when there is none
func (r *Repository) GetInvestmentSnapshot(ctx context.Context, userID string) (*InvestmentSnapshot, error) {
	rec, err := r.fetchOne(ctx, records.TableInvestmentStats, userID)
	if err != nil || rec == nil {
		return nil, err
	}

	return &InvestmentSnapshot{
		InvestmentChangePercentage: rec.NullDecimal("investment_change_percentage"),
	}, nil
}

// GetMonthlyRoi returns monthly ROI points in ascending month index order
func (r *Repository) GetMonthlyRoi(ctx context.Context, userID string) ([]MonthlyRoiPoint, error) {
	rows, err := r.source.Fetch(ctx, records.TableMonthlyRoi, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read monthly ROI: %w", err)
	}

	points := make([]MonthlyRoiPoint, 0, len(rows))
	for _, rec := range rows {
		idx, ok := r.monthIndex(rec, records.TableMonthlyRoi)
		if !ok {
			continue
		}
		month, _ := rec.String("month")
		points = append(points, MonthlyRoiPoint{
			Month:      month,
			MonthIndex: idx,
			RoiValue:   rec.DecimalOrZero("roi_value"),
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].MonthIndex < points[j].MonthIndex
	})

	return points, nil
}

// GetMonthlyGrowth returns monthly growth points in ascending month index order
func (r *Repository) GetMonthlyGrowth(ctx context.Context, userID string) ([]MonthlyGrowthPoint, error) {
	rows, err := r.source.Fetch(ctx, records.TableMonthlyGrowth, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read monthly growth: %w", err)
	}

	points := make([]MonthlyGrowthPoint, 0, len(rows))
	for _, rec := range rows {
		idx, ok := r.monthIndex(rec, records.TableMonthlyGrowth)
		if !ok {
			continue
		}
		month, _ := rec.String("month")
		points = append(points, MonthlyGrowthPoint{
			Month:      month,
			MonthIndex: idx,
			Value:      rec.DecimalOrZero("value"),
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].MonthIndex < points[j].MonthIndex
	})

	return points, nil
}

// GetGeoDistribution returns location shares in source order
func (r *Repository) GetGeoDistribution(ctx context.Context, userID string) ([]GeoAllocationEntry, error) {
	rows, err := r.source.Fetch(ctx, records.TableGeoDistribution, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read geographic distribution: %w", err)
	}

	entries := make([]GeoAllocationEntry, 0, len(rows))
	for _, rec := range rows {
		location, _ := rec.String("location")
		entries = append(entries, GeoAllocationEntry{
			Location:   location,
			Percentage: rec.DecimalOrZero("percentage"),
		})
	}

	return entries, nil
}

// GetEventsCount returns the attended events count, or nil when there is none
func (r *Repository) GetEventsCount(ctx context.Context, userID string) (*EventsCount, error) {
	rec, err := r.fetchOne(ctx, records.TableEventCounts, userID)
	if err != nil || rec == nil {
		return nil, err
	}

	count, ok := rec.Int("count")
	if !ok || count < 0 {
		count = 0
	}

	return &EventsCount{Count: count}, nil
}

// GetPropertyRecords returns the user's property holdings in source order
func (r *Repository) GetPropertyRecords(ctx context.Context, userID string) ([]PropertyRecord, error) {
	rows, err := r.source.Fetch(ctx, records.TablePropertyInvestments, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read property investments: %w", err)
	}

	props := make([]PropertyRecord, 0, len(rows))
	for _, rec := range rows {
		typeName, _ := rec.String("type_name")
		props = append(props, PropertyRecord{
			Price:    rec.DecimalOrZero("price"),
			TypeName: typeName,
		})
	}

	return props, nil
}

// fetchOne returns the first row of a single-row table
func (r *Repository) fetchOne(ctx context.Context, table records.Table, userID string) (records.Record, error) {
	rows, err := r.source.Fetch(ctx, table, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows) > 1 {
		r.log.Debug().
			Str("table", string(table)).
			Str("user_id", userID).
			Int("rows", len(rows)).
			Msg("Multiple rows for single-row table, using the first")
	}
	return rows[0], nil
}

func (r *Repository) monthIndex(rec records.Record, table records.Table) (int, bool) {
	idx, ok := rec.Int("month_index")
	if !ok {
		month, _ := rec.String("month")
		r.log.Warn().
			Str("table", string(table)).
			Str("month", month).
			Interface("month_index", rec["month_index"]).
			Msg("Dropping row without a usable month index")
	}
	return idx, ok
}
