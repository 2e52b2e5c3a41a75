package analytics

import (
	"context"
)

// Each reader returns nil or an empty slice when the user has no data.
// An error means the record source itself failed.

// RoiReader loads the ROI summary
type RoiReader interface {
	GetRoiSnapshot(ctx context.Context, userID string) (*RoiSnapshot, error)
}

// InvestmentReader loads the investment summary
type InvestmentReader interface {
	GetInvestmentSnapshot(ctx context.Context, userID string) (*InvestmentSnapshot, error)
}

// MonthlyRoiReader loads monthly ROI history ordered by month index
type MonthlyRoiReader interface {
	GetMonthlyRoi(ctx context.Context, userID string) ([]MonthlyRoiPoint, error)
}

// MonthlyGrowthReader loads monthly investment growth ordered by month index
type MonthlyGrowthReader interface {
	GetMonthlyGrowth(ctx context.Context, userID string) ([]MonthlyGrowthPoint, error)
}

// GeoDistributionReader loads location shares
type GeoDistributionReader interface {
	GetGeoDistribution(ctx context.Context, userID string) ([]GeoAllocationEntry, error)
}

// EventsReader loads the attended events count
type EventsReader interface {
	GetEventsCount(ctx context.Context, userID string) (*EventsCount, error)
}

// PropertyAllocationReader loads property holdings
type PropertyAllocationReader interface {
	GetPropertyRecords(ctx context.Context, userID string) ([]PropertyRecord, error)
}

// RecordReader bundles every reader the service fans out to
type RecordReader interface {
	RoiReader
	InvestmentReader
	MonthlyRoiReader
	MonthlyGrowthReader
	GeoDistributionReader
	EventsReader
	PropertyAllocationReader
}
