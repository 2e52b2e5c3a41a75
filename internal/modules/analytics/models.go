package analytics

import (
	"github.com/shopspring/decimal"
)

// RoiSnapshot is the per-user ROI summary row
type RoiSnapshot struct {
	AverageROI decimal.NullDecimal
	RoiChange  decimal.NullDecimal
}

// InvestmentSnapshot is the per-user investment summary row
type InvestmentSnapshot struct {
	InvestmentChangePercentage decimal.NullDecimal
}

// MonthlyRoiPoint is one month of recorded ROI
type MonthlyRoiPoint struct {
	Month      string
	MonthIndex int
	RoiValue   decimal.Decimal
}

// MonthlyGrowthPoint is one month of investment growth, used when no ROI history exists
type MonthlyGrowthPoint struct {
	Month      string
	MonthIndex int
	Value      decimal.Decimal
}

// GeoAllocationEntry is a location share as pre-computed by the record source.
// Percentages are not guaranteed to sum to 100.
type GeoAllocationEntry struct {
	Location   string
	Percentage decimal.Decimal
}

// PropertyRecord is a single property holding
type PropertyRecord struct {
	Price    decimal.Decimal
	TypeName string // Empty when the source has no type
}

// EventsCount is the number of events a user attended
type EventsCount struct {
	Count int
}

// ComparisonStatus says where the portfolio sits against the market benchmark
type ComparisonStatus string

const (
	StatusAbove ComparisonStatus = "above"
	StatusBelow ComparisonStatus = "below"
)

// MetricChange is a headline value with an optional change figure.
// A nil Change serializes as null.
type MetricChange struct {
	Value  float64  `json:"value"`
	Change *float64 `json:"change"`
}

// MarketComparison is the distance between portfolio ROI and the benchmark
type MarketComparison struct {
	Value  float64          `json:"value"`
	Status ComparisonStatus `json:"status"`
}

// PerformancePoint is one month of the ROI performance chart
type PerformancePoint struct {
	Month     string  `json:"month"`
	ROI       float64 `json:"roi"`
	Benchmark float64 `json:"benchmark"`
}

// AllocationSlice is one named share of a breakdown, in percent
type AllocationSlice struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// AnalyticsData is the dashboard payload. Field names are the wire contract.
type AnalyticsData struct {
	PortfolioROI           MetricChange       `json:"portfolioROI"`
	AnnualGrowth           MetricChange       `json:"annualGrowth"`
	MarketComparison       MarketComparison   `json:"marketComparison"`
	RoiPerformance         []PerformancePoint `json:"roiPerformance"`
	AssetAllocation        []AllocationSlice  `json:"assetAllocation"`
	GeographicDistribution []AllocationSlice  `json:"geographicDistribution"`
	EventsAttended         int                `json:"eventsAttended"`
}
