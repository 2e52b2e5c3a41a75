package analytics

import (
	"github.com/shopspring/decimal"
)

// Metrics are the headline figures of the dashboard
type Metrics struct {
	PortfolioROI     MetricChange
	AnnualGrowth     MetricChange
	MarketComparison MarketComparison
}

// round2 rounds half away from zero to two places
func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// AggregateMetrics derives headline metrics from the summary rows.
// Nil snapshots count as absent data.
func AggregateMetrics(roi *RoiSnapshot, inv *InvestmentSnapshot, benchmark decimal.Decimal) Metrics {
	var m Metrics

	roiValue := decimal.Zero
	if roi != nil && roi.AverageROI.Valid {
		roiValue = roi.AverageROI.Decimal.Round(2)
		m.PortfolioROI.Value = roiValue.InexactFloat64()

		// A change figure is meaningless without the value it changed
		if roi.RoiChange.Valid {
			change := round2(roi.RoiChange.Decimal)
			m.PortfolioROI.Change = &change
		}
	}

	growth := 0.0
	if inv != nil && inv.InvestmentChangePercentage.Valid {
		growth = round2(inv.InvestmentChangePercentage.Decimal)
	}
	// No separate baseline exists for annual growth, so change mirrors value
	growthChange := growth
	m.AnnualGrowth = MetricChange{Value: growth, Change: &growthChange}

	diff := roiValue.Sub(benchmark)
	m.MarketComparison = MarketComparison{
		Value:  round2(diff.Abs()),
		Status: StatusBelow,
	}
	if !diff.IsNegative() {
		m.MarketComparison.Status = StatusAbove
	}

	return m
}
