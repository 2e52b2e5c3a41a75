package testing

import (
	"testing"

	"github.com/aristath/propfolio/internal/database"
	"github.com/aristath/propfolio/internal/records"
)

// Fixture investors
const (
	InvestorWithHistory = "3b0f6a52-2c4e-4d8b-8f0e-5a7c1d9e2b61"
	InvestorGrowthOnly  = "9d2e7c14-6a3b-4f5d-a1c8-0e4b7f2d6a93"
	InvestorEmpty       = "c5a1e9f3-7b2d-48e6-9c0a-3f6d8b1e4a27"
)

// PortfolioFixture is a full set of rows for one investor
type PortfolioFixture map[records.Table][]records.Record

// NewHistoryFixture returns an investor with recorded monthly ROI.
// Values mix numeric types the way production rows do.
func NewHistoryFixture() PortfolioFixture {
	return PortfolioFixture{
		records.TableRoiStats: {
			{"average_roi": "5.0", "roi_change": 0.456},
		},
		records.TableInvestmentStats: {
			{"investment_change_percentage": 12.345},
		},
		records.TableMonthlyRoi: {
			{"month": "Mar", "month_index": 3, "roi_value": "5.129"},
			{"month": "Jan", "month_index": 1, "roi_value": 4.1},
			{"month": "Feb", "month_index": 2, "roi_value": int64(4)},
		},
		records.TableMonthlyGrowth: {
			{"month": "Jan", "month_index": 1, "value": 1000},
		},
		records.TableGeoDistribution: {
			{"location": "Lisbon", "percentage": 60.004},
			{"location": "Porto", "percentage": "39.996"},
		},
		records.TablePropertyInvestments: {
			{"property_id": "p1", "price": 100, "type_name": "Villa"},
			{"property_id": "p2", "price": "300", "type_name": "Apartment"},
		},
		records.TableEventCounts: {
			{"count": 4},
		},
	}
}

// NewGrowthOnlyFixture returns an investor with no ROI history, only growth
func NewGrowthOnlyFixture() PortfolioFixture {
	growth := make([]records.Record, 0, 12)
	months := []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
	for i, m := range months {
		growth = append(growth, records.Record{"month": m, "month_index": i + 1, "value": 1000 + i*50})
	}

	return PortfolioFixture{
		records.TableRoiStats: {
			{"average_roi": nil, "roi_change": 1.5},
		},
		records.TableMonthlyGrowth: growth,
	}
}

// Load copies the fixture into a mock source for userID
func (f PortfolioFixture) Load(src *MockRecordSource, userID string) {
	for table, rows := range f {
		src.SetRows(table, userID, rows...)
	}
}

// Seed writes the fixture into a record store for userID
func (f PortfolioFixture) Seed(t *testing.T, db *database.DB, userID string) {
	t.Helper()
	for _, table := range records.Tables() {
		if rows := f[table]; len(rows) > 0 {
			InsertRows(t, db, table, userID, rows...)
		}
	}
}
