package analytics

import (
	"encoding/binary"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"
)

// SeriesMode records how a performance series was produced
type SeriesMode string

const (
	SeriesDirect      SeriesMode = "direct"
	SeriesSynthesized SeriesMode = "synthesized"
	SeriesEmpty       SeriesMode = "empty"
)

// DefaultPlaceholderMonths is the length of the display placeholder series
const DefaultPlaceholderMonths = 12

var (
	// defaultSyntheticBaseline stands in for a missing average ROI
	defaultSyntheticBaseline = decimal.RequireFromString("4.5")

	jitterScale = decimal.NewFromInt(1 << 53)
	jitterShift = decimal.RequireFromString("0.5")
)

// SynthesizePerformance builds the ROI performance series.
//
// Recorded ROI points are used as-is when present. Otherwise each growth
// point becomes baseline + Jitter(userID, month index), with the baseline
// being the average ROI or 4.5. Source order is kept in both modes.
func SynthesizePerformance(
	userID string,
	roiPoints []MonthlyRoiPoint,
	growthPoints []MonthlyGrowthPoint,
	averageROI decimal.NullDecimal,
	benchmark decimal.Decimal,
) ([]PerformancePoint, SeriesMode) {
	bench := round2(benchmark)

	if len(roiPoints) > 0 {
		series := make([]PerformancePoint, len(roiPoints))
		for i, p := range roiPoints {
			series[i] = PerformancePoint{
				Month:     p.Month,
				ROI:       round2(p.RoiValue),
				Benchmark: bench,
			}
		}
		return series, SeriesDirect
	}

	if len(growthPoints) == 0 {
		return []PerformancePoint{}, SeriesEmpty
	}

	baseline := defaultSyntheticBaseline
	if averageROI.Valid {
		baseline = averageROI.Decimal
	}

	series := make([]PerformancePoint, len(growthPoints))
	for i, p := range growthPoints {
		series[i] = PerformancePoint{
			Month:     p.Month,
			ROI:       round2(baseline.Add(Jitter(userID, p.MonthIndex))),
			Benchmark: bench,
		}
	}
	return series, SeriesSynthesized
}

// Jitter returns a deterministic perturbation in [-0.5, 0.5) for a user and month
func Jitter(userID string, monthIndex int) decimal.Decimal {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(int64(monthIndex)))

	h := xxhash.New()
	_, _ = h.WriteString(userID)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(buf[:])

	return jitterFraction(h.Sum64()).Sub(jitterShift)
}

// jitterFraction maps the top 53 bits of a hash onto [0, 1), truncated to
// 8 places so the largest hash stays below 1
func jitterFraction(sum uint64) decimal.Decimal {
	q, _ := decimal.NewFromUint64(sum>>11).QuoRem(jitterScale, 8)
	return q
}

// PlaceholderSeries returns a zero ROI series of the given length, labelled
// with month abbreviations starting at January. Display layers substitute it
// for an empty performance series.
func PlaceholderSeries(months int, benchmark decimal.Decimal) []PerformancePoint {
	if months <= 0 {
		return []PerformancePoint{}
	}

	bench := round2(benchmark)
	series := make([]PerformancePoint, months)
	for i := range series {
		series[i] = PerformancePoint{
			Month:     time.Month(i%12 + 1).String()[:3],
			ROI:       0,
			Benchmark: bench,
		}
	}
	return series
}
