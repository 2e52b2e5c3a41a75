package analytics

import (
	"strings"

	"github.com/shopspring/decimal"
)

// UnknownPropertyType labels holdings without a type
const UnknownPropertyType = "Unknown"

var hundred = decimal.NewFromInt(100)

// NormalizeAssetAllocation groups holdings by property type and returns each
// group's share of the total price, in first-seen order. A non-positive total
// yields an empty breakdown and zero-sum groups are left out.
func NormalizeAssetAllocation(props []PropertyRecord) []AllocationSlice {
	totals := make(map[string]decimal.Decimal)
	var order []string
	grand := decimal.Zero

	for _, p := range props {
		name := strings.TrimSpace(p.TypeName)
		if name == "" {
			name = UnknownPropertyType
		}
		if _, seen := totals[name]; !seen {
			order = append(order, name)
		}
		totals[name] = totals[name].Add(p.Price)
		grand = grand.Add(p.Price)
	}

	out := make([]AllocationSlice, 0, len(order))
	if !grand.IsPositive() {
		return out
	}

	for _, name := range order {
		total := totals[name]
		if total.IsZero() {
			continue
		}
		out = append(out, AllocationSlice{
			Name:  name,
			Value: round2(total.Mul(hundred).Div(grand)),
		})
	}

	return out
}

// NormalizeGeographicDistribution passes location shares through with
// rounding. Shares are not re-normalized to 100.
func NormalizeGeographicDistribution(entries []GeoAllocationEntry) []AllocationSlice {
	out := make([]AllocationSlice, 0, len(entries))
	for _, e := range entries {
		out = append(out, AllocationSlice{
			Name:  e.Location,
			Value: round2(e.Percentage),
		})
	}
	return out
}
