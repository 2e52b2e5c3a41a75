package records

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Record is a single row as produced by a Source
type Record map[string]any

// Decimal returns the field as a decimal. The second result is false when
// the field is missing, null or not numeric.
func (r Record) Decimal(field string) (decimal.Decimal, bool) {
	v, ok := r[field]
	if !ok {
		return decimal.Zero, false
	}
	return ToDecimal(v)
}

// NullDecimal returns the field as a nullable decimal
func (r Record) NullDecimal(field string) decimal.NullDecimal {
	d, ok := r.Decimal(field)
	return decimal.NullDecimal{Decimal: d, Valid: ok}
}

// DecimalOrZero returns the field as a decimal, or zero when it cannot be coerced
func (r Record) DecimalOrZero(field string) decimal.Decimal {
	d, _ := r.Decimal(field)
	return d
}

// Int returns the field as an integer. Fractional values are rejected.
func (r Record) Int(field string) (int, bool) {
	d, ok := r.Decimal(field)
	if !ok || !d.IsInteger() {
		return 0, false
	}
	if d.GreaterThan(decimal.NewFromInt(math.MaxInt32)) || d.LessThan(decimal.NewFromInt(math.MinInt32)) {
		return 0, false
	}
	return int(d.IntPart()), true
}

// String returns the field rendered as text. Null and missing fields report false.
func (r Record) String(field string) (string, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", false
	}
	return ToString(v), true
}

// ToDecimal coerces loosely typed numeric values. NaN, infinities, text
// outside the float64 range and unparseable text are rejected.
func ToDecimal(v any) (decimal.Decimal, bool) {
	d, ok := toDecimal(v)
	if !ok || math.IsInf(d.InexactFloat64(), 0) {
		return decimal.Zero, false
	}
	return d, true
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return n, true
	case *decimal.Decimal:
		if n == nil {
			return decimal.Zero, false
		}
		return *n, true
	case decimal.NullDecimal:
		return n.Decimal, n.Valid
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(n), true
	case float32:
		f := float64(n)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int8:
		return decimal.NewFromInt(int64(n)), true
	case int16:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case uint:
		return decimal.NewFromUint64(uint64(n)), true
	case uint8:
		return decimal.NewFromInt(int64(n)), true
	case uint16:
		return decimal.NewFromInt(int64(n)), true
	case uint32:
		return decimal.NewFromInt(int64(n)), true
	case uint64:
		return decimal.NewFromUint64(n), true
	case json.Number:
		return parseDecimal(n.String())
	case string:
		return parseDecimal(n)
	case []byte:
		return parseDecimal(string(n))
	case bool:
		return decimal.Zero, false
	default:
		return parseDecimal(fmt.Sprint(v))
	}
}

// parseDecimal accepts plain and percent-suffixed decimal text ("4.5", " 4.5% ")
func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ToString renders a value the way it would read in a record dump
func ToString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case decimal.Decimal:
		return s.String()
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}
