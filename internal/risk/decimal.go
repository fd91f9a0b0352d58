package risk

import (
	"math"

	"github.com/shopspring/decimal"
)

var decOne = decimal.NewFromInt(1)

// dec 只接收调用方已校验过的有限值；非有限值落为 0。
func dec(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

func toFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

func finite(val float64) bool {
	return !math.IsNaN(val) && !math.IsInf(val, 0)
}

// scaled returns base * (1 + pct).
func scaled(base, pct float64) decimal.Decimal {
	return dec(base).Mul(decOne.Add(dec(pct)))
}
