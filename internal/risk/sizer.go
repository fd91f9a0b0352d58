package risk

import (
	"github.com/shopspring/decimal"

	"quantguard/internal/market"
)

// MaxShares 返回单笔可买的最大股数：floor(totalCapital * ratio / price)。
// 预算不足一股时返回 0，调用方按资金不足处理。
func MaxShares(price, totalCapital, ratio float64) int {
	if !market.ValidPrice(price) || !market.ValidPrice(totalCapital) || !finite(ratio) || ratio <= 0 {
		return 0
	}
	budget := dec(totalCapital).Mul(dec(ratio))
	shares := budget.DivRound(dec(price), 8).Floor()
	if shares.Cmp(decimal.Zero) <= 0 {
		return 0
	}
	return int(shares.IntPart())
}
