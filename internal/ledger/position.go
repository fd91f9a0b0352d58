package ledger

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidPosition = errors.New("ledger: invalid position")
	ErrInvalidCapital  = errors.New("ledger: invalid capital state")
)

// Position 单个标的的持仓记录。存在即代表 volume > 0。
type Position struct {
	Symbol       string  `json:"-"`
	CostPrice    float64 `json:"cost_price"`
	Volume       int     `json:"volume"`
	HighestPrice float64 `json:"highest_price"`
}

func (p Position) validate() error {
	if math.IsNaN(p.CostPrice) || math.IsInf(p.CostPrice, 0) || p.CostPrice <= 0 {
		return fmt.Errorf("%w: %s cost_price=%v", ErrInvalidPosition, p.Symbol, p.CostPrice)
	}
	if p.Volume <= 0 {
		return fmt.Errorf("%w: %s volume=%d", ErrInvalidPosition, p.Symbol, p.Volume)
	}
	return nil
}

// Notional 为成本价乘以数量。
func (p Position) Notional() float64 {
	return p.CostPrice * float64(p.Volume)
}

// Capital 是进程启动时给定的固定仓位基数，交易从不修改它。
type Capital struct {
	TotalCapital     float64 `json:"total_capital"`
	MaxExposureRatio float64 `json:"max_exposure_ratio"`
}

func (c Capital) Validate() error {
	if c.TotalCapital <= 0 {
		return fmt.Errorf("%w: total_capital=%v", ErrInvalidCapital, c.TotalCapital)
	}
	if c.MaxExposureRatio <= 0 || c.MaxExposureRatio > 1 {
		return fmt.Errorf("%w: max_exposure_ratio=%v", ErrInvalidCapital, c.MaxExposureRatio)
	}
	return nil
}
