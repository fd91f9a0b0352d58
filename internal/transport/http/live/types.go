package livehttp

import "time"

// PositionView 是持仓对外展示的结构，附带实时价与浮动盈亏。
type PositionView struct {
	Symbol       string   `json:"symbol"`
	CostPrice    float64  `json:"cost_price"`
	Volume       int      `json:"volume"`
	HighestPrice float64  `json:"highest_price"`
	Notional     float64  `json:"notional"`
	LastPrice    *float64 `json:"last_price,omitempty"`
	PnLPct       *float64 `json:"pnl_pct,omitempty"`
}

type PositionsResponse struct {
	TotalCapital     float64        `json:"total_capital"`
	MaxExposureRatio float64        `json:"max_exposure_ratio"`
	Exposure         float64        `json:"exposure"`
	Positions        []PositionView `json:"positions"`
}

type PriceView struct {
	Price     float64 `json:"price"`
	PctChange float64 `json:"pct_change"`
}

type PricesResponse struct {
	UpdatedAt *time.Time           `json:"updated_at,omitempty"`
	Prices    map[string]PriceView `json:"prices"`
}

// WatchlistRequest 支持整体替换或增删。
type WatchlistRequest struct {
	Symbols []string `json:"symbols"`
	Add     []string `json:"add"`
	Remove  []string `json:"remove"`
}

type WatchlistResponse struct {
	Symbols []string `json:"symbols"`
	Targets []string `json:"targets,omitempty"`
}
