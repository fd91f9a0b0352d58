package livehttp

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"quantguard/internal/ledger"
	"quantguard/internal/livecache"
	"quantguard/internal/store/journal"
)

type PositionReader interface {
	Snapshot() map[string]ledger.Position
	Capital() ledger.Capital
}

type PriceReader interface {
	Snapshot() map[string]livecache.Entry
	UpdatedAt() time.Time
}

type WatchlistStore interface {
	Symbols() []string
	Targets(pool []string) []string
	Replace(symbols []string) ([]string, error)
	Add(symbols ...string) ([]string, error)
	Remove(symbols ...string) ([]string, error)
}

type JournalReader interface {
	ListDecisions(ctx context.Context, symbol string, limit int) ([]journal.DecisionRecord, error)
	ListTrades(ctx context.Context, symbol string, limit int) ([]journal.TradeRecord, error)
}

// Router 暴露只读的持仓、实时价、审计日志查询，以及自选列表写入。
type Router struct {
	Positions PositionReader
	Prices    PriceReader
	Watchlist WatchlistStore
	Journal   JournalReader
	Pool      []string
	log       *slog.Logger
}

// Register 把 /api/live 路由挂载到 group。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/positions", r.handlePositions)
	group.GET("/prices", r.handlePrices)
	group.GET("/watchlist", r.handleWatchlist)
	group.POST("/watchlist", r.handleWatchlistUpdate)
	group.GET("/decisions", r.handleDecisions)
	group.GET("/trades", r.handleTrades)
}

func (r *Router) handlePositions(c *gin.Context) {
	if r.Positions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ledger unavailable"})
		return
	}
	var prices map[string]livecache.Entry
	if r.Prices != nil {
		prices = r.Prices.Snapshot()
	}
	capital := r.Positions.Capital()
	resp := PositionsResponse{
		TotalCapital:     capital.TotalCapital,
		MaxExposureRatio: capital.MaxExposureRatio,
		Positions:        []PositionView{},
	}
	for sym, pos := range r.Positions.Snapshot() {
		view := PositionView{
			Symbol:       sym,
			CostPrice:    pos.CostPrice,
			Volume:       pos.Volume,
			HighestPrice: pos.HighestPrice,
			Notional:     pos.Notional(),
		}
		if e, ok := prices[sym]; ok && e.Price > 0 {
			last := e.Price
			pnl := round2((last - pos.CostPrice) / pos.CostPrice * 100)
			view.LastPrice = &last
			view.PnLPct = &pnl
		}
		resp.Exposure += view.Notional
		resp.Positions = append(resp.Positions, view)
	}
	sort.Slice(resp.Positions, func(i, j int) bool { return resp.Positions[i].Symbol < resp.Positions[j].Symbol })
	c.JSON(http.StatusOK, resp)
}

func (r *Router) handlePrices(c *gin.Context) {
	if r.Prices == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "price cache unavailable"})
		return
	}
	resp := PricesResponse{Prices: map[string]PriceView{}}
	for sym, e := range r.Prices.Snapshot() {
		resp.Prices[sym] = PriceView{Price: e.Price, PctChange: e.PctChange}
	}
	if at := r.Prices.UpdatedAt(); !at.IsZero() {
		resp.UpdatedAt = &at
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) handleWatchlist(c *gin.Context) {
	if r.Watchlist == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "watchlist unavailable"})
		return
	}
	c.JSON(http.StatusOK, WatchlistResponse{
		Symbols: nonNil(r.Watchlist.Symbols()),
		Targets: r.Watchlist.Targets(r.Pool),
	})
}

func (r *Router) handleWatchlistUpdate(c *gin.Context) {
	if r.Watchlist == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "watchlist unavailable"})
		return
	}
	var req WatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	var (
		list []string
		err  error
	)
	switch {
	case req.Symbols != nil:
		list, err = r.Watchlist.Replace(req.Symbols)
	case len(req.Add) == 0 && len(req.Remove) == 0:
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols, add or remove is required"})
		return
	default:
		if len(req.Add) > 0 {
			list, err = r.Watchlist.Add(req.Add...)
		}
		if err == nil && len(req.Remove) > 0 {
			list, err = r.Watchlist.Remove(req.Remove...)
		}
	}
	if err != nil {
		r.log.Error("watchlist update failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	r.log.Info("watchlist updated via api", "symbols", list)
	c.JSON(http.StatusOK, WatchlistResponse{Symbols: nonNil(list), Targets: r.Watchlist.Targets(r.Pool)})
}

func (r *Router) handleDecisions(c *gin.Context) {
	if r.Journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal disabled"})
		return
	}
	symbol, limit := queryFilter(c)
	rows, err := r.Journal.ListDecisions(c.Request.Context(), symbol, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rows == nil {
		rows = []journal.DecisionRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"decisions": rows})
}

func (r *Router) handleTrades(c *gin.Context) {
	if r.Journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal disabled"})
		return
	}
	symbol, limit := queryFilter(c)
	rows, err := r.Journal.ListTrades(c.Request.Context(), symbol, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rows == nil {
		rows = []journal.TradeRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"trades": rows})
}

func queryFilter(c *gin.Context) (string, int) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol")))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if limit < 0 {
		limit = 0
	}
	return symbol, limit
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
