package journal

import (
	"time"

	"gorm.io/datatypes"
)

// 每行记录附带的循环名。
const (
	LoopScan = "scan"
	LoopTick = "tick"
)

// DecisionRecord 对应 'decision_log'：每个完成的扫描周期一行。
type DecisionRecord struct {
	ID              int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TraceID         string         `gorm:"column:trace_id;index;size:36" json:"trace_id"`
	Loop            string         `gorm:"column:loop;size:16" json:"loop"`
	Symbol          string         `gorm:"column:symbol;index;size:32" json:"symbol"`
	Price           float64        `gorm:"column:price" json:"price"`
	RSI             float64        `gorm:"column:rsi" json:"rsi"`
	MACDHist        float64        `gorm:"column:macd_hist" json:"macd_hist"`
	AdvisoryAction  string         `gorm:"column:advisory_action;size:16" json:"advisory_action"`
	AdvisoryReason  string         `gorm:"column:advisory_reason" json:"advisory_reason"`
	FinalAction     string         `gorm:"column:final_action;size:16" json:"final_action"`
	FinalReason     string         `gorm:"column:final_reason" json:"final_reason"`
	SuggestedVolume int            `gorm:"column:suggested_volume" json:"suggested_volume"`
	Attempts        int            `gorm:"column:attempts" json:"attempts"`
	Fallback        bool           `gorm:"column:fallback" json:"fallback"`
	LatencyMs       int64          `gorm:"column:latency_ms" json:"latency_ms"`
	Snapshot        datatypes.JSON `gorm:"column:snapshot;type:TEXT" json:"snapshot,omitempty"`
	CreatedAt       time.Time      `gorm:"column:created_at;index" json:"created_at"`
}

func (DecisionRecord) TableName() string { return "decision_log" }

// TradeRecord 对应 'trade_log'：两个循环产生的每次开仓与平仓。
type TradeRecord struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TraceID   string    `gorm:"column:trace_id;index;size:36" json:"trace_id"`
	Loop      string    `gorm:"column:loop;size:16" json:"loop"`
	Symbol    string    `gorm:"column:symbol;index;size:32" json:"symbol"`
	Action    string    `gorm:"column:action;size:16" json:"action"`
	Reason    string    `gorm:"column:reason" json:"reason"`
	Price     float64   `gorm:"column:price" json:"price"`
	Volume    int       `gorm:"column:volume" json:"volume"`
	CostPrice float64   `gorm:"column:cost_price" json:"cost_price"`
	CreatedAt time.Time `gorm:"column:created_at;index" json:"created_at"`
}

func (TradeRecord) TableName() string { return "trade_log" }
