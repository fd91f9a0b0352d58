package decision

// Action 是风控链路中流转的交易动作。
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
	// ActionSellAll 只由止损规则产生，建议服务不会输出。
	ActionSellAll Action = "SELL_ALL"
)

// 决策被改写或在本地合成时附带的原因标记。
const (
	ReasonAdvisoryFailure   = "API_ERROR_OR_PARSE_FAILED_FALLBACK"
	ReasonOverheated        = "RSI_OVERHEATED_REJECTED"
	ReasonInsufficientFunds = "INSUFFICIENT_FUNDS_EXPOSURE_LIMIT"
	ReasonNoPosition        = "NO_POSITION_TO_SELL"
	ReasonInvalidMarketData = "INVALID_MARKET_DATA_REJECTED"
	ReasonTrailingStop      = "TRAILING_STOP"
	ReasonHardStop          = "HARD_STOP"
)

// Decision 是临时的交易指令，从不作为账本状态持久化。
type Decision struct {
	Action          Action `json:"action"`
	Reason          string `json:"reason"`
	SuggestedVolume int    `json:"suggested_volume,omitempty"`
}

// ParseAdvisoryAction 只接受建议服务允许输出的三个动作，大小写与空白都须精确匹配。
func ParseAdvisoryAction(raw string) (Action, bool) {
	switch Action(raw) {
	case ActionBuy:
		return ActionBuy, true
	case ActionSell:
		return ActionSell, true
	case ActionHold:
		return ActionHold, true
	default:
		return "", false
	}
}

// Hold 构造携带 reason 的 HOLD 决策。
func Hold(reason string) Decision {
	return Decision{Action: ActionHold, Reason: reason}
}

// Fallback 是建议服务不可信时返回的兜底决策。
func Fallback() Decision {
	return Hold(ReasonAdvisoryFailure)
}

// IsExit 判断该动作是否为平仓。
func (a Action) IsExit() bool {
	return a == ActionSell || a == ActionSellAll
}

func (a Action) String() string { return string(a) }
