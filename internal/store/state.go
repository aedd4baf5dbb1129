package store

import (
	"strings"
	"time"
)

// Side 订单方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite 返回反方向。
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType 订单类型。
type OrderType string

const (
	TypeLimit     OrderType = "LIMIT"
	TypeMarket    OrderType = "MARKET"
	TypeStopLimit OrderType = "STOP_LIMIT"
)

// MarketMode 交易模式：现货或合约。
type MarketMode string

const (
	ModeSpot    MarketMode = "spot"
	ModeFutures MarketMode = "futures"
)

// PositionSide 仓位方向。
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
)

// TradeRole 成交角色：挂单成交为 MAKER，吃单成交为 TAKER。
type TradeRole string

const (
	RoleMaker TradeRole = "MAKER"
	RoleTaker TradeRole = "TAKER"
)

// Order 用户订单。仅由引擎（成交）或显式撤单修改。
type Order struct {
	ID         string      `json:"id"`
	Pair       string      `json:"pair"` // e.g. BTC/USDT
	Mode       MarketMode  `json:"mode"`
	Type       OrderType   `json:"type"`
	Side       Side        `json:"side"`
	Price      float64     `json:"price"`      // 限价；MARKET 为 0
	StopPrice  float64     `json:"stop_price"` // 触发价，仅 STOP_LIMIT
	Amount     float64     `json:"amount"`
	Filled     float64     `json:"filled"`
	Total      float64     `json:"total"` // 下单时的名义价值
	Leverage   int         `json:"leverage"`
	ReduceOnly bool        `json:"reduce_only"`
	Triggered  bool        `json:"triggered"` // STOP_LIMIT 触发后置位
	Locked     float64     `json:"locked"`    // 为该订单冻结的资金（计价或基础资产）
	Status     OrderStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Position 持仓。每个交易对同一时间至多一个，由 State.Positions 的 key 保证。
type Position struct {
	ID                string       `json:"id"`
	Symbol            string       `json:"symbol"`
	Side              PositionSide `json:"side"`
	Size              float64      `json:"size"`
	EntryPrice        float64      `json:"entry_price"` // 加仓时按量加权平均
	MarkPrice         float64      `json:"mark_price"`
	LiquidationPrice  float64      `json:"liquidation_price"`
	Leverage          int          `json:"leverage"`
	Margin            float64      `json:"margin"`
	MaintenanceMargin float64      `json:"maintenance_margin"`
	UnrealizedPnl     float64      `json:"unrealized_pnl"`
	RealizedPnl       float64      `json:"realized_pnl"`
	ROE               float64      `json:"roe"`
	OpenedAt          time.Time    `json:"opened_at"`
}

// Trade 成交回执，追加后不可变。
type Trade struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	Price       float64   `json:"price"`
	Amount      float64   `json:"amount"`
	Fee         float64   `json:"fee"`
	Role        TradeRole `json:"role"`
	RealizedPnl float64   `json:"realized_pnl"`
	Ts          time.Time `json:"ts"`
}

// Balance holds one asset's wallet buckets. Invariant: Total = Available + Locked.
// Committed position margin lives on the Position, outside all three buckets.
type Balance struct {
	Total     float64 `json:"total"`
	Available float64 `json:"available"`
	Locked    float64 `json:"locked"`
}

// State 账户全量状态。引擎在单一互斥区内对其做完整变更。
type State struct {
	Wallet     map[string]Balance   `json:"wallet"`
	Orders     map[string]*Order    `json:"orders"`
	Positions  map[string]*Position `json:"positions"` // key = symbol
	Trades     []Trade              `json:"trades"`
	LastPrice  float64              `json:"last_price"`
	ActivePair string               `json:"active_pair"`
	Leverage   int                  `json:"leverage"`
	MarginMode string               `json:"margin_mode"` // cross / isolated（仅展示）
}

// NewState 构造空状态。
func NewState() *State {
	return &State{
		Wallet:     make(map[string]Balance),
		Orders:     make(map[string]*Order),
		Positions:  make(map[string]*Position),
		Leverage:   1,
		MarginMode: "cross",
	}
}

// SplitPair 拆分 BASE/QUOTE 交易对。格式非法时返回 false。
func SplitPair(pair string) (base, quote string, ok bool) {
	i := strings.IndexByte(pair, '/')
	if i <= 0 || i >= len(pair)-1 {
		return "", "", false
	}
	return pair[:i], pair[i+1:], true
}
