package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trade-sim-go/infrastructure/logger"
	"trade-sim-go/internal/feed"
	"trade-sim-go/internal/notify"
	"trade-sim-go/internal/risk"
	"trade-sim-go/internal/store"
	"trade-sim-go/metrics"
)

// epsilon 仓位与资金的归零容差。
const epsilon = 1e-6

// Fees 固定的 maker/taker 费率。
type Fees struct {
	Maker float64
	Taker float64
}

// Config 引擎配置。
type Config struct {
	Pair               string  // 默认交易对
	MaintenanceRate    float64 // 维持保证金率
	MaxLeverage        int
	EnforceLiquidation bool // 标记价穿过强平价时是否强制平仓
	Fees               Fees
}

// Statistics 引擎运行统计快照。
type Statistics struct {
	StartTime       time.Time
	TotalTicks      int64
	TotalFills      int64
	TotalRejections int64
	LastTickTime    time.Time
	LastFillTime    time.Time
}

// Engine 撮合引擎：对每个价格 tick 扫描活跃订单，原子地更新钱包、
// 订单与持仓，并产出成交记录。所有变更都经 store.Update 串行执行，
// 每个 tick / 用户动作是一次完整的自包含事务。
type Engine struct {
	store  *store.Store
	notes  *notify.Queue
	log    *logger.Logger
	liqMon *risk.Monitor

	cfgMu sync.RWMutex
	cfg   Config

	statsMu sync.Mutex
	stats   Statistics

	now func() time.Time
}

// New 创建引擎。
func New(cfg Config, st *store.Store, notes *notify.Queue, log *logger.Logger) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if notes == nil {
		notes = notify.NewQueue(0, 0, nil)
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.MaintenanceRate <= 0 {
		cfg.MaintenanceRate = 0.005
	}
	if cfg.MaxLeverage <= 0 {
		cfg.MaxLeverage = 125
	}
	if cfg.Fees.Maker <= 0 {
		cfg.Fees.Maker = 0.0002
	}
	if cfg.Fees.Taker <= 0 {
		cfg.Fees.Taker = 0.0004
	}
	e := &Engine{
		store:  st,
		notes:  notes,
		log:    log,
		liqMon: risk.NewMonitor(),
		cfg:    cfg,
		now:    time.Now,
	}
	e.stats.StartTime = time.Now()
	return e, nil
}

// ApplyConfig 热更新可调参数（费率、维持保证金率、强平开关）。
func (e *Engine) ApplyConfig(cfg Config) {
	e.cfgMu.Lock()
	if cfg.Fees.Maker > 0 {
		e.cfg.Fees.Maker = cfg.Fees.Maker
	}
	if cfg.Fees.Taker > 0 {
		e.cfg.Fees.Taker = cfg.Fees.Taker
	}
	if cfg.MaintenanceRate > 0 {
		e.cfg.MaintenanceRate = cfg.MaintenanceRate
	}
	e.cfg.EnforceLiquidation = cfg.EnforceLiquidation
	e.cfgMu.Unlock()
}

func (e *Engine) config() Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// Run 消费价格源直到 ctx 取消。
func (e *Engine) Run(ctx context.Context, ticks <-chan feed.Tick) {
	e.log.Info("engine started", zap.String("pair", e.config().Pair))
	for {
		select {
		case <-ctx.Done():
			e.log.Info("engine stopped")
			return
		case t, ok := <-ticks:
			if !ok {
				e.log.Info("tick channel closed")
				return
			}
			e.OnPriceTick(t.Price)
		}
	}
}

// OrderRequest 下单请求。
type OrderRequest struct {
	Pair       string           `json:"pair"`
	Mode       store.MarketMode `json:"mode"`
	Side       store.Side       `json:"side"`
	Type       store.OrderType  `json:"type"`
	Price      float64          `json:"price"`
	StopPrice  float64          `json:"stop_price"`
	Amount     float64          `json:"amount"`
	Leverage   int              `json:"leverage"`
	ReduceOnly bool             `json:"reduce_only"`
}

// PlaceOrder 校验并登记订单。校验失败时不产生任何状态变更，
// 通过返回错误和一条通知报告拒绝原因。市价单在同一事务内用当前价
// 立即执行撮合，不等待下一个外部 tick。
func (e *Engine) PlaceOrder(req OrderRequest) (*store.Order, error) {
	cfg := e.config()
	if req.Pair == "" {
		req.Pair = cfg.Pair
	}
	base, quote, ok := store.SplitPair(req.Pair)
	if !ok {
		return nil, e.reject("place_order", ErrInvalidPair, "Invalid trading pair %q", req.Pair)
	}
	if req.Mode == "" {
		req.Mode = store.ModeSpot
	}
	if req.Side != store.SideBuy && req.Side != store.SideSell {
		return nil, e.reject("place_order", ErrInvalidSide, "Invalid order side %q", req.Side)
	}
	if !store.ValidAmount(req.Amount) {
		return nil, e.reject("place_order", ErrInvalidAmount, "Invalid order amount")
	}
	needsPrice := req.Type == store.TypeLimit || req.Type == store.TypeStopLimit
	if needsPrice && !store.ValidAmount(req.Price) {
		return nil, e.reject("place_order", ErrInvalidPrice, "Invalid limit price")
	}
	if req.Type == store.TypeStopLimit && !store.ValidAmount(req.StopPrice) {
		return nil, e.reject("place_order", ErrInvalidPrice, "Invalid stop price")
	}
	if req.Type != store.TypeLimit && req.Type != store.TypeMarket && req.Type != store.TypeStopLimit {
		return nil, e.reject("place_order", ErrInvalidType, "Unsupported order type %q", req.Type)
	}
	if req.Mode == store.ModeSpot {
		req.Leverage = 1
		req.ReduceOnly = false
	} else {
		if req.Leverage == 0 {
			_, lev, _ := e.store.Settings()
			req.Leverage = lev
		}
		if req.Leverage < 1 || req.Leverage > cfg.MaxLeverage {
			return nil, e.reject("place_order", ErrInvalidLeverage, "Leverage must be between 1 and %d", cfg.MaxLeverage)
		}
	}

	var placed *store.Order
	var result tickResult
	err := e.store.Update(func(st *store.State) error {
		// 市价单以当前 tick 价锁定资金并立即成交
		refPrice := req.Price
		if req.Type == store.TypeMarket {
			if st.LastPrice <= 0 {
				return ErrNoMarketPrice
			}
			refPrice = st.LastPrice
		}
		notional := req.Amount * refPrice

		o := &store.Order{
			ID:         uuid.NewString(),
			Pair:       req.Pair,
			Mode:       req.Mode,
			Type:       req.Type,
			Side:       req.Side,
			Price:      req.Price,
			StopPrice:  req.StopPrice,
			Amount:     req.Amount,
			Total:      notional,
			Leverage:   req.Leverage,
			ReduceOnly: req.ReduceOnly,
			Status:     store.StatusOpen,
			CreatedAt:  e.now(),
		}

		// 资金占用：现货买锁计价资产名义额，现货卖锁基础资产数量，
		// 合约锁初始保证金 + 手续费预留；reduce-only 不占用资金。
		switch {
		case req.ReduceOnly:
			pos := st.Positions[req.Pair]
			if pos == nil || closingSide(pos.Side) != req.Side {
				return ErrNoPosition
			}
		case req.Mode == store.ModeSpot && req.Side == store.SideBuy:
			if err := st.Lock(quote, notional); err != nil {
				return err
			}
			o.Locked = notional
		case req.Mode == store.ModeSpot:
			if err := st.Lock(base, req.Amount); err != nil {
				return err
			}
			o.Locked = req.Amount
		default:
			lock := notional/float64(req.Leverage) + notional*e.feeRate(roleFor(req.Type))
			if err := st.Lock(quote, lock); err != nil {
				return err
			}
			o.Locked = lock
		}

		st.Orders[o.ID] = o
		placed = o

		if req.Type == store.TypeMarket {
			result = e.processTickLocked(st, st.LastPrice)
		}
		return nil
	})
	if err != nil {
		return nil, e.reject("place_order", err, "Order rejected: %v", err)
	}

	e.notes.Pushf(notify.LevelInfo, "%s %s order placed: %s %.6g %s",
		placed.Mode, placed.Type, placed.Side, placed.Amount, placed.Pair)
	e.log.Info("order placed",
		zap.String("order_id", placed.ID),
		zap.String("pair", placed.Pair),
		zap.String("side", string(placed.Side)),
		zap.String("type", string(placed.Type)),
		zap.Float64("amount", placed.Amount),
		zap.Float64("price", placed.Price),
		zap.Int("leverage", placed.Leverage),
		zap.Bool("reduce_only", placed.ReduceOnly))
	e.publishTickResult(result)
	e.updateGauges()

	out, _ := e.store.Order(placed.ID)
	return &out, nil
}

// CancelOrder 撤单。订单不存在或已到终态时为空操作（不报错、不通知），
// 因此重复撤同一单不会二次退款。
func (e *Engine) CancelOrder(orderID string) error {
	cancelled := false
	_ = e.store.Update(func(st *store.State) error {
		o, ok := st.Orders[orderID]
		if !ok || o.Status != store.StatusOpen {
			return nil
		}
		if o.Locked > 0 {
			st.Unlock(lockAsset(o), o.Locked)
			o.Locked = 0
		}
		o.Status = store.StatusCancelled
		cancelled = true
		return nil
	})
	if cancelled {
		e.notes.Pushf(notify.LevelInfo, "Order cancelled")
		e.log.Info("order cancelled", zap.String("order_id", orderID))
		e.updateGauges()
	}
	return nil
}

// ClosePosition 以市价平掉整个仓位：合成一张反方向 reduce-only 市价单
// 并走正常下单路径。仓位不存在时为空操作。
func (e *Engine) ClosePosition(positionID string) error {
	var target *store.Position
	for _, p := range e.store.Positions() {
		if p.ID == positionID || p.Symbol == positionID {
			pos := p
			target = &pos
			break
		}
	}
	if target == nil {
		return nil
	}
	_, err := e.PlaceOrder(OrderRequest{
		Pair:       target.Symbol,
		Mode:       store.ModeFutures,
		Side:       closingSide(target.Side),
		Type:       store.TypeMarket,
		Amount:     target.Size,
		Leverage:   target.Leverage,
		ReduceOnly: true,
	})
	return err
}

// Deposit 入金。
func (e *Engine) Deposit(asset string, amount float64) error {
	if asset == "" || !store.ValidAmount(amount) {
		return e.reject("deposit", ErrInvalidAmount, "Invalid deposit amount")
	}
	err := e.store.Update(func(st *store.State) error {
		return st.Deposit(asset, amount)
	})
	if err != nil {
		return e.reject("deposit", err, "Deposit rejected: %v", err)
	}
	e.notes.Pushf(notify.LevelSuccess, "Deposited %.6g %s", amount, asset)
	e.updateGauges()
	return nil
}

// SetLeverage 设置后续合约订单的默认杠杆。
func (e *Engine) SetLeverage(leverage int) error {
	if leverage < 1 || leverage > e.config().MaxLeverage {
		return e.reject("set_leverage", ErrInvalidLeverage, "Leverage must be between 1 and %d", e.config().MaxLeverage)
	}
	return e.store.Update(func(st *store.State) error {
		st.Leverage = leverage
		return nil
	})
}

// SetMarginMode 设置保证金模式（仅展示用途）。
func (e *Engine) SetMarginMode(mode string) error {
	if mode != "cross" && mode != "isolated" {
		return e.reject("set_margin_mode", ErrInvalidMode, "Unknown margin mode %q", mode)
	}
	return e.store.Update(func(st *store.State) error {
		st.MarginMode = mode
		return nil
	})
}

// SetPair 切换当前交易对。
func (e *Engine) SetPair(pair string) error {
	if _, _, ok := store.SplitPair(pair); !ok {
		return e.reject("set_pair", ErrInvalidPair, "Invalid trading pair %q", pair)
	}
	return e.store.Update(func(st *store.State) error {
		st.ActivePair = pair
		return nil
	})
}

// GetStatistics 运行统计。
func (e *Engine) GetStatistics() Statistics {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

// reject 统一的拒绝路径：通知 + 日志 + 指标，返回原错误。
func (e *Engine) reject(action string, err error, format string, args ...interface{}) error {
	reason := RejectReason(err)
	e.notes.Pushf(notify.LevelError, format, args...)
	e.log.LogReject(action, reason, nil)
	metrics.RejectionsTotal.WithLabelValues(reason).Inc()
	e.statsMu.Lock()
	e.stats.TotalRejections++
	e.statsMu.Unlock()
	return err
}

// feeRate 返回角色对应费率。
func (e *Engine) feeRate(role store.TradeRole) float64 {
	cfg := e.config()
	if role == store.RoleTaker {
		return cfg.Fees.Taker
	}
	return cfg.Fees.Maker
}

// roleFor 市价单吃单，限价/止损限价单挂单。
func roleFor(t store.OrderType) store.TradeRole {
	if t == store.TypeMarket {
		return store.RoleTaker
	}
	return store.RoleMaker
}

// closingSide 平掉某方向仓位所需的订单方向。
func closingSide(side store.PositionSide) store.Side {
	if side == store.PositionLong {
		return store.SideSell
	}
	return store.SideBuy
}

// lockAsset 订单冻结资金所在的资产。
func lockAsset(o *store.Order) string {
	base, quote, _ := store.SplitPair(o.Pair)
	if o.Mode == store.ModeSpot && o.Side == store.SideSell {
		return base
	}
	return quote
}

// updateGauges 刷新订单/持仓/钱包规模指标。
func (e *Engine) updateGauges() {
	metrics.OpenOrders.Set(float64(len(e.store.OpenOrders())))
	positions := e.store.Positions()
	metrics.OpenPositions.Set(float64(len(positions)))
	for _, p := range positions {
		metrics.PositionMargin.WithLabelValues(p.Symbol).Set(p.Margin)
		metrics.UnrealizedPnl.WithLabelValues(p.Symbol).Set(p.UnrealizedPnl)
	}
	for asset, b := range e.store.Wallet() {
		metrics.UpdateWallet(asset, b.Total, b.Available, b.Locked)
	}
}
