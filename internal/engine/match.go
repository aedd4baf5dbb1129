package engine

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trade-sim-go/internal/notify"
	"trade-sim-go/internal/risk"
	"trade-sim-go/internal/store"
	"trade-sim-go/metrics"
)

// tickResult 一次撮合事务的产出，在互斥区外统一派发。
type tickResult struct {
	price     float64
	fills     []store.Trade
	triggered []store.Order
	cancelled []store.Order
	liqWarn   []store.Position
	forced    []store.Trade
}

// OnPriceTick 核心撮合入口：对一个新价格执行一次完整事务，
// 扫描活跃订单、结算可成交者、对剩余持仓重新估值、检查强平线，
// 最后无条件更新当前价。
func (e *Engine) OnPriceTick(price float64) {
	if !store.ValidAmount(price) {
		return
	}
	var result tickResult
	_ = e.store.Update(func(st *store.State) error {
		result = e.processTickLocked(st, price)
		return nil
	})

	metrics.TicksTotal.Inc()
	metrics.LastPrice.WithLabelValues(e.config().Pair).Set(price)
	e.statsMu.Lock()
	e.stats.TotalTicks++
	e.stats.LastTickTime = e.now()
	e.statsMu.Unlock()

	e.publishTickResult(result)
	e.updateGauges()
}

// processTickLocked 在 store 互斥区内执行撮合。调用方保证串行。
func (e *Engine) processTickLocked(st *store.State, price float64) tickResult {
	result := tickResult{price: price}

	for _, o := range openOrdersSorted(st) {
		// 止损限价单先判定触发：BUY 在价格升破触发价、SELL 在跌破触发价后转为普通限价单
		if o.Type == store.TypeStopLimit && !o.Triggered {
			if (o.Side == store.SideBuy && price >= o.StopPrice) ||
				(o.Side == store.SideSell && price <= o.StopPrice) {
				o.Triggered = true
				result.triggered = append(result.triggered, *o)
			} else {
				continue
			}
		}
		if !eligible(o, price) {
			continue
		}
		trade, ok := e.settleFillLocked(st, o, price)
		if !ok {
			result.cancelled = append(result.cancelled, *o)
			continue
		}
		result.fills = append(result.fills, trade)
	}

	e.markToMarketLocked(st, price)

	// 强平检查：独立于撮合的 tick 级附加检查
	cfg := e.config()
	for _, symbol := range symbolsSorted(st) {
		pos := st.Positions[symbol]
		breached := risk.Breached(pos.Side, price, pos.LiquidationPrice)
		if e.liqMon.Observe(symbol, breached) {
			result.liqWarn = append(result.liqWarn, *pos)
		}
		if breached && cfg.EnforceLiquidation {
			if trade, ok := e.forceCloseLocked(st, pos, price); ok {
				result.forced = append(result.forced, trade)
				e.liqMon.Forget(symbol)
			}
		}
	}
	if len(result.forced) > 0 {
		e.markToMarketLocked(st, price)
	}

	st.LastPrice = price
	return result
}

// eligible 成交资格：市价单总是成交；买限价在 price <= 限价、
// 卖限价在 price >= 限价时成交。
func eligible(o *store.Order, price float64) bool {
	switch o.Type {
	case store.TypeMarket:
		return true
	case store.TypeLimit, store.TypeStopLimit:
		if o.Side == store.SideBuy {
			return price <= o.Price
		}
		return price >= o.Price
	default:
		return false
	}
}

// settleFillLocked 结算一笔完整成交（不建模部分成交：成交量恒等于
// 订单量）。释放订单占用的资金，按现货/合约规则入账，标记订单 FILLED
// 并追加成交记录。挂着的 reduce-only 订单在仓位已被其他订单平掉后
// 无可减之仓：撤销订单而不是记一笔没有发生过的成交，返回 false。
func (e *Engine) settleFillLocked(st *store.State, o *store.Order, tickPrice float64) (store.Trade, bool) {
	if o.ReduceOnly {
		pos := st.Positions[o.Pair]
		if pos == nil || closingSide(pos.Side) != o.Side {
			o.Status = store.StatusCancelled
			return store.Trade{}, false
		}
	}

	fillPrice := o.Price
	if o.Type == store.TypeMarket {
		fillPrice = tickPrice
	}
	role := roleFor(o.Type)
	rate := e.feeRate(role)

	var fee, realized float64
	if o.Mode == store.ModeSpot {
		fee = e.settleSpotLocked(st, o, fillPrice, rate)
	} else {
		fee, realized = e.settleFuturesLocked(st, o, fillPrice, rate)
	}

	o.Filled = o.Amount
	o.Locked = 0
	o.Status = store.StatusFilled

	trade := store.Trade{
		ID:          uuid.NewString(),
		OrderID:     o.ID,
		Symbol:      o.Pair,
		Side:        o.Side,
		Price:       fillPrice,
		Amount:      o.Amount,
		Fee:         fee,
		Role:        role,
		RealizedPnl: realized,
		Ts:          e.now(),
	}
	st.Trades = append(st.Trades, trade)
	e.store.Emit("fill", map[string]interface{}{
		"order_id": o.ID,
		"symbol":   o.Pair,
		"side":     string(o.Side),
		"price":    fillPrice,
		"amount":   o.Amount,
		"fee":      fee,
	})
	return trade, true
}

// settleSpotLocked 现货交割。买入：释放冻结的名义额，基础资产按
// (1-费率) 入账，限价与实际成交价之间的差额退回计价资产可用余额。
// 卖出：释放冻结的基础资产，计价资产按成交额*(1-费率) 入账。
func (e *Engine) settleSpotLocked(st *store.State, o *store.Order, fillPrice, rate float64) float64 {
	base, quote, _ := store.SplitPair(o.Pair)
	fillValue := o.Amount * fillPrice
	fee := fillValue * rate

	if o.Side == store.SideBuy {
		st.SpendLocked(quote, o.Locked)
		if refund := o.Locked - fillValue; refund > epsilon {
			st.Credit(quote, refund)
		}
		st.Credit(base, o.Amount*(1-rate))
	} else {
		st.SpendLocked(base, o.Locked)
		st.Credit(quote, fillValue*(1-rate))
	}
	return fee
}

// settleFuturesLocked 合约交割。无持仓则开仓；同向加仓按量加权平均
// 入场价并追加保证金；反向先按 min(持仓量, 订单量) 减仓，实现盈亏并
// 按比例释放保证金，剩余量再反向开仓（reduce-only 订单不开仓）。
// 仓位缩到容差以内即删除。
func (e *Engine) settleFuturesLocked(st *store.State, o *store.Order, fillPrice, rate float64) (fee, realized float64) {
	_, quote, _ := store.SplitPair(o.Pair)

	// 下单时冻结的保证金+手续费预留整体移出钱包，下面按去向逐项归还
	lock := o.Locked
	st.SpendLocked(quote, lock)

	remaining := o.Amount
	pos := st.Positions[o.Pair]

	if pos != nil && closingSide(pos.Side) == o.Side {
		closeAmount := math.Min(pos.Size, remaining)
		closeValue := closeAmount * fillPrice
		feeClose := closeValue * rate

		pnl := (fillPrice - pos.EntryPrice) * closeAmount
		if pos.Side == store.PositionShort {
			pnl = (pos.EntryPrice - fillPrice) * closeAmount
		}
		share := pos.Margin * closeAmount / pos.Size

		// 亏损吞掉全部保证金份额时不再倒扣钱包（仓位破产即归零）
		if proceeds := share + pnl - feeClose; proceeds > 0 {
			st.Credit(quote, proceeds)
		}
		// 订单为平仓部分预留的资金原路退回
		if lock > 0 {
			refund := lock * closeAmount / o.Amount
			st.Credit(quote, refund)
			lock -= refund
		}

		pos.Size -= closeAmount
		pos.Margin -= share
		pos.RealizedPnl += pnl
		realized = pnl
		fee += feeClose
		remaining -= closeAmount

		if pos.Size <= epsilon {
			delete(st.Positions, o.Pair)
			pos = nil
		}
	}

	if remaining > epsilon && !o.ReduceOnly {
		openValue := remaining * fillPrice
		margin := openValue / float64(o.Leverage)
		feeOpen := openValue * rate

		if pos == nil {
			side := store.PositionLong
			if o.Side == store.SideSell {
				side = store.PositionShort
			}
			st.Positions[o.Pair] = &store.Position{
				ID:         uuid.NewString(),
				Symbol:     o.Pair,
				Side:       side,
				Size:       remaining,
				EntryPrice: fillPrice,
				Leverage:   o.Leverage,
				Margin:     margin,
				OpenedAt:   e.now(),
			}
		} else {
			// 同向加仓：入场价按量加权平均
			total := pos.Size + remaining
			pos.EntryPrice = (pos.Size*pos.EntryPrice + remaining*fillPrice) / total
			pos.Size = total
			pos.Margin += margin
		}

		// 预留超出实际占用的部分（价格改善）退回可用余额
		if leftover := lock - margin - feeOpen; leftover > epsilon {
			st.Credit(quote, leftover)
		}
		fee += feeOpen
	}

	return fee, realized
}

// markToMarketLocked 对全部持仓重新估值：标记价、未实现盈亏、ROE、
// 强平价与维持保证金。
func (e *Engine) markToMarketLocked(st *store.State, price float64) {
	maint := e.config().MaintenanceRate
	for _, p := range st.Positions {
		p.MarkPrice = price
		if p.Side == store.PositionLong {
			p.UnrealizedPnl = (price - p.EntryPrice) * p.Size
		} else {
			p.UnrealizedPnl = (p.EntryPrice - price) * p.Size
		}
		if p.Margin > 0 {
			p.ROE = p.UnrealizedPnl / p.Margin * 100
		}
		lev := float64(p.Leverage)
		if p.Side == store.PositionLong {
			p.LiquidationPrice = p.EntryPrice * (1 - 1/lev + maint)
		} else {
			p.LiquidationPrice = p.EntryPrice * (1 + 1/lev - maint)
		}
		p.MaintenanceMargin = p.Size * price * maint
	}
}

// symbolsSorted 持仓交易对按字典序排列，保证检查顺序确定。
func symbolsSorted(st *store.State) []string {
	out := make([]string, 0, len(st.Positions))
	for symbol := range st.Positions {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// forceCloseLocked 强制平仓：合成一张已成交的 reduce-only 市价单走
// 正常交割路径，保证账本不变量与普通平仓一致。
func (e *Engine) forceCloseLocked(st *store.State, pos *store.Position, price float64) (store.Trade, bool) {
	if pos == nil || pos.Size <= epsilon {
		return store.Trade{}, false
	}
	o := &store.Order{
		ID:         uuid.NewString(),
		Pair:       pos.Symbol,
		Mode:       store.ModeFutures,
		Type:       store.TypeMarket,
		Side:       closingSide(pos.Side),
		Amount:     pos.Size,
		Total:      pos.Size * price,
		Leverage:   pos.Leverage,
		ReduceOnly: true,
		Status:     store.StatusOpen,
		CreatedAt:  e.now(),
	}
	st.Orders[o.ID] = o
	return e.settleFillLocked(st, o, price)
}

// publishTickResult 在互斥区外派发通知、日志与成交指标。
func (e *Engine) publishTickResult(r tickResult) {
	for _, o := range r.triggered {
		e.notes.Pushf(notify.LevelInfo, "Stop order triggered: %s %.6g %s @ %.6g",
			o.Side, o.Amount, o.Pair, o.Price)
	}
	for _, o := range r.cancelled {
		e.notes.Pushf(notify.LevelInfo, "Reduce-only order cancelled: %s position already closed", o.Pair)
		e.log.Info("reduce-only order cancelled, position gone",
			zap.String("order_id", o.ID),
			zap.String("pair", o.Pair))
	}
	for _, t := range r.fills {
		metrics.FillsTotal.WithLabelValues(string(t.Role)).Inc()
		e.notes.Pushf(notify.LevelSuccess, "Order filled: %s %.6g %s @ %.6g",
			t.Side, t.Amount, t.Symbol, t.Price)
		e.log.LogFill(t.OrderID, t.Symbol, string(t.Side), t.Price, t.Amount, t.Fee)
	}
	for _, p := range r.liqWarn {
		metrics.LiquidationWarnings.Inc()
		e.notes.Pushf(notify.LevelWarning, "%s %s position crossed liquidation price %.6g",
			p.Symbol, p.Side, p.LiquidationPrice)
	}
	for _, t := range r.forced {
		metrics.FillsTotal.WithLabelValues(string(t.Role)).Inc()
		e.notes.Pushf(notify.LevelError, "Position liquidated: %s %.6g %s @ %.6g",
			t.Side, t.Amount, t.Symbol, t.Price)
		e.log.Warn("position liquidated",
			zap.String("symbol", t.Symbol),
			zap.Float64("price", t.Price),
			zap.Float64("amount", t.Amount))
	}
	if n := len(r.fills) + len(r.forced); n > 0 {
		e.statsMu.Lock()
		e.stats.TotalFills += int64(n)
		e.stats.LastFillTime = e.now()
		e.statsMu.Unlock()
	}
}

// openOrdersSorted 互斥区内取活跃订单，按创建时间排序保证撮合顺序确定。
func openOrdersSorted(st *store.State) []*store.Order {
	out := make([]*store.Order, 0, len(st.Orders))
	for _, o := range st.Orders {
		if o.Status == store.StatusOpen {
			out = append(out, o)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && less(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func less(a, b *store.Order) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}
