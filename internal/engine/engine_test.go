package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-sim-go/infrastructure/logger"
	"trade-sim-go/internal/notify"
	"trade-sim-go/internal/store"
)

const (
	testMaker = 0.001
	testTaker = 0.002
)

func newTestEngine(t *testing.T) (*Engine, *store.Store, *notify.Queue) {
	t.Helper()
	st := store.New(nil)
	notes := notify.NewQueue(100, 0, nil)
	eng, err := New(Config{
		Pair:            "BTC/USDT",
		MaintenanceRate: 0.005,
		MaxLeverage:     125,
		Fees:            Fees{Maker: testMaker, Taker: testTaker},
	}, st, notes, logger.Nop())
	require.NoError(t, err)
	return eng, st, notes
}

func deposit(t *testing.T, st *store.Store, asset string, amount float64) {
	t.Helper()
	require.NoError(t, st.Update(func(s *store.State) error {
		return s.Deposit(asset, amount)
	}))
}

// checkConservation 钱包守恒：每种资产 total = available + locked。
func checkConservation(t *testing.T, st *store.Store) {
	t.Helper()
	for asset, b := range st.Wallet() {
		assert.InDelta(t, b.Total, b.Available+b.Locked, 1e-9,
			"conservation broken for %s: total=%v available=%v locked=%v",
			asset, b.Total, b.Available, b.Locked)
		assert.GreaterOrEqual(t, b.Available, -1e-9, "negative available for %s", asset)
		assert.GreaterOrEqual(t, b.Locked, -1e-9, "negative locked for %s", asset)
	}
}

func TestMarketSpotBuyFillsSynchronously(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	deposit(t, st, "USDT", 1000)
	eng.OnPriceTick(100)

	o, err := eng.PlaceOrder(OrderRequest{
		Pair:   "BTC/USDT",
		Mode:   store.ModeSpot,
		Side:   store.SideBuy,
		Type:   store.TypeMarket,
		Amount: 2,
	})
	require.NoError(t, err)
	// 市价单不等下一个外部 tick，同一事务内成交
	assert.Equal(t, store.StatusFilled, o.Status)
	assert.Equal(t, o.Amount, o.Filled)

	usdt := st.Balance("USDT")
	btc := st.Balance("BTC")
	assert.InDelta(t, 800, usdt.Available, 1e-9)
	assert.InDelta(t, 0.0, usdt.Locked, 1e-9)
	assert.InDelta(t, 2*(1-testTaker), btc.Available, 1e-9)
	checkConservation(t, st)

	trades := st.Trades(0)
	require.Len(t, trades, 1)
	assert.Equal(t, store.RoleTaker, trades[0].Role)
	assert.InDelta(t, 200*testTaker, trades[0].Fee, 1e-9)
}

func TestLimitOrderFillsOnCrossingTick(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	deposit(t, st, "USDT", 1000)
	eng.OnPriceTick(100)

	o, err := eng.PlaceOrder(OrderRequest{
		Pair:   "BTC/USDT",
		Mode:   store.ModeSpot,
		Side:   store.SideBuy,
		Type:   store.TypeLimit,
		Price:  95,
		Amount: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, store.StatusOpen, o.Status)
	assert.InDelta(t, 95, st.Balance("USDT").Locked, 1e-9)

	// 高于限价不成交
	eng.OnPriceTick(96)
	got, _ := st.Order(o.ID)
	assert.Equal(t, store.StatusOpen, got.Status)

	// 跌破限价后以限价成交，挂单方为 MAKER
	eng.OnPriceTick(94)
	got, _ = st.Order(o.ID)
	assert.Equal(t, store.StatusFilled, got.Status)
	trades := st.Trades(0)
	require.Len(t, trades, 1)
	assert.Equal(t, store.RoleMaker, trades[0].Role)
	assert.InDelta(t, 95, trades[0].Price, 1e-9)
	assert.InDelta(t, 1*(1-testMaker), st.Balance("BTC").Available, 1e-9)
	checkConservation(t, st)
}

func TestInsufficientBalanceRejectsWithoutMutation(t *testing.T) {
	eng, st, notes := newTestEngine(t)
	deposit(t, st, "USDT", 100)
	eng.OnPriceTick(100)
	before := st.Wallet()

	_, err := eng.PlaceOrder(OrderRequest{
		Pair:   "BTC/USDT",
		Mode:   store.ModeSpot,
		Side:   store.SideBuy,
		Type:   store.TypeMarket,
		Amount: 2, // 名义价值 200 > 100
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)

	assert.Empty(t, st.Orders(), "rejected order must not be recorded")
	assert.Equal(t, before, st.Wallet(), "rejected order must not touch wallet")
	assert.Equal(t, 1, notes.Len(), "exactly one rejection notification")
}

func TestDegenerateAmountRejected(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	deposit(t, st, "USDT", 1000)
	eng.OnPriceTick(100)

	for _, amount := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := eng.PlaceOrder(OrderRequest{
			Pair:   "BTC/USDT",
			Mode:   store.ModeSpot,
			Side:   store.SideBuy,
			Type:   store.TypeMarket,
			Amount: amount,
		})
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %v must be rejected", amount)
	}
	assert.Empty(t, st.Orders())
}

func TestCancelIdempotence(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	deposit(t, st, "USDT", 1000)
	eng.OnPriceTick(100)

	o, err := eng.PlaceOrder(OrderRequest{
		Pair:   "BTC/USDT",
		Mode:   store.ModeSpot,
		Side:   store.SideBuy,
		Type:   store.TypeLimit,
		Price:  90,
		Amount: 1,
	})
	require.NoError(t, err)
	assert.InDelta(t, 90, st.Balance("USDT").Locked, 1e-9)

	require.NoError(t, eng.CancelOrder(o.ID))
	assert.InDelta(t, 1000, st.Balance("USDT").Available, 1e-9)
	assert.InDelta(t, 0, st.Balance("USDT").Locked, 1e-9)

	// 第二次撤单是空操作，不会二次退款
	require.NoError(t, eng.CancelOrder(o.ID))
	assert.InDelta(t, 1000, st.Balance("USDT").Available, 1e-9)
	got, _ := st.Order(o.ID)
	assert.Equal(t, store.StatusCancelled, got.Status)

	// 撤不存在的订单也是空操作
	require.NoError(t, eng.CancelOrder("no-such-order"))
	checkConservation(t, st)
}

func TestFuturesOpenAndLiquidationPrice(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	deposit(t, st, "USDT", 1000)
	eng.OnPriceTick(100)

	_, err := eng.PlaceOrder(OrderRequest{
		Pair:     "BTC/USDT",
		Mode:     store.ModeFutures,
		Side:     store.SideBuy,
		Type:     store.TypeMarket,
		Amount:   1,
		Leverage: 10,
	})
	require.NoError(t, err)

	pos, ok := st.Position("BTC/USDT")
	require.True(t, ok)
	assert.Equal(t, store.PositionLong, pos.Side)
	assert.InDelta(t, 100, pos.EntryPrice, 1e-9)
	assert.InDelta(t, 10, pos.Margin, 1e-9) // 100/10
	// entry*(1 - 1/lev + maint) = 100*(1-0.1+0.005)
	assert.InDelta(t, 90.5, pos.LiquidationPrice, 1e-9)
	checkConservation(t, st)
}

func TestEntryPriceReaveraging(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	deposit(t, st, "USDT", 1000)

	eng.OnPriceTick(100)
	_, err := eng.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Mode: store.ModeFutures, Side: store.SideBuy,
		Type: store.TypeMarket, Amount: 1, Leverage: 10,
	})
	require.NoError(t, err)

	eng.OnPriceTick(200)
	_, err = eng.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Mode: store.ModeFutures, Side: store.SideBuy,
		Type: store.TypeMarket, Amount: 1, Leverage: 10,
	})
	require.NoError(t, err)

	pos, ok := st.Position("BTC/USDT")
	require.True(t, ok)
	assert.InDelta(t, 150, pos.EntryPrice, 1e-9)
	assert.InDelta(t, 2, pos.Size, 1e-9)
	assert.InDelta(t, 30, pos.Margin, 1e-9) // 10 + 20
	checkConservation(t, st)
}

func TestReductionRealizesPnlAndReleasesMargin(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	deposit(t, st, "USDT", 1000)

	eng.OnPriceTick(100)
	_, err := eng.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Mode: store.ModeFutures, Side: store.SideBuy,
		Type: store.TypeMarket, Amount: 2, Leverage: 10,
	})
	require.NoError(t, err)
	availBefore := st.Balance("USDT").Available

	eng.OnPriceTick(110)
	_, err = eng.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Mode: store.ModeFutures, Side: store.SideSell,
		Type: store.TypeMarket, Amount: 1, Leverage: 10, ReduceOnly: true,
	})
	require.NoError(t, err)

	pos, ok := st.Position("BTC/USDT")
	require.True(t, ok)
	assert.InDelta(t, 1, pos.Size, 1e-9)
	assert.InDelta(t, 10, pos.Margin, 1e-9) // 一半保证金已释放
	assert.InDelta(t, 10, pos.RealizedPnl, 1e-9)

	// 可用余额增加 释放保证金10 + 盈亏10 - 手续费(110*taker)
	fee := 110 * testTaker
	assert.InDelta(t, availBefore+10+10-fee, st.Balance("USDT").Available, 1e-9)

	trades := st.Trades(1)
	require.Len(t, trades, 1)
	assert.InDelta(t, 10, trades[0].RealizedPnl, 1e-9)
	checkConservation(t, st)
}

func TestFullCloseDeletesPosition(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	deposit(t, st, "USDT", 1000)

	eng.OnPriceTick(100)
	_, err := eng.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Mode: store.ModeFutures, Side: store.SideBuy,
		Type: store.TypeMarket, Amount: 1, Leverage: 10,
	})
	require.NoError(t, err)
	pos, _ := st.Position("BTC/USDT")

	eng.OnPriceTick(105)
	require.NoError(t, eng.ClosePosition(pos.ID))

	_, ok := st.Position("BTC/USDT")
	assert.False(t, ok, "position must be deleted when size reaches zero")
	checkConservation(t, st)

	// 再平一次是空操作
	require.NoError(t, eng.ClosePosition(pos.ID))
}

func TestPositionUniquenessPerSymbol(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	deposit(t, st, "USDT", 10000)
	eng.OnPriceTick(100)

	for i := 0; i < 3; i++ {
		_, err := eng.PlaceOrder(OrderRequest{
			Pair: "BTC/USDT", Mode: store.ModeFutures, Side: store.SideBuy,
			Type: store.TypeMarket, Amount: 0.5, Leverage: 5,
		})
		require.NoError(t, err)
	}
	assert.Len(t, st.Positions(), 1, "same-symbol fills must merge into one position")
}

func TestOppositeFillFlipsPosition(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	deposit(t, st, "USDT", 10000)
	eng.OnPriceTick(100)

	_, err := eng.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Mode: store.ModeFutures, Side: store.SideBuy,
		Type: store.TypeMarket, Amount: 1, Leverage: 10,
	})
	require.NoError(t, err)

	// 反向 3：先平掉 1，剩余 2 反向开空
	_, err = eng.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Mode: store.ModeFutures, Side: store.SideSell,
		Type: store.TypeMarket, Amount: 3, Leverage: 10,
	})
	require.NoError(t, err)

	pos, ok := st.Position("BTC/USDT")
	require.True(t, ok)
	assert.Equal(t, store.PositionShort, pos.Side)
	assert.InDelta(t, 2, pos.Size, 1e-9)
	assert.InDelta(t, 100, pos.EntryPrice, 1e-9)
	checkConservation(t, st)
}

func TestReduceOnlyRequiresPosition(t *testing.T) {
	eng, st, notes := newTestEngine(t)
	deposit(t, st, "USDT", 1000)
	eng.OnPriceTick(100)

	_, err := eng.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Mode: store.ModeFutures, Side: store.SideSell,
		Type: store.TypeMarket, Amount: 1, Leverage: 10, ReduceOnly: true,
	})
	require.ErrorIs(t, err, ErrNoPosition)
	assert.Empty(t, st.Orders())
	assert.Equal(t, 1, notes.Len())
}

func TestReduceOnlyClampsToPositionSize(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	deposit(t, st, "USDT", 1000)
	eng.OnPriceTick(100)

	_, err := eng.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Mode: store.ModeFutures, Side: store.SideBuy,
		Type: store.TypeMarket, Amount: 1, Leverage: 10,
	})
	require.NoError(t, err)

	// reduce-only 超量只平到零，不反向开仓
	_, err = eng.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Mode: store.ModeFutures, Side: store.SideSell,
		Type: store.TypeMarket, Amount: 5, Leverage: 10, ReduceOnly: true,
	})
	require.NoError(t, err)

	_, ok := st.Position("BTC/USDT")
	assert.False(t, ok)
	checkConservation(t, st)
}

func TestRestingReduceOnlyCancelledWhenPositionGone(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	deposit(t, st, "USDT", 1000)
	eng.OnPriceTick(100)

	_, err := eng.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Mode: store.ModeFutures, Side: store.SideBuy,
		Type: store.TypeMarket, Amount: 1, Leverage: 10,
	})
	require.NoError(t, err)

	// 止盈挂单：reduce-only 限价卖，先挂着
	tp, err := eng.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Mode: store.ModeFutures, Side: store.SideSell,
		Type: store.TypeLimit, Price: 120, Amount: 1, Leverage: 10, ReduceOnly: true,
	})
	require.NoError(t, err)

	// 仓位先被市价平掉
	pos, _ := st.Position("BTC/USDT")
	require.NoError(t, eng.ClosePosition(pos.ID))
	tradesBefore := len(st.Trades(0))
	walletBefore := st.Wallet()
	statsBefore := eng.GetStatistics()

	// 价格触及挂单：无仓可减，订单必须被撤销而不是标记成交
	eng.OnPriceTick(125)

	got, _ := st.Order(tp.ID)
	assert.Equal(t, store.StatusCancelled, got.Status)
	assert.Zero(t, got.Filled)
	assert.Len(t, st.Trades(0), tradesBefore, "no trade receipt when nothing executed")
	assert.Equal(t, walletBefore, st.Wallet(), "no funds may move")
	assert.Equal(t, statsBefore.TotalFills, eng.GetStatistics().TotalFills)
	checkConservation(t, st)
}

func TestStopLimitTriggerSemantics(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	deposit(t, st, "USDT", 10000)
	eng.OnPriceTick(100)

	// 买入止损限价：价格升破 110 触发，之后按 112 限价成交
	o, err := eng.PlaceOrder(OrderRequest{
		Pair:      "BTC/USDT",
		Mode:      store.ModeSpot,
		Side:      store.SideBuy,
		Type:      store.TypeStopLimit,
		Price:     112,
		StopPrice: 110,
		Amount:    1,
	})
	require.NoError(t, err)

	// 低于限价但未触发：不能成交
	eng.OnPriceTick(105)
	got, _ := st.Order(o.ID)
	assert.Equal(t, store.StatusOpen, got.Status)
	assert.False(t, got.Triggered)

	// 升破触发价：转为普通限价单并在 111 <= 112 时成交
	eng.OnPriceTick(111)
	got, _ = st.Order(o.ID)
	assert.True(t, got.Triggered)
	assert.Equal(t, store.StatusFilled, got.Status)
	trades := st.Trades(0)
	require.Len(t, trades, 1)
	assert.InDelta(t, 112, trades[0].Price, 1e-9)
	checkConservation(t, st)
}

func TestMarkToMarketUpdatesEveryTick(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	deposit(t, st, "USDT", 1000)
	eng.OnPriceTick(100)

	_, err := eng.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Mode: store.ModeFutures, Side: store.SideBuy,
		Type: store.TypeMarket, Amount: 1, Leverage: 10,
	})
	require.NoError(t, err)

	eng.OnPriceTick(108)
	pos, _ := st.Position("BTC/USDT")
	assert.InDelta(t, 108, pos.MarkPrice, 1e-9)
	assert.InDelta(t, 8, pos.UnrealizedPnl, 1e-9)
	assert.InDelta(t, 80, pos.ROE, 1e-9) // 8/10*100

	// 没有任何成交时价格也必须更新
	eng.OnPriceTick(42)
	assert.InDelta(t, 42, st.LastPrice(), 1e-9)
}

func TestLiquidationWarningAndEnforcement(t *testing.T) {
	eng, st, notes := newTestEngine(t)
	deposit(t, st, "USDT", 1000)
	eng.OnPriceTick(100)

	_, err := eng.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Mode: store.ModeFutures, Side: store.SideBuy,
		Type: store.TypeMarket, Amount: 1, Leverage: 10,
	})
	require.NoError(t, err)

	// 默认不强平：只预警，仓位保留
	eng.OnPriceTick(90) // 低于强平价 90.5
	_, ok := st.Position("BTC/USDT")
	assert.True(t, ok, "liquidation price is informational by default")
	warned := false
	for _, n := range notes.List() {
		if n.Level == notify.LevelWarning {
			warned = true
		}
	}
	assert.True(t, warned, "expected a liquidation warning notification")

	// 打开强平开关后穿越即强制平仓
	eng.ApplyConfig(Config{EnforceLiquidation: true})
	eng.OnPriceTick(89)
	_, ok = st.Position("BTC/USDT")
	assert.False(t, ok, "enforced liquidation must close the position")
	checkConservation(t, st)
}

func TestOrderStatusNeverReverses(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	deposit(t, st, "USDT", 1000)
	eng.OnPriceTick(100)

	o, err := eng.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Mode: store.ModeSpot, Side: store.SideBuy,
		Type: store.TypeLimit, Price: 95, Amount: 1,
	})
	require.NoError(t, err)
	eng.OnPriceTick(94)
	got, _ := st.Order(o.ID)
	require.Equal(t, store.StatusFilled, got.Status)

	// 已成交订单不可撤销
	require.NoError(t, eng.CancelOrder(o.ID))
	got, _ = st.Order(o.ID)
	assert.Equal(t, store.StatusFilled, got.Status)
	assert.InDelta(t, got.Amount, got.Filled, 1e-9)

	// 之后的 tick 不会重复成交
	eng.OnPriceTick(93)
	assert.Len(t, st.Trades(0), 1)
}

func TestMarketOrderWithoutPriceRejected(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	deposit(t, st, "USDT", 1000)

	_, err := eng.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Mode: store.ModeSpot, Side: store.SideBuy,
		Type: store.TypeMarket, Amount: 1,
	})
	require.ErrorIs(t, err, ErrNoMarketPrice)
	assert.Empty(t, st.Orders())
}

func TestSpotSellSettlement(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	deposit(t, st, "BTC", 2)
	eng.OnPriceTick(100)

	_, err := eng.PlaceOrder(OrderRequest{
		Pair: "BTC/USDT", Mode: store.ModeSpot, Side: store.SideSell,
		Type: store.TypeLimit, Price: 105, Amount: 1,
	})
	require.NoError(t, err)
	assert.InDelta(t, 1, st.Balance("BTC").Locked, 1e-9)

	eng.OnPriceTick(106)
	assert.InDelta(t, 1, st.Balance("BTC").Total, 1e-9)
	assert.InDelta(t, 105*(1-testMaker), st.Balance("USDT").Available, 1e-9)
	checkConservation(t, st)
}

func TestSettingsActions(t *testing.T) {
	eng, st, _ := newTestEngine(t)

	require.NoError(t, eng.SetPair("ETH/USDT"))
	require.NoError(t, eng.SetLeverage(20))
	require.NoError(t, eng.SetMarginMode("isolated"))
	pair, lev, mode := st.Settings()
	assert.Equal(t, "ETH/USDT", pair)
	assert.Equal(t, 20, lev)
	assert.Equal(t, "isolated", mode)

	assert.Error(t, eng.SetPair("BTCUSDT"))
	assert.Error(t, eng.SetLeverage(0))
	assert.Error(t, eng.SetMarginMode("hedged"))
}
