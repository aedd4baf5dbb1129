package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"trade-sim-go/infrastructure/logger"
	"trade-sim-go/internal/engine"
	"trade-sim-go/internal/feed"
	"trade-sim-go/internal/notify"
	"trade-sim-go/internal/store"
)

// 离线确定性回放：固定随机种子跑 N 个 tick，中途按脚本下单，
// 结束后打印成交与资金汇总。不起任何定时器，完整覆盖撮合路径。
func main() {
	ticks := flag.Int("ticks", 3600, "tick 数量")
	seed := flag.Int64("seed", 42, "随机种子")
	price := flag.Float64("price", 43000, "初始价格")
	volatility := flag.Float64("volatility", 0.002, "每 tick 最大相对扰动")
	deposit := flag.Float64("deposit", 10000, "初始 USDT 入金")
	leverage := flag.Int("leverage", 10, "合约杠杆")
	flag.Parse()

	st := store.New(nil)
	notes := notify.NewQueue(200, 0, nil)
	eng, err := engine.New(engine.Config{Pair: "BTC/USDT"}, st, notes, logger.Nop())
	if err != nil {
		log.Fatalf("初始化引擎失败: %v", err)
	}
	sim, err := feed.New(*price, *volatility, time.Second, *seed)
	if err != nil {
		log.Fatalf("初始化价格源失败: %v", err)
	}

	_ = st.Update(func(s *store.State) error {
		s.ActivePair = "BTC/USDT"
		s.Leverage = *leverage
		return s.Deposit("USDT", *deposit)
	})

	// 先喂一个 tick 建立市场价
	eng.OnPriceTick(sim.Last())

	// 脚本：开多仓，然后在入场价上下各挂一张限价单
	if _, err := eng.PlaceOrder(engine.OrderRequest{
		Pair:   "BTC/USDT",
		Mode:   store.ModeFutures,
		Side:   store.SideBuy,
		Type:   store.TypeMarket,
		Amount: 0.05,
	}); err != nil {
		log.Fatalf("开仓失败: %v", err)
	}
	entry := st.LastPrice()
	_, _ = eng.PlaceOrder(engine.OrderRequest{
		Pair:   "BTC/USDT",
		Mode:   store.ModeFutures,
		Side:   store.SideSell,
		Type:   store.TypeLimit,
		Price:  entry * 1.01,
		Amount: 0.05,
	})
	_, _ = eng.PlaceOrder(engine.OrderRequest{
		Pair:   "BTC/USDT",
		Mode:   store.ModeFutures,
		Side:   store.SideBuy,
		Type:   store.TypeLimit,
		Price:  entry * 0.99,
		Amount: 0.05,
	})

	for i := 0; i < *ticks; i++ {
		t := sim.Step()
		eng.OnPriceTick(t.Price)
	}

	report(st, eng, entry)
}

func report(st *store.Store, eng *engine.Engine, entry float64) {
	stats := eng.GetStatistics()
	fmt.Printf("ticks=%d fills=%d rejections=%d\n", stats.TotalTicks, stats.TotalFills, stats.TotalRejections)
	fmt.Printf("entry=%.2f last=%.2f\n", entry, st.LastPrice())

	var realized, fees float64
	for _, t := range st.Trades(0) {
		realized += t.RealizedPnl
		fees += t.Fee
		fmt.Printf("trade %-5s %-6s amount=%.4f price=%.2f fee=%.4f pnl=%.4f\n",
			t.Side, t.Role, t.Amount, t.Price, t.Fee, t.RealizedPnl)
	}
	fmt.Printf("realized_pnl=%.4f fees=%.4f\n", realized, fees)

	for _, p := range st.Positions() {
		fmt.Printf("position %s %s size=%.4f entry=%.2f upnl=%.4f roe=%.2f%% liq=%.2f\n",
			p.Symbol, p.Side, p.Size, p.EntryPrice, p.UnrealizedPnl, p.ROE, p.LiquidationPrice)
	}
	for asset, b := range st.Wallet() {
		fmt.Printf("wallet %s total=%.4f available=%.4f locked=%.4f\n",
			asset, b.Total, b.Available, b.Locked)
	}
}
