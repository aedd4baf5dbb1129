package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"trade-sim-go/api"
	"trade-sim-go/config"
	"trade-sim-go/infrastructure/logger"
	"trade-sim-go/internal/engine"
	"trade-sim-go/internal/feed"
	"trade-sim-go/internal/layout"
	"trade-sim-go/internal/notify"
	"trade-sim-go/internal/persist"
	"trade-sim-go/internal/store"
	"trade-sim-go/metrics"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	zl, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer func() { _ = zl.Close() }()

	if cfg.Server.MetricsAddr != "" {
		metrics.StartMetricsServer(cfg.Server.MetricsAddr)
	}

	hub := api.NewHub(zl)
	notes := notify.NewQueue(50, 3*time.Second, func(n notify.Notification) {
		hub.Broadcast("notification", n)
	})
	st := store.New(func(event string, fields map[string]interface{}) {
		hub.Broadcast(event, fields)
	})
	layouts := layout.NewManager()

	// 恢复快照；文件缺失或版本不符时以初始配置重新开始
	initialPrice := cfg.Feed.InitialPrice
	snap, err := persist.Load(cfg.Persistence.Path)
	switch {
	case err == nil:
		persist.Restore(st, snap)
		layouts.SetIndexes(snap.LayoutTemplate)
		layouts.SetLocked(snap.IsLayoutLocked)
		if snap.LastPrice > 0 {
			initialPrice = snap.LastPrice
		}
		zl.Info("state restored from snapshot",
			zap.String("path", cfg.Persistence.Path),
			zap.Time("saved_at", snap.SavedAt))
	case errors.Is(err, persist.ErrNotFound), errors.Is(err, persist.ErrVersionMismatch):
		zl.Info("starting with fresh state", zap.Error(err))
		seedState(st, cfg)
	default:
		log.Fatalf("读取快照失败: %v", err)
	}

	eng, err := engine.New(engine.Config{
		Pair:               cfg.Pair,
		MaintenanceRate:    cfg.Futures.MaintenanceRate,
		MaxLeverage:        cfg.Futures.MaxLeverage,
		EnforceLiquidation: cfg.Risk.EnforceLiquidation,
		Fees: engine.Fees{
			Maker: cfg.Fees.MakerRate,
			Taker: cfg.Fees.TakerRate,
		},
	}, st, notes, zl)
	if err != nil {
		log.Fatalf("初始化引擎失败: %v", err)
	}

	sim, err := feed.New(initialPrice, cfg.Feed.Volatility,
		time.Duration(cfg.Feed.IntervalMs)*time.Millisecond, cfg.Feed.Seed)
	if err != nil {
		log.Fatalf("初始化价格源失败: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go eng.Run(ctx, sim.Subscribe())
	go broadcastTicks(ctx, hub, sim.Subscribe())
	go sim.Run(ctx)

	// 配置热加载：费率、维持保证金率、强平开关、波动率
	go func() {
		w := config.Watcher{Path: *cfgPath}
		err := w.Start(ctx, func(next config.AppConfig) {
			eng.ApplyConfig(engine.Config{
				MaintenanceRate:    next.Futures.MaintenanceRate,
				EnforceLiquidation: next.Risk.EnforceLiquidation,
				Fees: engine.Fees{
					Maker: next.Fees.MakerRate,
					Taker: next.Fees.TakerRate,
				},
			})
			sim.SetVolatility(next.Feed.Volatility)
			zl.Info("config reloaded",
				zap.Float64("volatility", next.Feed.Volatility),
				zap.Bool("enforce_liquidation", next.Risk.EnforceLiquidation))
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			zl.Warn("config watcher stopped", zap.Error(err))
		}
	}()

	// 定期落盘
	if cfg.Persistence.IntervalSec > 0 {
		go func() {
			ticker := time.NewTicker(time.Duration(cfg.Persistence.IntervalSec) * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					saveSnapshot(zl, cfg.Persistence.Path, st, layouts)
				}
			}
		}()
	}

	srv := api.NewServer(cfg.Server.Addr, eng, st, notes, layouts, hub, zl)
	go func() {
		if err := srv.Start(); err != nil {
			zl.Error("api server failed", zap.Error(err))
			cancel()
		}
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	go watchdogLoop(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		zl.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("api shutdown failed", zap.Error(err))
	}
	saveSnapshot(zl, cfg.Persistence.Path, st, layouts)
}

// seedState 按配置初始化钱包与交易设置。
func seedState(st *store.Store, cfg config.AppConfig) {
	_ = st.Update(func(s *store.State) error {
		for asset, amount := range cfg.Wallet {
			if amount > 0 {
				if err := s.Deposit(asset, amount); err != nil {
					return err
				}
			}
		}
		s.ActivePair = cfg.Pair
		s.Leverage = cfg.Futures.DefaultLeverage
		return nil
	})
}

func saveSnapshot(zl *logger.Logger, path string, st *store.Store, layouts *layout.Manager) {
	snap := persist.Capture(st, layouts.Indexes(), layouts.Locked())
	if err := persist.Save(path, snap); err != nil {
		zl.Error("snapshot save failed", zap.String("path", path), zap.Error(err))
		return
	}
	zl.Debug("snapshot saved", zap.String("path", path))
}

// broadcastTicks 把价格流推给前端。
func broadcastTicks(ctx context.Context, hub *api.Hub, ticks <-chan feed.Tick) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-ticks:
			if !ok {
				return
			}
			hub.Broadcast("tick", map[string]interface{}{
				"price": t.Price,
				"ts":    t.Ts,
			})
		}
	}
}

// watchdogLoop systemd watchdog 心跳（未启用 watchdog 时周期为 0，直接返回）。
func watchdogLoop(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}
