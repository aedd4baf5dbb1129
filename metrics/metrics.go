// Package metrics provides Prometheus metrics for the trading simulator
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TicksTotal 价格 tick 总数
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradesim_ticks_total",
		Help: "Number of simulated price ticks processed",
	})

	// LastPrice 最近一次 tick 价格
	LastPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tradesim_last_price",
		Help: "Last simulated price",
	}, []string{"pair"})

	// FillsTotal 成交次数（按角色）
	FillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradesim_fills_total",
		Help: "Number of order fills",
	}, []string{"role"})

	// RejectionsTotal 拒单次数（按原因）
	RejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradesim_rejections_total",
		Help: "Number of rejected actions",
	}, []string{"reason"})

	// OpenOrders 活跃订单数
	OpenOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradesim_open_orders",
		Help: "Number of open orders",
	})

	// OpenPositions 持仓数
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradesim_open_positions",
		Help: "Number of open positions",
	})

	// WalletBalance 钱包余额（按资产与桶）
	WalletBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tradesim_wallet_balance",
		Help: "Wallet balance by asset and bucket",
	}, []string{"asset", "bucket"})

	// PositionMargin 持仓占用的保证金
	PositionMargin = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tradesim_position_margin",
		Help: "Margin committed to open positions",
	}, []string{"symbol"})

	// UnrealizedPnl 未实现盈亏
	UnrealizedPnl = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tradesim_unrealized_pnl",
		Help: "Unrealized PnL of open positions",
	}, []string{"symbol"})

	// NotificationsTotal 通知条数（按级别）
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradesim_notifications_total",
		Help: "Number of notifications emitted",
	}, []string{"level"})

	// LiquidationWarnings 强平预警次数
	LiquidationWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradesim_liquidation_warnings_total",
		Help: "Number of liquidation price breaches observed",
	})
)

// UpdateWallet 刷新某资产的余额指标
func UpdateWallet(asset string, total, available, locked float64) {
	WalletBalance.WithLabelValues(asset, "total").Set(total)
	WalletBalance.WithLabelValues(asset, "available").Set(available)
	WalletBalance.WithLabelValues(asset, "locked").Set(locked)
}

// StartMetricsServer 启动Prometheus指标服务器
func StartMetricsServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, nil)
	}()
}
