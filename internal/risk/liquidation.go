package risk

import (
	"sync"

	"trade-sim-go/internal/store"
)

// Breached 判定标记价是否穿过强平价：多头在价格跌破、空头在价格
// 升破强平价时触发。
func Breached(side store.PositionSide, markPrice, liquidationPrice float64) bool {
	if liquidationPrice <= 0 {
		return false
	}
	if side == store.PositionLong {
		return markPrice <= liquidationPrice
	}
	return markPrice >= liquidationPrice
}

// Monitor 跨 tick 去重的强平预警：仓位首次穿过强平线时报告一次，
// 回到安全区后复位，下次穿越重新报告。
type Monitor struct {
	mu      sync.Mutex
	alerted map[string]bool
}

// NewMonitor 创建监控器。
func NewMonitor() *Monitor {
	return &Monitor{alerted: make(map[string]bool)}
}

// Observe 上报一次观测。返回 true 表示这是一次新的穿越，应当发出预警。
func (m *Monitor) Observe(symbol string, breached bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !breached {
		delete(m.alerted, symbol)
		return false
	}
	if m.alerted[symbol] {
		return false
	}
	m.alerted[symbol] = true
	return true
}

// Forget 仓位关闭后清除记录。
func (m *Monitor) Forget(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.alerted, symbol)
}
