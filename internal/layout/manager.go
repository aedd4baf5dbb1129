package layout

import "sync"

// Manager 维护每个模式下已注册的面板、当前模板序号与布局锁。
// 每次切换请求重算一次布局，不在渲染路径上。
type Manager struct {
	mu     sync.RWMutex
	panels map[Mode][]Panel
	index  map[Mode]int
	locked bool
}

// NewManager 创建管理器并注册默认面板集。
func NewManager() *Manager {
	m := &Manager{
		panels: make(map[Mode][]Panel),
		index:  make(map[Mode]int),
	}
	m.panels[ModeSpot] = []Panel{
		{ID: "chart", Role: RoleMain},
		{ID: "order-form", Role: RoleOrderForm},
		{ID: "order-book", Role: RoleSecondary},
		{ID: "open-orders", Role: RoleBottom},
		{ID: "assets", Role: RoleBottom},
	}
	m.panels[ModeFutures] = []Panel{
		{ID: "chart", Role: RoleMain},
		{ID: "order-form", Role: RoleOrderForm},
		{ID: "order-book", Role: RoleSecondary},
		{ID: "recent-trades", Role: RoleSecondary},
		{ID: "positions", Role: RoleBottom},
		{ID: "trade-history", Role: RoleBottom},
	}
	return m
}

// Register 替换某模式的面板集并重置模板序号。
func (m *Manager) Register(mode Mode, panels []Panel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panels[mode] = append([]Panel(nil), panels...)
	m.index[mode] = 0
}

// Current 当前模板下的布局。
func (m *Manager) Current(mode Mode) (Layout, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Optimize(m.panels[mode], mode, m.index[mode])
}

// Cycle 切换到下一个模板并返回新布局。布局锁定时返回当前布局。
func (m *Manager) Cycle(mode Mode) (Layout, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.locked {
		m.index[mode] = (m.index[mode] + 1) % TemplateCount(mode, len(m.panels[mode]))
	}
	return Optimize(m.panels[mode], mode, m.index[mode])
}

// SetLocked 设置布局锁。
func (m *Manager) SetLocked(locked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked = locked
}

// Locked 布局是否锁定。
func (m *Manager) Locked() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.locked
}

// Indexes 导出各模式当前模板序号（持久化用）。
func (m *Manager) Indexes() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int, len(m.index))
	for mode, i := range m.index {
		out[string(mode)] = i
	}
	return out
}

// SetIndexes 恢复模板序号（快照恢复用）。
func (m *Manager) SetIndexes(indexes map[string]int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for mode, i := range indexes {
		if i >= 0 {
			m.index[Mode(mode)] = i
		}
	}
}
