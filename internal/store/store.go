package store

import (
	"sort"
	"sync"
)

// EventSink 状态变更事件回调（日志/推送用），在互斥区外调用。
type EventSink func(event string, fields map[string]interface{})

// Store 包装 State，提供唯一的串行化变更入口。
// 所有写操作经 Update 执行，读操作返回拷贝，读者之间互不影响。
type Store struct {
	mu    sync.RWMutex
	state *State
	sink  EventSink

	events []pendingEvent
}

type pendingEvent struct {
	name   string
	fields map[string]interface{}
}

// New 创建空 Store。
func New(sink EventSink) *Store {
	return &Store{state: NewState(), sink: sink}
}

// Update 在互斥区内执行一次完整的状态变更。fn 返回错误时变更方约定不留下
// 部分写入（校验先行，变更在后）。积累的事件在解锁后派发。
func (s *Store) Update(fn func(*State) error) error {
	s.mu.Lock()
	err := fn(s.state)
	events := s.events
	s.events = nil
	s.mu.Unlock()

	if s.sink != nil {
		for _, ev := range events {
			s.sink(ev.name, ev.fields)
		}
	}
	return err
}

// Emit 在 Update 回调内登记事件，解锁后统一派发。
func (s *Store) Emit(event string, fields map[string]interface{}) {
	s.events = append(s.events, pendingEvent{name: event, fields: fields})
}

// Balance 某资产的余额快照。
func (s *Store) Balance(asset string) Balance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Wallet[asset]
}

// Wallet 全部余额快照。
func (s *Store) Wallet() map[string]Balance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Balance, len(s.state.Wallet))
	for k, v := range s.state.Wallet {
		out[k] = v
	}
	return out
}

// Order 按 id 查询订单拷贝。
func (s *Store) Order(id string) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.state.Orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Orders 全部订单，按创建时间排序。
func (s *Store) Orders() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Order, 0, len(s.state.Orders))
	for _, o := range s.state.Orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// OpenOrders 活跃订单（未到终态）。
func (s *Store) OpenOrders() []Order {
	all := s.Orders()
	out := all[:0]
	for _, o := range all {
		if !o.Status.IsTerminal() {
			out = append(out, o)
		}
	}
	return out
}

// Position 按交易对查询持仓拷贝。
func (s *Store) Position(symbol string) (Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.Positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Positions 全部持仓，按交易对排序。
func (s *Store) Positions() []Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Position, 0, len(s.state.Positions))
	for _, p := range s.state.Positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Trades 成交记录，最新的在前，最多返回 limit 条（limit<=0 表示全部）。
func (s *Store) Trades(limit int) []Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.state.Trades)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Trade, limit)
	for i := 0; i < limit; i++ {
		out[i] = s.state.Trades[n-1-i]
	}
	return out
}

// LastPrice 最近一次 tick 价格。
func (s *Store) LastPrice() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.LastPrice
}

// ActivePair 当前交易对。
func (s *Store) ActivePair() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ActivePair
}

// Settings 返回 (activePair, leverage, marginMode)。
func (s *Store) Settings() (pair string, leverage int, marginMode string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ActivePair, s.state.Leverage, s.state.MarginMode
}

// Export 导出完整状态深拷贝（快照持久化用）。
func (s *Store) Export() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := NewState()
	out.LastPrice = s.state.LastPrice
	out.ActivePair = s.state.ActivePair
	out.Leverage = s.state.Leverage
	out.MarginMode = s.state.MarginMode
	for k, v := range s.state.Wallet {
		out.Wallet[k] = v
	}
	for k, v := range s.state.Orders {
		o := *v
		out.Orders[k] = &o
	}
	for k, v := range s.state.Positions {
		p := *v
		out.Positions[k] = &p
	}
	out.Trades = append([]Trade(nil), s.state.Trades...)
	return out
}

// Import 用给定状态整体替换（快照恢复用）。
func (s *Store) Import(st *State) {
	if st == nil {
		return
	}
	if st.Wallet == nil {
		st.Wallet = make(map[string]Balance)
	}
	if st.Orders == nil {
		st.Orders = make(map[string]*Order)
	}
	if st.Positions == nil {
		st.Positions = make(map[string]*Position)
	}
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
