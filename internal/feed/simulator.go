package feed

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"
)

// Tick 一次模拟价格。
type Tick struct {
	Price float64
	Ts    time.Time
}

// Simulator 合成价格源：每个周期在上一价格基础上做均匀随机扰动
// new = prev * (1 + U[-v, v])。引擎的唯一外部输入。
type Simulator struct {
	mu         sync.Mutex
	price      float64
	volatility float64
	interval   time.Duration
	rng        *rand.Rand
	subs       []chan Tick
}

// New 创建模拟器。seed 为 0 时按当前时间播种。
func New(initialPrice, volatility float64, interval time.Duration, seed int64) (*Simulator, error) {
	if initialPrice <= 0 {
		return nil, errors.New("initial price must be > 0")
	}
	if volatility <= 0 || volatility >= 1 {
		return nil, errors.New("volatility must be in (0, 1)")
	}
	if interval <= 0 {
		interval = time.Second
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulator{
		price:      initialPrice,
		volatility: volatility,
		interval:   interval,
		rng:        rand.New(rand.NewSource(seed)),
	}, nil
}

// Subscribe 返回 tick 通道。慢消费者会被丢帧而不是阻塞生产。
func (s *Simulator) Subscribe() <-chan Tick {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Tick, 1)
	s.subs = append(s.subs, ch)
	return ch
}

// Step 生成下一个价格并广播。离线回放（backtest）直接循环调用。
func (s *Simulator) Step() Tick {
	s.mu.Lock()
	u := (s.rng.Float64()*2 - 1) * s.volatility
	next := s.price * (1 + u)
	// 波动率配置在 (0,1) 内时不会出现非正价格，这里仍然兜底
	if next <= 0 {
		next = s.price
	}
	s.price = next
	tick := Tick{Price: next, Ts: time.Now()}
	subs := s.subs
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- tick:
		default:
		}
	}
	return tick
}

// Run 按固定周期产生 tick，直到 ctx 取消。
func (s *Simulator) Run(ctx context.Context) {
	s.mu.Lock()
	interval := s.interval
	s.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Step()
		}
	}
}

// Last 最近一次价格。
func (s *Simulator) Last() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.price
}

// SetVolatility 热更新波动率（配置热加载）。非法值忽略。
func (s *Simulator) SetVolatility(v float64) {
	if v <= 0 || v >= 1 {
		return
	}
	s.mu.Lock()
	s.volatility = v
	s.mu.Unlock()
}
