package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"trade-sim-go/metrics"
)

// Level 通知级别。
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelSuccess Level = "SUCCESS"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// Notification 一条用户可见通知，仅在展示期内存在，无持久化要求。
type Notification struct {
	ID      string    `json:"id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Ts      time.Time `json:"ts"`
}

// Sink 新通知回调（推送给展示层）。
type Sink func(Notification)

// Queue 有界通知队列。超出容量时丢弃最旧的一条。
type Queue struct {
	mu       sync.RWMutex
	items    []Notification
	max      int
	throttle *Throttler
	sink     Sink
	now      func() time.Time
}

// NewQueue 创建队列。max<=0 时取默认容量 50；throttleInterval<=0 关闭限流。
func NewQueue(max int, throttleInterval time.Duration, sink Sink) *Queue {
	if max <= 0 {
		max = 50
	}
	q := &Queue{
		max:  max,
		sink: sink,
		now:  time.Now,
	}
	if throttleInterval > 0 {
		q.throttle = NewThrottler(throttleInterval)
	}
	return q
}

// Push 追加一条通知。同级别同文案在限流窗口内只保留第一条，
// 被限流时返回 nil。
func (q *Queue) Push(level Level, message string) *Notification {
	if q.throttle != nil && !q.throttle.Allow(fmt.Sprintf("%s:%s", level, message)) {
		return nil
	}

	n := Notification{
		ID:      uuid.NewString(),
		Level:   level,
		Message: message,
		Ts:      q.now(),
	}

	q.mu.Lock()
	q.items = append(q.items, n)
	if len(q.items) > q.max {
		q.items = q.items[len(q.items)-q.max:]
	}
	q.mu.Unlock()

	metrics.NotificationsTotal.WithLabelValues(string(level)).Inc()
	if q.sink != nil {
		q.sink(n)
	}
	return &n
}

// Pushf 格式化追加。
func (q *Queue) Pushf(level Level, format string, args ...interface{}) *Notification {
	return q.Push(level, fmt.Sprintf(format, args...))
}

// Remove 按 id 移除（展示层关闭 toast）。不存在时为空操作。
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, n := range q.items {
		if n.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

// List 当前队列快照，最新的在前。
func (q *Queue) List() []Notification {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]Notification, len(q.items))
	for i, n := range q.items {
		out[len(q.items)-1-i] = n
	}
	return out
}

// Len 当前通知条数。
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}
