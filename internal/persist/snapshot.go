package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"trade-sim-go/internal/store"
)

// SnapshotVersion 状态文件版本。结构变更时递增，旧版本文件直接弃用，
// 避免加载不兼容的数据形状。
const SnapshotVersion = 3

var (
	// ErrNotFound 状态文件不存在。
	ErrNotFound = errors.New("snapshot not found")
	// ErrVersionMismatch 状态文件版本不匹配。
	ErrVersionMismatch = errors.New("snapshot version mismatch")
)

// Snapshot 落盘的完整状态（浏览器 local storage 的本地等价物）。
type Snapshot struct {
	Version        int                      `json:"version"`
	SavedAt        time.Time                `json:"saved_at"`
	Wallet         map[string]store.Balance `json:"wallet"`
	Orders         []store.Order            `json:"orders"`
	Positions      []store.Position         `json:"positions"`
	Trades         []store.Trade            `json:"trades"`
	LastPrice      float64                  `json:"last_price"`
	ActivePair     string                   `json:"active_pair"`
	Leverage       int                      `json:"leverage"`
	MarginMode     string                   `json:"margin_mode"`
	LayoutTemplate map[string]int           `json:"layouts"` // 模式 -> 模板序号
	IsLayoutLocked bool                     `json:"is_layout_locked"`
}

// Capture 从 store 导出快照。
func Capture(s *store.Store, layoutTemplate map[string]int, layoutLocked bool) Snapshot {
	st := s.Export()
	snap := Snapshot{
		Version:        SnapshotVersion,
		SavedAt:        time.Now(),
		Wallet:         st.Wallet,
		Trades:         st.Trades,
		LastPrice:      st.LastPrice,
		ActivePair:     st.ActivePair,
		Leverage:       st.Leverage,
		MarginMode:     st.MarginMode,
		LayoutTemplate: layoutTemplate,
		IsLayoutLocked: layoutLocked,
	}
	for _, o := range st.Orders {
		snap.Orders = append(snap.Orders, *o)
	}
	for _, p := range st.Positions {
		snap.Positions = append(snap.Positions, *p)
	}
	return snap
}

// Restore 把快照写回 store。
func Restore(s *store.Store, snap Snapshot) {
	st := store.NewState()
	if snap.Wallet != nil {
		st.Wallet = snap.Wallet
	}
	for i := range snap.Orders {
		o := snap.Orders[i]
		st.Orders[o.ID] = &o
	}
	for i := range snap.Positions {
		p := snap.Positions[i]
		st.Positions[p.Symbol] = &p
	}
	st.Trades = snap.Trades
	st.LastPrice = snap.LastPrice
	st.ActivePair = snap.ActivePair
	if snap.Leverage > 0 {
		st.Leverage = snap.Leverage
	}
	if snap.MarginMode != "" {
		st.MarginMode = snap.MarginMode
	}
	s.Import(st)
}

// Save 原子落盘：先写临时文件再改名。
func Save(path string, snap Snapshot) error {
	snap.Version = SnapshotVersion
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now()
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load 读取快照。文件缺失返回 ErrNotFound，版本不符返回
// ErrVersionMismatch，两者都应由调用方以全新状态继续。
func Load(path string) (Snapshot, error) {
	var snap Snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return snap, ErrNotFound
		}
		return snap, fmt.Errorf("read snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return snap, fmt.Errorf("%w: file has v%d, want v%d", ErrVersionMismatch, snap.Version, SnapshotVersion)
	}
	return snap, nil
}
