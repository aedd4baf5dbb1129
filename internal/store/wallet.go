package store

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInsufficientBalance 可用余额不足。
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidAmount 数量非法（<=0、NaN、Inf）。
	ErrInvalidAmount = errors.New("invalid amount")
)

// ValidAmount 拒绝 NaN/Inf/非正数，所有用户输入在进入账本运算前必须通过。
func ValidAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// Balance 以下操作维持不变量 Total = Available + Locked，
// Available >= 0，Locked >= 0。

// Deposit 入金：增加可用余额。
func (st *State) Deposit(asset string, amount float64) error {
	if !ValidAmount(amount) {
		return ErrInvalidAmount
	}
	b := st.Wallet[asset]
	b.Available += amount
	b.Total += amount
	st.Wallet[asset] = b
	return nil
}

// Lock 将 amount 从可用转入冻结（下单占用）。
func (st *State) Lock(asset string, amount float64) error {
	if !ValidAmount(amount) {
		return ErrInvalidAmount
	}
	b := st.Wallet[asset]
	if b.Available < amount {
		return fmt.Errorf("%w: need %.8f %s, available %.8f", ErrInsufficientBalance, amount, asset, b.Available)
	}
	b.Available -= amount
	b.Locked += amount
	st.Wallet[asset] = b
	return nil
}

// Unlock 将 amount 从冻结退回可用（撤单）。
func (st *State) Unlock(asset string, amount float64) {
	if amount <= 0 {
		return
	}
	b := st.Wallet[asset]
	if amount > b.Locked {
		amount = b.Locked
	}
	b.Locked -= amount
	b.Available += amount
	st.Wallet[asset] = b
}

// SpendLocked 将 amount 移出冻结并同时移出总额（成交消耗 / 保证金划转）。
// 划出的保证金记在 Position 上，不再属于钱包三桶中的任何一桶，
// 平仓时通过 Credit 归还。
func (st *State) SpendLocked(asset string, amount float64) {
	if amount <= 0 {
		return
	}
	b := st.Wallet[asset]
	if amount > b.Locked {
		amount = b.Locked
	}
	b.Locked -= amount
	b.Total -= amount
	st.Wallet[asset] = b
}

// Credit 向可用余额入账（成交所得、保证金+盈亏归还）。
func (st *State) Credit(asset string, amount float64) {
	if amount <= 0 {
		return
	}
	b := st.Wallet[asset]
	b.Available += amount
	b.Total += amount
	st.Wallet[asset] = b
}

// Debit 从可用余额扣款，余额不足时返回错误且不变更。
func (st *State) Debit(asset string, amount float64) error {
	if amount <= 0 {
		return nil
	}
	b := st.Wallet[asset]
	if b.Available < amount {
		return fmt.Errorf("%w: need %.8f %s, available %.8f", ErrInsufficientBalance, amount, asset, b.Available)
	}
	b.Available -= amount
	b.Total -= amount
	st.Wallet[asset] = b
	return nil
}
