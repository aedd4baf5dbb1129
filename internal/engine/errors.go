package engine

import (
	"errors"

	"trade-sim-go/internal/store"
)

// 校验拒绝均为可返回值错误：引擎拒绝变更、发出通知、不抛异常。
var (
	ErrInvalidAmount       = store.ErrInvalidAmount
	ErrInsufficientBalance = store.ErrInsufficientBalance
	ErrInvalidPrice        = errors.New("invalid price")
	ErrInvalidPair         = errors.New("invalid trading pair")
	ErrInvalidSide         = errors.New("invalid order side")
	ErrInvalidType         = errors.New("unsupported order type")
	ErrInvalidMode         = errors.New("invalid mode")
	ErrInvalidLeverage     = errors.New("invalid leverage")
	ErrNoPosition          = errors.New("no position to reduce")
	ErrNoMarketPrice       = errors.New("no market price yet")
)

// RejectReason 拒绝原因标签（指标与通知用）。
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientBalance):
		return "INSUFFICIENT_BALANCE"
	case errors.Is(err, ErrInvalidAmount):
		return "INVALID_AMOUNT"
	case errors.Is(err, ErrInvalidPrice), errors.Is(err, ErrNoMarketPrice):
		return "INVALID_PRICE"
	case errors.Is(err, ErrInvalidPair):
		return "INVALID_PAIR"
	case errors.Is(err, ErrInvalidSide):
		return "INVALID_SIDE"
	case errors.Is(err, ErrInvalidType):
		return "INVALID_TYPE"
	case errors.Is(err, ErrInvalidMode):
		return "INVALID_MODE"
	case errors.Is(err, ErrInvalidLeverage):
		return "INVALID_LEVERAGE"
	case errors.Is(err, ErrNoPosition):
		return "NO_POSITION"
	default:
		return "UNKNOWN"
	}
}
