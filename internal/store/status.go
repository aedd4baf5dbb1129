package store

// OrderStatus represents order lifecycle.
type OrderStatus string

const (
	StatusOpen      OrderStatus = "OPEN"
	StatusPartial   OrderStatus = "PARTIAL"
	StatusFilled    OrderStatus = "FILLED"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusRejected  OrderStatus = "REJECTED"
)

// statusTransitions 合法的状态转换表。终态（FILLED/CANCELLED/REJECTED）无出边，
// 状态只能单向推进。
var statusTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusOpen: {
		StatusPartial:   true,
		StatusFilled:    true,
		StatusCancelled: true,
		StatusRejected:  true,
	},
	StatusPartial: {
		StatusPartial:   true, // 多次部分成交
		StatusFilled:    true,
		StatusCancelled: true,
	},
}

// CanTransition 校验状态转换是否合法。
func CanTransition(from, to OrderStatus) bool {
	next, ok := statusTransitions[from]
	return ok && next[to]
}

// IsTerminal 是否为终态。
func (s OrderStatus) IsTerminal() bool {
	_, ok := statusTransitions[s]
	return !ok
}
