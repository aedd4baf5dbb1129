package store

import "testing"

func TestStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to OrderStatus }{
		{StatusOpen, StatusPartial},
		{StatusOpen, StatusFilled},
		{StatusOpen, StatusCancelled},
		{StatusOpen, StatusRejected},
		{StatusPartial, StatusPartial},
		{StatusPartial, StatusFilled},
		{StatusPartial, StatusCancelled},
	}
	for _, c := range allowed {
		if !CanTransition(c.from, c.to) {
			t.Errorf("%s -> %s should be allowed", c.from, c.to)
		}
	}

	// 终态没有出边，状态只能单向推进
	for _, terminal := range []OrderStatus{StatusFilled, StatusCancelled, StatusRejected} {
		if !terminal.IsTerminal() {
			t.Errorf("%s should be terminal", terminal)
		}
		for _, to := range []OrderStatus{StatusOpen, StatusPartial, StatusFilled, StatusCancelled, StatusRejected} {
			if CanTransition(terminal, to) {
				t.Errorf("%s -> %s should be forbidden", terminal, to)
			}
		}
	}
	if CanTransition(StatusPartial, StatusOpen) {
		t.Error("PARTIAL -> OPEN should be forbidden")
	}
	if StatusOpen.IsTerminal() || StatusPartial.IsTerminal() {
		t.Error("OPEN/PARTIAL must not be terminal")
	}
}
