package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushAndList(t *testing.T) {
	q := NewQueue(10, 0, nil)

	q.Push(LevelInfo, "first")
	q.Push(LevelError, "second")

	require.Equal(t, 2, q.Len())
	got := q.List()
	// 最新的在前
	assert.Equal(t, "second", got[0].Message)
	assert.Equal(t, LevelError, got[0].Level)
	assert.Equal(t, "first", got[1].Message)
	assert.NotEmpty(t, got[0].ID)
	assert.NotEqual(t, got[0].ID, got[1].ID)
}

func TestQueueDropsOldestBeyondCapacity(t *testing.T) {
	q := NewQueue(3, 0, nil)
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		q.Push(LevelInfo, msg)
	}

	require.Equal(t, 3, q.Len())
	got := q.List()
	assert.Equal(t, "e", got[0].Message)
	assert.Equal(t, "c", got[2].Message)
}

func TestRemove(t *testing.T) {
	q := NewQueue(10, 0, nil)
	n := q.Push(LevelInfo, "to remove")
	q.Push(LevelInfo, "keep")

	q.Remove(n.ID)
	require.Equal(t, 1, q.Len())
	assert.Equal(t, "keep", q.List()[0].Message)

	// 不存在的 id 是空操作
	q.Remove("missing")
	assert.Equal(t, 1, q.Len())
}

func TestThrottleDuplicates(t *testing.T) {
	q := NewQueue(10, time.Hour, nil)

	first := q.Push(LevelWarning, "same message")
	dup := q.Push(LevelWarning, "same message")
	other := q.Push(LevelError, "same message") // 不同级别不算重复

	require.NotNil(t, first)
	assert.Nil(t, dup)
	require.NotNil(t, other)
	assert.Equal(t, 2, q.Len())
}

func TestSinkReceivesEveryPush(t *testing.T) {
	var got []Notification
	q := NewQueue(10, 0, func(n Notification) { got = append(got, n) })

	q.Pushf(LevelSuccess, "filled %.2f @ %.2f", 0.5, 43000.0)
	require.Len(t, got, 1)
	assert.Equal(t, "filled 0.50 @ 43000.00", got[0].Message)
}

func TestThrottlerResetAndClear(t *testing.T) {
	th := NewThrottler(time.Hour)

	assert.True(t, th.Allow("k"))
	assert.False(t, th.Allow("k"))

	th.Reset("k")
	assert.True(t, th.Allow("k"))

	assert.True(t, th.Allow("other"))
	th.Clear()
	assert.True(t, th.Allow("k"))
	assert.True(t, th.Allow("other"))
}
