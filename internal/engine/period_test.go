package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestNextResetAt 测试各周期的日历边界对齐
func TestNextResetAt(t *testing.T) {
	loc := time.UTC
	// 2024-02-14 周三 15:30
	from := time.Date(2024, 2, 14, 15, 30, 0, 0, loc)

	tests := []struct {
		period SpendingPeriod
		want   time.Time
	}{
		{PeriodDaily, time.Date(2024, 2, 15, 0, 0, 0, 0, loc)},
		{PeriodWeekly, time.Date(2024, 2, 19, 0, 0, 0, 0, loc)},  // 下周一
		{PeriodMonthly, time.Date(2024, 3, 1, 0, 0, 0, 0, loc)},
		{PeriodQuarterly, time.Date(2024, 4, 1, 0, 0, 0, 0, loc)},
		{PeriodYearly, time.Date(2025, 1, 1, 0, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			assert.Equal(t, tt.want, NextResetAt(tt.period, from, loc))
		})
	}
}

// TestNextResetAt_WeekStartsMonday 测试周日归属上一周
func TestNextResetAt_WeekStartsMonday(t *testing.T) {
	loc := time.UTC
	// 2024-02-18 周日
	sunday := time.Date(2024, 2, 18, 10, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 2, 19, 0, 0, 0, 0, loc), NextResetAt(PeriodWeekly, sunday, loc))
}

// TestNextResetAt_PerOrder 测试 per_order 不滚动
func TestNextResetAt_PerOrder(t *testing.T) {
	assert.True(t, NextResetAt(PeriodPerOrder, time.Now(), time.UTC).IsZero())
}

// TestReset_Idempotent 测试重置幂等
// 同一时刻重复重置第二次是无操作,lastResetAt 不变
func TestReset_Idempotent(t *testing.T) {
	loc := time.UTC
	created := time.Date(2024, 2, 1, 0, 0, 0, 0, loc)
	limit := &SpendingLimit{
		ID:              "lim-1",
		Period:          PeriodMonthly,
		LimitAmount:     10000,
		CurrentSpending: 8000,
		IsActive:        true,
		LastResetAt:     created,
		NextResetAt:     NextResetAt(PeriodMonthly, created, loc),
	}

	now := time.Date(2024, 3, 1, 0, 0, 1, 0, loc)
	assert.True(t, limit.DueForReset(now))

	assert.True(t, limit.Reset(now, loc))
	assert.Equal(t, float64(0), limit.CurrentSpending)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, loc), limit.LastResetAt)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, loc), limit.NextResetAt)

	lastReset := limit.LastResetAt
	assert.False(t, limit.Reset(now, loc))
	assert.Equal(t, lastReset, limit.LastResetAt)
}

// TestReset_NotDue 测试未到重置时刻不重置
func TestReset_NotDue(t *testing.T) {
	loc := time.UTC
	created := time.Date(2024, 2, 1, 0, 0, 0, 0, loc)
	limit := &SpendingLimit{
		Period:          PeriodDaily,
		CurrentSpending: 500,
		LastResetAt:     created,
		NextResetAt:     NextResetAt(PeriodDaily, created, loc),
	}

	assert.False(t, limit.Reset(created.Add(time.Hour), loc))
	assert.Equal(t, float64(500), limit.CurrentSpending)
}
