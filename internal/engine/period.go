package engine

import (
	"time"
)

// NextResetAt 计算周期的下一次重置时间
// 以公司时区的日历边界对齐: daily 为次日零点,weekly 为下周一零点,
// monthly/quarterly/yearly 为下一个日历边界的零点。
// per_order 不滚动,返回零值。
func NextResetAt(period SpendingPeriod, from time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := from.In(loc)

	switch period {
	case PeriodDaily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	case PeriodWeekly:
		// 周以周一为起点
		weekday := int(t.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		weekStart := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -(weekday - 1))
		return weekStart.AddDate(0, 0, 7)
	case PeriodMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)
	case PeriodQuarterly:
		quarterStart := time.Month(((int(t.Month())-1)/3)*3 + 1)
		return time.Date(t.Year(), quarterStart, 1, 0, 0, 0, 0, loc).AddDate(0, 3, 0)
	case PeriodYearly:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, loc).AddDate(1, 0, 0)
	}
	return time.Time{}
}

// DueForReset 判断限额是否到达重置时刻
func (l *SpendingLimit) DueForReset(now time.Time) bool {
	if l.Period == PeriodPerOrder || l.NextResetAt.IsZero() {
		return false
	}
	return !now.Before(l.NextResetAt)
}

// Reset 滚动限额计数器
// 幂等: 通过比较 lastResetAt 防护,同一时刻重复重置是无操作。
// 返回是否实际发生了重置。
func (l *SpendingLimit) Reset(now time.Time, loc *time.Location) bool {
	if !l.DueForReset(now) {
		return false
	}
	if !l.LastResetAt.Before(l.NextResetAt) {
		return false
	}
	l.CurrentSpending = 0
	l.LastResetAt = l.NextResetAt
	l.NextResetAt = NextResetAt(l.Period, now, loc)
	return true
}
