package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestLimit_Remaining 测试剩余额度不变量
// remainingAmount == max(0, limitAmount - currentSpending)
func TestLimit_Remaining(t *testing.T) {
	limit := &SpendingLimit{LimitAmount: 10000, CurrentSpending: 9500}
	assert.Equal(t, float64(500), limit.Remaining())

	limit.CurrentSpending = 12000
	assert.Equal(t, float64(0), limit.Remaining())

	limit.CurrentSpending = 0
	assert.Equal(t, float64(10000), limit.Remaining())
}

// TestLimit_Evaluate 场景 C: 月度限额 10000 已消费 9500
// 新订单 800 评估结果 isExceeded=true, remaining=500
func TestLimit_Evaluate(t *testing.T) {
	limit := &SpendingLimit{
		ID:              "lim-monthly",
		Period:          PeriodMonthly,
		LimitAmount:     10000,
		CurrentSpending: 9500,
	}

	eval := limit.Evaluate(800)
	assert.True(t, eval.IsExceeded)
	assert.Equal(t, float64(500), eval.Remaining)

	eval = limit.Evaluate(400)
	assert.False(t, eval.IsExceeded)
}

// TestLimit_EvaluatePerOrder 测试 per_order 只比较单笔金额
func TestLimit_EvaluatePerOrder(t *testing.T) {
	limit := &SpendingLimit{
		Period:          PeriodPerOrder,
		LimitAmount:     2000,
		CurrentSpending: 99999, // per_order 不累计
	}

	assert.False(t, limit.Evaluate(1500).IsExceeded)
	assert.True(t, limit.Evaluate(2500).IsExceeded)
}

// TestLimit_Warning 测试预警阈值
func TestLimit_Warning(t *testing.T) {
	limit := &SpendingLimit{
		Period:           PeriodMonthly,
		LimitAmount:      10000,
		CurrentSpending:  7000,
		WarningThreshold: 0.8,
	}

	assert.True(t, limit.Evaluate(1000).IsWarning) // 8000 >= 10000*0.8
	assert.False(t, limit.Evaluate(500).IsWarning)

	// 派生字段基于累计消费
	assert.False(t, limit.IsWarning())
	limit.CurrentSpending = 8000
	assert.True(t, limit.IsWarning())
	assert.False(t, limit.IsExceeded())
	limit.CurrentSpending = 10001
	assert.True(t, limit.IsExceeded())
}

// TestLimit_Applies 测试作用域匹配
// 直接员工/部门/公司/角色限额同时独立生效
func TestLimit_Applies(t *testing.T) {
	tests := []struct {
		name  string
		limit *SpendingLimit
		want  bool
	}{
		{"employee match", &SpendingLimit{CompanyID: "c1", Scope: ScopeEmployee, EmployeeID: "e1", IsActive: true}, true},
		{"employee mismatch", &SpendingLimit{CompanyID: "c1", Scope: ScopeEmployee, EmployeeID: "e2", IsActive: true}, false},
		{"department match", &SpendingLimit{CompanyID: "c1", Scope: ScopeDepartment, DepartmentID: "d1", IsActive: true}, true},
		{"company wide", &SpendingLimit{CompanyID: "c1", Scope: ScopeCompany, IsActive: true}, true},
		{"role match", &SpendingLimit{CompanyID: "c1", Scope: ScopeRole, Role: "buyer", IsActive: true}, true},
		{"role mismatch", &SpendingLimit{CompanyID: "c1", Scope: ScopeRole, Role: "admin", IsActive: true}, false},
		{"inactive", &SpendingLimit{CompanyID: "c1", Scope: ScopeCompany, IsActive: false}, false},
		{"other company", &SpendingLimit{CompanyID: "c2", Scope: ScopeCompany, IsActive: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.limit.Applies("c1", "e1", "d1", "buyer"))
		})
	}
}

// TestEvaluateLimits_AnyBreach 测试任一适用限额超限即为超限
func TestEvaluateLimits_AnyBreach(t *testing.T) {
	limits := []*SpendingLimit{
		{ID: "lim-emp", CompanyID: "c1", Scope: ScopeEmployee, EmployeeID: "e1", Period: PeriodMonthly, LimitAmount: 50000, IsActive: true},
		{ID: "lim-dept", CompanyID: "c1", Scope: ScopeDepartment, DepartmentID: "d1", Period: PeriodMonthly, LimitAmount: 1000, CurrentSpending: 900, IsActive: true},
	}
	sub := &Submission{CompanyID: "c1", RequesterID: "e1", DepartmentID: "d1", Amount: 200}

	evals := EvaluateLimits(limits, sub)
	assert.Len(t, evals, 2)

	breached, ok := AnyExceeded(evals)
	assert.True(t, ok)
	assert.Equal(t, "lim-dept", breached.LimitID)
	assert.Equal(t, float64(100), breached.Remaining)
}
