package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestEvaluateRules_NoMatch 测试无匹配规则时返回 allow
func TestEvaluateRules_NoMatch(t *testing.T) {
	rules := []*SpendingRule{
		{ID: "rule-1", CompanyID: "comp-1", MinAmount: 5000, Action: ActionBlock, IsActive: true},
	}
	sub := &Submission{CompanyID: "comp-1", Amount: 1000}

	action, rule := EvaluateRules(rules, sub)
	assert.Equal(t, ActionAllow, action)
	assert.Nil(t, rule)
}

// TestEvaluateRules_PriorityOrder 测试优先级升序选取
func TestEvaluateRules_PriorityOrder(t *testing.T) {
	rules := []*SpendingRule{
		{ID: "rule-low", CompanyID: "comp-1", Priority: 10, Action: ActionWarn, IsActive: true},
		{ID: "rule-high", CompanyID: "comp-1", Priority: 1, Action: ActionBlock, IsActive: true},
	}
	sub := &Submission{CompanyID: "comp-1", Amount: 100}

	action, rule := EvaluateRules(rules, sub)
	assert.Equal(t, ActionBlock, action)
	assert.Equal(t, "rule-high", rule.ID)
}

// TestEvaluateRules_TieBrokenByCreation 测试优先级相同时按创建顺序稳定排序
func TestEvaluateRules_TieBrokenByCreation(t *testing.T) {
	earlier := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	later := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	rules := []*SpendingRule{
		{ID: "rule-b", CompanyID: "comp-1", Priority: 5, Action: ActionNotify, IsActive: true, CreatedAt: later},
		{ID: "rule-a", CompanyID: "comp-1", Priority: 5, Action: ActionWarn, IsActive: true, CreatedAt: earlier},
	}
	sub := &Submission{CompanyID: "comp-1", Amount: 100}

	_, rule := EvaluateRules(rules, sub)
	assert.Equal(t, "rule-a", rule.ID)
}

// TestEvaluateRules_InactiveSkipped 测试停用规则被过滤
func TestEvaluateRules_InactiveSkipped(t *testing.T) {
	rules := []*SpendingRule{
		{ID: "rule-1", CompanyID: "comp-1", Priority: 1, Action: ActionBlock, IsActive: false},
		{ID: "rule-2", CompanyID: "comp-1", Priority: 2, Action: ActionWarn, IsActive: true},
	}
	sub := &Submission{CompanyID: "comp-1", Amount: 100}

	action, _ := EvaluateRules(rules, sub)
	assert.Equal(t, ActionWarn, action)
}

// TestEvaluateRules_AmountWindow 测试金额窗口 [min, max) 匹配
func TestEvaluateRules_AmountWindow(t *testing.T) {
	rules := []*SpendingRule{
		{ID: "rule-1", CompanyID: "comp-1", MinAmount: 1000, MaxAmount: 5000, Action: ActionRequireApproval, IsActive: true},
	}

	tests := []struct {
		name   string
		amount float64
		want   RuleAction
	}{
		{"below window", 999, ActionAllow},
		{"at lower bound", 1000, ActionRequireApproval},
		{"inside window", 3000, ActionRequireApproval},
		{"at upper bound", 5000, ActionAllow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, _ := EvaluateRules(rules, &Submission{CompanyID: "comp-1", Amount: tt.amount})
			assert.Equal(t, tt.want, action)
		})
	}
}

// TestEvaluateRules_ScopeMatch 测试类目/角色/部门作用域匹配
func TestEvaluateRules_ScopeMatch(t *testing.T) {
	rules := []*SpendingRule{
		{
			ID: "rule-cat", CompanyID: "comp-1", Priority: 1, Action: ActionBlock, IsActive: true,
			CategoryIDs: []string{"cat-gold"},
		},
		{
			ID: "rule-role", CompanyID: "comp-1", Priority: 2, Action: ActionWarn, IsActive: true,
			Roles: []string{"buyer"},
		},
	}

	// 类目命中
	action, rule := EvaluateRules(rules, &Submission{
		CompanyID: "comp-1", Amount: 100, CategoryIDs: []string{"cat-gold", "cat-silver"},
	})
	assert.Equal(t, ActionBlock, action)
	assert.Equal(t, "rule-cat", rule.ID)

	// 类目不命中,角色命中
	action, rule = EvaluateRules(rules, &Submission{
		CompanyID: "comp-1", Amount: 100, CategoryIDs: []string{"cat-silver"}, Role: "buyer",
	})
	assert.Equal(t, ActionWarn, action)
	assert.Equal(t, "rule-role", rule.ID)

	// 均不命中
	action, _ = EvaluateRules(rules, &Submission{CompanyID: "comp-1", Amount: 100, Role: "admin"})
	assert.Equal(t, ActionAllow, action)
}

// TestEvaluateRules_CompanyScoped 测试规则按公司隔离
func TestEvaluateRules_CompanyScoped(t *testing.T) {
	rules := []*SpendingRule{
		{ID: "rule-1", CompanyID: "comp-other", Priority: 1, Action: ActionBlock, IsActive: true},
	}
	action, _ := EvaluateRules(rules, &Submission{CompanyID: "comp-1", Amount: 100})
	assert.Equal(t, ActionAllow, action)
}
