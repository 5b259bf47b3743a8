package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestEvaluateTriggers_Always 测试 always 触发条件短路
func TestEvaluateTriggers_Always(t *testing.T) {
	wf := &ApprovalWorkflow{
		Triggers: []Trigger{{Type: TriggerAlways}},
	}
	matched, reason := EvaluateTriggers(wf, &Submission{Amount: 1}, ActionAllow)
	assert.True(t, matched)
	assert.Equal(t, "trigger always", reason)
}

// TestEvaluateTriggers_AmountExceeds 测试金额阈值触发
func TestEvaluateTriggers_AmountExceeds(t *testing.T) {
	wf := &ApprovalWorkflow{
		Triggers: []Trigger{{Type: TriggerAmountExceeds, Threshold: 1000}},
	}

	matched, reason := EvaluateTriggers(wf, &Submission{Amount: 1500}, ActionAllow)
	assert.True(t, matched)
	assert.Contains(t, reason, "exceeds threshold")

	matched, _ = EvaluateTriggers(wf, &Submission{Amount: 1000}, ActionAllow)
	assert.False(t, matched)
}

// TestEvaluateTriggers_OrSemantics 测试多触发条件 OR 组合
func TestEvaluateTriggers_OrSemantics(t *testing.T) {
	wf := &ApprovalWorkflow{
		Triggers: []Trigger{
			{Type: TriggerAmountExceeds, Threshold: 100000},
			{Type: TriggerRestrictedProduct},
		},
	}

	// 金额未超但命中受限商品
	matched, reason := EvaluateTriggers(wf, &Submission{Amount: 50, RestrictedProduct: true}, ActionAllow)
	assert.True(t, matched)
	assert.Equal(t, "restricted product", reason)

	// 均未命中
	matched, _ = EvaluateTriggers(wf, &Submission{Amount: 50}, ActionAllow)
	assert.False(t, matched)
}

// TestEvaluateTriggers_RuleActionOverride 测试规则动作强制激活工作流
func TestEvaluateTriggers_RuleActionOverride(t *testing.T) {
	// 工作流未声明任何触发条件
	wf := &ApprovalWorkflow{}

	matched, reason := EvaluateTriggers(wf, &Submission{Amount: 10}, ActionRequireApproval)
	assert.True(t, matched)
	assert.Contains(t, reason, "require_approval")

	matched, _ = EvaluateTriggers(wf, &Submission{Amount: 10}, ActionEscalate)
	assert.True(t, matched)

	matched, _ = EvaluateTriggers(wf, &Submission{Amount: 10}, ActionWarn)
	assert.False(t, matched)
}

// TestEvaluateTriggers_BooleanPredicates 测试布尔谓词类触发条件
func TestEvaluateTriggers_BooleanPredicates(t *testing.T) {
	tests := []struct {
		name    string
		trigger TriggerType
		sub     *Submission
		want    bool
	}{
		{"manual requested", TriggerManual, &Submission{ManualApproval: true}, true},
		{"manual not requested", TriggerManual, &Submission{}, false},
		{"new vendor", TriggerNewVendor, &Submission{NewVendor: true}, true},
		{"new customer", TriggerNewCustomer, &Submission{NewCustomer: true}, true},
		{"limit exceeded", TriggerSpendingLimitExceeds, &Submission{SpendingLimitExceeded: true}, true},
		{"limit not exceeded", TriggerSpendingLimitExceeds, &Submission{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := &ApprovalWorkflow{Triggers: []Trigger{{Type: tt.trigger}}}
			matched, _ := EvaluateTriggers(wf, tt.sub, ActionAllow)
			assert.Equal(t, tt.want, matched)
		})
	}
}

// TestEvaluateTriggers_QuantityExceeds 测试数量阈值触发
func TestEvaluateTriggers_QuantityExceeds(t *testing.T) {
	wf := &ApprovalWorkflow{
		Triggers: []Trigger{{Type: TriggerQuantityExceeds, Threshold: 10}},
	}

	matched, _ := EvaluateTriggers(wf, &Submission{Quantity: 11}, ActionAllow)
	assert.True(t, matched)

	matched, _ = EvaluateTriggers(wf, &Submission{Quantity: 10}, ActionAllow)
	assert.False(t, matched)
}
