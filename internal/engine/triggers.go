package engine

import (
	"fmt"
)

// EvaluateTriggers 评估工作流触发条件
// 各触发条件独立评估,以 OR 组合;always 短路为真。
// 规则引擎的动作为 require_approval 或 escalate 时,
// 无论声明的触发条件如何都会激活工作流。
// 返回是否激活及匹配的触发条件描述(持久化到请求用于审计)。
func EvaluateTriggers(wf *ApprovalWorkflow, sub *Submission, ruleAction RuleAction) (bool, string) {
	if ruleAction == ActionRequireApproval || ruleAction == ActionEscalate {
		return true, fmt.Sprintf("spending rule action %q", ruleAction)
	}

	for _, trigger := range wf.Triggers {
		if matched, reason := evaluateTrigger(trigger, sub); matched {
			return true, reason
		}
	}

	return false, ""
}

// evaluateTrigger 评估单个触发条件
func evaluateTrigger(trigger Trigger, sub *Submission) (bool, string) {
	switch trigger.Type {
	case TriggerAlways:
		return true, "trigger always"
	case TriggerAmountExceeds:
		if sub.Amount > trigger.Threshold {
			return true, fmt.Sprintf("amount %.2f exceeds threshold %.2f", sub.Amount, trigger.Threshold)
		}
	case TriggerQuantityExceeds:
		if float64(sub.Quantity) > trigger.Threshold {
			return true, fmt.Sprintf("quantity %d exceeds threshold %.0f", sub.Quantity, trigger.Threshold)
		}
	case TriggerSpendingLimitExceeds:
		if sub.SpendingLimitExceeded {
			return true, "spending limit exceeded"
		}
	case TriggerRestrictedProduct:
		if sub.RestrictedProduct {
			return true, "restricted product"
		}
	case TriggerNewVendor:
		if sub.NewVendor {
			return true, "new vendor"
		}
	case TriggerNewCustomer:
		if sub.NewCustomer {
			return true, "new customer"
		}
	case TriggerManual:
		if sub.ManualApproval {
			return true, "manual approval requested"
		}
	}
	return false, ""
}
