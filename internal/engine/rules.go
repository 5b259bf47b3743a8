package engine

import (
	"sort"
)

// EvaluateRules 评估消费规则
// 过滤出启用且作用域匹配的规则,按优先级升序排序(数值越小优先级越高),
// 优先级相同时按创建时间保持稳定顺序,返回第一条规则的动作。
// 无匹配规则时返回 allow。纯函数,无副作用。
func EvaluateRules(rules []*SpendingRule, sub *Submission) (RuleAction, *SpendingRule) {
	matched := make([]*SpendingRule, 0, len(rules))
	for _, rule := range rules {
		if ruleMatches(rule, sub) {
			matched = append(matched, rule)
		}
	}

	if len(matched) == 0 {
		return ActionAllow, nil
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority < matched[j].Priority
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	return matched[0].Action, matched[0]
}

// ruleMatches 判断规则作用域是否覆盖提交实体
func ruleMatches(rule *SpendingRule, sub *Submission) bool {
	if !rule.IsActive {
		return false
	}
	if rule.CompanyID != "" && rule.CompanyID != sub.CompanyID {
		return false
	}

	// 金额窗口 [MinAmount, MaxAmount),MaxAmount 为 0 表示无上界
	if sub.Amount < rule.MinAmount {
		return false
	}
	if rule.MaxAmount > 0 && sub.Amount >= rule.MaxAmount {
		return false
	}

	// 空列表表示不限定该维度
	if len(rule.CategoryIDs) > 0 && !intersects(rule.CategoryIDs, sub.CategoryIDs) {
		return false
	}
	if len(rule.ProductIDs) > 0 && !intersects(rule.ProductIDs, sub.ProductIDs) {
		return false
	}
	if len(rule.Roles) > 0 && !contains(rule.Roles, sub.Role) {
		return false
	}
	if len(rule.DepartmentIDs) > 0 && !contains(rule.DepartmentIDs, sub.DepartmentID) {
		return false
	}

	return true
}

// intersects 判断两个 ID 列表是否有交集
func intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

// contains 判断列表是否包含指定值
func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
