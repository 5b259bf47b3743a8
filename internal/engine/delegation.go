package engine

import (
	"time"
)

// Covers 判断委托是否覆盖指定实体
// 要求 now 落在 [StartDate, EndDate] 内、委托启用、
// 实体类型在 EntityTypes 中(空表示不限定)、
// 金额不超过 MaxAmount(0 表示不限定)。
func (d *ApprovalDelegation) Covers(entityType EntityType, amount float64, now time.Time) bool {
	if !d.IsActive {
		return false
	}
	if now.Before(d.StartDate) || now.After(d.EndDate) {
		return false
	}
	if d.MaxAmount > 0 && amount > d.MaxAmount {
		return false
	}
	if len(d.EntityTypes) > 0 {
		found := false
		for _, et := range d.EntityTypes {
			if et == entityType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ResolveRoster 解析步骤的有效审批人名册
// 对名义名册中的每个审批人,若存在覆盖该实体的有效委托则替换为受托人;
// 请求人被无条件排除(禁止自审批),结果去重。
// 名册在步骤激活时解析一次并冻结,流程中重算会改变在途的法定人数计算。
func ResolveRoster(nominal []string, delegations []*ApprovalDelegation,
	entityType EntityType, amount float64, requesterID string, now time.Time) ([]string, []DelegationRecord) {

	roster := make([]string, 0, len(nominal))
	records := make([]DelegationRecord, 0)
	seen := make(map[string]struct{}, len(nominal))

	for _, approverID := range nominal {
		effective := approverID
		for _, d := range delegations {
			if d.DelegatorID == approverID && d.Covers(entityType, amount, now) {
				effective = d.DelegateeID
				records = append(records, DelegationRecord{
					DelegationID: d.ID,
					FromID:       approverID,
					ToID:         d.DelegateeID,
				})
				break
			}
		}

		// 自审批禁止: 请求人不能出现在解析后的名册中
		if effective == requesterID {
			continue
		}
		if _, ok := seen[effective]; ok {
			continue
		}
		seen[effective] = struct{}{}
		roster = append(roster, effective)
	}

	return roster, records
}
