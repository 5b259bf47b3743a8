package engine

// LimitEvaluation 单条限额的评估结果
type LimitEvaluation struct {
	LimitID    string         `json:"limit_id"`
	Scope      LimitScope     `json:"scope"`
	Period     SpendingPeriod `json:"period"`
	Remaining  float64        `json:"remaining"`
	IsWarning  bool           `json:"is_warning"`
	IsExceeded bool           `json:"is_exceeded"`
}

// Applies 判断限额作用域是否覆盖指定员工
// 直接员工限额、部门限额、公司限额、角色限额同时独立生效,
// 无优先级次序,任一超限即为超限。
func (l *SpendingLimit) Applies(companyID, employeeID, departmentID, role string) bool {
	if !l.IsActive {
		return false
	}
	if l.CompanyID != companyID {
		return false
	}
	switch l.Scope {
	case ScopeEmployee:
		return l.EmployeeID == employeeID
	case ScopeDepartment:
		return l.DepartmentID != "" && l.DepartmentID == departmentID
	case ScopeCompany:
		return true
	case ScopeRole:
		return l.Role != "" && l.Role == role
	}
	return false
}

// Evaluate 评估一笔候选消费对限额的影响
// per_order 周期只比较单笔金额,其余周期比较追加后的累计消费。
// 预警在累计消费达到 limitAmount*warningThreshold 时触发。
func (l *SpendingLimit) Evaluate(amount float64) LimitEvaluation {
	projected := l.CurrentSpending + amount
	if l.Period == PeriodPerOrder {
		projected = amount
	}

	eval := LimitEvaluation{
		LimitID:   l.ID,
		Scope:     l.Scope,
		Period:    l.Period,
		Remaining: l.Remaining(),
	}
	eval.IsExceeded = projected > l.LimitAmount
	if l.WarningThreshold > 0 {
		eval.IsWarning = projected >= l.LimitAmount*l.WarningThreshold
	}
	return eval
}

// EvaluateLimits 对所有适用限额评估候选消费
// 返回每条适用限额的评估结果;任一超限即视为整体超限。
func EvaluateLimits(limits []*SpendingLimit, sub *Submission) []LimitEvaluation {
	evals := make([]LimitEvaluation, 0, len(limits))
	for _, limit := range limits {
		if !limit.Applies(sub.CompanyID, sub.RequesterID, sub.DepartmentID, sub.Role) {
			continue
		}
		evals = append(evals, limit.Evaluate(sub.Amount))
	}
	return evals
}

// AnyExceeded 判断评估结果中是否存在超限
func AnyExceeded(evals []LimitEvaluation) (LimitEvaluation, bool) {
	for _, eval := range evals {
		if eval.IsExceeded {
			return eval, true
		}
	}
	return LimitEvaluation{}, false
}
