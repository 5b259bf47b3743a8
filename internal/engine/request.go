package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// MatchingLevels 返回金额窗口包含实体金额的所有层级
// 各层级独立评估而非顺序过滤,工作流可以定义不连续的金额窗口。
// 结果按层级编号升序排列。
func MatchingLevels(wf *ApprovalWorkflow, amount float64) []ApprovalLevel {
	matched := make([]ApprovalLevel, 0, len(wf.Levels))
	for _, level := range wf.Levels {
		if level.Matches(amount) {
			matched = append(matched, level)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Level < matched[j].Level
	})
	return matched
}

// NewRequest 从工作流实例化审批请求
// 为每个匹配层级创建一个步骤,currentLevel 从最低匹配层级开始。
// 步骤此时尚未激活,名册由调用方经委托解析后通过 ActivateStep 冻结。
func NewRequest(wf *ApprovalWorkflow, sub *Submission, triggerReason string, dueAt *time.Time, now time.Time) (*ApprovalRequest, error) {
	levels := MatchingLevels(wf, sub.Amount)
	if len(levels) == 0 {
		return nil, NewConfigurationError(
			"workflow %q has no approval level matching amount %.2f", wf.ID, sub.Amount)
	}

	steps := make([]*ApprovalStep, 0, len(levels))
	for _, level := range levels {
		required := level.RequiredApprovals
		if required <= 0 {
			required = 1
		}
		steps = append(steps, &ApprovalStep{
			ID:                "step-" + uuid.NewString(),
			Level:             level.Level,
			Name:              level.Name,
			Status:            StepStatusPending,
			ApprovalsRequired: required,
			RequireAll:        level.RequireAll,
			EscalationHours:   level.EscalationHours,
			EscalatesToLevel:  level.EscalatesToLevel,
			Decisions:         make(map[string]*ApproverDecision),
		})
	}

	return &ApprovalRequest{
		ID:            "req-" + uuid.NewString(),
		CompanyID:     sub.CompanyID,
		EntityID:      sub.EntityID,
		EntityType:    sub.EntityType,
		Amount:        sub.Amount,
		Currency:      sub.Currency,
		RequesterID:   sub.RequesterID,
		WorkflowID:    wf.ID,
		TriggerReason: triggerReason,
		Status:        RequestStatusPending,
		CurrentLevel:  levels[0].Level,
		TotalLevels:   len(levels),
		Steps:         steps,
		CallbackURL:   sub.CallbackURL,
		DueAt:         dueAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// ActivateStep 激活步骤并冻结名册
// roster 为委托解析后的有效审批人名册;解析后为空属于配置错误。
// 法定人数不能超过名册规模,超出时收缩到名册规模。
// 已激活的步骤重复激活是无操作。
func (r *ApprovalRequest) ActivateStep(step *ApprovalStep, roster []string, records []DelegationRecord, now time.Time) error {
	if step.Activated() {
		return nil
	}
	if len(roster) == 0 {
		return NewConfigurationError(
			"approver roster for level %d is empty after delegation resolution", step.Level)
	}

	step.AssignedApproverIDs = roster
	step.Delegations = records
	for _, approverID := range roster {
		step.Decisions[approverID] = &ApproverDecision{
			ApproverID: approverID,
			Decision:   DecisionPending,
		}
	}
	if step.ApprovalsRequired > len(roster) {
		step.ApprovalsRequired = len(roster)
	}
	activated := now
	step.ActivatedAt = &activated
	if step.EscalationHours > 0 {
		due := now.Add(time.Duration(step.EscalationHours) * time.Hour)
		step.DueAt = &due
	}

	r.CurrentLevel = step.Level
	r.UpdatedAt = now
	return nil
}

// DecisionOutcome 决定应用的结果
type DecisionOutcome struct {
	Step            *ApprovalStep
	StepApproved    bool
	StepRejected    bool
	NextStep        *ApprovalStep // 待激活的下一步骤
	RequestApproved bool
	RequestRejected bool
}

// ApplyDecision 应用审批人的决定
// 对步骤决定列表的读-改-写,由调用方通过版本号 CAS 保证并发安全。
// 同一审批人的重复决定覆盖其先前记录,但绝不改写已终结的步骤。
func (r *ApprovalRequest) ApplyDecision(stepID string, approverID string, decision DecisionValue, comment string, now time.Time) (*DecisionOutcome, error) {
	if r.Status.Terminal() {
		return nil, fmt.Errorf("%w: request %s is %s", ErrRequestTerminal, r.ID, r.Status)
	}
	if !decision.Valid() {
		return nil, NewInvalidTransition("decision %q is not a valid decision value", decision)
	}

	step := r.stepByID(stepID)
	if step == nil {
		return nil, NewInvalidTransition("step %q not found on request %s", stepID, r.ID)
	}
	if step.Status.Terminal() {
		return nil, NewInvalidTransition("step %q is already finalized as %s", stepID, step.Status)
	}
	if !step.Activated() {
		return nil, NewInvalidTransition("step %q has not been activated", stepID)
	}
	if approverID == r.RequesterID {
		return nil, NewInvalidTransition("self-approval is forbidden: %s is the requester", approverID)
	}
	prior, assigned := step.Decisions[approverID]
	if !assigned {
		return nil, NewInvalidTransition("approver %q is not in the resolved roster of step %q", approverID, stepID)
	}

	decided := now
	prior.Decision = decision
	prior.Comment = comment
	prior.DecidedAt = &decided

	step.ApprovalsReceived = step.countApproved()
	step.Status = StepStatusInReview
	if r.Status == RequestStatusPending {
		r.Status = RequestStatusInReview
	}
	r.UpdatedAt = now

	outcome := &DecisionOutcome{Step: step}

	switch {
	case step.rejectionFinal():
		step.Status = StepStatusRejected
		step.CompletedAt = &decided
		outcome.StepRejected = true
		// 任一步骤被拒绝,整个请求立即终结,不再评估后续层级
		r.Status = RequestStatusRejected
		r.CompletedAt = &decided
		r.DecidedByID = approverID
		r.DecisionNotes = comment
		outcome.RequestRejected = true

	case step.approvalFinal():
		step.Status = StepStatusApproved
		step.CompletedAt = &decided
		outcome.StepApproved = true

		next := r.nextPendingStep(step.Level)
		if next == nil {
			r.Status = RequestStatusApproved
			r.CompletedAt = &decided
			r.DecidedByID = approverID
			r.DecisionNotes = comment
			outcome.RequestApproved = true
		} else {
			outcome.NextStep = next
		}
	}

	return outcome, nil
}

// approvalFinal 判断步骤是否满足通过条件
// requireAll 要求所有名册成员均已同意且无人拒绝;
// 否则达到法定人数即通过,其余未决的决定被取代。
func (s *ApprovalStep) approvalFinal() bool {
	if s.RequireAll {
		for _, d := range s.Decisions {
			if d.Decision != DecisionApproved {
				return false
			}
		}
		return true
	}
	return s.ApprovalsReceived >= s.ApprovalsRequired
}

// rejectionFinal 判断步骤是否满足拒绝条件
// requireAll 模式下单个拒绝即否决;
// 法定人数模式下,仅当剩余未决人数已不足以凑齐法定人数时拒绝。
func (s *ApprovalStep) rejectionFinal() bool {
	rejected := 0
	undecided := 0
	for _, d := range s.Decisions {
		switch d.Decision {
		case DecisionRejected:
			rejected++
		case DecisionPending:
			undecided++
		}
	}
	if rejected == 0 {
		return false
	}
	if s.RequireAll {
		return true
	}
	return s.ApprovalsReceived+undecided < s.ApprovalsRequired
}

// countApproved 统计已同意的决定数
func (s *ApprovalStep) countApproved() int {
	count := 0
	for _, d := range s.Decisions {
		if d.Decision == DecisionApproved {
			count++
		}
	}
	return count
}

// EscalationOutcome 升级转换的结果
type EscalationOutcome struct {
	Step             *ApprovalStep
	NoOp             bool
	EscalateToLevel  int           // 升级目标层级,0 表示无
	NextStep         *ApprovalStep // 已存在的目标步骤(可能尚未激活)
	RequestEscalated bool          // 无目标层级,请求终结为 escalated
}

// EscalateStep 升级过期步骤
// 幂等: 已离开 pending/in_review 的步骤不会被二次升级。
// 配置了 escalatesToLevel 时激活目标层级的步骤,否则请求终结为
// escalated,需要人工介入。
func (r *ApprovalRequest) EscalateStep(stepID string, now time.Time) (*EscalationOutcome, error) {
	if r.Status.Terminal() {
		return &EscalationOutcome{NoOp: true}, nil
	}
	step := r.stepByID(stepID)
	if step == nil {
		return nil, NewInvalidTransition("step %q not found on request %s", stepID, r.ID)
	}
	if step.Status != StepStatusPending && step.Status != StepStatusInReview {
		return &EscalationOutcome{Step: step, NoOp: true}, nil
	}

	step.Status = StepStatusEscalated
	step.CompletedAt = &now
	r.UpdatedAt = now

	outcome := &EscalationOutcome{Step: step}
	if step.EscalatesToLevel > 0 {
		outcome.EscalateToLevel = step.EscalatesToLevel
		outcome.NextStep = r.StepByLevel(step.EscalatesToLevel)
		return outcome, nil
	}

	r.Status = RequestStatusEscalated
	r.CompletedAt = &now
	outcome.RequestEscalated = true
	return outcome, nil
}

// AddEscalationStep 为升级目标层级追加步骤
// 仅当目标层级的金额窗口未匹配、步骤未在创建时实例化的情况下使用。
func (r *ApprovalRequest) AddEscalationStep(level ApprovalLevel) *ApprovalStep {
	required := level.RequiredApprovals
	if required <= 0 {
		required = 1
	}
	step := &ApprovalStep{
		ID:                "step-" + uuid.NewString(),
		Level:             level.Level,
		Name:              level.Name,
		Status:            StepStatusPending,
		ApprovalsRequired: required,
		RequireAll:        level.RequireAll,
		EscalationHours:   level.EscalationHours,
		EscalatesToLevel:  level.EscalatesToLevel,
		Decisions:         make(map[string]*ApproverDecision),
	}
	r.Steps = append(r.Steps, step)
	r.TotalLevels = len(r.Steps)
	return step
}

// Expire 请求过期
// dueAt 已过且无终态决定、步骤未配置升级目标时调用。
// 幂等: 终态请求直接返回无操作。
func (r *ApprovalRequest) Expire(now time.Time) bool {
	if r.Status.Terminal() {
		return false
	}
	for _, step := range r.Steps {
		if !step.Status.Terminal() {
			step.Status = StepStatusExpired
			step.CompletedAt = &now
		}
	}
	r.Status = RequestStatusExpired
	r.CompletedAt = &now
	r.UpdatedAt = now
	return true
}

// Cancel 取消请求
// 调用方撤回源实体时使用,允许从任何非终态发起;
// 所有未终结步骤转为 cancelled。取消后到达的决定将被拒绝。
func (r *ApprovalRequest) Cancel(reason string, now time.Time) error {
	if r.Status.Terminal() {
		return fmt.Errorf("%w: request %s is %s", ErrRequestTerminal, r.ID, r.Status)
	}
	for _, step := range r.Steps {
		if !step.Status.Terminal() {
			step.Status = StepStatusCancelled
			step.CompletedAt = &now
		}
	}
	r.Status = RequestStatusCancelled
	r.DecisionNotes = reason
	r.CompletedAt = &now
	r.UpdatedAt = now
	return nil
}

// nextPendingStep 返回指定层级之后最低的未终结步骤
func (r *ApprovalRequest) nextPendingStep(afterLevel int) *ApprovalStep {
	var next *ApprovalStep
	for _, step := range r.Steps {
		if step.Level <= afterLevel || step.Status.Terminal() {
			continue
		}
		if next == nil || step.Level < next.Level {
			next = step
		}
	}
	return next
}

// stepByID 按 ID 查找步骤
func (r *ApprovalRequest) stepByID(id string) *ApprovalStep {
	for _, step := range r.Steps {
		if step.ID == id {
			return step
		}
	}
	return nil
}

// OverdueSteps 返回已过期待处理的步骤
// 升级扫描器使用: 状态为 pending/in_review 且 dueAt 已过。
func (r *ApprovalRequest) OverdueSteps(now time.Time) []*ApprovalStep {
	overdue := make([]*ApprovalStep, 0)
	for _, step := range r.Steps {
		if step.Status != StepStatusPending && step.Status != StepStatusInReview {
			continue
		}
		if step.DueAt != nil && now.After(*step.DueAt) {
			overdue = append(overdue, step)
		}
	}
	return overdue
}
