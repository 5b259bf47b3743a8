package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWorkflow() *ApprovalWorkflow {
	return &ApprovalWorkflow{
		ID:         "wf-1",
		CompanyID:  "comp-1",
		EntityType: EntityOrder,
		IsActive:   true,
		Levels: []ApprovalLevel{
			{Level: 1, Name: "经理审批", ApproverIDs: []string{"E1"}, MinAmount: 0, MaxAmount: 5000, RequiredApprovals: 1},
			{Level: 2, Name: "总监审批", ApproverIDs: []string{"M1", "M2"}, MinAmount: 5000, RequireAll: true},
		},
	}
}

func testSubmission(amount float64) *Submission {
	return &Submission{
		EntityID:    "order-1",
		EntityType:  EntityOrder,
		CompanyID:   "comp-1",
		RequesterID: "requester",
		Amount:      amount,
		Currency:    "USD",
	}
}

// TestNewRequest_MatchingLevels 测试请求实例化
// N 个匹配层级产生恰好 N 个步骤,totalLevels == N,
// currentLevel 从最低匹配层级开始
func TestNewRequest_MatchingLevels(t *testing.T) {
	now := time.Now()

	// 金额 3000 只匹配层级 1
	req, err := NewRequest(testWorkflow(), testSubmission(3000), "test", nil, now)
	require.NoError(t, err)
	assert.Len(t, req.Steps, 1)
	assert.Equal(t, 1, req.TotalLevels)
	assert.Equal(t, 1, req.CurrentLevel)
	assert.Equal(t, RequestStatusPending, req.Status)

	// 金额 7000 只匹配层级 2(层级独立评估,层级 1 不实例化)
	req, err = NewRequest(testWorkflow(), testSubmission(7000), "test", nil, now)
	require.NoError(t, err)
	assert.Len(t, req.Steps, 1)
	assert.Equal(t, 2, req.CurrentLevel)
}

// TestNewRequest_NoMatchingLevel 测试无匹配层级为配置错误
func TestNewRequest_NoMatchingLevel(t *testing.T) {
	wf := &ApprovalWorkflow{
		ID:     "wf-1",
		Levels: []ApprovalLevel{{Level: 1, MinAmount: 10000}},
	}
	_, err := NewRequest(wf, testSubmission(500), "test", nil, time.Now())

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

// TestActivateStep_EmptyRoster 测试名册解析后为空属于配置错误
func TestActivateStep_EmptyRoster(t *testing.T) {
	now := time.Now()
	req, err := NewRequest(testWorkflow(), testSubmission(3000), "test", nil, now)
	require.NoError(t, err)

	err = req.ActivateStep(req.Steps[0], nil, nil, now)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

// TestScenario_SingleApprover 场景 A: 单层级单审批人
// 层级 minAmount=1000 quorum=1,金额 1500 创建一个步骤,
// E1 同意后步骤通过,请求通过
func TestScenario_SingleApprover(t *testing.T) {
	now := time.Now()
	wf := &ApprovalWorkflow{
		ID: "wf-a",
		Levels: []ApprovalLevel{
			{Level: 1, ApproverIDs: []string{"E1"}, MinAmount: 1000, RequiredApprovals: 1},
		},
	}

	req, err := NewRequest(wf, testSubmission(1500), "amount exceeds", nil, now)
	require.NoError(t, err)
	require.Len(t, req.Steps, 1)

	step := req.Steps[0]
	roster, records := ResolveRoster(wf.Levels[0].ApproverIDs, nil, EntityOrder, 1500, req.RequesterID, now)
	require.NoError(t, req.ActivateStep(step, roster, records, now))
	assert.Equal(t, []string{"E1"}, step.AssignedApproverIDs)

	outcome, err := req.ApplyDecision(step.ID, "E1", DecisionApproved, "同意", now)
	require.NoError(t, err)
	assert.True(t, outcome.StepApproved)
	assert.True(t, outcome.RequestApproved)
	assert.Equal(t, StepStatusApproved, step.Status)
	assert.Equal(t, RequestStatusApproved, req.Status)
	assert.Equal(t, "E1", req.DecidedByID)
	assert.NotNil(t, req.CompletedAt)
}

// TestScenario_RequireAllRejection 场景 B: requireAll 模式单人拒绝即否决
// 层级 2 [5000,∞) requireAll 名册 [M1,M2],金额 7000 只激活层级 2;
// M1 同意 M2 拒绝 -> 步骤拒绝 -> 请求拒绝,层级 1 从未实例化
func TestScenario_RequireAllRejection(t *testing.T) {
	now := time.Now()
	req, err := NewRequest(testWorkflow(), testSubmission(7000), "test", nil, now)
	require.NoError(t, err)
	require.Len(t, req.Steps, 1)
	assert.Nil(t, req.StepByLevel(1))

	step := req.Steps[0]
	require.NoError(t, req.ActivateStep(step, []string{"M1", "M2"}, nil, now))

	outcome, err := req.ApplyDecision(step.ID, "M1", DecisionApproved, "", now)
	require.NoError(t, err)
	assert.False(t, outcome.StepApproved)
	assert.Equal(t, StepStatusInReview, step.Status)
	assert.Equal(t, RequestStatusInReview, req.Status)

	outcome, err = req.ApplyDecision(step.ID, "M2", DecisionRejected, "超预算", now)
	require.NoError(t, err)
	assert.True(t, outcome.StepRejected)
	assert.True(t, outcome.RequestRejected)
	assert.Equal(t, RequestStatusRejected, req.Status)
	assert.Equal(t, "M2", req.DecidedByID)
}

// TestApplyDecision_QuorumSupersedes 测试法定人数达成后立即通过
// quorum=2 名册 3 人,两人同意即通过,第三人的未决决定被取代
func TestApplyDecision_QuorumSupersedes(t *testing.T) {
	now := time.Now()
	wf := &ApprovalWorkflow{
		ID: "wf-q",
		Levels: []ApprovalLevel{
			{Level: 1, ApproverIDs: []string{"A", "B", "C"}, RequiredApprovals: 2},
		},
	}
	req, err := NewRequest(wf, testSubmission(100), "test", nil, now)
	require.NoError(t, err)
	step := req.Steps[0]
	require.NoError(t, req.ActivateStep(step, []string{"A", "B", "C"}, nil, now))

	_, err = req.ApplyDecision(step.ID, "A", DecisionApproved, "", now)
	require.NoError(t, err)
	assert.Equal(t, 1, step.ApprovalsReceived)

	outcome, err := req.ApplyDecision(step.ID, "B", DecisionApproved, "", now)
	require.NoError(t, err)
	assert.Equal(t, 2, step.ApprovalsReceived)
	assert.True(t, outcome.StepApproved)
	assert.True(t, outcome.RequestApproved)
	assert.Equal(t, DecisionPending, step.Decisions["C"].Decision)
}

// TestApplyDecision_QuorumUnreachable 测试法定人数不可达时拒绝
// quorum=2 名册 2 人,一人拒绝后剩余未决人数不足以凑齐法定人数
func TestApplyDecision_QuorumUnreachable(t *testing.T) {
	now := time.Now()
	wf := &ApprovalWorkflow{
		ID: "wf-q2",
		Levels: []ApprovalLevel{
			{Level: 1, ApproverIDs: []string{"A", "B"}, RequiredApprovals: 2},
		},
	}
	req, err := NewRequest(wf, testSubmission(100), "test", nil, now)
	require.NoError(t, err)
	step := req.Steps[0]
	require.NoError(t, req.ActivateStep(step, []string{"A", "B"}, nil, now))

	outcome, err := req.ApplyDecision(step.ID, "A", DecisionRejected, "", now)
	require.NoError(t, err)
	assert.True(t, outcome.StepRejected)
	assert.Equal(t, RequestStatusRejected, req.Status)
}

// TestApplyDecision_RejectionNotFinalWhenQuorumReachable 测试法定人数仍可达时拒绝不终结步骤
func TestApplyDecision_RejectionNotFinalWhenQuorumReachable(t *testing.T) {
	now := time.Now()
	wf := &ApprovalWorkflow{
		ID: "wf-q3",
		Levels: []ApprovalLevel{
			{Level: 1, ApproverIDs: []string{"A", "B", "C"}, RequiredApprovals: 2},
		},
	}
	req, err := NewRequest(wf, testSubmission(100), "test", nil, now)
	require.NoError(t, err)
	step := req.Steps[0]
	require.NoError(t, req.ActivateStep(step, []string{"A", "B", "C"}, nil, now))

	// 一人拒绝,剩余两人仍可凑齐法定人数
	outcome, err := req.ApplyDecision(step.ID, "A", DecisionRejected, "", now)
	require.NoError(t, err)
	assert.False(t, outcome.StepRejected)
	assert.Equal(t, StepStatusInReview, step.Status)

	_, err = req.ApplyDecision(step.ID, "B", DecisionApproved, "", now)
	require.NoError(t, err)
	outcome, err = req.ApplyDecision(step.ID, "C", DecisionApproved, "", now)
	require.NoError(t, err)
	assert.True(t, outcome.StepApproved)
}

// TestApplyDecision_CountInvariant 测试计数不变量
// 每次应用决定后 approvalsReceived == count(decision == approved)
func TestApplyDecision_CountInvariant(t *testing.T) {
	now := time.Now()
	wf := &ApprovalWorkflow{
		ID: "wf-inv",
		Levels: []ApprovalLevel{
			{Level: 1, ApproverIDs: []string{"A", "B", "C"}, RequiredApprovals: 3},
		},
	}
	req, err := NewRequest(wf, testSubmission(100), "test", nil, now)
	require.NoError(t, err)
	step := req.Steps[0]
	require.NoError(t, req.ActivateStep(step, []string{"A", "B", "C"}, nil, now))

	checkInvariant := func() {
		count := 0
		for _, d := range step.Decisions {
			if d.Decision == DecisionApproved {
				count++
			}
		}
		assert.Equal(t, count, step.ApprovalsReceived)
	}

	_, err = req.ApplyDecision(step.ID, "A", DecisionApproved, "", now)
	require.NoError(t, err)
	checkInvariant()

	// 重复决定覆盖先前记录
	_, err = req.ApplyDecision(step.ID, "A", DecisionRejected, "改主意", now)
	require.NoError(t, err)
	checkInvariant()
	assert.Equal(t, 0, step.ApprovalsReceived)
}

// TestApplyDecision_InvalidCases 测试非法决定被拒绝且不改变状态
func TestApplyDecision_InvalidCases(t *testing.T) {
	now := time.Now()
	req, err := NewRequest(testWorkflow(), testSubmission(3000), "test", nil, now)
	require.NoError(t, err)
	step := req.Steps[0]
	require.NoError(t, req.ActivateStep(step, []string{"E1"}, nil, now))

	var transErr *InvalidTransitionError

	// 名册外的审批人
	_, err = req.ApplyDecision(step.ID, "stranger", DecisionApproved, "", now)
	require.ErrorAs(t, err, &transErr)

	// 自审批
	_, err = req.ApplyDecision(step.ID, "requester", DecisionApproved, "", now)
	require.ErrorAs(t, err, &transErr)

	// 不存在的步骤
	_, err = req.ApplyDecision("step-missing", "E1", DecisionApproved, "", now)
	require.ErrorAs(t, err, &transErr)

	// 已终结步骤
	_, err = req.ApplyDecision(step.ID, "E1", DecisionApproved, "", now)
	require.NoError(t, err)
	_, err = req.ApplyDecision(step.ID, "E1", DecisionRejected, "", now)
	assert.Error(t, err)
}

// TestCancel 测试取消
// 任何非终态均可取消,所有未终结步骤转为 cancelled;
// 取消后到达的决定被拒绝
func TestCancel(t *testing.T) {
	now := time.Now()
	req, err := NewRequest(testWorkflow(), testSubmission(3000), "test", nil, now)
	require.NoError(t, err)
	step := req.Steps[0]
	require.NoError(t, req.ActivateStep(step, []string{"E1"}, nil, now))

	require.NoError(t, req.Cancel("订单撤回", now))
	assert.Equal(t, RequestStatusCancelled, req.Status)
	assert.Equal(t, StepStatusCancelled, step.Status)

	_, err = req.ApplyDecision(step.ID, "E1", DecisionApproved, "", now)
	assert.ErrorIs(t, err, ErrRequestTerminal)

	// 重复取消被拒绝
	assert.ErrorIs(t, req.Cancel("again", now), ErrRequestTerminal)
}

// TestEscalateStep 测试步骤升级
func TestEscalateStep(t *testing.T) {
	now := time.Now()
	wf := &ApprovalWorkflow{
		ID: "wf-esc",
		Levels: []ApprovalLevel{
			{Level: 1, ApproverIDs: []string{"E1"}, RequiredApprovals: 1, EscalationHours: 24, EscalatesToLevel: 2},
			{Level: 2, ApproverIDs: []string{"M1"}, RequiredApprovals: 1, MinAmount: 999999},
		},
	}
	req, err := NewRequest(wf, testSubmission(100), "test", nil, now)
	require.NoError(t, err)
	require.Len(t, req.Steps, 1) // 层级 2 的窗口不匹配,创建时未实例化

	step := req.Steps[0]
	require.NoError(t, req.ActivateStep(step, []string{"E1"}, nil, now))
	require.NotNil(t, step.DueAt)

	// 24 小时后过期
	later := now.Add(25 * time.Hour)
	assert.Len(t, req.OverdueSteps(later), 1)

	outcome, err := req.EscalateStep(step.ID, later)
	require.NoError(t, err)
	assert.Equal(t, StepStatusEscalated, step.Status)
	assert.Equal(t, 2, outcome.EscalateToLevel)
	assert.Nil(t, outcome.NextStep) // 需要调用方从工作流层级追加

	next := req.AddEscalationStep(wf.Levels[1])
	require.NoError(t, req.ActivateStep(next, []string{"M1"}, nil, later))
	assert.Equal(t, 2, req.CurrentLevel)

	// 升级幂等: 已升级的步骤再次扫描是无操作
	outcome, err = req.EscalateStep(step.ID, later)
	require.NoError(t, err)
	assert.True(t, outcome.NoOp)
}

// TestEscalateStep_TerminalWithoutTarget 测试无升级目标时请求终结为 escalated
func TestEscalateStep_TerminalWithoutTarget(t *testing.T) {
	now := time.Now()
	wf := &ApprovalWorkflow{
		ID: "wf-esc2",
		Levels: []ApprovalLevel{
			{Level: 1, ApproverIDs: []string{"E1"}, RequiredApprovals: 1, EscalationHours: 24},
		},
	}
	req, err := NewRequest(wf, testSubmission(100), "test", nil, now)
	require.NoError(t, err)
	step := req.Steps[0]
	require.NoError(t, req.ActivateStep(step, []string{"E1"}, nil, now))

	outcome, err := req.EscalateStep(step.ID, now.Add(25*time.Hour))
	require.NoError(t, err)
	assert.True(t, outcome.RequestEscalated)
	assert.Equal(t, RequestStatusEscalated, req.Status)
}

// TestExpire 测试请求过期
func TestExpire(t *testing.T) {
	now := time.Now()
	req, err := NewRequest(testWorkflow(), testSubmission(3000), "test", nil, now)
	require.NoError(t, err)
	step := req.Steps[0]
	require.NoError(t, req.ActivateStep(step, []string{"E1"}, nil, now))

	assert.True(t, req.Expire(now.Add(time.Hour)))
	assert.Equal(t, RequestStatusExpired, req.Status)
	assert.Equal(t, StepStatusExpired, step.Status)

	// 幂等
	assert.False(t, req.Expire(now.Add(2*time.Hour)))
}

// TestMultiLevelAdvance 测试多层级逐级推进
func TestMultiLevelAdvance(t *testing.T) {
	now := time.Now()
	wf := &ApprovalWorkflow{
		ID: "wf-multi",
		Levels: []ApprovalLevel{
			{Level: 1, ApproverIDs: []string{"E1"}, RequiredApprovals: 1},
			{Level: 2, ApproverIDs: []string{"M1"}, RequiredApprovals: 1},
		},
	}
	req, err := NewRequest(wf, testSubmission(100), "test", nil, now)
	require.NoError(t, err)
	require.Len(t, req.Steps, 2)
	assert.Equal(t, 2, req.TotalLevels)
	assert.Equal(t, 1, req.CurrentLevel)

	step1 := req.StepByLevel(1)
	require.NoError(t, req.ActivateStep(step1, []string{"E1"}, nil, now))

	outcome, err := req.ApplyDecision(step1.ID, "E1", DecisionApproved, "", now)
	require.NoError(t, err)
	assert.True(t, outcome.StepApproved)
	assert.False(t, outcome.RequestApproved)
	require.NotNil(t, outcome.NextStep)
	assert.Equal(t, 2, outcome.NextStep.Level)

	require.NoError(t, req.ActivateStep(outcome.NextStep, []string{"M1"}, nil, now))
	assert.Equal(t, 2, req.CurrentLevel)

	outcome, err = req.ApplyDecision(outcome.NextStep.ID, "M1", DecisionApproved, "", now)
	require.NoError(t, err)
	assert.True(t, outcome.RequestApproved)
	assert.Equal(t, RequestStatusApproved, req.Status)
}

// TestErrorsAs 测试错误类型可被 errors.As/Is 识别
func TestErrorsAs(t *testing.T) {
	var cfgErr *ConfigurationError
	assert.True(t, errors.As(NewConfigurationError("x"), &cfgErr))

	var transErr *InvalidTransitionError
	assert.True(t, errors.As(NewInvalidTransition("y"), &transErr))

	breach := &LimitBreachError{LimitID: "lim-1", Remaining: 500}
	var breachErr *LimitBreachError
	assert.True(t, errors.As(breach, &breachErr))
	assert.Contains(t, breach.Error(), "lim-1")
}
