package integration

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jewelmart/approval-core/internal/engine"
	"github.com/jewelmart/approval-core/internal/metrics"
	"github.com/jewelmart/approval-core/internal/model"
	"github.com/jewelmart/approval-core/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 决定写入的乐观并发重试上限
// 冲突时重读聚合再应用,超过上限将冲突上抛给调用方
const maxCASRetries = 3

// 发件箱事件类型
const (
	EventRequestCreated   = "request.created"
	EventApprovalNeeded   = "approval.needed"
	EventRequestApproved  = "request.approved"
	EventRequestRejected  = "request.rejected"
	EventRequestCancelled = "request.cancelled"
	EventRequestEscalated = "request.escalated"
	EventRequestExpired   = "request.expired"
	EventStepAdvanced     = "step.advanced"
	EventStepEscalated    = "step.escalated"
	EventLimitWarning     = "limit.warning"
	EventLimitExceeded    = "limit.exceeded"
)

// SubmitResult 提交评估的结果
// RequestRequired 为假时实体无需审批,可直接放行;
// Blocked 为真时实体被规则直接拒绝,同样不创建请求。
type SubmitResult struct {
	RequestRequired  bool                     `json:"request_required"`
	Blocked          bool                     `json:"blocked"`
	RuleAction       engine.RuleAction        `json:"rule_action"`
	MatchedRuleID    string                   `json:"matched_rule_id,omitempty"`
	TriggerReason    string                   `json:"trigger_reason,omitempty"`
	LimitEvaluations []engine.LimitEvaluation `json:"limit_evaluations,omitempty"`
	Request          *engine.ApprovalRequest  `json:"request,omitempty"`
}

// RequestManager 审批请求编排器
// 把引擎的纯状态转换接到存储、委托解析、账本和事件发件箱上
type RequestManager interface {
	Submit(sub *engine.Submission) (*SubmitResult, error)
	Decide(requestID, stepID, approverID string, decision engine.DecisionValue, comment string) (*engine.DecisionOutcome, *engine.ApprovalRequest, error)
	Cancel(requestID, operatorID, reason string) (*engine.ApprovalRequest, error)
	Get(requestID string) (*engine.ApprovalRequest, error)
	List(filter *repository.RequestFilter) ([]*engine.ApprovalRequest, int64, error)
	History(requestID string) ([]*model.StatusHistoryModel, error)
	Sweep(now time.Time, batchSize int) (int, error)
}

// dbRequestManager 基于数据库的审批请求编排器
type dbRequestManager struct {
	db             *gorm.DB
	workflowMgr    WorkflowManager
	ledger         SpendingLedger
	requestRepo    repository.RequestRepository
	delegationRepo repository.DelegationRepository
	ruleRepo       repository.RuleRepository
	employeeRepo   repository.EmployeeRepository
	historyRepo    repository.StatusHistoryRepository
	eventRepo      repository.EventRepository
	logger         *logrus.Entry
}

// NewRequestManager 创建审批请求编排器
func NewRequestManager(db *gorm.DB, workflowMgr WorkflowManager, ledger SpendingLedger) RequestManager {
	return &dbRequestManager{
		db:             db,
		workflowMgr:    workflowMgr,
		ledger:         ledger,
		requestRepo:    repository.NewRequestRepository(db),
		delegationRepo: repository.NewDelegationRepository(db),
		ruleRepo:       repository.NewRuleRepository(db),
		employeeRepo:   repository.NewEmployeeRepository(db),
		historyRepo:    repository.NewStatusHistoryRepository(db),
		eventRepo:      repository.NewEventRepository(db),
		logger:         logrus.WithField("component", "request_manager"),
	}
}

// Submit 评估提交并在需要时实例化审批请求
// 评估次序: 规则 -> 限额 -> 工作流解析 -> 触发条件。
// block 规则直接拒绝;规则要求审批但无工作流可解析时报配置错误;
// 其余无工作流或触发条件不满足的情况直接放行。
func (m *dbRequestManager) Submit(sub *engine.Submission) (*SubmitResult, error) {
	now := time.Now()

	// 1. 规则评估
	rules, err := m.loadRules(sub.CompanyID)
	if err != nil {
		return nil, err
	}
	action, rule := engine.EvaluateRules(rules, sub)

	result := &SubmitResult{RuleAction: action}
	if rule != nil {
		result.MatchedRuleID = rule.ID
	}

	// 2. 限额评估,超限谓词注入提交供触发条件使用
	evals, err := m.ledger.Evaluate(sub)
	if err != nil {
		return nil, err
	}
	result.LimitEvaluations = evals
	_, exceeded := engine.AnyExceeded(evals)
	sub.SpendingLimitExceeded = exceeded

	// 3. block 规则直接拒绝,不创建请求
	// 拒绝由超限引起时以 LimitBreachError 上抛,携带限额标识和余额
	if action == engine.ActionBlock {
		result.Blocked = true
		m.logger.WithFields(logrus.Fields{
			"company_id": sub.CompanyID,
			"entity_id":  sub.EntityID,
			"rule_id":    result.MatchedRuleID,
		}).Info("submission blocked by spending rule")
		if err := m.appendLimitEvents(m.db, sub, "", evals); err != nil {
			return nil, err
		}
		if breach, ok := engine.AnyExceeded(evals); ok {
			return result, &engine.LimitBreachError{
				LimitID:   breach.LimitID,
				Scope:     breach.Scope,
				Period:    breach.Period,
				Remaining: breach.Remaining,
			}
		}
		return result, nil
	}

	// 4. 工作流解析
	// 规则要求审批却无工作流可解析时属配置错误,拒绝而非放行
	wf, err := m.workflowMgr.Resolve(sub)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		if action == engine.ActionRequireApproval || action == engine.ActionEscalate {
			return nil, engine.NewConfigurationError(
				"rule %s requires approval but no workflow is resolvable for company %s",
				result.MatchedRuleID, sub.CompanyID)
		}
		if err := m.appendLimitEvents(m.db, sub, "", evals); err != nil {
			return nil, err
		}
		return result, nil
	}

	// 5. 触发条件评估
	required, reason := engine.EvaluateTriggers(wf, sub, action)
	if !required {
		if err := m.appendLimitEvents(m.db, sub, "", evals); err != nil {
			return nil, err
		}
		return result, nil
	}
	result.RequestRequired = true
	result.TriggerReason = reason

	// 6. 实例化请求并激活首个步骤
	req, err := engine.NewRequest(wf, sub, reason, sub.DueAt, now)
	if err != nil {
		return nil, err
	}
	if err := m.activateLevel(req, req.ActiveStep(), wf, now); err != nil {
		return nil, err
	}

	// 7. 持久化,历史与事件与请求同事务落盘
	err = m.db.Transaction(func(tx *gorm.DB) error {
		rm, err := requestToModel(req, 1)
		if err != nil {
			return err
		}
		if err := repository.NewRequestRepository(tx).Create(rm); err != nil {
			return fmt.Errorf("failed to save request: %w", err)
		}
		if err := m.appendHistory(tx, req.ID, "", string(req.Status), sub.RequesterID, reason); err != nil {
			return err
		}
		if err := m.appendEvent(tx, req, EventRequestCreated); err != nil {
			return err
		}
		// 每个新激活步骤通知其冻结名册上的审批人
		if err := m.appendEvent(tx, req, EventApprovalNeeded); err != nil {
			return err
		}
		return m.appendLimitEvents(tx, sub, req.ID, evals)
	})
	if err != nil {
		return nil, err
	}

	result.Request = req
	return result, nil
}

// Decide 应用审批人的决定
// 读-改-写带版本号 CAS,冲突时重读聚合再应用;
// 最终通过在同一事务内联动消费账本,超限则整体回滚。
func (m *dbRequestManager) Decide(requestID, stepID, approverID string, decision engine.DecisionValue, comment string) (*engine.DecisionOutcome, *engine.ApprovalRequest, error) {
	now := time.Now()

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		rm, err := m.requestRepo.FindByID(requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, engine.ErrRequestNotFound
			}
			return nil, nil, err
		}
		req, err := requestFromModel(rm)
		if err != nil {
			return nil, nil, err
		}

		priorStatus := string(req.Status)
		outcome, err := req.ApplyDecision(stepID, approverID, decision, comment, now)
		if err != nil {
			return nil, req, err
		}

		// 步骤通过后激活下一层级,名册在此刻解析并冻结
		if outcome.NextStep != nil {
			wf, err := m.workflowMgr.Get(req.WorkflowID)
			if err != nil {
				return nil, req, err
			}
			if err := m.activateLevel(req, outcome.NextStep, wf, now); err != nil {
				return nil, req, err
			}
		}

		err = m.db.Transaction(func(tx *gorm.DB) error {
			saved, err := requestToModel(req, rm.Version)
			if err != nil {
				return err
			}
			if err := repository.NewRequestRepository(tx).SaveWithVersion(saved); err != nil {
				return err
			}
			if priorStatus != string(req.Status) {
				if err := m.appendHistory(tx, req.ID, priorStatus, string(req.Status), approverID, comment); err != nil {
					return err
				}
			}

			switch {
			case outcome.RequestApproved:
				if err := m.commitSpending(tx, req); err != nil {
					return err
				}
				if err := m.appendEvent(tx, req, EventRequestApproved); err != nil {
					return err
				}
			case outcome.RequestRejected:
				if err := m.appendEvent(tx, req, EventRequestRejected); err != nil {
					return err
				}
			case outcome.StepApproved:
				if err := m.appendEvent(tx, req, EventStepAdvanced); err != nil {
					return err
				}
				if err := m.appendEvent(tx, req, EventApprovalNeeded); err != nil {
					return err
				}
			}
			return nil
		})
		if errors.Is(err, engine.ErrVersionConflict) {
			m.logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"attempt":    attempt + 1,
			}).Warn("concurrent modification detected, retrying decision")
			continue
		}
		if err != nil {
			return nil, req, err
		}
		return outcome, req, nil
	}

	return nil, nil, engine.ErrVersionConflict
}

// Cancel 取消在途请求
func (m *dbRequestManager) Cancel(requestID, operatorID, reason string) (*engine.ApprovalRequest, error) {
	now := time.Now()

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		rm, err := m.requestRepo.FindByID(requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, engine.ErrRequestNotFound
			}
			return nil, err
		}
		req, err := requestFromModel(rm)
		if err != nil {
			return nil, err
		}

		priorStatus := string(req.Status)
		if err := req.Cancel(reason, now); err != nil {
			return req, err
		}

		err = m.db.Transaction(func(tx *gorm.DB) error {
			saved, err := requestToModel(req, rm.Version)
			if err != nil {
				return err
			}
			if err := repository.NewRequestRepository(tx).SaveWithVersion(saved); err != nil {
				return err
			}
			if err := m.appendHistory(tx, req.ID, priorStatus, string(req.Status), operatorID, reason); err != nil {
				return err
			}
			return m.appendEvent(tx, req, EventRequestCancelled)
		})
		if errors.Is(err, engine.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return req, err
		}
		return req, nil
	}

	return nil, engine.ErrVersionConflict
}

// Get 获取请求聚合
func (m *dbRequestManager) Get(requestID string) (*engine.ApprovalRequest, error) {
	rm, err := m.requestRepo.FindByID(requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, engine.ErrRequestNotFound
		}
		return nil, err
	}
	return requestFromModel(rm)
}

// List 分页查询请求
func (m *dbRequestManager) List(filter *repository.RequestFilter) ([]*engine.ApprovalRequest, int64, error) {
	models, total, err := m.requestRepo.FindByFilter(filter)
	if err != nil {
		return nil, 0, err
	}
	requests := make([]*engine.ApprovalRequest, 0, len(models))
	for _, rm := range models {
		req, err := requestFromModel(rm)
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, req)
	}
	return requests, total, nil
}

// History 获取请求的状态变更历史
func (m *dbRequestManager) History(requestID string) ([]*model.StatusHistoryModel, error) {
	return m.historyRepo.FindByRequestID(requestID)
}

// Sweep 扫描在途请求,处理过期与升级
// 幂等: 引擎侧对已离开 pending/in_review 的步骤不会二次升级,
// 版本冲突的请求跳过,留给下一轮扫描。
func (m *dbRequestManager) Sweep(now time.Time, batchSize int) (int, error) {
	models, err := m.requestRepo.FindOverdue(now, batchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, rm := range models {
		changed, err := m.sweepOne(rm, now)
		if err != nil {
			if errors.Is(err, engine.ErrVersionConflict) {
				continue
			}
			m.logger.WithError(err).WithField("request_id", rm.ID).Error("sweep failed for request")
			continue
		}
		if changed {
			processed++
		}
	}
	return processed, nil
}

// sweepOne 处理单个请求的过期与升级
func (m *dbRequestManager) sweepOne(rm *model.RequestModel, now time.Time) (bool, error) {
	req, err := requestFromModel(rm)
	if err != nil {
		return false, err
	}
	priorStatus := string(req.Status)

	// 1. 请求级截止时间
	if req.DueAt != nil && now.After(*req.DueAt) {
		if !req.Expire(now) {
			return false, nil
		}
		err := m.persistSweep(req, rm.Version, priorStatus, "request deadline passed", EventRequestExpired)
		return err == nil, err
	}

	// 2. 步骤级升级
	overdue := req.OverdueSteps(now)
	if len(overdue) == 0 {
		return false, nil
	}

	var events []string
	for _, step := range overdue {
		outcome, err := req.EscalateStep(step.ID, now)
		if err != nil {
			return false, err
		}
		if outcome.NoOp {
			continue
		}

		if outcome.RequestEscalated {
			events = append(events, EventRequestEscalated)
			continue
		}

		// 升级到目标层级,步骤不存在时按工作流当前配置补建
		next := outcome.NextStep
		wf, err := m.workflowMgr.Get(req.WorkflowID)
		if err != nil {
			return false, err
		}
		if next == nil {
			level, ok := findLevel(wf, outcome.EscalateToLevel)
			if !ok {
				// 目标层级已从工作流中移除,请求终结等待人工介入
				m.logger.WithFields(logrus.Fields{
					"request_id": req.ID,
					"level":      outcome.EscalateToLevel,
				}).Error("escalation target level no longer defined in workflow")
				req.Status = engine.RequestStatusEscalated
				req.CompletedAt = &now
				events = append(events, EventRequestEscalated)
				continue
			}
			next = req.AddEscalationStep(level)
		}
		if err := m.activateLevel(req, next, wf, now); err != nil {
			return false, err
		}
		events = append(events, EventStepEscalated, EventApprovalNeeded)
	}

	if len(events) == 0 {
		return false, nil
	}
	if err := m.persistSweep(req, rm.Version, priorStatus, "escalation deadline passed", events...); err != nil {
		return false, err
	}
	for range events {
		metrics.RecordEscalation()
	}
	return true, nil
}

// persistSweep 保存扫描产生的状态变更
func (m *dbRequestManager) persistSweep(req *engine.ApprovalRequest, version int, priorStatus, reason string, eventTypes ...string) error {
	return m.db.Transaction(func(tx *gorm.DB) error {
		saved, err := requestToModel(req, version)
		if err != nil {
			return err
		}
		if err := repository.NewRequestRepository(tx).SaveWithVersion(saved); err != nil {
			return err
		}
		if priorStatus != string(req.Status) {
			if err := m.appendHistory(tx, req.ID, priorStatus, string(req.Status), "system", reason); err != nil {
				return err
			}
		}
		for _, eventType := range eventTypes {
			if err := m.appendEvent(tx, req, eventType); err != nil {
				return err
			}
		}
		return nil
	})
}

// loadRules 加载并反序列化公司的启用规则
func (m *dbRequestManager) loadRules(companyID string) ([]*engine.SpendingRule, error) {
	models, err := m.ruleRepo.FindActiveByCompany(companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load spending rules: %w", err)
	}
	rules := make([]*engine.SpendingRule, 0, len(models))
	for _, rmodel := range models {
		var rule engine.SpendingRule
		if err := json.Unmarshal(rmodel.Data, &rule); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rule %s: %w", rmodel.ID, err)
		}
		rules = append(rules, &rule)
	}
	return rules, nil
}

// activateLevel 解析名册并激活步骤
// 名义名册来自层级配置的显式审批人和角色成员,
// 经委托改写、请求人排除、去重后冻结到步骤上。
func (m *dbRequestManager) activateLevel(req *engine.ApprovalRequest, step *engine.ApprovalStep, wf *engine.ApprovalWorkflow, now time.Time) error {
	if step == nil {
		return engine.NewConfigurationError("request %s has no step to activate", req.ID)
	}
	if step.Activated() {
		return nil
	}

	level, ok := findLevel(wf, step.Level)
	if !ok {
		return engine.NewConfigurationError("workflow %q does not define level %d", wf.ID, step.Level)
	}

	nominal := append([]string{}, level.ApproverIDs...)
	if level.ApproverRole != "" {
		members, err := m.roleMembers(req.CompanyID, level.ApproverRole, level.ApproverDepartmentID)
		if err != nil {
			return err
		}
		nominal = append(nominal, members...)
	}

	delegations, err := m.loadDelegations(req.CompanyID, now)
	if err != nil {
		return err
	}

	roster, records := engine.ResolveRoster(nominal, delegations, req.EntityType, req.Amount, req.RequesterID, now)
	return req.ActivateStep(step, roster, records, now)
}

// roleMembers 查找公司内持有指定角色的员工
func (m *dbRequestManager) roleMembers(companyID, role, departmentID string) ([]string, error) {
	employees, err := m.employeeRepo.FindByCompany(companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load employees: %w", err)
	}
	ids := make([]string, 0, len(employees))
	for _, emp := range employees {
		if !emp.IsActive || emp.Role != role {
			continue
		}
		if departmentID != "" && emp.DepartmentID != departmentID {
			continue
		}
		ids = append(ids, emp.ID)
	}
	return ids, nil
}

// loadDelegations 加载并反序列化生效中的委托
func (m *dbRequestManager) loadDelegations(companyID string, now time.Time) ([]*engine.ApprovalDelegation, error) {
	models, err := m.delegationRepo.FindActive(companyID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load delegations: %w", err)
	}
	delegations := make([]*engine.ApprovalDelegation, 0, len(models))
	for _, dm := range models {
		var d engine.ApprovalDelegation
		if err := json.Unmarshal(dm.Data, &d); err != nil {
			return nil, fmt.Errorf("failed to unmarshal delegation %s: %w", dm.ID, err)
		}
		delegations = append(delegations, &d)
	}
	return delegations, nil
}

// commitSpending 最终通过时联动消费账本
// 与请求状态写入同事务,超限重校验失败则整体回滚
func (m *dbRequestManager) commitSpending(tx *gorm.DB, req *engine.ApprovalRequest) error {
	departmentID, role := "", ""
	if emp, err := m.employeeRepo.FindByID(req.RequesterID); err == nil {
		departmentID = emp.DepartmentID
		role = emp.Role
	}

	txn := &engine.SpendingTransaction{
		CompanyID:    req.CompanyID,
		EmployeeID:   req.RequesterID,
		DepartmentID: departmentID,
		Role:         role,
		EntityID:     req.EntityID,
		EntityType:   req.EntityType,
		Type:         engine.TransactionSpend,
		Amount:       req.Amount,
		Currency:     req.Currency,
	}
	return m.ledger.ApplyInTx(tx, txn, true)
}

// appendHistory 追加状态历史
func (m *dbRequestManager) appendHistory(tx *gorm.DB, requestID, from, to, operator, reason string) error {
	history := &model.StatusHistoryModel{
		ID:         "hist-" + uuid.NewString(),
		RequestID:  requestID,
		FromStatus: from,
		ToStatus:   to,
		Reason:     reason,
		Operator:   operator,
		CreatedAt:  time.Now(),
	}
	if err := m.historyRepo.WithTx(tx).Save(history); err != nil {
		return fmt.Errorf("failed to save status history: %w", err)
	}
	return nil
}

// eventPayload 发件箱事件负载
type eventPayload struct {
	Type    string                  `json:"type"`
	Request *engine.ApprovalRequest `json:"request"`
}

// appendEvent 追加发件箱事件
// 与产生它的状态变更同事务写入,投递由独立的分发器异步完成
func (m *dbRequestManager) appendEvent(tx *gorm.DB, req *engine.ApprovalRequest, eventType string) error {
	data, err := json.Marshal(&eventPayload{Type: eventType, Request: req})
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	now := time.Now()
	event := &model.EventModel{
		ID:        "evt-" + uuid.NewString(),
		RequestID: req.ID,
		CompanyID: req.CompanyID,
		Type:      eventType,
		Data:      data,
		Status:    "pending",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.eventRepo.WithTx(tx).Save(event); err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

// appendLimitEvents 为每条预警或超限评估追加限额事件
// 每次提交评估都发布,与是否创建请求无关;
// 放行和拒绝路径的事件没有关联请求,requestID 为空
func (m *dbRequestManager) appendLimitEvents(tx *gorm.DB, sub *engine.Submission, requestID string, evals []engine.LimitEvaluation) error {
	for _, eval := range evals {
		var eventType string
		switch {
		case eval.IsExceeded:
			eventType = EventLimitExceeded
		case eval.IsWarning:
			eventType = EventLimitWarning
		default:
			continue
		}
		data, err := json.Marshal(map[string]interface{}{
			"type":       eventType,
			"request_id": requestID,
			"company_id": sub.CompanyID,
			"entity_id":  sub.EntityID,
			"evaluation": eval,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal limit event: %w", err)
		}
		now := time.Now()
		event := &model.EventModel{
			ID:        "evt-" + uuid.NewString(),
			RequestID: requestID,
			CompanyID: sub.CompanyID,
			Type:      eventType,
			Data:      data,
			Status:    "pending",
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := m.eventRepo.WithTx(tx).Save(event); err != nil {
			return fmt.Errorf("failed to save limit event: %w", err)
		}
	}
	return nil
}

// requestToModel 序列化请求聚合
func requestToModel(req *engine.ApprovalRequest, version int) (*model.RequestModel, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return &model.RequestModel{
		ID:           req.ID,
		CompanyID:    req.CompanyID,
		EntityID:     req.EntityID,
		EntityType:   string(req.EntityType),
		WorkflowID:   req.WorkflowID,
		RequesterID:  req.RequesterID,
		Status:       string(req.Status),
		CurrentLevel: req.CurrentLevel,
		Amount:       req.Amount,
		Currency:     req.Currency,
		Data:         data,
		Version:      version,
		CreatedAt:    req.CreatedAt,
		UpdatedAt:    req.UpdatedAt,
		CompletedAt:  req.CompletedAt,
	}, nil
}

// requestFromModel 反序列化请求聚合
func requestFromModel(rm *model.RequestModel) (*engine.ApprovalRequest, error) {
	var req engine.ApprovalRequest
	if err := json.Unmarshal(rm.Data, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}
	return &req, nil
}
