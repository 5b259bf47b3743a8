package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jewelmart/approval-core/internal/engine"
	"github.com/jewelmart/approval-core/internal/integration"
	"github.com/jewelmart/approval-core/internal/model"
	"github.com/jewelmart/approval-core/internal/repository"
	"github.com/sirupsen/logrus"
)

// SpendingService 消费限额与规则服务
type SpendingService interface {
	CreateLimit(ctx context.Context, limit *engine.SpendingLimit) (*engine.SpendingLimit, error)
	UpdateLimit(ctx context.Context, limit *engine.SpendingLimit) error
	DeleteLimit(ctx context.Context, companyID, id string) error
	ListLimits(companyID string) ([]*engine.SpendingLimit, error)
	LimitStatus(companyID, employeeID, departmentID, role string) ([]*engine.SpendingLimit, error)
	Evaluate(req *EvaluateRequest) ([]engine.LimitEvaluation, error)

	CreateRule(ctx context.Context, rule *engine.SpendingRule) (*engine.SpendingRule, error)
	UpdateRule(ctx context.Context, rule *engine.SpendingRule) error
	DeleteRule(ctx context.Context, companyID, id string) error
	ListRules(companyID string) ([]*engine.SpendingRule, error)

	RecordTransaction(ctx context.Context, req *TransactionRequest) error
	ListTransactions(employeeID string, limit int) ([]*model.SpendingTransactionModel, error)
}

// TransactionRequest 消费流水入账请求
// @Description 退款与冲正入账的请求参数
type TransactionRequest struct {
	CompanyID    string  `json:"company_id" binding:"required" example:"co-001"`    // 公司 ID
	EmployeeID   string  `json:"employee_id" binding:"required" example:"emp-001"`  // 员工 ID
	DepartmentID string  `json:"department_id" example:"dept-01"`                   // 部门 ID
	Role         string  `json:"role" example:"buyer"`                              // 员工角色
	EntityID     string  `json:"entity_id" binding:"required" example:"order-1001"` // 业务实体 ID
	EntityType   string  `json:"entity_type" binding:"required" example:"order"`    // 实体类型
	Type         string  `json:"type" binding:"required" example:"refund"`          // 类型: refund/adjustment
	Amount       float64 `json:"amount" binding:"required" example:"-500.00"`       // 金额,负值表示冲减
	Currency     string  `json:"currency" example:"USD"`                            // 币种
}

// EvaluateRequest 候选消费预评估的请求参数
// @Description 只读评估,不产生流水也不更新限额
type EvaluateRequest struct {
	CompanyID    string  `json:"company_id" binding:"required" example:"co-001"`   // 公司 ID
	EmployeeID   string  `json:"employee_id" binding:"required" example:"emp-001"` // 员工 ID
	DepartmentID string  `json:"department_id" example:"dept-01"`                  // 部门 ID
	Role         string  `json:"role" example:"buyer"`                             // 员工角色
	Amount       float64 `json:"amount" binding:"required" example:"2500.00"`      // 候选金额
}

// spendingService 消费限额与规则服务实现
type spendingService struct {
	ledger      integration.SpendingLedger
	limitRepo   repository.LimitRepository
	ruleRepo    repository.RuleRepository
	txnRepo     repository.TransactionRepository
	auditLogSvc AuditLogService
	loc         *time.Location
}

// NewSpendingService 创建消费限额与规则服务
func NewSpendingService(ledger integration.SpendingLedger, limitRepo repository.LimitRepository,
	ruleRepo repository.RuleRepository, txnRepo repository.TransactionRepository,
	auditLogSvc AuditLogService, loc *time.Location) SpendingService {
	if loc == nil {
		loc = time.UTC
	}
	return &spendingService{
		ledger:      ledger,
		limitRepo:   limitRepo,
		ruleRepo:    ruleRepo,
		txnRepo:     txnRepo,
		auditLogSvc: auditLogSvc,
		loc:         loc,
	}
}

// CreateLimit 创建消费限额
// 周期限额的首个重置时点按当前时间对齐到下一个周期边界
func (s *spendingService) CreateLimit(ctx context.Context, limit *engine.SpendingLimit) (*engine.SpendingLimit, error) {
	if limit.ID == "" {
		limit.ID = "lim-" + uuid.NewString()
	}
	if !limit.Period.Valid() {
		return nil, engine.NewConfigurationError("spending period %q is not valid", limit.Period)
	}
	if limit.LimitAmount <= 0 {
		return nil, engine.NewConfigurationError("limit amount must be positive")
	}

	now := time.Now()
	limit.CurrentSpending = 0
	limit.LastResetAt = now
	limit.NextResetAt = engine.NextResetAt(limit.Period, now, s.loc)

	lm := spendingLimitToModel(limit)
	lm.CreatedAt = now
	lm.UpdatedAt = now
	if err := s.limitRepo.Save(lm); err != nil {
		return nil, err
	}

	s.audit(ctx, limit.CompanyID, "create", "limit", limit.ID,
		fmt.Sprintf(`{"limit_id":"%s","scope":"%s","period":"%s","amount":%.2f}`,
			limit.ID, limit.Scope, limit.Period, limit.LimitAmount))
	return limit, nil
}

// UpdateLimit 更新消费限额配置
// 累计消费与重置时点由账本维护,这里不允许改写
func (s *spendingService) UpdateLimit(ctx context.Context, limit *engine.SpendingLimit) error {
	current, err := s.limitRepo.FindByID(limit.ID)
	if err != nil {
		return fmt.Errorf("spending limit not found: %w", err)
	}

	current.Scope = string(limit.Scope)
	current.EmployeeID = limit.EmployeeID
	current.DepartmentID = limit.DepartmentID
	current.Role = limit.Role
	current.LimitAmount = limit.LimitAmount
	current.WarningThreshold = limit.WarningThreshold
	current.IsActive = limit.IsActive
	current.UpdatedAt = time.Now()

	if err := s.limitRepo.Save(current); err != nil {
		return err
	}

	s.audit(ctx, current.CompanyID, "update", "limit", current.ID,
		fmt.Sprintf(`{"limit_id":"%s","amount":%.2f}`, current.ID, current.LimitAmount))
	return nil
}

// DeleteLimit 删除消费限额
func (s *spendingService) DeleteLimit(ctx context.Context, companyID, id string) error {
	if err := s.limitRepo.Delete(id); err != nil {
		return err
	}
	s.audit(ctx, companyID, "delete", "limit", id, fmt.Sprintf(`{"limit_id":"%s"}`, id))
	return nil
}

// ListLimits 列出公司下的限额
func (s *spendingService) ListLimits(companyID string) ([]*engine.SpendingLimit, error) {
	models, err := s.limitRepo.FindActiveByCompany(companyID)
	if err != nil {
		return nil, err
	}
	limits := make([]*engine.SpendingLimit, 0, len(models))
	for _, lm := range models {
		limits = append(limits, spendingLimitFromModel(lm))
	}
	return limits, nil
}

// LimitStatus 查询作用于指定员工的限额及其余额
func (s *spendingService) LimitStatus(companyID, employeeID, departmentID, role string) ([]*engine.SpendingLimit, error) {
	all, err := s.ListLimits(companyID)
	if err != nil {
		return nil, err
	}
	applicable := make([]*engine.SpendingLimit, 0, len(all))
	for _, limit := range all {
		if limit.Applies(companyID, employeeID, departmentID, role) {
			applicable = append(applicable, limit)
		}
	}
	return applicable, nil
}

// Evaluate 预评估一笔候选消费对适用限额的影响
// 只读路径,结果可能落后于并发消费,硬校验在审批最终通过入账时进行
func (s *spendingService) Evaluate(req *EvaluateRequest) ([]engine.LimitEvaluation, error) {
	sub := &engine.Submission{
		CompanyID:    req.CompanyID,
		RequesterID:  req.EmployeeID,
		DepartmentID: req.DepartmentID,
		Role:         req.Role,
		Amount:       req.Amount,
	}
	return s.ledger.Evaluate(sub)
}

// CreateRule 创建消费规则
func (s *spendingService) CreateRule(ctx context.Context, rule *engine.SpendingRule) (*engine.SpendingRule, error) {
	if rule.ID == "" {
		rule.ID = "rule-" + uuid.NewString()
	}
	if !rule.Action.Valid() {
		return nil, engine.NewConfigurationError("rule action %q is not valid", rule.Action)
	}
	rule.CreatedAt = time.Now()

	rm, err := spendingRuleToModel(rule)
	if err != nil {
		return nil, err
	}
	if err := s.ruleRepo.Save(rm); err != nil {
		return nil, err
	}

	s.audit(ctx, rule.CompanyID, "create", "rule", rule.ID,
		fmt.Sprintf(`{"rule_id":"%s","action":"%s","priority":%d}`, rule.ID, rule.Action, rule.Priority))
	return rule, nil
}

// UpdateRule 更新消费规则
func (s *spendingService) UpdateRule(ctx context.Context, rule *engine.SpendingRule) error {
	current, err := s.ruleRepo.FindByID(rule.ID)
	if err != nil {
		return fmt.Errorf("spending rule not found: %w", err)
	}
	if !rule.Action.Valid() {
		return engine.NewConfigurationError("rule action %q is not valid", rule.Action)
	}

	rule.CreatedAt = current.CreatedAt
	rm, err := spendingRuleToModel(rule)
	if err != nil {
		return err
	}
	rm.CreatedAt = current.CreatedAt
	rm.CreatedBy = current.CreatedBy
	if err := s.ruleRepo.Save(rm); err != nil {
		return err
	}

	s.audit(ctx, rule.CompanyID, "update", "rule", rule.ID,
		fmt.Sprintf(`{"rule_id":"%s"}`, rule.ID))
	return nil
}

// DeleteRule 删除消费规则
func (s *spendingService) DeleteRule(ctx context.Context, companyID, id string) error {
	if err := s.ruleRepo.Delete(id); err != nil {
		return err
	}
	s.audit(ctx, companyID, "delete", "rule", id, fmt.Sprintf(`{"rule_id":"%s"}`, id))
	return nil
}

// ListRules 列出公司下的规则
func (s *spendingService) ListRules(companyID string) ([]*engine.SpendingRule, error) {
	models, err := s.ruleRepo.FindByCompany(companyID)
	if err != nil {
		return nil, err
	}
	rules := make([]*engine.SpendingRule, 0, len(models))
	for _, rm := range models {
		var rule engine.SpendingRule
		if err := json.Unmarshal(rm.Data, &rule); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rule %s: %w", rm.ID, err)
		}
		rules = append(rules, &rule)
	}
	return rules, nil
}

// RecordTransaction 记录退款或冲正流水
// 正向消费由审批最终通过自动入账,这里只接受 refund/adjustment
func (s *spendingService) RecordTransaction(ctx context.Context, req *TransactionRequest) error {
	txnType := engine.TransactionType(req.Type)
	if txnType == engine.TransactionSpend {
		return engine.NewInvalidTransition("spend transactions are committed by approval, not recorded directly")
	}

	txn := &engine.SpendingTransaction{
		CompanyID:    req.CompanyID,
		EmployeeID:   req.EmployeeID,
		DepartmentID: req.DepartmentID,
		Role:         req.Role,
		EntityID:     req.EntityID,
		EntityType:   engine.EntityType(req.EntityType),
		Type:         txnType,
		Amount:       req.Amount,
		Currency:     req.Currency,
	}
	if err := s.ledger.Apply(txn, false); err != nil {
		return err
	}

	s.audit(ctx, req.CompanyID, "create", "transaction", txn.ID,
		fmt.Sprintf(`{"transaction_id":"%s","type":"%s","amount":%.2f}`, txn.ID, req.Type, req.Amount))
	return nil
}

// ListTransactions 列出员工最近的流水
func (s *spendingService) ListTransactions(employeeID string, limit int) ([]*model.SpendingTransactionModel, error) {
	return s.txnRepo.FindByEmployee(employeeID, limit)
}

// audit 记录审计日志
// 审计失败不阻断业务操作,但要在日志里留下痕迹
func (s *spendingService) audit(ctx context.Context, companyID, action, resourceType, resourceID, details string) {
	if s.auditLogSvc == nil {
		return
	}
	userID := getUserIDFromContext(ctx)
	if userID == "" {
		return
	}
	if err := s.auditLogSvc.RecordAction(ctx, companyID, userID, action, resourceType, resourceID, details); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"action":      action,
			"resource_id": resourceID,
		}).Warn("failed to record audit log")
	}
}

// spendingLimitToModel 引擎限额转换为模型
func spendingLimitToModel(limit *engine.SpendingLimit) *model.SpendingLimitModel {
	return &model.SpendingLimitModel{
		ID:               limit.ID,
		CompanyID:        limit.CompanyID,
		Scope:            string(limit.Scope),
		EmployeeID:       limit.EmployeeID,
		DepartmentID:     limit.DepartmentID,
		Role:             limit.Role,
		Period:           string(limit.Period),
		LimitAmount:      limit.LimitAmount,
		CurrentSpending:  limit.CurrentSpending,
		WarningThreshold: limit.WarningThreshold,
		IsActive:         limit.IsActive,
		LastResetAt:      limit.LastResetAt,
		NextResetAt:      limit.NextResetAt,
	}
}

// spendingLimitFromModel 模型转换为引擎限额
func spendingLimitFromModel(lm *model.SpendingLimitModel) *engine.SpendingLimit {
	return &engine.SpendingLimit{
		ID:               lm.ID,
		CompanyID:        lm.CompanyID,
		Scope:            engine.LimitScope(lm.Scope),
		EmployeeID:       lm.EmployeeID,
		DepartmentID:     lm.DepartmentID,
		Role:             lm.Role,
		Period:           engine.SpendingPeriod(lm.Period),
		LimitAmount:      lm.LimitAmount,
		CurrentSpending:  lm.CurrentSpending,
		WarningThreshold: lm.WarningThreshold,
		IsActive:         lm.IsActive,
		LastResetAt:      lm.LastResetAt,
		NextResetAt:      lm.NextResetAt,
	}
}

// spendingRuleToModel 序列化规则
func spendingRuleToModel(rule *engine.SpendingRule) (*model.SpendingRuleModel, error) {
	data, err := json.Marshal(rule)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rule: %w", err)
	}
	now := time.Now()
	return &model.SpendingRuleModel{
		ID:        rule.ID,
		CompanyID: rule.CompanyID,
		Name:      rule.Name,
		Priority:  rule.Priority,
		Action:    string(rule.Action),
		IsActive:  rule.IsActive,
		Data:      data,
		CreatedAt: rule.CreatedAt,
		UpdatedAt: now,
	}, nil
}
