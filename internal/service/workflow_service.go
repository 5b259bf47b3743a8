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

// WorkflowService 工作流与委托配置服务
type WorkflowService interface {
	CreateWorkflow(ctx context.Context, wf *engine.ApprovalWorkflow) (*engine.ApprovalWorkflow, error)
	GetWorkflow(id string) (*engine.ApprovalWorkflow, error)
	UpdateWorkflow(ctx context.Context, wf *engine.ApprovalWorkflow) error
	DeleteWorkflow(ctx context.Context, companyID, id string) error
	ListWorkflows(companyID string) ([]*engine.ApprovalWorkflow, error)

	CreateDelegation(ctx context.Context, d *engine.ApprovalDelegation) (*engine.ApprovalDelegation, error)
	RevokeDelegation(ctx context.Context, companyID, id string) error
	ListDelegations(delegatorID string) ([]*engine.ApprovalDelegation, error)
}

// workflowService 工作流配置服务实现
type workflowService struct {
	workflowMgr    integration.WorkflowManager
	delegationRepo repository.DelegationRepository
	auditLogSvc    AuditLogService
}

// NewWorkflowService 创建工作流配置服务
func NewWorkflowService(workflowMgr integration.WorkflowManager, delegationRepo repository.DelegationRepository, auditLogSvc AuditLogService) WorkflowService {
	return &workflowService{
		workflowMgr:    workflowMgr,
		delegationRepo: delegationRepo,
		auditLogSvc:    auditLogSvc,
	}
}

// CreateWorkflow 创建工作流
func (s *workflowService) CreateWorkflow(ctx context.Context, wf *engine.ApprovalWorkflow) (*engine.ApprovalWorkflow, error) {
	if err := s.workflowMgr.Create(wf); err != nil {
		return nil, err
	}

	details := fmt.Sprintf(`{"workflow_id":"%s","name":"%s"}`, wf.ID, wf.Name)
	s.audit(ctx, wf.CompanyID, "create", "workflow", wf.ID, details)
	return wf, nil
}

// GetWorkflow 获取工作流
func (s *workflowService) GetWorkflow(id string) (*engine.ApprovalWorkflow, error) {
	return s.workflowMgr.Get(id)
}

// UpdateWorkflow 更新工作流
// 更新只影响之后创建的请求,在途请求继续沿用创建时固化的步骤
func (s *workflowService) UpdateWorkflow(ctx context.Context, wf *engine.ApprovalWorkflow) error {
	if err := s.workflowMgr.Update(wf); err != nil {
		return err
	}

	s.audit(ctx, wf.CompanyID, "update", "workflow", wf.ID, fmt.Sprintf(`{"workflow_id":"%s"}`, wf.ID))
	return nil
}

// DeleteWorkflow 删除工作流
func (s *workflowService) DeleteWorkflow(ctx context.Context, companyID, id string) error {
	if err := s.workflowMgr.Delete(id); err != nil {
		return err
	}

	s.audit(ctx, companyID, "delete", "workflow", id, fmt.Sprintf(`{"workflow_id":"%s"}`, id))
	return nil
}

// ListWorkflows 列出公司下的工作流
func (s *workflowService) ListWorkflows(companyID string) ([]*engine.ApprovalWorkflow, error) {
	return s.workflowMgr.List(companyID)
}

// CreateDelegation 创建审批委托
func (s *workflowService) CreateDelegation(ctx context.Context, d *engine.ApprovalDelegation) (*engine.ApprovalDelegation, error) {
	if d.ID == "" {
		d.ID = "dlg-" + uuid.NewString()
	}
	if d.DelegatorID == "" || d.DelegateeID == "" {
		return nil, engine.NewConfigurationError("delegation requires both delegator and delegatee")
	}
	if d.DelegatorID == d.DelegateeID {
		return nil, engine.NewConfigurationError("delegator and delegatee must differ")
	}
	if d.EndDate.Before(d.StartDate) {
		return nil, engine.NewConfigurationError("delegation end date must not precede start date")
	}

	dm, err := delegationToModel(d)
	if err != nil {
		return nil, err
	}
	if err := s.delegationRepo.Save(dm); err != nil {
		return nil, err
	}

	details := fmt.Sprintf(`{"delegation_id":"%s","delegator":"%s","delegatee":"%s"}`,
		d.ID, d.DelegatorID, d.DelegateeID)
	s.audit(ctx, d.CompanyID, "create", "delegation", d.ID, details)
	return d, nil
}

// RevokeDelegation 撤销委托
// 已按旧委托冻结的名册不受影响,只影响之后的名册解析
func (s *workflowService) RevokeDelegation(ctx context.Context, companyID, id string) error {
	dm, err := s.delegationRepo.FindByID(id)
	if err != nil {
		return fmt.Errorf("delegation not found: %w", err)
	}

	var d engine.ApprovalDelegation
	if err := json.Unmarshal(dm.Data, &d); err != nil {
		return fmt.Errorf("failed to unmarshal delegation: %w", err)
	}
	d.IsActive = false

	updated, err := delegationToModel(&d)
	if err != nil {
		return err
	}
	updated.CreatedAt = dm.CreatedAt
	if err := s.delegationRepo.Save(updated); err != nil {
		return err
	}

	s.audit(ctx, companyID, "delete", "delegation", id, fmt.Sprintf(`{"delegation_id":"%s"}`, id))
	return nil
}

// audit 记录审计日志
// 审计失败不阻断业务操作,但要在日志里留下痕迹
func (s *workflowService) audit(ctx context.Context, companyID, action, resourceType, resourceID, details string) {
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

// ListDelegations 列出委托人名下的委托
func (s *workflowService) ListDelegations(delegatorID string) ([]*engine.ApprovalDelegation, error) {
	models, err := s.delegationRepo.FindByDelegator(delegatorID)
	if err != nil {
		return nil, err
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

// delegationToModel 序列化委托
func delegationToModel(d *engine.ApprovalDelegation) (*model.DelegationModel, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal delegation: %w", err)
	}
	now := time.Now()
	return &model.DelegationModel{
		ID:          d.ID,
		CompanyID:   d.CompanyID,
		DelegatorID: d.DelegatorID,
		DelegateeID: d.DelegateeID,
		StartDate:   d.StartDate,
		EndDate:     d.EndDate,
		IsActive:    d.IsActive,
		Data:        data,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
