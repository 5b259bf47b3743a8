package integration

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jewelmart/approval-core/internal/engine"
	"github.com/jewelmart/approval-core/internal/model"
	"github.com/jewelmart/approval-core/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// WorkflowManager 工作流管理器
type WorkflowManager interface {
	Create(wf *engine.ApprovalWorkflow) error
	Get(id string) (*engine.ApprovalWorkflow, error)
	Update(wf *engine.ApprovalWorkflow) error
	Delete(id string) error
	List(companyID string) ([]*engine.ApprovalWorkflow, error)
	Resolve(sub *engine.Submission) (*engine.ApprovalWorkflow, error)
}

// dbWorkflowManager 基于数据库的工作流管理器
type dbWorkflowManager struct {
	workflowRepo repository.WorkflowRepository
	logger       *logrus.Entry
}

// NewWorkflowManager 创建工作流管理器
func NewWorkflowManager(db *gorm.DB) WorkflowManager {
	return &dbWorkflowManager{
		workflowRepo: repository.NewWorkflowRepository(db),
		logger:       logrus.WithField("component", "workflow_manager"),
	}
}

// Create 创建工作流
func (m *dbWorkflowManager) Create(wf *engine.ApprovalWorkflow) error {
	if wf.ID == "" {
		wf.ID = "wf-" + uuid.NewString()
	}
	now := time.Now()
	wf.CreatedAt = now
	wf.UpdatedAt = now

	if err := validateWorkflow(wf); err != nil {
		return err
	}

	wm, err := workflowToModel(wf)
	if err != nil {
		return err
	}
	return m.workflowRepo.Save(wm)
}

// Get 获取工作流
func (m *dbWorkflowManager) Get(id string) (*engine.ApprovalWorkflow, error) {
	wm, err := m.workflowRepo.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("workflow not found: %w", err)
	}
	return workflowFromModel(wm)
}

// Update 更新工作流
func (m *dbWorkflowManager) Update(wf *engine.ApprovalWorkflow) error {
	current, err := m.workflowRepo.FindByID(wf.ID)
	if err != nil {
		return fmt.Errorf("workflow not found: %w", err)
	}

	if err := validateWorkflow(wf); err != nil {
		return err
	}

	wf.CreatedAt = current.CreatedAt
	wf.UpdatedAt = time.Now()

	wm, err := workflowToModel(wf)
	if err != nil {
		return err
	}
	wm.CreatedBy = current.CreatedBy
	return m.workflowRepo.Save(wm)
}

// Delete 删除工作流
func (m *dbWorkflowManager) Delete(id string) error {
	return m.workflowRepo.Delete(id)
}

// List 列出公司下的工作流
func (m *dbWorkflowManager) List(companyID string) ([]*engine.ApprovalWorkflow, error) {
	models, err := m.workflowRepo.FindByCompany(companyID)
	if err != nil {
		return nil, err
	}
	workflows := make([]*engine.ApprovalWorkflow, 0, len(models))
	for _, wm := range models {
		wf, err := workflowFromModel(wm)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, nil
}

// Resolve 为提交解析工作流
// 显式指定的工作流优先;否则回落到公司在该实体类型下的默认工作流;
// 两者都没有时返回 nil,表示该提交无需审批。
// 同一实体类型存在多个默认工作流属于配置异常,取最早创建的并记录日志。
func (m *dbWorkflowManager) Resolve(sub *engine.Submission) (*engine.ApprovalWorkflow, error) {
	if sub.WorkflowID != "" {
		wf, err := m.Get(sub.WorkflowID)
		if err != nil {
			return nil, engine.NewConfigurationError("explicit workflow %q not found", sub.WorkflowID)
		}
		if wf.CompanyID != sub.CompanyID {
			return nil, engine.NewConfigurationError(
				"workflow %q does not belong to company %q", sub.WorkflowID, sub.CompanyID)
		}
		if !wf.IsActive {
			return nil, engine.NewConfigurationError("workflow %q is not active", sub.WorkflowID)
		}
		if wf.EntityType != sub.EntityType {
			return nil, engine.NewConfigurationError(
				"workflow %q targets entity type %q, submission is %q",
				sub.WorkflowID, wf.EntityType, sub.EntityType)
		}
		return wf, nil
	}

	defaults, err := m.workflowRepo.FindDefaults(sub.CompanyID, string(sub.EntityType))
	if err != nil {
		return nil, err
	}
	if len(defaults) == 0 {
		return nil, nil
	}
	if len(defaults) > 1 {
		m.logger.WithFields(logrus.Fields{
			"company_id":  sub.CompanyID,
			"entity_type": sub.EntityType,
			"count":       len(defaults),
		}).Warn("multiple default workflows configured, using the earliest created")
	}
	return workflowFromModel(defaults[0])
}

// validateWorkflow 校验工作流配置
func validateWorkflow(wf *engine.ApprovalWorkflow) error {
	if wf.CompanyID == "" {
		return engine.NewConfigurationError("workflow company ID is required")
	}
	if !wf.EntityType.Valid() {
		return engine.NewConfigurationError("entity type %q is not valid", wf.EntityType)
	}
	if len(wf.Levels) == 0 {
		return engine.NewConfigurationError("workflow must define at least one approval level")
	}
	seen := make(map[int]struct{}, len(wf.Levels))
	for _, level := range wf.Levels {
		if level.Level <= 0 {
			return engine.NewConfigurationError("approval level numbers must be positive")
		}
		if _, dup := seen[level.Level]; dup {
			return engine.NewConfigurationError("duplicate approval level %d", level.Level)
		}
		seen[level.Level] = struct{}{}
		if level.MaxAmount > 0 && level.MaxAmount <= level.MinAmount {
			return engine.NewConfigurationError(
				"level %d amount window [%.2f, %.2f) is empty", level.Level, level.MinAmount, level.MaxAmount)
		}
		if len(level.ApproverIDs) == 0 && level.ApproverRole == "" {
			return engine.NewConfigurationError(
				"level %d must name approvers or an approver role", level.Level)
		}
		if level.EscalatesToLevel > 0 {
			if _, ok := findLevel(wf, level.EscalatesToLevel); !ok {
				return engine.NewConfigurationError(
					"level %d escalates to undefined level %d", level.Level, level.EscalatesToLevel)
			}
		}
	}
	return nil
}

// findLevel 按编号查找层级配置
func findLevel(wf *engine.ApprovalWorkflow, level int) (engine.ApprovalLevel, bool) {
	for _, l := range wf.Levels {
		if l.Level == level {
			return l, true
		}
	}
	return engine.ApprovalLevel{}, false
}

// workflowToModel 序列化工作流
func workflowToModel(wf *engine.ApprovalWorkflow) (*model.WorkflowModel, error) {
	data, err := json.Marshal(wf)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow: %w", err)
	}
	return &model.WorkflowModel{
		ID:         wf.ID,
		CompanyID:  wf.CompanyID,
		EntityType: string(wf.EntityType),
		Name:       wf.Name,
		IsDefault:  wf.IsDefault,
		IsActive:   wf.IsActive,
		Data:       data,
		CreatedAt:  wf.CreatedAt,
		UpdatedAt:  wf.UpdatedAt,
	}, nil
}

// workflowFromModel 反序列化工作流
func workflowFromModel(wm *model.WorkflowModel) (*engine.ApprovalWorkflow, error) {
	var wf engine.ApprovalWorkflow
	if err := json.Unmarshal(wm.Data, &wf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
	}
	return &wf, nil
}

// IsNotFound 判断是否为记录不存在错误
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
