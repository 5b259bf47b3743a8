package repository

import (
	"github.com/jewelmart/approval-core/internal/model"
	"gorm.io/gorm"
)

// WorkflowRepository 工作流仓储接口
type WorkflowRepository interface {
	Save(workflow *model.WorkflowModel) error
	FindByID(id string) (*model.WorkflowModel, error)
	FindByCompany(companyID string) ([]*model.WorkflowModel, error)
	FindDefaults(companyID string, entityType string) ([]*model.WorkflowModel, error)
	Delete(id string) error
}

// workflowRepository 工作流仓储实现
type workflowRepository struct {
	db *gorm.DB
}

// NewWorkflowRepository 创建工作流仓储
func NewWorkflowRepository(db *gorm.DB) WorkflowRepository {
	return &workflowRepository{db: db}
}

// Save 保存工作流
func (r *workflowRepository) Save(workflow *model.WorkflowModel) error {
	return r.db.Save(workflow).Error
}

// FindByID 根据 ID 查找工作流
func (r *workflowRepository) FindByID(id string) (*model.WorkflowModel, error) {
	var workflow model.WorkflowModel
	if err := r.db.Where("id = ?", id).First(&workflow).Error; err != nil {
		return nil, err
	}
	return &workflow, nil
}

// FindByCompany 查找公司下的全部工作流
func (r *workflowRepository) FindByCompany(companyID string) ([]*model.WorkflowModel, error) {
	var workflows []*model.WorkflowModel
	err := r.db.Where("company_id = ?", companyID).Order("created_at DESC").Find(&workflows).Error
	return workflows, err
}

// FindDefaults 查找公司在指定实体类型下启用的默认工作流
func (r *workflowRepository) FindDefaults(companyID string, entityType string) ([]*model.WorkflowModel, error) {
	var workflows []*model.WorkflowModel
	err := r.db.Where("company_id = ? AND entity_type = ? AND is_default = ? AND is_active = ?",
		companyID, entityType, true, true).
		Order("created_at ASC").
		Find(&workflows).Error
	return workflows, err
}

// Delete 删除工作流
func (r *workflowRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.WorkflowModel{}).Error
}
