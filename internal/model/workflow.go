package model

import (
	"errors"
	"time"
)

// WorkflowModel 审批工作流数据模型
// Data 保存序列化后的 engine.ApprovalWorkflow 对象
type WorkflowModel struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)"`
	CompanyID  string    `gorm:"type:varchar(64);not null;index"`
	EntityType string    `gorm:"type:varchar(32);not null;index"`
	Name       string    `gorm:"type:varchar(255);not null"`
	IsDefault  bool      `gorm:"not null;default:false;index"`
	IsActive   bool      `gorm:"not null;default:true"`
	Data       []byte    `gorm:"type:jsonb;not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
	CreatedBy  string    `gorm:"type:varchar(64)"`
}

// TableName 指定表名
func (WorkflowModel) TableName() string {
	return "approval_workflows"
}

// Validate 验证工作流模型
func (wm *WorkflowModel) Validate() error {
	if wm.ID == "" {
		return errors.New("workflow ID is required")
	}
	if wm.CompanyID == "" {
		return errors.New("company ID is required")
	}
	if wm.EntityType == "" {
		return errors.New("entity type is required")
	}
	if wm.Name == "" {
		return errors.New("workflow name is required")
	}
	if len(wm.Data) == 0 {
		return errors.New("workflow data is required")
	}
	return nil
}
