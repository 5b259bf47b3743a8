package model

import (
	"errors"
	"time"
)

// RequestModel 审批请求数据模型
// Data 保存序列化后的 engine.ApprovalRequest 聚合(含全部步骤);
// Version 用于决定写入的乐观并发控制
type RequestModel struct {
	ID           string     `gorm:"primaryKey;type:varchar(64)"`
	CompanyID    string     `gorm:"type:varchar(64);not null;index"`
	EntityID     string     `gorm:"type:varchar(64);not null;index"`
	EntityType   string     `gorm:"type:varchar(32);not null;index"`
	WorkflowID   string     `gorm:"type:varchar(64);not null;index"`
	RequesterID  string     `gorm:"type:varchar(64);not null;index"`
	Status       string     `gorm:"type:varchar(32);not null;index"`
	CurrentLevel int        `gorm:"type:int;not null"`
	Amount       float64    `gorm:"type:decimal(18,2);not null"`
	Currency     string     `gorm:"type:varchar(8);not null"`
	Data         []byte     `gorm:"type:jsonb;not null"`
	Version      int        `gorm:"type:int;not null;default:1"`
	CreatedAt    time.Time  `gorm:"not null;index"`
	UpdatedAt    time.Time  `gorm:"not null;index"`
	CompletedAt  *time.Time `gorm:"index"`
}

// TableName 指定表名
func (RequestModel) TableName() string {
	return "approval_requests"
}

// Validate 验证请求模型
func (rm *RequestModel) Validate() error {
	if rm.ID == "" {
		return errors.New("request ID is required")
	}
	if rm.CompanyID == "" {
		return errors.New("company ID is required")
	}
	if rm.Status == "" {
		return errors.New("request status is required")
	}
	if len(rm.Data) == 0 {
		return errors.New("request data is required")
	}
	return nil
}
