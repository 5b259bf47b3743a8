package model

import (
	"errors"
	"time"
)

// DelegationModel 审批委托数据模型
// Data 保存序列化后的 engine.ApprovalDelegation 对象
type DelegationModel struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)"`
	CompanyID   string    `gorm:"type:varchar(64);not null;index"`
	DelegatorID string    `gorm:"type:varchar(64);not null;index"`
	DelegateeID string    `gorm:"type:varchar(64);not null"`
	StartDate   time.Time `gorm:"not null"`
	EndDate     time.Time `gorm:"not null;index"`
	IsActive    bool      `gorm:"not null;default:true"`
	Data        []byte    `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName 指定表名
func (DelegationModel) TableName() string {
	return "approval_delegations"
}

// Validate 验证委托模型
func (dm *DelegationModel) Validate() error {
	if dm.ID == "" {
		return errors.New("delegation ID is required")
	}
	if dm.DelegatorID == "" {
		return errors.New("delegator ID is required")
	}
	if dm.DelegateeID == "" {
		return errors.New("delegatee ID is required")
	}
	if dm.EndDate.Before(dm.StartDate) {
		return errors.New("end date must not precede start date")
	}
	return nil
}
