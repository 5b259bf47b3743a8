package model

import (
	"errors"
	"time"
)

// SpendingLimitModel 消费限额数据模型
// CurrentSpending 只能由账本的记账事务修改,其余读取方视为只读投影
type SpendingLimitModel struct {
	ID               string    `gorm:"primaryKey;type:varchar(64)"`
	CompanyID        string    `gorm:"type:varchar(64);not null;index"`
	Scope            string    `gorm:"type:varchar(32);not null;index"`
	EmployeeID       string    `gorm:"type:varchar(64);index"`
	DepartmentID     string    `gorm:"type:varchar(64);index"`
	Role             string    `gorm:"type:varchar(64)"`
	Period           string    `gorm:"type:varchar(32);not null"`
	LimitAmount      float64   `gorm:"type:decimal(18,2);not null"`
	CurrentSpending  float64   `gorm:"type:decimal(18,2);not null;default:0"`
	WarningThreshold float64   `gorm:"type:decimal(5,4);not null;default:0"`
	IsActive         bool      `gorm:"not null;default:true;index"`
	LastResetAt      time.Time `gorm:"not null"`
	NextResetAt      time.Time `gorm:"index"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
	CreatedBy        string    `gorm:"type:varchar(64)"`
}

// TableName 指定表名
func (SpendingLimitModel) TableName() string {
	return "spending_limits"
}

// Validate 验证限额模型
func (sm *SpendingLimitModel) Validate() error {
	if sm.ID == "" {
		return errors.New("limit ID is required")
	}
	if sm.CompanyID == "" {
		return errors.New("company ID is required")
	}
	if sm.Scope == "" {
		return errors.New("limit scope is required")
	}
	if sm.Period == "" {
		return errors.New("spending period is required")
	}
	if sm.LimitAmount <= 0 {
		return errors.New("limit amount must be positive")
	}
	return nil
}
