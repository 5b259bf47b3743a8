package model

import (
	"errors"
	"time"
)

// SpendingTransactionModel 消费流水数据模型
// 只追加的账本条目,创建后不可修改;
// 修正以 adjustment/refund 类型追加新条目,绝不编辑既有行
type SpendingTransactionModel struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)"`
	CompanyID    string    `gorm:"type:varchar(64);not null;index"`
	EmployeeID   string    `gorm:"type:varchar(64);not null;index"`
	DepartmentID string    `gorm:"type:varchar(64);index"`
	Role         string    `gorm:"type:varchar(64)"`
	EntityID     string    `gorm:"type:varchar(64);not null;index"`
	EntityType   string    `gorm:"type:varchar(32);not null"`
	Type         string    `gorm:"type:varchar(32);not null;index"`
	Amount       float64   `gorm:"type:decimal(18,2);not null"`
	Currency     string    `gorm:"type:varchar(8);not null"`
	LimitIDs     []byte    `gorm:"type:jsonb"` // 受影响限额的 ID 列表
	CreatedAt    time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (sm SpendingTransactionModel) TableName() string {
	return "spending_transactions"
}

// Validate 验证流水模型
func (sm *SpendingTransactionModel) Validate() error {
	if sm.ID == "" {
		return errors.New("transaction ID is required")
	}
	if sm.CompanyID == "" {
		return errors.New("company ID is required")
	}
	if sm.EmployeeID == "" {
		return errors.New("employee ID is required")
	}
	if sm.Type == "" {
		return errors.New("transaction type is required")
	}
	if sm.Amount == 0 {
		return errors.New("transaction amount must be non-zero")
	}
	return nil
}
