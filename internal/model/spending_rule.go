package model

import (
	"errors"
	"time"
)

// SpendingRuleModel 消费规则数据模型
// Data 保存序列化后的 engine.SpendingRule 对象(含作用域列表)
type SpendingRuleModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	CompanyID string    `gorm:"type:varchar(64);not null;index"`
	Name      string    `gorm:"type:varchar(255);not null"`
	Priority  int       `gorm:"type:int;not null;index"`
	Action    string    `gorm:"type:varchar(32);not null"`
	IsActive  bool      `gorm:"not null;default:true;index"`
	Data      []byte    `gorm:"type:jsonb;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
	CreatedBy string    `gorm:"type:varchar(64)"`
}

// TableName 指定表名
func (SpendingRuleModel) TableName() string {
	return "spending_rules"
}

// Validate 验证规则模型
func (sm *SpendingRuleModel) Validate() error {
	if sm.ID == "" {
		return errors.New("rule ID is required")
	}
	if sm.CompanyID == "" {
		return errors.New("company ID is required")
	}
	if sm.Action == "" {
		return errors.New("rule action is required")
	}
	if len(sm.Data) == 0 {
		return errors.New("rule data is required")
	}
	return nil
}
