package model

import (
	"errors"
	"time"
)

// StatusHistoryModel 请求状态变更历史数据模型
type StatusHistoryModel struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)"`
	RequestID  string    `gorm:"type:varchar(64);not null;index"`
	FromStatus string    `gorm:"type:varchar(32)"`
	ToStatus   string    `gorm:"type:varchar(32);not null"`
	Reason     string    `gorm:"type:text"`
	Operator   string    `gorm:"type:varchar(64);not null"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (StatusHistoryModel) TableName() string {
	return "status_history"
}

// Validate 验证状态历史模型
func (shm *StatusHistoryModel) Validate() error {
	if shm.ID == "" {
		return errors.New("history ID is required")
	}
	if shm.RequestID == "" {
		return errors.New("request ID is required")
	}
	if shm.ToStatus == "" {
		return errors.New("to status is required")
	}
	if shm.Operator == "" {
		return errors.New("operator is required")
	}
	return nil
}
