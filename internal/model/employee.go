package model

import (
	"errors"
	"time"
)

// EmployeeModel 员工数据模型
// 员工在公司内的角色与部门归属,用于规则作用域与限额匹配
type EmployeeModel struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)"`
	CompanyID    string    `gorm:"type:varchar(64);not null;index"`
	DepartmentID string    `gorm:"type:varchar(64);index"`
	Role         string    `gorm:"type:varchar(64);not null;index"`
	Name         string    `gorm:"type:varchar(255);not null"`
	Email        string    `gorm:"type:varchar(255);index"`
	IsActive     bool      `gorm:"not null;default:true;index"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName 指定表名
func (EmployeeModel) TableName() string {
	return "employees"
}

// Validate 验证员工模型
func (em *EmployeeModel) Validate() error {
	if em.ID == "" {
		return errors.New("employee ID is required")
	}
	if em.CompanyID == "" {
		return errors.New("company ID is required")
	}
	if em.Role == "" {
		return errors.New("employee role is required")
	}
	return nil
}
