package repository

import (
	"github.com/jewelmart/approval-core/internal/model"
	"gorm.io/gorm"
)

// EmployeeRepository 员工仓储接口
type EmployeeRepository interface {
	Save(employee *model.EmployeeModel) error
	FindByID(id string) (*model.EmployeeModel, error)
	FindByCompany(companyID string) ([]*model.EmployeeModel, error)
}

// employeeRepository 员工仓储实现
type employeeRepository struct {
	db *gorm.DB
}

// NewEmployeeRepository 创建员工仓储
func NewEmployeeRepository(db *gorm.DB) EmployeeRepository {
	return &employeeRepository{db: db}
}

// Save 保存员工
func (r *employeeRepository) Save(employee *model.EmployeeModel) error {
	return r.db.Save(employee).Error
}

// FindByID 根据 ID 查找员工
func (r *employeeRepository) FindByID(id string) (*model.EmployeeModel, error) {
	var employee model.EmployeeModel
	if err := r.db.Where("id = ?", id).First(&employee).Error; err != nil {
		return nil, err
	}
	return &employee, nil
}

// FindByCompany 查找公司下的全部员工
func (r *employeeRepository) FindByCompany(companyID string) ([]*model.EmployeeModel, error) {
	var employees []*model.EmployeeModel
	err := r.db.Where("company_id = ?", companyID).Order("created_at ASC").Find(&employees).Error
	return employees, err
}
