package repository

import (
	"github.com/jewelmart/approval-core/internal/model"
	"gorm.io/gorm"
)

// RuleRepository 消费规则仓储接口
type RuleRepository interface {
	Save(rule *model.SpendingRuleModel) error
	FindByID(id string) (*model.SpendingRuleModel, error)
	FindActiveByCompany(companyID string) ([]*model.SpendingRuleModel, error)
	FindByCompany(companyID string) ([]*model.SpendingRuleModel, error)
	Delete(id string) error
}

// ruleRepository 消费规则仓储实现
type ruleRepository struct {
	db *gorm.DB
}

// NewRuleRepository 创建消费规则仓储
func NewRuleRepository(db *gorm.DB) RuleRepository {
	return &ruleRepository{db: db}
}

// Save 保存规则
func (r *ruleRepository) Save(rule *model.SpendingRuleModel) error {
	return r.db.Save(rule).Error
}

// FindByID 根据 ID 查找规则
func (r *ruleRepository) FindByID(id string) (*model.SpendingRuleModel, error) {
	var rule model.SpendingRuleModel
	if err := r.db.Where("id = ?", id).First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// FindActiveByCompany 按优先级查找公司下启用的规则
func (r *ruleRepository) FindActiveByCompany(companyID string) ([]*model.SpendingRuleModel, error) {
	var rules []*model.SpendingRuleModel
	err := r.db.Where("company_id = ? AND is_active = ?", companyID, true).
		Order("priority ASC, created_at ASC").
		Find(&rules).Error
	return rules, err
}

// FindByCompany 查找公司下的全部规则
func (r *ruleRepository) FindByCompany(companyID string) ([]*model.SpendingRuleModel, error) {
	var rules []*model.SpendingRuleModel
	err := r.db.Where("company_id = ?", companyID).
		Order("priority ASC, created_at ASC").
		Find(&rules).Error
	return rules, err
}

// Delete 删除规则
func (r *ruleRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.SpendingRuleModel{}).Error
}
