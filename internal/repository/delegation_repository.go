package repository

import (
	"time"

	"github.com/jewelmart/approval-core/internal/model"
	"gorm.io/gorm"
)

// DelegationRepository 审批委托仓储接口
type DelegationRepository interface {
	Save(delegation *model.DelegationModel) error
	FindByID(id string) (*model.DelegationModel, error)
	FindActive(companyID string, at time.Time) ([]*model.DelegationModel, error)
	FindByDelegator(delegatorID string) ([]*model.DelegationModel, error)
	Delete(id string) error
}

// delegationRepository 审批委托仓储实现
type delegationRepository struct {
	db *gorm.DB
}

// NewDelegationRepository 创建审批委托仓储
func NewDelegationRepository(db *gorm.DB) DelegationRepository {
	return &delegationRepository{db: db}
}

// Save 保存委托
func (r *delegationRepository) Save(delegation *model.DelegationModel) error {
	return r.db.Save(delegation).Error
}

// FindByID 根据 ID 查找委托
func (r *delegationRepository) FindByID(id string) (*model.DelegationModel, error) {
	var delegation model.DelegationModel
	if err := r.db.Where("id = ?", id).First(&delegation).Error; err != nil {
		return nil, err
	}
	return &delegation, nil
}

// FindActive 查找公司在指定时刻生效的委托
func (r *delegationRepository) FindActive(companyID string, at time.Time) ([]*model.DelegationModel, error) {
	var delegations []*model.DelegationModel
	err := r.db.Where("company_id = ? AND is_active = ? AND start_date <= ? AND end_date >= ?",
		companyID, true, at, at).
		Find(&delegations).Error
	return delegations, err
}

// FindByDelegator 查找委托人名下的全部委托
func (r *delegationRepository) FindByDelegator(delegatorID string) ([]*model.DelegationModel, error) {
	var delegations []*model.DelegationModel
	err := r.db.Where("delegator_id = ?", delegatorID).Order("created_at DESC").Find(&delegations).Error
	return delegations, err
}

// Delete 删除委托
func (r *delegationRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.DelegationModel{}).Error
}
