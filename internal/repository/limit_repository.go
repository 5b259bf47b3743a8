package repository

import (
	"time"

	"github.com/jewelmart/approval-core/internal/model"
	"gorm.io/gorm"
)

// LimitRepository 消费限额仓储接口
type LimitRepository interface {
	Save(limit *model.SpendingLimitModel) error
	FindByID(id string) (*model.SpendingLimitModel, error)
	FindActiveByCompany(companyID string) ([]*model.SpendingLimitModel, error)
	FindDueForReset(now time.Time) ([]*model.SpendingLimitModel, error)
	Delete(id string) error
	WithTx(tx *gorm.DB) LimitRepository
}

// limitRepository 消费限额仓储实现
type limitRepository struct {
	db *gorm.DB
}

// NewLimitRepository 创建消费限额仓储
func NewLimitRepository(db *gorm.DB) LimitRepository {
	return &limitRepository{db: db}
}

// WithTx 返回绑定到指定事务的仓储
func (r *limitRepository) WithTx(tx *gorm.DB) LimitRepository {
	return &limitRepository{db: tx}
}

// Save 保存限额
func (r *limitRepository) Save(limit *model.SpendingLimitModel) error {
	return r.db.Save(limit).Error
}

// FindByID 根据 ID 查找限额
func (r *limitRepository) FindByID(id string) (*model.SpendingLimitModel, error) {
	var limit model.SpendingLimitModel
	if err := r.db.Where("id = ?", id).First(&limit).Error; err != nil {
		return nil, err
	}
	return &limit, nil
}

// FindActiveByCompany 查找公司下启用的全部限额
func (r *limitRepository) FindActiveByCompany(companyID string) ([]*model.SpendingLimitModel, error) {
	var limits []*model.SpendingLimitModel
	err := r.db.Where("company_id = ? AND is_active = ?", companyID, true).Find(&limits).Error
	return limits, err
}

// FindDueForReset 查找到达重置时点的周期限额
func (r *limitRepository) FindDueForReset(now time.Time) ([]*model.SpendingLimitModel, error) {
	var limits []*model.SpendingLimitModel
	err := r.db.Where("is_active = ? AND period <> ? AND next_reset_at <= ?",
		true, "per_order", now).
		Find(&limits).Error
	return limits, err
}

// Delete 删除限额
func (r *limitRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.SpendingLimitModel{}).Error
}
