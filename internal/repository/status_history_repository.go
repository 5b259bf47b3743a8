package repository

import (
	"github.com/jewelmart/approval-core/internal/model"
	"gorm.io/gorm"
)

// StatusHistoryRepository 状态历史仓储接口
type StatusHistoryRepository interface {
	Save(history *model.StatusHistoryModel) error
	FindByRequestID(requestID string) ([]*model.StatusHistoryModel, error)
	WithTx(tx *gorm.DB) StatusHistoryRepository
}

// statusHistoryRepository 状态历史仓储实现
type statusHistoryRepository struct {
	db *gorm.DB
}

// NewStatusHistoryRepository 创建状态历史仓储
func NewStatusHistoryRepository(db *gorm.DB) StatusHistoryRepository {
	return &statusHistoryRepository{db: db}
}

// WithTx 返回绑定到指定事务的仓储
func (r *statusHistoryRepository) WithTx(tx *gorm.DB) StatusHistoryRepository {
	return &statusHistoryRepository{db: tx}
}

// Save 保存状态历史
func (r *statusHistoryRepository) Save(history *model.StatusHistoryModel) error {
	return r.db.Save(history).Error
}

// FindByRequestID 根据请求 ID 查找状态历史
func (r *statusHistoryRepository) FindByRequestID(requestID string) ([]*model.StatusHistoryModel, error) {
	var histories []*model.StatusHistoryModel
	err := r.db.Where("request_id = ?", requestID).Order("created_at ASC").Find(&histories).Error
	return histories, err
}
