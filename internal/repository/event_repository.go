package repository

import (
	"github.com/jewelmart/approval-core/internal/model"
	"gorm.io/gorm"
)

// EventRepository 决策事件仓储接口
type EventRepository interface {
	Save(event *model.EventModel) error
	FindByRequestID(requestID string) ([]*model.EventModel, error)
	FindPending(limit int) ([]*model.EventModel, error)
	WithTx(tx *gorm.DB) EventRepository
}

// eventRepository 决策事件仓储实现
type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository 创建决策事件仓储
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

// WithTx 返回绑定到指定事务的仓储
func (r *eventRepository) WithTx(tx *gorm.DB) EventRepository {
	return &eventRepository{db: tx}
}

// Save 保存事件
func (r *eventRepository) Save(event *model.EventModel) error {
	return r.db.Save(event).Error
}

// FindByRequestID 根据请求 ID 查找事件
func (r *eventRepository) FindByRequestID(requestID string) ([]*model.EventModel, error) {
	var events []*model.EventModel
	err := r.db.Where("request_id = ?", requestID).Order("created_at ASC").Find(&events).Error
	return events, err
}

// FindPending 查找待投递的事件
func (r *eventRepository) FindPending(limit int) ([]*model.EventModel, error) {
	var events []*model.EventModel
	query := r.db.Where("status = ?", "pending").Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&events).Error
	return events, err
}
