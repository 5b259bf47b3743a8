package repository

import (
	"time"

	"github.com/jewelmart/approval-core/internal/engine"
	"github.com/jewelmart/approval-core/internal/model"
	"gorm.io/gorm"
)

// RequestRepository 审批请求仓储接口
type RequestRepository interface {
	Create(request *model.RequestModel) error
	SaveWithVersion(request *model.RequestModel) error
	FindByID(id string) (*model.RequestModel, error)
	FindByFilter(filter *RequestFilter) ([]*model.RequestModel, int64, error)
	FindOverdue(now time.Time, limit int) ([]*model.RequestModel, error)
	CountByStatus(companyID string) (map[string]int64, error)
}

// RequestFilter 请求查询过滤器
type RequestFilter struct {
	CompanyID   *string
	EntityID    *string
	EntityType  *string
	RequesterID *string
	ApproverID  *string
	Status      *string
	StartTime   *string
	EndTime     *string
	Page        int
	PageSize    int
}

// requestRepository 审批请求仓储实现
type requestRepository struct {
	db *gorm.DB
}

// NewRequestRepository 创建审批请求仓储
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

// Create 创建审批请求
func (r *requestRepository) Create(request *model.RequestModel) error {
	return r.db.Create(request).Error
}

// SaveWithVersion 带乐观并发控制保存请求
// 仅当数据库中的版本与读取时一致才写入,版本号加一;
// 未命中任何行时返回 engine.ErrVersionConflict,由调用方重读重试
func (r *requestRepository) SaveWithVersion(request *model.RequestModel) error {
	expected := request.Version
	request.Version = expected + 1
	result := r.db.Model(&model.RequestModel{}).
		Where("id = ? AND version = ?", request.ID, expected).
		Updates(map[string]interface{}{
			"status":        request.Status,
			"current_level": request.CurrentLevel,
			"data":          request.Data,
			"version":       request.Version,
			"updated_at":    request.UpdatedAt,
			"completed_at":  request.CompletedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return engine.ErrVersionConflict
	}
	return nil
}

// FindByID 根据 ID 查找请求
func (r *requestRepository) FindByID(id string) (*model.RequestModel, error) {
	var request model.RequestModel
	if err := r.db.Where("id = ?", id).First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// FindByFilter 根据过滤器分页查找请求
func (r *requestRepository) FindByFilter(filter *RequestFilter) ([]*model.RequestModel, int64, error) {
	var requests []*model.RequestModel
	query := r.db.Model(&model.RequestModel{})

	if filter != nil {
		if filter.CompanyID != nil {
			query = query.Where("company_id = ?", *filter.CompanyID)
		}
		if filter.EntityID != nil {
			query = query.Where("entity_id = ?", *filter.EntityID)
		}
		if filter.EntityType != nil {
			query = query.Where("entity_type = ?", *filter.EntityType)
		}
		if filter.RequesterID != nil {
			query = query.Where("requester_id = ?", *filter.RequesterID)
		}
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
		if filter.StartTime != nil {
			query = query.Where("created_at >= ?", *filter.StartTime)
		}
		if filter.EndTime != nil {
			query = query.Where("created_at <= ?", *filter.EndTime)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter != nil && filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	err := query.Order("created_at DESC").Find(&requests).Error
	return requests, total, err
}

// FindOverdue 查找仍在进行且已过截止时间的请求
// 截止时间保存在聚合内部,这里按开放状态粗筛后由调用方精确判定
func (r *requestRepository) FindOverdue(now time.Time, limit int) ([]*model.RequestModel, error) {
	var requests []*model.RequestModel
	query := r.db.Where("status IN ?", []string{
		string(engine.RequestStatusPending),
		string(engine.RequestStatusInReview),
	}).Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&requests).Error
	return requests, err
}

// CountByStatus 按状态统计公司下的请求数
func (r *requestRepository) CountByStatus(companyID string) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := r.db.Model(&model.RequestModel{}).
		Select("status, COUNT(*) as count").
		Where("company_id = ?", companyID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Status] = rw.Count
	}
	return counts, nil
}
