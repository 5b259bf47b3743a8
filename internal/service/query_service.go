package service

import (
	"github.com/jewelmart/approval-core/internal/engine"
	"github.com/jewelmart/approval-core/internal/integration"
	"github.com/jewelmart/approval-core/internal/metrics"
	"github.com/jewelmart/approval-core/internal/model"
	"github.com/jewelmart/approval-core/internal/repository"
)

// QueryService 审批查询与统计服务
type QueryService interface {
	ListRequests(query *RequestQuery) ([]*engine.ApprovalRequest, int64, error)
	PendingForApprover(companyID, approverID string) ([]*engine.ApprovalRequest, error)
	TransactionsByEntity(entityID string) ([]*model.SpendingTransactionModel, error)
	Statistics(companyID string) (*RequestStatistics, error)
}

// RequestQuery 请求列表查询参数
// @Description 审批请求列表的过滤条件
type RequestQuery struct {
	CompanyID   string `form:"company_id"`   // 公司 ID
	EntityID    string `form:"entity_id"`    // 实体 ID
	EntityType  string `form:"entity_type"`  // 实体类型
	RequesterID string `form:"requester_id"` // 请求人 ID
	Status      string `form:"status"`       // 状态
	StartTime   string `form:"start_time"`   // 创建时间下限
	EndTime     string `form:"end_time"`     // 创建时间上限
	Page        int    `form:"page"`         // 页码
	PageSize    int    `form:"page_size"`    // 每页数量
}

// RequestStatistics 审批请求统计
// @Description 按状态汇总的请求统计
type RequestStatistics struct {
	Total        int64            `json:"total"`         // 请求总数
	ByStatus     map[string]int64 `json:"by_status"`     // 各状态数量
	Open         int64            `json:"open"`          // 在途数量
	ApprovalRate float64          `json:"approval_rate"` // 已完结请求中的通过率
}

// queryService 审批查询服务实现
type queryService struct {
	requestMgr  integration.RequestManager
	requestRepo repository.RequestRepository
	txnRepo     repository.TransactionRepository
}

// NewQueryService 创建审批查询服务
func NewQueryService(requestMgr integration.RequestManager, requestRepo repository.RequestRepository, txnRepo repository.TransactionRepository) QueryService {
	return &queryService{
		requestMgr:  requestMgr,
		requestRepo: requestRepo,
		txnRepo:     txnRepo,
	}
}

// ListRequests 分页查询审批请求
func (s *queryService) ListRequests(query *RequestQuery) ([]*engine.ApprovalRequest, int64, error) {
	filter := &repository.RequestFilter{
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if query.CompanyID != "" {
		filter.CompanyID = &query.CompanyID
	}
	if query.EntityID != "" {
		filter.EntityID = &query.EntityID
	}
	if query.EntityType != "" {
		filter.EntityType = &query.EntityType
	}
	if query.RequesterID != "" {
		filter.RequesterID = &query.RequesterID
	}
	if query.Status != "" {
		filter.Status = &query.Status
	}
	if query.StartTime != "" {
		filter.StartTime = &query.StartTime
	}
	if query.EndTime != "" {
		filter.EndTime = &query.EndTime
	}
	return s.requestMgr.List(filter)
}

// PendingForApprover 查询等待指定审批人处理的请求
// 名册冻结在聚合内部,先按开放状态粗筛再逐个核对当前步骤
func (s *queryService) PendingForApprover(companyID, approverID string) ([]*engine.ApprovalRequest, error) {
	pending := make([]*engine.ApprovalRequest, 0)
	for _, status := range []string{
		string(engine.RequestStatusPending),
		string(engine.RequestStatusInReview),
	} {
		st := status
		requests, _, err := s.requestMgr.List(&repository.RequestFilter{
			CompanyID: &companyID,
			Status:    &st,
		})
		if err != nil {
			return nil, err
		}
		for _, req := range requests {
			if awaitsApprover(req, approverID) {
				pending = append(pending, req)
			}
		}
	}
	return pending, nil
}

// awaitsApprover 判断当前步骤是否在等待该审批人
func awaitsApprover(req *engine.ApprovalRequest, approverID string) bool {
	step := req.ActiveStep()
	if step == nil {
		return false
	}
	assigned := false
	for _, id := range step.AssignedApproverIDs {
		if id == approverID {
			assigned = true
			break
		}
	}
	if !assigned {
		return false
	}
	// 已表态的审批人不再等待
	if d, ok := step.Decisions[approverID]; ok && d.Decision != engine.DecisionPending {
		return false
	}
	return true
}

// TransactionsByEntity 查询实体关联的消费流水
func (s *queryService) TransactionsByEntity(entityID string) ([]*model.SpendingTransactionModel, error) {
	return s.txnRepo.FindByEntity(entityID)
}

// Statistics 统计公司下的审批请求
func (s *queryService) Statistics(companyID string) (*RequestStatistics, error) {
	counts, err := s.requestRepo.CountByStatus(companyID)
	if err != nil {
		return nil, err
	}

	stats := &RequestStatistics{ByStatus: counts}
	for status, count := range counts {
		stats.Total += count
		metrics.UpdateRequestsByStatus(status, float64(count))
	}
	stats.Open = counts[string(engine.RequestStatusPending)] + counts[string(engine.RequestStatusInReview)]

	approved := counts[string(engine.RequestStatusApproved)]
	rejected := counts[string(engine.RequestStatusRejected)]
	if decided := approved + rejected; decided > 0 {
		stats.ApprovalRate = float64(approved) / float64(decided)
	}
	return stats, nil
}
