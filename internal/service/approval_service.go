package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jewelmart/approval-core/internal/engine"
	"github.com/jewelmart/approval-core/internal/integration"
	"github.com/jewelmart/approval-core/internal/metrics"
	"github.com/jewelmart/approval-core/internal/model"
	"github.com/sirupsen/logrus"
)

// ApprovalService 审批服务接口
type ApprovalService interface {
	Submit(ctx context.Context, req *SubmitRequest) (*integration.SubmitResult, error)
	Decide(ctx context.Context, requestID string, req *DecideRequest) (*engine.ApprovalRequest, error)
	Cancel(ctx context.Context, requestID string, req *CancelRequest) (*engine.ApprovalRequest, error)
	Get(requestID string) (*engine.ApprovalRequest, error)
	History(requestID string) ([]*model.StatusHistoryModel, error)
}

// SubmitRequest 提交审批评估请求
// @Description 提交待审批实体的请求参数
type SubmitRequest struct {
	EntityID    string  `json:"entity_id" binding:"required" example:"order-1001"`            // 业务实体 ID
	EntityType  string  `json:"entity_type" binding:"required" example:"order"`               // 实体类型: order/quote/return/credit
	CompanyID   string  `json:"company_id" binding:"required" example:"co-001"`               // 公司 ID
	RequesterID string  `json:"requester_id" binding:"required" example:"emp-001"`            // 请求人 ID
	Amount      float64 `json:"amount" binding:"required" example:"12500.00"`                 // 金额
	Currency    string  `json:"currency" example:"USD"`                                       // 币种
	Quantity    int     `json:"quantity" example:"3"`                                         // 数量

	DepartmentID string   `json:"department_id" example:"dept-01"` // 请求人部门
	Role         string   `json:"role" example:"buyer"`            // 请求人角色
	CategoryIDs  []string `json:"category_ids"`                    // 商品类目
	ProductIDs   []string `json:"product_ids"`                     // 商品

	RestrictedProduct bool `json:"restricted_product"` // 含受限商品
	NewVendor         bool `json:"new_vendor"`         // 新供应商
	NewCustomer       bool `json:"new_customer"`       // 新客户
	ManualApproval    bool `json:"manual_approval"`    // 人工要求审批

	WorkflowID  string     `json:"workflow_id"`      // 可选: 显式指定工作流
	DueAt       *time.Time `json:"due_at,omitempty"` // 可选: 请求级截止时间
	CallbackURL string     `json:"callback_url"`     // 最终决定的回调地址
}

// DecideRequest 审批决定请求
// @Description 审批人对步骤的决定
type DecideRequest struct {
	StepID     string `json:"step_id" binding:"required" example:"step-001"`      // 步骤 ID
	ApproverID string `json:"approver_id" binding:"required" example:"mgr-001"`   // 审批人 ID
	Decision   string `json:"decision" binding:"required" example:"approved"`     // 决定: approved/rejected
	Comment    string `json:"comment" example:"同意"`                              // 审批意见
}

// CancelRequest 取消请求
// @Description 取消在途审批请求的参数
type CancelRequest struct {
	OperatorID string `json:"operator_id" binding:"required" example:"emp-001"` // 操作人 ID
	Reason     string `json:"reason" example:"订单已撤回"`                          // 取消原因
}

// approvalService 审批服务实现
type approvalService struct {
	requestMgr  integration.RequestManager
	auditLogSvc AuditLogService
	logger      *logrus.Entry
}

// NewApprovalService 创建审批服务
func NewApprovalService(requestMgr integration.RequestManager, auditLogSvc AuditLogService) ApprovalService {
	return &approvalService{
		requestMgr:  requestMgr,
		auditLogSvc: auditLogSvc,
		logger:      logrus.WithField("component", "approval_service"),
	}
}

// Submit 提交实体进行审批评估
func (s *approvalService) Submit(ctx context.Context, req *SubmitRequest) (*integration.SubmitResult, error) {
	sub := &engine.Submission{
		EntityID:          req.EntityID,
		EntityType:        engine.EntityType(req.EntityType),
		CompanyID:         req.CompanyID,
		RequesterID:       req.RequesterID,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Quantity:          req.Quantity,
		DepartmentID:      req.DepartmentID,
		Role:              req.Role,
		CategoryIDs:       req.CategoryIDs,
		ProductIDs:        req.ProductIDs,
		RestrictedProduct: req.RestrictedProduct,
		NewVendor:         req.NewVendor,
		NewCustomer:       req.NewCustomer,
		ManualApproval:    req.ManualApproval,
		WorkflowID:        req.WorkflowID,
		DueAt:             req.DueAt,
		CallbackURL:       req.CallbackURL,
	}
	if !sub.EntityType.Valid() {
		return nil, engine.NewInvalidTransition("entity type %q is not valid", req.EntityType)
	}
	if sub.Amount <= 0 {
		return nil, engine.NewInvalidTransition("amount must be positive")
	}

	result, err := s.requestMgr.Submit(sub)
	if err != nil {
		return nil, err
	}

	// 记录业务指标
	if result.Request != nil {
		metrics.RecordRequestCreated()
	}
	for _, eval := range result.LimitEvaluations {
		if eval.IsExceeded {
			metrics.RecordLimitBreach()
		} else if eval.IsWarning {
			metrics.RecordLimitWarning()
		}
	}

	// 记录审计日志
	details := fmt.Sprintf(`{"entity_id":"%s","amount":%.2f,"request_required":%t}`,
		req.EntityID, req.Amount, result.RequestRequired)
	s.audit(ctx, req.CompanyID, req.RequesterID, "submit", req.EntityID, details)

	return result, nil
}

// Decide 应用审批人的决定
func (s *approvalService) Decide(ctx context.Context, requestID string, req *DecideRequest) (*engine.ApprovalRequest, error) {
	decision := engine.DecisionValue(req.Decision)
	outcome, request, err := s.requestMgr.Decide(requestID, req.StepID, req.ApproverID, decision, req.Comment)
	if err != nil {
		return request, err
	}

	// 记录业务指标
	metrics.RecordDecision(req.Decision)
	switch {
	case outcome.RequestApproved:
		metrics.RecordRequestFinalized(string(engine.RequestStatusApproved))
	case outcome.RequestRejected:
		metrics.RecordRequestFinalized(string(engine.RequestStatusRejected))
	}

	// 记录审计日志
	action := "approve"
	if decision == engine.DecisionRejected {
		action = "reject"
	}
	details := fmt.Sprintf(`{"request_id":"%s","step_id":"%s","comment":"%s"}`,
		requestID, req.StepID, req.Comment)
	s.audit(ctx, request.CompanyID, req.ApproverID, action, requestID, details)

	return request, nil
}

// Cancel 取消在途请求
func (s *approvalService) Cancel(ctx context.Context, requestID string, req *CancelRequest) (*engine.ApprovalRequest, error) {
	request, err := s.requestMgr.Cancel(requestID, req.OperatorID, req.Reason)
	if err != nil {
		return request, err
	}

	metrics.RecordRequestFinalized(string(engine.RequestStatusCancelled))

	details := fmt.Sprintf(`{"request_id":"%s","reason":"%s"}`, requestID, req.Reason)
	s.audit(ctx, request.CompanyID, req.OperatorID, "cancel", requestID, details)

	return request, nil
}

// audit 记录审计日志
// 审计失败不阻断业务操作,但要在日志里留下痕迹
func (s *approvalService) audit(ctx context.Context, companyID, userID, action, resourceID, details string) {
	if s.auditLogSvc == nil {
		return
	}
	if err := s.auditLogSvc.RecordAction(ctx, companyID, userID, action, "request", resourceID, details); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"action":      action,
			"resource_id": resourceID,
		}).Warn("failed to record audit log")
	}
}

// Get 获取请求详情
func (s *approvalService) Get(requestID string) (*engine.ApprovalRequest, error) {
	return s.requestMgr.Get(requestID)
}

// History 获取请求的状态变更历史
func (s *approvalService) History(requestID string) ([]*model.StatusHistoryModel, error) {
	return s.requestMgr.History(requestID)
}
