package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jewelmart/approval-core/internal/model"
	"github.com/jewelmart/approval-core/internal/repository"
)

// AuditLogService 审计日志服务
type AuditLogService interface {
	RecordAction(ctx context.Context, companyID string, userID string, action string, resourceType string, resourceID string, details interface{}) error
	ListByCompany(companyID string, limit int) ([]*model.AuditLogModel, error)
	ListByResource(resourceType string, resourceID string) ([]*model.AuditLogModel, error)
}

// auditLogService 审计日志服务实现
type auditLogService struct {
	auditRepo repository.AuditLogRepository
}

// NewAuditLogService 创建审计日志服务
func NewAuditLogService(auditRepo repository.AuditLogRepository) AuditLogService {
	return &auditLogService{
		auditRepo: auditRepo,
	}
}

// RecordAction 记录操作审计日志
func (s *auditLogService) RecordAction(
	ctx context.Context,
	companyID string,
	userID string,
	action string,
	resourceType string,
	resourceID string,
	details interface{},
) error {
	// 序列化详情
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}

	// 获取请求信息
	requestID := ""
	if req := ctx.Value("request_id"); req != nil {
		requestID = req.(string)
	}

	ip := ""
	if req := ctx.Value("ip"); req != nil {
		ip = req.(string)
	}

	userAgent := ""
	if req := ctx.Value("user_agent"); req != nil {
		userAgent = req.(string)
	}

	// 创建审计日志
	auditLog := &model.AuditLogModel{
		ID:           uuid.New().String(),
		CompanyID:    companyID,
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    requestID,
		IP:           ip,
		UserAgent:    userAgent,
		Details:      detailsJSON,
		CreatedAt:    time.Now(),
	}

	return s.auditRepo.Save(auditLog)
}

// ListByCompany 查询公司最近的审计日志
func (s *auditLogService) ListByCompany(companyID string, limit int) ([]*model.AuditLogModel, error) {
	return s.auditRepo.FindByCompany(companyID, limit)
}

// ListByResource 查询资源的审计日志
func (s *auditLogService) ListByResource(resourceType string, resourceID string) ([]*model.AuditLogModel, error) {
	return s.auditRepo.FindByResource(resourceType, resourceID)
}

// getUserIDFromContext 从 context 获取用户 ID
func getUserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	// 由认证中间件设置
	if userID, ok := ctx.Value("user_id").(string); ok {
		return userID
	}
	return ""
}
