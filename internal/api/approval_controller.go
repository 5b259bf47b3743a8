package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jewelmart/approval-core/internal/service"
	"github.com/jewelmart/approval-core/internal/utils"
)

// ApprovalController 审批请求控制器
type ApprovalController struct {
	approvalService service.ApprovalService
}

// NewApprovalController 创建审批请求控制器
func NewApprovalController(approvalService service.ApprovalService) *ApprovalController {
	return &ApprovalController{
		approvalService: approvalService,
	}
}

// validateRequestID 验证请求 ID 并返回错误响应（如果无效）
func (c *ApprovalController) validateRequestID(ctx *gin.Context, id string) bool {
	if err := utils.ValidateResourceID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request ID", err.Error())
		return false
	}
	return true
}

// Submit 提交审批评估
// @Summary      提交待审批实体
// @Description  评估规则和限额,需要审批时创建审批请求
// @Tags         审批请求
// @Accept       json
// @Produce      json
// @Param        request body service.SubmitRequest true "提交信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Router       /requests [post]
// @Security     BearerAuth
func (c *ApprovalController) Submit(ctx *gin.Context) {
	var req service.SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	result, err := c.approvalService.Submit(requestContext(ctx), &req)
	if err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, result)
}

// Decide 审批决定
// @Summary      应用审批决定
// @Description  审批人对当前步骤做出通过或拒绝的决定
// @Tags         审批请求
// @Accept       json
// @Produce      json
// @Param        id path string true "请求 ID"
// @Param        request body service.DecideRequest true "决定信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      410  {object}  ErrorResponse
// @Router       /requests/{id}/decide [post]
// @Security     BearerAuth
func (c *ApprovalController) Decide(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRequestID(ctx, id) {
		return
	}

	var req service.DecideRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if req.Decision != "approved" && req.Decision != "rejected" {
		Error(ctx, http.StatusBadRequest, "invalid decision", "decision must be approved or rejected")
		return
	}

	request, err := c.approvalService.Decide(requestContext(ctx), id, &req)
	if err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, request)
}

// Cancel 取消请求
// @Summary      取消在途审批请求
// @Description  请求人或管理员取消尚未完结的请求
// @Tags         审批请求
// @Accept       json
// @Produce      json
// @Param        id path string true "请求 ID"
// @Param        request body service.CancelRequest true "取消信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      410  {object}  ErrorResponse
// @Router       /requests/{id}/cancel [post]
// @Security     BearerAuth
func (c *ApprovalController) Cancel(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRequestID(ctx, id) {
		return
	}

	var req service.CancelRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	request, err := c.approvalService.Cancel(requestContext(ctx), id, &req)
	if err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, request)
}

// Get 获取请求详情
// @Summary      获取审批请求详情
// @Description  根据 ID 获取审批请求,包含步骤和名册
// @Tags         审批请求
// @Accept       json
// @Produce      json
// @Param        id path string true "请求 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /requests/{id} [get]
// @Security     BearerAuth
func (c *ApprovalController) Get(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRequestID(ctx, id) {
		return
	}

	request, err := c.approvalService.Get(id)
	if err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, request)
}

// History 获取状态变更历史
// @Summary      获取请求状态历史
// @Description  按时间顺序返回请求的状态变更记录
// @Tags         审批请求
// @Accept       json
// @Produce      json
// @Param        id path string true "请求 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /requests/{id}/history [get]
// @Security     BearerAuth
func (c *ApprovalController) History(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRequestID(ctx, id) {
		return
	}

	history, err := c.approvalService.History(id)
	if err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, history)
}
