package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jewelmart/approval-core/internal/service"
	"github.com/jewelmart/approval-core/internal/utils"
)

// QueryController 审批查询控制器
type QueryController struct {
	queryService service.QueryService
}

// NewQueryController 创建审批查询控制器
func NewQueryController(queryService service.QueryService) *QueryController {
	return &QueryController{
		queryService: queryService,
	}
}

// ListRequests 查询审批请求列表
// @Summary      分页查询审批请求
// @Tags         审批查询
// @Produce      json
// @Param        company_id query string false "公司 ID"
// @Param        entity_type query string false "实体类型"
// @Param        requester_id query string false "请求人 ID"
// @Param        status query string false "状态"
// @Param        page query int false "页码"
// @Param        page_size query int false "每页数量"
// @Success      200  {object}  PaginatedResponse
// @Router       /requests [get]
// @Security     BearerAuth
func (c *QueryController) ListRequests(ctx *gin.Context) {
	var query service.RequestQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid query", err.Error())
		return
	}
	if query.Page < 1 {
		query.Page = 1
	}
	if query.PageSize < 1 || query.PageSize > 100 {
		query.PageSize = 20
	}

	requests, total, err := c.queryService.ListRequests(&query)
	if err != nil {
		HandleDomainError(ctx, err)
		return
	}

	totalPage := int(total) / query.PageSize
	if int(total)%query.PageSize > 0 {
		totalPage++
	}
	Paginated(ctx, requests, PaginationInfo{
		Page:      query.Page,
		PageSize:  query.PageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}

// PendingForApprover 查询审批人的待办
// @Summary      查询等待审批人处理的请求
// @Description  只返回当前步骤名册包含该审批人且尚未表态的请求
// @Tags         审批查询
// @Produce      json
// @Param        id path string true "审批人 ID"
// @Param        company_id query string true "公司 ID"
// @Success      200  {object}  Response
// @Router       /approvers/{id}/pending [get]
// @Security     BearerAuth
func (c *QueryController) PendingForApprover(ctx *gin.Context) {
	approverID := ctx.Param("id")
	if err := utils.ValidateResourceID(approverID); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid approver ID", err.Error())
		return
	}
	companyID := ctx.Query("company_id")
	if companyID == "" {
		Error(ctx, http.StatusBadRequest, "missing company_id", "company_id query parameter is required")
		return
	}

	requests, err := c.queryService.PendingForApprover(companyID, approverID)
	if err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, requests)
}

// EntityTransactions 查询实体关联的流水
// @Summary      查询实体的消费流水
// @Tags         审批查询
// @Produce      json
// @Param        id path string true "实体 ID"
// @Success      200  {object}  Response
// @Router       /entities/{id}/transactions [get]
// @Security     BearerAuth
func (c *QueryController) EntityTransactions(ctx *gin.Context) {
	entityID := ctx.Param("id")
	if err := utils.ValidateResourceID(entityID); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid entity ID", err.Error())
		return
	}

	transactions, err := c.queryService.TransactionsByEntity(entityID)
	if err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, transactions)
}

// Statistics 审批统计
// @Summary      统计公司下的审批请求
// @Tags         审批查询
// @Produce      json
// @Param        company_id query string true "公司 ID"
// @Success      200  {object}  Response
// @Router       /statistics [get]
// @Security     BearerAuth
func (c *QueryController) Statistics(ctx *gin.Context) {
	companyID := ctx.Query("company_id")
	if companyID == "" {
		Error(ctx, http.StatusBadRequest, "missing company_id", "company_id query parameter is required")
		return
	}

	stats, err := c.queryService.Statistics(companyID)
	if err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, stats)
}
