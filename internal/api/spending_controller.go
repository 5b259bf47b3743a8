package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jewelmart/approval-core/internal/engine"
	"github.com/jewelmart/approval-core/internal/service"
	"github.com/jewelmart/approval-core/internal/utils"
)

// SpendingController 消费限额与规则控制器
type SpendingController struct {
	spendingService service.SpendingService
}

// NewSpendingController 创建消费限额控制器
func NewSpendingController(spendingService service.SpendingService) *SpendingController {
	return &SpendingController{
		spendingService: spendingService,
	}
}

// CreateLimit 创建消费限额
// @Summary      创建消费限额
// @Description  创建按周期滚动的消费上限,作用域支持员工/部门/角色/公司
// @Tags         消费限额
// @Accept       json
// @Produce      json
// @Param        request body engine.SpendingLimit true "限额定义"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Router       /limits [post]
// @Security     BearerAuth
func (c *SpendingController) CreateLimit(ctx *gin.Context) {
	var limit engine.SpendingLimit
	if err := ctx.ShouldBindJSON(&limit); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	created, err := c.spendingService.CreateLimit(requestContext(ctx), &limit)
	if err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, created)
}

// UpdateLimit 更新消费限额
// @Summary      更新消费限额配置
// @Description  只允许修改配置字段,累计消费由账本维护
// @Tags         消费限额
// @Accept       json
// @Produce      json
// @Param        id path string true "限额 ID"
// @Param        request body engine.SpendingLimit true "限额定义"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /limits/{id} [put]
// @Security     BearerAuth
func (c *SpendingController) UpdateLimit(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateResourceID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid limit ID", err.Error())
		return
	}

	var limit engine.SpendingLimit
	if err := ctx.ShouldBindJSON(&limit); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	limit.ID = id

	if err := c.spendingService.UpdateLimit(requestContext(ctx), &limit); err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, &limit)
}

// DeleteLimit 删除消费限额
// @Summary      删除消费限额
// @Tags         消费限额
// @Produce      json
// @Param        id path string true "限额 ID"
// @Param        company_id query string true "公司 ID"
// @Success      200  {object}  Response
// @Router       /limits/{id} [delete]
// @Security     BearerAuth
func (c *SpendingController) DeleteLimit(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateResourceID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid limit ID", err.Error())
		return
	}

	if err := c.spendingService.DeleteLimit(requestContext(ctx), ctx.Query("company_id"), id); err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, gin.H{"id": id})
}

// ListLimits 列出消费限额
// @Summary      列出公司下的限额
// @Tags         消费限额
// @Produce      json
// @Param        company_id query string true "公司 ID"
// @Success      200  {object}  Response
// @Router       /limits [get]
// @Security     BearerAuth
func (c *SpendingController) ListLimits(ctx *gin.Context) {
	companyID := ctx.Query("company_id")
	if companyID == "" {
		Error(ctx, http.StatusBadRequest, "missing company_id", "company_id query parameter is required")
		return
	}

	limits, err := c.spendingService.ListLimits(companyID)
	if err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, limits)
}

// LimitStatus 查询员工限额状态
// @Summary      查询作用于员工的限额
// @Description  返回命中该员工的全部限额及剩余额度
// @Tags         消费限额
// @Produce      json
// @Param        company_id query string true "公司 ID"
// @Param        employee_id query string true "员工 ID"
// @Param        department_id query string false "部门 ID"
// @Param        role query string false "角色"
// @Success      200  {object}  Response
// @Router       /limits/status [get]
// @Security     BearerAuth
func (c *SpendingController) LimitStatus(ctx *gin.Context) {
	companyID := ctx.Query("company_id")
	employeeID := ctx.Query("employee_id")
	if companyID == "" || employeeID == "" {
		Error(ctx, http.StatusBadRequest, "missing parameters", "company_id and employee_id are required")
		return
	}

	limits, err := c.spendingService.LimitStatus(companyID, employeeID, ctx.Query("department_id"), ctx.Query("role"))
	if err != nil {
		HandleDomainError(ctx, err)
		return
	}

	type limitStatus struct {
		*engine.SpendingLimit
		Remaining float64 `json:"remaining"`
	}
	statuses := make([]limitStatus, 0, len(limits))
	for _, limit := range limits {
		statuses = append(statuses, limitStatus{SpendingLimit: limit, Remaining: limit.Remaining()})
	}

	Success(ctx, statuses)
}

// Evaluate 预评估候选消费
// @Summary      预评估一笔候选消费
// @Description  返回每条适用限额的评估结果,只读不入账
// @Tags         消费限额
// @Accept       json
// @Produce      json
// @Param        request body service.EvaluateRequest true "候选消费"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Router       /spending/evaluate [post]
// @Security     BearerAuth
func (c *SpendingController) Evaluate(ctx *gin.Context) {
	var req service.EvaluateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	evals, err := c.spendingService.Evaluate(&req)
	if err != nil {
		HandleDomainError(ctx, err)
		return
	}

	_, exceeded := engine.AnyExceeded(evals)
	Success(ctx, gin.H{
		"exceeded":    exceeded,
		"evaluations": evals,
	})
}

// CreateRule 创建消费规则
// @Summary      创建消费规则
// @Tags         消费规则
// @Accept       json
// @Produce      json
// @Param        request body engine.SpendingRule true "规则定义"
// @Success      200  {object}  Response
// @Failure      422  {object}  ErrorResponse
// @Router       /rules [post]
// @Security     BearerAuth
func (c *SpendingController) CreateRule(ctx *gin.Context) {
	var rule engine.SpendingRule
	if err := ctx.ShouldBindJSON(&rule); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	created, err := c.spendingService.CreateRule(requestContext(ctx), &rule)
	if err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, created)
}

// UpdateRule 更新消费规则
// @Summary      更新消费规则
// @Tags         消费规则
// @Accept       json
// @Produce      json
// @Param        id path string true "规则 ID"
// @Param        request body engine.SpendingRule true "规则定义"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /rules/{id} [put]
// @Security     BearerAuth
func (c *SpendingController) UpdateRule(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateResourceID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid rule ID", err.Error())
		return
	}

	var rule engine.SpendingRule
	if err := ctx.ShouldBindJSON(&rule); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	rule.ID = id

	if err := c.spendingService.UpdateRule(requestContext(ctx), &rule); err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, &rule)
}

// DeleteRule 删除消费规则
// @Summary      删除消费规则
// @Tags         消费规则
// @Produce      json
// @Param        id path string true "规则 ID"
// @Param        company_id query string true "公司 ID"
// @Success      200  {object}  Response
// @Router       /rules/{id} [delete]
// @Security     BearerAuth
func (c *SpendingController) DeleteRule(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateResourceID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid rule ID", err.Error())
		return
	}

	if err := c.spendingService.DeleteRule(requestContext(ctx), ctx.Query("company_id"), id); err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, gin.H{"id": id})
}

// ListRules 列出消费规则
// @Summary      列出公司下的规则
// @Tags         消费规则
// @Produce      json
// @Param        company_id query string true "公司 ID"
// @Success      200  {object}  Response
// @Router       /rules [get]
// @Security     BearerAuth
func (c *SpendingController) ListRules(ctx *gin.Context) {
	companyID := ctx.Query("company_id")
	if companyID == "" {
		Error(ctx, http.StatusBadRequest, "missing company_id", "company_id query parameter is required")
		return
	}

	rules, err := c.spendingService.ListRules(companyID)
	if err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, rules)
}

// RecordTransaction 记录退款或冲正
// @Summary      记录消费流水
// @Description  只接受 refund/adjustment,正向消费由审批自动入账
// @Tags         消费流水
// @Accept       json
// @Produce      json
// @Param        request body service.TransactionRequest true "流水信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /transactions [post]
// @Security     BearerAuth
func (c *SpendingController) RecordTransaction(ctx *gin.Context) {
	var req service.TransactionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	if err := c.spendingService.RecordTransaction(requestContext(ctx), &req); err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, gin.H{"recorded": true})
}

// ListTransactions 列出员工流水
// @Summary      列出员工最近的消费流水
// @Tags         消费流水
// @Produce      json
// @Param        employee_id query string true "员工 ID"
// @Param        limit query int false "条数上限"
// @Success      200  {object}  Response
// @Router       /transactions [get]
// @Security     BearerAuth
func (c *SpendingController) ListTransactions(ctx *gin.Context) {
	employeeID := ctx.Query("employee_id")
	if employeeID == "" {
		Error(ctx, http.StatusBadRequest, "missing employee_id", "employee_id query parameter is required")
		return
	}

	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	transactions, err := c.spendingService.ListTransactions(employeeID, limit)
	if err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, transactions)
}
