package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jewelmart/approval-core/internal/engine"
	"github.com/jewelmart/approval-core/internal/service"
	"github.com/jewelmart/approval-core/internal/utils"
)

// WorkflowController 工作流与委托配置控制器
type WorkflowController struct {
	workflowService service.WorkflowService
}

// NewWorkflowController 创建工作流配置控制器
func NewWorkflowController(workflowService service.WorkflowService) *WorkflowController {
	return &WorkflowController{
		workflowService: workflowService,
	}
}

// CreateWorkflow 创建工作流
// @Summary      创建审批工作流
// @Description  创建多层审批工作流定义,层级配置在创建时校验
// @Tags         工作流管理
// @Accept       json
// @Produce      json
// @Param        request body engine.ApprovalWorkflow true "工作流定义"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Router       /workflows [post]
// @Security     BearerAuth
func (c *WorkflowController) CreateWorkflow(ctx *gin.Context) {
	var wf engine.ApprovalWorkflow
	if err := ctx.ShouldBindJSON(&wf); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := utils.ValidateName(wf.Name); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid workflow name", err.Error())
		return
	}

	created, err := c.workflowService.CreateWorkflow(requestContext(ctx), &wf)
	if err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, created)
}

// GetWorkflow 获取工作流
// @Summary      获取工作流详情
// @Tags         工作流管理
// @Produce      json
// @Param        id path string true "工作流 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /workflows/{id} [get]
// @Security     BearerAuth
func (c *WorkflowController) GetWorkflow(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateResourceID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid workflow ID", err.Error())
		return
	}

	wf, err := c.workflowService.GetWorkflow(id)
	if err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, wf)
}

// UpdateWorkflow 更新工作流
// @Summary      更新工作流定义
// @Description  更新只影响之后创建的请求,在途请求沿用固化的步骤
// @Tags         工作流管理
// @Accept       json
// @Produce      json
// @Param        id path string true "工作流 ID"
// @Param        request body engine.ApprovalWorkflow true "工作流定义"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Router       /workflows/{id} [put]
// @Security     BearerAuth
func (c *WorkflowController) UpdateWorkflow(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateResourceID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid workflow ID", err.Error())
		return
	}

	var wf engine.ApprovalWorkflow
	if err := ctx.ShouldBindJSON(&wf); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	wf.ID = id

	if err := c.workflowService.UpdateWorkflow(requestContext(ctx), &wf); err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, &wf)
}

// DeleteWorkflow 删除工作流
// @Summary      删除工作流
// @Tags         工作流管理
// @Produce      json
// @Param        id path string true "工作流 ID"
// @Param        company_id query string true "公司 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /workflows/{id} [delete]
// @Security     BearerAuth
func (c *WorkflowController) DeleteWorkflow(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateResourceID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid workflow ID", err.Error())
		return
	}

	if err := c.workflowService.DeleteWorkflow(requestContext(ctx), ctx.Query("company_id"), id); err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, gin.H{"id": id})
}

// ListWorkflows 列出工作流
// @Summary      列出公司下的工作流
// @Tags         工作流管理
// @Produce      json
// @Param        company_id query string true "公司 ID"
// @Success      200  {object}  Response
// @Router       /workflows [get]
// @Security     BearerAuth
func (c *WorkflowController) ListWorkflows(ctx *gin.Context) {
	companyID := ctx.Query("company_id")
	if companyID == "" {
		Error(ctx, http.StatusBadRequest, "missing company_id", "company_id query parameter is required")
		return
	}

	workflows, err := c.workflowService.ListWorkflows(companyID)
	if err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, workflows)
}

// CreateDelegation 创建审批委托
// @Summary      创建审批委托
// @Description  在有效期内把委托人的审批职责转给受托人
// @Tags         委托管理
// @Accept       json
// @Produce      json
// @Param        request body engine.ApprovalDelegation true "委托定义"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Router       /delegations [post]
// @Security     BearerAuth
func (c *WorkflowController) CreateDelegation(ctx *gin.Context) {
	var d engine.ApprovalDelegation
	if err := ctx.ShouldBindJSON(&d); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	created, err := c.workflowService.CreateDelegation(requestContext(ctx), &d)
	if err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, created)
}

// RevokeDelegation 撤销委托
// @Summary      撤销审批委托
// @Description  撤销只影响之后的名册解析,已冻结的名册不变
// @Tags         委托管理
// @Produce      json
// @Param        id path string true "委托 ID"
// @Param        company_id query string true "公司 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /delegations/{id} [delete]
// @Security     BearerAuth
func (c *WorkflowController) RevokeDelegation(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateResourceID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid delegation ID", err.Error())
		return
	}

	if err := c.workflowService.RevokeDelegation(requestContext(ctx), ctx.Query("company_id"), id); err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, gin.H{"id": id})
}

// ListDelegations 列出委托
// @Summary      列出委托人名下的委托
// @Tags         委托管理
// @Produce      json
// @Param        delegator_id query string true "委托人 ID"
// @Success      200  {object}  Response
// @Router       /delegations [get]
// @Security     BearerAuth
func (c *WorkflowController) ListDelegations(ctx *gin.Context) {
	delegatorID := ctx.Query("delegator_id")
	if delegatorID == "" {
		Error(ctx, http.StatusBadRequest, "missing delegator_id", "delegator_id query parameter is required")
		return
	}

	delegations, err := c.workflowService.ListDelegations(delegatorID)
	if err != nil {
		HandleDomainError(ctx, err)
		return
	}

	Success(ctx, delegations)
}
