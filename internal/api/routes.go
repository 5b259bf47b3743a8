package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jewelmart/approval-core/internal/config"
	"github.com/jewelmart/approval-core/internal/service"
	"gorm.io/gorm"
)

// Controllers 路由依赖的控制器集合
type Controllers struct {
	Approval *ApprovalController
	Workflow *WorkflowController
	Spending *SpendingController
	Query    *QueryController
}

// NewControllers 基于服务层创建控制器集合
func NewControllers(
	approvalService service.ApprovalService,
	workflowService service.WorkflowService,
	spendingService service.SpendingService,
	queryService service.QueryService,
) *Controllers {
	return &Controllers{
		Approval: NewApprovalController(approvalService),
		Workflow: NewWorkflowController(workflowService),
		Spending: NewSpendingController(spendingService),
		Query:    NewQueryController(queryService),
	}
}

// SetupRoutes 配置路由
func SetupRoutes(cfg *config.Config, db *gorm.DB, controllers *Controllers) *gin.Engine {
	if config.IsProduction(cfg) {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	// 中间件
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware())
	router.Use(SecurityHeadersMiddleware())
	router.Use(CORSMiddleware(cfg.CORS))
	router.Use(RateLimitMiddleware(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))
	router.Use(ErrorHandlerMiddleware())

	// 健康检查
	healthController := NewHealthController(db)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	router.GET("/metrics", MetricsHandler)

	// API v1 路由组
	v1 := router.Group("/api/v1")
	v1.Use(VersionMiddleware())
	v1.Use(AuthMiddleware(cfg.Auth))
	{
		// 审批请求路由
		requests := v1.Group("/requests")
		{
			requests.POST("", controllers.Approval.Submit)
			requests.GET("", controllers.Query.ListRequests)
			requests.GET("/:id", controllers.Approval.Get)
			requests.POST("/:id/decide", controllers.Approval.Decide)
			requests.POST("/:id/cancel", controllers.Approval.Cancel)
			requests.GET("/:id/history", controllers.Approval.History)
		}

		// 工作流管理路由
		workflows := v1.Group("/workflows")
		{
			workflows.POST("", controllers.Workflow.CreateWorkflow)
			workflows.GET("", controllers.Workflow.ListWorkflows)
			workflows.GET("/:id", controllers.Workflow.GetWorkflow)
			workflows.PUT("/:id", controllers.Workflow.UpdateWorkflow)
			workflows.DELETE("/:id", controllers.Workflow.DeleteWorkflow)
		}

		// 委托管理路由
		delegations := v1.Group("/delegations")
		{
			delegations.POST("", controllers.Workflow.CreateDelegation)
			delegations.GET("", controllers.Workflow.ListDelegations)
			delegations.DELETE("/:id", controllers.Workflow.RevokeDelegation)
		}

		// 消费限额路由
		limits := v1.Group("/limits")
		{
			limits.POST("", controllers.Spending.CreateLimit)
			limits.GET("", controllers.Spending.ListLimits)
			limits.GET("/status", controllers.Spending.LimitStatus)
			limits.PUT("/:id", controllers.Spending.UpdateLimit)
			limits.DELETE("/:id", controllers.Spending.DeleteLimit)
		}
		v1.POST("/spending/evaluate", controllers.Spending.Evaluate)

		// 消费规则路由
		rules := v1.Group("/rules")
		{
			rules.POST("", controllers.Spending.CreateRule)
			rules.GET("", controllers.Spending.ListRules)
			rules.PUT("/:id", controllers.Spending.UpdateRule)
			rules.DELETE("/:id", controllers.Spending.DeleteRule)
		}

		// 消费流水路由
		transactions := v1.Group("/transactions")
		{
			transactions.POST("", controllers.Spending.RecordTransaction)
			transactions.GET("", controllers.Spending.ListTransactions)
		}

		// 查询与统计路由
		v1.GET("/approvers/:id/pending", controllers.Query.PendingForApprover)
		v1.GET("/entities/:id/transactions", controllers.Query.EntityTransactions)
		v1.GET("/statistics", controllers.Query.Statistics)
	}

	return router
}
