package container

import (
	"fmt"
	"time"

	"github.com/jewelmart/approval-core/internal/config"
	"github.com/jewelmart/approval-core/internal/database"
	"github.com/jewelmart/approval-core/internal/integration"
	"github.com/jewelmart/approval-core/internal/metrics"
	"github.com/jewelmart/approval-core/internal/repository"
	"github.com/jewelmart/approval-core/internal/service"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、编排器、后台组件和服务层
type Container struct {
	db              *gorm.DB
	workflowMgr     integration.WorkflowManager
	ledger          integration.SpendingLedger
	requestMgr      integration.RequestManager
	dispatcher      integration.EventDispatcher
	sweeper         *integration.Sweeper
	collector       *metrics.Collector
	approvalService service.ApprovalService
	workflowService service.WorkflowService
	spendingService service.SpendingService
	queryService    service.QueryService
	auditLogService service.AuditLogService
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(cfg *config.Config) (*Container, error) {
	// 1. 初始化数据库（带重试机制）
	// 默认重试 3 次，初始间隔 1 秒，指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 执行数据库迁移
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return NewContainerWithDB(cfg, db)
}

// NewContainerWithDB 基于已有数据库连接创建容器
// 测试用 sqlite 内存库时走这个入口
func NewContainerWithDB(cfg *config.Config, db *gorm.DB) (*Container, error) {
	// 2. 初始化编排组件
	workflowMgr := integration.NewWorkflowManager(db)
	ledger := integration.NewSpendingLedger(db, time.UTC)
	requestMgr := integration.NewRequestManager(db, workflowMgr, ledger)

	// 3. 初始化事件分发器
	dispatcher := integration.NewEventDispatcher(
		db,
		cfg.Outbox.Workers,
		time.Duration(cfg.Outbox.PollInterval)*time.Second,
		cfg.Outbox.MaxRetries,
	)

	// 4. 初始化超时扫描器
	sweeper := integration.NewSweeper(
		requestMgr,
		ledger,
		time.Duration(cfg.Sweep.Interval)*time.Second,
		cfg.Sweep.BatchSize,
	)

	// 5. 初始化连接池指标采样器
	collector := metrics.NewCollector(db, 30*time.Second)

	// 6. 初始化服务层
	auditLogService := service.NewAuditLogService(repository.NewAuditLogRepository(db))
	approvalService := service.NewApprovalService(requestMgr, auditLogService)
	workflowService := service.NewWorkflowService(workflowMgr, repository.NewDelegationRepository(db), auditLogService)
	spendingService := service.NewSpendingService(
		ledger,
		repository.NewLimitRepository(db),
		repository.NewRuleRepository(db),
		repository.NewTransactionRepository(db),
		auditLogService,
		time.UTC,
	)
	queryService := service.NewQueryService(requestMgr, repository.NewRequestRepository(db), repository.NewTransactionRepository(db))

	return &Container{
		db:              db,
		workflowMgr:     workflowMgr,
		ledger:          ledger,
		requestMgr:      requestMgr,
		dispatcher:      dispatcher,
		sweeper:         sweeper,
		collector:       collector,
		approvalService: approvalService,
		workflowService: workflowService,
		spendingService: spendingService,
		queryService:    queryService,
		auditLogService: auditLogService,
	}, nil
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// WorkflowManager 获取工作流管理器
func (c *Container) WorkflowManager() integration.WorkflowManager {
	return c.workflowMgr
}

// SpendingLedger 获取消费账本
func (c *Container) SpendingLedger() integration.SpendingLedger {
	return c.ledger
}

// RequestManager 获取审批请求编排器
func (c *Container) RequestManager() integration.RequestManager {
	return c.requestMgr
}

// EventDispatcher 获取事件分发器
func (c *Container) EventDispatcher() integration.EventDispatcher {
	return c.dispatcher
}

// Sweeper 获取超时扫描器
func (c *Container) Sweeper() *integration.Sweeper {
	return c.sweeper
}

// MetricsCollector 获取指标采样器
func (c *Container) MetricsCollector() *metrics.Collector {
	return c.collector
}

// ApprovalService 获取审批服务
func (c *Container) ApprovalService() service.ApprovalService {
	return c.approvalService
}

// WorkflowService 获取工作流配置服务
func (c *Container) WorkflowService() service.WorkflowService {
	return c.workflowService
}

// SpendingService 获取消费限额服务
func (c *Container) SpendingService() service.SpendingService {
	return c.spendingService
}

// QueryService 获取查询服务
func (c *Container) QueryService() service.QueryService {
	return c.queryService
}

// AuditLogService 获取审计日志服务
func (c *Container) AuditLogService() service.AuditLogService {
	return c.auditLogService
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	if c.dispatcher != nil {
		c.dispatcher.Stop()
	}
	if c.sweeper != nil {
		c.sweeper.Stop()
	}
	if c.collector != nil {
		c.collector.Stop()
	}

	if c.db != nil {
		sqlDB, err := c.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}

	return nil
}
