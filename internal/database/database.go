package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jewelmart/approval-core/internal/config"
	"github.com/jewelmart/approval-core/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// GetPoolConfig 获取连接池配置
func GetPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: 3600, // 1 小时
		ConnMaxIdleTime: 600,  // 10 分钟
	}
}

// Connect 连接数据库
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := BuildDSN(cfg)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 从配置中读取连接池参数，如果没有配置则使用默认值
	var poolConfig *PoolConfig
	if cfg.MaxIdleConns > 0 || cfg.MaxOpenConns > 0 {
		poolConfig = &PoolConfig{
			MaxIdleConns:    cfg.MaxIdleConns,
			MaxOpenConns:    cfg.MaxOpenConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		}
		if poolConfig.MaxIdleConns == 0 {
			poolConfig.MaxIdleConns = 10
		}
		if poolConfig.MaxOpenConns == 0 {
			poolConfig.MaxOpenConns = 100
		}
		if poolConfig.ConnMaxLifetime == 0 {
			poolConfig.ConnMaxLifetime = 3600
		}
		if poolConfig.ConnMaxIdleTime == 0 {
			poolConfig.ConnMaxIdleTime = 600
		}
	} else {
		poolConfig = GetPoolConfig()
	}

	sqlDB.SetMaxIdleConns(poolConfig.MaxIdleConns)
	sqlDB.SetMaxOpenConns(poolConfig.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(poolConfig.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(poolConfig.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	// 检测数据库类型
	dialector := db.Dialector.Name()

	// SQLite 不支持 jsonb，需要手动创建表
	if dialector == "sqlite" || dialector == "sqlite3" {
		if err := createSQLiteTables(db); err != nil {
			return fmt.Errorf("failed to create SQLite tables: %w", err)
		}
	} else {
		// PostgreSQL 等其他数据库使用 AutoMigrate
		if err := db.AutoMigrate(
			&model.WorkflowModel{},
			&model.RequestModel{},
			&model.DelegationModel{},
			&model.SpendingLimitModel{},
			&model.SpendingRuleModel{},
			&model.SpendingTransactionModel{},
			&model.EventModel{},
			&model.AuditLogModel{},
			&model.StatusHistoryModel{},
			&model.EmployeeModel{},
		); err != nil {
			return fmt.Errorf("failed to auto migrate: %w", err)
		}
	}

	// 创建索引
	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// createSQLiteTables 为 SQLite 手动创建表（使用 TEXT 替代 jsonb）
func createSQLiteTables(db *gorm.DB) error {
	// 创建 approval_workflows 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS approval_workflows (
			id VARCHAR(64) PRIMARY KEY,
			company_id VARCHAR(64) NOT NULL,
			entity_type VARCHAR(32) NOT NULL,
			name VARCHAR(255) NOT NULL,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			data TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			created_by VARCHAR(64)
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create approval_workflows table: %w", err)
	}

	// 创建 approval_requests 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS approval_requests (
			id VARCHAR(64) PRIMARY KEY,
			company_id VARCHAR(64) NOT NULL,
			entity_id VARCHAR(64) NOT NULL,
			entity_type VARCHAR(32) NOT NULL,
			workflow_id VARCHAR(64) NOT NULL,
			requester_id VARCHAR(64) NOT NULL,
			status VARCHAR(32) NOT NULL,
			current_level INTEGER NOT NULL,
			amount DECIMAL(18,2) NOT NULL,
			currency VARCHAR(8) NOT NULL,
			data TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			completed_at DATETIME
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create approval_requests table: %w", err)
	}

	// 创建 approval_delegations 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS approval_delegations (
			id VARCHAR(64) PRIMARY KEY,
			company_id VARCHAR(64) NOT NULL,
			delegator_id VARCHAR(64) NOT NULL,
			delegatee_id VARCHAR(64) NOT NULL,
			start_date DATETIME NOT NULL,
			end_date DATETIME NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			data TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create approval_delegations table: %w", err)
	}

	// 创建 spending_limits 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS spending_limits (
			id VARCHAR(64) PRIMARY KEY,
			company_id VARCHAR(64) NOT NULL,
			scope VARCHAR(32) NOT NULL,
			employee_id VARCHAR(64),
			department_id VARCHAR(64),
			role VARCHAR(64),
			period VARCHAR(32) NOT NULL,
			limit_amount DECIMAL(18,2) NOT NULL,
			current_spending DECIMAL(18,2) NOT NULL DEFAULT 0,
			warning_threshold DECIMAL(5,4) NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_reset_at DATETIME NOT NULL,
			next_reset_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			created_by VARCHAR(64)
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create spending_limits table: %w", err)
	}

	// 创建 spending_rules 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS spending_rules (
			id VARCHAR(64) PRIMARY KEY,
			company_id VARCHAR(64) NOT NULL,
			name VARCHAR(255) NOT NULL,
			priority INTEGER NOT NULL,
			action VARCHAR(32) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			data TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			created_by VARCHAR(64)
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create spending_rules table: %w", err)
	}

	// 创建 spending_transactions 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS spending_transactions (
			id VARCHAR(64) PRIMARY KEY,
			company_id VARCHAR(64) NOT NULL,
			employee_id VARCHAR(64) NOT NULL,
			department_id VARCHAR(64),
			role VARCHAR(64),
			entity_id VARCHAR(64) NOT NULL,
			entity_type VARCHAR(32) NOT NULL,
			type VARCHAR(32) NOT NULL,
			amount DECIMAL(18,2) NOT NULL,
			currency VARCHAR(8) NOT NULL,
			limit_ids TEXT,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create spending_transactions table: %w", err)
	}

	// 创建 approval_events 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS approval_events (
			id VARCHAR(64) PRIMARY KEY,
			request_id VARCHAR(64) NOT NULL,
			company_id VARCHAR(64) NOT NULL,
			type VARCHAR(48) NOT NULL,
			data TEXT NOT NULL,
			status VARCHAR(32) NOT NULL DEFAULT 'pending',
			retry_count INTEGER DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create approval_events table: %w", err)
	}

	// 创建 audit_logs 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_logs (
			id VARCHAR(64) PRIMARY KEY,
			company_id VARCHAR(64) NOT NULL,
			user_id VARCHAR(64) NOT NULL,
			action VARCHAR(64) NOT NULL,
			resource_type VARCHAR(32) NOT NULL,
			resource_id VARCHAR(64) NOT NULL,
			request_id VARCHAR(64),
			ip VARCHAR(45),
			user_agent TEXT,
			details TEXT,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create audit_logs table: %w", err)
	}

	// 创建 status_history 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS status_history (
			id VARCHAR(64) PRIMARY KEY,
			request_id VARCHAR(64) NOT NULL,
			from_status VARCHAR(32),
			to_status VARCHAR(32) NOT NULL,
			reason TEXT,
			operator VARCHAR(64) NOT NULL,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create status_history table: %w", err)
	}

	// 创建 employees 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS employees (
			id VARCHAR(64) PRIMARY KEY,
			company_id VARCHAR(64) NOT NULL,
			department_id VARCHAR(64),
			role VARCHAR(64) NOT NULL,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255),
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create employees table: %w", err)
	}

	return nil
}

// CreateIndexes 创建数据库索引
func CreateIndexes(db *gorm.DB) error {
	// 检测数据库类型
	dialector := db.Dialector.Name()

	indexes := []struct {
		name string
		stmt string
	}{
		// approval_workflows 表索引
		{"idx_workflows_company_entity", "CREATE INDEX IF NOT EXISTS idx_workflows_company_entity ON approval_workflows(company_id, entity_type)"},
		{"idx_workflows_default", "CREATE INDEX IF NOT EXISTS idx_workflows_default ON approval_workflows(company_id, entity_type, is_default, is_active)"},

		// approval_requests 表索引
		{"idx_requests_company_status", "CREATE INDEX IF NOT EXISTS idx_requests_company_status ON approval_requests(company_id, status)"},
		{"idx_requests_entity", "CREATE INDEX IF NOT EXISTS idx_requests_entity ON approval_requests(entity_id, entity_type)"},
		{"idx_requests_requester", "CREATE INDEX IF NOT EXISTS idx_requests_requester ON approval_requests(requester_id)"},
		{"idx_requests_created_at", "CREATE INDEX IF NOT EXISTS idx_requests_created_at ON approval_requests(created_at)"},

		// approval_delegations 表索引
		{"idx_delegations_company_window", "CREATE INDEX IF NOT EXISTS idx_delegations_company_window ON approval_delegations(company_id, is_active, start_date, end_date)"},
		{"idx_delegations_delegator", "CREATE INDEX IF NOT EXISTS idx_delegations_delegator ON approval_delegations(delegator_id)"},

		// spending_limits 表索引
		{"idx_limits_company_active", "CREATE INDEX IF NOT EXISTS idx_limits_company_active ON spending_limits(company_id, is_active)"},
		{"idx_limits_next_reset", "CREATE INDEX IF NOT EXISTS idx_limits_next_reset ON spending_limits(is_active, next_reset_at)"},
		{"idx_limits_employee", "CREATE INDEX IF NOT EXISTS idx_limits_employee ON spending_limits(employee_id)"},

		// spending_rules 表索引
		{"idx_rules_company_priority", "CREATE INDEX IF NOT EXISTS idx_rules_company_priority ON spending_rules(company_id, is_active, priority)"},

		// spending_transactions 表索引
		{"idx_txns_employee", "CREATE INDEX IF NOT EXISTS idx_txns_employee ON spending_transactions(employee_id, created_at)"},
		{"idx_txns_entity", "CREATE INDEX IF NOT EXISTS idx_txns_entity ON spending_transactions(entity_id)"},

		// approval_events 表索引
		{"idx_events_status", "CREATE INDEX IF NOT EXISTS idx_events_status ON approval_events(status)"},
		{"idx_events_request_id", "CREATE INDEX IF NOT EXISTS idx_events_request_id ON approval_events(request_id)"},
		{"idx_events_created_at", "CREATE INDEX IF NOT EXISTS idx_events_created_at ON approval_events(created_at)"},

		// audit_logs 表索引
		{"idx_audit_resource", "CREATE INDEX IF NOT EXISTS idx_audit_resource ON audit_logs(resource_type, resource_id)"},
		{"idx_audit_user_id", "CREATE INDEX IF NOT EXISTS idx_audit_user_id ON audit_logs(user_id)"},
		{"idx_audit_company", "CREATE INDEX IF NOT EXISTS idx_audit_company ON audit_logs(company_id, created_at)"},

		// status_history 表索引
		{"idx_history_request_id", "CREATE INDEX IF NOT EXISTS idx_history_request_id ON status_history(request_id)"},
		{"idx_history_created_at", "CREATE INDEX IF NOT EXISTS idx_history_created_at ON status_history(created_at)"},

		// employees 表索引
		{"idx_employees_company", "CREATE INDEX IF NOT EXISTS idx_employees_company ON employees(company_id)"},
		{"idx_employees_role", "CREATE INDEX IF NOT EXISTS idx_employees_role ON employees(role)"},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.stmt).Error; err != nil {
			return fmt.Errorf("failed to create %s: %w", idx.name, err)
		}
	}

	// PostgreSQL 特定的 GIN 索引
	if dialector == "postgres" {
		// JSONB 字段的 GIN 索引
		if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_workflows_data_gin ON approval_workflows USING GIN (data)").Error; err != nil {
			return fmt.Errorf("failed to create idx_workflows_data_gin: %w", err)
		}
		if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_requests_data_gin ON approval_requests USING GIN (data)").Error; err != nil {
			return fmt.Errorf("failed to create idx_requests_data_gin: %w", err)
		}
	}

	return nil
}

// ConnectWithRetry 带重试的数据库连接
func ConnectWithRetry(cfg config.DatabaseConfig, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = Connect(cfg)
		if err == nil {
			return db, nil
		}

		// 如果不是最后一次重试，等待后重试
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2 // 指数退避
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

// CheckHealth 检查数据库连接健康状态
func CheckHealth(db *gorm.DB) bool {
	if db == nil {
		return false
	}

	sqlDB, err := db.DB()
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return false
	}

	return true
}

// Reconnect 重新连接数据库
func Reconnect(cfg config.DatabaseConfig, oldDB *gorm.DB) (*gorm.DB, error) {
	// 关闭旧连接
	if oldDB != nil {
		if sqlDB, err := oldDB.DB(); err == nil {
			sqlDB.Close()
		}
	}

	// 重新连接
	return Connect(cfg)
}
