package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 审批请求创建数
	requestsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "approval_requests_created_total",
			Help: "Total number of approval requests created",
		},
	)

	// 决定操作数
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_decisions_total",
			Help: "Total number of approval decisions recorded",
		},
		[]string{"decision"}, // approved, rejected
	)

	// 请求终结数
	requestsFinalizedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_requests_finalized_total",
			Help: "Total number of approval requests finalized",
		},
		[]string{"status"}, // approved, rejected, cancelled, escalated, expired
	)

	// 升级次数
	escalationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "approval_escalations_total",
			Help: "Total number of step escalations",
		},
	)

	// 限额预警与超限
	limitWarningsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spending_limit_warnings_total",
			Help: "Total number of spending limit warnings",
		},
	)

	limitBreachesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spending_limit_breaches_total",
			Help: "Total number of spending limit breaches",
		},
	)

	// 事件投递结果
	eventDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_event_deliveries_total",
			Help: "Total number of decision event deliveries",
		},
		[]string{"status"}, // success, failed
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 请求状态分布
	requestsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "approval_requests_by_status",
			Help: "Number of approval requests by status",
		},
		[]string{"status"},
	)
)

var (
	once sync.Once
)

func init() {
	// 注册指标
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(requestsCreatedTotal)
	prometheus.MustRegister(decisionsTotal)
	prometheus.MustRegister(requestsFinalizedTotal)
	prometheus.MustRegister(escalationsTotal)
	prometheus.MustRegister(limitWarningsTotal)
	prometheus.MustRegister(limitBreachesTotal)
	prometheus.MustRegister(eventDeliveriesTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(requestsByStatus)

	// 注册 Go 运行时指标（只注册一次）
	once.Do(func() {
		// 尝试注册 Go 运行时指标，如果已注册则忽略错误
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordRequestCreated 记录审批请求创建
func RecordRequestCreated() {
	requestsCreatedTotal.Inc()
}

// RecordDecision 记录审批决定
func RecordDecision(decision string) {
	decisionsTotal.WithLabelValues(decision).Inc()
}

// RecordRequestFinalized 记录请求终结
func RecordRequestFinalized(status string) {
	requestsFinalizedTotal.WithLabelValues(status).Inc()
}

// RecordEscalation 记录步骤升级
func RecordEscalation() {
	escalationsTotal.Inc()
}

// RecordLimitWarning 记录限额预警
func RecordLimitWarning() {
	limitWarningsTotal.Inc()
}

// RecordLimitBreach 记录限额超限
func RecordLimitBreach() {
	limitBreachesTotal.Inc()
}

// RecordEventDelivery 记录事件投递结果
func RecordEventDelivery(status string) {
	eventDeliveriesTotal.WithLabelValues(status).Inc()
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateRequestsByStatus 更新请求状态分布指标
func UpdateRequestsByStatus(status string, count float64) {
	requestsByStatus.WithLabelValues(status).Set(count)
}
