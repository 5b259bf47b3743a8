package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jewelmart/approval-core/internal/api"
	"github.com/jewelmart/approval-core/internal/config"
	"github.com/jewelmart/approval-core/internal/container"
	"github.com/jewelmart/approval-core/internal/database"
	"github.com/jewelmart/approval-core/internal/engine"
	"github.com/jewelmart/approval-core/internal/integration"
	"github.com/jewelmart/approval-core/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestRouter 基于内存数据库搭建完整路由
func setupTestRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	cfg := config.Default()
	ctr, err := container.NewContainerWithDB(cfg, db)
	require.NoError(t, err)

	controllers := api.NewControllers(
		ctr.ApprovalService(),
		ctr.WorkflowService(),
		ctr.SpendingService(),
		ctr.QueryService(),
	)
	return api.SetupRoutes(cfg, db, controllers)
}

// performJSON 发送 JSON 请求
func performJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// decodeData 解析响应并提取 data 字段
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	var envelope struct {
		Code int             `json:"code"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, 0, envelope.Code)
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

// testWorkflowBody 两级审批工作流请求体
func testWorkflowBody() *engine.ApprovalWorkflow {
	return &engine.ApprovalWorkflow{
		CompanyID:  "co-1",
		Name:       "order approvals",
		EntityType: engine.EntityOrder,
		Triggers: []engine.Trigger{
			{Type: engine.TriggerAmountExceeds, Threshold: 1000},
		},
		Levels: []engine.ApprovalLevel{
			{Level: 1, Name: "manager review", ApproverIDs: []string{"mgr-1"}, RequiredApprovals: 1},
			{Level: 2, Name: "director review", ApproverIDs: []string{"dir-1"}, RequiredApprovals: 1},
		},
		IsDefault: true,
		IsActive:  true,
	}
}

// TestRoutes_Health 健康检查
func TestRoutes_Health(t *testing.T) {
	router := setupTestRouter(t)
	rec := performJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestRoutes_ApprovalLifecycle 创建工作流、提交、逐级审批到终态
func TestRoutes_ApprovalLifecycle(t *testing.T) {
	router := setupTestRouter(t)

	// 1. 创建默认工作流
	rec := performJSON(t, router, http.MethodPost, "/api/v1/workflows", testWorkflowBody())
	require.Equal(t, http.StatusOK, rec.Code)
	var wf engine.ApprovalWorkflow
	decodeData(t, rec, &wf)
	require.NotEmpty(t, wf.ID)

	// 2. 提交触发审批
	rec = performJSON(t, router, http.MethodPost, "/api/v1/requests", &service.SubmitRequest{
		EntityID:    "order-1001",
		EntityType:  "order",
		CompanyID:   "co-1",
		RequesterID: "emp-1",
		Amount:      5000,
		Currency:    "USD",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var result integration.SubmitResult
	decodeData(t, rec, &result)
	require.True(t, result.RequestRequired)
	require.NotNil(t, result.Request)
	requestID := result.Request.ID
	step1 := result.Request.ActiveStep()
	require.NotNil(t, step1)

	// 3. 第一级通过
	rec = performJSON(t, router, http.MethodPost, "/api/v1/requests/"+requestID+"/decide", &service.DecideRequest{
		StepID:     step1.ID,
		ApproverID: "mgr-1",
		Decision:   "approved",
		Comment:    "ok",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var afterFirst engine.ApprovalRequest
	decodeData(t, rec, &afterFirst)
	assert.Equal(t, engine.RequestStatusInReview, afterFirst.Status)
	step2 := afterFirst.ActiveStep()
	require.NotNil(t, step2)
	require.Equal(t, 2, step2.Level)

	// 4. 第二级通过,请求终态
	rec = performJSON(t, router, http.MethodPost, "/api/v1/requests/"+requestID+"/decide", &service.DecideRequest{
		StepID:     step2.ID,
		ApproverID: "dir-1",
		Decision:   "approved",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var final engine.ApprovalRequest
	decodeData(t, rec, &final)
	assert.Equal(t, engine.RequestStatusApproved, final.Status)

	// 5. 详情与历史可读
	rec = performJSON(t, router, http.MethodGet, "/api/v1/requests/"+requestID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = performJSON(t, router, http.MethodGet, "/api/v1/requests/"+requestID+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []map[string]interface{}
	decodeData(t, rec, &history)
	assert.Len(t, history, 3)

	// 6. 终态后的决定返回 410
	rec = performJSON(t, router, http.MethodPost, "/api/v1/requests/"+requestID+"/decide", &service.DecideRequest{
		StepID:     step2.ID,
		ApproverID: "dir-1",
		Decision:   "rejected",
	})
	assert.Equal(t, http.StatusGone, rec.Code)
}

// TestRoutes_GetRequestNotFound 不存在的请求返回 404
func TestRoutes_GetRequestNotFound(t *testing.T) {
	router := setupTestRouter(t)
	rec := performJSON(t, router, http.MethodGet, "/api/v1/requests/req-missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestRoutes_DecideInvalidDecision 非法决定值返回 400
func TestRoutes_DecideInvalidDecision(t *testing.T) {
	router := setupTestRouter(t)
	rec := performJSON(t, router, http.MethodPost, "/api/v1/requests/req-1/decide", &service.DecideRequest{
		StepID:     "step-1",
		ApproverID: "mgr-1",
		Decision:   "maybe",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestRoutes_CreateWorkflowInvalid 非法工作流配置返回 422
func TestRoutes_CreateWorkflowInvalid(t *testing.T) {
	router := setupTestRouter(t)
	wf := testWorkflowBody()
	wf.Levels = nil
	rec := performJSON(t, router, http.MethodPost, "/api/v1/workflows", wf)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// TestRoutes_LimitLifecycle 限额的创建、查询与流水入账
func TestRoutes_LimitLifecycle(t *testing.T) {
	router := setupTestRouter(t)

	// 1. 创建员工月度限额
	rec := performJSON(t, router, http.MethodPost, "/api/v1/limits", &engine.SpendingLimit{
		CompanyID:   "co-1",
		Scope:       engine.ScopeEmployee,
		EmployeeID:  "emp-1",
		Period:      engine.PeriodMonthly,
		LimitAmount: 10000,
		IsActive:    true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var created engine.SpendingLimit
	decodeData(t, rec, &created)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.NextResetAt.IsZero())

	// 2. 列表与员工视角的状态查询
	rec = performJSON(t, router, http.MethodGet, "/api/v1/limits?company_id=co-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var limits []*engine.SpendingLimit
	decodeData(t, rec, &limits)
	require.Len(t, limits, 1)

	rec = performJSON(t, router, http.MethodGet, "/api/v1/limits/status?company_id=co-1&employee_id=emp-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var statuses []struct {
		ID        string  `json:"id"`
		Remaining float64 `json:"remaining"`
	}
	decodeData(t, rec, &statuses)
	require.Len(t, statuses, 1)
	assert.Equal(t, 10000.0, statuses[0].Remaining)

	// 3. 退款入账
	rec = performJSON(t, router, http.MethodPost, "/api/v1/transactions", &service.TransactionRequest{
		CompanyID:  "co-1",
		EmployeeID: "emp-1",
		EntityID:   "order-1001",
		EntityType: "order",
		Type:       "refund",
		Amount:     -200,
		Currency:   "USD",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = performJSON(t, router, http.MethodGet, "/api/v1/transactions?employee_id=emp-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var txns []map[string]interface{}
	decodeData(t, rec, &txns)
	assert.Len(t, txns, 1)

	// 4. 正向消费不允许直接入账
	rec = performJSON(t, router, http.MethodPost, "/api/v1/transactions", &service.TransactionRequest{
		CompanyID:  "co-1",
		EmployeeID: "emp-1",
		EntityID:   "order-1002",
		EntityType: "order",
		Type:       "spend",
		Amount:     500,
		Currency:   "USD",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// TestRoutes_SubmitBlockedOverLimit 超限拒绝以 409 返回限额信息
func TestRoutes_SubmitBlockedOverLimit(t *testing.T) {
	router := setupTestRouter(t)

	rec := performJSON(t, router, http.MethodPost, "/api/v1/rules", &engine.SpendingRule{
		CompanyID: "co-1",
		Name:      "block all orders",
		Priority:  1,
		Action:    engine.ActionBlock,
		IsActive:  true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = performJSON(t, router, http.MethodPost, "/api/v1/limits", &engine.SpendingLimit{
		CompanyID:   "co-1",
		Scope:       engine.ScopeEmployee,
		EmployeeID:  "emp-1",
		Period:      engine.PeriodMonthly,
		LimitAmount: 1000,
		IsActive:    true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = performJSON(t, router, http.MethodPost, "/api/v1/requests", &service.SubmitRequest{
		EntityID:    "order-1001",
		EntityType:  "order",
		CompanyID:   "co-1",
		RequesterID: "emp-1",
		Amount:      1500,
		Currency:    "USD",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	var body struct {
		Code  int `json:"code"`
		Limit struct {
			LimitID   string  `json:"limit_id"`
			Remaining float64 `json:"remaining"`
		} `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusConflict, body.Code)
	assert.NotEmpty(t, body.Limit.LimitID)
	assert.Equal(t, 1000.0, body.Limit.Remaining)
}

// TestRoutes_EvaluateSpending 候选消费预评估
func TestRoutes_EvaluateSpending(t *testing.T) {
	router := setupTestRouter(t)

	rec := performJSON(t, router, http.MethodPost, "/api/v1/limits", &engine.SpendingLimit{
		CompanyID:   "co-1",
		Scope:       engine.ScopeEmployee,
		EmployeeID:  "emp-1",
		Period:      engine.PeriodMonthly,
		LimitAmount: 1000,
		IsActive:    true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// 超出限额的候选金额
	rec = performJSON(t, router, http.MethodPost, "/api/v1/spending/evaluate", &service.EvaluateRequest{
		CompanyID:  "co-1",
		EmployeeID: "emp-1",
		Amount:     1500,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var result struct {
		Exceeded    bool `json:"exceeded"`
		Evaluations []struct {
			LimitID    string  `json:"limit_id"`
			Remaining  float64 `json:"remaining"`
			IsExceeded bool    `json:"is_exceeded"`
		} `json:"evaluations"`
	}
	decodeData(t, rec, &result)
	assert.True(t, result.Exceeded)
	require.Len(t, result.Evaluations, 1)
	assert.True(t, result.Evaluations[0].IsExceeded)
	assert.Equal(t, 1000.0, result.Evaluations[0].Remaining)

	// 限额内的候选金额
	rec = performJSON(t, router, http.MethodPost, "/api/v1/spending/evaluate", &service.EvaluateRequest{
		CompanyID:  "co-1",
		EmployeeID: "emp-1",
		Amount:     400,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &result)
	assert.False(t, result.Exceeded)
}

// TestRoutes_Statistics 统计端点
func TestRoutes_Statistics(t *testing.T) {
	router := setupTestRouter(t)

	rec := performJSON(t, router, http.MethodPost, "/api/v1/workflows", testWorkflowBody())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = performJSON(t, router, http.MethodPost, "/api/v1/requests", &service.SubmitRequest{
		EntityID:    "order-1001",
		EntityType:  "order",
		CompanyID:   "co-1",
		RequesterID: "emp-1",
		Amount:      5000,
		Currency:    "USD",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = performJSON(t, router, http.MethodGet, "/api/v1/statistics?company_id=co-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats service.RequestStatistics
	decodeData(t, rec, &stats)
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(1), stats.Open)
}

// TestRoutes_PendingForApprover 审批人待办查询
func TestRoutes_PendingForApprover(t *testing.T) {
	router := setupTestRouter(t)

	rec := performJSON(t, router, http.MethodPost, "/api/v1/workflows", testWorkflowBody())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = performJSON(t, router, http.MethodPost, "/api/v1/requests", &service.SubmitRequest{
		EntityID:    "order-1001",
		EntityType:  "order",
		CompanyID:   "co-1",
		RequesterID: "emp-1",
		Amount:      5000,
		Currency:    "USD",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// 第一级审批人有待办,第二级尚未激活
	rec = performJSON(t, router, http.MethodGet, "/api/v1/approvers/mgr-1/pending?company_id=co-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []*engine.ApprovalRequest
	decodeData(t, rec, &pending)
	assert.Len(t, pending, 1)

	rec = performJSON(t, router, http.MethodGet, "/api/v1/approvers/dir-1/pending?company_id=co-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending = nil
	decodeData(t, rec, &pending)
	assert.Len(t, pending, 0)
}
