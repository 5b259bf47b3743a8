package integration_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jewelmart/approval-core/internal/engine"
	"github.com/jewelmart/approval-core/internal/integration"
	"github.com/jewelmart/approval-core/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupLedger 创建账本及测试数据库
func setupLedger(t *testing.T) (*gorm.DB, integration.SpendingLedger) {
	db := setupIntegrationDB(t)
	return db, integration.NewSpendingLedger(db, time.UTC)
}

// spendTxn 标准消费流水
func spendTxn(amount float64) *engine.SpendingTransaction {
	return &engine.SpendingTransaction{
		CompanyID:  "co-1",
		EmployeeID: "emp-1",
		EntityID:   "order-1001",
		EntityType: engine.EntityOrder,
		Type:       engine.TransactionSpend,
		Amount:     amount,
		Currency:   "USD",
	}
}

// TestSpendingLedger_ApplyAccumulates 记账同时更新所有适用限额并落流水
func TestSpendingLedger_ApplyAccumulates(t *testing.T) {
	db, ledger := setupLedger(t)
	seedLimit(t, db, &model.SpendingLimitModel{
		ID:          "lim-emp",
		CompanyID:   "co-1",
		Scope:       string(engine.ScopeEmployee),
		EmployeeID:  "emp-1",
		Period:      string(engine.PeriodMonthly),
		LimitAmount: 1000,
		IsActive:    true,
		NextResetAt: time.Now().AddDate(0, 1, 0),
	})
	seedLimit(t, db, &model.SpendingLimitModel{
		ID:          "lim-co",
		CompanyID:   "co-1",
		Scope:       string(engine.ScopeCompany),
		Period:      string(engine.PeriodMonthly),
		LimitAmount: 10000,
		IsActive:    true,
		NextResetAt: time.Now().AddDate(0, 1, 0),
	})

	require.NoError(t, ledger.Apply(spendTxn(300), false))

	var empLimit, coLimit model.SpendingLimitModel
	require.NoError(t, db.Where("id = ?", "lim-emp").First(&empLimit).Error)
	require.NoError(t, db.Where("id = ?", "lim-co").First(&coLimit).Error)
	assert.Equal(t, 300.0, empLimit.CurrentSpending)
	assert.Equal(t, 300.0, coLimit.CurrentSpending)

	var txns []*model.SpendingTransactionModel
	db.Where("employee_id = ?", "emp-1").Find(&txns)
	require.Len(t, txns, 1)

	var limitIDs []string
	require.NoError(t, json.Unmarshal(txns[0].LimitIDs, &limitIDs))
	assert.ElementsMatch(t, []string{"lim-emp", "lim-co"}, limitIDs)
}

// TestSpendingLedger_RefundFloorsAtZero 退款入账,累计消费不为负
func TestSpendingLedger_RefundFloorsAtZero(t *testing.T) {
	db, ledger := setupLedger(t)
	seedLimit(t, db, &model.SpendingLimitModel{
		ID:              "lim-emp",
		CompanyID:       "co-1",
		Scope:           string(engine.ScopeEmployee),
		EmployeeID:      "emp-1",
		Period:          string(engine.PeriodMonthly),
		LimitAmount:     1000,
		CurrentSpending: 100,
		IsActive:        true,
		NextResetAt:     time.Now().AddDate(0, 1, 0),
	})

	refund := spendTxn(-300)
	refund.Type = engine.TransactionRefund
	require.NoError(t, ledger.Apply(refund, true))

	var limit model.SpendingLimitModel
	require.NoError(t, db.Where("id = ?", "lim-emp").First(&limit).Error)
	assert.Equal(t, 0.0, limit.CurrentSpending)

	var count int64
	db.Model(&model.SpendingTransactionModel{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

// TestSpendingLedger_EnforceBlocksBreach 超限记账整体回滚
func TestSpendingLedger_EnforceBlocksBreach(t *testing.T) {
	db, ledger := setupLedger(t)
	seedLimit(t, db, &model.SpendingLimitModel{
		ID:              "lim-emp",
		CompanyID:       "co-1",
		Scope:           string(engine.ScopeEmployee),
		EmployeeID:      "emp-1",
		Period:          string(engine.PeriodMonthly),
		LimitAmount:     1000,
		CurrentSpending: 900,
		IsActive:        true,
		NextResetAt:     time.Now().AddDate(0, 1, 0),
	})

	err := ledger.Apply(spendTxn(200), true)
	var breachErr *engine.LimitBreachError
	require.ErrorAs(t, err, &breachErr)
	assert.Equal(t, "lim-emp", breachErr.LimitID)
	assert.Equal(t, 100.0, breachErr.Remaining)

	var limit model.SpendingLimitModel
	require.NoError(t, db.Where("id = ?", "lim-emp").First(&limit).Error)
	assert.Equal(t, 900.0, limit.CurrentSpending)

	var count int64
	db.Model(&model.SpendingTransactionModel{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

// TestSpendingLedger_PerOrderNotAccumulated per_order 限额逐笔比较不累计
func TestSpendingLedger_PerOrderNotAccumulated(t *testing.T) {
	db, ledger := setupLedger(t)
	seedLimit(t, db, &model.SpendingLimitModel{
		ID:          "lim-order",
		CompanyID:   "co-1",
		Scope:       string(engine.ScopeEmployee),
		EmployeeID:  "emp-1",
		Period:      string(engine.PeriodPerOrder),
		LimitAmount: 500,
		IsActive:    true,
	})

	// 上限内的单笔通过且不累计
	require.NoError(t, ledger.Apply(spendTxn(300), true))

	var limit model.SpendingLimitModel
	require.NoError(t, db.Where("id = ?", "lim-order").First(&limit).Error)
	assert.Equal(t, 0.0, limit.CurrentSpending)

	// 超过单笔上限被拒绝
	err := ledger.Apply(spendTxn(600), true)
	var breachErr *engine.LimitBreachError
	require.ErrorAs(t, err, &breachErr)
	assert.Equal(t, "lim-order", breachErr.LimitID)
}

// TestSpendingLedger_Evaluate 评估只读,返回预警与超限标记
func TestSpendingLedger_Evaluate(t *testing.T) {
	db, ledger := setupLedger(t)
	seedLimit(t, db, &model.SpendingLimitModel{
		ID:               "lim-emp",
		CompanyID:        "co-1",
		Scope:            string(engine.ScopeEmployee),
		EmployeeID:       "emp-1",
		Period:           string(engine.PeriodMonthly),
		LimitAmount:      1000,
		CurrentSpending:  500,
		WarningThreshold: 0.8,
		IsActive:         true,
		NextResetAt:      time.Now().AddDate(0, 1, 0),
	})

	evals, err := ledger.Evaluate(&engine.Submission{
		EntityID:    "order-1001",
		EntityType:  engine.EntityOrder,
		CompanyID:   "co-1",
		RequesterID: "emp-1",
		Amount:      350,
	})
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.True(t, evals[0].IsWarning)
	assert.False(t, evals[0].IsExceeded)
	assert.Equal(t, 500.0, evals[0].Remaining)

	// 限额状态不被评估修改
	var limit model.SpendingLimitModel
	require.NoError(t, db.Where("id = ?", "lim-emp").First(&limit).Error)
	assert.Equal(t, 500.0, limit.CurrentSpending)
}

// TestSpendingLedger_ResetDueLimits 周期边界重置一次后幂等
func TestSpendingLedger_ResetDueLimits(t *testing.T) {
	db, ledger := setupLedger(t)
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	seedLimit(t, db, &model.SpendingLimitModel{
		ID:              "lim-emp",
		CompanyID:       "co-1",
		Scope:           string(engine.ScopeEmployee),
		EmployeeID:      "emp-1",
		Period:          string(engine.PeriodMonthly),
		LimitAmount:     1000,
		CurrentSpending: 800,
		IsActive:        true,
		LastResetAt:     time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		NextResetAt:     time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})

	reset, err := ledger.ResetDueLimits(now)
	require.NoError(t, err)
	assert.Equal(t, 1, reset)

	var limit model.SpendingLimitModel
	require.NoError(t, db.Where("id = ?", "lim-emp").First(&limit).Error)
	assert.Equal(t, 0.0, limit.CurrentSpending)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), limit.NextResetAt.UTC())

	// 下一边界到来前不再重置
	reset, err = ledger.ResetDueLimits(now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, reset)
}
