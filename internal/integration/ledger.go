package integration

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jewelmart/approval-core/internal/engine"
	"github.com/jewelmart/approval-core/internal/model"
	"github.com/jewelmart/approval-core/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SpendingLedger 消费账本
// 限额的 CurrentSpending 只能通过这里的记账事务变更,
// 流水只追加,修正以 adjustment/refund 类型入账。
type SpendingLedger interface {
	Evaluate(sub *engine.Submission) ([]engine.LimitEvaluation, error)
	Apply(txn *engine.SpendingTransaction, enforce bool) error
	ApplyInTx(tx *gorm.DB, txn *engine.SpendingTransaction, enforce bool) error
	ResetDueLimits(now time.Time) (int, error)
}

// dbSpendingLedger 基于数据库的消费账本
type dbSpendingLedger struct {
	db        *gorm.DB
	limitRepo repository.LimitRepository
	txnRepo   repository.TransactionRepository
	loc       *time.Location
	logger    *logrus.Entry
}

// NewSpendingLedger 创建消费账本
func NewSpendingLedger(db *gorm.DB, loc *time.Location) SpendingLedger {
	if loc == nil {
		loc = time.UTC
	}
	return &dbSpendingLedger{
		db:        db,
		limitRepo: repository.NewLimitRepository(db),
		txnRepo:   repository.NewTransactionRepository(db),
		loc:       loc,
		logger:    logrus.WithField("component", "spending_ledger"),
	}
}

// Evaluate 评估一笔候选消费
// 只读操作,不修改任何限额状态
func (l *dbSpendingLedger) Evaluate(sub *engine.Submission) ([]engine.LimitEvaluation, error) {
	models, err := l.limitRepo.FindActiveByCompany(sub.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load spending limits: %w", err)
	}
	limits := make([]*engine.SpendingLimit, 0, len(models))
	for _, lm := range models {
		limits = append(limits, limitFromModel(lm))
	}
	return engine.EvaluateLimits(limits, sub), nil
}

// Apply 记账
// 在单个数据库事务内完成流水追加和适用限额的累计更新。
// enforce 为真时在事务内重新校验限额,任一超限则回滚并返回
// LimitBreachError,防止评估与记账之间的并发消费击穿上限。
func (l *dbSpendingLedger) Apply(txn *engine.SpendingTransaction, enforce bool) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		return l.ApplyInTx(tx, txn, enforce)
	})
}

// ApplyInTx 在已有事务内记账
// 供编排器在决定提交事务内联动使用
func (l *dbSpendingLedger) ApplyInTx(tx *gorm.DB, txn *engine.SpendingTransaction, enforce bool) error {
	if !txn.Type.Valid() {
		return engine.NewInvalidTransition("transaction type %q is not valid", txn.Type)
	}
	if txn.ID == "" {
		txn.ID = "txn-" + uuid.NewString()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}

	limitRepo := l.limitRepo.WithTx(tx)
	txnRepo := l.txnRepo.WithTx(tx)

	// 1. 事务内重新加载适用限额
	models, err := limitRepo.FindActiveByCompany(txn.CompanyID)
	if err != nil {
		return fmt.Errorf("failed to load spending limits: %w", err)
	}

	affected := make([]*model.SpendingLimitModel, 0, len(models))
	limitIDs := make([]string, 0, len(models))
	for _, lm := range models {
		limit := limitFromModel(lm)
		if !limit.Applies(txn.CompanyID, txn.EmployeeID, txn.DepartmentID, txn.Role) {
			continue
		}

		// 2. 超限重校验: 只对正向消费做,退款和冲正无条件入账
		if enforce && txn.Amount > 0 {
			eval := limit.Evaluate(txn.Amount)
			if eval.IsExceeded {
				return &engine.LimitBreachError{
					LimitID:   limit.ID,
					Scope:     limit.Scope,
					Period:    limit.Period,
					Remaining: limit.Remaining(),
				}
			}
		}

		affected = append(affected, lm)
		limitIDs = append(limitIDs, lm.ID)
	}

	// 3. 追加流水
	txn.LimitIDs = limitIDs
	txnModel, err := transactionToModel(txn)
	if err != nil {
		return err
	}
	if err := txnRepo.Create(txnModel); err != nil {
		return fmt.Errorf("failed to append spending transaction: %w", err)
	}

	// 4. 更新累计消费
	// per_order 周期的限额不累计,每笔独立比较
	now := time.Now()
	for _, lm := range affected {
		if lm.Period == string(engine.PeriodPerOrder) {
			continue
		}
		lm.CurrentSpending += txn.Amount
		if lm.CurrentSpending < 0 {
			lm.CurrentSpending = 0
		}
		lm.UpdatedAt = now
		if err := limitRepo.Save(lm); err != nil {
			return fmt.Errorf("failed to update spending limit %s: %w", lm.ID, err)
		}
	}

	return nil
}

// ResetDueLimits 重置到达周期边界的限额
// 幂等: 引擎侧按 lastResetAt 判定,同一边界只会重置一次
func (l *dbSpendingLedger) ResetDueLimits(now time.Time) (int, error) {
	models, err := l.limitRepo.FindDueForReset(now)
	if err != nil {
		return 0, fmt.Errorf("failed to load limits due for reset: %w", err)
	}

	reset := 0
	for _, lm := range models {
		limit := limitFromModel(lm)
		if !limit.Reset(now, l.loc) {
			continue
		}
		lm.CurrentSpending = limit.CurrentSpending
		lm.LastResetAt = limit.LastResetAt
		lm.NextResetAt = limit.NextResetAt
		lm.UpdatedAt = now
		if err := l.limitRepo.Save(lm); err != nil {
			return reset, fmt.Errorf("failed to persist limit reset for %s: %w", lm.ID, err)
		}
		l.logger.WithFields(logrus.Fields{
			"limit_id": lm.ID,
			"period":   lm.Period,
		}).Info("spending limit reset at period boundary")
		reset++
	}
	return reset, nil
}

// limitFromModel 模型转换为引擎限额
func limitFromModel(lm *model.SpendingLimitModel) *engine.SpendingLimit {
	return &engine.SpendingLimit{
		ID:               lm.ID,
		CompanyID:        lm.CompanyID,
		Scope:            engine.LimitScope(lm.Scope),
		EmployeeID:       lm.EmployeeID,
		DepartmentID:     lm.DepartmentID,
		Role:             lm.Role,
		Period:           engine.SpendingPeriod(lm.Period),
		LimitAmount:      lm.LimitAmount,
		CurrentSpending:  lm.CurrentSpending,
		WarningThreshold: lm.WarningThreshold,
		IsActive:         lm.IsActive,
		LastResetAt:      lm.LastResetAt,
		NextResetAt:      lm.NextResetAt,
	}
}

// transactionToModel 序列化流水
func transactionToModel(txn *engine.SpendingTransaction) (*model.SpendingTransactionModel, error) {
	limitIDs, err := json.Marshal(txn.LimitIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal limit IDs: %w", err)
	}
	return &model.SpendingTransactionModel{
		ID:           txn.ID,
		CompanyID:    txn.CompanyID,
		EmployeeID:   txn.EmployeeID,
		DepartmentID: txn.DepartmentID,
		Role:         txn.Role,
		EntityID:     txn.EntityID,
		EntityType:   string(txn.EntityType),
		Type:         string(txn.Type),
		Amount:       txn.Amount,
		Currency:     txn.Currency,
		LimitIDs:     limitIDs,
		CreatedAt:    txn.CreatedAt,
	}, nil
}
