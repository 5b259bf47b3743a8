package repository

import (
	"github.com/jewelmart/approval-core/internal/model"
	"gorm.io/gorm"
)

// TransactionRepository 消费流水仓储接口
// 流水只追加,不提供更新与删除
type TransactionRepository interface {
	Create(txn *model.SpendingTransactionModel) error
	FindByEntity(entityID string) ([]*model.SpendingTransactionModel, error)
	FindByEmployee(employeeID string, limit int) ([]*model.SpendingTransactionModel, error)
	WithTx(tx *gorm.DB) TransactionRepository
}

// transactionRepository 消费流水仓储实现
type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository 创建消费流水仓储
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

// WithTx 返回绑定到指定事务的仓储
func (r *transactionRepository) WithTx(tx *gorm.DB) TransactionRepository {
	return &transactionRepository{db: tx}
}

// Create 追加流水
func (r *transactionRepository) Create(txn *model.SpendingTransactionModel) error {
	return r.db.Create(txn).Error
}

// FindByEntity 查找业务实体关联的流水
func (r *transactionRepository) FindByEntity(entityID string) ([]*model.SpendingTransactionModel, error) {
	var txns []*model.SpendingTransactionModel
	err := r.db.Where("entity_id = ?", entityID).Order("created_at ASC").Find(&txns).Error
	return txns, err
}

// FindByEmployee 查找员工最近的流水
func (r *transactionRepository) FindByEmployee(employeeID string, limit int) ([]*model.SpendingTransactionModel, error) {
	var txns []*model.SpendingTransactionModel
	query := r.db.Where("employee_id = ?", employeeID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&txns).Error
	return txns, err
}
