package repository

import (
	"context"
	"time"

	"escrow-market/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateTransaction appends a ledger entry
func (r *Repository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	return translate(r.db.WithContext(ctx).Create(txn).Error)
}

// GetTransaction retrieves a ledger entry by ID
func (r *Repository) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&txn).Error; err != nil {
		return nil, translate(err)
	}
	return &txn, nil
}

// GetTransactionByReferenceForUpdate locks the ledger entry with the given
// provider reference
func (r *Repository) GetTransactionByReferenceForUpdate(ctx context.Context, reference string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.forUpdate(ctx).Where("reference = ?", reference).First(&txn).Error; err != nil {
		return nil, translate(err)
	}
	return &txn, nil
}

// TransactionFilter narrows a ledger listing
type TransactionFilter struct {
	UserID uint
	Type   models.TransactionType
	Limit  int
	Offset int
}

// ListTransactions returns a user's ledger, newest first, with the total count
func (r *Repository) ListTransactions(ctx context.Context, f TransactionFilter) ([]models.Transaction, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", f.UserID)
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txns []models.Transaction
	err := q.Order("created_at DESC").
		Limit(clampLimit(f.Limit, 20, 100)).
		Offset(f.Offset).
		Find(&txns).Error
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// SumTransactions totals the amount of a user's entries of one type and status
func (r *Repository) SumTransactions(ctx context.Context, userID uint, typ models.TransactionType, status models.TransactionStatus) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND type = ? AND status = ?", userID, typ, status).
		Row().Scan(&total)
	return total, err
}

// SettleTransaction moves a pending entry to a final status. Entries that are
// no longer pending are left alone and ErrStaleState is returned.
func (r *Repository) SettleTransaction(ctx context.Context, id uuid.UUID, status models.TransactionStatus, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, models.TransactionStatusPending).
		Updates(map[string]interface{}{"status": status, "completed_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

// FindIdempotencyKey looks up a previously reserved client key
func (r *Repository) FindIdempotencyKey(ctx context.Context, userID uint, key string) (*models.IdempotencyKey, error) {
	var k models.IdempotencyKey
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND key = ?", userID, key).
		First(&k).Error
	if err != nil {
		return nil, translate(err)
	}
	return &k, nil
}

// SaveIdempotencyKey reserves a client key. A concurrent reservation of the
// same key surfaces as ErrDuplicate.
func (r *Repository) SaveIdempotencyKey(ctx context.Context, k *models.IdempotencyKey) error {
	return translate(r.db.WithContext(ctx).Create(k).Error)
}
