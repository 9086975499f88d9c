package repository

import (
	"context"
	"time"

	"escrow-market/internal/models"

	"github.com/google/uuid"
)

// CreateDispute inserts a new dispute
func (r *Repository) CreateDispute(ctx context.Context, dispute *models.Dispute) error {
	return r.db.WithContext(ctx).Create(dispute).Error
}

// GetDispute retrieves a dispute with its deal
func (r *Repository) GetDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := r.db.WithContext(ctx).Preload("Deal").Where("id = ?", id).First(&dispute).Error; err != nil {
		return nil, translate(err)
	}
	return &dispute, nil
}

// GetDisputeForUpdate locks a dispute row
func (r *Repository) GetDisputeForUpdate(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := r.forUpdate(ctx).Where("id = ?", id).First(&dispute).Error; err != nil {
		return nil, translate(err)
	}
	return &dispute, nil
}

// HasOpenDispute reports whether the deal already has an unresolved dispute
func (r *Repository) HasOpenDispute(ctx context.Context, dealID uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Dispute{}).
		Where("deal_id = ? AND status = ?", dealID, models.DisputeStatusOpen).
		Count(&n).Error
	return n > 0, err
}

// ListDisputesForUser returns disputes on deals where the user is a party
func (r *Repository) ListDisputesForUser(ctx context.Context, userID uint) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.WithContext(ctx).
		Preload("Deal").
		Joins("JOIN deals ON deals.id = disputes.deal_id").
		Where("deals.buyer_id = ? OR deals.seller_id = ?", userID, userID).
		Order("disputes.created_at DESC").
		Find(&disputes).Error
	return disputes, err
}

// ListDisputes returns disputes for support staff, optionally by status
func (r *Repository) ListDisputes(ctx context.Context, status models.DisputeStatus, limit, offset int) ([]models.Dispute, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Dispute{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var disputes []models.Dispute
	err := q.Preload("Deal").
		Order("created_at ASC").
		Limit(clampLimit(limit, 50, 200)).
		Offset(offset).
		Find(&disputes).Error
	return disputes, total, err
}

// CloseDispute records the outcome of an open dispute
func (r *Repository) CloseDispute(ctx context.Context, id uuid.UUID, status models.DisputeStatus,
	outcome models.DisputeOutcome, resolution string, resolvedBy uint, at time.Time) error {

	res := r.db.WithContext(ctx).Model(&models.Dispute{}).
		Where("id = ? AND status = ?", id, models.DisputeStatusOpen).
		Updates(map[string]interface{}{
			"status":      status,
			"outcome":     outcome,
			"resolution":  resolution,
			"resolved_by": resolvedBy,
			"resolved_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}
