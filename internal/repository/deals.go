package repository

import (
	"context"
	"time"

	"escrow-market/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateDeal inserts a new deal
func (r *Repository) CreateDeal(ctx context.Context, deal *models.Deal) error {
	return translate(r.db.WithContext(ctx).Create(deal).Error)
}

// GetDeal retrieves a deal with both parties loaded
func (r *Repository) GetDeal(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	var deal models.Deal
	err := r.db.WithContext(ctx).
		Preload("Buyer").Preload("Seller").
		Where("id = ?", id).
		First(&deal).Error
	if err != nil {
		return nil, translate(err)
	}
	return &deal, nil
}

// GetDealForUpdate retrieves a deal and locks its row until the surrounding
// transaction ends
func (r *Repository) GetDealForUpdate(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	var deal models.Deal
	if err := r.forUpdate(ctx).Where("id = ?", id).First(&deal).Error; err != nil {
		return nil, translate(err)
	}
	return &deal, nil
}

// GetDealByInviteCode retrieves a deal by its share code
func (r *Repository) GetDealByInviteCode(ctx context.Context, code string) (*models.Deal, error) {
	var deal models.Deal
	err := r.db.WithContext(ctx).
		Preload("Buyer").
		Where("invite_code = ?", code).
		First(&deal).Error
	if err != nil {
		return nil, translate(err)
	}
	return &deal, nil
}

// DealFilter narrows a user's deal list
type DealFilter struct {
	UserID   uint
	Statuses []models.DealStatus
	Limit    int
	Offset   int
}

// ListDealsForUser returns deals where the user is buyer or seller, newest first
func (r *Repository) ListDealsForUser(ctx context.Context, f DealFilter) ([]models.Deal, error) {
	q := r.db.WithContext(ctx).
		Preload("Buyer").Preload("Seller").
		Where("buyer_id = ? OR seller_id = ?", f.UserID, f.UserID)
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}

	var deals []models.Deal
	err := q.Order("created_at DESC").
		Limit(clampLimit(f.Limit, 50, 200)).
		Offset(f.Offset).
		Find(&deals).Error
	return deals, err
}

// CountDealsForUser counts the user's deals in the given statuses
func (r *Repository) CountDealsForUser(ctx context.Context, userID uint, statuses ...models.DealStatus) (int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Deal{}).
		Where("buyer_id = ? OR seller_id = ?", userID, userID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// SumEscrowHeld totals what the user has paid into deals that are not yet
// released or refunded
func (r *Repository) SumEscrowHeld(ctx context.Context, userID uint) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).Model(&models.Deal{}).
		Select("COALESCE(SUM(total_amount), 0)").
		Where("buyer_id = ? AND status IN ?", userID,
			[]models.DealStatus{models.DealStatusInProgress, models.DealStatusDisputed}).
		Row().Scan(&total)
	return total, err
}

// ClaimSeller fills an open seller slot. It fails with ErrStaleState if the
// slot was taken or the deal moved on.
func (r *Repository) ClaimSeller(ctx context.Context, dealID uuid.UUID, sellerID uint) error {
	res := r.db.WithContext(ctx).Model(&models.Deal{}).
		Where("id = ? AND seller_id IS NULL AND status = ?", dealID, models.DealStatusPendingAcceptance).
		Updates(map[string]interface{}{"seller_id": sellerID, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

// TransitionDeal moves a deal from one status to another. The current status
// is part of the WHERE clause so a racing writer leaves RowsAffected at zero.
func (r *Repository) TransitionDeal(ctx context.Context, id uuid.UUID, from, to models.DealStatus, fields map[string]interface{}) error {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range fields {
		updates[k] = v
	}

	res := r.db.WithContext(ctx).Model(&models.Deal{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

// AppendDealEvent writes a timeline entry
func (r *Repository) AppendDealEvent(ctx context.Context, event *models.DealEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// ListDealEvents returns a deal's timeline, oldest first
func (r *Repository) ListDealEvents(ctx context.Context, dealID uuid.UUID) ([]models.DealEvent, error) {
	var events []models.DealEvent
	err := r.db.WithContext(ctx).
		Where("deal_id = ?", dealID).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}

// ListExpiredPendingDeals finds deals still awaiting the seller after their deadline
func (r *Repository) ListExpiredPendingDeals(ctx context.Context, now time.Time, limit int) ([]models.Deal, error) {
	var deals []models.Deal
	err := r.db.WithContext(ctx).
		Where("status = ? AND deadline < ?", models.DealStatusPendingAcceptance, now).
		Order("deadline ASC").
		Limit(clampLimit(limit, 100, 500)).
		Find(&deals).Error
	return deals, err
}
