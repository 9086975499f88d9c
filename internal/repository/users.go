package repository

import (
	"context"
	"strings"

	"escrow-market/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateUser inserts a new user
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

// GetUserByID retrieves a user by ID
func (r *Repository) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUsersByIDs loads users keyed by id
func (r *Repository) GetUsersByIDs(ctx context.Context, ids []uint) (map[uint]*models.User, error) {
	out := make(map[uint]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

// GetUserByUsername retrieves a user by username, case-insensitively
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("LOWER(username) = ?", strings.ToLower(username)).
		First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUserByLogin finds a user whose email or username equals identifier
func (r *Repository) GetUserByLogin(ctx context.Context, identifier string) (*models.User, error) {
	id := strings.ToLower(strings.TrimSpace(identifier))
	var user models.User
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ? OR LOWER(username) = ?", id, id).
		First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// IdentityTaken reports which of username and email already belong to a user.
func (r *Repository) IdentityTaken(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error) {
	var count int64
	if err = r.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(username) = ?", strings.ToLower(username)).
		Count(&count).Error; err != nil {
		return false, false, err
	}
	usernameTaken = count > 0

	if err = r.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(email) = ?", strings.ToLower(email)).
		Count(&count).Error; err != nil {
		return false, false, err
	}
	emailTaken = count > 0
	return usernameTaken, emailTaken, nil
}

// UpdateUserFields applies a partial update to a user
func (r *Repository) UpdateUserFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchUsers matches q against usernames and full names
func (r *Repository) SearchUsers(ctx context.Context, q string, excludeID uint, limit int) ([]models.User, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(q)) + "%"
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("(LOWER(username) LIKE ? OR LOWER(full_name) LIKE ?) AND id <> ?", pattern, pattern, excludeID).
		Order("completed_deals DESC, username ASC").
		Limit(clampLimit(limit, 20, 50)).
		Find(&users).Error
	return users, err
}

// ListUsers returns users for support staff with optional filtering
func (r *Repository) ListUsers(ctx context.Context, search string, limit, offset int) ([]models.User, int64, error) {
	var users []models.User
	var total int64

	query := r.db.WithContext(ctx).Model(&models.User{})
	if search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("created_at DESC").Limit(clampLimit(limit, 50, 200)).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// CreditWallet adds amount to the user's balance
func (r *Repository) CreditWallet(ctx context.Context, userID uint, amount decimal.Decimal) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("wallet_balance", gorm.Expr("wallet_balance + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DebitWallet subtracts amount from the user's balance. The balance guard is
// part of the UPDATE so concurrent debits cannot overdraw.
func (r *Repository) DebitWallet(ctx context.Context, userID uint, amount decimal.Decimal) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND wallet_balance >= ?", userID, amount).
		Update("wallet_balance", gorm.Expr("wallet_balance - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetUserByID(ctx, userID); err != nil {
			return err
		}
		return ErrInsufficientFunds
	}
	return nil
}

// IncrementCompletedDeals bumps the completed deal counter of each user
func (r *Repository) IncrementCompletedDeals(ctx context.Context, userIDs ...uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id IN ?", userIDs).
		Update("completed_deals", gorm.Expr("completed_deals + 1")).Error
}
