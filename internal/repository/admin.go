package repository

import (
	"context"

	"escrow-market/internal/models"
)

// GetAdminByUserID returns the staff record of a user
func (r *Repository) GetAdminByUserID(ctx context.Context, userID uint) (*models.AdminUser, error) {
	var admin models.AdminUser
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&admin).Error; err != nil {
		return nil, translate(err)
	}
	return &admin, nil
}

// CreateAdminUser grants a staff role to a user
func (r *Repository) CreateAdminUser(ctx context.Context, admin *models.AdminUser) error {
	return translate(r.db.WithContext(ctx).Create(admin).Error)
}

// CreateAdminLog appends to the staff audit trail
func (r *Repository) CreateAdminLog(ctx context.Context, entry *models.AdminLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListAdminLogs returns the staff audit trail, newest first
func (r *Repository) ListAdminLogs(ctx context.Context, limit, offset int) ([]models.AdminLog, error) {
	var logs []models.AdminLog
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(clampLimit(limit, 50, 200)).
		Offset(offset).
		Find(&logs).Error
	return logs, err
}
