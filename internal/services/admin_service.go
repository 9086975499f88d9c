package services

import (
	"context"
	"errors"
	"fmt"

	"escrow-market/internal/models"
	"escrow-market/internal/repository"

	"go.uber.org/zap"
)

// AdminService handles support staff membership and user administration
type AdminService struct {
	repo     *repository.Repository
	activity repository.ActivityLog
	log      *zap.Logger
}

func NewAdminService(repo *repository.Repository, activity repository.ActivityLog, log *zap.Logger) *AdminService {
	return &AdminService{repo: repo, activity: activity, log: log.Named("admin")}
}

// IsSupport reports whether the user is support staff
func (s *AdminService) IsSupport(ctx context.Context, userID uint) bool {
	_, err := s.repo.GetAdminByUserID(ctx, userID)
	return err == nil
}

// GetAdminByUserID returns the staff record of a user
func (s *AdminService) GetAdminByUserID(ctx context.Context, userID uint) (*models.AdminUser, error) {
	admin, err := s.repo.GetAdminByUserID(ctx, userID)
	return admin, mapRepoError(err)
}

// GrantRole makes username support staff with the given role
func (s *AdminService) GrantRole(ctx context.Context, username, role string) (*models.AdminUser, error) {
	if role != models.AdminRoleSupport && role != models.AdminRoleSuperAdmin {
		return nil, invalidInput("unknown staff role %q", role)
	}
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, mapRepoError(err)
	}

	admin := &models.AdminUser{UserID: user.ID, Role: role, Permissions: models.JSONB{}}
	if err := s.repo.CreateAdminUser(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s is already staff", ErrInvalidInput, username)
		}
		return nil, err
	}
	s.log.Info("staff role granted", zap.String("username", username), zap.String("role", role))
	return admin, nil
}

// ListUsers returns users with optional search
func (s *AdminService) ListUsers(ctx context.Context, search string, limit, offset int) ([]models.User, int64, error) {
	return s.repo.ListUsers(ctx, search, limit, offset)
}

// SetVerified sets the verified badge and writes the audit entry
func (s *AdminService) SetVerified(ctx context.Context, staffUserID, userID uint, verified bool) (*models.User, error) {
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.UpdateUserFields(ctx, userID, map[string]interface{}{"verified": verified}); err != nil {
			return mapRepoError(err)
		}
		return tx.CreateAdminLog(ctx, &models.AdminLog{
			AdminID:      staffUserID,
			Action:       "VERIFY_USER",
			ResourceType: "user",
			ResourceID:   fmt.Sprint(userID),
			Details:      models.JSONB{"verified": verified},
		})
	})
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetUserByID(ctx, userID)
	return user, mapRepoError(err)
}

// GetAdminLogs returns the staff audit trail
func (s *AdminService) GetAdminLogs(ctx context.Context, limit, offset int) ([]models.AdminLog, error) {
	return s.repo.ListAdminLogs(ctx, limit, offset)
}

// GetActivity returns status history from the activity log
func (s *AdminService) GetActivity(ctx context.Context, relatedType, relatedID string, limit int) ([]models.ActivityLog, error) {
	if s.activity == nil {
		return []models.ActivityLog{}, nil
	}
	return s.activity.List(ctx, relatedType, relatedID, limit)
}
