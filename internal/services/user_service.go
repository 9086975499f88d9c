package services

import (
	"context"
	"strings"

	"escrow-market/internal/models"
	"escrow-market/internal/repository"
)

// UserService handles profile reads and edits
type UserService struct {
	repo *repository.Repository
}

// NewUserService creates a new UserService
func NewUserService(repo *repository.Repository) *UserService {
	return &UserService{repo: repo}
}

// GetUserByID returns a user's own full record
func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	return user, mapRepoError(err)
}

// UpdateProfile changes the editable profile fields
func (s *UserService) UpdateProfile(ctx context.Context, id uint, req models.UpdateProfileRequest) (*models.User, error) {
	fields := map[string]interface{}{}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return nil, invalidInput("full name cannot be empty")
		}
		fields["full_name"] = name
	}
	if req.Phone != nil {
		fields["phone"] = strings.TrimSpace(*req.Phone)
	}

	if err := s.repo.UpdateUserFields(ctx, id, fields); err != nil {
		return nil, mapRepoError(err)
	}
	return s.GetUserByID(ctx, id)
}

// Search finds members by username or name, excluding the caller
func (s *UserService) Search(ctx context.Context, q string, callerID uint) ([]models.PublicProfile, error) {
	q = strings.TrimSpace(q)
	if len(q) < 2 {
		return nil, invalidInput("search query must be at least 2 characters")
	}

	users, err := s.repo.SearchUsers(ctx, q, callerID, 20)
	if err != nil {
		return nil, err
	}
	out := make([]models.PublicProfile, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return out, nil
}

// GetPublicProfile returns the public view of a member
func (s *UserService) GetPublicProfile(ctx context.Context, username string) (*models.PublicProfile, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, mapRepoError(err)
	}
	p := user.Public()
	return &p, nil
}
