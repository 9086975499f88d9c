package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"escrow-market/internal/auth"
	"escrow-market/internal/models"
	"escrow-market/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.]{3,50}$`)

// AuthService handles authentication business logic
type AuthService struct {
	repo *repository.Repository
	log  *zap.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(repo *repository.Repository, log *zap.Logger) *AuthService {
	return &AuthService{repo: repo, log: log.Named("auth")}
}

// Session is returned after a successful signup or login
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Signup registers a new member with an empty wallet. Username and email are
// checked for duplicates before anything is written.
func (s *AuthService) Signup(ctx context.Context, req models.SignupRequest) (*Session, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	fullName := strings.TrimSpace(req.FullName)

	if !usernamePattern.MatchString(username) {
		return nil, invalidInput("username must be 3-50 letters, digits, dots or underscores")
	}
	if fullName == "" {
		return nil, invalidInput("full name is required")
	}
	if len(req.Password) < auth.MinPasswordLength {
		return nil, invalidInput("password must be at least %d characters", auth.MinPasswordLength)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:      username,
		Email:         email,
		FullName:      fullName,
		Phone:         strings.TrimSpace(req.Phone),
		PasswordHash:  hash,
		WalletBalance: decimal.Zero,
		Rating:        decimal.NewFromInt(5),
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		usernameTaken, emailTaken, err := tx.IdentityTaken(ctx, username, email)
		if err != nil {
			return err
		}
		if usernameTaken {
			return ErrUsernameTaken
		}
		if emailTaken {
			return ErrEmailTaken
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAccountExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return s.issue(user)
}

// Login authenticates by email or username
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*Session, error) {
	user, err := s.repo.GetUserByLogin(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

// GetUserByID returns the authenticated user's full record
func (s *AuthService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	return user, mapRepoError(err)
}

func (s *AuthService) issue(user *models.User) (*Session, error) {
	token, err := auth.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Token: token, User: user}, nil
}
