package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a marketplace member. Every user owns exactly one wallet,
// whose balance lives on this row.
type User struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Username       string          `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email          string          `gorm:"size:255;uniqueIndex;not null" json:"email"`
	FullName       string          `gorm:"size:255;not null" json:"full_name"`
	Phone          string          `gorm:"size:32" json:"phone"`
	PasswordHash   string          `gorm:"size:255;not null" json:"-"`
	WalletBalance  decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"wallet_balance"`
	Rating         decimal.Decimal `gorm:"type:decimal(3,2);not null;default:5" json:"rating"`
	CompletedDeals int             `gorm:"not null;default:0" json:"completed_deals"`
	Verified       bool            `gorm:"not null;default:false" json:"verified"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// PublicProfile is the subset of a user other members may see.
type PublicProfile struct {
	ID             uint            `json:"id"`
	Username       string          `json:"username"`
	FullName       string          `json:"full_name"`
	Rating         decimal.Decimal `json:"rating"`
	CompletedDeals int             `json:"completed_deals"`
	Verified       bool            `json:"verified"`
}

// Public strips private fields from the user.
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:             u.ID,
		Username:       u.Username,
		FullName:       u.FullName,
		Rating:         u.Rating,
		CompletedDeals: u.CompletedDeals,
		Verified:       u.Verified,
	}
}

// SignupRequest carries the fields accepted at registration.
type SignupRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"full_name" binding:"required"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest accepts either an email or a username as identifier.
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// UpdateProfileRequest holds the editable profile fields.
type UpdateProfileRequest struct {
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
}
