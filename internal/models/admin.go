package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONB for PostgreSQL JSON support
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported JSONB source %T", value)
	}
	return json.Unmarshal(raw, j)
}

const (
	AdminRoleSupport    = "SUPPORT"
	AdminRoleSuperAdmin = "SUPER_ADMIN"
)

// AdminUser marks a user as support staff able to resolve disputes
type AdminUser struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	User        *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role        string    `gorm:"size:20;not null" json:"role"` // SUPPORT, SUPER_ADMIN
	Permissions JSONB     `gorm:"type:jsonb" json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (AdminUser) TableName() string {
	return "admin_users"
}

// AdminLog records admin actions for audit trail
type AdminLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AdminID      uint      `gorm:"not null;index" json:"admin_id"`
	Action       string    `gorm:"size:100;not null" json:"action"`
	ResourceType string    `gorm:"size:50" json:"resource_type"`
	ResourceID   string    `gorm:"size:64" json:"resource_id"`
	Details      JSONB     `gorm:"type:jsonb" json:"details"`
	CreatedAt    time.Time `json:"created_at"`
}

func (AdminLog) TableName() string {
	return "admin_logs"
}

// ActivityLog is one status change of a deal, dispute or transaction. It is
// written after the owning transaction commits and may live outside the
// primary database.
type ActivityLog struct {
	ID          uint      `gorm:"primaryKey" json:"id" bson:"-"`
	RelatedID   string    `gorm:"size:64;not null;index" json:"related_id" bson:"related_id"`
	RelatedType string    `gorm:"size:32;not null" json:"related_type" bson:"related_type"`
	OldStatus   string    `gorm:"size:32" json:"old_status" bson:"old_status"`
	NewStatus   string    `gorm:"size:32;not null" json:"new_status" bson:"new_status"`
	ChangedBy   *uint     `json:"changed_by,omitempty" bson:"changed_by,omitempty"`
	Note        string    `gorm:"type:text" json:"note,omitempty" bson:"note,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at" bson:"created_at"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}

// VerifyUserRequest toggles the verified badge on a member
type VerifyUserRequest struct {
	Verified bool `json:"verified"`
}
