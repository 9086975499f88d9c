package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DealStatus string

const (
	DealStatusPendingAcceptance DealStatus = "pending-acceptance"
	DealStatusPendingPayment    DealStatus = "pending-payment"
	DealStatusInProgress        DealStatus = "in-progress"
	DealStatusCompleted         DealStatus = "completed"
	DealStatusDisputed          DealStatus = "disputed"
	DealStatusCancelled         DealStatus = "cancelled"
	DealStatusRejected          DealStatus = "rejected"
	DealStatusResolved          DealStatus = "resolved"
	DealStatusRefunded          DealStatus = "refunded"
)

// Valid reports whether s is one of the known statuses.
func (s DealStatus) Valid() bool {
	switch s {
	case DealStatusPendingAcceptance, DealStatusPendingPayment, DealStatusInProgress,
		DealStatusCompleted, DealStatusDisputed, DealStatusCancelled,
		DealStatusRejected, DealStatusResolved, DealStatusRefunded:
		return true
	}
	return false
}

type DealAction string

const (
	DealActionAccept   DealAction = "accept"
	DealActionReject   DealAction = "reject"
	DealActionCancel   DealAction = "cancel"
	DealActionExpire   DealAction = "expire"
	DealActionPay      DealAction = "pay"
	DealActionComplete DealAction = "complete"
	DealActionDispute  DealAction = "dispute"
	DealActionRelease  DealAction = "release"
	DealActionRefund   DealAction = "refund"

	// DealActionCreate only appears on the timeline; it is not a transition.
	DealActionCreate DealAction = "create"
)

// PartyRole is the capacity in which an actor touches a deal.
type PartyRole string

const (
	RoleBuyer   PartyRole = "buyer"
	RoleSeller  PartyRole = "seller"
	RoleSupport PartyRole = "support"
	RoleSystem  PartyRole = "system"
)

// Deal is an escrow agreement between a buyer and a seller. Funds paid by the
// buyer are held by the platform until completion or dispute resolution.
type Deal struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Reference       string          `gorm:"size:20;uniqueIndex;not null" json:"reference"`
	InviteCode      string          `gorm:"size:64;uniqueIndex;not null" json:"invite_code,omitempty"`
	Title           string          `gorm:"size:255;not null" json:"title"`
	Description     string          `gorm:"type:text" json:"description"`
	Category        string          `gorm:"size:50;not null;default:General;index" json:"category"`
	Amount          decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	PlatformFeeRate decimal.Decimal `gorm:"type:decimal(5,4);not null" json:"platform_fee_rate"`
	PlatformFee     decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"platform_fee"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total_amount"`
	BuyerID         uint            `gorm:"not null;index" json:"buyer_id"`
	Buyer           *User           `gorm:"foreignKey:BuyerID" json:"-"`
	SellerID        *uint           `gorm:"index" json:"seller_id"`
	Seller          *User           `gorm:"foreignKey:SellerID" json:"-"`
	Status          DealStatus      `gorm:"size:32;not null;index" json:"status"`
	TimelineDays    int             `gorm:"not null" json:"timeline_days"`
	Deadline        time.Time       `gorm:"not null;index" json:"deadline"`
	AcceptedAt      *time.Time      `json:"accepted_at,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	ClosedAt        *time.Time      `json:"closed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (Deal) TableName() string {
	return "deals"
}

func (d *Deal) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// RoleOf returns the role userID plays in the deal, if any.
func (d *Deal) RoleOf(userID uint) (PartyRole, bool) {
	if d.BuyerID == userID {
		return RoleBuyer, true
	}
	if d.SellerID != nil && *d.SellerID == userID {
		return RoleSeller, true
	}
	return "", false
}

// CounterpartyOf returns the other party's id; ok is false while the seller
// slot is still open or userID is not a party.
func (d *Deal) CounterpartyOf(userID uint) (uint, bool) {
	role, ok := d.RoleOf(userID)
	if !ok {
		return 0, false
	}
	if role == RoleBuyer {
		if d.SellerID == nil {
			return 0, false
		}
		return *d.SellerID, true
	}
	return d.BuyerID, true
}

// DealEvent is an append-only timeline entry written with every transition.
type DealEvent struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	DealID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"deal_id"`
	Action     DealAction `gorm:"size:32;not null" json:"action"`
	FromStatus DealStatus `gorm:"size:32" json:"from_status"`
	ToStatus   DealStatus `gorm:"size:32;not null" json:"to_status"`
	ActorID    *uint      `json:"actor_id,omitempty"`
	ActorRole  PartyRole  `gorm:"size:16;not null" json:"actor_role"`
	Note       string     `gorm:"type:text" json:"note,omitempty"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (DealEvent) TableName() string {
	return "deal_events"
}

func (e *DealEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// CreateDealRequest represents a request to open a new deal as buyer
type CreateDealRequest struct {
	Title          string          `json:"title" binding:"required,max=255"`
	Description    string          `json:"description" binding:"required"`
	Amount         decimal.Decimal `json:"amount"`
	TimelineDays   int             `json:"timeline_days" binding:"required,gt=0,lte=365"`
	Category       string          `json:"category"`
	SellerUsername string          `json:"seller_username"`
}

// DealView is a deal as seen by one viewer. Parties appear only through
// their public profiles.
type DealView struct {
	*Deal
	BuyerProfile   *PublicProfile `json:"buyer,omitempty"`
	SellerProfile  *PublicProfile `json:"seller,omitempty"`
	ViewerRole     PartyRole      `json:"viewer_role,omitempty"`
	AllowedActions []DealAction   `json:"allowed_actions"`
	Timeline       []DealEvent    `json:"timeline,omitempty"`
}

// DealInvite is what a prospective seller sees before joining a deal.
type DealInvite struct {
	Reference    string          `json:"reference"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	Amount       decimal.Decimal `json:"amount"`
	TimelineDays int             `json:"timeline_days"`
	Deadline     time.Time       `json:"deadline"`
	Buyer        PublicProfile   `json:"buyer"`
	Status       DealStatus      `json:"status"`
}
