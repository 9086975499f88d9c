package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypePayment    TransactionType = "payment"
	TransactionTypePayout     TransactionType = "payout"
	TransactionTypeRefund     TransactionType = "refund"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypePayment,
		TransactionTypePayout, TransactionTypeRefund:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// PaymentMethod is where money enters or leaves the platform.
type PaymentMethod string

const (
	MethodWallet PaymentMethod = "wallet"
	MethodMpesa  PaymentMethod = "mpesa"
	MethodAirtel PaymentMethod = "airtel"
	MethodMTN    PaymentMethod = "mtn"
)

// IsMobileMoney reports whether m is an external mobile-money operator.
func (m PaymentMethod) IsMobileMoney() bool {
	return m == MethodMpesa || m == MethodAirtel || m == MethodMTN
}

// Transaction is one ledger entry against a user's wallet
type Transaction struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uint              `gorm:"not null;index" json:"user_id"`
	DealID      *uuid.UUID        `gorm:"type:uuid;index" json:"deal_id,omitempty"`
	Type        TransactionType   `gorm:"size:20;not null;index" json:"type"`
	Amount      decimal.Decimal   `gorm:"type:decimal(15,2);not null" json:"amount"`
	Fee         decimal.Decimal   `gorm:"type:decimal(15,2);not null;default:0" json:"fee"`
	Method      PaymentMethod     `gorm:"size:20;not null" json:"method"`
	PhoneNumber string            `gorm:"size:32" json:"phone_number,omitempty"`
	Reference   string            `gorm:"size:64;uniqueIndex;not null" json:"reference"`
	Status      TransactionStatus `gorm:"size:20;not null;index" json:"status"`
	Description string            `gorm:"type:text" json:"description"`
	CreatedAt   time.Time         `gorm:"index" json:"created_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// TableName specifies the table name for Transaction model
func (Transaction) TableName() string {
	return "transactions"
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// IdempotencyKey reserves a client-supplied key so a retried money request
// maps back to the transaction it created the first time.
type IdempotencyKey struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"not null;uniqueIndex:idx_idempotency_user_key" json:"user_id"`
	Key           string     `gorm:"size:128;not null;uniqueIndex:idx_idempotency_user_key" json:"key"`
	Scope         string     `gorm:"size:32;not null" json:"scope"`
	TransactionID *uuid.UUID `gorm:"type:uuid" json:"transaction_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (IdempotencyKey) TableName() string {
	return "idempotency_keys"
}

// TopUpRequest starts a mobile-money deposit into the wallet
type TopUpRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Method      PaymentMethod   `json:"method" binding:"required,oneof=mpesa airtel mtn"`
	PhoneNumber string          `json:"phone_number" binding:"required"`
}

// WithdrawRequest sends wallet funds to a mobile-money account
type WithdrawRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Method      PaymentMethod   `json:"method" binding:"required,oneof=mpesa airtel mtn"`
	PhoneNumber string          `json:"phone_number" binding:"required"`
}

// ProviderCallback is the settlement notice posted by the mobile-money provider.
type ProviderCallback struct {
	Reference         string `json:"reference" binding:"required"`
	Status            string `json:"status" binding:"required,oneof=success failed"`
	ProviderReference string `json:"provider_reference"`
}

// WalletSummary is the wallet view returned to its owner.
type WalletSummary struct {
	Balance          decimal.Decimal `json:"balance"`
	HeldInEscrow     decimal.Decimal `json:"held_in_escrow"`
	PendingDeposits  decimal.Decimal `json:"pending_deposits"`
	PendingWithdraws decimal.Decimal `json:"pending_withdrawals"`
}
