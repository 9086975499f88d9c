package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "open"
	DisputeStatusResolved DisputeStatus = "resolved"
	DisputeStatusRejected DisputeStatus = "rejected"
)

// DisputeOutcome decides where escrowed funds go when support closes a dispute.
type DisputeOutcome string

const (
	OutcomeRelease DisputeOutcome = "release"
	OutcomeRefund  DisputeOutcome = "refund"
	OutcomeReject  DisputeOutcome = "reject"
)

// Dispute is a disagreement raised on an in-progress deal
type Dispute struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	DealID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"deal_id"`
	Deal        *Deal           `gorm:"foreignKey:DealID" json:"deal,omitempty"`
	RaisedBy    uint            `gorm:"not null;index" json:"raised_by"`
	Reason      string          `gorm:"size:100;not null" json:"reason"`
	Description string          `gorm:"type:text" json:"description"`
	Status      DisputeStatus   `gorm:"size:20;not null;index" json:"status"`
	Outcome     *DisputeOutcome `gorm:"size:20" json:"outcome,omitempty"`
	Resolution  string          `gorm:"type:text" json:"resolution,omitempty"`
	ResolvedBy  *uint           `json:"resolved_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	ResolvedAt  *time.Time      `json:"resolved_at,omitempty"`
}

func (Dispute) TableName() string {
	return "disputes"
}

func (d *Dispute) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// RaiseDisputeRequest is submitted by a deal party
type RaiseDisputeRequest struct {
	Reason      string `json:"reason" binding:"required,max=100"`
	Description string `json:"description" binding:"required"`
}

// ResolveDisputeRequest is submitted by support staff
type ResolveDisputeRequest struct {
	Outcome    DisputeOutcome `json:"outcome" binding:"required,oneof=release refund reject"`
	Resolution string         `json:"resolution" binding:"required"`
}
