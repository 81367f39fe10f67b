package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SessionStatus string

const (
	SessionOpen   SessionStatus = "OPEN"
	SessionClosed SessionStatus = "CLOSED"
)

// Deviation classification assigned on blind closing
const (
	DeviationNormal   = "NORMAL"
	DeviationWarning  = "WARNING"
	DeviationCritical = "CRITICAL"
)

// RegisterSession is the lifecycle of one cash register opening.
// BusinessDate is the operating day the session belongs to; sales can
// only be voided while their session's business date is the current one.
//
// Closing is blind: the cashier declares counted totals per payment
// method before the system reveals the expected ones, and the deviation
// is recorded for discrepancy review.
type RegisterSession struct {
	BaseModel
	BranchID     uuid.UUID `gorm:"type:uuid;not null;index" json:"branch_id" validate:"uuid_required"`
	Branch       *Branch   `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
	RegisterCode string    `gorm:"type:varchar(20);not null;index" json:"register_code" validate:"required"`

	OpenedByID uuid.UUID `gorm:"type:uuid;not null" json:"opened_by_id"`
	OpenedBy   *User     `gorm:"foreignKey:OpenedByID" json:"opened_by,omitempty"`
	ClosedByID *uuid.UUID `gorm:"type:uuid" json:"closed_by_id,omitempty"`

	Status       SessionStatus `gorm:"type:varchar(10);not null;default:'OPEN'" json:"status"`
	BusinessDate time.Time     `gorm:"type:date;not null;index" json:"business_date"`

	OpeningFloat decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"opening_float"`

	// Declared totals (blind closing input)
	DeclaredCash     *decimal.Decimal `gorm:"type:decimal(12,2)" json:"declared_cash,omitempty"`
	DeclaredCard     *decimal.Decimal `gorm:"type:decimal(12,2)" json:"declared_card,omitempty"`
	DeclaredQR       *decimal.Decimal `gorm:"type:decimal(12,2)" json:"declared_qr,omitempty"`
	DeclaredTransfer *decimal.Decimal `gorm:"type:decimal(12,2)" json:"declared_transfer,omitempty"`

	// Expected totals computed from the payment ledger on close
	ExpectedCash     *decimal.Decimal `gorm:"type:decimal(12,2)" json:"expected_cash,omitempty"`
	ExpectedCard     *decimal.Decimal `gorm:"type:decimal(12,2)" json:"expected_card,omitempty"`
	ExpectedQR       *decimal.Decimal `gorm:"type:decimal(12,2)" json:"expected_qr,omitempty"`
	ExpectedTransfer *decimal.Decimal `gorm:"type:decimal(12,2)" json:"expected_transfer,omitempty"`

	Deviation               *decimal.Decimal `gorm:"type:decimal(12,2)" json:"deviation,omitempty"`
	DeviationClassification *string          `gorm:"type:varchar(20)" json:"deviation_classification,omitempty"`

	OpenedAt time.Time  `json:"opened_at"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
}

func (RegisterSession) TableName() string {
	return "register_sessions"
}
