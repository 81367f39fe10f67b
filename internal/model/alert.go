package model

import (
	"time"

	"github.com/google/uuid"
)

// Alert severities
const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// Alert types raised by the core
const (
	AlertLowStock         = "LOW_STOCK"
	AlertInvoiceFailed    = "INVOICE_FAILED"
	AlertCreditNoteFailed = "CREDIT_NOTE_FAILED"
	AlertSessionDeviation = "SESSION_DEVIATION"
)

// Alert is a persisted staff notification. Raising one is always
// fire-and-forget; it can never block or fail a sale or void.
type Alert struct {
	BaseModel
	Type     string `gorm:"type:varchar(30);not null;index" json:"type"`
	Severity string `gorm:"type:varchar(10);not null" json:"severity"`

	BranchID      *uuid.UUID `gorm:"type:uuid;index" json:"branch_id,omitempty"`
	ReferenceType string     `gorm:"type:varchar(30)" json:"reference_type"`
	ReferenceID   *uuid.UUID `gorm:"type:uuid" json:"reference_id,omitempty"`

	Title   string `gorm:"type:varchar(255);not null" json:"title"`
	Message string `gorm:"type:text" json:"message"`

	ReadAt *time.Time `json:"read_at,omitempty"`
}
