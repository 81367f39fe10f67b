package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SaleStatus string

const (
	SaleCompleted SaleStatus = "COMPLETED"
	SaleVoided    SaleStatus = "VOIDED"
)

type DiscountType string

const (
	DiscountNone      DiscountType = "NONE"
	DiscountPercent   DiscountType = "PERCENT"
	DiscountFixed     DiscountType = "FIXED"
	DiscountWholesale DiscountType = "WHOLESALE"
)

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentCard     PaymentMethod = "CARD"
	PaymentTransfer PaymentMethod = "TRANSFER"
	PaymentQR       PaymentMethod = "QR"
)

// Sale is the committed record of one checkout. The pricing invariant
// holds at all times:
//
//	TotalAmount = Subtotal - DiscountAmount - PointsRedemptionValue - CreditUsed
//
// A sale is never deleted; voiding flips Status to VOIDED and appends
// compensating ledger entries elsewhere.
type Sale struct {
	BaseModel
	Number string `gorm:"type:varchar(30);uniqueIndex;not null" json:"number"`

	BranchID     uuid.UUID        `gorm:"type:uuid;not null;index" json:"branch_id"`
	Branch       *Branch          `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
	RegisterCode string           `gorm:"type:varchar(20)" json:"register_code"`
	SessionID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"session_id"`
	Session      *RegisterSession `gorm:"foreignKey:SessionID" json:"session,omitempty"`

	CustomerID *uuid.UUID `gorm:"type:uuid;index" json:"customer_id,omitempty"`
	Customer   *Customer  `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	SellerID   *uuid.UUID `gorm:"type:uuid" json:"seller_id,omitempty"`
	Seller     *User      `gorm:"foreignKey:SellerID" json:"seller,omitempty"`

	Subtotal decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`

	DiscountType         DiscountType    `gorm:"type:varchar(10);not null;default:'NONE'" json:"discount_type"`
	DiscountPercent      decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"discount_percent"`
	DiscountAmount       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount_amount"`
	DiscountReason       string          `gorm:"type:varchar(255)" json:"discount_reason"`
	DiscountAppliedByID  *uuid.UUID      `gorm:"type:uuid" json:"discount_applied_by_id,omitempty"`
	DiscountApprovedByID *uuid.UUID      `gorm:"type:uuid" json:"discount_approved_by_id,omitempty"`

	TaxAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"tax_amount"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`

	PointsEarned          int64           `gorm:"not null;default:0" json:"points_earned"`
	PointsRedeemed        int64           `gorm:"not null;default:0" json:"points_redeemed"`
	PointsRedemptionValue decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"points_redemption_value"`
	CreditUsed            decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"credit_used"`
	ChangeCredited        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"change_credited"`

	Status SaleStatus `gorm:"type:varchar(10);not null;default:'COMPLETED'" json:"status"`

	VoidReason       string     `gorm:"type:varchar(255)" json:"void_reason,omitempty"`
	VoidedByID       *uuid.UUID `gorm:"type:uuid" json:"voided_by_id,omitempty"`
	VoidApprovedByID *uuid.UUID `gorm:"type:uuid" json:"void_approved_by_id,omitempty"`
	VoidedAt         *time.Time `json:"voided_at,omitempty"`

	Items    []SaleItem    `json:"items,omitempty"`
	Payments []SalePayment `json:"payments,omitempty"`
}

// SaleItem is immutable once created. Voiding a sale never deletes its
// items; stock is restored through a separate return movement.
type SaleItem struct {
	BaseModel
	SaleID    uuid.UUID `gorm:"type:uuid;not null;index" json:"sale_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null" json:"product_id"`
	Product   *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`

	Description  string          `gorm:"type:varchar(255)" json:"description"`
	Quantity     int             `gorm:"not null" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	LineDiscount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"line_discount"`
	TaxRate      decimal.Decimal `gorm:"type:decimal(5,4);not null;default:0" json:"tax_rate"`
	TaxAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"tax_amount"`
	LineTotal    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"line_total"`
}

// SalePayment rows are append-only. Reversal on void creates a new row
// with a negated amount and a VOID- prefixed reference; originals are
// never mutated or deleted.
type SalePayment struct {
	BaseModel
	SaleID uuid.UUID `gorm:"type:uuid;not null;index" json:"sale_id"`

	Method    PaymentMethod   `gorm:"type:varchar(10);not null" json:"method"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Reference string          `gorm:"type:varchar(100)" json:"reference"`
	AuthCode  string          `gorm:"type:varchar(50)" json:"auth_code"`
	CardBrand string          `gorm:"type:varchar(30)" json:"card_brand"`
	CardLast4 string          `gorm:"type:varchar(4)" json:"card_last4"`
}
