package model

import (
	"github.com/shopspring/decimal"
)

// Customer carries the fiscal identity needed for invoicing plus the
// loyalty-points and store-credit balance projections. The balances are
// running totals kept in step with the ledger tables, never recomputed
// by replaying transactions.
type Customer struct {
	BaseModel
	Name        string `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Email       string `gorm:"type:varchar(255)" json:"email" validate:"omitempty,email"`
	PhoneNumber string `gorm:"type:varchar(20)" json:"phone_number"`

	// Fiscal identity (snapshot onto invoices at emission time)
	TaxID           string `gorm:"type:varchar(20)" json:"tax_id"`
	FiscalCondition string `gorm:"type:varchar(30);default:'CONSUMIDOR_FINAL'" json:"fiscal_condition"`
	BillingAddress  string `gorm:"type:varchar(255)" json:"billing_address"`

	// WholesaleDiscountPct: pre-negotiated discount, applied without
	// supervisor authorization when the sale uses DiscountWholesale.
	WholesaleDiscountPct decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"wholesale_discount_pct"`

	PointsBalance int64           `gorm:"not null;default:0" json:"points_balance"`
	CreditBalance decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"credit_balance"`

	IsActive bool `gorm:"default:true" json:"is_active"`
}
