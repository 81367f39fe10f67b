package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	BaseModel
	SKU  string `gorm:"type:varchar(50);uniqueIndex;not null" json:"sku" validate:"required"`
	Name string `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Unit string `gorm:"type:varchar(20)" json:"unit"`

	Price decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	// TaxRate as a fraction (0.21 for 21% IVA)
	TaxRate decimal.Decimal `gorm:"type:decimal(5,4);not null;default:0" json:"tax_rate"`
	// TaxInclusive: Price already contains the tax component
	TaxInclusive bool `gorm:"default:true" json:"tax_inclusive"`

	LowStockThreshold int  `gorm:"default:5" json:"low_stock_threshold"`
	IsActive          bool `gorm:"default:true" json:"is_active"`

	CreatedByUserID *string `gorm:"type:varchar(255)" json:"created_by_user_id,omitempty"`
	UpdatedByUserID *string `gorm:"type:varchar(255)" json:"updated_by_user_id,omitempty"`
	CreatedByUser   *User   `gorm:"foreignKey:CreatedByUserID;references:ID" json:"created_by_user,omitempty"`
	UpdatedByUser   *User   `gorm:"foreignKey:UpdatedByUserID;references:ID" json:"updated_by_user,omitempty"`
}

// BranchStock is the current on-hand projection per (branch, product).
// It is maintained as a running total alongside every StockMovement,
// never rebuilt by replaying the movement log at read time.
type BranchStock struct {
	BaseModel
	BranchID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_branch_product" json:"branch_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_branch_product" json:"product_id"`
	OnHand    int       `gorm:"not null;default:0" json:"on_hand"`

	Branch  *Branch  `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}
