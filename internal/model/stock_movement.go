package model

import "github.com/google/uuid"

type MovementType string

const (
	MovementSale   MovementType = "sale"
	MovementReturn MovementType = "return"
	MovementAdjust MovementType = "adjust"
)

// StockMovement is the append-only stock ledger. Quantity is signed
// (negative = out), and the before/after snapshot is written at the
// moment of the movement. Reversals never edit the original row; a
// void appends a "return" movement instead.
type StockMovement struct {
	BaseModel
	BranchID  uuid.UUID `gorm:"type:uuid;not null;index" json:"branch_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	Product   *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`

	Type        MovementType `gorm:"type:varchar(10);not null" json:"type"`
	Quantity    int          `gorm:"not null" json:"quantity"`
	StockBefore int          `gorm:"not null" json:"stock_before"`
	StockAfter  int          `gorm:"not null" json:"stock_after"`

	SaleID *uuid.UUID `gorm:"type:uuid;index" json:"sale_id,omitempty"`
	Note   string     `gorm:"type:varchar(255)" json:"note"`
}
