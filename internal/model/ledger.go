package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LoyaltyTxType string

const (
	LoyaltyEarn   LoyaltyTxType = "EARN"
	LoyaltyRedeem LoyaltyTxType = "REDEEM"
	LoyaltyAdjust LoyaltyTxType = "ADJUST"
)

type CreditTxType string

const (
	CreditCredit CreditTxType = "CREDIT"
	CreditDebit  CreditTxType = "DEBIT"
	CreditAdjust CreditTxType = "ADJUST"
)

// LoyaltyTransaction is an append-only ledger entry. Points is signed;
// BalanceAfter is snapshotted at write time so historical balances are
// never recomputed. Void compensation appends new ADJUST entries, it
// never edits or deletes originals.
type LoyaltyTransaction struct {
	BaseModel
	CustomerID uuid.UUID `gorm:"type:uuid;not null;index" json:"customer_id"`

	Type         LoyaltyTxType `gorm:"type:varchar(10);not null" json:"type"`
	Points       int64         `gorm:"not null" json:"points"`
	BalanceAfter int64         `gorm:"not null" json:"balance_after"`

	SaleID *uuid.UUID `gorm:"type:uuid;index" json:"sale_id,omitempty"`
	Note   string     `gorm:"type:varchar(255)" json:"note"`
}

// CreditTransaction mirrors LoyaltyTransaction for store credit.
type CreditTransaction struct {
	BaseModel
	CustomerID uuid.UUID `gorm:"type:uuid;not null;index" json:"customer_id"`

	Type         CreditTxType    `gorm:"type:varchar(10);not null" json:"type"`
	Amount       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	BalanceAfter decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance_after"`

	SaleID *uuid.UUID `gorm:"type:uuid;index" json:"sale_id,omitempty"`
	Note   string     `gorm:"type:varchar(255)" json:"note"`
}
