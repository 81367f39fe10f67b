package repository

import (
	"go-retail-pos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerRepository appends to the loyalty and credit ledgers. Entries
// are append-only; balance snapshots are written by the caller at the
// moment of the transaction.
type LedgerRepository interface {
	AppendLoyalty(tx *gorm.DB, entry *model.LoyaltyTransaction) error
	AppendCredit(tx *gorm.DB, entry *model.CreditTransaction) error
	LoyaltyHistory(customerID uuid.UUID) ([]model.LoyaltyTransaction, error)
	CreditHistory(customerID uuid.UUID) ([]model.CreditTransaction, error)
	LoyaltyBySale(saleID uuid.UUID) ([]model.LoyaltyTransaction, error)
	CreditBySale(saleID uuid.UUID) ([]model.CreditTransaction, error)
}

type ledgerRepo struct {
	db *gorm.DB
}

func NewLedgerRepo(db *gorm.DB) LedgerRepository {
	return &ledgerRepo{db}
}

func (r *ledgerRepo) AppendLoyalty(tx *gorm.DB, entry *model.LoyaltyTransaction) error {
	return tx.Create(entry).Error
}

func (r *ledgerRepo) AppendCredit(tx *gorm.DB, entry *model.CreditTransaction) error {
	return tx.Create(entry).Error
}

func (r *ledgerRepo) LoyaltyHistory(customerID uuid.UUID) ([]model.LoyaltyTransaction, error) {
	var entries []model.LoyaltyTransaction
	err := r.db.Where("customer_id = ?", customerID).Order("created_at DESC").Find(&entries).Error
	return entries, err
}

func (r *ledgerRepo) CreditHistory(customerID uuid.UUID) ([]model.CreditTransaction, error) {
	var entries []model.CreditTransaction
	err := r.db.Where("customer_id = ?", customerID).Order("created_at DESC").Find(&entries).Error
	return entries, err
}

func (r *ledgerRepo) LoyaltyBySale(saleID uuid.UUID) ([]model.LoyaltyTransaction, error) {
	var entries []model.LoyaltyTransaction
	err := r.db.Where("sale_id = ?", saleID).Order("created_at ASC").Find(&entries).Error
	return entries, err
}

func (r *ledgerRepo) CreditBySale(saleID uuid.UUID) ([]model.CreditTransaction, error) {
	var entries []model.CreditTransaction
	err := r.db.Where("sale_id = ?", saleID).Order("created_at ASC").Find(&entries).Error
	return entries, err
}
