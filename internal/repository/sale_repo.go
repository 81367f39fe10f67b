package repository

import (
	"time"

	"go-retail-pos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SaleRepository interface {
	Create(tx *gorm.DB, sale *model.Sale) error
	FindByID(id uuid.UUID) (*model.Sale, error)
	FindForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Sale, error)
	FindAll() ([]model.Sale, error)
	FindBySession(sessionID uuid.UUID) ([]model.Sale, error)
	FindByBranchAndDate(branchID uuid.UUID, date time.Time) ([]model.Sale, error)
	Update(tx *gorm.DB, sale *model.Sale) error
	CreatePayment(tx *gorm.DB, payment *model.SalePayment) error
}

type saleRepo struct {
	db *gorm.DB
}

func NewSaleRepo(db *gorm.DB) SaleRepository {
	return &saleRepo{db}
}

func (r *saleRepo) Create(tx *gorm.DB, sale *model.Sale) error {
	return tx.Create(sale).Error
}

func (r *saleRepo) FindByID(id uuid.UUID) (*model.Sale, error) {
	var sale model.Sale
	err := r.db.
		Preload("Items").Preload("Items.Product").
		Preload("Payments").
		Preload("Branch").Preload("Session").Preload("Customer").
		First(&sale, "id = ?", id).Error
	return &sale, err
}

func (r *saleRepo) FindForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Sale, error) {
	var sale model.Sale
	err := tx.Set("gorm:query_option", "FOR UPDATE").First(&sale, "id = ?", id).Error
	return &sale, err
}

func (r *saleRepo) FindAll() ([]model.Sale, error) {
	var sales []model.Sale
	err := r.db.Preload("Items").Preload("Payments").Preload("Customer").
		Order("created_at DESC").Find(&sales).Error
	return sales, err
}

func (r *saleRepo) FindBySession(sessionID uuid.UUID) ([]model.Sale, error) {
	var sales []model.Sale
	err := r.db.Preload("Items").Preload("Payments").
		Where("session_id = ?", sessionID).
		Order("created_at ASC").Find(&sales).Error
	return sales, err
}

func (r *saleRepo) FindByBranchAndDate(branchID uuid.UUID, date time.Time) ([]model.Sale, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var sales []model.Sale
	err := r.db.Preload("Items").Preload("Payments").
		Where("branch_id = ? AND created_at >= ? AND created_at < ?", branchID, dayStart, dayEnd).
		Order("created_at ASC").Find(&sales).Error
	return sales, err
}

func (r *saleRepo) Update(tx *gorm.DB, sale *model.Sale) error {
	return tx.Save(sale).Error
}

func (r *saleRepo) CreatePayment(tx *gorm.DB, payment *model.SalePayment) error {
	return tx.Create(payment).Error
}
