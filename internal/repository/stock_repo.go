package repository

import (
	"go-retail-pos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StockRepository interface {
	CreateMovement(tx *gorm.DB, movement *model.StockMovement) error
	FindBySale(saleID uuid.UUID) ([]model.StockMovement, error)
	FindByProduct(branchID, productID uuid.UUID) ([]model.StockMovement, error)
}

type stockRepo struct {
	db *gorm.DB
}

func NewStockRepo(db *gorm.DB) StockRepository {
	return &stockRepo{db}
}

func (r *stockRepo) CreateMovement(tx *gorm.DB, movement *model.StockMovement) error {
	return tx.Create(movement).Error
}

func (r *stockRepo) FindBySale(saleID uuid.UUID) ([]model.StockMovement, error) {
	var movements []model.StockMovement
	err := r.db.Where("sale_id = ?", saleID).Order("created_at ASC").Find(&movements).Error
	return movements, err
}

func (r *stockRepo) FindByProduct(branchID, productID uuid.UUID) ([]model.StockMovement, error) {
	var movements []model.StockMovement
	err := r.db.Where("branch_id = ? AND product_id = ?", branchID, productID).
		Order("created_at DESC").Find(&movements).Error
	return movements, err
}
