package repository

import (
	"errors"

	"go-retail-pos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProductRepository interface {
	Create(product *model.Product) error
	FindAll() ([]model.Product, error)
	FindByID(id uuid.UUID) (*model.Product, error)
	FindBySKU(sku string) (*model.Product, error)
	Update(product *model.Product) error

	// Branch stock projection (tx-aware so callers can hold the row
	// inside their own transaction)
	GetBranchStock(tx *gorm.DB, branchID, productID uuid.UUID) (*model.BranchStock, error)
	UpdateOnHand(tx *gorm.DB, stockID uuid.UUID, onHand int, updatedBy string) error
	ListBranchStock(branchID uuid.UUID) ([]model.BranchStock, error)
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func (r *productRepo) Create(product *model.Product) error {
	return r.db.Create(product).Error
}

func (r *productRepo) FindAll() ([]model.Product, error) {
	var products []model.Product
	err := r.db.Preload("CreatedByUser").Preload("UpdatedByUser").Find(&products).Error
	return products, err
}

func (r *productRepo) FindByID(id uuid.UUID) (*model.Product, error) {
	var product model.Product
	err := r.db.First(&product, "id = ?", id).Error
	return &product, err
}

func (r *productRepo) FindBySKU(sku string) (*model.Product, error) {
	var product model.Product
	err := r.db.First(&product, "sku = ?", sku).Error
	return &product, err
}

func (r *productRepo) Update(product *model.Product) error {
	return r.db.Save(product).Error
}

// GetBranchStock locks and returns the (branch, product) stock row,
// creating it lazily with zero on-hand when missing.
func (r *productRepo) GetBranchStock(tx *gorm.DB, branchID, productID uuid.UUID) (*model.BranchStock, error) {
	var stock model.BranchStock
	err := tx.Set("gorm:query_option", "FOR UPDATE").
		First(&stock, "branch_id = ? AND product_id = ?", branchID, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stock = model.BranchStock{BranchID: branchID, ProductID: productID, OnHand: 0}
		if err := tx.Create(&stock).Error; err != nil {
			return nil, err
		}
		return &stock, nil
	}
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

func (r *productRepo) UpdateOnHand(tx *gorm.DB, stockID uuid.UUID, onHand int, updatedBy string) error {
	return tx.Model(&model.BranchStock{}).
		Where("id = ?", stockID).
		Updates(map[string]interface{}{
			"on_hand":    onHand,
			"updated_by": updatedBy,
		}).Error
}

func (r *productRepo) ListBranchStock(branchID uuid.UUID) ([]model.BranchStock, error) {
	var stocks []model.BranchStock
	err := r.db.Preload("Product").Where("branch_id = ?", branchID).Find(&stocks).Error
	return stocks, err
}
