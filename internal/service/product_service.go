package service

import (
	"fmt"

	"go-retail-pos/internal/apperr"
	"go-retail-pos/internal/model"
	"go-retail-pos/internal/repository"
	"go-retail-pos/internal/ws"
	"go-retail-pos/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockAdjustRequest is a manual correction (shrinkage, recount,
// breakage). Quantity is signed: negative removes stock.
type StockAdjustRequest struct {
	BranchID  string `json:"branch_id" validate:"uuid_required"`
	ProductID string `json:"product_id" validate:"uuid_required"`
	Quantity  int    `json:"quantity" validate:"required"`
	Note      string `json:"note" validate:"required,max=255"`
}

type ProductService interface {
	CreateProduct(req *model.Product, userID, userName, userEmail string) error
	UpdateProduct(id uuid.UUID, req *model.Product, userID, userName, userEmail string) (*model.Product, error)
	GetAllProducts() ([]model.Product, error)
	GetProductByID(id uuid.UUID) (*model.Product, error)

	// AdjustStock moves on-hand through the movement ledger; it never
	// sets the projection directly.
	AdjustStock(req *StockAdjustRequest, userID, userName, userEmail string) (*model.StockMovement, error)
	GetBranchStock(branchID uuid.UUID) ([]model.BranchStock, error)
	GetMovements(branchID, productID uuid.UUID) ([]model.StockMovement, error)
}

type productService struct {
	productRepo repository.ProductRepository
	stockRepo   repository.StockRepository
	db          *gorm.DB
	alerts      AlertService
	wsHub       *ws.Hub
}

func NewProductService(
	productRepo repository.ProductRepository,
	stockRepo repository.StockRepository,
	db *gorm.DB,
	alerts AlertService,
	hub *ws.Hub,
) ProductService {
	return &productService{
		productRepo: productRepo,
		stockRepo:   stockRepo,
		db:          db,
		alerts:      alerts,
		wsHub:       hub,
	}
}

func (s *productService) CreateProduct(req *model.Product, userID, userName, userEmail string) error {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		firstErr := errs[0]
		return apperr.Validation("field '%s' failed on tag '%s'", firstErr.FailedField, firstErr.Tag)
	}

	existing, _ := s.productRepo.FindBySKU(req.SKU)
	if existing != nil && existing.ID != uuid.Nil {
		return apperr.Validation("SKU already exists")
	}
	if req.Price.IsNegative() {
		return apperr.Validation("price cannot be negative")
	}
	if req.TaxRate.IsNegative() {
		return apperr.Validation("tax rate cannot be negative")
	}

	req.CreatedBy = userID
	req.UpdatedBy = userID
	req.CreatedByUserID = &userID
	req.UpdatedByUserID = &userID

	if err := s.productRepo.Create(req); err != nil {
		return err
	}

	if s.wsHub != nil {
		go s.wsHub.Publish("product_created", map[string]interface{}{
			"product": map[string]interface{}{
				"id":    req.ID,
				"sku":   req.SKU,
				"name":  req.Name,
				"price": req.Price,
			},
			"user": map[string]interface{}{
				"id":    userID,
				"name":  userName,
				"email": userEmail,
			},
			"message": fmt.Sprintf("%s created product '%s'", userName, req.Name),
		})
	}
	return nil
}

func (s *productService) UpdateProduct(id uuid.UUID, req *model.Product, userID, userName, userEmail string) (*model.Product, error) {
	var updated *model.Product

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing model.Product
		if err := tx.Set("gorm:query_option", "FOR UPDATE").First(&existing, "id = ?", id).Error; err != nil {
			return apperr.Validation("product not found")
		}

		if req.SKU != existing.SKU {
			if dup, _ := s.productRepo.FindBySKU(req.SKU); dup != nil && dup.ID != uuid.Nil {
				return apperr.Validation("SKU already exists")
			}
		}

		existing.Name = req.Name
		existing.SKU = req.SKU
		existing.Unit = req.Unit
		existing.Price = req.Price
		existing.TaxRate = req.TaxRate
		existing.TaxInclusive = req.TaxInclusive
		existing.LowStockThreshold = req.LowStockThreshold
		existing.IsActive = req.IsActive
		existing.UpdatedBy = userID
		existing.UpdatedByUserID = &userID

		if err := tx.Save(&existing).Error; err != nil {
			return err
		}
		updated = &existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.wsHub != nil {
		go s.wsHub.Publish("product_updated", map[string]interface{}{
			"product": map[string]interface{}{
				"id":    updated.ID,
				"sku":   updated.SKU,
				"name":  updated.Name,
				"price": updated.Price,
			},
			"user": map[string]interface{}{
				"id":    userID,
				"name":  userName,
				"email": userEmail,
			},
			"message": fmt.Sprintf("%s updated product '%s'", userName, updated.Name),
		})
	}
	return updated, nil
}

func (s *productService) AdjustStock(req *StockAdjustRequest, userID, userName, userEmail string) (*model.StockMovement, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		firstErr := errs[0]
		return nil, apperr.Validation("field '%s' failed on tag '%s'", firstErr.FailedField, firstErr.Tag)
	}
	branchID, err := uuid.Parse(req.BranchID)
	if err != nil {
		return nil, apperr.Validation("invalid branch id")
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, apperr.Validation("invalid product id")
	}

	var movement *model.StockMovement
	var product model.Product
	var newOnHand int

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&product, "id = ?", productID).Error; err != nil {
			return apperr.Validation("product not found")
		}

		stock, err := s.productRepo.GetBranchStock(tx, branchID, productID)
		if err != nil {
			return err
		}
		newOnHand = stock.OnHand + req.Quantity
		if newOnHand < 0 {
			return apperr.Rule(apperr.CodeInsufficientStock,
				"adjustment would leave %s at %d", product.Name, newOnHand)
		}

		if err := s.productRepo.UpdateOnHand(tx, stock.ID, newOnHand, userID); err != nil {
			return err
		}

		movement = &model.StockMovement{
			BranchID:    branchID,
			ProductID:   productID,
			Type:        model.MovementAdjust,
			Quantity:    req.Quantity,
			StockBefore: stock.OnHand,
			StockAfter:  newOnHand,
			Note:        req.Note,
		}
		movement.CreatedBy = userID
		return s.stockRepo.CreateMovement(tx, movement)
	})
	if err != nil {
		return nil, err
	}

	if newOnHand <= product.LowStockThreshold && s.alerts != nil {
		s.alerts.Raise(model.AlertLowStock, model.SeverityWarning, &branchID,
			"product", &productID,
			fmt.Sprintf("Low stock: %s", product.Name),
			fmt.Sprintf("%d left after adjustment", newOnHand))
	}

	if s.wsHub != nil {
		go s.wsHub.Publish("stock_adjusted", map[string]interface{}{
			"movement": map[string]interface{}{
				"id":         movement.ID,
				"product_id": productID,
				"quantity":   req.Quantity,
				"on_hand":    newOnHand,
				"note":       req.Note,
			},
			"user": map[string]interface{}{
				"id":    userID,
				"name":  userName,
				"email": userEmail,
			},
			"message": fmt.Sprintf("%s adjusted '%s' by %d", userName, product.Name, req.Quantity),
		})
	}
	return movement, nil
}

func (s *productService) GetAllProducts() ([]model.Product, error) {
	return s.productRepo.FindAll()
}

func (s *productService) GetProductByID(id uuid.UUID) (*model.Product, error) {
	return s.productRepo.FindByID(id)
}

func (s *productService) GetBranchStock(branchID uuid.UUID) ([]model.BranchStock, error) {
	return s.productRepo.ListBranchStock(branchID)
}

func (s *productService) GetMovements(branchID, productID uuid.UUID) ([]model.StockMovement, error) {
	return s.stockRepo.FindByProduct(branchID, productID)
}
