package service

import (
	"testing"
	"time"

	"go-retail-pos/internal/apperr"
	"go-retail-pos/internal/model"
	"go-retail-pos/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestProductService(db *gorm.DB) ProductService {
	return NewProductService(
		repository.NewProductRepo(db),
		repository.NewStockRepo(db),
		db,
		NewAlertService(repository.NewAlertRepo(db), nil),
		nil,
	)
}

func TestCreateProduct_DuplicateSKU(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestProductService(db)

	err := svc.CreateProduct(&model.Product{
		SKU:   "YM-500",
		Name:  "Another Yerba",
		Price: decimal.NewFromInt(100),
	}, f.manager.ID.String(), f.manager.FullName, f.manager.Email)
	require.Error(t, err)
	var verr *apperr.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestAdjustStock_PositiveAndNegative(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestProductService(db)

	movement, err := svc.AdjustStock(&StockAdjustRequest{
		BranchID:  f.branch.ID.String(),
		ProductID: f.product.ID.String(),
		Quantity:  5,
		Note:      "recount after delivery",
	}, f.manager.ID.String(), f.manager.FullName, f.manager.Email)
	require.NoError(t, err)
	assert.Equal(t, model.MovementAdjust, movement.Type)
	assert.Equal(t, 10, movement.StockBefore)
	assert.Equal(t, 15, movement.StockAfter)

	movement, err = svc.AdjustStock(&StockAdjustRequest{
		BranchID:  f.branch.ID.String(),
		ProductID: f.product.ID.String(),
		Quantity:  -3,
		Note:      "breakage",
	}, f.manager.ID.String(), f.manager.FullName, f.manager.Email)
	require.NoError(t, err)
	assert.Equal(t, 12, movement.StockAfter)

	var stock model.BranchStock
	require.NoError(t, db.First(&stock, "id = ?", f.stock.ID).Error)
	assert.Equal(t, 12, stock.OnHand)
}

func TestAdjustStock_CannotGoNegative(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestProductService(db)

	_, err := svc.AdjustStock(&StockAdjustRequest{
		BranchID:  f.branch.ID.String(),
		ProductID: f.product.ID.String(),
		Quantity:  -11,
		Note:      "overshoot",
	}, f.manager.ID.String(), f.manager.FullName, f.manager.Email)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInsufficientStock, apperr.RuleCode(err))

	var stock model.BranchStock
	require.NoError(t, db.First(&stock, "id = ?", f.stock.ID).Error)
	assert.Equal(t, 10, stock.OnHand)
}

func TestAdjustStock_NoteRequired(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestProductService(db)

	_, err := svc.AdjustStock(&StockAdjustRequest{
		BranchID:  f.branch.ID.String(),
		ProductID: f.product.ID.String(),
		Quantity:  1,
	}, f.manager.ID.String(), f.manager.FullName, f.manager.Email)
	require.Error(t, err)
	var verr *apperr.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestAdjustStock_LowStockAlert(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestProductService(db)

	_, err := svc.AdjustStock(&StockAdjustRequest{
		BranchID:  f.branch.ID.String(),
		ProductID: f.product.ID.String(),
		Quantity:  -9,
		Note:      "shrinkage",
	}, f.manager.ID.String(), f.manager.FullName, f.manager.Email)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		var count int64
		return db.Model(&model.Alert{}).
			Where("type = ?", model.AlertLowStock).
			Count(&count).Error == nil && count == 1
	}, 2*time.Second, 20*time.Millisecond)
}
