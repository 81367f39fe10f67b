package service

import (
	"fmt"
	"testing"
	"time"

	"go-retail-pos/internal/apperr"
	"go-retail-pos/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSale_TaxInclusivePricing(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestSaleService(db, nil)

	sale, err := svc.CreateSale(simpleSaleRequest(f, 2, cashPayment(242)), f.cashier.ID.String())
	require.NoError(t, err)

	// 121 gross per unit at 21% inclusive: 242 gross, 200 net, 42 tax
	assert.True(t, sale.Subtotal.Equal(decimal.NewFromInt(242)), "subtotal %s", sale.Subtotal)
	assert.True(t, sale.TaxAmount.Equal(decimal.NewFromInt(42)), "tax %s", sale.TaxAmount)
	assert.True(t, sale.TotalAmount.Equal(decimal.NewFromInt(242)), "total %s", sale.TotalAmount)
	assert.Equal(t, model.SaleCompleted, sale.Status)
	assert.Equal(t, int64(0), sale.PointsEarned, "anonymous sales earn no points")

	wantNumber := fmt.Sprintf("%s%s%06d", businessDateOf(time.Now()).Format("20060102"), f.branch.Code, 1)
	assert.Equal(t, wantNumber, sale.Number)

	var stock model.BranchStock
	require.NoError(t, db.First(&stock, "id = ?", f.stock.ID).Error)
	assert.Equal(t, 8, stock.OnHand)

	var movements []model.StockMovement
	require.NoError(t, db.Where("sale_id = ?", sale.ID).Find(&movements).Error)
	require.Len(t, movements, 1)
	assert.Equal(t, model.MovementSale, movements[0].Type)
	assert.Equal(t, -2, movements[0].Quantity)
	assert.Equal(t, 10, movements[0].StockBefore)
	assert.Equal(t, 8, movements[0].StockAfter)
}

func TestCreateSale_TaxExclusivePricing(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestSaleService(db, nil)

	exclusive := &model.Product{
		SKU:          "SRV-01",
		Name:         "Delivery Fee",
		Price:        decimal.NewFromInt(100),
		TaxRate:      decimal.NewFromFloat(0.21),
		TaxInclusive: false,
		IsActive:     true,
	}
	require.NoError(t, db.Create(exclusive).Error)
	require.NoError(t, db.Create(&model.BranchStock{
		BranchID: f.branch.ID, ProductID: exclusive.ID, OnHand: 5,
	}).Error)

	req := &CreateSaleRequest{
		SessionID: f.session.ID.String(),
		Items:     []SaleItemRequest{{ProductID: exclusive.ID.String(), Quantity: 1}},
		Payments:  []SalePaymentRequest{cashPayment(121)},
	}
	sale, err := svc.CreateSale(req, f.cashier.ID.String())
	require.NoError(t, err)

	// 100 net plus 21 tax on top
	assert.True(t, sale.Subtotal.Equal(decimal.NewFromInt(121)))
	assert.True(t, sale.TaxAmount.Equal(decimal.NewFromInt(21)))
	assert.True(t, sale.TotalAmount.Equal(decimal.NewFromInt(121)))
}

func TestCreateSale_SequenceAdvancesPerSale(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestSaleService(db, nil)

	first, err := svc.CreateSale(simpleSaleRequest(f, 1, cashPayment(121)), f.cashier.ID.String())
	require.NoError(t, err)
	second, err := svc.CreateSale(simpleSaleRequest(f, 1, cashPayment(121)), f.cashier.ID.String())
	require.NoError(t, err)

	prefix := businessDateOf(time.Now()).Format("20060102") + f.branch.Code
	assert.Equal(t, prefix+"000001", first.Number)
	assert.Equal(t, prefix+"000002", second.Number)
}

func TestCreateSale_CustomerLedgersAndTotalInvariant(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestSaleService(db, nil)

	req := simpleSaleRequest(f, 2, cashPayment(172))
	req.CustomerID = strPtr(f.customer.ID.String())
	req.PointsRedeemed = 40
	req.CreditUsed = decimal.NewFromInt(30)

	sale, err := svc.CreateSale(req, f.cashier.ID.String())
	require.NoError(t, err)

	// total = subtotal - discount - points value - credit used
	want := sale.Subtotal.Sub(sale.DiscountAmount).Sub(sale.PointsRedemptionValue).Sub(sale.CreditUsed)
	assert.True(t, sale.TotalAmount.Equal(want), "total %s want %s", sale.TotalAmount, want)
	assert.True(t, sale.TotalAmount.Equal(decimal.NewFromInt(172)))

	// one point per full 100 spent, on the final total
	assert.Equal(t, int64(1), sale.PointsEarned)

	var customer model.Customer
	require.NoError(t, db.First(&customer, "id = ?", f.customer.ID).Error)
	assert.Equal(t, int64(61), customer.PointsBalance, "100 - 40 redeemed + 1 earned")
	assert.True(t, customer.CreditBalance.Equal(decimal.NewFromInt(20)), "50 - 30 used, got %s", customer.CreditBalance)

	var loyalty []model.LoyaltyTransaction
	require.NoError(t, db.Where("customer_id = ?", customer.ID).Order("created_at").Find(&loyalty).Error)
	require.Len(t, loyalty, 2)
	assert.Equal(t, model.LoyaltyRedeem, loyalty[0].Type)
	assert.Equal(t, int64(-40), loyalty[0].Points)
	assert.Equal(t, model.LoyaltyEarn, loyalty[1].Type)
	assert.Equal(t, int64(1), loyalty[1].Points)

	var credits []model.CreditTransaction
	require.NoError(t, db.Where("customer_id = ?", customer.ID).Find(&credits).Error)
	require.Len(t, credits, 1)
	assert.Equal(t, model.CreditDebit, credits[0].Type)
	assert.True(t, credits[0].Amount.Equal(decimal.NewFromInt(-30)))
}

func TestCreateSale_ChangeAsCredit(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestSaleService(db, nil)

	req := simpleSaleRequest(f, 2, cashPayment(300))
	req.CustomerID = strPtr(f.customer.ID.String())
	req.ChangeAsCredit = true

	sale, err := svc.CreateSale(req, f.cashier.ID.String())
	require.NoError(t, err)
	assert.True(t, sale.ChangeCredited.Equal(decimal.NewFromInt(58)), "300 paid against 242")

	var customer model.Customer
	require.NoError(t, db.First(&customer, "id = ?", f.customer.ID).Error)
	assert.True(t, customer.CreditBalance.Equal(decimal.NewFromInt(108)), "50 + 58 change, got %s", customer.CreditBalance)

	var credits []model.CreditTransaction
	require.NoError(t, db.Where("customer_id = ? AND type = ?", customer.ID, model.CreditCredit).Find(&credits).Error)
	require.Len(t, credits, 1)
	assert.True(t, credits[0].Amount.Equal(decimal.NewFromInt(58)))
}

func TestCreateSale_InsufficientPaymentPersistsNothing(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestSaleService(db, nil)

	_, err := svc.CreateSale(simpleSaleRequest(f, 2, cashPayment(200)), f.cashier.ID.String())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInsufficientPayment, apperr.RuleCode(err))

	assertNothingPersisted(t, f)
}

func TestCreateSale_InsufficientStockPersistsNothing(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestSaleService(db, nil)

	_, err := svc.CreateSale(simpleSaleRequest(f, 11, cashPayment(2000)), f.cashier.ID.String())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInsufficientStock, apperr.RuleCode(err))

	assertNothingPersisted(t, f)
}

func TestCreateSale_InsufficientPointsRollsBackStock(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestSaleService(db, nil)

	req := simpleSaleRequest(f, 2, cashPayment(100))
	req.CustomerID = strPtr(f.customer.ID.String())
	req.PointsRedeemed = 200

	_, err := svc.CreateSale(req, f.cashier.ID.String())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInsufficientPoints, apperr.RuleCode(err))

	assertNothingPersisted(t, f)

	var customer model.Customer
	require.NoError(t, db.First(&customer, "id = ?", f.customer.ID).Error)
	assert.Equal(t, int64(100), customer.PointsBalance)
}

func TestCreateSale_PointsWithoutCustomerRejected(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestSaleService(db, nil)

	req := simpleSaleRequest(f, 1, cashPayment(121))
	req.PointsRedeemed = 10

	_, err := svc.CreateSale(req, f.cashier.ID.String())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeCustomerRequired, apperr.RuleCode(err))
}

func TestCreateSale_CardRequiresAuthCode(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestSaleService(db, nil)

	req := simpleSaleRequest(f, 1, SalePaymentRequest{
		Method: model.PaymentCard,
		Amount: decimal.NewFromInt(121),
	})
	_, err := svc.CreateSale(req, f.cashier.ID.String())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidPayment, apperr.RuleCode(err))

	req.Payments[0].AuthCode = "AUTH123"
	_, err = svc.CreateSale(req, f.cashier.ID.String())
	require.NoError(t, err)
}

func TestCreateSale_ClosedSessionRejected(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestSaleService(db, nil)

	require.NoError(t, db.Model(f.session).Update("status", model.SessionClosed).Error)

	_, err := svc.CreateSale(simpleSaleRequest(f, 1, cashPayment(121)), f.cashier.ID.String())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeSessionNotOpen, apperr.RuleCode(err))
}

func TestCreateSale_DiscountAppliedWithinLimit(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestSaleService(db, nil)

	req := simpleSaleRequest(f, 2, cashPayment(218))
	req.Discount = &DiscountRequest{
		Type:    model.DiscountPercent,
		Percent: decimal.NewFromInt(10),
		Reason:  "damaged packaging",
	}

	sale, err := svc.CreateSale(req, f.manager.ID.String())
	require.NoError(t, err)
	assert.True(t, sale.DiscountAmount.Equal(decimal.NewFromFloat(24.2)), "10%% of 242, got %s", sale.DiscountAmount)
	assert.True(t, sale.TotalAmount.Equal(decimal.NewFromFloat(217.8)))
	require.NotNil(t, sale.DiscountAppliedByID)
	assert.Equal(t, f.manager.ID, *sale.DiscountAppliedByID)
	assert.Nil(t, sale.DiscountApprovedByID)
}

func TestCreateSale_LowStockRaisesAlert(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestSaleService(db, nil)

	// threshold is 2, so dropping from 10 to 2 crosses it
	_, err := svc.CreateSale(simpleSaleRequest(f, 8, cashPayment(1000)), f.cashier.ID.String())
	require.NoError(t, err)

	// Raise is fire-and-forget, so the row lands asynchronously.
	var alerts []model.Alert
	require.Eventually(t, func() bool {
		alerts = nil
		return db.Where("type = ?", model.AlertLowStock).Find(&alerts).Error == nil && len(alerts) == 1
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, model.SeverityWarning, alerts[0].Severity)
}

func assertNothingPersisted(t *testing.T, f *fixtures) {
	t.Helper()
	var saleCount int64
	require.NoError(t, f.db.Model(&model.Sale{}).Count(&saleCount).Error)
	assert.Zero(t, saleCount)

	var stock model.BranchStock
	require.NoError(t, f.db.First(&stock, "id = ?", f.stock.ID).Error)
	assert.Equal(t, 10, stock.OnHand)

	var movementCount int64
	require.NoError(t, f.db.Model(&model.StockMovement{}).Count(&movementCount).Error)
	assert.Zero(t, movementCount)
}
