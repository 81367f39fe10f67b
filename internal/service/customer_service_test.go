package service

import (
	"testing"

	"go-retail-pos/internal/apperr"
	"go-retail-pos/internal/model"
	"go-retail-pos/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestCustomerService(db *gorm.DB) CustomerService {
	return NewCustomerService(
		repository.NewCustomerRepo(db),
		repository.NewLedgerRepo(db),
		db,
	)
}

func adjustPoints(delta int64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromInt(delta), Valid: true}
}

func adjustCredit(amount int64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromInt(amount), Valid: true}
}

func TestCreateCustomer_BalancesStartAtZero(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestCustomerService(db)

	customer := &model.Customer{
		Name:          "Walk-in Regular",
		PointsBalance: 5000,
		CreditBalance: decimal.NewFromInt(9999),
	}
	require.NoError(t, svc.CreateCustomer(customer, f.manager.ID.String()))
	assert.Equal(t, int64(0), customer.PointsBalance)
	assert.True(t, customer.CreditBalance.IsZero())
}

func TestAdjustBalances_ThroughLedger(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestCustomerService(db)

	customer, err := svc.AdjustBalances(f.customer.ID, &BalanceAdjustRequest{
		Points: adjustPoints(25),
		Credit: adjustCredit(-20),
		Note:   "goodwill after complaint",
	}, f.manager.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(125), customer.PointsBalance)
	assert.True(t, customer.CreditBalance.Equal(decimal.NewFromInt(30)))

	loyalty, err := svc.GetLoyaltyHistory(f.customer.ID)
	require.NoError(t, err)
	require.Len(t, loyalty, 1)
	assert.Equal(t, model.LoyaltyAdjust, loyalty[0].Type)
	assert.Equal(t, int64(25), loyalty[0].Points)
	assert.Equal(t, "goodwill after complaint", loyalty[0].Note)

	credits, err := svc.GetCreditHistory(f.customer.ID)
	require.NoError(t, err)
	require.Len(t, credits, 1)
	assert.Equal(t, model.CreditAdjust, credits[0].Type)
	assert.True(t, credits[0].Amount.Equal(decimal.NewFromInt(-20)))
}

func TestAdjustBalances_CannotGoNegative(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestCustomerService(db)

	_, err := svc.AdjustBalances(f.customer.ID, &BalanceAdjustRequest{
		Points: adjustPoints(-150),
		Note:   "overshoot",
	}, f.manager.ID.String())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInsufficientPoints, apperr.RuleCode(err))

	_, err = svc.AdjustBalances(f.customer.ID, &BalanceAdjustRequest{
		Credit: adjustCredit(-60),
		Note:   "overshoot",
	}, f.manager.ID.String())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInsufficientCredit, apperr.RuleCode(err))

	// both rejections left the balances untouched
	var customer model.Customer
	require.NoError(t, db.First(&customer, "id = ?", f.customer.ID).Error)
	assert.Equal(t, int64(100), customer.PointsBalance)
	assert.True(t, customer.CreditBalance.Equal(decimal.NewFromInt(50)))
}

func TestAdjustBalances_NothingToAdjust(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestCustomerService(db)

	_, err := svc.AdjustBalances(f.customer.ID, &BalanceAdjustRequest{
		Note: "empty",
	}, f.manager.ID.String())
	require.Error(t, err)
	var verr *apperr.ValidationError
	assert.ErrorAs(t, err, &verr)
}
