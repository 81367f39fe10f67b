package service

import (
	"testing"

	"go-retail-pos/internal/apperr"
	"go-retail-pos/internal/model"
	"go-retail-pos/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// discountActor is a user who may give discounts but only up to 5%.
func discountActor(t *testing.T, f *fixtures) *model.User {
	t.Helper()
	actor := &model.User{
		Email:            "senior@test.local",
		FullName:         "Senior Cashier",
		IsActive:         true,
		DiscountLimitPct: decimal.NewFromInt(5),
		Privileges:       []model.Privilege{f.privSaleCreate, f.privSaleDiscount},
	}
	require.NoError(t, actor.SetPassword("secret"))
	require.NoError(t, f.db.Create(actor).Error)
	return actor
}

func TestDiscountResolve_NoneAndNil(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	policy := NewDiscountPolicy(repository.NewUserRepo(db))
	subtotal := decimal.NewFromInt(1000)

	res, err := policy.Resolve(nil, f.cashier, nil, subtotal)
	require.NoError(t, err)
	assert.Equal(t, model.DiscountNone, res.Type)
	assert.True(t, res.Amount.IsZero())

	res, err = policy.Resolve(&DiscountRequest{Type: model.DiscountNone}, f.cashier, nil, subtotal)
	require.NoError(t, err)
	assert.True(t, res.Amount.IsZero())
}

func TestDiscountResolve_WithoutPrivilege(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	policy := NewDiscountPolicy(repository.NewUserRepo(db))

	_, err := policy.Resolve(&DiscountRequest{
		Type:    model.DiscountPercent,
		Percent: decimal.NewFromInt(3),
		Reason:  "loyal customer",
	}, f.cashier, nil, decimal.NewFromInt(1000))
	require.Error(t, err)
	assert.Equal(t, apperr.CodeDiscountNotAllowed, apperr.RuleCode(err))
}

func TestDiscountResolve_ReasonRequired(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	policy := NewDiscountPolicy(repository.NewUserRepo(db))
	actor := discountActor(t, f)

	_, err := policy.Resolve(&DiscountRequest{
		Type:    model.DiscountPercent,
		Percent: decimal.NewFromInt(3),
	}, actor, nil, decimal.NewFromInt(1000))
	require.Error(t, err)
	assert.Equal(t, apperr.CodeDiscountReasonRequired, apperr.RuleCode(err))
}

func TestDiscountResolve_WithinOwnLimit(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	policy := NewDiscountPolicy(repository.NewUserRepo(db))
	actor := discountActor(t, f)

	res, err := policy.Resolve(&DiscountRequest{
		Type:    model.DiscountPercent,
		Percent: decimal.NewFromInt(5),
		Reason:  "price match",
	}, actor, nil, decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(50)))
	require.NotNil(t, res.AppliedByID)
	assert.Equal(t, actor.ID, *res.AppliedByID)
	assert.Nil(t, res.ApprovedByID)
}

func TestDiscountResolve_AboveLimitNeedsPIN(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	policy := NewDiscountPolicy(repository.NewUserRepo(db))
	actor := discountActor(t, f)
	subtotal := decimal.NewFromInt(1000)

	req := &DiscountRequest{
		Type:    model.DiscountPercent,
		Percent: decimal.NewFromInt(15),
		Reason:  "bulk purchase",
	}

	// no PIN
	_, err := policy.Resolve(req, actor, nil, subtotal)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeDiscountLimitExceeded, apperr.RuleCode(err))

	// wrong PIN
	req.SupervisorPIN = "9999"
	_, err = policy.Resolve(req, actor, nil, subtotal)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeDiscountPINRejected, apperr.RuleCode(err))

	// the manager's PIN approves and is recorded
	req.SupervisorPIN = "4321"
	res, err := policy.Resolve(req, actor, nil, subtotal)
	require.NoError(t, err)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(150)))
	require.NotNil(t, res.ApprovedByID)
	assert.Equal(t, f.manager.ID, *res.ApprovedByID)
	require.NotNil(t, res.AppliedByID)
	assert.Equal(t, actor.ID, *res.AppliedByID)
}

func TestDiscountResolve_SupervisorLimitStillApplies(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	policy := NewDiscountPolicy(repository.NewUserRepo(db))
	actor := discountActor(t, f)

	// beyond even the manager's 50% limit
	_, err := policy.Resolve(&DiscountRequest{
		Type:          model.DiscountPercent,
		Percent:       decimal.NewFromInt(60),
		Reason:        "liquidation",
		SupervisorPIN: "4321",
	}, actor, nil, decimal.NewFromInt(1000))
	require.Error(t, err)
	assert.Equal(t, apperr.CodeDiscountPINRejected, apperr.RuleCode(err))
}

func TestDiscountResolve_FixedGatedByPercentEquivalent(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	policy := NewDiscountPolicy(repository.NewUserRepo(db))
	actor := discountActor(t, f)
	subtotal := decimal.NewFromInt(1000)

	// 40 of 1000 is 4%, inside the 5% limit
	res, err := policy.Resolve(&DiscountRequest{
		Type:   model.DiscountFixed,
		Amount: decimal.NewFromInt(40),
		Reason: "rounding",
	}, actor, nil, subtotal)
	require.NoError(t, err)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(40)))
	assert.True(t, res.Percent.Equal(decimal.NewFromInt(4)))

	// 100 of 1000 is 10%, above the limit
	_, err = policy.Resolve(&DiscountRequest{
		Type:   model.DiscountFixed,
		Amount: decimal.NewFromInt(100),
		Reason: "too much",
	}, actor, nil, subtotal)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeDiscountLimitExceeded, apperr.RuleCode(err))

	// a fixed discount can never exceed the subtotal
	_, err = policy.Resolve(&DiscountRequest{
		Type:   model.DiscountFixed,
		Amount: decimal.NewFromInt(1200),
		Reason: "negative sale",
	}, actor, nil, subtotal)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeDiscountNotAllowed, apperr.RuleCode(err))
}

func TestDiscountResolve_Wholesale(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	policy := NewDiscountPolicy(repository.NewUserRepo(db))
	subtotal := decimal.NewFromInt(1000)

	// no customer
	_, err := policy.Resolve(&DiscountRequest{Type: model.DiscountWholesale}, f.cashier, nil, subtotal)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeCustomerRequired, apperr.RuleCode(err))

	// customer has nothing negotiated
	_, err = policy.Resolve(&DiscountRequest{Type: model.DiscountWholesale}, f.cashier, f.customer, subtotal)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeDiscountNotAllowed, apperr.RuleCode(err))

	// a negotiated rate applies without privilege, reason or PIN
	f.customer.WholesaleDiscountPct = decimal.NewFromInt(12)
	res, err := policy.Resolve(&DiscountRequest{Type: model.DiscountWholesale}, f.cashier, f.customer, subtotal)
	require.NoError(t, err)
	assert.Equal(t, model.DiscountWholesale, res.Type)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(120)))
	assert.Nil(t, res.ApprovedByID)
}

func TestDiscountResolve_InvalidPercent(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	policy := NewDiscountPolicy(repository.NewUserRepo(db))
	actor := discountActor(t, f)

	_, err := policy.Resolve(&DiscountRequest{
		Type:    model.DiscountPercent,
		Percent: decimal.NewFromInt(120),
		Reason:  "typo",
	}, actor, nil, decimal.NewFromInt(1000))
	require.Error(t, err)
	var verr *apperr.ValidationError
	assert.ErrorAs(t, err, &verr)
}
