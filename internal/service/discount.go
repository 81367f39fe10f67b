package service

import (
	"go-retail-pos/internal/apperr"
	"go-retail-pos/internal/model"
	"go-retail-pos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountRequest is the sale-level discount asked for at checkout.
type DiscountRequest struct {
	Type          model.DiscountType `json:"type" validate:"required,oneof=NONE PERCENT FIXED WHOLESALE"`
	Percent       decimal.Decimal    `json:"percent"`
	Amount        decimal.Decimal    `json:"amount"`
	Reason        string             `json:"reason"`
	SupervisorPIN string             `json:"supervisor_pin"`
}

// DiscountResolution is the authorized outcome applied to the sale.
type DiscountResolution struct {
	Type         model.DiscountType
	Percent      decimal.Decimal
	Amount       decimal.Decimal
	Reason       string
	AppliedByID  *uuid.UUID
	ApprovedByID *uuid.UUID
}

// DiscountPolicy validates and, when the acting user's own limit is
// exceeded, authorizes a sale-level discount via supervisor PIN.
type DiscountPolicy interface {
	Resolve(req *DiscountRequest, actor *model.User, customer *model.Customer, subtotal decimal.Decimal) (*DiscountResolution, error)
}

type discountPolicy struct {
	userRepo repository.UserRepository
}

func NewDiscountPolicy(userRepo repository.UserRepository) DiscountPolicy {
	return &discountPolicy{userRepo: userRepo}
}

var oneHundred = decimal.NewFromInt(100)

func (p *discountPolicy) Resolve(req *DiscountRequest, actor *model.User, customer *model.Customer, subtotal decimal.Decimal) (*DiscountResolution, error) {
	if req == nil || req.Type == model.DiscountNone {
		return &DiscountResolution{Type: model.DiscountNone, Amount: decimal.Zero}, nil
	}

	// Wholesale discounts are pre-negotiated on the customer record and
	// bypass authorization entirely.
	if req.Type == model.DiscountWholesale {
		if customer == nil {
			return nil, apperr.Rule(apperr.CodeCustomerRequired, "wholesale discount requires a customer")
		}
		pct := customer.WholesaleDiscountPct
		if pct.IsZero() {
			return nil, apperr.Rule(apperr.CodeDiscountNotAllowed, "customer has no wholesale discount negotiated")
		}
		amount := subtotal.Mul(pct).Div(oneHundred).Round(2)
		return &DiscountResolution{
			Type:        model.DiscountWholesale,
			Percent:     pct,
			Amount:      amount,
			AppliedByID: &actor.ID,
		}, nil
	}

	var percent, amount decimal.Decimal
	switch req.Type {
	case model.DiscountPercent:
		if req.Percent.IsNegative() || req.Percent.GreaterThan(oneHundred) {
			return nil, apperr.Validation("discount percent must be between 0 and 100")
		}
		percent = req.Percent
		amount = subtotal.Mul(percent).Div(oneHundred).Round(2)
	case model.DiscountFixed:
		if req.Amount.IsNegative() {
			return nil, apperr.Validation("discount amount cannot be negative")
		}
		if req.Amount.GreaterThan(subtotal) {
			return nil, apperr.Rule(apperr.CodeDiscountNotAllowed, "discount exceeds sale subtotal")
		}
		amount = req.Amount
		// Fixed discounts are gated by their percent equivalent.
		if subtotal.IsPositive() {
			percent = amount.Mul(oneHundred).Div(subtotal).Round(2)
		}
	default:
		return nil, apperr.Validation("unknown discount type %q", req.Type)
	}

	if amount.IsZero() {
		return &DiscountResolution{Type: model.DiscountNone, Amount: decimal.Zero}, nil
	}

	if !actor.HasPrivilege(model.PrivSaleDiscount) {
		return nil, apperr.Rule(apperr.CodeDiscountNotAllowed, "user cannot give discounts")
	}
	// A reason is required for every non-wholesale discount, at every
	// call site.
	if req.Reason == "" {
		return nil, apperr.Rule(apperr.CodeDiscountReasonRequired, "a reason is required for this discount")
	}

	resolution := &DiscountResolution{
		Type:        req.Type,
		Percent:     percent,
		Amount:      amount,
		Reason:      req.Reason,
		AppliedByID: &actor.ID,
	}

	if percent.LessThanOrEqual(actor.DiscountLimitPct) {
		return resolution, nil
	}

	// Above the acting user's personal limit a supervisor PIN is
	// mandatory. Several supervisors may share override duty, so the
	// PIN is checked against every candidate; the first whose own
	// limit covers the request approves it.
	if req.SupervisorPIN == "" {
		return nil, apperr.Rule(apperr.CodeDiscountLimitExceeded,
			"discount of %s%% exceeds your limit of %s%%", percent.String(), actor.DiscountLimitPct.String())
	}

	supervisors, err := p.userRepo.FindActiveWithPrivilege(model.PrivSaleDiscount)
	if err != nil {
		return nil, err
	}
	for i := range supervisors {
		sup := &supervisors[i]
		if !sup.CheckPIN(req.SupervisorPIN) {
			continue
		}
		if sup.DiscountLimitPct.GreaterThanOrEqual(percent) {
			resolution.ApprovedByID = &sup.ID
			return resolution, nil
		}
	}

	return nil, apperr.Rule(apperr.CodeDiscountPINRejected, "no supervisor authorized this discount")
}
