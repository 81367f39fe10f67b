package service

import (
	"go-retail-pos/internal/apperr"
	"go-retail-pos/internal/model"
	"go-retail-pos/internal/repository"
	"go-retail-pos/pkg/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BalanceAdjustRequest is a manual points or credit correction, applied
// through the ledger so the audit trail stays complete.
type BalanceAdjustRequest struct {
	Points decimal.NullDecimal `json:"points"`
	Credit decimal.NullDecimal `json:"credit"`
	Note   string              `json:"note" validate:"required,max=255"`
}

type CustomerService interface {
	CreateCustomer(req *model.Customer, userID string) error
	UpdateCustomer(id uuid.UUID, req *model.Customer, userID string) (*model.Customer, error)
	GetAllCustomers() ([]model.Customer, error)
	GetCustomerByID(id uuid.UUID) (*model.Customer, error)

	AdjustBalances(id uuid.UUID, req *BalanceAdjustRequest, userID string) (*model.Customer, error)
	GetLoyaltyHistory(customerID uuid.UUID) ([]model.LoyaltyTransaction, error)
	GetCreditHistory(customerID uuid.UUID) ([]model.CreditTransaction, error)
}

type customerService struct {
	customerRepo repository.CustomerRepository
	ledgerRepo   repository.LedgerRepository
	db           *gorm.DB
}

func NewCustomerService(
	customerRepo repository.CustomerRepository,
	ledgerRepo repository.LedgerRepository,
	db *gorm.DB,
) CustomerService {
	return &customerService{
		customerRepo: customerRepo,
		ledgerRepo:   ledgerRepo,
		db:           db,
	}
}

func (s *customerService) CreateCustomer(req *model.Customer, userID string) error {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		firstErr := errs[0]
		return apperr.Validation("field '%s' failed on tag '%s'", firstErr.FailedField, firstErr.Tag)
	}
	if req.WholesaleDiscountPct.IsNegative() {
		return apperr.Validation("wholesale discount cannot be negative")
	}

	// Balances start at zero and only move through the ledger.
	req.PointsBalance = 0
	req.CreditBalance = decimal.Zero
	req.CreatedBy = userID
	req.UpdatedBy = userID
	return s.customerRepo.Create(req)
}

func (s *customerService) UpdateCustomer(id uuid.UUID, req *model.Customer, userID string) (*model.Customer, error) {
	existing, err := s.customerRepo.FindByID(id)
	if err != nil {
		return nil, apperr.Validation("customer not found")
	}
	if req.WholesaleDiscountPct.IsNegative() {
		return nil, apperr.Validation("wholesale discount cannot be negative")
	}

	existing.Name = req.Name
	existing.Email = req.Email
	existing.PhoneNumber = req.PhoneNumber
	existing.TaxID = req.TaxID
	existing.FiscalCondition = req.FiscalCondition
	existing.BillingAddress = req.BillingAddress
	existing.WholesaleDiscountPct = req.WholesaleDiscountPct
	existing.IsActive = req.IsActive
	existing.UpdatedBy = userID

	if err := s.customerRepo.Update(existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// AdjustBalances applies a manual correction as ADJUST ledger entries
// under the same row lock sales use, so the balance snapshots stay
// consistent with concurrent sale activity.
func (s *customerService) AdjustBalances(id uuid.UUID, req *BalanceAdjustRequest, userID string) (*model.Customer, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		firstErr := errs[0]
		return nil, apperr.Validation("field '%s' failed on tag '%s'", firstErr.FailedField, firstErr.Tag)
	}
	if !req.Points.Valid && !req.Credit.Valid {
		return nil, apperr.Validation("nothing to adjust")
	}

	var customer *model.Customer
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		customer, err = s.customerRepo.FindForUpdate(tx, id)
		if err != nil {
			return apperr.Validation("customer not found")
		}

		if req.Points.Valid {
			delta := req.Points.Decimal.IntPart()
			newBalance := customer.PointsBalance + delta
			if newBalance < 0 {
				return apperr.Rule(apperr.CodeInsufficientPoints,
					"adjustment would leave points at %d", newBalance)
			}
			entry := &model.LoyaltyTransaction{
				CustomerID:   customer.ID,
				Type:         model.LoyaltyAdjust,
				Points:       delta,
				BalanceAfter: newBalance,
				Note:         req.Note,
			}
			entry.CreatedBy = userID
			if err := s.ledgerRepo.AppendLoyalty(tx, entry); err != nil {
				return err
			}
			customer.PointsBalance = newBalance
		}

		if req.Credit.Valid {
			newBalance := customer.CreditBalance.Add(req.Credit.Decimal)
			if newBalance.IsNegative() {
				return apperr.Rule(apperr.CodeInsufficientCredit,
					"adjustment would leave credit at %s", newBalance.StringFixed(2))
			}
			entry := &model.CreditTransaction{
				CustomerID:   customer.ID,
				Type:         model.CreditAdjust,
				Amount:       req.Credit.Decimal,
				BalanceAfter: newBalance,
				Note:         req.Note,
			}
			entry.CreatedBy = userID
			if err := s.ledgerRepo.AppendCredit(tx, entry); err != nil {
				return err
			}
			customer.CreditBalance = newBalance
		}

		return s.customerRepo.UpdateBalances(tx, customer)
	})
	if err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *customerService) GetAllCustomers() ([]model.Customer, error) {
	return s.customerRepo.FindAll()
}

func (s *customerService) GetCustomerByID(id uuid.UUID) (*model.Customer, error) {
	return s.customerRepo.FindByID(id)
}

func (s *customerService) GetLoyaltyHistory(customerID uuid.UUID) ([]model.LoyaltyTransaction, error) {
	return s.ledgerRepo.LoyaltyHistory(customerID)
}

func (s *customerService) GetCreditHistory(customerID uuid.UUID) ([]model.CreditTransaction, error) {
	return s.ledgerRepo.CreditHistory(customerID)
}
