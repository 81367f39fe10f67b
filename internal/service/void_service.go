package service

import (
	"errors"
	"log"
	"time"

	"go-retail-pos/internal/apperr"
	"go-retail-pos/internal/model"
	"go-retail-pos/internal/repository"
	"go-retail-pos/internal/ws"
	"go-retail-pos/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VoidRequest struct {
	Reason        string `json:"reason" validate:"required"`
	SupervisorPIN string `json:"supervisor_pin"`
}

type VoidService interface {
	VoidSale(saleID uuid.UUID, req *VoidRequest, userID string) (*model.Sale, error)
}

type voidService struct {
	db           *gorm.DB
	saleRepo     repository.SaleRepository
	productRepo  repository.ProductRepository
	stockRepo    repository.StockRepository
	ledgerRepo   repository.LedgerRepository
	customerRepo repository.CustomerRepository
	userRepo     repository.UserRepository
	invoices     InvoiceService
	alerts       AlertService
	wsHub        *ws.Hub
}

func NewVoidService(
	db *gorm.DB,
	saleRepo repository.SaleRepository,
	productRepo repository.ProductRepository,
	stockRepo repository.StockRepository,
	ledgerRepo repository.LedgerRepository,
	customerRepo repository.CustomerRepository,
	userRepo repository.UserRepository,
	invoices InvoiceService,
	alerts AlertService,
	hub *ws.Hub,
) VoidService {
	return &voidService{
		db:           db,
		saleRepo:     saleRepo,
		productRepo:  productRepo,
		stockRepo:    stockRepo,
		ledgerRepo:   ledgerRepo,
		customerRepo: customerRepo,
		userRepo:     userRepo,
		invoices:     invoices,
		alerts:       alerts,
		wsHub:        hub,
	}
}

// VoidSale reverses every ledger effect of a sale as one atomic unit:
// stock restored through new return movements, compensating loyalty
// and credit entries appended, negated payment rows created, and any
// invoice marked CANCELLED. Originals are never edited or deleted.
// If the invoice had been ISSUED, credit note generation fires after
// commit as an independent best-effort action.
func (s *voidService) VoidSale(saleID uuid.UUID, req *VoidRequest, userID string) (*model.Sale, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		firstErr := errs[0]
		return nil, apperr.Validation("field '%s' failed on tag '%s'", firstErr.FailedField, firstErr.Tag)
	}

	actorID, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperr.Validation("invalid acting user")
	}
	actor, err := s.userRepo.FindByID(actorID)
	if err != nil {
		return nil, apperr.Validation("acting user not found")
	}

	approvedByID, err := s.authorize(actor, req.SupervisorPIN)
	if err != nil {
		return nil, err
	}

	var (
		sale          *model.Sale
		issuedInvoice *model.Invoice
	)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		locked, err := s.saleRepo.FindForUpdate(tx, saleID)
		if err != nil {
			return apperr.Validation("sale not found")
		}
		sale = locked

		// Eligibility: not already voided, session not closed, same
		// business date as today.
		if sale.Status == model.SaleVoided {
			return apperr.Rule(apperr.CodeSaleAlreadyVoided, "sale %s is already voided", sale.Number)
		}
		var session model.RegisterSession
		if err := tx.First(&session, "id = ?", sale.SessionID).Error; err != nil {
			return err
		}
		if session.Status == model.SessionClosed {
			return apperr.Rule(apperr.CodeSessionClosed, "register session is closed")
		}
		// Compare calendar components, not instants: the date column's
		// scan location depends on the driver and must not affect
		// same-day eligibility.
		by, bm, bd := session.BusinessDate.Date()
		ty, tm, td := time.Now().Date()
		if by != ty || bm != tm || bd != td {
			return apperr.Rule(apperr.CodeVoidWindowExpired, "sales can only be voided on their business date")
		}

		// Flip status with the audit trail
		now := time.Now()
		sale.Status = model.SaleVoided
		sale.VoidReason = req.Reason
		sale.VoidedByID = &actor.ID
		sale.VoidApprovedByID = approvedByID
		sale.VoidedAt = &now
		sale.UpdatedBy = userID
		if err := s.saleRepo.Update(tx, sale); err != nil {
			return err
		}

		// Restore stock with return movements; originals stay intact
		var items []model.SaleItem
		if err := tx.Where("sale_id = ?", sale.ID).Find(&items).Error; err != nil {
			return err
		}
		for _, item := range items {
			stock, err := s.productRepo.GetBranchStock(tx, sale.BranchID, item.ProductID)
			if err != nil {
				return err
			}
			newOnHand := stock.OnHand + item.Quantity
			if err := s.productRepo.UpdateOnHand(tx, stock.ID, newOnHand, userID); err != nil {
				return err
			}
			movement := &model.StockMovement{
				BranchID:    sale.BranchID,
				ProductID:   item.ProductID,
				Type:        model.MovementReturn,
				Quantity:    item.Quantity,
				StockBefore: stock.OnHand,
				StockAfter:  newOnHand,
				SaleID:      &sale.ID,
				Note:        "void " + sale.Number,
			}
			movement.CreatedBy = userID
			if err := s.stockRepo.CreateMovement(tx, movement); err != nil {
				return err
			}
		}

		// Compensate loyalty/credit with new entries
		if sale.CustomerID != nil {
			if err := s.reverseCustomerLedgers(tx, sale, userID); err != nil {
				return err
			}
		}

		// Append negated payment rows
		var payments []model.SalePayment
		if err := tx.Where("sale_id = ?", sale.ID).Find(&payments).Error; err != nil {
			return err
		}
		for _, payment := range payments {
			if !payment.Amount.IsPositive() {
				continue // skip earlier reversal rows
			}
			ref := payment.Reference
			if ref == "" {
				ref = sale.Number
			}
			reversal := &model.SalePayment{
				SaleID:    sale.ID,
				Method:    payment.Method,
				Amount:    payment.Amount.Neg(),
				Reference: "VOID-" + ref,
			}
			reversal.CreatedBy = userID
			if err := s.saleRepo.CreatePayment(tx, reversal); err != nil {
				return err
			}
		}

		// Cancel the invoice locally. The CAE stays on record; the
		// authoritative cancellation is the gateway-side credit note.
		var invoice model.Invoice
		err = tx.First(&invoice, "sale_id = ?", sale.ID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// no invoice yet, nothing to cancel
		case err != nil:
			return err
		default:
			wasIssued := invoice.Status == model.FiscalIssued
			if invoice.Status == model.FiscalPending || invoice.Status == model.FiscalIssued {
				invoice.Status = model.FiscalCancelled
				invoice.UpdatedBy = userID
				if err := tx.Save(&invoice).Error; err != nil {
					return err
				}
			}
			if wasIssued && invoice.CAE != "" {
				issued := invoice
				issuedInvoice = &issued
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.wsHub != nil {
		go s.wsHub.Publish("sale_voided", map[string]interface{}{
			"id":     sale.ID,
			"number": sale.Number,
			"reason": sale.VoidReason,
		})
	}
	if issuedInvoice != nil && s.invoices != nil {
		go s.triggerCreditNote(issuedInvoice.ID)
	}

	return sale, nil
}

// authorize resolves void authorization: direct privilege, or a
// supervisor PIN whose holder's role grants void capability.
func (s *voidService) authorize(actor *model.User, pin string) (*uuid.UUID, error) {
	if actor.HasPrivilege(model.PrivSaleVoid) {
		return nil, nil
	}
	if pin == "" {
		return nil, apperr.Rule(apperr.CodeVoidNotAuthorized, "voiding requires authorization")
	}
	supervisors, err := s.userRepo.FindActiveWithPrivilege(model.PrivSaleVoid)
	if err != nil {
		return nil, err
	}
	for i := range supervisors {
		if supervisors[i].CheckPIN(pin) {
			return &supervisors[i].ID, nil
		}
	}
	return nil, apperr.Rule(apperr.CodeVoidNotAuthorized, "supervisor PIN not recognized")
}

func (s *voidService) reverseCustomerLedgers(tx *gorm.DB, sale *model.Sale, userID string) error {
	customer, err := s.customerRepo.FindForUpdate(tx, *sale.CustomerID)
	if err != nil {
		return err
	}

	if sale.PointsEarned > 0 {
		if customer.PointsBalance < sale.PointsEarned {
			return apperr.Rule(apperr.CodeInsufficientPoints,
				"cannot reverse %d earned points: balance is %d", sale.PointsEarned, customer.PointsBalance)
		}
		customer.PointsBalance -= sale.PointsEarned
		entry := &model.LoyaltyTransaction{
			CustomerID:   customer.ID,
			Type:         model.LoyaltyAdjust,
			Points:       -sale.PointsEarned,
			BalanceAfter: customer.PointsBalance,
			SaleID:       &sale.ID,
			Note:         "void " + sale.Number,
		}
		entry.CreatedBy = userID
		if err := s.ledgerRepo.AppendLoyalty(tx, entry); err != nil {
			return err
		}
	}

	if sale.PointsRedeemed > 0 {
		customer.PointsBalance += sale.PointsRedeemed
		entry := &model.LoyaltyTransaction{
			CustomerID:   customer.ID,
			Type:         model.LoyaltyAdjust,
			Points:       sale.PointsRedeemed,
			BalanceAfter: customer.PointsBalance,
			SaleID:       &sale.ID,
			Note:         "void " + sale.Number,
		}
		entry.CreatedBy = userID
		if err := s.ledgerRepo.AppendLoyalty(tx, entry); err != nil {
			return err
		}
	}

	if sale.CreditUsed.IsPositive() {
		customer.CreditBalance = customer.CreditBalance.Add(sale.CreditUsed)
		entry := &model.CreditTransaction{
			CustomerID:   customer.ID,
			Type:         model.CreditCredit,
			Amount:       sale.CreditUsed,
			BalanceAfter: customer.CreditBalance,
			SaleID:       &sale.ID,
			Note:         "void " + sale.Number,
		}
		entry.CreatedBy = userID
		if err := s.ledgerRepo.AppendCredit(tx, entry); err != nil {
			return err
		}
	}

	if sale.ChangeCredited.IsPositive() {
		if customer.CreditBalance.LessThan(sale.ChangeCredited) {
			return apperr.Rule(apperr.CodeInsufficientCredit,
				"cannot reverse %s credited change: balance is %s",
				sale.ChangeCredited.StringFixed(2), customer.CreditBalance.StringFixed(2))
		}
		customer.CreditBalance = customer.CreditBalance.Sub(sale.ChangeCredited)
		entry := &model.CreditTransaction{
			CustomerID:   customer.ID,
			Type:         model.CreditDebit,
			Amount:       sale.ChangeCredited.Neg(),
			BalanceAfter: customer.CreditBalance,
			SaleID:       &sale.ID,
			Note:         "void " + sale.Number,
		}
		entry.CreatedBy = userID
		if err := s.ledgerRepo.AppendCredit(tx, entry); err != nil {
			return err
		}
	}

	return s.customerRepo.UpdateBalances(tx, customer)
}

// triggerCreditNote hands off credit note generation post-commit with
// its own error boundary.
func (s *voidService) triggerCreditNote(invoiceID uuid.UUID) {
	if _, err := s.invoices.GenerateCreditNote(invoiceID); err != nil {
		log.Printf("credit note: generation for invoice %s failed: %v", invoiceID, err)
		s.alerts.Raise(model.AlertCreditNoteFailed, model.SeverityHigh, nil, "invoice", &invoiceID,
			"Credit note generation failed", err.Error())
	}
}
