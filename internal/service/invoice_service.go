package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-retail-pos/internal/apperr"
	"go-retail-pos/internal/fiscal"
	"go-retail-pos/internal/model"
	"go-retail-pos/internal/repository"
	"go-retail-pos/internal/ws"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// maxFiscalAttempts is the submission ceiling for invoices and credit
// notes: a retryable failure at the ceiling turns the document FAILED.
const maxFiscalAttempts = 3

type InvoiceService interface {
	// GenerateForSale creates the PENDING invoice (idempotently, one
	// per sale) and makes the first submission attempt. An empty
	// override auto-derives the invoice type from the branch and
	// customer fiscal conditions.
	GenerateForSale(saleID uuid.UUID, override model.InvoiceType) (*model.Invoice, error)

	// SubmitInvoice drives one state machine step for a PENDING invoice.
	SubmitInvoice(invoice *model.Invoice) error

	// RetryInvoice is the manual retry entry point; it races the
	// scheduler safely because both go through the same status checks.
	RetryInvoice(id uuid.UUID) (*model.Invoice, error)

	// GenerateCreditNote mirrors GenerateForSale for a voided sale
	// whose invoice was ISSUED.
	GenerateCreditNote(invoiceID uuid.UUID) (*model.CreditNote, error)
	SubmitCreditNote(note *model.CreditNote) error

	GetInvoiceByID(id uuid.UUID) (*model.Invoice, error)
	GetInvoiceBySale(saleID uuid.UUID) (*model.Invoice, error)
	GetAllInvoices() ([]model.Invoice, error)
	GetCreditNoteByInvoice(invoiceID uuid.UUID) (*model.CreditNote, error)

	PendingInvoices(limit int) ([]model.Invoice, error)
	PendingCreditNotes(limit int) ([]model.CreditNote, error)
}

type invoiceService struct {
	db           *gorm.DB
	invoiceRepo  repository.InvoiceRepository
	saleRepo     repository.SaleRepository
	sequenceRepo repository.SequenceRepository
	gateway      fiscal.Gateway
	alerts       AlertService
	wsHub        *ws.Hub
	callTimeout  time.Duration
}

func NewInvoiceService(
	db *gorm.DB,
	invoiceRepo repository.InvoiceRepository,
	saleRepo repository.SaleRepository,
	sequenceRepo repository.SequenceRepository,
	gateway fiscal.Gateway,
	alerts AlertService,
	hub *ws.Hub,
	callTimeout time.Duration,
) InvoiceService {
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	return &invoiceService{
		db:           db,
		invoiceRepo:  invoiceRepo,
		saleRepo:     saleRepo,
		sequenceRepo: sequenceRepo,
		gateway:      gateway,
		alerts:       alerts,
		wsHub:        hub,
		callTimeout:  callTimeout,
	}
}

// GenerateForSale persists the PENDING invoice in its own short
// transaction, then attempts submission outside any transaction so the
// slow gateway call never holds locks. The pre-check plus the unique
// index on sale_id make creation idempotent under concurrent triggers.
func (s *invoiceService) GenerateForSale(saleID uuid.UUID, override model.InvoiceType) (*model.Invoice, error) {
	// Fast path: invoice already exists for this sale
	if existing, err := s.invoiceRepo.FindBySaleID(saleID); err == nil {
		return existing, nil
	}

	sale, err := s.saleRepo.FindByID(saleID)
	if err != nil {
		return nil, apperr.Validation("sale not found")
	}
	if sale.Status != model.SaleCompleted {
		return nil, apperr.Rule(apperr.CodeSaleAlreadyVoided, "cannot invoice a voided sale")
	}
	if sale.Branch == nil {
		return nil, apperr.Validation("sale has no branch loaded")
	}

	invoiceType, err := deriveInvoiceType(sale.Branch, sale.Customer, override)
	if err != nil {
		return nil, err
	}
	if err := validateFiscalData(invoiceType, sale.Customer); err != nil {
		return nil, err
	}

	net := sale.TotalAmount.Sub(sale.TaxAmount)
	invoice := &model.Invoice{
		SaleID:      sale.ID,
		BranchID:    sale.BranchID,
		Type:        invoiceType,
		PointOfSale: sale.Branch.PointOfSale,
		NetAmount:   net,
		TaxAmount:   sale.TaxAmount,
		TotalAmount: sale.TotalAmount,
		Status:      model.FiscalPending,
	}
	invoice.CreatedBy = "system"
	applyCustomerSnapshot(invoice, sale.Customer)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		number, err := s.sequenceRepo.Next(tx, sale.BranchID, model.DocTypeInvoice(invoiceType))
		if err != nil {
			return err
		}
		invoice.Number = number
		return s.invoiceRepo.Create(tx, invoice)
	})
	if err != nil {
		// A unique violation means another trigger won the race:
		// treat as "already exists, skip".
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.invoiceRepo.FindBySaleID(saleID)
		}
		return nil, err
	}

	if err := s.SubmitInvoice(invoice); err != nil {
		// Submission failures are the state machine's business; the
		// invoice row is already durable.
		return invoice, nil
	}
	return invoice, nil
}

// SubmitInvoice makes one gateway attempt and advances the state
// machine: PENDING -> ISSUED on acceptance, PENDING -> PENDING on a
// retryable failure below the ceiling, PENDING -> FAILED otherwise.
// The caller's copy may be stale (a scheduler batch read, a manual
// retry racing a void), so the stored status is re-checked before the
// gateway call and every write is guarded on the row still being
// PENDING. CANCELLED is terminal and must never be overwritten.
func (s *invoiceService) SubmitInvoice(invoice *model.Invoice) error {
	if invoice.Status != model.FiscalPending {
		return apperr.Rule(apperr.CodeInvoiceNotRetriable, "invoice is %s", invoice.Status)
	}

	current, err := s.invoiceRepo.FindByID(invoice.ID)
	if err != nil {
		return err
	}
	if current.Status != model.FiscalPending {
		invoice.Status = current.Status
		return apperr.Rule(apperr.CodeInvoiceNotRetriable, "invoice is %s", current.Status)
	}
	invoice.RetryCount = current.RetryCount

	sale, err := s.saleRepo.FindByID(invoice.SaleID)
	if err != nil {
		return err
	}

	payload := s.buildInvoicePayload(invoice, sale)

	ctx, cancel := context.WithTimeout(context.Background(), s.callTimeout)
	defer cancel()
	result, gwErr := s.gateway.SubmitInvoice(ctx, payload)

	now := time.Now()
	invoice.RetryCount++
	invoice.LastRetryAt = &now

	if gwErr != nil {
		invoice.LastError = gwErr.Error()
		failed := !apperr.IsRetryable(gwErr) || invoice.RetryCount >= maxFiscalAttempts
		if failed {
			invoice.Status = model.FiscalFailed
		}
		applied, err := s.invoiceRepo.UpdateFromPending(invoice)
		if err != nil {
			return err
		}
		if !applied {
			invoice.Status = model.FiscalCancelled
			return gwErr
		}
		if failed {
			s.alerts.Raise(model.AlertInvoiceFailed, model.SeverityHigh, &invoice.BranchID,
				"invoice", &invoice.ID,
				fmt.Sprintf("Invoice %s %d failed", invoice.Type, invoice.Number),
				gwErr.Error())
		}
		return gwErr
	}

	invoice.Status = model.FiscalIssued
	invoice.CAE = result.CAE
	if !result.CAEExpiration.IsZero() {
		exp := result.CAEExpiration
		invoice.CAEExpiresAt = &exp
	}
	invoice.GatewayID = result.GatewayID
	invoice.LastError = ""
	applied, err := s.invoiceRepo.UpdateFromPending(invoice)
	if err != nil {
		return err
	}
	if !applied {
		// Cancelled while the gateway call was in flight: a CAE now
		// exists for a voided sale and only manual reconciliation can
		// unwind it. The local row stays CANCELLED.
		s.alerts.Raise(model.AlertInvoiceFailed, model.SeverityCritical, &invoice.BranchID,
			"invoice", &invoice.ID,
			fmt.Sprintf("Invoice %s %d issued after local cancellation", invoice.Type, invoice.Number),
			fmt.Sprintf("gateway accepted CAE %s but the invoice was cancelled; manual fiscal reconciliation required", invoice.CAE))
		invoice.Status = model.FiscalCancelled
		return apperr.Rule(apperr.CodeInvoiceNotRetriable, "invoice was cancelled during submission")
	}

	if s.wsHub != nil {
		go s.wsHub.Publish("invoice_issued", map[string]interface{}{
			"id":     invoice.ID,
			"type":   invoice.Type,
			"number": invoice.Number,
			"cae":    invoice.CAE,
		})
	}
	return nil
}

func (s *invoiceService) RetryInvoice(id uuid.UUID) (*model.Invoice, error) {
	invoice, err := s.invoiceRepo.FindByID(id)
	if err != nil {
		return nil, apperr.Validation("invoice not found")
	}
	if invoice.Status != model.FiscalPending {
		return nil, apperr.Rule(apperr.CodeInvoiceNotRetriable, "invoice is %s, only PENDING can be retried", invoice.Status)
	}
	if err := s.SubmitInvoice(invoice); err != nil {
		return invoice, nil
	}
	return invoice, nil
}

// GenerateCreditNote mirrors GenerateForSale, triggered only after a
// void whose invoice had reached ISSUED.
func (s *invoiceService) GenerateCreditNote(invoiceID uuid.UUID) (*model.CreditNote, error) {
	if existing, err := s.invoiceRepo.FindCreditNoteByInvoiceID(invoiceID); err == nil {
		return existing, nil
	}

	invoice, err := s.invoiceRepo.FindByID(invoiceID)
	if err != nil {
		return nil, apperr.Validation("invoice not found")
	}
	if invoice.CAE == "" {
		return nil, apperr.Rule(apperr.CodeInvoiceNotRetriable, "credit notes require an issued invoice")
	}

	note := &model.CreditNote{
		InvoiceID:   invoice.ID,
		SaleID:      invoice.SaleID,
		BranchID:    invoice.BranchID,
		Type:        invoice.Type,
		PointOfSale: invoice.PointOfSale,
		NetAmount:   invoice.NetAmount,
		TaxAmount:   invoice.TaxAmount,
		TotalAmount: invoice.TotalAmount,
		Status:      model.FiscalPending,
	}
	note.CreatedBy = "system"

	err = s.db.Transaction(func(tx *gorm.DB) error {
		number, err := s.sequenceRepo.Next(tx, invoice.BranchID, model.DocTypeCreditNote(invoice.Type))
		if err != nil {
			return err
		}
		note.Number = number
		return s.invoiceRepo.CreateCreditNote(tx, note)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.invoiceRepo.FindCreditNoteByInvoiceID(invoiceID)
		}
		return nil, err
	}

	if err := s.SubmitCreditNote(note); err != nil {
		return note, nil
	}
	return note, nil
}

// SubmitCreditNote advances the credit note state machine one step,
// with the same retry semantics and stale-copy guards as invoices.
// Terminal failure raises a critical alert: manual fiscal
// reconciliation may be required.
func (s *invoiceService) SubmitCreditNote(note *model.CreditNote) error {
	if note.Status != model.FiscalPending {
		return apperr.Rule(apperr.CodeInvoiceNotRetriable, "credit note is %s", note.Status)
	}

	current, err := s.invoiceRepo.FindCreditNoteByInvoiceID(note.InvoiceID)
	if err != nil {
		return err
	}
	if current.Status != model.FiscalPending {
		note.Status = current.Status
		return apperr.Rule(apperr.CodeInvoiceNotRetriable, "credit note is %s", current.Status)
	}
	note.RetryCount = current.RetryCount

	invoice, err := s.invoiceRepo.FindByID(note.InvoiceID)
	if err != nil {
		return err
	}
	sale, err := s.saleRepo.FindByID(note.SaleID)
	if err != nil {
		return err
	}

	payload := fiscal.CreditNotePayload{
		InvoicePayload: s.buildCreditNoteBody(note, invoice, sale),
		OriginalInvoice: fiscal.DocumentRef{
			Type:        string(invoice.Type),
			PointOfSale: invoice.PointOfSale,
			Number:      invoice.Number,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.callTimeout)
	defer cancel()
	result, gwErr := s.gateway.SubmitCreditNote(ctx, payload)

	now := time.Now()
	note.RetryCount++
	note.LastRetryAt = &now

	if gwErr != nil {
		note.LastError = gwErr.Error()
		failed := !apperr.IsRetryable(gwErr) || note.RetryCount >= maxFiscalAttempts
		if failed {
			note.Status = model.FiscalFailed
		}
		applied, err := s.invoiceRepo.UpdateCreditNoteFromPending(note)
		if err != nil {
			return err
		}
		if applied && failed {
			s.alerts.Raise(model.AlertCreditNoteFailed, model.SeverityCritical, &note.BranchID,
				"credit_note", &note.ID,
				fmt.Sprintf("Credit note %s %d failed", note.Type, note.Number),
				"manual fiscal reconciliation may be required: "+gwErr.Error())
		}
		return gwErr
	}

	note.Status = model.FiscalIssued
	note.CAE = result.CAE
	if !result.CAEExpiration.IsZero() {
		exp := result.CAEExpiration
		note.CAEExpiresAt = &exp
	}
	note.GatewayID = result.GatewayID
	note.LastError = ""
	applied, err := s.invoiceRepo.UpdateCreditNoteFromPending(note)
	if err != nil {
		return err
	}
	if !applied {
		return apperr.Rule(apperr.CodeInvoiceNotRetriable, "credit note left PENDING during submission")
	}

	if s.wsHub != nil {
		go s.wsHub.Publish("credit_note_issued", map[string]interface{}{
			"id":     note.ID,
			"type":   note.Type,
			"number": note.Number,
			"cae":    note.CAE,
		})
	}
	return nil
}

func (s *invoiceService) buildInvoicePayload(invoice *model.Invoice, sale *model.Sale) fiscal.InvoicePayload {
	items := make([]fiscal.PayloadItem, len(sale.Items))
	brackets := map[string]*fiscal.TaxBracket{}
	for i, item := range sale.Items {
		items[i] = fiscal.PayloadItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TaxRate:     item.TaxRate,
			Total:       item.LineTotal,
		}
		key := item.TaxRate.String()
		bracket, ok := brackets[key]
		if !ok {
			bracket = &fiscal.TaxBracket{Rate: item.TaxRate, Net: decimal.Zero, Amount: decimal.Zero}
			brackets[key] = bracket
		}
		bracket.Net = bracket.Net.Add(item.LineTotal.Sub(item.TaxAmount))
		bracket.Amount = bracket.Amount.Add(item.TaxAmount)
	}
	taxTotals := make([]fiscal.TaxBracket, 0, len(brackets))
	for _, bracket := range brackets {
		taxTotals = append(taxTotals, *bracket)
	}

	return fiscal.InvoicePayload{
		Type:        string(invoice.Type),
		PointOfSale: invoice.PointOfSale,
		Number:      invoice.Number,
		Customer: fiscal.CustomerSnapshot{
			Name:            invoice.CustomerName,
			TaxID:           invoice.CustomerTaxID,
			FiscalCondition: invoice.CustomerFiscalCondition,
			Address:         invoice.CustomerAddress,
		},
		Items:       items,
		TaxTotals:   taxTotals,
		NetAmount:   invoice.NetAmount,
		TaxAmount:   invoice.TaxAmount,
		TotalAmount: invoice.TotalAmount,
	}
}

func (s *invoiceService) buildCreditNoteBody(note *model.CreditNote, invoice *model.Invoice, sale *model.Sale) fiscal.InvoicePayload {
	body := s.buildInvoicePayload(invoice, sale)
	body.Number = note.Number
	body.NetAmount = note.NetAmount
	body.TaxAmount = note.TaxAmount
	body.TotalAmount = note.TotalAmount
	return body
}

// deriveInvoiceType picks the fiscal document type from the branch and
// customer conditions unless an explicit override is given.
func deriveInvoiceType(branch *model.Branch, customer *model.Customer, override model.InvoiceType) (model.InvoiceType, error) {
	if override != "" {
		switch override {
		case model.InvoiceTypeA, model.InvoiceTypeB, model.InvoiceTypeC:
			return override, nil
		default:
			return "", apperr.Validation("unknown invoice type %q", override)
		}
	}
	if branch.FiscalCondition == model.FiscalMonotributo {
		return model.InvoiceTypeC, nil
	}
	if customer != nil && customer.FiscalCondition == model.FiscalResponsableInscripto {
		return model.InvoiceTypeA, nil
	}
	return model.InvoiceTypeB, nil
}

// validateFiscalData rejects type-A submissions missing the legally
// required receiver data before any external call is made.
func validateFiscalData(invoiceType model.InvoiceType, customer *model.Customer) error {
	if invoiceType != model.InvoiceTypeA {
		return nil
	}
	if customer == nil {
		return apperr.Rule(apperr.CodeFiscalDataMissing, "type A invoices require a customer")
	}
	if !isValidTaxID(customer.TaxID) {
		return apperr.Rule(apperr.CodeFiscalDataMissing, "type A invoices require a valid 11-digit tax ID")
	}
	if customer.FiscalCondition == "" {
		return apperr.Rule(apperr.CodeFiscalDataMissing, "type A invoices require the customer's tax condition")
	}
	if customer.BillingAddress == "" {
		return apperr.Rule(apperr.CodeFiscalDataMissing, "type A invoices require a billing address")
	}
	if customer.Name == "" {
		return apperr.Rule(apperr.CodeFiscalDataMissing, "type A invoices require the customer name")
	}
	return nil
}

func isValidTaxID(taxID string) bool {
	if len(taxID) != 11 {
		return false
	}
	for _, r := range taxID {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func applyCustomerSnapshot(invoice *model.Invoice, customer *model.Customer) {
	if customer == nil {
		invoice.CustomerName = "Consumidor Final"
		invoice.CustomerFiscalCondition = model.FiscalConsumidorFinal
		return
	}
	invoice.CustomerName = customer.Name
	invoice.CustomerTaxID = customer.TaxID
	invoice.CustomerFiscalCondition = customer.FiscalCondition
	invoice.CustomerAddress = customer.BillingAddress
}

func (s *invoiceService) GetInvoiceByID(id uuid.UUID) (*model.Invoice, error) {
	return s.invoiceRepo.FindByID(id)
}

func (s *invoiceService) GetInvoiceBySale(saleID uuid.UUID) (*model.Invoice, error) {
	return s.invoiceRepo.FindBySaleID(saleID)
}

func (s *invoiceService) GetAllInvoices() ([]model.Invoice, error) {
	return s.invoiceRepo.FindAll()
}

func (s *invoiceService) GetCreditNoteByInvoice(invoiceID uuid.UUID) (*model.CreditNote, error) {
	return s.invoiceRepo.FindCreditNoteByInvoiceID(invoiceID)
}

func (s *invoiceService) PendingInvoices(limit int) ([]model.Invoice, error) {
	return s.invoiceRepo.FindPendingForRetry(maxFiscalAttempts, limit)
}

func (s *invoiceService) PendingCreditNotes(limit int) ([]model.CreditNote, error) {
	return s.invoiceRepo.FindPendingCreditNotes(maxFiscalAttempts, limit)
}
