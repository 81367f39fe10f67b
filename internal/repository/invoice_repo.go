package repository

import (
	"go-retail-pos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InvoiceRepository interface {
	Create(tx *gorm.DB, invoice *model.Invoice) error
	FindByID(id uuid.UUID) (*model.Invoice, error)
	FindBySaleID(saleID uuid.UUID) (*model.Invoice, error)

	// UpdateFromPending persists a submission outcome only while the
	// stored row is still PENDING, reporting whether it applied. A void
	// can cancel the invoice between a batch read and the attempt, and
	// CANCELLED is terminal.
	UpdateFromPending(invoice *model.Invoice) (bool, error)
	FindAll() ([]model.Invoice, error)

	// FindPendingForRetry selects PENDING invoices below the attempt
	// ceiling, oldest first, bounded to limit.
	FindPendingForRetry(maxRetries, limit int) ([]model.Invoice, error)

	CreateCreditNote(tx *gorm.DB, note *model.CreditNote) error
	FindCreditNoteByInvoiceID(invoiceID uuid.UUID) (*model.CreditNote, error)
	UpdateCreditNoteFromPending(note *model.CreditNote) (bool, error)
	FindPendingCreditNotes(maxRetries, limit int) ([]model.CreditNote, error)
}

type invoiceRepo struct {
	db *gorm.DB
}

func NewInvoiceRepo(db *gorm.DB) InvoiceRepository {
	return &invoiceRepo{db}
}

func (r *invoiceRepo) Create(tx *gorm.DB, invoice *model.Invoice) error {
	return tx.Create(invoice).Error
}

func (r *invoiceRepo) FindByID(id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	err := r.db.Preload("Sale").Preload("Sale.Items").First(&invoice, "id = ?", id).Error
	return &invoice, err
}

func (r *invoiceRepo) FindBySaleID(saleID uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	err := r.db.First(&invoice, "sale_id = ?", saleID).Error
	return &invoice, err
}

func (r *invoiceRepo) UpdateFromPending(invoice *model.Invoice) (bool, error) {
	res := r.db.Model(&model.Invoice{}).
		Where("id = ? AND status = ?", invoice.ID, model.FiscalPending).
		Updates(map[string]interface{}{
			"status":         invoice.Status,
			"cae":            invoice.CAE,
			"cae_expires_at": invoice.CAEExpiresAt,
			"gateway_id":     invoice.GatewayID,
			"retry_count":    invoice.RetryCount,
			"last_retry_at":  invoice.LastRetryAt,
			"last_error":     invoice.LastError,
			"updated_by":     "system",
		})
	return res.RowsAffected > 0, res.Error
}

func (r *invoiceRepo) FindAll() ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := r.db.Preload("Sale").Order("created_at DESC").Find(&invoices).Error
	return invoices, err
}

func (r *invoiceRepo) FindPendingForRetry(maxRetries, limit int) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := r.db.
		Where("status = ? AND retry_count < ?", model.FiscalPending, maxRetries).
		Order("created_at ASC").
		Limit(limit).
		Find(&invoices).Error
	return invoices, err
}

func (r *invoiceRepo) CreateCreditNote(tx *gorm.DB, note *model.CreditNote) error {
	return tx.Create(note).Error
}

func (r *invoiceRepo) FindCreditNoteByInvoiceID(invoiceID uuid.UUID) (*model.CreditNote, error) {
	var note model.CreditNote
	err := r.db.First(&note, "invoice_id = ?", invoiceID).Error
	return &note, err
}

func (r *invoiceRepo) UpdateCreditNoteFromPending(note *model.CreditNote) (bool, error) {
	res := r.db.Model(&model.CreditNote{}).
		Where("id = ? AND status = ?", note.ID, model.FiscalPending).
		Updates(map[string]interface{}{
			"status":         note.Status,
			"cae":            note.CAE,
			"cae_expires_at": note.CAEExpiresAt,
			"gateway_id":     note.GatewayID,
			"retry_count":    note.RetryCount,
			"last_retry_at":  note.LastRetryAt,
			"last_error":     note.LastError,
			"updated_by":     "system",
		})
	return res.RowsAffected > 0, res.Error
}

func (r *invoiceRepo) FindPendingCreditNotes(maxRetries, limit int) ([]model.CreditNote, error) {
	var notes []model.CreditNote
	err := r.db.
		Where("status = ? AND retry_count < ?", model.FiscalPending, maxRetries).
		Order("created_at ASC").
		Limit(limit).
		Find(&notes).Error
	return notes, err
}
