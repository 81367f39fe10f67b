package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceType string

const (
	InvoiceTypeA InvoiceType = "A"
	InvoiceTypeB InvoiceType = "B"
	InvoiceTypeC InvoiceType = "C"
)

type FiscalStatus string

const (
	FiscalPending   FiscalStatus = "PENDING"
	FiscalIssued    FiscalStatus = "ISSUED"
	FiscalFailed    FiscalStatus = "FAILED"
	FiscalCancelled FiscalStatus = "CANCELLED"
)

// Invoice tracks one fiscal document per sale. The unique index on
// SaleID is the storage-level guard against the duplicate-creation race
// between concurrent generation triggers: a unique violation on insert
// means "already exists, skip".
type Invoice struct {
	BaseModel
	SaleID   uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"sale_id"`
	Sale     *Sale     `gorm:"foreignKey:SaleID" json:"sale,omitempty"`
	BranchID uuid.UUID `gorm:"type:uuid;not null;index" json:"branch_id"`

	Type        InvoiceType `gorm:"type:varchar(1);not null" json:"type"`
	PointOfSale int         `gorm:"not null" json:"point_of_sale"`
	Number      int64       `gorm:"not null" json:"number"`

	// Customer fiscal snapshot at emission time
	CustomerName            string `gorm:"type:varchar(255)" json:"customer_name"`
	CustomerTaxID           string `gorm:"type:varchar(20)" json:"customer_tax_id"`
	CustomerFiscalCondition string `gorm:"type:varchar(30)" json:"customer_fiscal_condition"`
	CustomerAddress         string `gorm:"type:varchar(255)" json:"customer_address"`

	NetAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"net_amount"`
	TaxAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax_amount"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`

	Status FiscalStatus `gorm:"type:varchar(10);not null;default:'PENDING';index" json:"status"`

	// CAE is the gateway authorization code; set only on ISSUED. It is
	// kept on record even after local cancellation.
	CAE          string     `gorm:"type:varchar(20)" json:"cae"`
	CAEExpiresAt *time.Time `json:"cae_expires_at,omitempty"`
	GatewayID    string     `gorm:"type:varchar(100)" json:"gateway_id"`

	RetryCount  int        `gorm:"not null;default:0" json:"retry_count"`
	LastRetryAt *time.Time `json:"last_retry_at,omitempty"`
	LastError   string     `gorm:"type:text" json:"last_error"`
}

// CreditNote mirrors Invoice, created only when an ISSUED invoice's
// sale is voided. Numbering is scoped to (branch, credit-note type).
type CreditNote struct {
	BaseModel
	InvoiceID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"invoice_id"`
	Invoice   *Invoice  `gorm:"foreignKey:InvoiceID" json:"invoice,omitempty"`
	SaleID    uuid.UUID `gorm:"type:uuid;not null;index" json:"sale_id"`
	BranchID  uuid.UUID `gorm:"type:uuid;not null;index" json:"branch_id"`

	Type        InvoiceType `gorm:"type:varchar(1);not null" json:"type"`
	PointOfSale int         `gorm:"not null" json:"point_of_sale"`
	Number      int64       `gorm:"not null" json:"number"`

	NetAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"net_amount"`
	TaxAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax_amount"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`

	Status FiscalStatus `gorm:"type:varchar(10);not null;default:'PENDING';index" json:"status"`

	CAE          string     `gorm:"type:varchar(20)" json:"cae"`
	CAEExpiresAt *time.Time `json:"cae_expires_at,omitempty"`
	GatewayID    string     `gorm:"type:varchar(100)" json:"gateway_id"`

	RetryCount  int        `gorm:"not null;default:0" json:"retry_count"`
	LastRetryAt *time.Time `json:"last_retry_at,omitempty"`
	LastError   string     `gorm:"type:text" json:"last_error"`
}

// DocumentSequence hands out per-(branch, document type) numbers.
// Incremented inside the issuing transaction: gaps are acceptable,
// duplicates are not.
type DocumentSequence struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	BranchID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_branch_doc" json:"branch_id"`
	DocType    string    `gorm:"type:varchar(30);not null;uniqueIndex:idx_branch_doc" json:"doc_type"`
	NextNumber int64     `gorm:"not null;default:0" json:"next_number"`
}

// Doc types used with DocumentSequence
const (
	DocTypeSale = "SALE"
)

func DocTypeInvoice(t InvoiceType) string    { return "INVOICE_" + string(t) }
func DocTypeCreditNote(t InvoiceType) string { return "CREDIT_NOTE_" + string(t) }
