package service

import (
	"testing"
	"time"

	"go-retail-pos/internal/apperr"
	"go-retail-pos/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedSale(t *testing.T, f *fixtures, withCustomer bool) *model.Sale {
	t.Helper()
	sales := newTestSaleService(f.db, nil)
	req := simpleSaleRequest(f, 1, cashPayment(121))
	if withCustomer {
		req.CustomerID = strPtr(f.customer.ID.String())
	}
	sale, err := sales.CreateSale(req, f.cashier.ID.String())
	require.NoError(t, err)
	return sale
}

func TestGenerateForSale_IssuesOnFirstAttempt(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	gw := newFakeGateway(gatewayAccepts("71234567890123"))
	svc := newTestInvoiceService(db, gw)

	sale := completedSale(t, f, false)

	invoice, err := svc.GenerateForSale(sale.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.FiscalIssued, invoice.Status)
	assert.Equal(t, "71234567890123", invoice.CAE)
	assert.NotNil(t, invoice.CAEExpiresAt)
	assert.Equal(t, 1, invoice.RetryCount)
	assert.Equal(t, int64(1), invoice.Number)
	assert.True(t, invoice.TotalAmount.Equal(sale.TotalAmount))
	assert.True(t, invoice.NetAmount.Equal(sale.TotalAmount.Sub(sale.TaxAmount)))

	// anonymous sale snapshots the walk-in identity
	assert.Equal(t, "Consumidor Final", invoice.CustomerName)
	assert.Equal(t, model.FiscalConsumidorFinal, invoice.CustomerFiscalCondition)

	require.Len(t, gw.invoicePayloads, 1)
	payload := gw.invoicePayloads[0]
	assert.Equal(t, "B", payload.Type)
	assert.Equal(t, f.branch.PointOfSale, payload.PointOfSale)
	require.Len(t, payload.TaxTotals, 1)
	assert.True(t, payload.TaxTotals[0].Rate.Equal(decimal.NewFromFloat(0.21)))
}

func TestGenerateForSale_Idempotent(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestInvoiceService(db, newFakeGateway(gatewayAccepts("70000000000001")))

	sale := completedSale(t, f, false)

	first, err := svc.GenerateForSale(sale.ID, "")
	require.NoError(t, err)
	second, err := svc.GenerateForSale(sale.ID, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&model.Invoice{}).Where("sale_id = ?", sale.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSubmitInvoice_RetryableFailuresUntilCeiling(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	gw := newFakeGateway(gatewayFails("NETWORK", true))
	svc := newTestInvoiceService(db, gw)

	sale := completedSale(t, f, false)

	// first attempt happens inside generation and leaves it PENDING
	invoice, err := svc.GenerateForSale(sale.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.FiscalPending, invoice.Status)
	assert.Equal(t, 1, invoice.RetryCount)
	assert.Contains(t, invoice.LastError, "scripted failure")

	// second retryable failure stays PENDING
	err = svc.SubmitInvoice(invoice)
	require.Error(t, err)
	assert.Equal(t, model.FiscalPending, invoice.Status)
	assert.Equal(t, 2, invoice.RetryCount)

	// third strike hits the ceiling and goes FAILED
	err = svc.SubmitInvoice(invoice)
	require.Error(t, err)
	assert.Equal(t, model.FiscalFailed, invoice.Status)
	assert.Equal(t, 3, invoice.RetryCount)

	// FAILED is terminal for automatic submission
	err = svc.SubmitInvoice(invoice)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvoiceNotRetriable, apperr.RuleCode(err))
	assert.Equal(t, 3, invoice.RetryCount)
}

func TestSubmitInvoice_NonRetryableFailsImmediately(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestInvoiceService(db, newFakeGateway(gatewayFails("INVALID_CUIT", false)))

	sale := completedSale(t, f, false)

	invoice, err := svc.GenerateForSale(sale.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.FiscalFailed, invoice.Status)
	assert.Equal(t, 1, invoice.RetryCount)
}

func TestSubmitInvoice_RecoversAfterFailure(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	gw := newFakeGateway(gatewayFails("HTTP_503", true), gatewayAccepts("79999999999999"))
	svc := newTestInvoiceService(db, gw)

	sale := completedSale(t, f, false)

	invoice, err := svc.GenerateForSale(sale.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.FiscalPending, invoice.Status)

	require.NoError(t, svc.SubmitInvoice(invoice))
	assert.Equal(t, model.FiscalIssued, invoice.Status)
	assert.Equal(t, "79999999999999", invoice.CAE)
	assert.Empty(t, invoice.LastError, "stale error cleared on success")
}

func TestRetryInvoice_OnlyPending(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	gw := newFakeGateway(gatewayFails("NETWORK", true), gatewayAccepts("70000000000002"))
	svc := newTestInvoiceService(db, gw)

	sale := completedSale(t, f, false)

	invoice, err := svc.GenerateForSale(sale.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.FiscalPending, invoice.Status)

	retried, err := svc.RetryInvoice(invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FiscalIssued, retried.Status)

	_, err = svc.RetryInvoice(invoice.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvoiceNotRetriable, apperr.RuleCode(err))
}

func TestInvoiceTypeDerivation(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestInvoiceService(db, newFakeGateway(gatewayAccepts("70000000000003")))

	// registered-business customer at an RI branch gets a type A
	sale := completedSale(t, f, true)
	invoice, err := svc.GenerateForSale(sale.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceTypeA, invoice.Type)
	assert.Equal(t, f.customer.TaxID, invoice.CustomerTaxID)

	// a monotributo branch always issues type C
	require.NoError(t, db.Model(f.branch).Update("fiscal_condition", model.FiscalMonotributo).Error)
	sale2 := completedSale(t, f, true)
	invoice2, err := svc.GenerateForSale(sale2.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceTypeC, invoice2.Type)
}

func TestGenerateForSale_TypeAFiscalDataMissing(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestInvoiceService(db, newFakeGateway(gatewayAccepts("70000000000004")))

	// strip the billing address: derivation still says A, validation must stop it
	require.NoError(t, db.Model(f.customer).Update("billing_address", "").Error)

	sale := completedSale(t, f, true)
	_, err := svc.GenerateForSale(sale.ID, "")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeFiscalDataMissing, apperr.RuleCode(err))

	// no row was created
	var count int64
	require.NoError(t, db.Model(&model.Invoice{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGenerateForSale_TypeABadTaxID(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestInvoiceService(db, newFakeGateway(gatewayAccepts("70000000000005")))

	require.NoError(t, db.Model(f.customer).Update("tax_id", "20-12345678-9").Error)

	sale := completedSale(t, f, true)
	_, err := svc.GenerateForSale(sale.ID, "")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeFiscalDataMissing, apperr.RuleCode(err))
}

func TestSubmitInvoice_VoidedAfterBatchRead(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	failing := newTestInvoiceService(db, newFakeGateway(gatewayFails("NETWORK", true)))

	sale := completedSale(t, f, false)
	invoice, err := failing.GenerateForSale(sale.ID, "")
	require.NoError(t, err)
	require.Equal(t, model.FiscalPending, invoice.Status)

	// a retry batch reads the row, then the sale is voided
	batch, err := failing.PendingInvoices(10)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	voids := newTestVoidService(db, nil)
	_, err = voids.VoidSale(sale.ID, &VoidRequest{Reason: "customer walked out"}, f.manager.ID.String())
	require.NoError(t, err)

	// submitting the stale copy must not resurrect the invoice
	gw := newFakeGateway(gatewayAccepts("70000000000008"))
	svc := newTestInvoiceService(db, gw)
	err = svc.SubmitInvoice(&batch[0])
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvoiceNotRetriable, apperr.RuleCode(err))
	assert.Zero(t, gw.calls, "cancelled invoices never reach the gateway")

	var got model.Invoice
	require.NoError(t, db.First(&got, "id = ?", invoice.ID).Error)
	assert.Equal(t, model.FiscalCancelled, got.Status)
	assert.Empty(t, got.CAE)
}

func TestSubmitInvoice_CancelledWhileGatewayCallInFlight(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	failing := newTestInvoiceService(db, newFakeGateway(gatewayFails("NETWORK", true)))

	sale := completedSale(t, f, false)
	invoice, err := failing.GenerateForSale(sale.ID, "")
	require.NoError(t, err)
	require.Equal(t, model.FiscalPending, invoice.Status)

	// the void lands after the pre-submit status check, while the
	// gateway call is in flight and about to come back accepted
	gw := newFakeGateway(gatewayAccepts("70000000000009"))
	gw.beforeReply = func() {
		require.NoError(t, db.Model(&model.Invoice{}).
			Where("id = ?", invoice.ID).
			Update("status", model.FiscalCancelled).Error)
	}
	svc := newTestInvoiceService(db, gw)

	err = svc.SubmitInvoice(invoice)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvoiceNotRetriable, apperr.RuleCode(err))
	assert.Equal(t, model.FiscalCancelled, invoice.Status)

	var got model.Invoice
	require.NoError(t, db.First(&got, "id = ?", invoice.ID).Error)
	assert.Equal(t, model.FiscalCancelled, got.Status)
	assert.Empty(t, got.CAE, "the accepted CAE must not land on a cancelled row")

	// the orphaned CAE needs human follow-up
	require.Eventually(t, func() bool {
		var count int64
		db.Model(&model.Alert{}).
			Where("type = ? AND severity = ?", model.AlertInvoiceFailed, model.SeverityCritical).
			Count(&count)
		return count == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestGenerateForSale_TypeOverride(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	gw := newFakeGateway(gatewayAccepts("70000000000010"))
	svc := newTestInvoiceService(db, gw)

	// derivation would say B for an anonymous sale at an RI branch;
	// the explicit override wins
	sale := completedSale(t, f, false)
	invoice, err := svc.GenerateForSale(sale.ID, model.InvoiceTypeC)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceTypeC, invoice.Type)
	assert.Equal(t, model.FiscalIssued, invoice.Status)

	require.Len(t, gw.invoicePayloads, 1)
	assert.Equal(t, "C", gw.invoicePayloads[0].Type)
}

func TestGenerateForSale_TypeOverrideStillValidated(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestInvoiceService(db, newFakeGateway(gatewayAccepts("70000000000011")))

	// forcing type A on an anonymous sale lacks the receiver data
	sale := completedSale(t, f, false)
	_, err := svc.GenerateForSale(sale.ID, model.InvoiceTypeA)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeFiscalDataMissing, apperr.RuleCode(err))

	var count int64
	require.NoError(t, db.Model(&model.Invoice{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateSale_InvoiceTypeRequestFlowsThrough(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	invoices := newTestInvoiceService(db, newFakeGateway(gatewayAccepts("70000000000012")))
	sales := newTestSaleService(db, invoices)

	req := simpleSaleRequest(f, 1, cashPayment(121))
	req.InvoiceType = model.InvoiceTypeC
	sale, err := sales.CreateSale(req, f.cashier.ID.String())
	require.NoError(t, err)

	// invoicing is handed off asynchronously
	require.Eventually(t, func() bool {
		invoice, err := invoices.GetInvoiceBySale(sale.ID)
		return err == nil && invoice.Type == model.InvoiceTypeC
	}, 2*time.Second, 20*time.Millisecond)
}

func TestGenerateCreditNote_MirrorsIssuedInvoice(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	gw := newFakeGateway(gatewayAccepts("70000000000006"))
	svc := newTestInvoiceService(db, gw)

	sale := completedSale(t, f, false)
	invoice, err := svc.GenerateForSale(sale.ID, "")
	require.NoError(t, err)
	require.Equal(t, model.FiscalIssued, invoice.Status)

	note, err := svc.GenerateCreditNote(invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FiscalIssued, note.Status)
	assert.Equal(t, invoice.Type, note.Type)
	assert.True(t, note.TotalAmount.Equal(invoice.TotalAmount))
	assert.Equal(t, int64(1), note.Number, "credit note numbering is its own sequence")

	require.Len(t, gw.creditPayloads, 1)
	ref := gw.creditPayloads[0].OriginalInvoice
	assert.Equal(t, string(invoice.Type), ref.Type)
	assert.Equal(t, invoice.Number, ref.Number)

	// a second trigger returns the same note
	again, err := svc.GenerateCreditNote(invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, note.ID, again.ID)
	assert.Len(t, gw.creditPayloads, 1)
}

func TestGenerateCreditNote_RequiresCAE(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestInvoiceService(db, newFakeGateway(gatewayFails("NETWORK", true)))

	sale := completedSale(t, f, false)
	invoice, err := svc.GenerateForSale(sale.ID, "")
	require.NoError(t, err)
	require.Equal(t, model.FiscalPending, invoice.Status)

	_, err = svc.GenerateCreditNote(invoice.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvoiceNotRetriable, apperr.RuleCode(err))
}

func TestGenerateForSale_RejectsVoidedSale(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestInvoiceService(db, newFakeGateway(gatewayAccepts("70000000000007")))
	voids := newTestVoidService(db, nil)

	sale := completedSale(t, f, false)
	_, err := voids.VoidSale(sale.ID, &VoidRequest{Reason: "before invoicing"}, f.manager.ID.String())
	require.NoError(t, err)

	_, err = svc.GenerateForSale(sale.ID, "")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeSaleAlreadyVoided, apperr.RuleCode(err))
}
