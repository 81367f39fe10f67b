package service

import (
	"context"
	"testing"
	"time"

	"go-retail-pos/internal/apperr"
	"go-retail-pos/internal/fiscal"
	"go-retail-pos/internal/model"
	"go-retail-pos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// A shared in-memory database disappears when its last connection
	// closes, so the pool is pinned to one.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Privilege{}, &model.Role{},
		&model.Branch{}, &model.Product{}, &model.BranchStock{},
		&model.Customer{}, &model.RegisterSession{},
		&model.Sale{}, &model.SaleItem{}, &model.SalePayment{},
		&model.StockMovement{},
		&model.LoyaltyTransaction{}, &model.CreditTransaction{},
		&model.Invoice{}, &model.CreditNote{}, &model.DocumentSequence{},
		&model.Alert{},
	))
	return db
}

// fixtures is the standing cast used by most service tests: one
// branch, one register session, one tax-inclusive product with stock,
// a cashier, a manager with a PIN, and a customer.
type fixtures struct {
	db *gorm.DB

	branch   *model.Branch
	product  *model.Product
	stock    *model.BranchStock
	session  *model.RegisterSession
	cashier  *model.User
	manager  *model.User
	customer *model.Customer

	privSaleCreate   model.Privilege
	privSaleVoid     model.Privilege
	privSaleDiscount model.Privilege
}

func setupFixtures(t *testing.T, db *gorm.DB) *fixtures {
	t.Helper()
	f := &fixtures{db: db}

	f.privSaleCreate = model.Privilege{Code: model.PrivSaleCreate, Name: "Create Sale"}
	f.privSaleVoid = model.Privilege{Code: model.PrivSaleVoid, Name: "Void Sale"}
	f.privSaleDiscount = model.Privilege{Code: model.PrivSaleDiscount, Name: "Give Discount"}
	require.NoError(t, db.Create(&f.privSaleCreate).Error)
	require.NoError(t, db.Create(&f.privSaleVoid).Error)
	require.NoError(t, db.Create(&f.privSaleDiscount).Error)

	f.branch = &model.Branch{
		Code:            "001",
		Name:            "Casa Central",
		PointOfSale:     3,
		TaxID:           "30500001239",
		FiscalCondition: model.FiscalResponsableInscripto,
		IsActive:        true,
	}
	require.NoError(t, db.Create(f.branch).Error)

	f.product = &model.Product{
		SKU:               "YM-500",
		Name:              "Yerba Mate 500g",
		Unit:              "un",
		Price:             decimal.NewFromInt(121),
		TaxRate:           decimal.NewFromFloat(0.21),
		TaxInclusive:      true,
		LowStockThreshold: 2,
		IsActive:          true,
	}
	require.NoError(t, db.Create(f.product).Error)

	f.stock = &model.BranchStock{
		BranchID:  f.branch.ID,
		ProductID: f.product.ID,
		OnHand:    10,
	}
	require.NoError(t, db.Create(f.stock).Error)

	f.cashier = &model.User{
		Email:            "cashier@test.local",
		FullName:         "Test Cashier",
		IsActive:         true,
		DiscountLimitPct: decimal.NewFromInt(5),
		Privileges:       []model.Privilege{f.privSaleCreate},
	}
	require.NoError(t, f.cashier.SetPassword("secret"))
	require.NoError(t, db.Create(f.cashier).Error)

	f.manager = &model.User{
		Email:            "manager@test.local",
		FullName:         "Test Manager",
		IsActive:         true,
		DiscountLimitPct: decimal.NewFromInt(50),
		Privileges:       []model.Privilege{f.privSaleCreate, f.privSaleVoid, f.privSaleDiscount},
	}
	require.NoError(t, f.manager.SetPassword("secret"))
	require.NoError(t, f.manager.SetPIN("4321"))
	require.NoError(t, db.Create(f.manager).Error)

	f.customer = &model.Customer{
		Name:            "Gonzalez Mayorista SRL",
		TaxID:           "30712345675",
		FiscalCondition: model.FiscalResponsableInscripto,
		BillingAddress:  "Av. Mitre 1500, Avellaneda",
		PointsBalance:   100,
		CreditBalance:   decimal.NewFromInt(50),
		IsActive:        true,
	}
	require.NoError(t, db.Create(f.customer).Error)

	f.session = openFixtureSession(t, db, f.branch.ID, f.cashier.ID, "CAJA1", time.Now())
	return f
}

func openFixtureSession(t *testing.T, db *gorm.DB, branchID, openedBy uuid.UUID, register string, day time.Time) *model.RegisterSession {
	t.Helper()
	session := &model.RegisterSession{
		BranchID:     branchID,
		RegisterCode: register,
		OpenedByID:   openedBy,
		Status:       model.SessionOpen,
		BusinessDate: businessDateOf(day),
		OpeningFloat: decimal.NewFromInt(1000),
		OpenedAt:     day,
	}
	require.NoError(t, db.Create(session).Error)
	return session
}

// newTestSaleService wires a sale service with no hub and, unless a
// gateway-backed invoice service is supplied, no invoice hand-off, so
// tests stay deterministic.
func newTestSaleService(db *gorm.DB, invoices InvoiceService) SaleService {
	userRepo := repository.NewUserRepo(db)
	return NewSaleService(
		db,
		repository.NewSaleRepo(db),
		repository.NewProductRepo(db),
		repository.NewStockRepo(db),
		repository.NewLedgerRepo(db),
		repository.NewCustomerRepo(db),
		repository.NewSequenceRepo(db),
		userRepo,
		NewDiscountPolicy(userRepo),
		invoices,
		NewAlertService(repository.NewAlertRepo(db), nil),
		nil,
		SaleConfig{EarnDivisor: decimal.NewFromInt(100), PointValue: decimal.NewFromInt(1)},
	)
}

func newTestVoidService(db *gorm.DB, invoices InvoiceService) VoidService {
	return NewVoidService(
		db,
		repository.NewSaleRepo(db),
		repository.NewProductRepo(db),
		repository.NewStockRepo(db),
		repository.NewLedgerRepo(db),
		repository.NewCustomerRepo(db),
		repository.NewUserRepo(db),
		invoices,
		NewAlertService(repository.NewAlertRepo(db), nil),
		nil,
	)
}

func newTestInvoiceService(db *gorm.DB, gateway fiscal.Gateway) InvoiceService {
	return NewInvoiceService(
		db,
		repository.NewInvoiceRepo(db),
		repository.NewSaleRepo(db),
		repository.NewSequenceRepo(db),
		gateway,
		NewAlertService(repository.NewAlertRepo(db), nil),
		nil,
		5*time.Second,
	)
}

// fakeGateway replays scripted outcomes in order; the last script
// entry repeats once exhausted.
type fakeGateway struct {
	scripts         []fakeOutcome
	calls           int
	invoicePayloads []fiscal.InvoicePayload
	creditPayloads  []fiscal.CreditNotePayload

	// beforeReply, when set, runs after the payload is recorded and
	// before the scripted outcome is returned. Tests use it to mutate
	// state while a submission is in flight.
	beforeReply func()
}

type fakeOutcome struct {
	result *fiscal.Result
	err    error
}

func gatewayAccepts(cae string) fakeOutcome {
	return fakeOutcome{result: &fiscal.Result{
		CAE:           cae,
		CAEExpiration: time.Now().AddDate(0, 0, 10),
		GatewayID:     "gw-" + cae,
	}}
}

func gatewayFails(code string, retryable bool) fakeOutcome {
	return fakeOutcome{err: apperr.Gateway(code, "scripted failure", retryable)}
}

func newFakeGateway(scripts ...fakeOutcome) *fakeGateway {
	return &fakeGateway{scripts: scripts}
}

func (g *fakeGateway) next() (*fiscal.Result, error) {
	if g.beforeReply != nil {
		g.beforeReply()
	}
	idx := g.calls
	if idx >= len(g.scripts) {
		idx = len(g.scripts) - 1
	}
	g.calls++
	out := g.scripts[idx]
	return out.result, out.err
}

func (g *fakeGateway) SubmitInvoice(_ context.Context, payload fiscal.InvoicePayload) (*fiscal.Result, error) {
	g.invoicePayloads = append(g.invoicePayloads, payload)
	return g.next()
}

func (g *fakeGateway) SubmitCreditNote(_ context.Context, payload fiscal.CreditNotePayload) (*fiscal.Result, error) {
	g.creditPayloads = append(g.creditPayloads, payload)
	return g.next()
}

func cashPayment(amount int64) SalePaymentRequest {
	return SalePaymentRequest{Method: model.PaymentCash, Amount: decimal.NewFromInt(amount)}
}

func simpleSaleRequest(f *fixtures, qty int, payments ...SalePaymentRequest) *CreateSaleRequest {
	return &CreateSaleRequest{
		SessionID: f.session.ID.String(),
		Items: []SaleItemRequest{
			{ProductID: f.product.ID.String(), Quantity: qty},
		},
		Payments: payments,
	}
}

func strPtr(s string) *string { return &s }
