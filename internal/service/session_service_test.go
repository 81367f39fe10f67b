package service

import (
	"testing"
	"time"

	"go-retail-pos/internal/apperr"
	"go-retail-pos/internal/model"
	"go-retail-pos/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestSessionService(db *gorm.DB) SessionService {
	return NewSessionService(
		repository.NewSessionRepo(db),
		repository.NewBranchRepo(db),
		NewAlertService(repository.NewAlertRepo(db), nil),
		nil,
		SessionConfig{
			WarningThreshold:  decimal.NewFromInt(100),
			CriticalThreshold: decimal.NewFromInt(1000),
		},
	)
}

func TestOpenSession(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestSessionService(db)

	session, err := svc.OpenSession(&OpenSessionRequest{
		BranchID:     f.branch.ID.String(),
		RegisterCode: "CAJA2",
		OpeningFloat: decimal.NewFromInt(500),
	}, f.cashier.ID.String())
	require.NoError(t, err)

	assert.Equal(t, model.SessionOpen, session.Status)
	assert.Equal(t, "CAJA2", session.RegisterCode)
	assert.True(t, session.OpeningFloat.Equal(decimal.NewFromInt(500)))
	assert.True(t, session.BusinessDate.Equal(businessDateOf(time.Now())))
	assert.Equal(t, f.cashier.ID, session.OpenedByID)
}

func TestOpenSession_RegisterAlreadyOpen(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestSessionService(db)

	// the fixture session already holds CAJA1 open
	_, err := svc.OpenSession(&OpenSessionRequest{
		BranchID:     f.branch.ID.String(),
		RegisterCode: "CAJA1",
	}, f.cashier.ID.String())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeSessionAlreadyOpen, apperr.RuleCode(err))
}

func TestOpenSession_NegativeFloatRejected(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestSessionService(db)

	_, err := svc.OpenSession(&OpenSessionRequest{
		BranchID:     f.branch.ID.String(),
		RegisterCode: "CAJA3",
		OpeningFloat: decimal.NewFromInt(-1),
	}, f.cashier.ID.String())
	require.Error(t, err)
	var verr *apperr.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCloseSession_BlindDeclaration(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	sales := newTestSaleService(db, nil)
	svc := newTestSessionService(db)

	// 242 cash and 121 card through the register
	_, err := sales.CreateSale(simpleSaleRequest(f, 2, cashPayment(242)), f.cashier.ID.String())
	require.NoError(t, err)
	cardReq := simpleSaleRequest(f, 1, SalePaymentRequest{
		Method:   model.PaymentCard,
		Amount:   decimal.NewFromInt(121),
		AuthCode: "AUTH001",
	})
	_, err = sales.CreateSale(cardReq, f.cashier.ID.String())
	require.NoError(t, err)

	// declare the exact count: opening float 1000 + 242 cash
	session, err := svc.CloseSession(f.session.ID, &CloseSessionRequest{
		DeclaredCash: decimal.NewFromInt(1242),
		DeclaredCard: decimal.NewFromInt(121),
	}, f.cashier.ID.String())
	require.NoError(t, err)

	assert.Equal(t, model.SessionClosed, session.Status)
	require.NotNil(t, session.ExpectedCash)
	assert.True(t, session.ExpectedCash.Equal(decimal.NewFromInt(1242)), "float plus cash sales, got %s", session.ExpectedCash)
	require.NotNil(t, session.ExpectedCard)
	assert.True(t, session.ExpectedCard.Equal(decimal.NewFromInt(121)))
	require.NotNil(t, session.Deviation)
	assert.True(t, session.Deviation.IsZero())
	require.NotNil(t, session.DeviationClassification)
	assert.Equal(t, model.DeviationNormal, *session.DeviationClassification)
	require.NotNil(t, session.ClosedByID)
	assert.Equal(t, f.cashier.ID, *session.ClosedByID)
}

func TestCloseSession_VoidedSaleNetsToZero(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	sales := newTestSaleService(db, nil)
	voids := newTestVoidService(db, nil)
	svc := newTestSessionService(db)

	sale, err := sales.CreateSale(simpleSaleRequest(f, 2, cashPayment(242)), f.cashier.ID.String())
	require.NoError(t, err)
	_, err = voids.VoidSale(sale.ID, &VoidRequest{Reason: "mispriced"}, f.manager.ID.String())
	require.NoError(t, err)

	// the reversal row cancels the original, so only the float remains
	session, err := svc.CloseSession(f.session.ID, &CloseSessionRequest{
		DeclaredCash: decimal.NewFromInt(1000),
	}, f.cashier.ID.String())
	require.NoError(t, err)
	require.NotNil(t, session.ExpectedCash)
	assert.True(t, session.ExpectedCash.Equal(decimal.NewFromInt(1000)), "got %s", session.ExpectedCash)
	assert.True(t, session.Deviation.IsZero())
}

func TestCloseSession_DeviationClassification(t *testing.T) {
	cases := []struct {
		name         string
		declaredCash int64
		want         string
		alertWanted  bool
	}{
		{"short by 50 is normal", 950, model.DeviationNormal, false},
		{"short by 100 is a warning", 900, model.DeviationWarning, true},
		{"over by 150 is a warning", 1150, model.DeviationWarning, true},
		{"short by 1000 is critical", 0, model.DeviationCritical, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := openTestDB(t)
			f := setupFixtures(t, db)
			svc := newTestSessionService(db)

			session, err := svc.CloseSession(f.session.ID, &CloseSessionRequest{
				DeclaredCash: decimal.NewFromInt(tc.declaredCash),
			}, f.cashier.ID.String())
			require.NoError(t, err)
			require.NotNil(t, session.DeviationClassification)
			assert.Equal(t, tc.want, *session.DeviationClassification)

			if tc.alertWanted {
				require.Eventually(t, func() bool {
					var count int64
					return db.Model(&model.Alert{}).
						Where("type = ?", model.AlertSessionDeviation).
						Count(&count).Error == nil && count == 1
				}, 2*time.Second, 20*time.Millisecond)
			}
		})
	}
}

func TestCloseSession_AlreadyClosed(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestSessionService(db)

	_, err := svc.CloseSession(f.session.ID, &CloseSessionRequest{
		DeclaredCash: decimal.NewFromInt(1000),
	}, f.cashier.ID.String())
	require.NoError(t, err)

	_, err = svc.CloseSession(f.session.ID, &CloseSessionRequest{}, f.cashier.ID.String())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeSessionClosed, apperr.RuleCode(err))
}

func TestGetCurrentSession(t *testing.T) {
	db := openTestDB(t)
	f := setupFixtures(t, db)
	svc := newTestSessionService(db)

	current, err := svc.GetCurrentSession(f.branch.ID, "CAJA1")
	require.NoError(t, err)
	assert.Equal(t, f.session.ID, current.ID)

	_, err = svc.GetCurrentSession(f.branch.ID, "CAJA9")
	require.Error(t, err)
}
