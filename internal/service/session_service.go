package service

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go-retail-pos/internal/apperr"
	"go-retail-pos/internal/model"
	"go-retail-pos/internal/repository"
	"go-retail-pos/internal/ws"
	"go-retail-pos/pkg/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OpenSessionRequest struct {
	BranchID     string          `json:"branch_id" validate:"uuid_required"`
	RegisterCode string          `json:"register_code" validate:"required,max=20"`
	OpeningFloat decimal.Decimal `json:"opening_float"`
}

// CloseSessionRequest carries the blind closing declaration: the
// cashier counts first, the system reveals expected totals after.
type CloseSessionRequest struct {
	DeclaredCash     decimal.Decimal `json:"declared_cash"`
	DeclaredCard     decimal.Decimal `json:"declared_card"`
	DeclaredQR       decimal.Decimal `json:"declared_qr"`
	DeclaredTransfer decimal.Decimal `json:"declared_transfer"`
}

// SessionConfig holds the deviation classification thresholds, in
// absolute pesos.
type SessionConfig struct {
	WarningThreshold  decimal.Decimal
	CriticalThreshold decimal.Decimal
}

func SessionConfigFromEnv() SessionConfig {
	cfg := SessionConfig{
		WarningThreshold:  decimal.NewFromInt(100),
		CriticalThreshold: decimal.NewFromInt(1000),
	}
	if v := os.Getenv("SESSION_DEVIATION_WARNING"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && d.IsPositive() {
			cfg.WarningThreshold = d
		}
	}
	if v := os.Getenv("SESSION_DEVIATION_CRITICAL"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && d.IsPositive() {
			cfg.CriticalThreshold = d
		}
	}
	return cfg
}

type SessionService interface {
	OpenSession(req *OpenSessionRequest, userID string) (*model.RegisterSession, error)
	CloseSession(id uuid.UUID, req *CloseSessionRequest, userID string) (*model.RegisterSession, error)
	GetSessionByID(id uuid.UUID) (*model.RegisterSession, error)
	GetCurrentSession(branchID uuid.UUID, registerCode string) (*model.RegisterSession, error)
	GetSessionsByBranch(branchID uuid.UUID) ([]model.RegisterSession, error)
}

type sessionService struct {
	sessionRepo repository.SessionRepository
	branchRepo  repository.BranchRepository
	alerts      AlertService
	wsHub       *ws.Hub
	cfg         SessionConfig
}

func NewSessionService(
	sessionRepo repository.SessionRepository,
	branchRepo repository.BranchRepository,
	alerts AlertService,
	hub *ws.Hub,
	cfg SessionConfig,
) SessionService {
	return &sessionService{
		sessionRepo: sessionRepo,
		branchRepo:  branchRepo,
		alerts:      alerts,
		wsHub:       hub,
		cfg:         cfg,
	}
}

func (s *sessionService) OpenSession(req *OpenSessionRequest, userID string) (*model.RegisterSession, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		firstErr := errs[0]
		return nil, apperr.Validation("field '%s' failed on tag '%s'", firstErr.FailedField, firstErr.Tag)
	}
	branchID, err := uuid.Parse(req.BranchID)
	if err != nil {
		return nil, apperr.Validation("invalid branch id")
	}
	openedBy, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperr.Validation("invalid user id")
	}
	if req.OpeningFloat.IsNegative() {
		return nil, apperr.Validation("opening float cannot be negative")
	}

	branch, err := s.branchRepo.FindByID(branchID)
	if err != nil {
		return nil, apperr.Validation("branch not found")
	}

	if _, err := s.sessionRepo.FindOpenByRegister(branchID, req.RegisterCode); err == nil {
		return nil, apperr.Rule(apperr.CodeSessionAlreadyOpen,
			"register %s already has an open session", req.RegisterCode)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now()
	session := &model.RegisterSession{
		BranchID:     branch.ID,
		RegisterCode: req.RegisterCode,
		OpenedByID:   openedBy,
		Status:       model.SessionOpen,
		BusinessDate: businessDateOf(now),
		OpeningFloat: req.OpeningFloat,
		OpenedAt:     now,
	}
	session.CreatedBy = userID

	if err := s.sessionRepo.Create(session); err != nil {
		return nil, err
	}

	if s.wsHub != nil {
		go s.wsHub.Publish("session_opened", map[string]interface{}{
			"id":            session.ID,
			"branch_id":     session.BranchID,
			"register_code": session.RegisterCode,
		})
	}
	return session, nil
}

// CloseSession computes expected totals from the payment ledger
// (reversal rows included), records the declared-vs-expected deviation,
// and classifies it. The declaration is accepted as given: discrepancy
// review happens on the recorded deviation, not by blocking the close.
func (s *sessionService) CloseSession(id uuid.UUID, req *CloseSessionRequest, userID string) (*model.RegisterSession, error) {
	closedBy, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperr.Validation("invalid user id")
	}

	session, err := s.sessionRepo.FindByID(id)
	if err != nil {
		return nil, apperr.Validation("session not found")
	}
	if session.Status != model.SessionOpen {
		return nil, apperr.Rule(apperr.CodeSessionClosed, "session is already closed")
	}

	totals, err := s.sessionRepo.SumPaymentsByMethod(session.ID)
	if err != nil {
		return nil, err
	}
	expectedCash := session.OpeningFloat.Add(totals[model.PaymentCash])
	expectedCard := totals[model.PaymentCard]
	expectedQR := totals[model.PaymentQR]
	expectedTransfer := totals[model.PaymentTransfer]

	deviation := req.DeclaredCash.Sub(expectedCash).
		Add(req.DeclaredCard.Sub(expectedCard)).
		Add(req.DeclaredQR.Sub(expectedQR)).
		Add(req.DeclaredTransfer.Sub(expectedTransfer))
	classification := s.classifyDeviation(deviation)

	now := time.Now()
	session.Status = model.SessionClosed
	session.ClosedByID = &closedBy
	session.ClosedAt = &now
	session.DeclaredCash = &req.DeclaredCash
	session.DeclaredCard = &req.DeclaredCard
	session.DeclaredQR = &req.DeclaredQR
	session.DeclaredTransfer = &req.DeclaredTransfer
	session.ExpectedCash = &expectedCash
	session.ExpectedCard = &expectedCard
	session.ExpectedQR = &expectedQR
	session.ExpectedTransfer = &expectedTransfer
	session.Deviation = &deviation
	session.DeviationClassification = &classification
	session.UpdatedBy = userID

	if err := s.sessionRepo.Update(session); err != nil {
		return nil, err
	}

	if classification != model.DeviationNormal {
		severity := model.SeverityWarning
		if classification == model.DeviationCritical {
			severity = model.SeverityCritical
		}
		s.alerts.Raise(model.AlertSessionDeviation, severity, &session.BranchID,
			"register_session", &session.ID,
			fmt.Sprintf("Register %s closed with %s deviation", session.RegisterCode, classification),
			fmt.Sprintf("declared vs expected differs by %s", deviation.StringFixed(2)))
	}

	if s.wsHub != nil {
		go s.wsHub.Publish("session_closed", map[string]interface{}{
			"id":            session.ID,
			"register_code": session.RegisterCode,
			"deviation":     deviation,
		})
	}
	return session, nil
}

func (s *sessionService) classifyDeviation(deviation decimal.Decimal) string {
	abs := deviation.Abs()
	switch {
	case abs.GreaterThanOrEqual(s.cfg.CriticalThreshold):
		return model.DeviationCritical
	case abs.GreaterThanOrEqual(s.cfg.WarningThreshold):
		return model.DeviationWarning
	default:
		return model.DeviationNormal
	}
}

func (s *sessionService) GetSessionByID(id uuid.UUID) (*model.RegisterSession, error) {
	return s.sessionRepo.FindByID(id)
}

func (s *sessionService) GetCurrentSession(branchID uuid.UUID, registerCode string) (*model.RegisterSession, error) {
	return s.sessionRepo.FindOpenByRegister(branchID, registerCode)
}

func (s *sessionService) GetSessionsByBranch(branchID uuid.UUID) ([]model.RegisterSession, error) {
	return s.sessionRepo.FindByBranch(branchID)
}
