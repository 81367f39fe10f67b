package repository

import (
	"go-retail-pos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SessionRepository interface {
	Create(session *model.RegisterSession) error
	FindByID(id uuid.UUID) (*model.RegisterSession, error)
	FindOpenByRegister(branchID uuid.UUID, registerCode string) (*model.RegisterSession, error)
	Update(session *model.RegisterSession) error
	FindByBranch(branchID uuid.UUID) ([]model.RegisterSession, error)

	// SumPaymentsByMethod totals the payment ledger for one session,
	// reversal rows included, so expected closing totals reflect voids.
	SumPaymentsByMethod(sessionID uuid.UUID) (map[model.PaymentMethod]decimal.Decimal, error)
}

type sessionRepo struct {
	db *gorm.DB
}

func NewSessionRepo(db *gorm.DB) SessionRepository {
	return &sessionRepo{db}
}

func (r *sessionRepo) Create(session *model.RegisterSession) error {
	return r.db.Create(session).Error
}

func (r *sessionRepo) FindByID(id uuid.UUID) (*model.RegisterSession, error) {
	var session model.RegisterSession
	err := r.db.Preload("Branch").First(&session, "id = ?", id).Error
	return &session, err
}

func (r *sessionRepo) FindOpenByRegister(branchID uuid.UUID, registerCode string) (*model.RegisterSession, error) {
	var session model.RegisterSession
	err := r.db.Preload("Branch").
		Where("branch_id = ? AND register_code = ? AND status = ?", branchID, registerCode, model.SessionOpen).
		First(&session).Error
	return &session, err
}

func (r *sessionRepo) Update(session *model.RegisterSession) error {
	return r.db.Save(session).Error
}

func (r *sessionRepo) FindByBranch(branchID uuid.UUID) ([]model.RegisterSession, error) {
	var sessions []model.RegisterSession
	err := r.db.Where("branch_id = ?", branchID).Order("opened_at DESC").Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepo) SumPaymentsByMethod(sessionID uuid.UUID) (map[model.PaymentMethod]decimal.Decimal, error) {
	type row struct {
		Method string
		Total  decimal.Decimal
	}
	var rows []row
	err := r.db.Model(&model.SalePayment{}).
		Select("sale_payments.method AS method, COALESCE(SUM(sale_payments.amount), 0) AS total").
		Joins("JOIN sales ON sales.id = sale_payments.sale_id").
		Where("sales.session_id = ?", sessionID).
		Group("sale_payments.method").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	totals := make(map[model.PaymentMethod]decimal.Decimal, len(rows))
	for _, row := range rows {
		totals[model.PaymentMethod(row.Method)] = row.Total
	}
	return totals, nil
}
