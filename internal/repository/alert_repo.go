package repository

import (
	"time"

	"go-retail-pos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AlertRepository interface {
	Create(alert *model.Alert) error
	FindAll(branchID *uuid.UUID, unreadOnly bool) ([]model.Alert, error)
	MarkRead(id uuid.UUID) error
}

type alertRepo struct {
	db *gorm.DB
}

func NewAlertRepo(db *gorm.DB) AlertRepository {
	return &alertRepo{db}
}

func (r *alertRepo) Create(alert *model.Alert) error {
	return r.db.Create(alert).Error
}

func (r *alertRepo) FindAll(branchID *uuid.UUID, unreadOnly bool) ([]model.Alert, error) {
	query := r.db.Order("created_at DESC")
	if branchID != nil {
		query = query.Where("branch_id = ?", *branchID)
	}
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}

	var alerts []model.Alert
	err := query.Find(&alerts).Error
	return alerts, err
}

func (r *alertRepo) MarkRead(id uuid.UUID) error {
	return r.db.Model(&model.Alert{}).
		Where("id = ?", id).
		Update("read_at", time.Now()).Error
}
