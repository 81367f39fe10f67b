package service

import (
	"log"

	"go-retail-pos/internal/model"
	"go-retail-pos/internal/repository"
	"go-retail-pos/internal/ws"

	"github.com/google/uuid"
)

// AlertService is the fire-and-forget alert sink. Raise never blocks
// the caller and never returns an error: failures are logged only, so
// an alert can never affect a committed sale or void.
type AlertService interface {
	Raise(alertType, severity string, branchID *uuid.UUID, refType string, refID *uuid.UUID, title, message string)
	GetAll(branchID *uuid.UUID, unreadOnly bool) ([]model.Alert, error)
	MarkRead(id uuid.UUID) error
}

type alertService struct {
	alertRepo repository.AlertRepository
	wsHub     *ws.Hub
}

func NewAlertService(alertRepo repository.AlertRepository, hub *ws.Hub) AlertService {
	return &alertService{alertRepo: alertRepo, wsHub: hub}
}

func (s *alertService) Raise(alertType, severity string, branchID *uuid.UUID, refType string, refID *uuid.UUID, title, message string) {
	go func() {
		alert := &model.Alert{
			Type:          alertType,
			Severity:      severity,
			BranchID:      branchID,
			ReferenceType: refType,
			ReferenceID:   refID,
			Title:         title,
			Message:       message,
		}
		alert.CreatedBy = "system"

		if err := s.alertRepo.Create(alert); err != nil {
			log.Printf("alert: failed to persist %s alert: %v", alertType, err)
			return
		}

		if s.wsHub != nil {
			s.wsHub.Publish("alert", alert)
		}
	}()
}

func (s *alertService) GetAll(branchID *uuid.UUID, unreadOnly bool) ([]model.Alert, error) {
	return s.alertRepo.FindAll(branchID, unreadOnly)
}

func (s *alertService) MarkRead(id uuid.UUID) error {
	return s.alertRepo.MarkRead(id)
}
