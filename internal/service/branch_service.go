package service

import (
	"go-retail-pos/internal/apperr"
	"go-retail-pos/internal/model"
	"go-retail-pos/internal/repository"
	"go-retail-pos/pkg/validator"

	"github.com/google/uuid"
)

type BranchService interface {
	CreateBranch(req *model.Branch, userID string) error
	UpdateBranch(id uuid.UUID, req *model.Branch, userID string) (*model.Branch, error)
	GetAllBranches() ([]model.Branch, error)
	GetBranchByID(id uuid.UUID) (*model.Branch, error)
}

type branchService struct {
	branchRepo repository.BranchRepository
}

func NewBranchService(branchRepo repository.BranchRepository) BranchService {
	return &branchService{branchRepo: branchRepo}
}

func (s *branchService) CreateBranch(req *model.Branch, userID string) error {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		firstErr := errs[0]
		return apperr.Validation("field '%s' failed on tag '%s'", firstErr.FailedField, firstErr.Tag)
	}
	existing, _ := s.branchRepo.FindByCode(req.Code)
	if existing != nil && existing.ID != uuid.Nil {
		return apperr.Validation("branch code already exists")
	}
	req.CreatedBy = userID
	req.UpdatedBy = userID
	return s.branchRepo.Create(req)
}

func (s *branchService) UpdateBranch(id uuid.UUID, req *model.Branch, userID string) (*model.Branch, error) {
	existing, err := s.branchRepo.FindByID(id)
	if err != nil {
		return nil, apperr.Validation("branch not found")
	}

	existing.Name = req.Name
	existing.Address = req.Address
	existing.PointOfSale = req.PointOfSale
	existing.TaxID = req.TaxID
	existing.FiscalCondition = req.FiscalCondition
	existing.IsActive = req.IsActive
	existing.UpdatedBy = userID

	if err := s.branchRepo.Update(existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *branchService) GetAllBranches() ([]model.Branch, error) {
	return s.branchRepo.FindAll()
}

func (s *branchService) GetBranchByID(id uuid.UUID) (*model.Branch, error) {
	return s.branchRepo.FindByID(id)
}
