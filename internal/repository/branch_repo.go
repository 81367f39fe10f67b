package repository

import (
	"go-retail-pos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BranchRepository interface {
	Create(branch *model.Branch) error
	FindAll() ([]model.Branch, error)
	FindByID(id uuid.UUID) (*model.Branch, error)
	FindByCode(code string) (*model.Branch, error)
	Update(branch *model.Branch) error
}

type branchRepo struct {
	db *gorm.DB
}

func NewBranchRepo(db *gorm.DB) BranchRepository {
	return &branchRepo{db}
}

func (r *branchRepo) Create(branch *model.Branch) error {
	return r.db.Create(branch).Error
}

func (r *branchRepo) FindAll() ([]model.Branch, error) {
	var branches []model.Branch
	err := r.db.Find(&branches).Error
	return branches, err
}

func (r *branchRepo) FindByID(id uuid.UUID) (*model.Branch, error) {
	var branch model.Branch
	err := r.db.First(&branch, "id = ?", id).Error
	return &branch, err
}

func (r *branchRepo) FindByCode(code string) (*model.Branch, error) {
	var branch model.Branch
	err := r.db.First(&branch, "code = ?", code).Error
	return &branch, err
}

func (r *branchRepo) Update(branch *model.Branch) error {
	return r.db.Save(branch).Error
}
