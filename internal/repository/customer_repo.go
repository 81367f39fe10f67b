package repository

import (
	"go-retail-pos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CustomerRepository interface {
	Create(customer *model.Customer) error
	FindAll() ([]model.Customer, error)
	FindByID(id uuid.UUID) (*model.Customer, error)
	Update(customer *model.Customer) error

	// FindForUpdate locks the customer row inside the caller's
	// transaction so balance checks and ledger writes are consistent.
	FindForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Customer, error)
	UpdateBalances(tx *gorm.DB, customer *model.Customer) error
}

type customerRepo struct {
	db *gorm.DB
}

func NewCustomerRepo(db *gorm.DB) CustomerRepository {
	return &customerRepo{db}
}

func (r *customerRepo) Create(customer *model.Customer) error {
	return r.db.Create(customer).Error
}

func (r *customerRepo) FindAll() ([]model.Customer, error) {
	var customers []model.Customer
	err := r.db.Find(&customers).Error
	return customers, err
}

func (r *customerRepo) FindByID(id uuid.UUID) (*model.Customer, error) {
	var customer model.Customer
	err := r.db.First(&customer, "id = ?", id).Error
	return &customer, err
}

func (r *customerRepo) Update(customer *model.Customer) error {
	return r.db.Save(customer).Error
}

func (r *customerRepo) FindForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Customer, error) {
	var customer model.Customer
	err := tx.Set("gorm:query_option", "FOR UPDATE").First(&customer, "id = ?", id).Error
	return &customer, err
}

func (r *customerRepo) UpdateBalances(tx *gorm.DB, customer *model.Customer) error {
	return tx.Model(&model.Customer{}).
		Where("id = ?", customer.ID).
		Updates(map[string]interface{}{
			"points_balance": customer.PointsBalance,
			"credit_balance": customer.CreditBalance,
		}).Error
}
