package model

// FiscalCondition values accepted for branches and customers.
const (
	FiscalResponsableInscripto = "RESPONSABLE_INSCRIPTO"
	FiscalMonotributo          = "MONOTRIBUTO"
	FiscalConsumidorFinal      = "CONSUMIDOR_FINAL"
	FiscalExento               = "EXENTO"
)

// Branch is a physical store location. PointOfSale is the fiscal
// point-of-sale number registered with the invoicing gateway.
type Branch struct {
	BaseModel
	Code            string `gorm:"type:varchar(10);uniqueIndex;not null" json:"code" validate:"required"`
	Name            string `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Address         string `gorm:"type:varchar(255)" json:"address"`
	PointOfSale     int    `gorm:"not null;default:1" json:"point_of_sale"`
	TaxID           string `gorm:"type:varchar(20)" json:"tax_id"`
	FiscalCondition string `gorm:"type:varchar(30);default:'RESPONSABLE_INSCRIPTO'" json:"fiscal_condition"`
	IsActive        bool   `gorm:"default:true" json:"is_active"`
}
