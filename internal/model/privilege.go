package model

// Privilege represents a permission that can be assigned to users
type Privilege struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Code string `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // e.g., "sale:create"
	Name string `gorm:"type:varchar(100)" json:"name"`                     // e.g., "Create Sale"
}

// Privilege codes used directly by the core engines
const (
	PrivSaleCreate   = "sale:create"
	PrivSaleVoid     = "sale:void"
	PrivSaleDiscount = "sale:discount"
)

// Default privileges for the system
var DefaultPrivileges = []Privilege{
	// User management
	{Code: "user:view", Name: "View User"},
	{Code: "user:create", Name: "Create User"},
	{Code: "user:update", Name: "Update User"},
	{Code: "user:delete", Name: "Delete User"},
	{Code: "user:update_privilege", Name: "Update User Privileges"},
	// Branch management
	{Code: "branch:view", Name: "View Branch"},
	{Code: "branch:create", Name: "Create Branch"},
	{Code: "branch:update", Name: "Update Branch"},
	// Product management
	{Code: "product:view", Name: "View Product"},
	{Code: "product:create", Name: "Create Product"},
	{Code: "product:update", Name: "Update Product"},
	{Code: "stock:adjust", Name: "Adjust Stock"},
	// Customer management
	{Code: "customer:view", Name: "View Customer"},
	{Code: "customer:create", Name: "Create Customer"},
	{Code: "customer:update", Name: "Update Customer"},
	// Sales
	{Code: PrivSaleCreate, Name: "Create Sale"},
	{Code: "sale:view", Name: "View Sale"},
	{Code: PrivSaleVoid, Name: "Void Sale"},
	{Code: PrivSaleDiscount, Name: "Give Discount"},
	// Register sessions
	{Code: "session:open", Name: "Open Register Session"},
	{Code: "session:close", Name: "Close Register Session"},
	{Code: "session:view", Name: "View Register Session"},
	// Fiscal documents
	{Code: "invoice:view", Name: "View Invoice"},
	{Code: "invoice:retry", Name: "Retry Invoice Submission"},
	// Alerts & reports
	{Code: "alert:view", Name: "View Alert"},
	{Code: "report:view", Name: "View Report"},
}
