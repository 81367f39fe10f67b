package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// User represents an authenticated user in the system
type User struct {
	BaseModel
	Email       string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email" validate:"required,email"`
	Password    string     `gorm:"type:varchar(255);not null" json:"-"` // Hidden from JSON
	FullName    string     `gorm:"type:varchar(255)" json:"full_name" validate:"required"`
	PhoneNumber string     `gorm:"type:varchar(20)" json:"phone_number"`
	BirthDate   *time.Time `gorm:"type:date" json:"birth_date,omitempty"`

	RoleID *uint `gorm:"index" json:"role_id"`
	Role   *Role `gorm:"foreignKey:RoleID" json:"role,omitempty"`

	BranchID *uuid.UUID `gorm:"type:uuid;index" json:"branch_id,omitempty"`
	Branch   *Branch    `gorm:"foreignKey:BranchID" json:"branch,omitempty"`

	// DiscountLimitPct is the maximum sale-level discount this user can
	// apply without supervisor authorization.
	DiscountLimitPct decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"discount_limit_pct"`

	// PINHash holds the bcrypt hash of the supervisor override PIN.
	// Empty means the user cannot authorize overrides by PIN.
	PINHash string `gorm:"type:varchar(255)" json:"-"`

	IsActive     bool        `gorm:"default:true" json:"is_active"`
	Privileges   []Privilege `gorm:"many2many:user_privileges;" json:"privileges,omitempty"`
	TokenVersion string      `gorm:"type:varchar(255);default:''" json:"-"` // For single session enforcement
	LastSeenAt   *time.Time  `json:"last_seen_at,omitempty"`                // For user presence
}

// SetPassword hashes and sets the user's password
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword verifies if the provided password matches the stored hash
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// SetPIN hashes and sets the supervisor override PIN
func (u *User) SetPIN(pin string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PINHash = string(hashed)
	return nil
}

// CheckPIN verifies a supervisor PIN against the stored hash
func (u *User) CheckPIN(pin string) bool {
	if u.PINHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PINHash), []byte(pin)) == nil
}

// HasPrivilege checks if the user has a specific privilege
func (u *User) HasPrivilege(code string) bool {
	for _, p := range u.Privileges {
		if p.Code == code {
			return true
		}
	}
	return false
}

// GetPrivilegeCodes returns a slice of all privilege codes for this user
func (u *User) GetPrivilegeCodes() []string {
	codes := make([]string, len(u.Privileges))
	for i, p := range u.Privileges {
		codes[i] = p.Code
	}
	return codes
}

// UserResponse is used for API responses (without sensitive data)
type UserResponse struct {
	ID               uuid.UUID       `json:"id"`
	Email            string          `json:"email"`
	FullName         string          `json:"full_name"`
	PhoneNumber      string          `json:"phone_number"`
	BirthDate        *time.Time      `json:"birth_date,omitempty"`
	RoleID           *uint           `json:"role_id,omitempty"`
	Role             *Role           `json:"role,omitempty"`
	BranchID         *uuid.UUID      `json:"branch_id,omitempty"`
	DiscountLimitPct decimal.Decimal `json:"discount_limit_pct"`
	HasPIN           bool            `json:"has_pin"`
	IsActive         bool            `json:"is_active"`
	LastSeenAt       *time.Time      `json:"last_seen_at,omitempty"`
	Privileges       []Privilege     `json:"privileges"`
}

// ToResponse converts User to UserResponse
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:               u.ID,
		Email:            u.Email,
		FullName:         u.FullName,
		PhoneNumber:      u.PhoneNumber,
		BirthDate:        u.BirthDate,
		RoleID:           u.RoleID,
		Role:             u.Role,
		BranchID:         u.BranchID,
		DiscountLimitPct: u.DiscountLimitPct,
		HasPIN:           u.PINHash != "",
		IsActive:         u.IsActive,
		LastSeenAt:       u.LastSeenAt,
		Privileges:       u.Privileges,
	}
}
