package models

import (
	"time"

	"gorm.io/gorm"
)

// GuardianRole represents the role of a portal user
type GuardianRole string

const (
	GuardianRoleAdmin    GuardianRole = "Admin"
	GuardianRoleGuardian GuardianRole = "Guardian"
)

// Guardian represents a parent/guardian account in the portal
type Guardian struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name  string       `gorm:"type:varchar(255)" json:"name"`
	Phone string       `gorm:"type:varchar(50)" json:"phone"`
	Email string       `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	Role  GuardianRole `gorm:"type:varchar(20);default:'Guardian'" json:"role"`

	// Receipt notification preferences
	NotifyByEmail    bool `gorm:"default:true" json:"notify_by_email"`
	NotifyByWhatsApp bool `gorm:"default:false" json:"notify_by_whatsapp"`

	// Relationships
	FeeAccounts []FeeAccount `gorm:"foreignKey:GuardianID" json:"fee_accounts,omitempty"`
	Payments    []Payment    `gorm:"foreignKey:GuardianID" json:"payments,omitempty"`
}
