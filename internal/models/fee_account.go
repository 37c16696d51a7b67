package models

import (
	"time"

	"gorm.io/gorm"
)

// FeeAccount represents the fee ledger for one enrolled student in one term
type FeeAccount struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	GuardianID       uint    `gorm:"index" json:"guardian_id"`
	StudentName      string  `gorm:"type:varchar(255)" json:"student_name"`
	Term             string  `gorm:"type:varchar(100)" json:"term"` // e.g., "2026 Term 1"
	TotalFee         float64 `gorm:"type:decimal(15,2)" json:"total_fee"`
	DiscountPercent  float64 `gorm:"type:decimal(5,2)" json:"discount_percent"`
	InstallmentCount int     `gorm:"default:1" json:"installment_count"`

	// Relationships
	Guardian     Guardian       `gorm:"foreignKey:GuardianID" json:"guardian,omitempty"`
	Components   []FeeComponent `gorm:"foreignKey:AccountID" json:"components,omitempty"`
	ExtraFees    []ExtraFee     `gorm:"foreignKey:AccountID" json:"extra_fees,omitempty"`
	Installments []Installment  `gorm:"foreignKey:AccountID" json:"installments,omitempty"`
	Payments     []Payment      `gorm:"foreignKey:AccountID" json:"payments,omitempty"`
	Refunds      []Refund       `gorm:"foreignKey:AccountID" json:"refunds,omitempty"`
}

// FeeComponent is a named base-fee line item, immutable once created
type FeeComponent struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	AccountID uint    `gorm:"index" json:"account_id"`
	Name      string  `gorm:"type:varchar(255)" json:"name"` // e.g., "Tuition", "Transport"
	Amount    float64 `gorm:"type:decimal(15,2)" json:"amount"`
}

// ExtraFee is a supplemental charge such as a late fee, added on top of the
// discounted base fee
type ExtraFee struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	AccountID uint    `gorm:"index" json:"account_id"`
	Name      string  `gorm:"type:varchar(255)" json:"name"`
	Amount    float64 `gorm:"type:decimal(15,2)" json:"amount"`
}
