package models

import (
	"time"

	"gorm.io/gorm"
)

// RefundStatus represents the state of a recorded refund
type RefundStatus string

const (
	RefundStatusPending RefundStatus = "PENDING"
	RefundStatusSuccess RefundStatus = "SUCCESS"
)

// Refund records a manual reversal against a specific successful payment.
// Refunds are created by administrators; the orchestration flow only reads
// them when computing the account balance.
type Refund struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	AccountID  uint         `gorm:"index" json:"account_id"`
	PaymentID  uint         `gorm:"index" json:"payment_id"`
	Amount     float64      `gorm:"type:decimal(15,2)" json:"amount"`
	Status     RefundStatus `gorm:"type:varchar(20);default:'SUCCESS'" json:"status"`
	Note       string       `gorm:"type:varchar(255)" json:"note"`
	RefundDate time.Time    `json:"refund_date"`

	// Relationships
	Account FeeAccount `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	Payment Payment    `gorm:"foreignKey:PaymentID" json:"payment,omitempty"`
}
