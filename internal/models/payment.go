package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentGateway identifies the gateway a transaction went through
type PaymentGateway string

const (
	PaymentGatewayMidtrans PaymentGateway = "midtrans"
	PaymentGatewayManual   PaymentGateway = "manual"
)

// PaymentStatus represents the lifecycle state of a gateway transaction.
// A payment starts PENDING and moves to exactly one terminal state at
// verification; terminal payments are never mutated again.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// IsTerminal reports whether the status is SUCCESS or FAILED.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

// Payment records one attempted or completed gateway transaction against a
// fee account. Amount is fixed at creation; only Status and TransactionID
// change, once, when the gateway outcome is reconciled.
type Payment struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	AccountID      uint           `gorm:"index" json:"account_id"`
	GuardianID     uint           `gorm:"index" json:"guardian_id"`
	Amount         float64        `gorm:"type:decimal(15,2)" json:"amount"`
	Gateway        PaymentGateway `gorm:"type:varchar(50)" json:"gateway"`
	GatewayOrderID string         `gorm:"type:varchar(100);index" json:"gateway_order_id"`
	Status         PaymentStatus  `gorm:"type:varchar(20);default:'PENDING';index" json:"status"`
	TransactionID  string         `gorm:"type:varchar(100)" json:"transaction_id"`
	Channel        string         `gorm:"type:varchar(100)" json:"channel"` // e.g., "bank_transfer", "qris"

	// Relationships
	Account  FeeAccount `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	Guardian Guardian   `gorm:"foreignKey:GuardianID" json:"guardian,omitempty"`
	Refunds  []Refund   `gorm:"foreignKey:PaymentID" json:"refunds,omitempty"`
}
