package models

import (
	"time"

	"gorm.io/gorm"
)

// InstallmentStatus represents the settlement state of an installment
type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "PENDING"
	InstallmentStatusPartial InstallmentStatus = "PARTIAL"
	InstallmentStatusPaid    InstallmentStatus = "PAID"
)

// Installment is a scheduled slice of an account's final fee. Successful
// payments are applied across installments oldest-due-first.
type Installment struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	AccountID  uint              `gorm:"index" json:"account_id"`
	Sequence   int               `json:"sequence"`
	DueDate    time.Time         `gorm:"index" json:"due_date"`
	Amount     float64           `gorm:"type:decimal(15,2)" json:"amount"`
	PaidAmount float64           `gorm:"type:decimal(15,2);default:0" json:"paid_amount"`
	Status     InstallmentStatus `gorm:"type:varchar(20);default:'PENDING'" json:"status"`
}

// Outstanding returns the unpaid portion of the installment.
func (i Installment) Outstanding() float64 {
	out := i.Amount - i.PaidAmount
	if out < 0 {
		return 0
	}
	return out
}
