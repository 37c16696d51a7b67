package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// GatewayVerificationLog is an audit record of one verify call against the
// gateway, keeping the raw status payload alongside the applied outcome.
type GatewayVerificationLog struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	PaymentGateway PaymentGateway  `gorm:"type:varchar(50);not null" json:"payment_gateway"`
	GatewayOrderID string          `gorm:"type:varchar(100);index" json:"gateway_order_id"`
	Outcome        string          `gorm:"type:varchar(50)" json:"outcome"`
	Metadata       json.RawMessage `gorm:"type:jsonb" json:"metadata"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`
}
