package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// PendingOrderTTL is how long a pending order stays valid after creation.
// Orders older than this are rejected at verification and swept by the worker.
const PendingOrderTTL = 10 * time.Minute

// PendingOrder is the ephemeral record bridging the gateway redirect round
// trip. It links a gateway order id to the PENDING Payment it was created
// for, and echoes the charged amount so the return trip can be validated.
// Created by order creation, consumed by verification.
type PendingOrder struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	GatewayOrderID   string          `gorm:"type:varchar(100);uniqueIndex" json:"gateway_order_id"`
	AccountID        uint            `gorm:"index" json:"account_id"`
	PaymentID        uint            `gorm:"index" json:"payment_id"`
	Amount           float64         `gorm:"type:decimal(15,2)" json:"amount"`
	Gateway          PaymentGateway  `gorm:"type:varchar(50);not null" json:"gateway"`
	RequestMetadata  json.RawMessage `gorm:"type:jsonb" json:"request_metadata"`
	ResponseMetadata json.RawMessage `gorm:"type:jsonb" json:"response_metadata"`
}

// Expired reports whether the order has outlived its TTL.
func (o PendingOrder) Expired() bool {
	return time.Since(o.CreatedAt) > PendingOrderTTL
}
