package services

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"schoolpay_echo/internal/models"
)

// OrderService orchestrates order creation: resolve the payable amount,
// reserve a PENDING payment in the ledger, create the gateway order, and
// persist the PendingOrder that bridges the redirect round trip.
type OrderService struct {
	db      *gorm.DB
	ledger  *LedgerService
	gateway GatewayClient
}

func NewOrderService(db *gorm.DB, ledger *LedgerService, gateway GatewayClient) *OrderService {
	return &OrderService{db: db, ledger: ledger, gateway: gateway}
}

// CreateOrderResult holds what the caller needs to redirect the guardian to
// the gateway's hosted payment page.
type CreateOrderResult struct {
	GatewayOrderID string  `json:"order_id"`
	PaymentID      uint    `json:"payment_id"`
	Amount         float64 `json:"amount"`
	Token          string  `json:"token"`
	RedirectURL    string  `json:"payment_url"`
}

// CreateOrder runs the orchestration for one payment attempt. The guardian
// must own the account (admins may act on any account). On gateway failure
// the reserved payment stays PENDING; the TTL sweep garbage-collects it, and
// the order is never retried with a different amount.
func (s *OrderService) CreateOrder(guardian *models.Guardian, accountID uint, sel PaymentSelection, finishURL string) (*CreateOrderResult, error) {
	// 1. Fresh snapshot; the resolver never works from stale balances
	snap, err := s.ledger.Snapshot(accountID)
	if err != nil {
		return nil, err
	}
	if snap.Account.GuardianID != guardian.ID && guardian.Role != models.GuardianRoleAdmin {
		return nil, NewFlowError(KindForbidden, "account %d does not belong to guardian %d", accountID, guardian.ID)
	}

	// 2. Resolve the payable amount
	payable, err := ResolvePayableAmount(snap, sel)
	if err != nil {
		return nil, err
	}

	// 3. Reserve a PENDING payment at the resolved amount
	payment, err := s.ledger.RecordPaymentPending(accountID, snap.Account.GuardianID, payable, s.gateway.Name())
	if err != nil {
		return nil, err
	}

	// 4. Create the gateway order
	orderID := fmt.Sprintf("fee-%d-%s", payment.ID, uuid.NewString())
	detail := OrderDetail{
		GuardianName:  guardian.Name,
		GuardianEmail: guardian.Email,
		ItemName:      fmt.Sprintf("School fee for %s (%s)", snap.Account.StudentName, snap.Account.Term),
		FinishURL:     finishURL,
	}
	order, err := s.gateway.CreateOrder(orderID, payable, detail)
	if err != nil {
		log.Printf("Gateway order creation failed for payment %d: %v", payment.ID, err)
		return nil, err
	}

	// 5. Persist the PendingOrder bridging the redirect round trip
	reqBytes, _ := json.Marshal(detail)
	respBytes, _ := json.Marshal(order)
	pending := models.PendingOrder{
		GatewayOrderID:   orderID,
		AccountID:        accountID,
		PaymentID:        payment.ID,
		Amount:           payable,
		Gateway:          s.gateway.Name(),
		RequestMetadata:  reqBytes,
		ResponseMetadata: respBytes,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Payment{}).Where("id = ?", payment.ID).
			Update("gateway_order_id", orderID).Error; err != nil {
			return err
		}
		return tx.Create(&pending).Error
	})
	if err != nil {
		return nil, err
	}

	return &CreateOrderResult{
		GatewayOrderID: orderID,
		PaymentID:      payment.ID,
		Amount:         payable,
		Token:          order.Token,
		RedirectURL:    order.RedirectURL,
	}, nil
}
