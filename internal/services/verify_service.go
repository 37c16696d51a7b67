package services

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"gorm.io/gorm"

	"schoolpay_echo/internal/models"
)

// VerifyService reconciles a gateway outcome into the ledger exactly once.
// The gateway is authoritative for success/failure; the client's claimed
// amount is only ever checked against the server-held PendingOrder.
type VerifyService struct {
	db      *gorm.DB
	ledger  *LedgerService
	gateway GatewayClient
	cache   *RedisCache // optional, serializes concurrent verifications
}

func NewVerifyService(db *gorm.DB, ledger *LedgerService, gateway GatewayClient, cache *RedisCache) *VerifyService {
	return &VerifyService{db: db, ledger: ledger, gateway: gateway, cache: cache}
}

// VerifyResult reports the reconciled outcome for one order.
type VerifyResult struct {
	Status           models.PaymentStatus `json:"status"`
	Payment          *models.Payment      `json:"payment,omitempty"`
	AlreadyProcessed bool                 `json:"already_processed"`
}

// Verify looks up the PendingOrder, checks the claimed amount, asks the
// gateway for the authoritative status and commits the outcome to the
// ledger. Re-verifying an already-reconciled order returns the recorded
// outcome without touching the ledger again.
func (s *VerifyService) Verify(ctx context.Context, orderID string, claimedAmount float64) (*VerifyResult, error) {
	// Best-effort lock so duplicate tabs serialize; the guarded status
	// update in CommitPayment remains the hard guarantee.
	if s.cache != nil {
		locked, err := s.cache.SetNX(ctx, "verify:"+orderID, time.Now().Unix(), 30*time.Second)
		if err == nil && !locked {
			return s.recordedOutcome(orderID)
		}
		if err == nil {
			defer s.cache.Delete(ctx, "verify:"+orderID)
		}
	}

	// 1. The PendingOrder must exist and be inside its TTL
	var pending models.PendingOrder
	if err := s.db.Where("gateway_order_id = ?", orderID).First(&pending).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return s.recordedOutcome(orderID)
		}
		return nil, err
	}
	if pending.Expired() {
		return nil, NewFlowError(KindNoPendingOrder, "order %s expired before verification", orderID)
	}

	// 2. Defend against a tampered or guessed return token
	if Round2(claimedAmount) != Round2(pending.Amount) {
		log.Printf("Amount mismatch for order %s: claimed %.2f, recorded %.2f",
			orderID, claimedAmount, pending.Amount)
		return nil, NewFlowError(KindAmountMismatch,
			"claimed amount %.2f does not match order %s", claimedAmount, orderID)
	}

	// 3. Ask the gateway; it is the only authority on the outcome
	status, err := s.gateway.CheckStatus(orderID)
	if err != nil {
		return nil, err
	}

	s.appendAuditLog(orderID, status)

	// The gateway's own reading of the amount must agree with the order;
	// a divergence means the ledger would credit what was never collected.
	if gross, perr := strconv.ParseFloat(status.GrossAmount, 64); perr == nil && gross > 0 {
		if Round2(gross) != Round2(pending.Amount) {
			log.Printf("Gross amount mismatch for order %s: gateway reports %.2f, recorded %.2f",
				orderID, gross, pending.Amount)
			return nil, NewFlowError(KindAmountMismatch,
				"gateway reports gross amount %.2f for order %s, recorded %.2f", gross, orderID, pending.Amount)
		}
	}

	if status.Outcome == GatewayOutcomePending {
		// Not terminal yet: the payment stays PENDING and the order is
		// kept so verification can be retried.
		return nil, NewFlowError(KindGatewayUnavailable,
			"gateway has not confirmed order %s yet (status %s)", orderID, status.RawStatus)
	}

	outcome := models.PaymentStatusFailed
	if status.Outcome == GatewayOutcomeSuccess {
		outcome = models.PaymentStatusSuccess
	}

	// 4-5. Commit once; a concurrent commit surfaces as AlreadyFinalized
	// and we return what it recorded.
	err = s.ledger.CommitPayment(pending.PaymentID, outcome, status.TransactionID, status.Channel, orderID)
	if err != nil {
		if IsKind(err, KindAlreadyFinalized) {
			return s.recordedOutcome(orderID)
		}
		return nil, err
	}

	var payment models.Payment
	if err := s.db.First(&payment, pending.PaymentID).Error; err != nil {
		return nil, err
	}

	if outcome == models.PaymentStatusSuccess {
		s.enqueueReceipt(&payment)
	}

	return &VerifyResult{Status: payment.Status, Payment: &payment}, nil
}

// recordedOutcome returns the terminal state a previous verification already
// committed for this order. An order with no terminal payment behind it is
// unknown.
func (s *VerifyService) recordedOutcome(orderID string) (*VerifyResult, error) {
	var payment models.Payment
	err := s.db.Where("gateway_order_id = ?", orderID).First(&payment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NewFlowError(KindNoPendingOrder, "no pending order for %s", orderID)
		}
		return nil, err
	}
	if !payment.Status.IsTerminal() {
		return nil, NewFlowError(KindNoPendingOrder, "order %s has no reconciled outcome yet", orderID)
	}
	return &VerifyResult{Status: payment.Status, Payment: &payment, AlreadyProcessed: true}, nil
}

func (s *VerifyService) appendAuditLog(orderID string, status *GatewayStatus) {
	metadata, _ := json.Marshal(status)
	entry := models.GatewayVerificationLog{
		PaymentGateway: s.gateway.Name(),
		GatewayOrderID: orderID,
		Outcome:        string(status.Outcome),
		Metadata:       metadata,
	}
	if err := s.db.Create(&entry).Error; err != nil {
		log.Printf("Failed to append verification log for order %s: %v", orderID, err)
	}
}

// enqueueReceipt schedules the receipt notification task; the worker picks
// it up on its next tick.
func (s *VerifyService) enqueueReceipt(payment *models.Payment) {
	task := models.ScheduledTask{
		TaskName: "send_payment_receipt",
		Arguments: map[string]interface{}{
			"payment_id": payment.ID,
		},
		Due:        time.Now(),
		Status:     models.ScheduledTaskStatusActive,
		TaskType:   models.ScheduledTaskTypeOneTime,
		MaxAttempt: 3,
	}
	if err := s.db.Create(&task).Error; err != nil {
		log.Printf("Failed to enqueue receipt notification for payment %d: %v", payment.ID, err)
	}
}
