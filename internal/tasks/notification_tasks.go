package tasks

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"

	"schoolpay_echo/internal/models"
	"schoolpay_echo/internal/services"
)

// SendPaymentReceiptTaskDef sends a receipt to the guardian after a payment
// has been reconciled as successful. Enqueued by verification, executed by
// the worker, delivered over the channels the guardian opted into.
type SendPaymentReceiptTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *SendPaymentReceiptTaskDef) TaskID() string {
	return "send_payment_receipt"
}

// HandleExecution loads the payment and notifies the guardian
func (t *SendPaymentReceiptTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	paymentIDFloat, ok := task.Arguments["payment_id"].(float64)
	if !ok {
		if val, ok := task.Arguments["payment_id"].(int); ok {
			paymentIDFloat = float64(val)
		} else {
			return nil, fmt.Errorf("payment_id not provided or invalid")
		}
	}
	paymentID := uint(paymentIDFloat)

	var payment models.Payment
	if err := db.Preload("Account").Preload("Guardian").First(&payment, paymentID).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch payment: %w", err)
	}
	if payment.Status != models.PaymentStatusSuccess {
		return map[string]interface{}{"status": "skipped", "message": "Payment is not successful"}, nil
	}

	guardian := payment.Guardian
	subject := fmt.Sprintf("Payment received for %s", payment.Account.StudentName)
	body := fmt.Sprintf(
		"Hi %s,\n\nWe received your payment of %.2f for %s (%s).\nTransaction reference: %s\n\nThank you.",
		guardian.Name, payment.Amount, payment.Account.StudentName, payment.Account.Term, payment.TransactionID)

	sent := []string{}
	if guardian.NotifyByEmail && guardian.Email != "" {
		emailSvc := services.NewEmailService()
		if err := emailSvc.SendEmail([]string{guardian.Email}, subject, body); err != nil {
			log.Printf("[Task: send_payment_receipt] Email to %s failed: %v", guardian.Email, err)
		} else {
			sent = append(sent, "email")
		}
	}
	if guardian.NotifyByWhatsApp && guardian.Phone != "" {
		wahaSvc := services.NewWahaService()
		if err := wahaSvc.SendMessage(guardian.Phone, body); err != nil {
			log.Printf("[Task: send_payment_receipt] WhatsApp to %s failed: %v", guardian.Phone, err)
		} else {
			sent = append(sent, "whatsapp")
		}
	}

	return map[string]interface{}{
		"status":     "success",
		"payment_id": paymentID,
		"channels":   sent,
	}, nil
}

// SendPaymentReceiptTask is the singleton instance of SendPaymentReceiptTaskDef
var SendPaymentReceiptTask = &SendPaymentReceiptTaskDef{}
