package services

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"schoolpay_echo/internal/models"
)

// LedgerService is the authoritative record of fee accounts, installments,
// payments and refunds. All mutation of the ledger goes through it.
type LedgerService struct {
	db *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db}
}

// AccountSnapshot is a read-only view of one fee account with its derived
// balance figures.
type AccountSnapshot struct {
	Account      models.FeeAccount `json:"account"`
	FinalFee     float64           `json:"final_fee"`
	AmountPaid   float64           `json:"amount_paid"`
	RemainingFee float64           `json:"remaining_fee"`
}

// Snapshot loads the full account view and computes:
//
//	finalFee  = totalFee * (1 - discountPercent/100) + sum(extraFees)
//	amountPaid = sum(SUCCESS payments) - sum(SUCCESS refunds)
//	remainingFee = finalFee - amountPaid, floored at zero
//
// Abandoned PENDING payments do not count towards amountPaid.
func (s *LedgerService) Snapshot(accountID uint) (*AccountSnapshot, error) {
	var account models.FeeAccount
	err := s.db.
		Preload("Components").
		Preload("ExtraFees").
		Preload("Installments", func(db *gorm.DB) *gorm.DB {
			return db.Order("due_date asc, sequence asc")
		}).
		Preload("Payments").
		Preload("Refunds").
		First(&account, accountID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NewFlowError(KindNotFound, "fee account %d not found", accountID)
		}
		return nil, err
	}

	discount := decimal.NewFromFloat(account.DiscountPercent).Div(decimal.NewFromInt(100))
	finalFee := decimal.NewFromFloat(account.TotalFee).Mul(decimal.NewFromInt(1).Sub(discount))
	for _, extra := range account.ExtraFees {
		finalFee = finalFee.Add(decimal.NewFromFloat(extra.Amount))
	}
	finalFee = finalFee.Round(2)

	paid := decimal.Zero
	for _, p := range account.Payments {
		if p.Status == models.PaymentStatusSuccess {
			paid = paid.Add(decimal.NewFromFloat(p.Amount))
		}
	}
	for _, r := range account.Refunds {
		if r.Status == models.RefundStatusSuccess {
			paid = paid.Sub(decimal.NewFromFloat(r.Amount))
		}
	}
	paid = paid.Round(2)

	remaining := finalFee.Sub(paid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	finalF, _ := finalFee.Float64()
	paidF, _ := paid.Float64()
	remainingF, _ := remaining.Float64()

	return &AccountSnapshot{
		Account:      account,
		FinalFee:     finalF,
		AmountPaid:   paidF,
		RemainingFee: remainingF,
	}, nil
}

// RecordPaymentPending reserves a PENDING payment row for an order about to
// be sent to the gateway. The amount is fixed here and never mutated.
func (s *LedgerService) RecordPaymentPending(accountID, guardianID uint, amount float64, gateway models.PaymentGateway) (*models.Payment, error) {
	if amount <= 0 {
		return nil, NewFlowError(KindInvalidAmount, "payment amount must be positive, got %.2f", amount)
	}

	payment := models.Payment{
		AccountID:  accountID,
		GuardianID: guardianID,
		Amount:     Round2(amount),
		Gateway:    gateway,
		Status:     models.PaymentStatusPending,
	}
	if err := s.db.Create(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// CommitPayment flips a PENDING payment to its terminal state and, on
// SUCCESS, applies the amount across outstanding installments oldest-due
// first. The status flip is a guarded single-statement update, so two
// concurrent commits for the same payment cannot both pass the PENDING
// check; the loser gets AlreadyFinalized. When consumeOrderID is set, the
// matching PendingOrder is deleted in the same transaction.
func (s *LedgerService) CommitPayment(paymentID uint, outcome models.PaymentStatus, transactionID, channel, consumeOrderID string) error {
	if !outcome.IsTerminal() {
		return NewFlowError(KindInvalidAmount, "commit outcome must be terminal, got %s", outcome)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := tx.First(&payment, paymentID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return NewFlowError(KindNotFound, "payment %d not found", paymentID)
			}
			return err
		}

		// Atomic check-then-set: only a PENDING row can be finalized
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", paymentID, models.PaymentStatusPending).
			Updates(map[string]interface{}{
				"status":         outcome,
				"transaction_id": transactionID,
				"channel":        channel,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return NewFlowError(KindAlreadyFinalized, "payment %d is already %s", paymentID, payment.Status)
		}

		if outcome == models.PaymentStatusSuccess {
			if err := applyToInstallments(tx, payment.AccountID, payment.Amount); err != nil {
				return err
			}
		}

		if consumeOrderID != "" {
			if err := tx.Where("gateway_order_id = ?", consumeOrderID).
				Delete(&models.PendingOrder{}).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// applyToInstallments spreads a successful payment across unpaid installments
// in due-date order. The oldest unpaid installment absorbs the payment first;
// overflow spills to the next. Excess beyond all installments stays recorded
// on the payment itself. The rows are read locked so two commits against the
// same account cannot interleave their paid_amount writes.
func applyToInstallments(tx *gorm.DB, accountID uint, amount float64) error {
	var installments []models.Installment
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_id = ? AND status != ?", accountID, models.InstallmentStatusPaid).
		Order("due_date asc, sequence asc").
		Find(&installments).Error
	if err != nil {
		return err
	}

	left := decimal.NewFromFloat(amount)
	for i := range installments {
		if left.LessThanOrEqual(decimal.Zero) {
			break
		}
		inst := &installments[i]
		outstanding := decimal.NewFromFloat(inst.Outstanding())
		applied := decimal.Min(outstanding, left)

		paidAmount, _ := decimal.NewFromFloat(inst.PaidAmount).Add(applied).Round(2).Float64()
		inst.PaidAmount = paidAmount
		if inst.PaidAmount >= inst.Amount {
			inst.Status = models.InstallmentStatusPaid
		} else {
			inst.Status = models.InstallmentStatusPartial
		}
		if err := tx.Model(&models.Installment{}).Where("id = ?", inst.ID).
			Updates(map[string]interface{}{
				"paid_amount": inst.PaidAmount,
				"status":      inst.Status,
			}).Error; err != nil {
			return err
		}

		left = left.Sub(applied)
	}

	return nil
}

// RecordRefund records a manual reversal against a successful payment. The
// amount may not exceed the payment's net-unrefunded amount.
func (s *LedgerService) RecordRefund(paymentID uint, amount float64, note string) (*models.Refund, error) {
	if amount <= 0 {
		return nil, NewFlowError(KindInvalidAmount, "refund amount must be positive, got %.2f", amount)
	}

	var refund models.Refund
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := tx.First(&payment, paymentID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return NewFlowError(KindNotFound, "payment %d not found", paymentID)
			}
			return err
		}

		refundable := decimal.Zero
		if payment.Status == models.PaymentStatusSuccess {
			refundable = decimal.NewFromFloat(payment.Amount)
		}
		var prior []models.Refund
		if err := tx.Where("payment_id = ? AND status = ?", paymentID, models.RefundStatusSuccess).
			Find(&prior).Error; err != nil {
			return err
		}
		for _, r := range prior {
			refundable = refundable.Sub(decimal.NewFromFloat(r.Amount))
		}

		if decimal.NewFromFloat(amount).GreaterThan(refundable) {
			return NewFlowError(KindExceedsPayment,
				"refund %.2f exceeds net-unrefunded amount %s of payment %d",
				amount, refundable.StringFixed(2), paymentID)
		}

		refund = models.Refund{
			AccountID:  payment.AccountID,
			PaymentID:  payment.ID,
			Amount:     Round2(amount),
			Status:     models.RefundStatusSuccess,
			Note:       note,
			RefundDate: time.Now(),
		}
		return tx.Create(&refund).Error
	})
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

// ComponentInput describes one base-fee line item at account setup.
type ComponentInput struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// AccountSetup describes a new fee account for one student and term.
type AccountSetup struct {
	GuardianID       uint             `json:"guardian_id"`
	StudentName      string           `json:"student_name"`
	Term             string           `json:"term"`
	DiscountPercent  float64          `json:"discount_percent"`
	InstallmentCount int              `json:"installment_count"`
	Components       []ComponentInput `json:"components"`
	FirstDueDate     time.Time        `json:"first_due_date"`
}

// SetupAccount creates the account with its components and an evenly split
// installment schedule, one month apart starting at FirstDueDate. The last
// installment absorbs the rounding remainder so the schedule sums exactly to
// the discounted fee.
func (s *LedgerService) SetupAccount(setup AccountSetup) (*models.FeeAccount, error) {
	if len(setup.Components) == 0 {
		return nil, NewFlowError(KindInvalidAmount, "account needs at least one fee component")
	}
	count := setup.InstallmentCount
	if count < 1 {
		count = 1
	}

	total := decimal.Zero
	for _, comp := range setup.Components {
		if comp.Amount <= 0 {
			return nil, NewFlowError(KindInvalidAmount, "component %q amount must be positive", comp.Name)
		}
		total = total.Add(decimal.NewFromFloat(comp.Amount))
	}

	discount := decimal.NewFromFloat(setup.DiscountPercent).Div(decimal.NewFromInt(100))
	finalFee := total.Mul(decimal.NewFromInt(1).Sub(discount)).Round(2)
	per := finalFee.Div(decimal.NewFromInt(int64(count))).Round(2)
	last := finalFee.Sub(per.Mul(decimal.NewFromInt(int64(count - 1)))).Round(2)

	account := models.FeeAccount{
		GuardianID:       setup.GuardianID,
		StudentName:      setup.StudentName,
		Term:             setup.Term,
		DiscountPercent:  setup.DiscountPercent,
		InstallmentCount: count,
	}
	account.TotalFee, _ = total.Round(2).Float64()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&account).Error; err != nil {
			return err
		}
		for _, comp := range setup.Components {
			if err := tx.Create(&models.FeeComponent{
				AccountID: account.ID,
				Name:      comp.Name,
				Amount:    Round2(comp.Amount),
			}).Error; err != nil {
				return err
			}
		}
		for i := 0; i < count; i++ {
			amount := per
			if i == count-1 {
				amount = last
			}
			amountF, _ := amount.Float64()
			if err := tx.Create(&models.Installment{
				AccountID: account.ID,
				Sequence:  i + 1,
				DueDate:   setup.FirstDueDate.AddDate(0, i, 0),
				Amount:    amountF,
				Status:    models.InstallmentStatusPending,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// AddExtraFee attaches a supplemental charge (e.g. a late fee) to an account.
func (s *LedgerService) AddExtraFee(accountID uint, name string, amount float64) (*models.ExtraFee, error) {
	if amount <= 0 {
		return nil, NewFlowError(KindInvalidAmount, "extra fee amount must be positive, got %.2f", amount)
	}
	var account models.FeeAccount
	if err := s.db.First(&account, accountID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NewFlowError(KindNotFound, "fee account %d not found", accountID)
		}
		return nil, err
	}

	extra := models.ExtraFee{
		AccountID: accountID,
		Name:      name,
		Amount:    Round2(amount),
	}
	if err := s.db.Create(&extra).Error; err != nil {
		return nil, err
	}
	return &extra, nil
}
