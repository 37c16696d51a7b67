package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"schoolpay_echo/internal/models"
)

// newTestDB opens an isolated in-memory database migrated with the full
// schema. Each test gets its own named memory DB so tests cannot see each
// other's rows.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func createTestGuardian(t *testing.T, db *gorm.DB) *models.Guardian {
	t.Helper()
	guardian := models.Guardian{
		Name:  "Test Guardian",
		Email: fmt.Sprintf("%s@example.com", strings.ToLower(strings.ReplaceAll(t.Name(), "/", "."))),
		Role:  models.GuardianRoleGuardian,
	}
	if err := db.Create(&guardian).Error; err != nil {
		t.Fatalf("failed to create guardian: %v", err)
	}
	return &guardian
}

func setupTestAccount(t *testing.T, db *gorm.DB, guardianID uint, total float64, installments int) *models.FeeAccount {
	t.Helper()
	ledger := NewLedgerService(db)
	account, err := ledger.SetupAccount(AccountSetup{
		GuardianID:       guardianID,
		StudentName:      "Student A",
		Term:             "2026/2027-1",
		InstallmentCount: installments,
		Components: []ComponentInput{
			{Name: "Tuition", Amount: total},
		},
		FirstDueDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("SetupAccount failed: %v", err)
	}
	return account
}

func TestSetupAccountSplitsInstallments(t *testing.T) {
	db := newTestDB(t)
	guardian := createTestGuardian(t, db)
	ledger := NewLedgerService(db)

	account, err := ledger.SetupAccount(AccountSetup{
		GuardianID:       guardian.ID,
		StudentName:      "Student A",
		Term:             "2026/2027-1",
		DiscountPercent:  10,
		InstallmentCount: 3,
		Components: []ComponentInput{
			{Name: "Tuition", Amount: 8000},
			{Name: "Books", Amount: 2000},
		},
		FirstDueDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("SetupAccount failed: %v", err)
	}

	snap, err := ledger.Snapshot(account.ID)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	// 10000 total, 10% discount
	if snap.FinalFee != 9000 {
		t.Errorf("FinalFee = %.2f; want 9000.00", snap.FinalFee)
	}
	if len(snap.Account.Installments) != 3 {
		t.Fatalf("got %d installments; want 3", len(snap.Account.Installments))
	}

	sum := 0.0
	for i, inst := range snap.Account.Installments {
		sum += inst.Amount
		if inst.Sequence != i+1 {
			t.Errorf("installment %d has sequence %d", i, inst.Sequence)
		}
		wantDue := time.Date(2026, time.Month(9+i), 1, 0, 0, 0, 0, time.UTC)
		if !inst.DueDate.Equal(wantDue) {
			t.Errorf("installment %d due %v; want %v", i, inst.DueDate, wantDue)
		}
		if inst.Status != models.InstallmentStatusPending {
			t.Errorf("installment %d status %s; want PENDING", i, inst.Status)
		}
	}
	if Round2(sum) != snap.FinalFee {
		t.Errorf("installments sum to %.2f; want %.2f", sum, snap.FinalFee)
	}
}

func TestSetupAccountLastInstallmentAbsorbsRemainder(t *testing.T) {
	db := newTestDB(t)
	guardian := createTestGuardian(t, db)
	account := setupTestAccount(t, db, guardian.ID, 10000, 3)

	var installments []models.Installment
	if err := db.Where("account_id = ?", account.ID).Order("sequence asc").Find(&installments).Error; err != nil {
		t.Fatalf("failed to load installments: %v", err)
	}
	if len(installments) != 3 {
		t.Fatalf("got %d installments; want 3", len(installments))
	}
	if installments[0].Amount != 3333.33 || installments[1].Amount != 3333.33 {
		t.Errorf("first two installments = %.2f, %.2f; want 3333.33 each",
			installments[0].Amount, installments[1].Amount)
	}
	if installments[2].Amount != 3333.34 {
		t.Errorf("last installment = %.2f; want 3333.34", installments[2].Amount)
	}
}

func TestSnapshotBalanceInvariant(t *testing.T) {
	db := newTestDB(t)
	guardian := createTestGuardian(t, db)
	account := setupTestAccount(t, db, guardian.ID, 10000, 4)
	ledger := NewLedgerService(db)

	if _, err := ledger.AddExtraFee(account.ID, "Late fee", 150); err != nil {
		t.Fatalf("AddExtraFee failed: %v", err)
	}

	payment, err := ledger.RecordPaymentPending(account.ID, guardian.ID, 4000, models.PaymentGatewayMidtrans)
	if err != nil {
		t.Fatalf("RecordPaymentPending failed: %v", err)
	}

	// PENDING payments do not move the balance
	snap, err := ledger.Snapshot(account.ID)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.FinalFee != 10150 {
		t.Errorf("FinalFee = %.2f; want 10150.00", snap.FinalFee)
	}
	if snap.AmountPaid != 0 {
		t.Errorf("AmountPaid = %.2f before commit; want 0", snap.AmountPaid)
	}

	if err := ledger.CommitPayment(payment.ID, models.PaymentStatusSuccess, "trx-1", "qris", ""); err != nil {
		t.Fatalf("CommitPayment failed: %v", err)
	}

	snap, err = ledger.Snapshot(account.ID)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.AmountPaid != 4000 {
		t.Errorf("AmountPaid = %.2f; want 4000.00", snap.AmountPaid)
	}
	if got := Round2(snap.FinalFee - snap.AmountPaid); snap.RemainingFee != got {
		t.Errorf("RemainingFee = %.2f; want finalFee-amountPaid = %.2f", snap.RemainingFee, got)
	}
	if snap.RemainingFee < 0 {
		t.Errorf("RemainingFee = %.2f; must never be negative", snap.RemainingFee)
	}
}

func TestCommitPaymentAppliesOldestDueFirst(t *testing.T) {
	db := newTestDB(t)
	guardian := createTestGuardian(t, db)
	account := setupTestAccount(t, db, guardian.ID, 10000, 3)
	ledger := NewLedgerService(db)

	payment, err := ledger.RecordPaymentPending(account.ID, guardian.ID, 4000, models.PaymentGatewayMidtrans)
	if err != nil {
		t.Fatalf("RecordPaymentPending failed: %v", err)
	}
	if err := ledger.CommitPayment(payment.ID, models.PaymentStatusSuccess, "trx-1", "bank_transfer", ""); err != nil {
		t.Fatalf("CommitPayment failed: %v", err)
	}

	var installments []models.Installment
	if err := db.Where("account_id = ?", account.ID).Order("sequence asc").Find(&installments).Error; err != nil {
		t.Fatalf("failed to load installments: %v", err)
	}

	// 4000 covers installment 1 (3333.33) fully, spills 666.67 into 2
	if installments[0].Status != models.InstallmentStatusPaid {
		t.Errorf("installment 1 status %s; want PAID", installments[0].Status)
	}
	if installments[1].Status != models.InstallmentStatusPartial {
		t.Errorf("installment 2 status %s; want PARTIAL", installments[1].Status)
	}
	if installments[1].PaidAmount != 666.67 {
		t.Errorf("installment 2 paid %.2f; want 666.67", installments[1].PaidAmount)
	}
	if installments[2].Status != models.InstallmentStatusPending {
		t.Errorf("installment 3 status %s; want PENDING", installments[2].Status)
	}
}

func TestCommitPaymentSettlesAccount(t *testing.T) {
	db := newTestDB(t)
	guardian := createTestGuardian(t, db)
	account := setupTestAccount(t, db, guardian.ID, 10000, 3)
	ledger := NewLedgerService(db)

	first, err := ledger.RecordPaymentPending(account.ID, guardian.ID, 4000, models.PaymentGatewayMidtrans)
	if err != nil {
		t.Fatalf("RecordPaymentPending failed: %v", err)
	}
	if err := ledger.CommitPayment(first.ID, models.PaymentStatusSuccess, "trx-1", "qris", ""); err != nil {
		t.Fatalf("CommitPayment failed: %v", err)
	}

	second, err := ledger.RecordPaymentPending(account.ID, guardian.ID, 6000, models.PaymentGatewayMidtrans)
	if err != nil {
		t.Fatalf("RecordPaymentPending failed: %v", err)
	}
	if err := ledger.CommitPayment(second.ID, models.PaymentStatusSuccess, "trx-2", "qris", ""); err != nil {
		t.Fatalf("CommitPayment failed: %v", err)
	}

	snap, err := ledger.Snapshot(account.ID)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.RemainingFee != 0 {
		t.Errorf("RemainingFee = %.2f after full payment; want 0", snap.RemainingFee)
	}
	for _, inst := range snap.Account.Installments {
		if inst.Status != models.InstallmentStatusPaid {
			t.Errorf("installment %d status %s; want PAID", inst.Sequence, inst.Status)
		}
	}
}

func TestCommitPaymentIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	guardian := createTestGuardian(t, db)
	account := setupTestAccount(t, db, guardian.ID, 10000, 2)
	ledger := NewLedgerService(db)

	payment, err := ledger.RecordPaymentPending(account.ID, guardian.ID, 3000, models.PaymentGatewayMidtrans)
	if err != nil {
		t.Fatalf("RecordPaymentPending failed: %v", err)
	}
	if err := ledger.CommitPayment(payment.ID, models.PaymentStatusSuccess, "trx-1", "qris", ""); err != nil {
		t.Fatalf("first CommitPayment failed: %v", err)
	}

	// A second commit, even with a different outcome, must not pass
	err = ledger.CommitPayment(payment.ID, models.PaymentStatusFailed, "trx-1", "qris", "")
	if !IsKind(err, KindAlreadyFinalized) {
		t.Fatalf("second commit: expected AlreadyFinalized, got %v", err)
	}

	var reloaded models.Payment
	if err := db.First(&reloaded, payment.ID).Error; err != nil {
		t.Fatalf("failed to reload payment: %v", err)
	}
	if reloaded.Status != models.PaymentStatusSuccess {
		t.Errorf("payment status %s after duplicate commit; want SUCCESS", reloaded.Status)
	}

	// The ledger must reflect exactly one application of the amount
	snap, err := ledger.Snapshot(account.ID)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.AmountPaid != 3000 {
		t.Errorf("AmountPaid = %.2f; want 3000.00", snap.AmountPaid)
	}
}

func TestCommitPaymentRejectsNonTerminalOutcome(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)

	err := ledger.CommitPayment(1, models.PaymentStatusPending, "", "", "")
	if err == nil {
		t.Fatal("expected error for PENDING outcome")
	}
}

func TestCommitPaymentConsumesPendingOrder(t *testing.T) {
	db := newTestDB(t)
	guardian := createTestGuardian(t, db)
	account := setupTestAccount(t, db, guardian.ID, 5000, 1)
	ledger := NewLedgerService(db)

	payment, err := ledger.RecordPaymentPending(account.ID, guardian.ID, 5000, models.PaymentGatewayMidtrans)
	if err != nil {
		t.Fatalf("RecordPaymentPending failed: %v", err)
	}
	order := models.PendingOrder{
		GatewayOrderID: "fee-test-order",
		AccountID:      account.ID,
		PaymentID:      payment.ID,
		Amount:         5000,
		Gateway:        models.PaymentGatewayMidtrans,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("failed to create pending order: %v", err)
	}

	if err := ledger.CommitPayment(payment.ID, models.PaymentStatusSuccess, "trx-1", "qris", order.GatewayOrderID); err != nil {
		t.Fatalf("CommitPayment failed: %v", err)
	}

	var count int64
	db.Model(&models.PendingOrder{}).Where("gateway_order_id = ?", order.GatewayOrderID).Count(&count)
	if count != 0 {
		t.Errorf("pending order still present after commit")
	}
}

func TestRecordPaymentPendingRejectsNonPositiveAmount(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)

	for _, amount := range []float64{0, -100} {
		if _, err := ledger.RecordPaymentPending(1, 1, amount, models.PaymentGatewayMidtrans); !IsKind(err, KindInvalidAmount) {
			t.Errorf("amount %.2f: expected InvalidAmount, got %v", amount, err)
		}
	}
}

func TestRecordRefund(t *testing.T) {
	db := newTestDB(t)
	guardian := createTestGuardian(t, db)
	account := setupTestAccount(t, db, guardian.ID, 10000, 2)
	ledger := NewLedgerService(db)

	payment, err := ledger.RecordPaymentPending(account.ID, guardian.ID, 4000, models.PaymentGatewayMidtrans)
	if err != nil {
		t.Fatalf("RecordPaymentPending failed: %v", err)
	}

	// A PENDING payment has nothing refundable
	if _, err := ledger.RecordRefund(payment.ID, 100, "too early"); !IsKind(err, KindExceedsPayment) {
		t.Errorf("refund of PENDING payment: expected ExceedsPayment, got %v", err)
	}

	if err := ledger.CommitPayment(payment.ID, models.PaymentStatusSuccess, "trx-1", "qris", ""); err != nil {
		t.Fatalf("CommitPayment failed: %v", err)
	}

	if _, err := ledger.RecordRefund(payment.ID, 4000.01, "over"); !IsKind(err, KindExceedsPayment) {
		t.Errorf("oversized refund: expected ExceedsPayment, got %v", err)
	}

	refund, err := ledger.RecordRefund(payment.ID, 1500, "partial reversal")
	if err != nil {
		t.Fatalf("RecordRefund failed: %v", err)
	}
	if refund.Amount != 1500 || refund.Status != models.RefundStatusSuccess {
		t.Errorf("refund = %+v; want 1500.00 SUCCESS", refund)
	}

	// Refunds shrink the refundable window for later refunds
	if _, err := ledger.RecordRefund(payment.ID, 2500.01, "over after partial"); !IsKind(err, KindExceedsPayment) {
		t.Errorf("second oversized refund: expected ExceedsPayment, got %v", err)
	}

	snap, err := ledger.Snapshot(account.ID)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.AmountPaid != 2500 {
		t.Errorf("AmountPaid = %.2f after refund; want 2500.00", snap.AmountPaid)
	}
	if got := Round2(snap.FinalFee - snap.AmountPaid); snap.RemainingFee != got {
		t.Errorf("RemainingFee = %.2f; want %.2f", snap.RemainingFee, got)
	}
}
