package handlers

import (
	"schoolpay_echo/internal/models"
	"schoolpay_echo/internal/services"
)

// CreateOrderRequest is the body for POST /payment/create-order.
type CreateOrderRequest struct {
	AccountID            uint     `json:"account_id"`
	SelectedComponentIDs []uint   `json:"selected_component_ids"`
	SelectedExtraFeeIDs  []uint   `json:"selected_extra_fee_ids"`
	InstallmentPlan      int      `json:"installment_plan"`
	CustomAmount         *float64 `json:"custom_amount"`
	ReturnPath           string   `json:"return_path"`
}

// CreateOrderResponse points the client at the gateway's hosted page.
type CreateOrderResponse struct {
	Gateway    models.PaymentGateway `json:"gateway"`
	OrderID    string                `json:"order_id"`
	Amount     float64               `json:"amount"`
	PaymentURL string                `json:"payment_url"`
	Token      string                `json:"token"`
}

// VerifyRequest is the body for POST /payment/verify.
type VerifyRequest struct {
	Gateway models.PaymentGateway `json:"gateway"`
	OrderID string                `json:"order_id"`
	Amount  float64               `json:"amount"`
}

// VerifyResponse reports the reconciled outcome.
type VerifyResponse struct {
	Status models.PaymentStatus `json:"status"`
}

// RefundRequest is the body for POST /admin/refunds.
type RefundRequest struct {
	PaymentID uint    `json:"payment_id"`
	Amount    float64 `json:"amount"`
	Note      string  `json:"note"`
}

// AccountSummaryResponse is the guardian-facing fee summary.
type AccountSummaryResponse struct {
	AccountID    uint                  `json:"account_id"`
	GuardianID   uint                  `json:"guardian_id"`
	StudentName  string                `json:"student_name"`
	Term         string                `json:"term"`
	TotalFee     float64               `json:"total_fee"`
	Discount     float64               `json:"discount_percent"`
	FinalFee     float64               `json:"final_fee"`
	AmountPaid   float64               `json:"amount_paid"`
	RemainingFee float64               `json:"remaining_fee"`
	Components   []models.FeeComponent `json:"components"`
	ExtraFees    []models.ExtraFee     `json:"extra_fees"`
	Installments []models.Installment  `json:"installments"`
}

// NewAccountSummary flattens a ledger snapshot into the response shape.
func NewAccountSummary(snap *services.AccountSnapshot) AccountSummaryResponse {
	return AccountSummaryResponse{
		AccountID:    snap.Account.ID,
		GuardianID:   snap.Account.GuardianID,
		StudentName:  snap.Account.StudentName,
		Term:         snap.Account.Term,
		TotalFee:     snap.Account.TotalFee,
		Discount:     snap.Account.DiscountPercent,
		FinalFee:     snap.FinalFee,
		AmountPaid:   snap.AmountPaid,
		RemainingFee: snap.RemainingFee,
		Components:   snap.Account.Components,
		ExtraFees:    snap.Account.ExtraFees,
		Installments: snap.Account.Installments,
	}
}
