package services

import (
	"github.com/shopspring/decimal"
)

// PaymentSelection is the guardian's choice of what to pay next: specific
// fee components/extras, an installment split, or a custom figure.
type PaymentSelection struct {
	SelectedComponentIDs []uint   `json:"selected_component_ids"`
	SelectedExtraFeeIDs  []uint   `json:"selected_extra_fee_ids"`
	InstallmentPlan      int      `json:"installment_plan"` // 1 = full remaining, N = split into N
	CustomAmount         *float64 `json:"custom_amount"`
}

// ResolvePayableAmount derives the amount to charge for the next gateway
// order. Pure computation against a snapshot: the ledger balance is checked
// again at commit time, since the remaining fee can change between resolution
// and verification.
//
// Rules:
//  1. Sum the selected components/extras; the selection is used only when it
//     is positive and does not exceed the remaining fee.
//  2. Otherwise the base is the full remaining fee.
//  3. An installment plan of N suggests base/N.
//  4. A custom amount, when present, must satisfy 0 < custom <= remaining and
//     overrides the suggestion.
//
// The result is rounded to 2 decimal places and always satisfies
// 0 < payable <= remainingFee.
func ResolvePayableAmount(snap *AccountSnapshot, sel PaymentSelection) (float64, error) {
	remaining := decimal.NewFromFloat(snap.RemainingFee)
	if remaining.LessThanOrEqual(decimal.Zero) {
		return 0, NewFlowError(KindInvalidSelection, "account has no remaining fee to pay")
	}

	// 1. Sum the selected components and extra fees
	selected := decimal.Zero
	for _, comp := range snap.Account.Components {
		if containsID(sel.SelectedComponentIDs, comp.ID) {
			selected = selected.Add(decimal.NewFromFloat(comp.Amount))
		}
	}
	for _, extra := range snap.Account.ExtraFees {
		if containsID(sel.SelectedExtraFeeIDs, extra.ID) {
			selected = selected.Add(decimal.NewFromFloat(extra.Amount))
		}
	}

	// 2. Selection only counts when it fits inside the remaining fee
	base := remaining
	if selected.GreaterThan(decimal.Zero) && selected.LessThanOrEqual(remaining) {
		base = selected
	}

	// 3. Installment split suggestion
	plan := sel.InstallmentPlan
	if plan < 1 {
		plan = 1
	}
	suggested := base
	if plan > 1 {
		suggested = base.Div(decimal.NewFromInt(int64(plan)))
	}

	// 4. Custom amount override
	if sel.CustomAmount != nil {
		custom := decimal.NewFromFloat(*sel.CustomAmount)
		if custom.LessThanOrEqual(decimal.Zero) || custom.GreaterThan(remaining) {
			return 0, NewFlowError(KindInvalidSelection,
				"custom amount %s is outside (0, %s]", custom.StringFixed(2), remaining.StringFixed(2))
		}
		suggested = custom
	}

	payable := suggested.Round(2)
	if payable.GreaterThan(remaining) {
		payable = remaining.Round(2)
	}
	if payable.LessThanOrEqual(decimal.Zero) {
		return 0, NewFlowError(KindInvalidSelection, "resolved amount must be positive")
	}

	result, _ := payable.Float64()
	return result, nil
}

// Round2 rounds a monetary value to 2 decimal places.
func Round2(amount float64) float64 {
	out, _ := decimal.NewFromFloat(amount).Round(2).Float64()
	return out
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
