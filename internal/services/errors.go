package services

import "fmt"

// ErrorKind classifies payment-flow failures so handlers can map them to
// HTTP responses without string matching.
type ErrorKind string

const (
	KindInvalidSelection   ErrorKind = "InvalidSelection"
	KindInvalidAmount      ErrorKind = "InvalidAmount"
	KindNotFound           ErrorKind = "NotFound"
	KindForbidden          ErrorKind = "Forbidden"
	KindGatewayRejected    ErrorKind = "GatewayRejected"
	KindGatewayUnavailable ErrorKind = "GatewayUnavailable"
	KindNoPendingOrder     ErrorKind = "NoPendingOrder"
	KindAmountMismatch     ErrorKind = "AmountMismatch"
	KindAlreadyFinalized   ErrorKind = "AlreadyFinalized"
	KindExceedsPayment     ErrorKind = "ExceedsPayment"
)

// FlowError is the error type for every payment-flow operation. GatewayStatus
// carries the gateway's own status code when one is available, so the caller
// can surface it to the user.
type FlowError struct {
	Kind          ErrorKind
	Message       string
	GatewayStatus string
}

func (e *FlowError) Error() string {
	if e.GatewayStatus != "" {
		return fmt.Sprintf("%s: %s (gateway status %s)", e.Kind, e.Message, e.GatewayStatus)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewFlowError builds a FlowError with a formatted message.
func NewFlowError(kind ErrorKind, format string, args ...interface{}) *FlowError {
	return &FlowError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from an error, or "" if it is not a FlowError.
func KindOf(err error) ErrorKind {
	if fe, ok := err.(*FlowError); ok {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether err is a FlowError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
