package services

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"

	"schoolpay_echo/internal/models"
)

// GatewayOutcome is the reconciliation-relevant reading of a gateway status.
type GatewayOutcome string

const (
	GatewayOutcomeSuccess GatewayOutcome = "SUCCESS"
	GatewayOutcomeFailed  GatewayOutcome = "FAILED"
	// GatewayOutcomePending means the gateway has not reached a terminal
	// state yet; the ledger payment must stay PENDING.
	GatewayOutcomePending GatewayOutcome = "PENDING"
)

// GatewayOrder is the gateway's answer to an order-creation call.
type GatewayOrder struct {
	Token       string
	RedirectURL string
	RawResponse []byte
}

// GatewayStatus is the gateway's authoritative view of one order.
type GatewayStatus struct {
	OrderID       string
	TransactionID string
	Outcome       GatewayOutcome
	RawStatus     string // gateway's own status string, e.g. "settlement"
	Channel       string // e.g. "bank_transfer", "qris"
	GrossAmount   string
}

// OrderDetail carries the customer-facing description of an order.
type OrderDetail struct {
	GuardianName  string
	GuardianEmail string
	ItemName      string
	FinishURL     string
}

// GatewayClient abstracts the payment gateway so orchestration and
// reconciliation can be tested without network calls.
type GatewayClient interface {
	Name() models.PaymentGateway
	CreateOrder(orderID string, amount float64, detail OrderDetail) (*GatewayOrder, error)
	CheckStatus(orderID string) (*GatewayStatus, error)
	Cancel(orderID string) error
}

// MidtransService implements GatewayClient on top of the Midtrans Snap and
// Core APIs.
type MidtransService struct {
	SnapClient snap.Client
	CoreClient coreapi.Client
}

func NewMidtransService() *MidtransService {
	serverKey := os.Getenv("MIDTRANS_SERVER_KEY")
	clientKey := os.Getenv("MIDTRANS_CLIENT_KEY")
	envStr := os.Getenv("MIDTRANS_IS_PRODUCTION")

	env := midtrans.Sandbox
	if envStr == "true" {
		env = midtrans.Production
	}

	// Bounded timeout on every gateway call; a timeout is surfaced as
	// GatewayUnavailable, never as success or failure.
	midtrans.DefaultGoHttpClient = &http.Client{Timeout: 10 * time.Second}

	var s snap.Client
	s.New(serverKey, env)

	var c coreapi.Client
	c.New(serverKey, env)

	midtrans.ServerKey = serverKey
	midtrans.ClientKey = clientKey
	midtrans.Environment = env

	return &MidtransService{
		SnapClient: s,
		CoreClient: c,
	}
}

func (s *MidtransService) Name() models.PaymentGateway {
	return models.PaymentGatewayMidtrans
}

// CreateOrder creates a Snap transaction and returns the hosted redirect URL
// and token. Midtrans charges whole currency units; a fractional amount is
// rejected here so the recorded amount always equals the charged amount.
func (s *MidtransService) CreateOrder(orderID string, amount float64, detail OrderDetail) (*GatewayOrder, error) {
	gross := int64(amount)
	if float64(gross) != amount || gross <= 0 {
		return nil, NewFlowError(KindInvalidAmount,
			"gateway charges whole currency units, cannot charge %.2f for order %s", amount, orderID)
	}

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: gross,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: detail.GuardianName,
			Email: detail.GuardianEmail,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    orderID,
				Name:  detail.ItemName,
				Price: gross,
				Qty:   1,
			},
		},
	}
	if detail.FinishURL != "" {
		req.Callbacks = &snap.Callbacks{Finish: detail.FinishURL}
	}

	resp, err := s.SnapClient.CreateTransaction(req)
	if err != nil {
		return nil, wrapMidtransError(err, "order creation")
	}

	return &GatewayOrder{
		Token:       resp.Token,
		RedirectURL: resp.RedirectURL,
	}, nil
}

// CheckStatus queries the Core API for the authoritative transaction status.
func (s *MidtransService) CheckStatus(orderID string) (*GatewayStatus, error) {
	resp, err := s.CoreClient.CheckTransaction(orderID)
	if err != nil {
		return nil, wrapMidtransError(err, "status check")
	}

	return &GatewayStatus{
		OrderID:       resp.OrderID,
		TransactionID: resp.TransactionID,
		Outcome:       mapTransactionStatus(resp.TransactionStatus, resp.FraudStatus),
		RawStatus:     resp.TransactionStatus,
		Channel:       resp.PaymentType,
		GrossAmount:   resp.GrossAmount,
	}, nil
}

// Cancel asks the gateway to cancel an order that has not settled yet.
func (s *MidtransService) Cancel(orderID string) error {
	_, err := s.CoreClient.CancelTransaction(orderID)
	if err != nil {
		return wrapMidtransError(err, "cancel")
	}
	return nil
}

// mapTransactionStatus reduces Midtrans status strings to the three outcomes
// reconciliation cares about.
func mapTransactionStatus(transactionStatus, fraudStatus string) GatewayOutcome {
	switch transactionStatus {
	case "settlement":
		return GatewayOutcomeSuccess
	case "capture":
		if fraudStatus == "challenge" {
			return GatewayOutcomePending
		}
		return GatewayOutcomeSuccess
	case "deny", "expire", "cancel", "failure":
		return GatewayOutcomeFailed
	default:
		// "pending", "authorize" and anything unknown: not terminal
		return GatewayOutcomePending
	}
}

// wrapMidtransError converts a midtrans error into the flow taxonomy. An
// HTTP-level answer from the gateway is a rejection carrying the gateway's
// status code; anything else (DNS, timeout) means the gateway is unavailable.
func wrapMidtransError(err *midtrans.Error, op string) error {
	if err == nil {
		return nil
	}
	if err.StatusCode != 0 {
		return &FlowError{
			Kind:          KindGatewayRejected,
			Message:       "gateway rejected " + op + ": " + err.Message,
			GatewayStatus: strconv.Itoa(err.StatusCode),
		}
	}
	return NewFlowError(KindGatewayUnavailable, "gateway unreachable during %s: %s", op, err.Message)
}
