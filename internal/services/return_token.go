package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PendingOrderCookie is the cookie the browser carries across the gateway
// redirect for gateways that return to a fixed URL with no parameters.
const PendingOrderCookie = "schoolpay_pending"

// ReturnToken identifies which order to verify after the browser comes back
// from the gateway. It is untrusted input: the amount is always re-checked
// against the server-held PendingOrder before any reconciliation.
type ReturnToken struct {
	OrderID   string
	Amount    float64
	ExpiresAt time.Time
}

// EncodeReturnToken builds a signed, TTL-bound token of the form
// "orderID|amount|expiresUnix|signature".
func EncodeReturnToken(secret []byte, orderID string, amount float64, ttl time.Duration) string {
	expires := time.Now().Add(ttl).Unix()
	payload := fmt.Sprintf("%s|%.2f|%d", orderID, amount, expires)
	return payload + "|" + signToken(secret, payload)
}

// DecodeReturnToken validates the signature and expiry and parses the token.
// Any malformed, tampered or expired token yields NoPendingOrder.
func DecodeReturnToken(secret []byte, token string) (*ReturnToken, error) {
	parts := strings.Split(token, "|")
	if len(parts) != 4 {
		return nil, NewFlowError(KindNoPendingOrder, "malformed return token")
	}

	payload := strings.Join(parts[:3], "|")
	if !hmac.Equal([]byte(signToken(secret, payload)), []byte(parts[3])) {
		return nil, NewFlowError(KindNoPendingOrder, "return token signature mismatch")
	}

	expiresUnix, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, NewFlowError(KindNoPendingOrder, "return token has invalid expiry")
	}
	if time.Now().After(time.Unix(expiresUnix, 0)) {
		return nil, NewFlowError(KindNoPendingOrder, "return token expired")
	}

	amount, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || amount <= 0 {
		return nil, NewFlowError(KindNoPendingOrder, "return token has invalid amount")
	}

	return &ReturnToken{
		OrderID:   parts[0],
		Amount:    amount,
		ExpiresAt: time.Unix(expiresUnix, 0),
	}, nil
}

func signToken(secret []byte, payload string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
