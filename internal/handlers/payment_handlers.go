package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"

	"schoolpay_echo/internal/models"
	"schoolpay_echo/internal/services"
)

// PaymentHandler exposes the payment orchestration endpoints: order
// creation, the browser return trip, and server-side verification.
type PaymentHandler struct {
	orders      *services.OrderService
	verifier    *services.VerifyService
	cache       *services.RedisCache
	tokenSecret []byte
}

func NewPaymentHandler(orders *services.OrderService, verifier *services.VerifyService, cache *services.RedisCache, tokenSecret []byte) *PaymentHandler {
	return &PaymentHandler{orders: orders, verifier: verifier, cache: cache, tokenSecret: tokenSecret}
}

// getGuardianFromContext returns the guardian resolved by the auth middleware
func getGuardianFromContext(c echo.Context) *models.Guardian {
	if val := c.Get("guardian"); val != nil {
		if g, ok := val.(*models.Guardian); ok {
			return g
		}
	}
	return nil
}

// CreateOrder handles POST /payment/create-order. On success it also plants
// the pending-order cookie so the return trip can recover the order even
// when the gateway redirects back without parameters.
func (h *PaymentHandler) CreateOrder(c echo.Context) error {
	guardian := getGuardianFromContext(c)
	if guardian == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Not logged in")
	}

	var req CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if req.AccountID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "account_id is required")
	}

	returnPath := req.ReturnPath
	if returnPath == "" {
		returnPath = "/payment/return"
	}
	finishURL := os.Getenv("APP_BASE_URL") + returnPath

	sel := services.PaymentSelection{
		SelectedComponentIDs: req.SelectedComponentIDs,
		SelectedExtraFeeIDs:  req.SelectedExtraFeeIDs,
		InstallmentPlan:      req.InstallmentPlan,
		CustomAmount:         req.CustomAmount,
	}
	result, err := h.orders.CreateOrder(guardian, req.AccountID, sel, finishURL)
	if err != nil {
		return err
	}

	// Plant the single-use return-trip cookie before the browser leaves
	token := services.EncodeReturnToken(h.tokenSecret, result.GatewayOrderID, result.Amount, models.PendingOrderTTL)
	c.SetCookie(&http.Cookie{
		Name:     services.PendingOrderCookie,
		Value:    url.QueryEscape(token),
		Path:     "/",
		MaxAge:   int(models.PendingOrderTTL.Seconds()),
		HttpOnly: true,
		Secure:   os.Getenv("ENV") == "production",
		SameSite: http.SameSiteLaxMode,
	})

	return c.JSON(http.StatusOK, CreateOrderResponse{
		Gateway:    models.PaymentGatewayMidtrans,
		OrderID:    result.GatewayOrderID,
		Amount:     result.Amount,
		PaymentURL: result.RedirectURL,
		Token:      result.Token,
	})
}

// Return handles GET /payment/return, the browser's landing point after the
// gateway. Order identity is recovered from redirect parameters first, then
// from the pending cookie; the cookie is cleared either way (single use).
// The guardian is then redirected to a result view carrying the outcome.
func (h *PaymentHandler) Return(c echo.Context) error {
	orderID, amount, err := h.recoverOrder(c)
	if err != nil {
		// Recovery failed: payment status is unknown, not failed
		return c.Redirect(http.StatusSeeOther, resultPath("unknown", ""))
	}

	result, err := h.verifier.Verify(c.Request().Context(), orderID, amount)
	if err != nil {
		switch services.KindOf(err) {
		case services.KindNoPendingOrder, services.KindGatewayUnavailable:
			return c.Redirect(http.StatusSeeOther, resultPath("unknown", orderID))
		default:
			return c.Redirect(http.StatusSeeOther, resultPath("failed", orderID))
		}
	}

	h.invalidateSummary(c, result.Payment.AccountID)

	if result.Status == models.PaymentStatusSuccess {
		return c.Redirect(http.StatusSeeOther, resultPath("success", orderID))
	}
	return c.Redirect(http.StatusSeeOther, resultPath("failed", orderID))
}

// Verify handles POST /payment/verify for clients that recovered the order
// themselves. Errors use the {message} shape.
func (h *PaymentHandler) Verify(c echo.Context) error {
	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid JSON payload"})
	}
	if req.OrderID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "order_id is required"})
	}

	result, err := h.verifier.Verify(c.Request().Context(), req.OrderID, req.Amount)
	if err != nil {
		return verifyErrorResponse(c, err)
	}

	h.invalidateSummary(c, result.Payment.AccountID)

	return c.JSON(http.StatusOK, VerifyResponse{Status: result.Status})
}

// recoverOrder recovers (orderID, amount) from the redirect parameters or,
// failing that, from the signed pending-order cookie. The cookie is
// invalidated as soon as it has been read.
func (h *PaymentHandler) recoverOrder(c echo.Context) (string, float64, error) {
	// 1. Direct parameters on the return URL
	if orderID := c.QueryParam("order_id"); orderID != "" {
		amount, err := strconv.ParseFloat(c.QueryParam("amount"), 64)
		if err == nil && amount > 0 {
			h.clearPendingCookie(c)
			return orderID, amount, nil
		}
	}

	// 2. Cookie fallback for gateways that redirect with no parameters
	cookie, err := c.Cookie(services.PendingOrderCookie)
	if err != nil || cookie.Value == "" {
		return "", 0, services.NewFlowError(services.KindNoPendingOrder, "no order parameters and no pending cookie")
	}
	h.clearPendingCookie(c)

	raw, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return "", 0, services.NewFlowError(services.KindNoPendingOrder, "pending cookie is not decodable")
	}
	token, err := services.DecodeReturnToken(h.tokenSecret, raw)
	if err != nil {
		return "", 0, err
	}
	return token.OrderID, token.Amount, nil
}

func (h *PaymentHandler) clearPendingCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     services.PendingOrderCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// invalidateSummary drops the cached fee summary after a ledger mutation.
func (h *PaymentHandler) invalidateSummary(c echo.Context, accountID uint) {
	if h.cache == nil {
		return
	}
	_ = h.cache.Delete(c.Request().Context(), summaryCacheKey(accountID))
}

func resultPath(status, orderID string) string {
	if orderID == "" {
		return "/payment/result?status=" + status
	}
	return fmt.Sprintf("/payment/result?status=%s&order_id=%s", status, url.QueryEscape(orderID))
}

// verifyErrorResponse maps flow errors on the verify endpoint to the
// {message} error shape with an appropriate status code.
func verifyErrorResponse(c echo.Context, err error) error {
	code := http.StatusInternalServerError
	switch services.KindOf(err) {
	case services.KindNoPendingOrder:
		code = http.StatusNotFound
	case services.KindAmountMismatch:
		code = http.StatusConflict
	case services.KindGatewayRejected:
		code = http.StatusBadGateway
	case services.KindGatewayUnavailable:
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, map[string]string{"message": err.Error()})
}
