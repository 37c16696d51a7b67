package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"schoolpay_echo/internal/services"
)

// CustomErrorHandler maps payment-flow errors to JSON responses. Flow errors
// carry their kind and, when available, the gateway's own status code;
// everything else falls back to Echo's HTTPError handling.
func CustomErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	// Payment-flow errors carry an explicit kind
	if fe, ok := err.(*services.FlowError); ok {
		body := map[string]interface{}{
			"error":   string(fe.Kind),
			"details": fe.Message,
		}
		if fe.GatewayStatus != "" {
			body["status_from_gateway"] = fe.GatewayStatus
		}
		c.Logger().Error(err)
		if jsonErr := c.JSON(statusForKind(fe.Kind), body); jsonErr != nil {
			c.Logger().Error(jsonErr)
		}
		return
	}

	code := http.StatusInternalServerError
	message := "Something went wrong. Please try again later."

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if msg, ok := he.Message.(string); ok && msg != "" {
			message = msg
		}
	}

	c.Logger().Error(err)
	if jsonErr := c.JSON(code, map[string]string{"error": message}); jsonErr != nil {
		c.Logger().Error(jsonErr)
	}
}

func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindInvalidSelection, services.KindInvalidAmount:
		return http.StatusBadRequest
	case services.KindNotFound, services.KindNoPendingOrder:
		return http.StatusNotFound
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindAmountMismatch, services.KindExceedsPayment, services.KindAlreadyFinalized:
		return http.StatusConflict
	case services.KindGatewayRejected:
		return http.StatusBadGateway
	case services.KindGatewayUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
