package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"schoolpay_echo/internal/models"
	"schoolpay_echo/internal/services"
)

// AccountHandler exposes the fee summary read endpoint and the
// administrative ledger operations (account setup, extra fees, refunds).
type AccountHandler struct {
	ledger *services.LedgerService
	cache  *services.RedisCache
}

func NewAccountHandler(ledger *services.LedgerService, cache *services.RedisCache) *AccountHandler {
	return &AccountHandler{ledger: ledger, cache: cache}
}

func summaryCacheKey(accountID uint) string {
	return fmt.Sprintf("fee-summary:%d", accountID)
}

// Summary handles GET /fees/accounts/:id. The summary is cached briefly;
// every ledger mutation drops the cache entry.
func (h *AccountHandler) Summary(c echo.Context) error {
	guardian := getGuardianFromContext(c)
	if guardian == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Not logged in")
	}

	accountID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid account ID")
	}

	load := func() (AccountSummaryResponse, error) {
		snap, err := h.ledger.Snapshot(uint(accountID))
		if err != nil {
			return AccountSummaryResponse{}, err
		}
		return NewAccountSummary(snap), nil
	}

	var summary AccountSummaryResponse
	if h.cache != nil {
		summary, err = services.GetOrSet(h.cache, c.Request().Context(), summaryCacheKey(uint(accountID)), 30*time.Second, load)
	} else {
		summary, err = load()
	}
	if err != nil {
		return err
	}

	if guardian.Role != models.GuardianRoleAdmin && summary.GuardianID != guardian.ID {
		return echo.NewHTTPError(http.StatusForbidden, "You can only view your own fee accounts")
	}

	return c.JSON(http.StatusOK, summary)
}

// SetupAccount handles POST /admin/accounts.
func (h *AccountHandler) SetupAccount(c echo.Context) error {
	var setup services.AccountSetup
	if err := c.Bind(&setup); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if setup.FirstDueDate.IsZero() {
		setup.FirstDueDate = time.Now().AddDate(0, 1, 0)
	}

	account, err := h.ledger.SetupAccount(setup)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, account)
}

// AddExtraFee handles POST /admin/accounts/:id/extra-fees.
func (h *AccountHandler) AddExtraFee(c echo.Context) error {
	accountID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid account ID")
	}

	var req struct {
		Name   string  `json:"name"`
		Amount float64 `json:"amount"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}

	extra, err := h.ledger.AddExtraFee(uint(accountID), req.Name, req.Amount)
	if err != nil {
		return err
	}
	h.invalidate(c, uint(accountID))
	return c.JSON(http.StatusCreated, extra)
}

// RecordRefund handles POST /admin/refunds.
func (h *AccountHandler) RecordRefund(c echo.Context) error {
	var req RefundRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}

	refund, err := h.ledger.RecordRefund(req.PaymentID, req.Amount, req.Note)
	if err != nil {
		return err
	}
	h.invalidate(c, refund.AccountID)
	return c.JSON(http.StatusCreated, refund)
}

func (h *AccountHandler) invalidate(c echo.Context, accountID uint) {
	if h.cache == nil {
		return
	}
	_ = h.cache.Delete(c.Request().Context(), summaryCacheKey(accountID))
}
