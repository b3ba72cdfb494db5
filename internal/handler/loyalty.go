package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hoangnm/court-booking/internal/loyalty"
	"github.com/hoangnm/court-booking/internal/middleware"
	"github.com/hoangnm/court-booking/internal/repository"
)

// LoyaltyHandler serves the points balance and voucher endpoints.
type LoyaltyHandler struct {
	Loyalty *loyalty.Service
}

// NewLoyaltyHandler returns the loyalty handler.
func NewLoyaltyHandler(svc *loyalty.Service) *LoyaltyHandler {
	if svc == nil {
		panic("NewLoyaltyHandler: nil service")
	}
	return &LoyaltyHandler{Loyalty: svc}
}

// Points handles GET /v1/loyalty/points.
func (h *LoyaltyHandler) Points(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	total, err := h.Loyalty.Balance(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load points"})
	}
	return c.JSON(http.StatusOK, echo.Map{"points": total})
}

// RedeemVoucher handles POST /v1/loyalty/vouchers/:id/redeem.
func (h *LoyaltyHandler) RedeemVoucher(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	v, err := h.Loyalty.Redeem(c.Request().Context(), uid, c.Param("id"))
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "voucher not found"})
	case errors.Is(err, loyalty.ErrAlreadyClaimed):
		return c.JSON(http.StatusConflict, echo.Map{"error": "voucher already claimed"})
	case errors.Is(err, loyalty.ErrInsufficientPoints):
		return c.JSON(http.StatusConflict, echo.Map{"error": "not enough points"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not redeem voucher"})
	}
	return c.JSON(http.StatusOK, echo.Map{"voucher": v})
}

// Vouchers handles GET /v1/loyalty/vouchers.
func (h *LoyaltyHandler) Vouchers(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	vouchers, err := h.Loyalty.Vouchers(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load vouchers"})
	}
	return c.JSON(http.StatusOK, echo.Map{"vouchers": vouchers})
}
