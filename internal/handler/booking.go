package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hoangnm/court-booking/internal/booking"
	"github.com/hoangnm/court-booking/internal/middleware"
	"github.com/hoangnm/court-booking/internal/model"
	"github.com/hoangnm/court-booking/internal/payment"
	"github.com/hoangnm/court-booking/internal/repository"
)

// BookingHandler serves booking creation, listing and payment endpoints.
type BookingHandler struct {
	Allocator *booking.Allocator
	Bookings  *repository.BookingRepo
	Sessions  *repository.PaymentSessionRepo
	Payments  *payment.Service
}

// NewBookingHandler returns the booking handler.  Dependencies are
// required.
func NewBookingHandler(alloc *booking.Allocator, bookings *repository.BookingRepo, sessions *repository.PaymentSessionRepo, payments *payment.Service) *BookingHandler {
	if alloc == nil || bookings == nil || sessions == nil || payments == nil {
		panic("NewBookingHandler: nil dependency")
	}
	return &BookingHandler{Allocator: alloc, Bookings: bookings, Sessions: sessions, Payments: payments}
}

type createBookingReq struct {
	CenterID  string    `json:"center_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Create handles POST /v1/bookings.  The allocator picks the first free
// court of the center for the requested window.
func (h *BookingHandler) Create(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.CenterID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "center_id is required"})
	}

	b, err := h.Allocator.Allocate(c.Request().Context(), req.CenterID, uid, req.StartTime, req.EndTime)
	switch {
	case errors.Is(err, booking.ErrInvalidWindow):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrNoCourtAvailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "no court available for the requested window"})
	case errors.Is(err, booking.ErrAllocationFailed):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "booking temporarily unavailable, try again"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create booking"})
	}
	return c.JSON(http.StatusCreated, b)
}

// List handles GET /v1/bookings for the authenticated user.
func (h *BookingHandler) List(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookings, err := h.Bookings.ListByUser(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not list bookings"})
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": bookings})
}

// Get handles GET /v1/bookings/:id.  Users only see their own bookings.
func (h *BookingHandler) Get(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	b, err := h.Bookings.GetByID(c.Request().Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load booking"})
	}
	if b.UserID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, b)
}

type payReq struct {
	Method string `json:"method"`
}

// Pay handles POST /v1/bookings/:id/pay and opens a payment session.
func (h *BookingHandler) Pay(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req payReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if !validMethod(req.Method) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unsupported payment method"})
	}

	sess, clientSecret, err := h.Payments.CreateSession(c.Request().Context(), uid, c.Param("id"), req.Method)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, payment.ErrNotPayable):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create payment session"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"session": sess, "client_secret": clientSecret})
}

// GetPaymentSession handles GET /v1/bookings/:id/payment-session.
func (h *BookingHandler) GetPaymentSession(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sess, err := h.Sessions.GetByBookingID(c.Request().Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "payment session not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load payment session"})
	}
	if sess.UserID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, sess)
}

func validMethod(m string) bool {
	switch m {
	case model.MethodCard, model.MethodCash, model.MethodBankTransfer, model.MethodMomo:
		return true
	}
	return false
}
