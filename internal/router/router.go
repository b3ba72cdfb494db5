// Package router wires HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/hoangnm/court-booking/internal/config"
	"github.com/hoangnm/court-booking/internal/handler"
	"github.com/hoangnm/court-booking/internal/middleware"
	"github.com/hoangnm/court-booking/internal/model"
)

// Handlers groups everything the router needs to register the API.
type Handlers struct {
	Auth    *handler.AuthHandler
	Centers *handler.CenterHandler
	Booking *handler.BookingHandler
	Loyalty *handler.LoyaltyHandler
	Webhook *handler.WebhookHandler
}

// Register mounts all routes on the echo instance.  Public routes are the
// health check, auth and the webhook; everything else requires a valid
// access token.
func Register(e *echo.Echo, h Handlers, jwtSecret string, rl config.RateLimitConfig, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	auth := e.Group("/v1/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)

	// The webhook authenticates by HMAC signature, not by JWT.
	e.POST("/v1/payments/webhook", h.Webhook.Handle)

	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))
	v1.Use(middleware.RequireRole(model.RoleOwner, model.RoleCustomer))

	v1.GET("/me", h.Auth.Me)

	v1.GET("/centers", h.Centers.ListCenters)
	v1.GET("/centers/:id", h.Centers.GetCenter)
	v1.GET("/centers/:id/courts", h.Centers.ListCourts)

	owner := v1.Group("", middleware.RequireRole(model.RoleOwner))
	owner.POST("/centers", h.Centers.CreateCenter)
	owner.POST("/centers/:id/courts", h.Centers.CreateCourt)

	bookings := v1.Group("/bookings")
	bookings.POST("", h.Booking.Create, middleware.RateLimit(rl, rdb))
	bookings.GET("", h.Booking.List)
	bookings.GET("/:id", h.Booking.Get)
	bookings.POST("/:id/pay", h.Booking.Pay)
	bookings.GET("/:id/payment-session", h.Booking.GetPaymentSession)

	v1.GET("/loyalty/points", h.Loyalty.Points)
	v1.GET("/loyalty/vouchers", h.Loyalty.Vouchers)
	v1.POST("/loyalty/vouchers/:id/redeem", h.Loyalty.RedeemVoucher)
}
