// Package router wires HTTP routes to their handlers.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/handler"
)

// RegisterRoutes registers the public API surface on the Echo instance.
// createLimiter is applied only to reservation creation: that is the one
// endpoint where a request burst can pin inventory for the full hold TTL.
func RegisterRoutes(e *echo.Echo, res *handler.ReservationHandler, rules *handler.PricingRuleHandler, health *handler.HealthHandler, createLimiter echo.MiddlewareFunc) {
	e.GET("/healthz", health.Check)

	v1 := e.Group("/v1")
	v1.POST("/reservations", res.Create, createLimiter)
	v1.GET("/reservations/:id", res.Get)
	v1.POST("/reservations/:id/confirm", res.Confirm)
	v1.POST("/reservations/:id/cancel", res.Cancel)
	v1.POST("/reservations/:id/extend", res.Extend)

	// Admin surface. Authentication is expected to be enforced at the edge;
	// these routes stay under /v1 so the gateway can scope them by prefix.
	v1.GET("/events/:id/pricing-rules", rules.List)
	v1.POST("/events/:id/pricing-rules", rules.Create)
	v1.PUT("/pricing-rules/:id", rules.Update)
	v1.DELETE("/pricing-rules/:id", rules.Delete)
}
