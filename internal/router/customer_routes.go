package router

import (
	"github.com/iliyamo/cinema-seat-reservation/internal/handler"
	"github.com/iliyamo/cinema-seat-reservation/internal/middleware"
	"github.com/labstack/echo/v4"
)

// RegisterCustomer registers customer-scoped endpoints under /v1. All
// routes require a valid JWT and the CUSTOMER role. Customers can hold
// and release seats on a function, purchase and cancel transactions,
// and list their own transaction history.
func RegisterCustomer(e *echo.Echo, h *handler.TransactionHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("CUSTOMER"),
	)
	g.GET("/functions/:id/seats", h.SeatMap)
	g.POST("/functions/:id/holds", h.HoldSeats)
	g.DELETE("/functions/:id/holds", h.ReleaseHolds)

	g.POST("/transactions", h.CreateTransaction)
	g.GET("/transactions", h.ListTransactions)
	g.GET("/transactions/:id", h.GetTransaction)
	g.POST("/transactions/:id/cancel", h.CancelTransaction)
}

// RegisterRealtime registers the public seat-map websocket endpoint.
// It carries its own auth via the JWT query parameter handled inside
// the handler itself rather than the header-based
// middleware used by the REST routes, since browser WebSocket clients
// cannot set arbitrary headers on the upgrade request.
func RegisterRealtime(e *echo.Echo, h *handler.RealtimeHandler) {
	e.GET("/v1/ws/functions/:id", h.Subscribe)
}
