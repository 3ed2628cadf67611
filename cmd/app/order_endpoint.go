package main

import (
	"net/http"

	"github.com/yudhasanggrama/lappygo-store/internal/middleware"
	"github.com/yudhasanggrama/lappygo-store/internal/services"

	"github.com/labstack/echo/v4"
)

func registerOrderRoutes(
	g *echo.Group,
	cs *services.CheckoutService,
	os *services.OrderService,
	cancel *services.CancelService,
	ps *services.PaymentService,
) {
	p := g.Group("/orders")
	p.Use(middleware.JWTMiddleware())

	p.POST("/checkout", func(c echo.Context) error {
		cl := middleware.GetClaims(c)
		if cl == nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
		}

		var body struct {
			Items    []services.CheckoutItem `json:"items"`
			Shipping services.ShippingInfo   `json:"shipping"`
		}
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
		}

		res, err := cs.Checkout(c.Request().Context(), cl.UserID, body.Items, body.Shipping)
		middleware.RecordOrderOperation("checkout", err == nil)
		if err != nil {
			return respondError(c, err)
		}

		return c.JSON(http.StatusCreated, res)
	})

	p.GET("", func(c echo.Context) error {
		cl := middleware.GetClaims(c)
		if cl == nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
		}

		orders, err := os.ListByUser(c.Request().Context(), cl.UserID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"orders": orders})
	})

	p.GET("/:id", func(c echo.Context) error {
		cl := middleware.GetClaims(c)
		if cl == nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
		}

		detail, err := os.GetOrder(c.Request().Context(), c.Param("id"), cl.UserID, cl.Role == "admin")
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, detail)
	})

	p.POST("/cancel", func(c echo.Context) error {
		cl := middleware.GetClaims(c)
		if cl == nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
		}

		var body struct {
			OrderID string `json:"order_id"`
		}
		if err := c.Bind(&body); err != nil || body.OrderID == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "order_id required"})
		}

		err := cancel.SelfCancel(c.Request().Context(), body.OrderID, cl.UserID)
		middleware.RecordOrderOperation("self_cancel", err == nil)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"ok": true})
	})

	p.POST("/cancel-request", func(c echo.Context) error {
		cl := middleware.GetClaims(c)
		if cl == nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
		}

		var body struct {
			OrderID string `json:"order_id"`
			Reason  string `json:"reason"`
		}
		if err := c.Bind(&body); err != nil || body.OrderID == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "order_id required"})
		}

		res, err := cancel.RequestCancel(c.Request().Context(), body.OrderID, cl.UserID, body.Reason)
		middleware.RecordOrderOperation("cancel_request", err == nil)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, res)
	})

	p.POST("/:id/continue", func(c echo.Context) error {
		cl := middleware.GetClaims(c)
		if cl == nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
		}

		var body struct {
			Force bool `json:"force"`
		}
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
		}

		res, err := ps.ContinuePayment(c.Request().Context(), c.Param("id"), cl.UserID, body.Force)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, res)
	})
}
