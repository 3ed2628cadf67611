package main

import (
	"net/http"

	"github.com/yudhasanggrama/lappygo-store/internal/middleware"
	"github.com/yudhasanggrama/lappygo-store/internal/services"

	"github.com/labstack/echo/v4"
)

func registerAdminRoutes(g *echo.Group, os *services.OrderService, cancel *services.CancelService) {
	a := g.Group("/admin")
	a.Use(middleware.JWTMiddleware())
	a.Use(middleware.AdminOnly)

	a.POST("/orders/:id/status", func(c echo.Context) error {
		var body struct {
			Status string `json:"status"`
		}
		if err := c.Bind(&body); err != nil || body.Status == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "status required"})
		}

		status, err := os.UpdateStatus(c.Request().Context(), c.Param("id"), body.Status)
		middleware.RecordOrderOperation("admin_status_update", err == nil)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"ok": true, "status": status})
	})

	a.POST("/orders/cancel", func(c echo.Context) error {
		var body struct {
			OrderID string `json:"order_id"`
			Note    string `json:"note"`
		}
		if err := c.Bind(&body); err != nil || body.OrderID == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "order_id required"})
		}

		res, err := cancel.ApproveCancel(c.Request().Context(), body.OrderID, body.Note)
		middleware.RecordOrderOperation("cancel_approve", err == nil)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, res)
	})
}
