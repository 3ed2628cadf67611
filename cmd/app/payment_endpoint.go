package main

import (
	"log"
	"net/http"

	"github.com/yudhasanggrama/lappygo-store/internal/apperr"
	"github.com/yudhasanggrama/lappygo-store/internal/middleware"
	"github.com/yudhasanggrama/lappygo-store/internal/services"

	"github.com/labstack/echo/v4"
)

func registerPaymentRoutes(g *echo.Group, ps *services.PaymentService) {
	// Gateway webhook. No auth middleware; authenticity comes from the
	// signature check inside the service. Only a bad signature gets a 401
	// and only a malformed payload gets a 400. Every other outcome is a
	// 200 so the gateway does not retry events we have already settled.
	g.POST("/payments/midtrans/notification", func(c echo.Context) error {
		var n services.MidtransNotification
		if err := c.Bind(&n); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
		}

		res, err := ps.HandleNotification(c.Request().Context(), &n)
		if err != nil {
			if e, ok := apperr.As(err); ok {
				switch e.Code {
				case apperr.CodeAuthenticationFailed:
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": e.Message})
				case apperr.CodeValidationError:
					return c.JSON(http.StatusBadRequest, echo.Map{"error": e.Message})
				}
			}
			log.Printf("webhook: order %s: %v", n.OrderID, err)
			return c.JSON(http.StatusOK, echo.Map{"ok": true, "warning": "internal"})
		}

		if res.Warning != "" {
			return c.JSON(http.StatusOK, echo.Map{"ok": true, "warning": res.Warning})
		}
		return c.JSON(http.StatusOK, echo.Map{"ok": true})
	})

	p := g.Group("/payments")
	p.Use(middleware.JWTMiddleware())

	p.GET("/status", func(c echo.Context) error {
		cl := middleware.GetClaims(c)
		if cl == nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
		}

		orderID := c.QueryParam("order_id")
		if orderID == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "order_id required"})
		}

		res, err := ps.CheckStatus(c.Request().Context(), orderID, cl.UserID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, res)
	})
}
