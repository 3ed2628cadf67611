package main

import (
	"log"
	"net/http"

	"github.com/yudhasanggrama/lappygo-store/internal/apperr"

	"github.com/labstack/echo/v4"
)

// respondError maps a service error onto the wire. Tagged errors carry their
// own status and code; everything else is a plain 500.
func respondError(c echo.Context, err error) error {
	if e, ok := apperr.As(err); ok {
		return c.JSON(e.Status, echo.Map{
			"error": e.Message,
			"code":  e.Code,
		})
	}

	log.Printf("[http] %s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	return c.JSON(http.StatusInternalServerError, echo.Map{
		"error": "internal server error",
	})
}
