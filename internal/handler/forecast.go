package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation/internal/forecast"
)

// ForecastHandler serves occupancy forecasts.
type ForecastHandler struct {
	engine *forecast.Engine
}

func NewForecastHandler(e *forecast.Engine) *ForecastHandler {
	return &ForecastHandler{engine: e}
}

// Forecast handles GET /v1/lots/:id/forecast?hours=N (1..24, default 12).
func (h *ForecastHandler) Forecast(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid lot id")
	}
	hours, ok := queryInt(c, "hours", 12)
	if !ok {
		return badRequest(c, "hours must be an integer")
	}
	pts, err := h.engine.Forecast(c.Request().Context(), id, hours)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"lot_id": id, "hours": hours, "forecast": pts})
}

// BestTime handles GET /v1/lots/:id/best-time?window=N (3..48, default 24).
func (h *ForecastHandler) BestTime(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid lot id")
	}
	window, ok := queryInt(c, "window", 24)
	if !ok {
		return badRequest(c, "window must be an integer")
	}
	bt, err := h.engine.BestTime(c.Request().Context(), id, window)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, bt)
}

// Daily handles GET /v1/lots/:id/patterns/daily.
func (h *ForecastHandler) Daily(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid lot id")
	}
	p, err := h.engine.DailyPattern(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Weekly handles GET /v1/lots/:id/patterns/weekly.
func (h *ForecastHandler) Weekly(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid lot id")
	}
	p, err := h.engine.WeeklyPattern(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}
