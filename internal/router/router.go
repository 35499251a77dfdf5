package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/parking-reservation/internal/handler"
	"github.com/iliyamo/parking-reservation/internal/middleware"
)

// Deps bundles what the routes need.
type Deps struct {
	Reservations *handler.ReservationHandler
	Lots         *handler.LotHandler
	Forecasts    *handler.ForecastHandler
	DB           handler.Pinger // nil for the in-memory store
	JWTSecret    string
	RateLimit    echo.MiddlewareFunc // optional
}

// RegisterRoutes registers operational endpoints, public lot views and
// forecast reads, and the authenticated reservation API.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(d.DB))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/v1")
	if d.RateLimit != nil {
		v1.Use(d.RateLimit)
	}

	// Lot and forecast views are public and read committed state only.
	v1.GET("/lots", d.Lots.List)
	v1.GET("/lots/:id/availability", d.Lots.Availability)
	v1.GET("/lots/:id/forecast", d.Forecasts.Forecast)
	v1.GET("/lots/:id/best-time", d.Forecasts.BestTime)
	v1.GET("/lots/:id/patterns/daily", d.Forecasts.Daily)
	v1.GET("/lots/:id/patterns/weekly", d.Forecasts.Weekly)

	// Reservations require a token; ownership is checked by the service.
	auth := v1.Group("/reservations",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(middleware.RoleUser, middleware.RoleAdmin),
	)
	auth.POST("", d.Reservations.Create)
	auth.GET("", d.Reservations.List)
	auth.GET("/:id", d.Reservations.Get)
	auth.GET("/:id/payments", d.Reservations.Payments)
	auth.DELETE("/:id", d.Reservations.Cancel)
}
