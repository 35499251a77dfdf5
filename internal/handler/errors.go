package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation/internal/forecast"
	"github.com/iliyamo/parking-reservation/internal/repository"
	"github.com/iliyamo/parking-reservation/internal/service"
)

// writeError renders err as {"error": code, "message": text} with the
// status that matches its kind.
func writeError(c echo.Context, err error) error {
	var se *service.Error
	switch {
	case errors.As(err, &se):
		if se.Kind.HTTPStatus() >= http.StatusInternalServerError {
			c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		}
		return c.JSON(se.Kind.HTTPStatus(), echo.Map{"error": se.Code, "message": se.Message})
	case errors.Is(err, repository.ErrLotNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": service.CodeLotNotFound, "message": "Parking lot not found"})
	case errors.Is(err, forecast.ErrInvalidHorizon), errors.Is(err, forecast.ErrInvalidWindow):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": service.CodeInvalidHorizon, "message": err.Error()})
	default:
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": service.CodeInternal, "message": "internal error"})
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "bad_request", "message": msg})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "unauthorized"})
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter.
func queryInt(c echo.Context, name string, def int) (int, bool) {
	v := c.QueryParam(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
