package middleware

// identity.go turns the claims stored by JWTAuth into the principal the
// reservation service works with.

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation/internal/service"
)

// ErrNoPrincipal is returned when the context carries no usable user id.
var ErrNoPrincipal = errors.New("invalid user_id in context")

// Principal reads the caller from the context. The sub claim may arrive as
// a JSON number or a numeric string.
func Principal(c echo.Context) (service.Principal, error) {
	var id uint64
	switch t := c.Get("user_id").(type) {
	case uint64:
		id = t
	case int:
		id = uint64(t)
	case int64:
		id = uint64(t)
	case float64:
		id = uint64(t)
	case string:
		n, err := strconv.ParseUint(t, 10, 64)
		if err != nil {
			return service.Principal{}, ErrNoPrincipal
		}
		id = n
	default:
		return service.Principal{}, ErrNoPrincipal
	}
	if id == 0 {
		return service.Principal{}, ErrNoPrincipal
	}
	role, _ := c.Get("role").(string)
	return service.Principal{UserID: id, IsAdmin: role == RoleAdmin}, nil
}

// userKey identifies the caller for rate limiting; anonymous callers share
// the "anon" bucket.
func userKey(c echo.Context) string {
	if p, err := Principal(c); err == nil {
		return strconv.FormatUint(p.UserID, 10)
	}
	return "anon"
}
