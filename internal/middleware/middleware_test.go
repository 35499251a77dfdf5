package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-reservation/internal/config"
	"github.com/iliyamo/parking-reservation/internal/utils"
)

func newContext(method, path string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestPrincipal(t *testing.T) {
	cases := []struct {
		name  string
		id    interface{}
		role  interface{}
		want  uint64
		admin bool
		err   bool
	}{
		{"json number", float64(7), RoleUser, 7, false, false},
		{"numeric string", "12", RoleAdmin, 12, true, false},
		{"uint64", uint64(3), nil, 3, false, false},
		{"int", 5, RoleUser, 5, false, false},
		{"zero", float64(0), RoleUser, 0, false, true},
		{"garbage", "abc", RoleUser, 0, false, true},
		{"missing", nil, RoleUser, 0, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newContext(http.MethodGet, "/")
			if tc.id != nil {
				c.Set("user_id", tc.id)
			}
			if tc.role != nil {
				c.Set("role", tc.role)
			}
			p, err := Principal(c)
			if tc.err {
				assert.ErrorIs(t, err, ErrNoPrincipal)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.UserID)
			assert.Equal(t, tc.admin, p.IsAdmin)
		})
	}
}

func TestJWTAuth(t *testing.T) {
	const secret = "s3cret"
	var seen echo.Context
	h := JWTAuth(secret)(func(c echo.Context) error {
		seen = c
		return c.NoContent(http.StatusNoContent)
	})

	tok, err := utils.NewAccessToken(secret, 42, RoleAdmin, time.Minute)
	require.NoError(t, err)
	c, rec := newContext(http.MethodGet, "/")
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	p, err := Principal(seen)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), p.UserID)
	assert.True(t, p.IsAdmin)

	expired, err := utils.NewAccessToken(secret, 42, RoleUser, -time.Minute)
	require.NoError(t, err)
	c, rec = newContext(http.MethodGet, "/")
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer "+expired.Token)
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = newContext(http.MethodGet, "/")
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(RoleAdmin)(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	c, rec := newContext(http.MethodGet, "/")
	c.Set("role", RoleUser)
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	c, rec = newContext(http.MethodGet, "/")
	c.Set("role", RoleAdmin)
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitDisabledPassesThrough(t *testing.T) {
	called := false
	next := func(c echo.Context) error { called = true; return nil }

	mw := RateLimit(config.RateLimitConfig{Enabled: true}, nil)
	c, _ := newContext(http.MethodGet, "/")
	require.NoError(t, mw(next)(c))
	assert.True(t, called)
}

func TestRateKey(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/v1/lots")
	c.SetPath("/v1/lots")
	c.Request().RemoteAddr = "10.0.0.5:5555"
	c.Set("user_id", float64(9))

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_user_route"}
	assert.Equal(t, "rl:ip:10.0.0.5:user:9:route:GET /v1/lots", rateKey(cfg, c))

	cfg.KeyStrategy = "user"
	c.Set("user_id", nil)
	assert.Equal(t, "rl:user:anon", rateKey(cfg, c))
}
