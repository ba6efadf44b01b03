package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/clinic-appointment-scheduler/internal/config"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/logging"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/utils"
)

const secret = "test-secret"

func whoami(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"user_id": c.Get("user_id"), "role": c.Get("role")})
}

func serve(e *echo.Echo, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	var gotID interface{}
	e.GET("/me", func(c echo.Context) error {
		gotID = c.Get("user_id")
		return whoami(c)
	}, JWTAuth(secret), RequireRole("PATIENT"))

	tok, err := utils.NewAccessToken(secret, 42, "PATIENT", time.Hour)
	require.NoError(t, err)
	rec := serve(e, tok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(42), gotID)

	assert.Equal(t, http.StatusUnauthorized, serve(e, "").Code)

	other, err := utils.NewAccessToken("another-secret", 42, "PATIENT", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(e, other.Token).Code)

	expired, err := utils.NewAccessToken(secret, 42, "PATIENT", -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(e, expired.Token).Code)

	doctor, err := utils.NewAccessToken(secret, 70, "DOCTOR", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, serve(e, doctor.Token).Code)
}

func TestJWTAuthSubjectForms(t *testing.T) {
	e := echo.New()
	var gotID interface{}
	e.GET("/me", func(c echo.Context) error {
		gotID = c.Get("user_id")
		return c.NoContent(http.StatusOK)
	}, JWTAuth(secret))

	sign := func(claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}

	rec := serve(e, sign(jwt.MapClaims{"sub": "17", "role": "DOCTOR"}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(17), gotID)

	assert.Equal(t, http.StatusUnauthorized, serve(e, sign(jwt.MapClaims{"sub": "abc", "role": "DOCTOR"})).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, sign(jwt.MapClaims{"sub": 17})).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, sign(jwt.MapClaims{"sub": 1.5, "role": "DOCTOR"})).Code)
}

func TestTokenBucket(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            2 * time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
	e := echo.New()
	e.GET("/me", whoami, NewTokenBucket(cfg, rdb, logging.Discard()))

	for i := 0; i < 2; i++ {
		rec := serve(e, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}
	rec := serve(e, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestTokenBucketFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	mr.Close()

	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Hour, TTL: time.Hour, Prefix: "rl"}
	e := echo.New()
	e.GET("/me", whoami, NewTokenBucket(cfg, rdb, logging.Discard()))

	assert.Equal(t, http.StatusOK, serve(e, "").Code)
	assert.Equal(t, http.StatusOK, serve(e, "").Code)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/bookings")
	c.Set("user_id", uint64(42))

	assert.Equal(t, "rl:ip:10.0.0.1:user:42:route:POST /v1/bookings",
		buildRateKey(config.RateLimitConfig{Prefix: "rl"}, c))
	assert.Equal(t, "rl:user:42", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c))
}
