package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/footprint/middleware"
)

func protectedApp() *fiber.App {
	app := fiber.New()
	app.Get("/reports", middleware.Protected(), func(c *fiber.Ctx) error {
		return c.SendString(middleware.GetSubject(c))
	})
	return app
}

func get(t *testing.T, app *fiber.App, auth string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestProtected_ValidToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	token, expires, err := middleware.GenerateToken("analyst", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	resp := get(t, protectedApp(), "Bearer "+token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProtected_Rejects(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	app := protectedApp()

	assert.Equal(t, http.StatusUnauthorized, get(t, app, "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, get(t, app, "Bearer nonsense").StatusCode)

	t.Setenv("JWT_SECRET", "other-secret")
	token, _, err := middleware.GenerateToken("analyst", time.Hour)
	require.NoError(t, err)
	t.Setenv("JWT_SECRET", "test-secret")
	assert.Equal(t, http.StatusUnauthorized, get(t, app, "Bearer "+token).StatusCode, "wrong key")

	expired, _, err := middleware.GenerateToken("analyst", time.Nanosecond)
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	assert.Equal(t, http.StatusUnauthorized, get(t, app, "Bearer "+expired).StatusCode, "expired")
}

func TestProtected_RejectsForeignScope(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "someone",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := foreign.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, get(t, protectedApp(), "Bearer "+signed).StatusCode)
}

func TestProtected_NoSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, _, err := middleware.GenerateToken("analyst", time.Hour)
	assert.ErrorIs(t, err, middleware.ErrNoSecret)

	assert.Equal(t, http.StatusServiceUnavailable, get(t, protectedApp(), "Bearer x").StatusCode)
}
