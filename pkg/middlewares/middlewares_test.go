package middlewares

import (
	"net/http/httptest"
	"testing"
	"time"

	t_token "realtime_chat/pkg/token"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterStoreAllow(t *testing.T) {
	s := NewLimiterStore(5, 5, 100*time.Millisecond)
	defer s.Stop()

	key := "email:a@test.com"
	for i := 0; i < 5; i++ {
		assert.True(t, s.Allow(key), "iteration %d", i)
	}
	assert.False(t, s.Allow(key))

	// 其他 key 不受影響
	assert.True(t, s.Allow("email:b@test.com"))
}

func TestLimiterStoreEvict(t *testing.T) {
	s := NewLimiterStore(5, 5, time.Hour)
	defer s.Stop()

	s.Allow("k")
	s.evictBefore(time.Now().Add(time.Second))

	s.mu.Lock()
	_, ok := s.clients["k"]
	s.mu.Unlock()
	assert.False(t, ok)
}

func newApp(store *LimiterStore) *fiber.App {
	app := fiber.New()
	app.Use(JWTMiddleware())
	app.Use(RateLimit(store))
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"email": c.Locals(TokenEmail),
			"name":  c.Locals(TokenName),
		})
	})
	return app
}

func TestJWTMiddleware(t *testing.T) {
	store := NewLimiterStore(60, 10, time.Minute)
	defer store.Stop()
	app := newApp(store)

	t.Run("missing token", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/me", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("invalid token", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/me?auth=bad", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("query token", func(t *testing.T) {
		tok, err := t_token.GenerateJWT("a@test.com", "Alice", "test")
		require.NoError(t, err)
		resp, err := app.Test(httptest.NewRequest("GET", "/me?auth="+tok, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("cookie token", func(t *testing.T) {
		tok, err := t_token.GenerateJWT("a@test.com", "Alice", "test")
		require.NoError(t, err)
		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("Cookie", CookieToken+"="+tok)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	store := NewLimiterStore(1, 2, time.Minute)
	defer store.Stop()
	app := newApp(store)

	tok, err := t_token.GenerateJWT("c@test.com", "Carol", "test")
	require.NoError(t, err)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/me?auth="+tok, nil))
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{fiber.StatusOK, fiber.StatusOK, fiber.StatusTooManyRequests}, codes)
}
