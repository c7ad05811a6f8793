package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"strayland/internal/config"
	"strayland/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func withMiniRedis(t *testing.T) (*miniredis.Miniredis, func(*config.Config, *Deps)) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, func(_ *config.Config, d *Deps) { d.Redis = rdb }
}

func TestPing(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, request(http.MethodGet, "/api/__ping", nil, ""))
	require.Equal(t, http.StatusOK, resp.status)
	assert.JSONEq(t, `{"ok":true}`, string(resp.body))
}

func TestHealthChecks(t *testing.T) {
	t.Run("liveness", func(t *testing.T) {
		env := newTestEnv(t)
		resp := env.do(t, request(http.MethodGet, "/health/live", nil, ""))
		require.Equal(t, http.StatusOK, resp.status)
		var body map[string]any
		resp.decode(t, &body)
		assert.Equal(t, "up", body["status"])
	})

	t.Run("ready without redis", func(t *testing.T) {
		env := newTestEnv(t)
		resp := env.do(t, request(http.MethodGet, "/health/ready", nil, ""))
		require.Equal(t, http.StatusOK, resp.status, string(resp.body))
		var body map[string]any
		resp.decode(t, &body)
		assert.Equal(t, "healthy", body["status"])
		checks := body["checks"].(map[string]any)
		assert.Equal(t, "healthy", checks["database"])
		assert.Equal(t, "disabled", checks["redis"])
		assert.Equal(t, float64(0), body["websocket_clients"])
	})

	t.Run("ready with redis", func(t *testing.T) {
		_, withRedis := withMiniRedis(t)
		env := newTestEnv(t, withRedis)
		resp := env.do(t, request(http.MethodGet, "/health/ready", nil, ""))
		require.Equal(t, http.StatusOK, resp.status, string(resp.body))
		var body map[string]any
		resp.decode(t, &body)
		assert.Equal(t, "healthy", body["checks"].(map[string]any)["redis"])
	})

	t.Run("redis down", func(t *testing.T) {
		mr, withRedis := withMiniRedis(t)
		env := newTestEnv(t, withRedis)
		mr.Close()
		resp := env.do(t, request(http.MethodGet, "/health/ready", nil, ""))
		assert.Equal(t, http.StatusServiceUnavailable, resp.status)
	})

	t.Run("database closed", func(t *testing.T) {
		env := newTestEnv(t)
		sqlDB, err := env.db.DB()
		require.NoError(t, err)
		require.NoError(t, sqlDB.Close())
		resp := env.do(t, request(http.MethodGet, "/health/ready", nil, ""))
		assert.Equal(t, http.StatusServiceUnavailable, resp.status)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	post := env.seedPost(t, "user:1", "Counted")
	resp := env.do(t, request(http.MethodPost, likePath(post.ID), nil, "device-a"))
	require.Equal(t, http.StatusOK, resp.status)

	resp = env.do(t, request(http.MethodGet, "/metrics", nil, ""))
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, string(resp.body), "strayland_like_toggles_total")
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, request(http.MethodGet, "/api/__ping", nil, ""))
	assert.Equal(t, "nosniff", resp.header.Get("X-Content-Type-Options"))
	assert.Equal(t, "cross-origin", resp.header.Get("Cross-Origin-Resource-Policy"))
	assert.NotEmpty(t, resp.header.Get("X-Request-Id"))
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)

	t.Run("allowed origin", func(t *testing.T) {
		req := request(http.MethodGet, "/api/posts", nil, "")
		req.Header.Set("Origin", "http://localhost:5173")
		resp := env.do(t, req)
		assert.Equal(t, "http://localhost:5173", resp.header.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", resp.header.Get("Access-Control-Allow-Credentials"))
	})

	t.Run("preflight allows the client id header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/posts/1/like", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "X-Client-Id")
		resp := env.do(t, req)
		assert.Equal(t, http.StatusNoContent, resp.status)
		assert.Contains(t, resp.header.Get("Access-Control-Allow-Headers"), "X-Client-Id")
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := request(http.MethodGet, "/api/posts", nil, "")
		req.Header.Set("Origin", "https://evil.example")
		resp := env.do(t, req)
		assert.Empty(t, resp.header.Get("Access-Control-Allow-Origin"))
	})
}

func TestToggleLike_RateLimitedResponseKeepsCORS(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	_, withRedis := withMiniRedis(t)
	env := newTestEnv(t, withRedis, func(c *config.Config, _ *Deps) { c.RateLimitLikes = 1 })
	post := env.seedPost(t, "user:1", "Popular puppy")

	like := func() response {
		req := request(http.MethodPost, likePath(post.ID), nil, "device-a")
		req.Header.Set("Origin", "http://localhost:5173")
		return env.do(t, req)
	}

	first := like()
	require.Equal(t, http.StatusOK, first.status, string(first.body))

	second := like()
	assert.Equal(t, http.StatusTooManyRequests, second.status)
	assert.Equal(t, "60", second.header.Get("Retry-After"))
	assert.Equal(t, "http://localhost:5173", second.header.Get("Access-Control-Allow-Origin"))

	other := request(http.MethodPost, likePath(post.ID), nil, "device-b")
	assert.Equal(t, http.StatusOK, env.do(t, other).status)
}

func TestMapServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		want       int
		wantCode   string
		retryAfter string
	}{
		{"not found", models.NewNotFoundError("Post", 1), http.StatusNotFound, models.CodeNotFound, ""},
		{"validation", models.NewValidationError("bad"), http.StatusBadRequest, models.CodeValidation, ""},
		{"forbidden", models.NewForbiddenError("no"), http.StatusForbidden, models.CodeForbidden, ""},
		{"store unavailable", models.NewStoreUnavailableError("toggle", errors.New("down")), http.StatusServiceUnavailable, models.CodeStoreUnavailable, "1"},
		{"llm unavailable", models.NewLLMUnavailableError(), http.StatusServiceUnavailable, models.CodeLLMUnavailable, ""},
		{"upstream", models.NewUpstreamError("assistant", errors.New("boom")), http.StatusBadGateway, models.CodeUpstream, ""},
		{"payload too large", models.NewPayloadTooLargeError(10), http.StatusRequestEntityTooLarge, models.CodePayloadTooLarge, ""},
		{"plain error", errors.New("surprise"), http.StatusInternalServerError, models.CodeInternal, ""},
	}

	app := fiber.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := app.AcquireCtx(&fasthttp.RequestCtx{})
			defer app.ReleaseCtx(c)

			require.NoError(t, mapServiceError(c, tt.err))
			assert.Equal(t, tt.want, c.Response().StatusCode())
			assert.Contains(t, string(c.Response().Body()), `"code":"`+tt.wantCode+`"`)
			assert.Equal(t, tt.retryAfter, string(c.Response().Header.Peek(fiber.HeaderRetryAfter)))
		})
	}
}

func TestHumanizeParam(t *testing.T) {
	tests := map[string]string{
		"id":        "ID",
		"postId":    "post ID",
		"commentId": "comment ID",
		"voterHash": "voterHash",
	}
	for in, want := range tests {
		assert.Equal(t, want, humanizeParam(in), in)
	}
}

func TestParseIDRejectsInvalidValues(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/posts/abc", "/api/posts/-3", "/api/posts/0"} {
		resp := env.do(t, request(http.MethodGet, path, nil, ""))
		assert.Equal(t, http.StatusBadRequest, resp.status, path)
		var body models.ErrorResponse
		resp.decode(t, &body)
		assert.Equal(t, "Invalid ID", body.Error)
	}
}
