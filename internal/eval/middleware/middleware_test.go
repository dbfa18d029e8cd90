package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AmrMustafa282/skillify-analysis/internal/common/cache"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/middleware"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/service"
	appErr "github.com/AmrMustafa282/skillify-analysis/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func performRequest(t *testing.T, router *gin.Engine, path string, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response failed: %v", err)
		}
	}
	return rec, resp
}

func newAuthService(t *testing.T) *service.AuthService {
	t.Helper()
	hash, err := service.HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	authService, err := service.NewAuthService(service.AuthConfig{
		JWTSecret: []byte("middleware-test-secret"),
		Operators: []service.Operator{
			{Username: "admin", PasswordHash: hash, Role: "admin"},
			{Username: "viewer", PasswordHash: hash, Role: "viewer"},
		},
	})
	if err != nil {
		t.Fatalf("NewAuthService failed: %v", err)
	}
	return authService
}

func issueToken(t *testing.T, authService *service.AuthService, username string) string {
	t.Helper()
	result, err := authService.IssueToken(username, "correct horse battery")
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	return result.AccessToken
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	authService := newAuthService(t)

	router := gin.New()
	router.GET("/protected", middleware.Auth(authService), func(c *gin.Context) {
		if operator, ok := c.Get("operator"); ok {
			c.Header("X-Operator", operator.(string))
		}
		c.Status(http.StatusOK)
	})

	token := issueToken(t, authService, "admin")

	cases := []struct {
		name         string
		authHeader   string
		wantStatus   int
		wantCode     int
		wantOperator string
	}{
		{
			name:       "missing token",
			wantStatus: http.StatusUnauthorized,
			wantCode:   int(appErr.TokenInvalid),
		},
		{
			name:       "garbage token",
			authHeader: "Bearer not-a-token",
			wantStatus: http.StatusUnauthorized,
			wantCode:   int(appErr.TokenInvalid),
		},
		{
			name:         "valid token",
			authHeader:   "Bearer " + token,
			wantStatus:   http.StatusOK,
			wantOperator: "admin",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			headers := map[string]string{}
			if tc.authHeader != "" {
				headers["Authorization"] = tc.authHeader
			}
			rec, resp := performRequest(t, router, "/protected", headers)
			if rec.Code != tc.wantStatus {
				t.Fatalf("unexpected status: %d", rec.Code)
			}
			if tc.wantCode != 0 && resp.Code != tc.wantCode {
				t.Fatalf("unexpected error code: %d", resp.Code)
			}
			if tc.wantOperator != "" && rec.Header().Get("X-Operator") != tc.wantOperator {
				t.Fatalf("unexpected operator header: %s", rec.Header().Get("X-Operator"))
			}
		})
	}
}

func TestAuthMiddlewareRoleDenied(t *testing.T) {
	gin.SetMode(gin.TestMode)
	authService := newAuthService(t)

	router := gin.New()
	router.GET("/admin-only", middleware.Auth(authService, "admin"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec, resp := performRequest(t, router, "/admin-only", map[string]string{
		"Authorization": "Bearer " + issueToken(t, authService, "viewer"),
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if resp.Code != int(appErr.Forbidden) {
		t.Fatalf("unexpected error code: %d", resp.Code)
	}

	rec, _ = performRequest(t, router, "/admin-only", map[string]string{
		"Authorization": "Bearer " + issueToken(t, authService, "admin"),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status for admin: %d", rec.Code)
	}
}

func TestAuthMiddlewareNilService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", middleware.Auth(nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec, resp := performRequest(t, router, "/protected", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if resp.Code != int(appErr.ServiceUnavailable) {
		t.Fatalf("unexpected error code: %d", resp.Code)
	}
}

func newRateLimitService(t *testing.T) *service.RateLimitService {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	redisCache, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("NewRedisCacheWithClient failed: %v", err)
	}
	t.Cleanup(func() { _ = redisCache.Close() })
	return service.NewRateLimitService(redisCache, time.Minute, time.Second)
}

func TestRateLimitMiddlewareByIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rateService := newRateLimitService(t)

	router := gin.New()
	router.GET("/limited", middleware.RateLimit(rateService, "limited", middleware.RateLimitPolicy{
		Window: time.Minute,
		IPMax:  2,
	}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		rec, _ := performRequest(t, router, "/limited", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d unexpectedly limited: %d", i+1, rec.Code)
		}
	}
	rec, resp := performRequest(t, router, "/limited", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if resp.Code != int(appErr.TooManyRequests) {
		t.Fatalf("unexpected error code: %d", resp.Code)
	}
}

func TestRateLimitMiddlewareByOperator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	authService := newAuthService(t)
	rateService := newRateLimitService(t)

	router := gin.New()
	router.GET("/limited",
		middleware.Auth(authService),
		middleware.RateLimit(rateService, "limited", middleware.RateLimitPolicy{
			Window:      time.Minute,
			OperatorMax: 1,
		}),
		func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

	headers := map[string]string{"Authorization": "Bearer " + issueToken(t, authService, "admin")}
	rec, _ := performRequest(t, router, "/limited", headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request unexpectedly limited: %d", rec.Code)
	}
	rec, resp := performRequest(t, router, "/limited", headers)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if resp.Code != int(appErr.TooManyRequests) {
		t.Fatalf("unexpected error code: %d", resp.Code)
	}
}

func TestRateLimitMiddlewareNilService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/limited", middleware.RateLimit(nil, "limited", middleware.RateLimitPolicy{IPMax: 1}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 5; i++ {
		rec, _ := performRequest(t, router, "/limited", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("unexpected status: %d", rec.Code)
		}
	}
}
