package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/engagement-backend/internal/auth"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
)

func ok(c *gin.Context) { c.Status(http.StatusOK) }

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware_BlocksAfterLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/limited", RateLimitMiddleware(2, time.Minute), ok)

	for i := 0; i < 2; i++ {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/limited", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := serve(r, httptest.NewRequest(http.MethodGet, "/limited", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestAuthMiddleware_AndRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := auth.NewTokenManager("middleware-secret-0123456789abcdef", time.Hour)

	r := gin.New()
	r.GET("/admin", AuthMiddleware(tokens), RequireRole(valueobject.RoleAdmin), ok)
	r.GET("/ws", AuthMiddleware(tokens), ok)

	admin, err := tokens.Issue(uuid.New(), valueobject.RoleAdmin)
	require.NoError(t, err)
	client, err := tokens.Issue(uuid.New(), valueobject.RoleClient)
	require.NoError(t, err)

	cases := []struct {
		name  string
		path  string
		token string
		ws    bool
		code  int
	}{
		{name: "no token", path: "/admin", code: http.StatusUnauthorized},
		{name: "wrong role", path: "/admin", token: client, code: http.StatusForbidden},
		{name: "admin", path: "/admin", token: admin, code: http.StatusOK},
		{name: "query token ignored without upgrade", path: "/ws?token=" + client, code: http.StatusUnauthorized},
		{name: "query token on upgrade", path: "/ws?token=" + client, ws: true, code: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			if tc.ws {
				req.Header.Set("Connection", "upgrade")
				req.Header.Set("Upgrade", "websocket")
			}
			assert.Equal(t, tc.code, serve(r, req).Code)
		})
	}
}

func TestUUIDValidator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/jobs/:id", UUIDValidator("id"), ok)

	assert.Equal(t, http.StatusBadRequest, serve(r, httptest.NewRequest(http.MethodGet, "/jobs/42", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/jobs/"+uuid.NewString(), nil)).Code)
}

func TestRecovery_ReturnsInternalError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}
