package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/engagement-backend/internal/auth"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/interface/http/response"
)

// ContextUserKey: ключ AuthenticatedUser в gin.Context.
const ContextUserKey = "authUser"

// AuthMiddleware проверяет JWT access токен. Для WebSocket токен можно
// передать параметром ?token=, браузер не умеет ставить заголовок.
func AuthMiddleware(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := ""
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			raw = strings.TrimPrefix(header, "Bearer ")
		} else if q := c.Query("token"); q != "" && c.IsWebsocket() {
			raw = q
		}
		if raw == "" {
			response.Unauthorized(c, "требуется авторизация")
			c.Abort()
			return
		}

		user, err := tokens.Parse(raw)
		if err != nil {
			response.Unauthorized(c, "токен невалиден")
			c.Abort()
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// RequireRole пропускает только пользователей с одной из ролей.
func RequireRole(roles ...valueobject.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			response.Unauthorized(c, "требуется авторизация")
			c.Abort()
			return
		}
		for _, r := range roles {
			if user.Role == r {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "недостаточно прав")
		c.Abort()
	}
}

// CurrentUser достаёт пользователя, положенного AuthMiddleware.
func CurrentUser(c *gin.Context) (valueobject.AuthenticatedUser, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return valueobject.AuthenticatedUser{}, false
	}
	user, ok := v.(valueobject.AuthenticatedUser)
	return user, ok
}
