package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/http/middleware"
	"github.com/ignatzorin/engagement-backend/internal/interface/http/response"
	"github.com/ignatzorin/engagement-backend/internal/pkg/pagination"
)

// currentUser пишет 401 и возвращает false, если пользователь не определён.
func currentUser(c *gin.Context) (valueobject.AuthenticatedUser, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "требуется авторизация")
	}
	return user, ok
}

func pathID(c *gin.Context, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "некорректный ID "+what)
		return uuid.Nil, false
	}
	return id, true
}

func parseIntQuery(c *gin.Context, key string, defaultValue int) int {
	valueStr := c.Query(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func page(c *gin.Context) (int, int) {
	return pagination.Normalize(
		parseIntQuery(c, "limit", pagination.DefaultLimit),
		parseIntQuery(c, "offset", 0),
	)
}
