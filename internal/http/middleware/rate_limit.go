package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/ignatzorin/engagement-backend/internal/interface/http/response"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

// RateLimitMiddleware ограничивает количество запросов с одного IP.
// По умолчанию: 10 запросов в минуту.
func RateLimitMiddleware(limit int64, period time.Duration) gin.HandlerFunc {
	return rateLimit(limit, period, func(c *gin.Context) string { return c.ClientIP() })
}

// UserRateLimitMiddleware считает запросы по пользователю, а не по IP.
// Ставится после AuthMiddleware.
func UserRateLimitMiddleware(limit int64, period time.Duration) gin.HandlerFunc {
	return rateLimit(limit, period, func(c *gin.Context) string {
		if user, ok := CurrentUser(c); ok {
			return "user:" + user.ID.String()
		}
		return c.ClientIP()
	})
}

func rateLimit(limit int64, period time.Duration, key func(*gin.Context) string) gin.HandlerFunc {
	if limit <= 0 {
		limit = 10
	}
	if period <= 0 {
		period = time.Minute
	}

	instance := limiter.New(memory.NewStore(), limiter.Rate{Period: period, Limit: limit})

	return func(c *gin.Context) {
		lctx, err := instance.Get(c, key(c))
		if err != nil {
			response.Error(c, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось проверить лимит запросов"))
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", lctx.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", lctx.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", lctx.Reset))

		if lctx.Reached {
			response.TooManyRequests(c, "слишком много запросов, попробуйте позже")
			c.Abort()
			return
		}

		c.Next()
	}
}
