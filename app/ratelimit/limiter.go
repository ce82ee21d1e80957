package ratelimit

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-redis/redis_rate/v10"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-mobile-payments/app/auth"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/factory"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/types"
)

const keyPrefix = "mobile-payments:ratelimit:"

type allower interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

// KeyFunc picks the bucket for a request. An empty key skips limiting.
type KeyFunc func(ctx echo.Context) string

type Limiter struct {
	limiter  allower
	limit    redis_rate.Limit
	failOpen bool
	logger   logrus.FieldLogger
}

func NewLimiter(client *redis.Client, perMinute int, failOpen bool) *Limiter {
	return newLimiter(redis_rate.NewLimiter(client), perMinute, failOpen)
}

func newLimiter(limiter allower, perMinute int, failOpen bool) *Limiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &Limiter{
		limiter:  limiter,
		limit:    redis_rate.PerMinute(perMinute),
		failOpen: failOpen,
		logger:   factory.NewModuleLogger("rate-limiter"),
	}
}

func (l *Limiter) Middleware(keyFunc KeyFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			key := keyFunc(ctx)
			if key == "" {
				return next(ctx)
			}

			res, err := l.limiter.Allow(ctx.Request().Context(), keyPrefix+key, l.limit)
			if err != nil {
				factory.LoggerWithContext(l.logger, ctx).WithError(err).Warn("Rate limiter unavailable")
				if l.failOpen {
					return next(ctx)
				}
				return ctx.JSON(http.StatusServiceUnavailable, &types.ErrorResponse{Message: "rate limiting unavailable"})
			}

			ctx.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit.Rate))
			ctx.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

			if res.Allowed == 0 {
				retryAfter := int(res.RetryAfter.Seconds()) + 1
				ctx.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				return ctx.JSON(http.StatusTooManyRequests, &types.ErrorResponse{Message: "too many payment attempts, retry later"})
			}

			return next(ctx)
		}
	}
}

// ByUser buckets authenticated callers by user id and everyone else by client IP.
func ByUser(ctx echo.Context) string {
	if user := auth.UserFromContext(ctx); user != nil {
		return "user:" + user.ID
	}
	return "ip:" + ctx.RealIP()
}
