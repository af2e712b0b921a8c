package httpserver

import (
	"math"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	apperrors "github.com/Ahmedmecatronique/AquaWing/internal/platform/errors"
)

// Idle per-IP limiters are dropped after this long.
const limiterIdleExpiry = 5 * time.Minute

// newRateLimiter throttles a route per client IP. Refused requests carry a
// Retry-After header sized to the token refill interval.
func newRateLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	limit := rate.Limit(ratePerSecond)
	retryAfter := strconv.Itoa(int(math.Ceil(1 / ratePerSecond)))

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      limit,
			Burst:     burst,
			ExpiresIn: limiterIdleExpiry,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return HandleError(c, apperrors.InternalError("failed to identify client", err))
		},
		DenyHandler: func(c echo.Context, ip string, _ error) error {
			c.Response().Header().Set("Retry-After", retryAfter)
			return HandleError(c, apperrors.RateLimitedError("too many attempts, slow down").WithField("ip", ip))
		},
	})
}
