package httpserver

import (
	"math"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	apperrors "github.com/svssathvik7/catalog-pollings-backend/internal/platform/errors"
	"golang.org/x/time/rate"
)

// routeLimit is a token bucket budget for one route.
type routeLimit struct {
	perSecond float64
	burst     int
}

var (
	createLimit = routeLimit{perSecond: 1, burst: 5}
	voteLimit   = routeLimit{perSecond: 5, burst: 10}
	loginLimit  = routeLimit{perSecond: 1, burst: 5}
)

const idleBucketExpiry = 5 * time.Minute

// retryAfter is the whole number of seconds until one token refills.
func (l routeLimit) retryAfter() string {
	if l.perSecond <= 0 {
		return "60"
	}
	return strconv.Itoa(int(math.Ceil(1 / l.perSecond)))
}

// middleware keys buckets by the signed-in user when the route is authenticated, by client
// IP otherwise. Every call builds a separate store.
func (l routeLimit) middleware() echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(l.perSecond),
		Burst:     l.burst,
		ExpiresIn: idleBucketExpiry,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if id := userID(c); id != "" {
				return "user:" + id, nil
			}
			return "ip:" + c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			c.Response().Header().Set("Retry-After", l.retryAfter())
			return HandleError(c, apperrors.RateLimitedError("rate limit exceeded"))
		},
	})
}
