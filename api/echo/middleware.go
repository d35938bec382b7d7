package echo

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	apierrors "github.com/walletgate/walletgate/errors"
	"github.com/walletgate/walletgate/ratelimit"
)

// RateLimit gates a route group with the given limit profile. The client
// key combines IP and a truncated user-agent prefix; rejections carry a
// Retry-After header and a retryable error body.
func RateLimit(limiter ratelimit.Limiter, profile ratelimit.Profile) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := ratelimit.ClientKey(c.RealIP(), c.Request().UserAgent())

			result := limiter.Check(c.Request().Context(), key, profile.Limit, profile.Window)
			if !result.Allowed {
				retryAfter := int(result.RetryAfter.Seconds())
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(profile.Limit))
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return c.JSON(http.StatusTooManyRequests, apierrors.NewRateLimited(retryAfter))
			}

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(profile.Limit))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			return next(c)
		}
	}
}

// sessionToken extracts the login token from the X-Session-Token header or
// the session cookie.
func sessionToken(c echo.Context) string {
	if token := c.Request().Header.Get("X-Session-Token"); token != "" {
		return token
	}
	if cookie, err := c.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// apiKey extracts the admin API key from X-API-Key or a bearer
// Authorization header.
func apiKey(c echo.Context) string {
	if key := c.Request().Header.Get("X-API-Key"); key != "" {
		return key
	}
	auth := c.Request().Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}
