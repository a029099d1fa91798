package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Context keys written by JWTAuth.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// CurrentUser returns the authenticated user's ID from the request
// context.  The second return is false on unauthenticated requests.
func CurrentUser(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	return id, ok
}

// CurrentRole returns the authenticated user's role, or an empty
// string when unauthenticated.
func CurrentRole(c echo.Context) string {
	role, _ := c.Get(ctxRole).(string)
	return role
}

// rateKeyUserID renders the identity for rate-limit keys.  Anonymous
// requests share the "anon" bucket per IP.
func rateKeyUserID(c echo.Context) string {
	if id, ok := CurrentUser(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
