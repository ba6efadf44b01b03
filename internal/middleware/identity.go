package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// parseSubject turns a "sub" claim into a user ID.  JSON numbers decode
// as float64; some issuers send the ID as a decimal string instead.
func parseSubject(v interface{}) (uint64, bool) {
	switch t := v.(type) {
	case float64:
		if t <= 0 || t != float64(uint64(t)) {
			return 0, false
		}
		return uint64(t), true
	case string:
		n, err := strconv.ParseUint(t, 10, 64)
		if err != nil || n == 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// userKey identifies the caller for rate limiting.  Unauthenticated
// requests share the "anon" bucket of their IP.
func userKey(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case uint64:
		return strconv.FormatUint(v, 10)
	case string:
		if v != "" {
			return v
		}
	}
	return "anon"
}
