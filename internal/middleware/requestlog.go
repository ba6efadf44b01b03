package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/clinic-appointment-scheduler/internal/logging"
)

// RequestLogger writes one structured entry per request.  It expects
// echo's RequestID middleware to run first so the entry carries the
// X-Request-Id the client sees.
func RequestLogger(log *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let echo render the error so the status below is final
				c.Error(err)
			}

			req, res := c.Request(), c.Response()
			fields := logrus.Fields{
				"method":      req.Method,
				"path":        c.Path(),
				"status":      res.Status,
				"duration_ms": time.Since(start).Milliseconds(),
				"remote_ip":   c.RealIP(),
				"request_id":  res.Header().Get(echo.HeaderXRequestID),
			}
			if uid, ok := c.Get("user_id").(uint64); ok {
				fields["user_id"] = uid
			}
			entry := log.WithComponent("http").WithFields(fields)
			switch {
			case res.Status >= 500:
				entry.Error("request failed")
			case res.Status >= 400:
				entry.Info("request rejected")
			default:
				entry.Debug("request served")
			}
			return nil
		}
	}
}
