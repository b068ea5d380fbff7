package api

import (
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// RequestMetrics logs one board.request.metrics entry per request.
func RequestMetrics(logger *log.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			fields := log.Fields{
				"method":   c.Request().Method,
				"route":    c.Path(),
				"status":   c.Response().Status,
				"total_ms": durationToMillis(time.Since(start)),
			}
			if err != nil {
				fields["error"] = err.Error()
			}
			entry := logger.WithFields(fields)
			if c.Response().Status >= 500 {
				entry.Warn("board.request.metrics")
			} else {
				entry.Info("board.request.metrics")
			}
			return nil
		}
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
