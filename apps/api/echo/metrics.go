package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsOpenedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hudhurio_sessions_opened_total",
		Help: "Number of roll-call sessions opened.",
	})
	sessionsLockedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hudhurio_sessions_locked_total",
		Help: "Number of roll-call sessions locked.",
	})
	recordsMarkedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hudhurio_records_marked_total",
		Help: "Number of attendance records written, bulk marks included.",
	})
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hudhurio_http_request_duration_seconds",
		Help:    "HTTP request latency by method, path and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func requestMetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			status := ctx.Response().Status
			if err != nil {
				if herr, ok := err.(*echo.HTTPError); ok {
					status = herr.Code
				}
			}
			requestDuration.
				WithLabelValues(ctx.Request().Method, ctx.Path(), strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}
