package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/vidshare/internal/metrics"
)

// Metrics records request count, latency and response size per route.
// Routes are labelled by their pattern (/api/v1/videos/:id), never the raw
// path, to keep label cardinality bounded.
func Metrics() gin.HandlerFunc {
	m := metrics.Get()

	return func(c *gin.Context) {
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		active := m.HTTPActiveConnections.WithLabelValues(method, path)
		active.Inc()
		defer active.Dec()

		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size > 0 {
			m.HTTPResponseSize.WithLabelValues(method, path, status).Observe(float64(size))
		}
		if c.Writer.Status() >= 500 {
			m.ErrorsTotal.WithLabelValues("http_5xx", path).Inc()
		}
	}
}
