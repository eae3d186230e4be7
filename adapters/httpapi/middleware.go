package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clustermaster/clustermaster/internal/logging"
	"github.com/clustermaster/clustermaster/internal/metrics"
)

// requestLogger puts log into the request context and logs every request
// once it has been served.
func requestLogger(log logging.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := logging.WithLogger(c.Request.Context(), log)
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		elapsed := time.Since(start)
		code := c.Writer.Status()
		kv := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", code,
			"elapsed", elapsed.String(),
			"client", c.ClientIP(),
		}
		switch {
		case code >= 500:
			log.Warn(ctx, "HTTP", append(kv, "errors", c.Errors.String())...)
		default:
			log.Info(ctx, "HTTP", kv...)
		}
		if m != nil {
			m.ObserveRequest(c.Request.Method, c.FullPath(), code, elapsed)
		}
	}
}
