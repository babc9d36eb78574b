package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const requestStartedKey = "request_started_at"

// RequestTimer stamps the request start so cached reads can report their processing time.
func RequestTimer() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartedKey, time.Now())
		c.Next()
	}
}

// SnapshotMeta builds the meta block of a read served from the cost or dashboard cache.
func SnapshotMeta(c *gin.Context, hit bool) map[string]interface{} {
	meta := map[string]interface{}{"cache_hit": hit}
	if started, ok := c.Get(requestStartedKey); ok {
		if at, ok := started.(time.Time); ok {
			meta["processing_time_ms"] = time.Since(at).Milliseconds()
		}
	}
	return meta
}
