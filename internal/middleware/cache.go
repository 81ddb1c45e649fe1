package middleware

import "github.com/gin-gonic/gin"

// CacheHeader reports whether a response was served from the course cache.
const CacheHeader = "X-Cache"

// SetCacheHit records cache hit information for the current response. It must
// be called before the body is written.
func SetCacheHit(c *gin.Context, hit bool) {
	if hit {
		c.Header(CacheHeader, "HIT")
		return
	}
	c.Header(CacheHeader, "MISS")
}
