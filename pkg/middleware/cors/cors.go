package cors

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// allowedMethods covers the verbs this API registers, including the
// PATCH used to mark payments as paid.
const allowedMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"

// Config holds the browser-facing CORS policy.
type Config struct {
	AllowedOrigins []string
	AllowedHeaders []string
	MaxAge         time.Duration
}

// New returns a CORS middleware driven by the configured policy. An
// empty origin list allows any origin.
func New(cfg Config) gin.HandlerFunc {
	allowAll := len(cfg.AllowedOrigins) == 0
	origins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		origins[normalizeOrigin(origin)] = struct{}{}
	}

	headers := strings.Join(cfg.AllowedHeaders, ", ")
	if headers == "" {
		headers = "Authorization, Content-Type, X-Request-ID"
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}
	maxAgeSeconds := strconv.Itoa(int(maxAge.Seconds()))

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Vary", "Origin")

		origin := c.GetHeader("Origin")
		switch {
		case origin != "":
			if _, ok := origins[normalizeOrigin(origin)]; ok || allowAll {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
			}
		case allowAll:
			h.Set("Access-Control-Allow-Origin", "*")
		}

		if c.Request.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", allowedMethods)
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Max-Age", maxAgeSeconds)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func normalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimRight(origin, "/"))
}
