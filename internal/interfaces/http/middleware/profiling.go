package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tpa/backend/internal/infrastructure/telemetry"
)

// Profiling attaches controller, route and method labels to the profiles
// taken while a request is served. Unmatched routes and skipped paths are
// not labelled.
func Profiling(enabled bool, skipPaths ...string) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" || skip[route] {
			c.Next()
			return
		}
		labels := telemetry.HTTPRequestLabels(controllerOf(route), route, c.Request.Method)
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// controllerOf names the resource of a route.
// "/api/v1/tpa/computation" gives "tpa", "/health" gives "health".
func controllerOf(route string) string {
	for _, seg := range strings.Split(strings.Trim(route, "/"), "/") {
		if seg == "" || seg == "api" || isVersionSegment(seg) || strings.HasPrefix(seg, ":") {
			continue
		}
		return seg
	}
	return ""
}

func isVersionSegment(seg string) bool {
	if len(seg) < 2 || seg[0] != 'v' {
		return false
	}
	for _, r := range seg[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
