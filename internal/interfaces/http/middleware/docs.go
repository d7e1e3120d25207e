package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tpa/backend/internal/interfaces/http/dto"
)

// DocsConfig controls who may read the API documentation
type DocsConfig struct {
	Enabled bool
	// AllowedIPs holds single addresses or CIDR ranges. Empty allows everyone.
	AllowedIPs []string
}

// DocsAccess guards the swagger UI. A disabled endpoint answers 404 so
// that its presence is not advertised; a caller outside the allow-list gets
// 403.
func DocsAccess(cfg DocsConfig) gin.HandlerFunc {
	ips, nets := parseAllowList(cfg.AllowedIPs)
	restricted := len(cfg.AllowedIPs) > 0

	return func(c *gin.Context) {
		if !cfg.Enabled {
			abortWithError(c, dto.ErrCodeNotFound, "API documentation is not available")
			return
		}
		if restricted && !ipAllowed(net.ParseIP(c.ClientIP()), ips, nets) {
			abortWithError(c, dto.ErrCodeForbidden, "Access to API documentation is restricted")
			return
		}
		c.Next()
	}
}

// parseAllowList skips entries that are neither an address nor a CIDR range
func parseAllowList(entries []string) ([]net.IP, []*net.IPNet) {
	var ips []net.IP
	var nets []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if strings.Contains(entry, "/") {
			if _, n, err := net.ParseCIDR(entry); err == nil {
				nets = append(nets, n)
			}
			continue
		}
		if ip := net.ParseIP(entry); ip != nil {
			ips = append(ips, ip)
		}
	}
	return ips, nets
}

func ipAllowed(ip net.IP, ips []net.IP, nets []*net.IPNet) bool {
	if ip == nil {
		return false
	}
	for _, allowed := range ips {
		if allowed.Equal(ip) {
			return true
		}
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
