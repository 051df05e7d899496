package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

const contextClientIP = "client_ip"

// AuditMiddleware extracts and stores IP address for audit logging
func AuditMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(contextClientIP, getClientIP(c))
		c.Next()
	}
}

// getClientIP prefers proxy headers, then the socket address.
func getClientIP(c *gin.Context) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if isValidIP(ip) {
			return ip
		}
	}

	for _, h := range []string{"X-Real-Ip", "CF-Connecting-IP"} {
		if v := c.GetHeader(h); v != "" && isValidIP(v) {
			return v
		}
	}

	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return ip
}

func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}

// GetIPFromContext retrieves IP address from gin context
func GetIPFromContext(c *gin.Context) string {
	if ip := c.GetString(contextClientIP); ip != "" {
		return ip
	}
	return getClientIP(c)
}
