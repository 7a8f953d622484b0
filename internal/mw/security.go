// Package mw holds the gin middleware that guards the gateway.
package mw

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Request headers understood by the gateway.
const (
	TokenHeader   = "X-PRINTER-TOKEN"
	PrinterHeader = "X-PRINTER-ID"
)

// Loopback rejects every request whose peer address is not a loopback
// address. Forwarding headers are ignored.
func Loopback() gin.HandlerFunc {
	return func(c *gin.Context) {
		host, _, err := net.SplitHostPort(strings.TrimSpace(c.Request.RemoteAddr))
		if err != nil {
			host = c.Request.RemoteAddr
		}
		ip := net.ParseIP(host)
		if ip == nil || !ip.IsLoopback() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"ok": false, "error": "Only localhost is allowed."})
			return
		}
		c.Next()
	}
}

// TokenMatches compares the trimmed tokens in constant time. Blank tokens
// never match.
func TokenMatches(expected, provided string) bool {
	expected = strings.TrimSpace(expected)
	provided = strings.TrimSpace(provided)
	if expected == "" || provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}

// TokenAuth requires the pairing token returned by token in the
// X-PRINTER-TOKEN header. When queryParam is set the token may also arrive
// as a query parameter, for clients such as browser websockets that cannot
// set headers.
func TokenAuth(token func() string, queryParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader(TokenHeader)
		if strings.TrimSpace(provided) == "" && queryParam != "" {
			provided = c.Query(queryParam)
		}
		if !TokenMatches(token(), provided) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "Unauthorized token."})
			return
		}
		c.Next()
	}
}

// OriginAllowed reports whether origin appears in allowed, ignoring case and
// surrounding space.
func OriginAllowed(allowed []string, origin string) bool {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return false
	}
	for _, item := range allowed {
		if strings.EqualFold(strings.TrimSpace(item), origin) {
			return true
		}
	}
	return false
}

// CORS answers cross-origin requests for the origins returned by origins at
// request time, so configuration changes apply without a restart. Any
// OPTIONS request that gets past it is answered with 204.
func CORS(origins func() []string) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return OriginAllowed(origins(), origin)
		},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", TokenHeader, PrinterHeader},
		AllowCredentials: false,
		MaxAge:           10 * time.Minute,
	}
	handler := cors.New(corsConfig)

	return func(c *gin.Context) {
		handler(c)
		if c.IsAborted() {
			return
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
