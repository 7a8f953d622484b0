package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetVAPIDPublicKey hands out the application server key a browser needs
// before it can PUT a failure-alert subscription.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "Failure alerts are not configured."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"publicKey": h.webpush.VAPIDPublicKey,
		"subject":   h.webpush.Subscriber,
	})
}
