package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"receipt-print-gateway/config"
)

// GetConfig returns the live gateway configuration.
func (h *Handler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "config": h.config.Get()})
}

// PostConfig replaces the gateway configuration. A blank pairing token keeps
// the current one.
func (h *Handler) PostConfig(c *gin.Context) {
	var incoming config.GatewayConfig
	if err := c.ShouldBindJSON(&incoming); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if strings.TrimSpace(incoming.PairingToken) == "" {
		incoming.PairingToken = h.config.Get().PairingToken
	}

	saved, err := h.config.Save(incoming)
	if err != nil {
		config.LogError(h.log, "api", "PostConfig", "save configuration", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Failed to save configuration."})
		return
	}

	h.log.WithFields(logrus.Fields{
		"printers":       len(saved.Printers),
		"defaultPrinter": saved.DefaultPrinterID,
	}).Info("configuration updated")
	c.JSON(http.StatusOK, gin.H{"ok": true, "config": saved})
}

// RegenerateToken rotates the pairing token.
func (h *Handler) RegenerateToken(c *gin.Context) {
	token, err := h.config.RegenerateToken()
	if err != nil {
		config.LogError(h.log, "api", "RegenerateToken", "rotate pairing token", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Failed to regenerate token."})
		return
	}
	h.log.Warn("pairing token regenerated")
	c.JSON(http.StatusOK, gin.H{"ok": true, "pairingToken": token})
}
