package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RecentErrorsOnHealth is the number of failure lines /health returns.
const RecentErrorsOnHealth = 25

// GetHealth reports queue depth, the last result and recent failures per
// printer, and probe reachability.
func (h *Handler) GetHealth(c *gin.Context) {
	cfg := h.config.Get()
	d := h.dispatcher.Diagnostics()

	c.JSON(http.StatusOK, gin.H{
		"ok":                 true,
		"app":                AppName,
		"version":            AppVersion,
		"listening":          h.listening,
		"printersConfigured": len(cfg.Printers),
		"defaultPrinterId":   cfg.DefaultPrinterID,
		"pendingByPrinter":   d.Pending(),
		"lastPrintByPrinter": d.LastResults(),
		"recentErrors":       d.RecentErrors(RecentErrorsOnHealth),
		"reachability":       d.Reachability(),
		"now":                h.now(),
	})
}
