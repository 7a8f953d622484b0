package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"receipt-print-gateway/config"
	"receipt-print-gateway/internal/model"
)

// GetPrinters lists the installed queues next to the configured profiles.
// A catalog failure still returns the configured profiles.
func (h *Handler) GetPrinters(c *gin.Context) {
	cfg := h.config.Get()
	body := gin.H{
		"ok":               true,
		"printers":         []model.InstalledPrinter{},
		"configured":       cfg.Printers,
		"defaultPrinterId": cfg.DefaultPrinterID,
	}

	if h.catalog != nil {
		installed, err := h.catalog.List(c.Request.Context())
		if err != nil {
			config.LogError(h.log, "api", "GetPrinters", "list installed printers", nil, err)
			body["catalogError"] = err.Error()
		} else {
			body["printers"] = installed
		}
	}
	c.JSON(http.StatusOK, body)
}

// GetJobs returns the newest job records, optionally for one printer.
func (h *Handler) GetJobs(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "job history is not enabled"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	jobs, err := h.store.RecentJobs(c.Request.Context(), c.Query("printerId"), limit)
	if err != nil {
		config.LogError(h.log, "api", "GetJobs", "query job history", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Failed to read job history."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "jobs": jobs})
}

// Events streams job results over a websocket.
func (h *Handler) Events(c *gin.Context) {
	if h.events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "event stream is not enabled"})
		return
	}
	h.events.ServeHTTP(c.Writer, c.Request)
}
