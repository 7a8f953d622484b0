package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"receipt-print-gateway/internal/dispatch"
	"receipt-print-gateway/internal/escpos"
	"receipt-print-gateway/internal/model"
	"receipt-print-gateway/internal/mw"
	"receipt-print-gateway/internal/resolver"
)

const printedAtLayout = "02/01/2006 15:04:05"

// Success messages per operation.
const (
	MessageReceipt = "Receipt printed."
	MessageDrawer  = "Cash drawer signal sent."
	MessageCut     = "Cut command sent."
	MessageTest    = "Test print sent."
)

type receiptRequest struct {
	Receipt    *model.ReceiptPayload `json:"receipt"`
	Cut        *bool                 `json:"cut"`
	CutMode    string                `json:"cutMode"`
	OpenDrawer *bool                 `json:"openDrawer"`
}

type cutRequest struct {
	Mode string `json:"mode"`
}

type testPrintRequest struct {
	Title string `json:"title"`
}

// requestedPrinterID reads the X-PRINTER-ID header, then the printerId
// query parameter.
func requestedPrinterID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(mw.PrinterHeader)); id != "" {
		return id
	}
	return strings.TrimSpace(c.Query("printerId"))
}

// bindOptionalJSON binds the body when there is one.
func bindOptionalJSON(c *gin.Context, obj any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// PrintReceipt compiles and prints a receipt.
func (h *Handler) PrintReceipt(c *gin.Context) {
	var req receiptRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}

	h.print(c, dispatch.OpReceipt, MessageReceipt, func(profile model.PrinterProfile) []byte {
		receipt := model.NewReceiptPayload()
		if req.Receipt != nil {
			receipt = *req.Receipt
		}
		if strings.TrimSpace(receipt.PrintedAt) == "" {
			receipt.PrintedAt = h.now().Format(printedAtLayout)
		}

		opts := escpos.ReceiptOptions{
			Cut:        profile.Cut.Enabled,
			CutMode:    req.CutMode,
			OpenDrawer: profile.CashDrawer.Enabled,
		}
		if req.Cut != nil {
			opts.Cut = *req.Cut
		}
		if req.OpenDrawer != nil {
			opts.OpenDrawer = *req.OpenDrawer
		}
		return escpos.BuildReceipt(receipt, profile, opts)
	})
}

// OpenCashDrawer sends the drawer kick pulse.
func (h *Handler) OpenCashDrawer(c *gin.Context) {
	h.print(c, dispatch.OpDrawer, MessageDrawer, escpos.BuildDrawerKick)
}

// Cut sends a paper cut, in the requested mode or the profile's.
func (h *Handler) Cut(c *gin.Context) {
	var req cutRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	h.print(c, dispatch.OpCut, MessageCut, func(profile model.PrinterProfile) []byte {
		return escpos.BuildCut(profile, req.Mode)
	})
}

// TestPrint prints the fixed test receipt.
func (h *Handler) TestPrint(c *gin.Context) {
	var req testPrintRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	h.print(c, dispatch.OpTest, MessageTest, func(profile model.PrinterProfile) []byte {
		return escpos.BuildTestPrint(profile, strings.TrimSpace(req.Title), h.now())
	})
}

// print resolves the target printer, compiles the payload, waits for the
// job and writes the outcome.
func (h *Handler) print(c *gin.Context, op dispatch.Operation, success string, build func(model.PrinterProfile) []byte) {
	cfg := h.config.Get()
	requested := requestedPrinterID(c)

	profile, err := resolver.Resolve(cfg, requested)
	if err != nil {
		body := gin.H{"ok": false, "error": err.Error()}
		if requested != "" {
			body["printerId"] = requested
		}
		c.JSON(http.StatusUnprocessableEntity, body)
		return
	}

	job := dispatch.NewJob(profile, op, build(profile), cfg.RetryCount, time.Duration(cfg.RequestTimeoutMs)*time.Millisecond)
	log := h.log.WithFields(logrus.Fields{"printer": profile.ID, "job": job.ID, "operation": op.String()})

	res, err := h.dispatcher.Enqueue(c.Request.Context(), job)
	if err != nil {
		log.WithError(err).Warn("print job abandoned")
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": err.Error(), "printerId": profile.ID, "jobId": job.ID})
		return
	}

	if !res.OK {
		log.WithField("attempts", res.Attempts).Error(res.Message)
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"ok":        false,
			"error":     res.Message,
			"operation": res.Operation,
			"printerId": profile.ID,
			"jobId":     res.JobID,
			"attempts":  res.Attempts,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"message":   success,
		"printerId": profile.ID,
		"jobId":     res.JobID,
		"attempts":  res.Attempts,
	})
}
