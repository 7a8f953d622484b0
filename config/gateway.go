package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"receipt-print-gateway/internal/model"
)

// Limits applied by Normalize.
const (
	MinRequestTimeoutMs     = 500
	MaxRequestTimeoutMs     = 15000
	DefaultRequestTimeoutMs = 3000
	MaxRetryCount           = 5
	DefaultRetryCount       = 1
)

// GatewayConfig is the part of the configuration the HTTP API can read and
// replace at runtime.
type GatewayConfig struct {
	PairingToken     string                 `yaml:"pairing_token" json:"pairingToken"`
	DefaultPrinterID string                 `yaml:"default_printer_id" json:"defaultPrinterId"`
	AllowedOrigins   []string               `yaml:"allowed_origins" json:"allowedOrigins"`
	RequestTimeoutMs int                    `yaml:"request_timeout_ms" json:"requestTimeoutMs"`
	RetryCount       int                    `yaml:"retry_count" json:"retryCount"`
	Printers         []model.PrinterProfile `yaml:"printers" json:"printers"`
}

// DefaultGateway returns the gateway section of a fresh installation.
func DefaultGateway() GatewayConfig {
	return GatewayConfig{
		RequestTimeoutMs: DefaultRequestTimeoutMs,
		RetryCount:       DefaultRetryCount,
		AllowedOrigins: []string{
			"http://localhost",
			"http://127.0.0.1",
		},
		Printers: []model.PrinterProfile{},
	}
}

// Clone returns a copy that shares no slices with g.
func (g GatewayConfig) Clone() GatewayConfig {
	out := g
	out.AllowedOrigins = append([]string{}, g.AllowedOrigins...)
	out.Printers = append([]model.PrinterProfile{}, g.Printers...)
	return out
}

// Normalize clamps numeric fields, fills blank profile ids, fixes modes and
// makes sure the default printer id names an existing profile.
func (g *GatewayConfig) Normalize() {
	g.RequestTimeoutMs = clamp(g.RequestTimeoutMs, MinRequestTimeoutMs, MaxRequestTimeoutMs)
	g.RetryCount = clamp(g.RetryCount, 0, MaxRetryCount)
	g.DefaultPrinterID = strings.TrimSpace(g.DefaultPrinterID)

	if g.AllowedOrigins == nil {
		g.AllowedOrigins = []string{}
	}
	if g.Printers == nil {
		g.Printers = []model.PrinterProfile{}
	}

	for i := range g.Printers {
		p := &g.Printers[i]
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			p.ID = strings.ReplaceAll(uuid.NewString(), "-", "")
		}
		p.Name = strings.TrimSpace(p.Name)
		p.Mode = p.NormalizedMode()

		if p.Network.Port <= 0 {
			p.Network.Port = model.DefaultNetworkPort
		}
		p.Network.Port = clamp(p.Network.Port, 1, 65535)

		p.CashDrawer.KickPulse.M = clamp(p.CashDrawer.KickPulse.M, 0, 1)
		p.CashDrawer.KickPulse.T1 = clamp(p.CashDrawer.KickPulse.T1, 0, 255)
		p.CashDrawer.KickPulse.T2 = clamp(p.CashDrawer.KickPulse.T2, 0, 255)
		p.Cut.Mode = model.NormalizeCutMode(p.Cut.Mode)
	}

	for _, p := range g.Printers {
		if strings.EqualFold(p.ID, g.DefaultPrinterID) {
			return
		}
	}
	g.DefaultPrinterID = ""
	if len(g.Printers) > 0 {
		g.DefaultPrinterID = g.Printers[0].ID
	}
}

// GenerateToken returns 32 random bytes encoded as unpadded base64url.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate pairing token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
