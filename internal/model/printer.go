package model

import "strings"

// Printer connection modes.
const (
	ModeUSB     = "usb"
	ModeNetwork = "network"
)

// Cut modes.
const (
	CutPartial = "partial"
	CutFull    = "full"
)

// DefaultNetworkPort is the raw printing port most thermal printers listen on.
const DefaultNetworkPort = 9100

// PrinterProfile describes one configured printer. Profiles are handed to the
// print pipeline by value and are never modified there.
type PrinterProfile struct {
	ID         string             `yaml:"id" json:"id"`
	Name       string             `yaml:"name" json:"name"`
	Enabled    bool               `yaml:"enabled" json:"enabled"`
	Mode       string             `yaml:"mode" json:"mode"`
	USB        USBSettings        `yaml:"usb" json:"usb"`
	Network    NetworkSettings    `yaml:"network" json:"network"`
	CashDrawer CashDrawerSettings `yaml:"cash_drawer" json:"cashDrawer"`
	Cut        CutSettings        `yaml:"cut" json:"cut"`
}

// USBSettings targets a locally registered raw print queue.
type USBSettings struct {
	PrinterName string `yaml:"printer_name" json:"printerName"`
}

// NetworkSettings targets a printer reachable over TCP.
type NetworkSettings struct {
	IP   string `yaml:"ip" json:"ip"`
	Port int    `yaml:"port" json:"port"`
}

// CashDrawerSettings controls the drawer kick emitted after a receipt.
type CashDrawerSettings struct {
	Enabled   bool      `yaml:"enabled" json:"enabled"`
	KickPulse KickPulse `yaml:"kick_pulse" json:"kickPulse"`
}

// KickPulse holds the ESC p timing parameters.
type KickPulse struct {
	M  int `yaml:"m" json:"m"`
	T1 int `yaml:"t1" json:"t1"`
	T2 int `yaml:"t2" json:"t2"`
}

// CutSettings controls the paper cut emitted after a receipt.
type CutSettings struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Mode    string `yaml:"mode" json:"mode"`
}

// NewPrinterProfile returns a profile carrying the same defaults a freshly
// added printer gets in the configuration.
func NewPrinterProfile(id, name string) PrinterProfile {
	return PrinterProfile{
		ID:      id,
		Name:    name,
		Enabled: true,
		Mode:    ModeUSB,
		Network: NetworkSettings{Port: DefaultNetworkPort},
		CashDrawer: CashDrawerSettings{
			Enabled:   true,
			KickPulse: KickPulse{M: 0, T1: 25, T2: 250},
		},
		Cut: CutSettings{Enabled: true, Mode: CutPartial},
	}
}

// NormalizedMode returns "network" for network printers and "usb" for
// everything else.
func (p PrinterProfile) NormalizedMode() string {
	return NormalizeMode(p.Mode)
}

// NormalizeMode maps any unrecognized mode to usb.
func NormalizeMode(mode string) string {
	if strings.EqualFold(strings.TrimSpace(mode), ModeNetwork) {
		return ModeNetwork
	}
	return ModeUSB
}

// NormalizeCutMode maps anything other than "full" to "partial".
func NormalizeCutMode(mode string) string {
	if strings.EqualFold(strings.TrimSpace(mode), CutFull) {
		return CutFull
	}
	return CutPartial
}

// NetworkPort returns the configured port, falling back to 9100.
func (p PrinterProfile) NetworkPort() int {
	if p.Network.Port <= 0 || p.Network.Port > 65535 {
		return DefaultNetworkPort
	}
	return p.Network.Port
}

// InstalledPrinter is a print queue registered with the operating system.
type InstalledPrinter struct {
	PrinterName string `json:"printerName"`
	IsDefault   bool   `json:"isDefault"`
	Status      string `json:"status"`
	Device      string `json:"device"`
}
