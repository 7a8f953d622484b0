// Package catalog lists the print queues registered with the local CUPS
// server.
package catalog

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"receipt-print-gateway/internal/model"
	"receipt-print-gateway/internal/spooler"
)

// Queue statuses.
const (
	StatusIdle     = "Idle"
	StatusPrinting = "Printing"
	StatusOffline  = "Offline"
	StatusUnknown  = "Unknown"
)

// Catalog enumerates installed printers through lpstat.
type Catalog struct {
	Command string
	Run     spooler.Runner
}

// New returns a catalog using the lpstat binary on PATH.
func New() *Catalog {
	return &Catalog{Command: "lpstat", Run: spooler.ExecRunner}
}

// List returns the installed queues, the system default first and the rest
// by name. A server without queues yields an empty list.
func (c *Catalog) List(ctx context.Context) ([]model.InstalledPrinter, error) {
	out, err := c.Run(ctx, nil, c.Command, "-p", "-d")
	if err != nil {
		if noDestinations(out) {
			return []model.InstalledPrinter{}, nil
		}
		return nil, fmt.Errorf("%s -p -d: %w: %s", c.Command, err, strings.TrimSpace(string(out)))
	}
	printers, def := parseQueues(out)

	// Device URIs are optional detail; a failure here keeps the list.
	if devOut, err := c.Run(ctx, nil, c.Command, "-v"); err == nil {
		devices := parseDevices(devOut)
		for i := range printers {
			printers[i].Device = devices[printers[i].PrinterName]
		}
	}

	for i := range printers {
		printers[i].IsDefault = def != "" && printers[i].PrinterName == def
	}
	sort.SliceStable(printers, func(i, j int) bool {
		if printers[i].IsDefault != printers[j].IsDefault {
			return printers[i].IsDefault
		}
		return strings.ToLower(printers[i].PrinterName) < strings.ToLower(printers[j].PrinterName)
	})
	return printers, nil
}

func noDestinations(out []byte) bool {
	return bytes.Contains(bytes.ToLower(out), []byte("no destinations added"))
}

// parseQueues reads "printer NAME is idle. ..." lines and the
// "system default destination: NAME" line.
func parseQueues(out []byte) ([]model.InstalledPrinter, string) {
	printers := []model.InstalledPrinter{}
	def := ""

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "printer "):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			printers = append(printers, model.InstalledPrinter{
				PrinterName: fields[1],
				Status:      statusOf(strings.Join(fields[2:], " ")),
			})
		case strings.HasPrefix(line, "system default destination:"):
			def = strings.TrimSpace(strings.TrimPrefix(line, "system default destination:"))
		}
	}
	return printers, def
}

func statusOf(rest string) string {
	rest = strings.ToLower(rest)
	switch {
	case strings.HasPrefix(rest, "disabled"):
		return StatusOffline
	case strings.HasPrefix(rest, "now printing"):
		return StatusPrinting
	case strings.HasPrefix(rest, "is idle"):
		return StatusIdle
	default:
		return StatusUnknown
	}
}

// parseDevices reads "device for NAME: URI" lines.
func parseDevices(out []byte) map[string]string {
	devices := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		rest, ok := strings.CutPrefix(line, "device for ")
		if !ok {
			continue
		}
		name, uri, ok := strings.Cut(rest, ":")
		if !ok {
			continue
		}
		devices[strings.TrimSpace(name)] = strings.TrimSpace(uri)
	}
	return devices
}
