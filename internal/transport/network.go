package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"receipt-print-gateway/internal/model"
)

// Network writes to a raw TCP port, one connection per send.
type Network struct {
	dialer net.Dialer
}

// NewNetwork returns a TCP transport.
func NewNetwork() *Network {
	return &Network{}
}

// Send connects and writes payload within one timeout (connecting also stops
// when ctx ends), then closes the connection. Once connected the write is
// bounded by the socket deadline only.
func (n *Network) Send(ctx context.Context, profile model.PrinterProfile, payload []byte, timeout time.Duration) error {
	host := strings.TrimSpace(profile.Network.IP)
	if host == "" {
		return &Error{Op: "config", Printer: printerLabel(profile),
			Err: fmt.Errorf("printer '%s' has no network host configured", printerLabel(profile))}
	}
	timeout = ClampTimeout(timeout)
	addr := net.JoinHostPort(host, strconv.Itoa(profile.NetworkPort()))

	deadline := time.Now().Add(timeout)
	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	conn, err := n.dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return &Error{Op: "connect", Printer: printerLabel(profile), Err: err}
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(deadline); err != nil {
		return &Error{Op: "write", Printer: printerLabel(profile), Err: err}
	}
	w := bufio.NewWriterSize(conn, 4096)
	if _, err := w.Write(payload); err != nil {
		return &Error{Op: "write", Printer: printerLabel(profile), Err: err}
	}
	if err := w.Flush(); err != nil {
		return &Error{Op: "write", Printer: printerLabel(profile), Err: err}
	}
	return nil
}
