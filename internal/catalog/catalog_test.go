package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receipt-print-gateway/internal/model"
)

const lpstatQueues = `printer Kitchen now printing Kitchen-12.  enabled since Mon 03 Mar 2025 10:00:00
printer bar_epson is idle.  enabled since Mon 03 Mar 2025 09:00:00
printer Archive disabled since Sun 02 Mar 2025 18:00:00 -
	reason unknown
printer Zebra is idle.  enabled since Mon 03 Mar 2025 09:00:00
system default destination: Zebra
`

const lpstatDevices = `device for Kitchen: socket://192.168.1.50:9100
device for bar_epson: usb://EPSON/TM-T20III?serial=X123
device for Zebra: ipp://localhost:631/printers/Zebra
`

func fakeRunner(outputs map[string]string, errs map[string]error) func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	return func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
		key := strings.Join(args, " ")
		return []byte(outputs[key]), errs[key]
	}
}

func TestList(t *testing.T) {
	c := &Catalog{Command: "lpstat", Run: fakeRunner(map[string]string{
		"-p -d": lpstatQueues,
		"-v":    lpstatDevices,
	}, nil)}

	printers, err := c.List(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []model.InstalledPrinter{
		{PrinterName: "Zebra", IsDefault: true, Status: StatusIdle, Device: "ipp://localhost:631/printers/Zebra"},
		{PrinterName: "Archive", Status: StatusOffline},
		{PrinterName: "bar_epson", Status: StatusIdle, Device: "usb://EPSON/TM-T20III?serial=X123"},
		{PrinterName: "Kitchen", Status: StatusPrinting, Device: "socket://192.168.1.50:9100"},
	}, printers)
}

func TestList_NoDefaultAndDeviceFailure(t *testing.T) {
	c := &Catalog{Command: "lpstat", Run: fakeRunner(map[string]string{
		"-p -d": "printer B is idle.\nprinter a is idle.\nno system default destination\n",
	}, map[string]error{
		"-v": errors.New("exit status 1"),
	})}

	printers, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, printers, 2)
	assert.Equal(t, "a", printers[0].PrinterName)
	assert.Equal(t, "B", printers[1].PrinterName)
	assert.False(t, printers[0].IsDefault)
	assert.Empty(t, printers[0].Device)
}

func TestList_Errors(t *testing.T) {
	t.Run("no destinations is an empty list", func(t *testing.T) {
		c := &Catalog{Command: "lpstat", Run: fakeRunner(map[string]string{
			"-p -d": "lpstat: No destinations added.\n",
		}, map[string]error{"-p -d": errors.New("exit status 1")})}

		printers, err := c.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, printers)
		assert.NotNil(t, printers)
	})

	t.Run("scheduler down is an error", func(t *testing.T) {
		c := &Catalog{Command: "lpstat", Run: fakeRunner(map[string]string{
			"-p -d": "lpstat: Scheduler is not running.\n",
		}, map[string]error{"-p -d": errors.New("exit status 1")})}

		_, err := c.List(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Scheduler is not running.")
	})
}
