package spooler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRun struct {
	stdin []byte
	name  string
	args  []string
}

func TestCUPS_SubmitsRawDocument(t *testing.T) {
	var runs []recordedRun
	c := &CUPS{Command: "lp", Run: func(_ context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
		runs = append(runs, recordedRun{stdin: append([]byte(nil), stdin...), name: name, args: args})
		return []byte("request id is tm20-7 (1 file(s))"), nil
	}}

	h, err := c.Open(context.Background(), " tm20 ")
	require.NoError(t, err)
	require.NoError(t, h.StartDoc("Receipt", DataTypeRaw))
	require.NoError(t, h.StartPage())
	n, err := h.Write([]byte{0x1B, 0x40})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, h.EndPage())
	require.NoError(t, h.EndDoc())
	require.NoError(t, h.Close())

	require.Len(t, runs, 1)
	assert.Equal(t, "lp", runs[0].name)
	assert.Equal(t, []string{"-d", "tm20", "-t", "Receipt", "-o", "raw"}, runs[0].args)
	assert.Equal(t, []byte{0x1B, 0x40}, runs[0].stdin)
}

func TestCUPS_Errors(t *testing.T) {
	c := &CUPS{Command: "lp", Run: func(context.Context, []byte, string, ...string) ([]byte, error) {
		return []byte("lp: The printer or class does not exist."), errors.New("exit status 1")
	}}

	_, err := c.Open(context.Background(), "  ")
	assert.Error(t, err)

	h, err := c.Open(context.Background(), "missing")
	require.NoError(t, err)
	_, err = h.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrNoDocument)

	require.NoError(t, h.StartDoc("Receipt", DataTypeRaw))
	_, err = h.Write([]byte("x"))
	require.NoError(t, err)
	err = h.EndDoc()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	require.NoError(t, h.Close())
	assert.ErrorIs(t, h.StartDoc("again", DataTypeRaw), ErrClosed)
}
