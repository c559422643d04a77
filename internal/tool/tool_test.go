package tool

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_MissingBinary(t *testing.T) {
	inv := Invocation{
		Binary:      "definitely-not-a-real-font-tool",
		InstallHint: "Install it with your package manager",
		InputName:   "in",
		OutputName:  "out",
		Args:        func(in, out string) []string { return []string{in, out} },
	}
	assert.False(t, inv.Available())

	_, err := inv.Run(context.Background(), []byte("x"))
	var toolErr *Error
	require.ErrorAs(t, err, &toolErr)
	assert.Contains(t, toolErr.Message, "not found in PATH")
	assert.Contains(t, toolErr.Message, "package manager")
}

func TestRun_CopiesThroughTool(t *testing.T) {
	if _, err := exec.LookPath("cp"); err != nil {
		t.Skip("cp not available")
	}
	inv := Invocation{
		Binary:     "cp",
		InputName:  "in.bin",
		OutputName: "out.bin",
		Args:       func(in, out string) []string { return []string{in, out} },
	}

	out, err := inv.Run(context.Background(), []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), out)
}

func TestRun_NoOutput(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	inv := Invocation{
		Binary:     "true",
		InputName:  "in",
		OutputName: "out",
		Args:       func(string, string) []string { return nil },
	}

	_, err := inv.Run(context.Background(), []byte("x"))
	assert.ErrorContains(t, err, "no output was written")
}

func TestRun_CommandFails(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}
	inv := Invocation{
		Binary:     "false",
		InputName:  "in",
		OutputName: "out",
		Args:       func(string, string) []string { return nil },
	}

	_, err := inv.Run(context.Background(), []byte("x"))
	assert.ErrorContains(t, err, "command failed")
}
