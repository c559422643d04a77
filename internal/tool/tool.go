// Package tool runs external font binaries (hb-subset, woff2_compress) on
// byte payloads through a scratch directory.
package tool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Error represents a failed external tool invocation
type Error struct {
	Tool      string
	Message   string
	LogOutput string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Tool, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Tool, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Invocation describes one file-in, file-out tool call
type Invocation struct {
	// Binary is a name looked up in PATH or an explicit path.
	Binary      string
	InstallHint string
	InputName   string
	OutputName  string
	// Args builds the argument list from the input and output paths.
	Args func(input, output string) []string
}

// Available reports whether the binary can be found
func (inv Invocation) Available() bool {
	_, err := exec.LookPath(inv.Binary)
	return err == nil
}

// Run writes input to a scratch directory, runs the tool and returns the
// bytes it wrote. The scratch directory is always removed.
func (inv Invocation) Run(ctx context.Context, input []byte) ([]byte, error) {
	name := filepath.Base(inv.Binary)
	binPath, err := exec.LookPath(inv.Binary)
	if err != nil {
		msg := name + " not found in PATH"
		if inv.InstallHint != "" {
			msg += ". " + inv.InstallHint
		}
		return nil, &Error{Tool: name, Message: msg, Cause: err}
	}

	workDir, err := os.MkdirTemp("", "webfont-"+name+"-*")
	if err != nil {
		return nil, &Error{Tool: name, Message: "failed to create temporary working directory", Cause: err}
	}
	defer os.RemoveAll(workDir) //nolint:errcheck

	inPath := filepath.Join(workDir, inv.InputName)
	outPath := filepath.Join(workDir, inv.OutputName)
	if err := os.WriteFile(inPath, input, 0644); err != nil {
		return nil, &Error{Tool: name, Message: "failed to write input file", Cause: err}
	}

	cmd := exec.CommandContext(ctx, binPath, inv.Args(inPath, outPath)...)
	cmd.Dir = workDir
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	logOutput := stdout.String() + stderr.String()
	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			runErr = errors.Join(ctxErr, runErr)
		}
		return nil, &Error{Tool: name, Message: "command failed", LogOutput: logOutput, Cause: runErr}
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, &Error{Tool: name, Message: "no output was written", LogOutput: logOutput, Cause: err}
	}
	return out, nil
}
