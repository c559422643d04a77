package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/webfont-splitter/internal/encoder"
	"github.com/jonathan/webfont-splitter/internal/observability"
	"github.com/jonathan/webfont-splitter/internal/repertoire"
	"github.com/jonathan/webfont-splitter/internal/types"
)

var inspectCommand = &cobra.Command{
	Use:   "inspect <file>...",
	Short: "Print coverage and metadata of font or WOFF2 files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInspectCmd,
}

var (
	inspectRanges bool
	inspectJSON   bool
)

func init() {
	inspectCommand.Flags().BoolVar(&inspectRanges, "ranges", false, "Also print the full unicode-range")
	inspectCommand.Flags().BoolVar(&inspectJSON, "json", false, "Print the repertoires as JSON")

	rootCmd.AddCommand(inspectCommand)
}

var woff2Signature = []byte("wOF2")

// inspectFile reads a font, unwrapping WOFF2 first
func inspectFile(path string) (*types.FontRepertoire, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if bytes.HasPrefix(data, woff2Signature) {
		data, err = encoder.DecodeWOFF2(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	}
	rep, _, err := repertoire.ReadBytes(path, data, nil)
	return rep, err
}

func runInspectCmd(cmd *cobra.Command, args []string) error {
	reps := make([]*types.FontRepertoire, 0, len(args))
	for _, path := range args {
		rep, err := inspectFile(path)
		if err != nil {
			return err
		}
		reps = append(reps, rep)
	}

	out := cmd.OutOrStdout()
	if inspectJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reps)
	}

	printer := observability.NewPrinter(out)
	for _, rep := range reps {
		printer.PrintRepertoire(rep)
		if inspectRanges {
			fmt.Fprintf(out, "unicode-range: %s\n\n", rep.Coverage) //nolint:errcheck
		}
	}
	return nil
}
