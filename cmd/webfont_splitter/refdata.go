package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/webfont-splitter/internal/compress"
	"github.com/jonathan/webfont-splitter/internal/fetch"
	"github.com/jonathan/webfont-splitter/internal/refdata"
)

var refdataCommand = &cobra.Command{
	Use:   "refdata",
	Short: "Work with reference datasets",
}

var refdataPackCommand = &cobra.Command{
	Use:   "pack <dataset> <out>",
	Short: "Encode a reference dataset as a compressed data package",
	Long: `Reads a dataset ("bundled", a JSON file, a data package or a URL) and writes it as a
CBOR data package compressed with --compression. Packages load faster than JSON and can
be published for --reference-data.`,
	Args: cobra.ExactArgs(2),
	RunE: runRefdataPackCmd,
}

var refdataCompression = compressionValue(compress.Zstd)

func init() {
	refdataPackCommand.Flags().Var(&refdataCompression, "compression", "none, lz4 or zstd")

	refdataCommand.AddCommand(refdataPackCommand)
	rootCmd.AddCommand(refdataCommand)
}

func runRefdataPackCmd(cmd *cobra.Command, args []string) error {
	ds, err := refdata.Load(cmd.Context(), args[0], fetch.NewCachedFetcher("", nil))
	if err != nil {
		return err
	}
	data, err := refdata.EncodePackage(ds, compress.Tag(refdataCompression))
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[1], data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", args[1], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Packed %s (%d buckets) into %s: %d bytes, %s\n", //nolint:errcheck
		ds.Name, len(ds.Buckets), args[1], len(data), compress.Tag(refdataCompression))
	return nil
}
