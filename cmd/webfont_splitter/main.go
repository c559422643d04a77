// Package main provides the entry point for the webfont_splitter command line tool.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "webfont_splitter",
	Short: "Split fonts into unicode-range subsets packaged as WOFF2",
	Long: `webfont_splitter partitions each font's character coverage into subsets along a
prioritized reference dataset, builds and compresses every subset to WOFF2, stores the
files under content hashes and emits the matching @font-face stylesheet.

With --webroot it also scans a static site and writes per-page stylesheets that only
reference the subsets each page needs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
