package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/webfont-splitter/internal/fallback"
	"github.com/jonathan/webfont-splitter/internal/fetch"
	"github.com/jonathan/webfont-splitter/internal/observability"
)

var fallbackCommand = &cobra.Command{
	Use:   "fallback",
	Short: "List the bundled fallback sources and their coverage",
	Long: `Lists the sources of the reserved "fallback" font in priority order. With --resolve the
sources are loaded from --fallback-dir (downloading missing ones when --download is set)
and the codepoints each one contributes are reported.`,
	Args: cobra.NoArgs,
	RunE: runFallbackCmd,
}

var (
	fallbackDir      string
	fallbackResolve  bool
	fallbackDownload bool
	fallbackCacheDir string
)

func init() {
	fallbackCommand.Flags().StringVar(&fallbackDir, "fallback-dir", "fallback", "Directory holding fallback source fonts")
	fallbackCommand.Flags().BoolVar(&fallbackResolve, "resolve", false, "Load the sources and report what each contributes")
	fallbackCommand.Flags().BoolVar(&fallbackDownload, "download", false, "Download sources missing from --fallback-dir")
	fallbackCommand.Flags().StringVar(&fallbackCacheDir, "cache-dir", "", "Download cache directory")

	rootCmd.AddCommand(fallbackCommand)
}

func runFallbackCmd(cmd *cobra.Command, _ []string) error {
	m, err := fallback.Bundled()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if !fallbackResolve {
		fmt.Fprintf(out, "Family %q, %d sources:\n", m.Family, len(m.Sources)) //nolint:errcheck
		for i, src := range m.Sources {
			fmt.Fprintf(out, "  %2d. %-24s %8d codepoints  %s\n", i+1, src.Name, src.Declared.Len(), src.File) //nolint:errcheck
		}
		return nil
	}

	loader := &fallback.DirLoader{Dir: fallbackDir}
	if fallbackDownload {
		loader.Fetcher = fetch.NewCachedFetcher(fallbackCacheDir, nil)
	}
	res, err := fallback.Resolve(cmd.Context(), loader)
	if res != nil {
		for _, f := range res.Fonts {
			fmt.Fprintf(out, "%-24s %8d codepoints  %s\n", f.Source.Name, f.Repertoire.Coverage.Len(), f.Repertoire.ID) //nolint:errcheck
		}
		fmt.Fprintf(out, "Uncovered: %d assigned codepoints\n", res.Uncovered.Len()) //nolint:errcheck
		observability.NewPrinter(out).PrintDiagnostics(res.Diagnostics)
	}
	return err
}
