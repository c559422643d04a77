// Package observability provides formatted output utilities for the CLI and
// the process logger.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonathan/webfont-splitter/internal/charset"
	"github.com/jonathan/webfont-splitter/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
	// Limit caps list lengths; 0 means maxItemsToShow, negative shows all.
	Limit int
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

func (p *Printer) limit(n int) int {
	switch {
	case p.Limit < 0:
		return n
	case p.Limit == 0:
		return min(n, maxItemsToShow)
	default:
		return min(n, p.Limit)
	}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", pad(title))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %s │\n", pad(line))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// pad truncates or pads a line to the box's inner width, counting runes
func pad(line string) string {
	width := boxWidth - 4
	if utf8.RuneCountInString(line) > width {
		runes := []rune(line)
		line = string(runes[:width-3]) + "..."
	}
	return line + strings.Repeat(" ", width-utf8.RuneCountInString(line))
}

// FormatBytes renders a byte count as B, KiB or MiB
func FormatBytes(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KiB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1024*1024))
	}
}

// PrintRepertoire outputs the metadata and coverage of a font.
func (p *Printer) PrintRepertoire(rep *types.FontRepertoire) {
	if rep == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ID:       %s\n", rep.ID))
	sb.WriteString(fmt.Sprintf("Family:   %s\n", rep.Family))
	sb.WriteString(fmt.Sprintf("Style:    %s (%s %s)\n", rep.StyleName, rep.Style, rep.Weight))
	if rep.Version != "" {
		sb.WriteString(fmt.Sprintf("Version:  %s\n", rep.Version))
	}
	sb.WriteString(fmt.Sprintf("Coverage: %d codepoints\n", rep.Coverage.Len()))

	ranges := rep.Coverage.Ranges()
	if len(ranges) > 0 {
		sb.WriteString("\nRanges:\n")
		count := p.limit(len(ranges))
		sb.WriteString("  " + charset.FormatRanges(ranges[:count]) + "\n")
		if len(ranges) > count {
			sb.WriteString(fmt.Sprintf("  ... and %d more ranges\n", len(ranges)-count))
		}
	}

	p.printBox("FONT REPERTOIRE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintPlan outputs the buckets planned for a font.
func (p *Printer) PrintPlan(rep *types.FontRepertoire, buckets []types.SubsetBucket) {
	if rep == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %d codepoints in %d buckets\n\n", rep.Family, rep.Coverage.Len(), len(buckets)))

	count := p.limit(len(buckets))
	for i := 0; i < count; i++ {
		b := buckets[i]
		marker := ""
		if b.Residual {
			marker = " (residual)"
		}
		sb.WriteString(fmt.Sprintf("#%-3d %-20s %6d cps%s\n", b.Index, b.Name, b.Codepoints.Len(), marker))
	}
	if len(buckets) > count {
		sb.WriteString(fmt.Sprintf("... and %d more buckets\n", len(buckets)-count))
	}

	p.printBox("SUBSET PLAN", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRunSummary outputs the per-font results of a run.
func (p *Printer) PrintRunSummary(summary *types.RunSummary) {
	if summary == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:      %s (%s)\n", summary.RunID, summary.Mode))
	sb.WriteString(fmt.Sprintf("Subsets:  %d (%d written, %d cache hits)\n", summary.Subsets, summary.Written, summary.CacheHits))
	sb.WriteString(fmt.Sprintf("Size:     %s\n", FormatBytes(summary.TotalBytes)))
	if summary.Pages > 0 {
		sb.WriteString(fmt.Sprintf("Pages:    %d\n", summary.Pages))
	}
	if len(summary.Skipped) > 0 {
		sb.WriteString(fmt.Sprintf("Skipped:  %s\n", strings.Join(summary.Skipped, ", ")))
	}
	sb.WriteString(fmt.Sprintf("Duration: %s\n", summary.Duration.Round(time.Millisecond)))

	if len(summary.Fonts) > 0 {
		sb.WriteString("\n")
	}
	for _, font := range summary.Fonts {
		status := "✓"
		if font.Abandoned {
			status = "✗"
		} else if font.Failed > 0 {
			status = "⚠"
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", status, font.Family))
		sb.WriteString(fmt.Sprintf("    %d/%d subsets, %d reused, %s\n",
			font.Subsets, font.Buckets, font.Reused, FormatBytes(font.TotalBytes)))
	}

	p.printBox("RUN SUMMARY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintDiagnostics outputs failures reported by a run.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintDiagnostics(diags []types.Diagnostic) {
	if len(diags) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %s │\n", pad("✅ NO FAILURES"))
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d failures:\n\n", len(diags)))

	for i, d := range diags {
		where := d.FontID
		if d.Bucket != "" {
			where += "/" + d.Bucket
		}
		sb.WriteString(fmt.Sprintf("⚠ %s [%s]\n", where, d.Stage))
		sb.WriteString(fmt.Sprintf("  %s\n", d.Message))
		if i < len(diags)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("FAILURES", sb.String())
}
