package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"ratedeck/db/storage"
	"ratedeck/decision/comparison"
)

// Output formats
const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// =============================================================================
// OUTPUT FORMATTERS
// =============================================================================

type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) *printer {
	return &printer{w: w, format: strings.ToLower(format)}
}

func (p *printer) writeJSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Reports prints an A-Z comparison. top limits rows per section; 0 prints all.
func (p *printer) Reports(r *comparison.Reports, top int) error {
	switch p.format {
	case FormatJSON:
		return p.writeJSON(r)
	case FormatMarkdown:
		p.markdownPricing("RateDeck Comparison", &r.PricingReport, top)
		p.markdownCodes(&r.CodeReport)
		return nil
	default:
		p.tableCodes(&r.CodeReport)
		p.tablePricing(&r.PricingReport, top)
		return nil
	}
}

// USReports prints one section per US rate kind
func (p *printer) USReports(r *comparison.USReports, top int) error {
	if p.format == FormatJSON {
		return p.writeJSON(r)
	}

	for _, kind := range comparison.RateKinds {
		title := strings.ToUpper(string(kind))
		if p.format == FormatMarkdown {
			p.markdownPricing("RateDeck US Comparison: "+string(kind), r.Report(kind), top)
			continue
		}
		fmt.Fprintf(p.w, "\n== %s ==\n", title)
		p.tablePricing(r.Report(kind), top)
	}
	if p.format == FormatMarkdown {
		p.markdownCodes(&r.CodeReport)
	} else {
		p.tableCodes(&r.CodeReport)
	}
	return nil
}

// Runs prints archived run summaries
func (p *printer) Runs(runs []storage.RunSummary) error {
	switch p.format {
	case FormatJSON:
		return p.writeJSON(runs)
	case FormatMarkdown:
		fmt.Fprintln(p.w, "| Run | Files | Higher (1) | Higher (2) | Same | Unmatched | Created |")
		fmt.Fprintln(p.w, "|-----|-------|------------|------------|------|-----------|---------|")
		for _, r := range runs {
			fmt.Fprintf(p.w, "| %s | %s vs %s | %d | %d | %d | %d | %s |\n",
				r.ID, r.FileName1, r.FileName2,
				r.HigherRatesForFile1, r.HigherRatesForFile2, r.SameRates, r.NonMatchingCodes,
				r.CreatedAt.Format(time.RFC3339))
		}
		return nil
	default:
		if len(runs) == 0 {
			fmt.Fprintln(p.w, "No archived runs")
			return nil
		}
		fmt.Fprintf(p.w, "%-36s  %-30s  %8s  %8s  %6s  %9s  %s\n",
			"RUN", "FILES", "HIGHER1", "HIGHER2", "SAME", "UNMATCHED", "CREATED")
		for _, r := range runs {
			files := truncate(r.FileName1+" vs "+r.FileName2, 30)
			fmt.Fprintf(p.w, "%-36s  %-30s  %8d  %8d  %6d  %9d  %s\n",
				r.ID, files,
				r.HigherRatesForFile1, r.HigherRatesForFile2, r.SameRates, r.NonMatchingCodes,
				r.CreatedAt.Format(time.RFC3339))
		}
		return nil
	}
}

func (p *printer) tableCodes(cr *comparison.CodeReport) {
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(p.w, "║                     📞 CODE COVERAGE                          ║")
	fmt.Fprintln(p.w, "╠══════════════════════════════════════════════════════════════╣")
	for _, fs := range []comparison.FileStats{cr.File1, cr.File2} {
		fmt.Fprintf(p.w, "║  %-28s %7d codes %7d dests (%6.2f%%) ║\n",
			truncate(fs.FileName, 28), fs.TotalCodes, fs.TotalDestinations, fs.UniqueDestinationsPercentage)
	}
	fmt.Fprintln(p.w, "╠══════════════════════════════════════════════════════════════╣")
	fmt.Fprintf(p.w, "║  Matched codes:       %-39s ║\n", fmt.Sprintf("%d (%.2f%%)", cr.MatchedCodes, cr.MatchedCodesPercentage))
	fmt.Fprintf(p.w, "║  Non-matched codes:   %-39s ║\n", fmt.Sprintf("%d (%.2f%%)", cr.NonMatchedCodes, cr.NonMatchedCodesPercentage))
	fmt.Fprintln(p.w, "╚══════════════════════════════════════════════════════════════╝")
}

func (p *printer) tablePricing(pr *comparison.PricingReport, top int) {
	sections := []struct {
		title   string
		entries []comparison.ComparisonEntry
	}{
		{fmt.Sprintf("HIGHER IN %s", pr.FileName1), pr.HigherRatesForFile1},
		{fmt.Sprintf("HIGHER IN %s", pr.FileName2), pr.HigherRatesForFile2},
		{"SAME RATE", pr.SameRates},
	}

	for _, sec := range sections {
		fmt.Fprintf(p.w, "\n%s (%d)\n", sec.title, len(sec.entries))
		if len(sec.entries) == 0 {
			continue
		}
		fmt.Fprintf(p.w, "  %-20s  %-28s  %10s  %10s  %8s\n", "DIAL CODE", "DESTINATION", "RATE 1", "RATE 2", "DIFF %")
		for _, e := range limit(sec.entries, top) {
			fmt.Fprintf(p.w, "  %-20s  %-28s  %10.5f  %10.5f  %8.2f\n",
				truncate(e.DialCode, 20), truncate(e.DestName, 28), e.RateFile1, e.RateFile2, e.PercentageDifference)
		}
		if top > 0 && len(sec.entries) > top {
			fmt.Fprintf(p.w, "  ... %d more\n", len(sec.entries)-top)
		}
	}

	fmt.Fprintf(p.w, "\nNON-MATCHING CODES (%d)\n", len(pr.NonMatchingCodes))
	for _, e := range limit(pr.NonMatchingCodes, top) {
		fmt.Fprintf(p.w, "  %-20s  %-28s  %10.5f  %s\n",
			truncate(e.DialCode, 20), truncate(e.DestName, 28), e.Rate, e.File)
	}
	if top > 0 && len(pr.NonMatchingCodes) > top {
		fmt.Fprintf(p.w, "  ... %d more\n", len(pr.NonMatchingCodes)-top)
	}
}

func (p *printer) markdownPricing(title string, pr *comparison.PricingReport, top int) {
	fmt.Fprintf(p.w, "## %s\n\n", title)
	fmt.Fprintf(p.w, "**%s** vs **%s**\n", pr.FileName1, pr.FileName2)

	sections := []struct {
		title   string
		entries []comparison.ComparisonEntry
	}{
		{"Higher in " + pr.FileName1, pr.HigherRatesForFile1},
		{"Higher in " + pr.FileName2, pr.HigherRatesForFile2},
		{"Same rate", pr.SameRates},
	}
	for _, sec := range sections {
		fmt.Fprintf(p.w, "\n### %s (%d)\n\n", sec.title, len(sec.entries))
		if len(sec.entries) == 0 {
			continue
		}
		fmt.Fprintln(p.w, "| Dial Code | Destination | Rate 1 | Rate 2 | Diff % |")
		fmt.Fprintln(p.w, "|-----------|-------------|--------|--------|--------|")
		for _, e := range limit(sec.entries, top) {
			fmt.Fprintf(p.w, "| %s | %s | %.5f | %.5f | %.2f |\n",
				e.DialCode, e.DestName, e.RateFile1, e.RateFile2, e.PercentageDifference)
		}
	}

	fmt.Fprintf(p.w, "\n### Non-matching codes (%d)\n\n", len(pr.NonMatchingCodes))
	if len(pr.NonMatchingCodes) == 0 {
		return
	}
	fmt.Fprintln(p.w, "| Dial Code | Destination | Rate | File |")
	fmt.Fprintln(p.w, "|-----------|-------------|------|------|")
	for _, e := range limit(pr.NonMatchingCodes, top) {
		fmt.Fprintf(p.w, "| %s | %s | %.5f | %s |\n", e.DialCode, e.DestName, e.Rate, e.File)
	}
}

func (p *printer) markdownCodes(cr *comparison.CodeReport) {
	fmt.Fprintln(p.w, "\n### 📞 Code coverage")
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, "| Metric | Value |")
	fmt.Fprintln(p.w, "|--------|-------|")
	fmt.Fprintf(p.w, "| **%s codes** | %d |\n", cr.File1.FileName, cr.File1.TotalCodes)
	fmt.Fprintf(p.w, "| **%s codes** | %d |\n", cr.File2.FileName, cr.File2.TotalCodes)
	fmt.Fprintf(p.w, "| **Matched codes** | %d (%.2f%%) |\n", cr.MatchedCodes, cr.MatchedCodesPercentage)
	fmt.Fprintf(p.w, "| **Non-matched codes** | %d (%.2f%%) |\n", cr.NonMatchedCodes, cr.NonMatchedCodesPercentage)
}

func limit[T any](entries []T, top int) []T {
	if top <= 0 || len(entries) <= top {
		return entries
	}
	return entries[:top]
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
