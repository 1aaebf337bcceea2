// Package report renders comparison results as Markdown, HTML and XLSX.
package report

import (
	"fmt"
	"strings"

	"noi_analyzer/pkg/core/calc"
	"noi_analyzer/pkg/core/comparison"
)

// Markdown renders a summary with the current snapshot, one table per
// available comparison and the warnings list.
func Markdown(results *comparison.Results, warnings []string) string {
	var b strings.Builder
	b.WriteString("# NOI Analysis Report\n\n")
	if results == nil {
		b.WriteString("_No results available._\n")
		return b.String()
	}

	if p := results.Current.PropertyID; p != nil {
		fmt.Fprintf(&b, "**Property:** %s  \n", *p)
	}
	if p := results.Current.Period; p != nil {
		fmt.Fprintf(&b, "**Period:** %s  \n", *p)
	}

	b.WriteString("\n## Current Period\n\n")
	b.WriteString("| Metric | Amount |\n|---|---:|\n")
	for _, f := range calc.MainMetrics {
		fmt.Fprintf(&b, "| %s | %s |\n", f.Label(), calc.FormatCurrency(results.Current.Get(f)))
	}

	for _, suffix := range results.Available() {
		writeComparison(&b, results, suffix)
	}

	if len(warnings) > 0 {
		b.WriteString("\n## Data Quality Warnings\n\n")
		for _, w := range warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}

func writeComparison(b *strings.Builder, results *comparison.Results, suffix comparison.Suffix) {
	word := "Change"
	if suffix == comparison.Budget {
		word = "Variance"
	}
	other := otherColumn(suffix)

	fmt.Fprintf(b, "\n## %s\n\n", suffix.Label())
	fmt.Fprintf(b, "| Metric | Current | %s | %s | %s %% |\n|---|---:|---:|---:|---:|\n", other, word, word)
	for _, f := range calc.MainMetrics {
		cur, _ := results.Metric(f, suffix, comparison.KindCurrent)
		prev, _ := results.Metric(f, suffix, comparison.KindOther)
		change, _ := results.Metric(f, suffix, comparison.KindChange)
		pct, _ := results.Metric(f, suffix, comparison.KindPercent)
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s |\n",
			f.Label(), calc.FormatCurrency(cur), calc.FormatCurrency(prev),
			calc.FormatChange(f, change), calc.FormatPercent(pct))
	}
}

func otherColumn(suffix comparison.Suffix) string {
	switch suffix {
	case comparison.Prior:
		return "Prior Month"
	case comparison.Budget:
		return "Budget"
	case comparison.PriorYear:
		return "Prior Year"
	}
	return string(suffix)
}
