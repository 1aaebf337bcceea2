package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"noi_analyzer/pkg/core/calc"
	"noi_analyzer/pkg/core/comparison"
)

func sampleResults(t *testing.T) *comparison.Results {
	t.Helper()
	current := calc.FromMap(map[string]any{
		"property_id": "PROP-7", "period": "2024-03",
		"gpr": 100000, "vacancy_loss": 5000, "concessions": 2000, "bad_debt": 1000,
		"other_income": 5000, "egi": 97000, "opex": 51000, "noi": 46000,
	})
	budget := calc.FromMap(map[string]any{
		"gpr": 99000, "vacancy_loss": 5200, "other_income": 5000,
		"egi": 98800, "opex": 54500, "noi": 44300,
	})
	results, err := comparison.BuildComparisonResults(&current, nil, &budget, nil)
	require.NoError(t, err)
	return results
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleResults(t), []string{"current_month: NOI mismatch"})

	assert.Contains(t, md, "**Property:** PROP-7")
	assert.Contains(t, md, "**Period:** 2024-03")
	assert.Contains(t, md, "## Current Period")
	assert.Contains(t, md, "## Actual vs Budget")
	assert.Contains(t, md, "| Net Operating Income | $46,000.00 | $44,300.00 | ↑ +1,700.00 | 3.8% |")
	assert.Contains(t, md, "| Operating Expenses | $51,000.00 | $54,500.00 | ↑ -3,500.00 | -6.4% |")
	assert.NotContains(t, md, "Prior Month")
	assert.Contains(t, md, "- current_month: NOI mismatch")
}

func TestMarkdown_NilResults(t *testing.T) {
	assert.Contains(t, Markdown(nil, nil), "No results available")
}

func TestRenderHTML(t *testing.T) {
	page, err := RenderHTML(Markdown(sampleResults(t), nil))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))
	assert.Contains(t, page, "<h1>NOI Analysis Report</h1>")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "<td>Net Operating Income</td>")
}

func TestExportExcel(t *testing.T) {
	wb, err := ExportExcel(sampleResults(t))
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, []string{CurrentSheet, "Actual vs Budget"}, wb.GetSheetList())

	rows, err := wb.GetRows(CurrentSheet)
	require.NoError(t, err)
	require.Len(t, rows, len(calc.TrackedMetrics)+1)
	assert.Equal(t, []string{"Metric", "Field", "Amount"}, rows[0])
	assert.Equal(t, "gpr", rows[1][1])

	v, err := wb.GetCellValue("Actual vs Budget", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Metric", v)

	header, err := wb.GetRows("Actual vs Budget")
	require.NoError(t, err)
	assert.Equal(t, []string{"Metric", "Current", "Budget", "Variance", "Variance %"}, header[0])

	// NOI is the eighth tracked metric, row 9
	raw, err := wb.GetCellValue("Actual vs Budget", "D9", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "1700", raw)
}

func TestExportExcel_NilResults(t *testing.T) {
	_, err := ExportExcel(nil)
	assert.Error(t, err)
}
