package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"noi_analyzer/pkg/core/comparison"
	"noi_analyzer/pkg/core/normalize"
)

func TestDetermineDocumentType(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		raw      normalize.RawExtraction
		expected DocumentType
	}{
		{"Budget file", "2024_Budget.xlsx", nil, Budget},
		{"Prior year file", "prior_year_march.pdf", nil, PriorYear},
		{"Previous month file", "previous_statement.pdf", nil, PriorMonth},
		{"Actuals file", "March Actuals.pdf", nil, CurrentMonth},
		{"Filename beats content", "budget.pdf", normalize.RawExtraction{"document_type": "prior_year"}, Budget},
		{"Content document type", "statement.pdf", normalize.RawExtraction{"document_type": "Prior Year Actuals"}, PriorYear},
		{"Content prior month", "statement.pdf", normalize.RawExtraction{"document_type": "previous month"}, PriorMonth},
		{"Period type", "statement.pdf", normalize.RawExtraction{"period_type": "forecast"}, Budget},
		{"Metadata", "statement.pdf", normalize.RawExtraction{"metadata": map[string]any{"document_type": "last_year"}}, PriorYear},
		{"Unknown label", "statement.pdf", normalize.RawExtraction{"document_type": "Income Statement"}, CurrentMonth},
		{"Nothing to go on", "statement.pdf", nil, CurrentMonth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetermineDocumentType(tt.filename, tt.raw))
		})
	}
}

func TestStandardizePeriodType(t *testing.T) {
	tests := []struct {
		label    string
		expected DocumentType
		ok       bool
	}{
		{"current_month_actuals", CurrentMonth, true},
		{"Actual", CurrentMonth, true},
		{"budgeted", Budget, true},
		{"Last Month", PriorMonth, true},
		{"previous-year", PriorYear, true},
		{"", "", false},
		{"trailing twelve", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := StandardizePeriodType(tt.label)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDetectPeriod(t *testing.T) {
	tests := []struct {
		filename string
		expected string
		ok       bool
	}{
		{"actuals_2024-03.pdf", "2024-03", true},
		{"budget 2023_12.xlsx", "2023-12", true},
		{"March 2024 budget.xlsx", "2024-03", true},
		{"sept-2022.csv", "2022-09", true},
		{"statement.pdf", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, ok := DetectPeriod(tt.filename)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDocumentTypeSuffix(t *testing.T) {
	s, ok := PriorMonth.Suffix()
	assert.True(t, ok)
	assert.Equal(t, comparison.Prior, s)

	_, ok = CurrentMonth.Suffix()
	assert.False(t, ok)

	assert.True(t, PriorYear.Valid())
	assert.False(t, DocumentType("quarterly").Valid())
}
