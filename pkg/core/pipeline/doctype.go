package pipeline

import (
	"regexp"
	"strings"

	"noi_analyzer/pkg/core/calc"
	"noi_analyzer/pkg/core/comparison"
	"noi_analyzer/pkg/core/normalize"
)

// DocumentType is the reporting role of an uploaded statement.
type DocumentType string

const (
	CurrentMonth DocumentType = "current_month"
	PriorMonth   DocumentType = "prior_month"
	Budget       DocumentType = "budget"
	PriorYear    DocumentType = "prior_year"
)

// DocumentTypes lists every type in display order.
var DocumentTypes = []DocumentType{CurrentMonth, PriorMonth, Budget, PriorYear}

// Valid reports whether t is one of the four known types.
func (t DocumentType) Valid() bool {
	switch t {
	case CurrentMonth, PriorMonth, Budget, PriorYear:
		return true
	}
	return false
}

// Suffix maps a comparison document type to its comparison suffix.
// CurrentMonth has none.
func (t DocumentType) Suffix() (comparison.Suffix, bool) {
	switch t {
	case PriorMonth:
		return comparison.Prior, true
	case Budget:
		return comparison.Budget, true
	case PriorYear:
		return comparison.PriorYear, true
	}
	return "", false
}

// DetermineDocumentType classifies a document by its file name first and
// then by the type reported in the extraction. Unknown documents are
// treated as the current month.
func DetermineDocumentType(filename string, raw normalize.RawExtraction) DocumentType {
	if t, ok := typeFromFilename(filename); ok {
		return t
	}
	for _, key := range []string{"document_type", "period_type"} {
		if v, ok := raw[key]; ok {
			if t, ok := StandardizePeriodType(calc.ToString(v, "")); ok {
				return t
			}
		}
	}
	if meta, ok := raw["metadata"].(map[string]any); ok {
		if t, ok := StandardizePeriodType(calc.ToString(meta["document_type"], "")); ok {
			return t
		}
	}
	return CurrentMonth
}

func typeFromFilename(filename string) (DocumentType, bool) {
	name := strings.ToLower(filename)
	switch {
	case strings.Contains(name, "budget"):
		return Budget, true
	case strings.Contains(name, "prior") || strings.Contains(name, "previous"):
		if strings.Contains(name, "year") {
			return PriorYear, true
		}
		return PriorMonth, true
	case strings.Contains(name, "current") || strings.Contains(name, "actual"):
		return CurrentMonth, true
	}
	return "", false
}

var periodTypeAliases = map[string]DocumentType{
	"current":        CurrentMonth,
	"actual":         CurrentMonth,
	"actuals":        CurrentMonth,
	"current_month":  CurrentMonth,
	"budget":         Budget,
	"budgeted":       Budget,
	"forecast":       Budget,
	"prior_month":    PriorMonth,
	"previous_month": PriorMonth,
	"last_month":     PriorMonth,
	"prior":          PriorMonth,
	"prior_year":     PriorYear,
	"previous_year":  PriorYear,
	"last_year":      PriorYear,
}

// StandardizePeriodType maps free-form labels such as "Prior Year Actuals"
// or "current_month_actuals" to a DocumentType.
func StandardizePeriodType(label string) (DocumentType, bool) {
	key := strings.Join(strings.FieldsFunc(strings.ToLower(label), func(r rune) bool {
		return r == ' ' || r == '_' || r == '-'
	}), "_")
	if key == "" {
		return "", false
	}
	if t, ok := periodTypeAliases[key]; ok {
		return t, true
	}
	switch {
	case strings.Contains(key, "budget") || strings.Contains(key, "forecast"):
		return Budget, true
	case strings.Contains(key, "prior_year") || strings.Contains(key, "previous_year") || strings.Contains(key, "last_year"):
		return PriorYear, true
	case strings.Contains(key, "prior") || strings.Contains(key, "previous"):
		return PriorMonth, true
	case strings.Contains(key, "current") || strings.Contains(key, "actual"):
		return CurrentMonth, true
	}
	return "", false
}

var (
	isoPeriod   = regexp.MustCompile(`(20\d{2})[-_ .]?(0[1-9]|1[0-2])(?:\D|$)`)
	monthPeriod = regexp.MustCompile(`(?i)(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*[-_ .]?(20\d{2})`)
)

var monthNumbers = map[string]string{
	"jan": "01", "feb": "02", "mar": "03", "apr": "04", "may": "05", "jun": "06",
	"jul": "07", "aug": "08", "sep": "09", "oct": "10", "nov": "11", "dec": "12",
}

// DetectPeriod finds a YYYY-MM period in a file name such as
// "actuals_2024-03.pdf" or "March 2024 budget.xlsx".
func DetectPeriod(filename string) (string, bool) {
	if m := isoPeriod.FindStringSubmatch(filename); m != nil {
		return m[1] + "-" + m[2], true
	}
	if m := monthPeriod.FindStringSubmatch(filename); m != nil {
		return m[2] + "-" + monthNumbers[strings.ToLower(m[1][:3])], true
	}
	return "", false
}
