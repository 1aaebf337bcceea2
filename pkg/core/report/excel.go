package report

import (
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"noi_analyzer/pkg/core/calc"
	"noi_analyzer/pkg/core/comparison"
)

// CurrentSheet holds the current snapshot in every workbook.
const CurrentSheet = "Current"

// numFmtAccounting is the built-in "#,##0.00" format.
const numFmtAccounting = 4

// ExportExcel builds a workbook with the current snapshot and one sheet per
// available comparison.
func ExportExcel(results *comparison.Results) (*excelize.File, error) {
	if results == nil {
		return nil, errors.New("results are nil")
	}

	wb := excelize.NewFile()
	if err := wb.SetSheetName(wb.GetSheetName(0), CurrentSheet); err != nil {
		return nil, err
	}
	styles, err := newStyles(wb)
	if err != nil {
		return nil, err
	}

	if err := writeCurrentSheet(wb, styles, results.Current); err != nil {
		return nil, err
	}
	for _, suffix := range results.Available() {
		if err := writeComparisonSheet(wb, styles, results, suffix); err != nil {
			return nil, err
		}
	}
	wb.SetActiveSheet(0)
	return wb, nil
}

type sheetStyles struct {
	header, money, percent int
}

func newStyles(wb *excelize.File) (sheetStyles, error) {
	var s sheetStyles
	var err error
	if s.header, err = wb.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"F0F4F8"}},
	}); err != nil {
		return s, err
	}
	if s.money, err = wb.NewStyle(&excelize.Style{NumFmt: numFmtAccounting}); err != nil {
		return s, err
	}
	pct := `0.00"%"`
	if s.percent, err = wb.NewStyle(&excelize.Style{CustomNumFmt: &pct}); err != nil {
		return s, err
	}
	return s, nil
}

func writeCurrentSheet(wb *excelize.File, st sheetStyles, s calc.Snapshot) error {
	header := []any{"Metric", "Field", "Amount"}
	if err := wb.SetSheetRow(CurrentSheet, "A1", &header); err != nil {
		return err
	}
	row := 2
	for _, f := range calc.TrackedMetrics {
		values := []any{f.Label(), f.String(), s.Get(f)}
		if err := wb.SetSheetRow(CurrentSheet, fmt.Sprintf("A%d", row), &values); err != nil {
			return err
		}
		row++
	}
	return finishSheet(wb, st, CurrentSheet, len(header), row-1, []string{"C"}, nil)
}

func writeComparisonSheet(wb *excelize.File, st sheetStyles, results *comparison.Results, suffix comparison.Suffix) error {
	name := suffix.Label()
	if _, err := wb.NewSheet(name); err != nil {
		return err
	}

	word := "Change"
	if suffix == comparison.Budget {
		word = "Variance"
	}
	header := []any{"Metric", "Current", otherColumn(suffix), word, word + " %"}
	if err := wb.SetSheetRow(name, "A1", &header); err != nil {
		return err
	}

	row := 2
	for _, f := range calc.TrackedMetrics {
		values := []any{f.Label()}
		for _, kind := range []comparison.Kind{comparison.KindCurrent, comparison.KindOther, comparison.KindChange, comparison.KindPercent} {
			v, _ := results.Metric(f, suffix, kind)
			values = append(values, v)
		}
		if err := wb.SetSheetRow(name, fmt.Sprintf("A%d", row), &values); err != nil {
			return err
		}
		row++
	}
	return finishSheet(wb, st, name, len(header), row-1, []string{"B", "C", "D"}, []string{"E"})
}

func finishSheet(wb *excelize.File, st sheetStyles, sheet string, cols, lastRow int, moneyCols, pctCols []string) error {
	lastHeader, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return err
	}
	if err := wb.SetCellStyle(sheet, "A1", lastHeader, st.header); err != nil {
		return err
	}
	for _, c := range moneyCols {
		if err := wb.SetCellStyle(sheet, c+"2", fmt.Sprintf("%s%d", c, lastRow), st.money); err != nil {
			return err
		}
	}
	for _, c := range pctCols {
		if err := wb.SetCellStyle(sheet, c+"2", fmt.Sprintf("%s%d", c, lastRow), st.percent); err != nil {
			return err
		}
	}
	return wb.SetColWidth(sheet, "A", "A", 28)
}
