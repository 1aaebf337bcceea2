// Package validate reconciles a canonical snapshot against the NOI formulas
// and corrects reported totals that disagree with their inputs.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"noi_analyzer/pkg/core/calc"
	"noi_analyzer/pkg/core/logger"
)

// ErrMalformedSnapshot is returned by RunAny for input that is not a snapshot or mapping.
var ErrMalformedSnapshot = errors.New("malformed snapshot")

// missingListLimit caps how many field names the completeness warning spells out.
const missingListLimit = 5

// Options holds tolerances in currency units.
type Options struct {
	Tolerance          float64 // EGI and NOI formulas
	ComponentTolerance float64 // OpEx and Other Income component sums
}

// DefaultOptions returns Tolerance 1.0 and ComponentTolerance 0.1.
func DefaultOptions() Options {
	return Options{
		Tolerance:          calc.FinancialTolerance,
		ComponentTolerance: calc.ComponentTolerance,
	}
}

// Correction records one overwritten total.
type Correction struct {
	Field      calc.Field `json:"field"`
	Reported   float64    `json:"reported"`
	Calculated float64    `json:"calculated"`
}

// Result is the outcome of one validation pass.
type Result struct {
	Snapshot    calc.Snapshot
	Warnings    []string
	Corrections []Correction
	Checks      []calc.FormulaCheck // every formula evaluated, before correction
	Missing     []calc.Field
}

// Corrected reports whether any total was overwritten.
func (r *Result) Corrected() bool { return len(r.Corrections) > 0 }

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// =============================================================================
// VALIDATOR
// =============================================================================

type Validator struct {
	opts   Options
	logger arbor.ILogger
}

// NewValidator returns a Validator. Non-positive tolerances fall back to the
// defaults and a nil logger selects the global one.
func NewValidator(opts Options, l arbor.ILogger) *Validator {
	def := DefaultOptions()
	if opts.Tolerance <= 0 {
		opts.Tolerance = def.Tolerance
	}
	if opts.ComponentTolerance <= 0 {
		opts.ComponentTolerance = def.ComponentTolerance
	}
	return &Validator{opts: opts, logger: logger.Or(l)}
}

// Options returns the effective tolerances.
func (v *Validator) Options() Options { return v.opts }

// Run validates a copy of in and returns the corrected copy with its
// warnings. The input is never modified.
//
// Order: OpEx component sum, Other Income component sum, EGI, NOI,
// completeness, sign sanity. Component sums run first so that the formulas
// see corrected totals.
func (v *Validator) Run(in calc.Snapshot) *Result {
	s := in.Clone()
	res := &Result{}

	v.reconcileComponents(&s, res, calc.OpEx, calc.CoreOpExComponents)
	v.reconcileComponents(&s, res, calc.OtherIncome, calc.IncomeComponents)
	v.reconcileFormula(&s, res, calc.CheckEGI(s, v.opts.Tolerance))
	v.reconcileFormula(&s, res, calc.CheckNOI(s, v.opts.Tolerance))
	fillMissing(&s, res)
	checkSigns(s, res)

	res.Snapshot = s
	if len(res.Warnings) > 0 {
		v.logger.Debug().
			Int("warnings", len(res.Warnings)).
			Int("corrections", len(res.Corrections)).
			Int("missing", len(res.Missing)).
			Msg("[VALIDATE] Snapshot validated")
	}
	return res
}

// RunAny accepts a Snapshot, *Snapshot or canonical mapping.
func (v *Validator) RunAny(in any) (*Result, error) {
	switch s := in.(type) {
	case calc.Snapshot:
		return v.Run(s), nil
	case *calc.Snapshot:
		if s != nil {
			return v.Run(*s), nil
		}
	case map[string]any:
		if s != nil {
			return v.Run(calc.FromMap(s)), nil
		}
	}
	return nil, fmt.Errorf("%w: got %T", ErrMalformedSnapshot, in)
}

// ValidateAndCorrect runs a default Validator and returns the corrected
// snapshot with its warnings.
func ValidateAndCorrect(s calc.Snapshot) (calc.Snapshot, []string) {
	res := NewValidator(DefaultOptions(), nil).Run(s)
	return res.Snapshot, res.Warnings
}

// reconcileComponents trusts components over the reported total. A zero
// total or zero component sum means the data is not populated and is skipped.
func (v *Validator) reconcileComponents(s *calc.Snapshot, res *Result, total calc.Field, components []calc.Field) {
	check := calc.CheckComponentSum(*s, total, components, v.opts.ComponentTolerance)
	if check.Reported == 0 || check.Calculated == 0 {
		return
	}
	res.Checks = append(res.Checks, check)
	if check.IsBalanced {
		return
	}

	res.warn("%s total (%s) does not match sum of components (%s) - corrected to component sum",
		shortName(total), calc.FormatCurrency(check.Reported), calc.FormatCurrency(check.Calculated))
	v.apply(s, res, check)
}

// reconcileFormula trusts the formula over the directly extracted value.
func (v *Validator) reconcileFormula(s *calc.Snapshot, res *Result, check calc.FormulaCheck) {
	res.Checks = append(res.Checks, check)
	if check.IsBalanced {
		return
	}

	name := shortName(check.Field)
	if !s.Has(check.Field) {
		res.warn("%s was not reported - derived from formula as %s",
			name, calc.FormatCurrency(check.Calculated))
	} else {
		res.warn("%s mismatch: reported %s, calculated %s - auto-corrected",
			name, calc.FormatCurrency(check.Reported), calc.FormatCurrency(check.Calculated))
	}
	v.apply(s, res, check)
}

func (v *Validator) apply(s *calc.Snapshot, res *Result, check calc.FormulaCheck) {
	s.Set(check.Field, check.Calculated)
	res.Corrections = append(res.Corrections, Correction{
		Field:      check.Field,
		Reported:   check.Reported,
		Calculated: check.Calculated,
	})
	v.logger.Warn().
		Str("field", check.Field.String()).
		Float64("reported", check.Reported).
		Float64("calculated", check.Calculated).
		Msg("[VALIDATE] Auto-corrected total")
}

// fillMissing marks every unsupplied field as an explicit zero and batches
// the names into one warning.
func fillMissing(s *calc.Snapshot, res *Result) {
	for _, f := range calc.AllFields() {
		if !s.Has(f) {
			res.Missing = append(res.Missing, f)
			s.Set(f, 0)
		}
	}
	if len(res.Missing) == 0 {
		return
	}

	names := make([]string, 0, missingListLimit)
	for i, f := range res.Missing {
		if i == missingListLimit {
			break
		}
		names = append(names, f.String())
	}
	msg := "Missing fields filled with defaults: " + strings.Join(names, ", ")
	if extra := len(res.Missing) - len(names); extra > 0 {
		msg += fmt.Sprintf(" (and %d more)", extra)
	}
	res.Warnings = append(res.Warnings, msg)
}

// checkSigns flags negative values without changing them.
func checkSigns(s calc.Snapshot, res *Result) {
	for _, f := range []calc.Field{calc.GPR, calc.EGI, calc.NOI} {
		if val := s.Get(f); val < 0 {
			res.warn("%s is negative (%s) - please verify", shortName(f), calc.FormatCurrency(val))
		}
	}
	for _, f := range calc.OpExComponents {
		if val := s.Get(f); val < 0 {
			res.warn("%s is negative (%s) - please verify", f.Label(), calc.FormatCurrency(val))
		}
	}
	for _, f := range calc.IncomeComponents {
		if val := s.Get(f); val < 0 {
			res.warn("%s is negative (%s) - unusual but allowed", f.Label(), calc.FormatCurrency(val))
		}
	}
}

func shortName(f calc.Field) string {
	switch f {
	case calc.GPR:
		return "GPR"
	case calc.EGI:
		return "EGI"
	case calc.NOI:
		return "NOI"
	case calc.OpEx:
		return "OpEx"
	}
	return f.Label()
}
