package calc

import (
	"math"

	"github.com/shopspring/decimal"
)

// FormulaCheck holds the outcome of comparing a reported aggregate with the
// value implied by its inputs.
type FormulaCheck struct {
	Field      Field
	Reported   float64
	Calculated float64
	Gap        float64 // Reported - Calculated
	Tolerance  float64
	IsBalanced bool
}

func newCheck(f Field, reported, calculated, tolerance float64) FormulaCheck {
	gap := Bounded(reported - calculated)
	return FormulaCheck{
		Field:      f,
		Reported:   reported,
		Calculated: calculated,
		Gap:        gap,
		Tolerance:  tolerance,
		IsBalanced: math.Abs(gap) <= tolerance,
	}
}

// CheckEGI verifies EGI = GPR - Vacancy - Concessions - Bad Debt + Other Income.
func CheckEGI(s Snapshot, tolerance float64) FormulaCheck {
	calculated := CalculateEGI(s.GPR, s.VacancyLoss, s.Concessions, s.BadDebt, s.OtherIncome)
	return newCheck(EGI, s.EGI, calculated, tolerance)
}

// CheckNOI verifies NOI = EGI - OpEx.
func CheckNOI(s Snapshot, tolerance float64) FormulaCheck {
	return newCheck(NOI, s.NOI, CalculateNOI(s.EGI, s.OpEx), tolerance)
}

// CheckComponentSum verifies that total equals the sum of its components.
func CheckComponentSum(s Snapshot, total Field, components []Field, tolerance float64) FormulaCheck {
	return newCheck(total, s.Get(total), SumFields(s, components), tolerance)
}

// SumFields adds the given fields in decimal arithmetic so that the result
// does not depend on summation order.
func SumFields(s Snapshot, fields []Field) float64 {
	sum := decimal.Zero
	for _, f := range fields {
		sum = sum.Add(decimal.NewFromFloat(s.Get(f)))
	}
	out, _ := sum.Float64()
	return Bounded(out)
}
