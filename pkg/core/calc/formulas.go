package calc

import (
	"math"
	"sync"
)

// Tolerances used across validation and comparison.
const (
	FinancialTolerance = 1.0  // currency units, EGI/NOI checks
	ComponentTolerance = 0.1  // currency units, component-sum checks
	FinancialEpsilon   = 1e-4 // divide-by-zero guard for percent change
)

// CalculateEGI computes Effective Gross Income.
// EGI = GPR - Vacancy Loss - Concessions - Bad Debt + Other Income
func CalculateEGI(gpr, vacancyLoss, concessions, badDebt, otherIncome float64) float64 {
	return Bounded(gpr - vacancyLoss - concessions - badDebt + otherIncome)
}

// CalculateNOI computes Net Operating Income.
// NOI = EGI - OpEx
func CalculateNOI(egi, opex float64) float64 {
	return Bounded(egi - opex)
}

// Difference returns current - previous, saturated like Bounded.
func Difference(current, previous float64) float64 {
	return Bounded(current - previous)
}

// =============================================================================
// PERCENT CHANGE
// =============================================================================

type percentKey struct{ current, previous float64 }

const percentCacheLimit = 4096

var percentCache = struct {
	sync.RWMutex
	m map[percentKey]float64
}{m: make(map[percentKey]float64)}

// PercentChange returns (current - previous) / previous * 100.
//
// When |previous| <= FinancialEpsilon the result is 0 if current is also
// within epsilon, otherwise +100 or -100 following the sign of current.
// Non-finite inputs are treated as zero.
func PercentChange(current, previous float64) float64 {
	current, previous = finite(current), finite(previous)
	key := percentKey{current, previous}

	percentCache.RLock()
	v, ok := percentCache.m[key]
	percentCache.RUnlock()
	if ok {
		return v
	}

	v = percentChange(current, previous)

	percentCache.Lock()
	if len(percentCache.m) >= percentCacheLimit {
		percentCache.m = make(map[percentKey]float64)
	}
	percentCache.m[key] = v
	percentCache.Unlock()
	return v
}

func percentChange(current, previous float64) float64 {
	if math.Abs(previous) <= FinancialEpsilon {
		if math.Abs(current) <= FinancialEpsilon {
			return 0
		}
		if current > 0 {
			return 100
		}
		return -100
	}
	return Bounded((current - previous) / previous * 100)
}

// IsSignificantChange reports whether the percent change between two values
// reaches thresholdPct (e.g. 5 for 5%).
func IsSignificantChange(current, previous, thresholdPct float64) bool {
	return math.Abs(PercentChange(current, previous)) >= thresholdPct
}

// Bounded keeps arithmetic results JSON-encodable: NaN becomes 0 and an
// overflow saturates at ±math.MaxFloat64.
func Bounded(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	}
	return v
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// =============================================================================
// FAVORABLE DIRECTION
// =============================================================================

// Direction tells whether an increase in a metric is good news.
type Direction int

const (
	HigherIsBetter Direction = iota
	LowerIsBetter
)

// Favorable returns the favorable direction of change for the field.
// Losses and expenses improve when they shrink.
func (f Field) Favorable() Direction {
	switch f {
	case VacancyLoss, Concessions, BadDebt, OpEx:
		return LowerIsBetter
	}
	for _, c := range OpExComponents {
		if f == c {
			return LowerIsBetter
		}
	}
	return HigherIsBetter
}

// IsFavorable reports whether change moves the field in its favorable direction.
// A zero change is neutral and reported as favorable.
func IsFavorable(f Field, change float64) bool {
	if f.Favorable() == LowerIsBetter {
		return change <= 0
	}
	return change >= 0
}
