// Package comparison computes period-over-period deltas between canonical
// snapshots and assembles them into a single results aggregate.
package comparison

import (
	"errors"
	"fmt"

	"noi_analyzer/pkg/core/calc"
)

// ErrUnknownSuffix is returned for a comparison suffix outside the vocabulary.
var ErrUnknownSuffix = errors.New("unknown comparison suffix")

// Suffix names a comparison axis and drives the key vocabulary of its deltas.
type Suffix string

const (
	Prior     Suffix = "prior"
	Budget    Suffix = "budget"
	PriorYear Suffix = "prior_year"
)

// Suffixes lists the supported axes in presentation order.
var Suffixes = []Suffix{Prior, Budget, PriorYear}

// Valid reports whether s is one of the supported suffixes.
func (s Suffix) Valid() bool {
	switch s {
	case Prior, Budget, PriorYear:
		return true
	}
	return false
}

// ChangeWord is "variance" for budget comparisons and "change" otherwise.
func (s Suffix) ChangeWord() string {
	if s == Budget {
		return "variance"
	}
	return "change"
}

// ResultKey is the name of the comparison inside Results.
func (s Suffix) ResultKey() string {
	switch s {
	case Prior:
		return "month_vs_prior"
	case Budget:
		return "actual_vs_budget"
	case PriorYear:
		return "year_vs_year"
	}
	return ""
}

// Label is a human-readable title.
func (s Suffix) Label() string {
	switch s {
	case Prior:
		return "Current vs Prior Month"
	case Budget:
		return "Actual vs Budget"
	case PriorYear:
		return "Current vs Prior Year"
	}
	return string(s)
}

// Key kinds of a delta entry.
type Kind int

const (
	KindCurrent Kind = iota
	KindOther
	KindChange
	KindPercent
)

// Key builds the delta key of metric f for kind, e.g. "noi_percent_variance".
func (s Suffix) Key(f calc.Field, kind Kind) string {
	m := f.String()
	switch kind {
	case KindCurrent:
		return m + "_current"
	case KindOther:
		return m + "_" + string(s)
	case KindChange:
		return m + "_" + s.ChangeWord()
	case KindPercent:
		return m + "_percent_" + s.ChangeWord()
	}
	return m
}

// Delta is the flat mapping produced by one comparison.
type Delta map[string]float64

// Compare computes the delta of current against other for every tracked
// metric. A nil or empty other yields an empty Delta.
func Compare(current calc.Snapshot, other *calc.Snapshot, suffix Suffix) (Delta, error) {
	if !suffix.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSuffix, suffix)
	}
	if other == nil || other.IsEmpty() {
		return Delta{}, nil
	}
	return compare(current, *other, suffix), nil
}

func compare(current, other calc.Snapshot, suffix Suffix) Delta {
	d := make(Delta, len(calc.TrackedMetrics)*4)
	for _, f := range calc.TrackedMetrics {
		curr, prev := current.Get(f), other.Get(f)
		d[suffix.Key(f, KindCurrent)] = curr
		d[suffix.Key(f, KindOther)] = prev
		d[suffix.Key(f, KindChange)] = calc.Difference(curr, prev)
		d[suffix.Key(f, KindPercent)] = calc.PercentChange(curr, prev)
	}
	return d
}
