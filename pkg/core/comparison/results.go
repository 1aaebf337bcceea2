package comparison

import (
	"encoding/json"
	"errors"

	"noi_analyzer/pkg/core/calc"
)

// ErrMissingCurrent is returned when no current-period snapshot is supplied.
var ErrMissingCurrent = errors.New("current period data is required")

// Results combines the current snapshot with every available comparison.
// All three deltas are always non-nil; absent comparison snapshots are nil
// and serialize as {}.
type Results struct {
	MonthVsPrior   Delta `json:"month_vs_prior"`
	ActualVsBudget Delta `json:"actual_vs_budget"`
	YearVsYear     Delta `json:"year_vs_year"`

	Current   calc.Snapshot  `json:"current"`
	Prior     *calc.Snapshot `json:"prior"`
	Budget    *calc.Snapshot `json:"budget"`
	PriorYear *calc.Snapshot `json:"prior_year"`
}

// BuildComparisonResults compares current against each supplied snapshot.
// Inputs are copied; nil or empty comparison snapshots produce empty deltas.
func BuildComparisonResults(current, prior, budget, priorYear *calc.Snapshot) (*Results, error) {
	if current == nil {
		return nil, ErrMissingCurrent
	}

	r := &Results{
		Current:   current.Clone(),
		Prior:     cloneOrNil(prior),
		Budget:    cloneOrNil(budget),
		PriorYear: cloneOrNil(priorYear),
	}
	r.MonthVsPrior = compareOrEmpty(r.Current, r.Prior, Prior)
	r.ActualVsBudget = compareOrEmpty(r.Current, r.Budget, Budget)
	r.YearVsYear = compareOrEmpty(r.Current, r.PriorYear, PriorYear)
	return r, nil
}

func cloneOrNil(s *calc.Snapshot) *calc.Snapshot {
	if s == nil || s.IsEmpty() {
		return nil
	}
	c := s.Clone()
	return &c
}

func compareOrEmpty(current calc.Snapshot, other *calc.Snapshot, suffix Suffix) Delta {
	if other == nil {
		return Delta{}
	}
	return compare(current, *other, suffix)
}

// Comparison returns the delta for suffix, or nil for an unknown suffix.
func (r *Results) Comparison(suffix Suffix) Delta {
	switch suffix {
	case Prior:
		return r.MonthVsPrior
	case Budget:
		return r.ActualVsBudget
	case PriorYear:
		return r.YearVsYear
	}
	return nil
}

// Snapshot returns the comparison snapshot for suffix, or nil when absent.
func (r *Results) Snapshot(suffix Suffix) *calc.Snapshot {
	switch suffix {
	case Prior:
		return r.Prior
	case Budget:
		return r.Budget
	case PriorYear:
		return r.PriorYear
	}
	return nil
}

// Available lists the suffixes whose comparison data exists.
func (r *Results) Available() []Suffix {
	var out []Suffix
	for _, s := range Suffixes {
		if len(r.Comparison(s)) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// Metric looks up one delta value. ok is false when the comparison is absent.
func (r *Results) Metric(f calc.Field, suffix Suffix, kind Kind) (float64, bool) {
	v, ok := r.Comparison(suffix)[suffix.Key(f, kind)]
	return v, ok
}

// ToMap returns the JSON-compatible mapping consumed by presentation code.
func (r *Results) ToMap() map[string]any {
	out := map[string]any{"current": r.Current.ToMap()}
	for _, s := range Suffixes {
		out[s.ResultKey()] = map[string]float64(nonNil(r.Comparison(s)))
		if snap := r.Snapshot(s); snap != nil {
			out[string(s)] = snap.ToMap()
		} else {
			out[string(s)] = map[string]any{}
		}
	}
	return out
}

func nonNil(d Delta) Delta {
	if d == nil {
		return Delta{}
	}
	return d
}

// MarshalJSON writes absent snapshots as {} and absent deltas as {}.
func (r Results) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToMap())
}

// UnmarshalJSON restores Results written by MarshalJSON.
func (r *Results) UnmarshalJSON(data []byte) error {
	type plain struct {
		MonthVsPrior   Delta           `json:"month_vs_prior"`
		ActualVsBudget Delta           `json:"actual_vs_budget"`
		YearVsYear     Delta           `json:"year_vs_year"`
		Current        calc.Snapshot   `json:"current"`
		Prior          json.RawMessage `json:"prior"`
		Budget         json.RawMessage `json:"budget"`
		PriorYear      json.RawMessage `json:"prior_year"`
	}
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	out := Results{
		MonthVsPrior:   nonNil(p.MonthVsPrior),
		ActualVsBudget: nonNil(p.ActualVsBudget),
		YearVsYear:     nonNil(p.YearVsYear),
		Current:        p.Current,
	}
	for _, target := range []struct {
		raw json.RawMessage
		dst **calc.Snapshot
	}{
		{p.Prior, &out.Prior},
		{p.Budget, &out.Budget},
		{p.PriorYear, &out.PriorYear},
	} {
		if len(target.raw) == 0 || string(target.raw) == "null" {
			continue
		}
		var s calc.Snapshot
		if err := json.Unmarshal(target.raw, &s); err != nil {
			return err
		}
		if !s.IsEmpty() {
			*target.dst = &s
		}
	}
	*r = out
	return nil
}
