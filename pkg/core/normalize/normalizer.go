// Package normalize maps loosely structured extraction output onto the
// canonical snapshot schema.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"noi_analyzer/pkg/core/calc"
	"noi_analyzer/pkg/core/logger"
	"noi_analyzer/pkg/core/utils"
)

// RawExtraction is the untrusted key/value blob returned by an extraction
// service. Nothing about its shape is guaranteed.
type RawExtraction map[string]any

// ErrMalformedExtraction is returned when the input is not a mapping at all.
var ErrMalformedExtraction = errors.New("malformed extraction")

// Keys handled structurally rather than through the alias tables.
const (
	keyFinancials        = "financials"
	keyOperatingExpenses = "operating_expenses"
	keyOpExTotalFlat     = "operating_expenses_total"
	keyOtherIncome       = "other_income"
	keyAdditionalItems   = "additional_items"
	keyPropertyID        = "property_id"
	keyPeriod            = "period"
)

// ParseRawExtraction decodes a service response. Minor JSON defects are
// repaired; a top level that is not an object is an error.
func ParseRawExtraction(data []byte) (RawExtraction, error) {
	var raw map[string]any
	if _, err := utils.SmartParse(string(data), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedExtraction, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: top level is not an object", ErrMalformedExtraction)
	}
	return RawExtraction(raw), nil
}

// AsRawExtraction accepts the mapping types produced by JSON decoders.
func AsRawExtraction(v any) (RawExtraction, error) {
	switch m := v.(type) {
	case RawExtraction:
		if m == nil {
			break
		}
		return m, nil
	case map[string]any:
		if m == nil {
			break
		}
		return RawExtraction(m), nil
	case map[string]float64:
		out := make(RawExtraction, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, nil
	case map[string]string:
		out := make(RawExtraction, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: got %T", ErrMalformedExtraction, v)
}

// =============================================================================
// RESOLUTION (rename / flatten only)
// =============================================================================

// Resolution is the outcome of mapping raw keys onto canonical fields before
// any numeric coercion.
type Resolution struct {
	Values  map[calc.Field]any
	Sources map[calc.Field]string  // raw key path each value came from
	Folded  map[calc.Field]float64 // amounts folded in from additional_items

	PropertyID any
	Period     any

	// Ignored lists raw keys that matched no rule, sorted.
	Ignored []string
}

func (r *Resolution) set(f calc.Field, v any, source string) {
	r.Values[f] = v
	r.Sources[f] = source
}

// Resolve maps raw onto canonical fields. It only renames and flattens.
//
// When a non-empty "financials" object is present it is the lookup source.
// Nested "operating_expenses" and "other_income" objects take precedence over
// flat keys for the fields they carry.
func Resolve(raw RawExtraction) (*Resolution, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: nil extraction", ErrMalformedExtraction)
	}

	src := map[string]any(raw)
	if fin, ok := raw[keyFinancials].(map[string]any); ok && len(fin) > 0 {
		src = fin
	}

	res := &Resolution{
		Values:     make(map[calc.Field]any),
		Sources:    make(map[calc.Field]string),
		Folded:     make(map[calc.Field]float64),
		PropertyID: firstPresent(keyPropertyID, raw, src),
		Period:     firstPresent(keyPeriod, raw, src),
	}
	consumed := map[string]bool{
		keyFinancials:        true,
		keyOperatingExpenses: true,
		keyOpExTotalFlat:     true,
		keyOtherIncome:       true,
		keyPropertyID:        true,
		keyPeriod:            true,
	}

	for _, f := range calc.AllFields() {
		key, v, ok := lookup(src, f)
		if !ok {
			continue
		}
		consumed[key] = true
		res.set(f, v, key)
	}

	res.resolveOperatingExpenses(src)
	res.resolveOtherIncome(src)

	for key := range src {
		if !consumed[key] {
			res.Ignored = append(res.Ignored, key)
		}
	}
	sort.Strings(res.Ignored)
	return res, nil
}

func (r *Resolution) resolveOperatingExpenses(src map[string]any) {
	switch oe := src[keyOperatingExpenses].(type) {
	case nil:
	case map[string]any:
		for _, key := range []string{"total_operating_expenses", "total"} {
			if v, ok := oe[key]; ok && v != nil {
				r.set(calc.OpEx, v, keyOperatingExpenses+"."+key)
				break
			}
		}
		for _, f := range calc.OpExComponents {
			if key, v, ok := lookup(oe, f); ok {
				r.set(f, v, keyOperatingExpenses+"."+key)
			}
		}
	default:
		r.set(calc.OpEx, oe, keyOperatingExpenses)
	}

	if calc.ToFloat(r.Values[calc.OpEx], 0) == 0 {
		if v, ok := src[keyOpExTotalFlat]; ok && v != nil {
			r.set(calc.OpEx, v, keyOpExTotalFlat)
		}
	}
}

func (r *Resolution) resolveOtherIncome(src map[string]any) {
	oi, ok := src[keyOtherIncome].(map[string]any)
	if !ok {
		return
	}
	for _, key := range []string{"total", "total_other_income"} {
		if v, ok := oi[key]; ok && v != nil {
			r.set(calc.OtherIncome, v, keyOtherIncome+"."+key)
			break
		}
	}
	for _, f := range calc.IncomeComponents {
		if key, v, ok := lookup(oi, f); ok {
			r.set(f, v, keyOtherIncome+"."+key)
		}
	}

	items, _ := oi[keyAdditionalItems].([]any)
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		amount := calc.ToFloat(entry["amount"], 0)
		if amount == 0 {
			continue
		}
		target := calc.Miscellaneous
		if f, ok := canonicalName(calc.ToString(entry["name"], "")); ok && isIncomeComponent(f) {
			target = f
		}
		r.Values[target] = calc.ToFloat(r.Values[target], 0) + amount
		if _, seen := r.Sources[target]; !seen {
			r.Sources[target] = keyOtherIncome + "." + keyAdditionalItems
		}
		r.Folded[target] += amount
	}
}

func isIncomeComponent(f calc.Field) bool {
	for _, c := range calc.IncomeComponents {
		if c == f {
			return true
		}
	}
	return false
}

func firstPresent(key string, maps ...map[string]any) any {
	for _, m := range maps {
		if v, ok := m[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func normalizeKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// =============================================================================
// NORMALIZER (resolve + coerce)
// =============================================================================

// Normalizer turns raw extractions into canonical snapshots.
type Normalizer struct {
	logger arbor.ILogger
}

// NewNormalizer returns a Normalizer; a nil logger selects the global one.
func NewNormalizer(l arbor.ILogger) *Normalizer {
	return &Normalizer{logger: logger.Or(l)}
}

// Normalize resolves raw and coerces every matched value. Values that cannot
// be parsed are left unset and read as zero.
func (n *Normalizer) Normalize(raw RawExtraction) (calc.Snapshot, error) {
	res, err := Resolve(raw)
	if err != nil {
		return calc.Snapshot{}, err
	}

	var s calc.Snapshot
	s.PropertyID = calc.StringPtr(calc.ToString(res.PropertyID, ""))
	s.Period = calc.StringPtr(calc.ToString(res.Period, ""))

	for _, f := range calc.AllFields() {
		v, ok := res.Values[f]
		if !ok {
			continue
		}
		num := calc.ToFloat(v, math.NaN())
		if math.IsNaN(num) {
			n.logger.Debug().
				Str("field", f.String()).
				Str("source", res.Sources[f]).
				Str("value", fmt.Sprint(v)).
				Msg("[NORMALIZE] Unparseable value defaulted to 0")
			continue
		}
		s.Set(f, num)
	}

	if len(res.Ignored) > 0 {
		n.logger.Debug().Strs("keys", res.Ignored).Msg("[NORMALIZE] Ignored unmapped keys")
	}
	if len(res.Folded) > 0 {
		n.logger.Debug().Int("fields", len(res.Folded)).Msg("[NORMALIZE] Folded additional income items")
	}
	return s, nil
}

// NormalizeAny accepts any decoded value and rejects non-mappings.
func (n *Normalizer) NormalizeAny(v any) (calc.Snapshot, error) {
	raw, err := AsRawExtraction(v)
	if err != nil {
		return calc.Snapshot{}, err
	}
	return n.Normalize(raw)
}

// Normalize uses a Normalizer bound to the global logger.
func Normalize(raw RawExtraction) (calc.Snapshot, error) {
	return NewNormalizer(nil).Normalize(raw)
}
