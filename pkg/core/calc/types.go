// Package calc provides the canonical financial schema and the deterministic
// arithmetic used to reconcile and compare NOI snapshots.
// This file defines the canonical field set and the Snapshot record.
package calc

import (
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// CANONICAL FIELDS
// =============================================================================

// Field identifies one numeric slot of the canonical schema.
type Field int

const (
	// Core metrics
	GPR Field = iota
	VacancyLoss
	Concessions
	BadDebt
	OtherIncome
	EGI
	OpEx
	NOI

	// OpEx components (first five are summed into OpEx)
	PropertyTaxes
	Insurance
	RepairsMaintenance
	Utilities
	ManagementFees
	Administrative // legacy bucket
	Payroll        // legacy bucket
	Marketing      // legacy bucket
	OtherExpenses  // legacy bucket

	// Other-Income components
	Parking
	Laundry
	LateFees
	PetFees
	ApplicationFees
	StorageFees
	AmenityFees
	UtilityReimbursements
	CleaningFees
	CancellationFees
	Miscellaneous

	numFields
)

var fieldNames = [numFields]string{
	"gpr", "vacancy_loss", "concessions", "bad_debt", "other_income", "egi", "opex", "noi",
	"property_taxes", "insurance", "repairs_maintenance", "utilities", "management_fees",
	"administrative", "payroll", "marketing", "other_expenses",
	"parking", "laundry", "late_fees", "pet_fees", "application_fees", "storage_fees",
	"amenity_fees", "utility_reimbursements", "cleaning_fees", "cancellation_fees", "miscellaneous",
}

var fieldLabels = [numFields]string{
	"Gross Potential Rent", "Vacancy Loss", "Concessions", "Bad Debt", "Other Income",
	"Effective Gross Income", "Operating Expenses", "Net Operating Income",
	"Property Taxes", "Insurance", "Repairs & Maintenance", "Utilities", "Management Fees",
	"Administrative", "Payroll", "Marketing", "Other Expenses",
	"Parking", "Laundry", "Late Fees", "Pet Fees", "Application Fees", "Storage Fees",
	"Amenity Fees", "Utility Reimbursements", "Cleaning Fees", "Cancellation Fees", "Miscellaneous",
}

var fieldByName = func() map[string]Field {
	m := make(map[string]Field, numFields)
	for i, name := range fieldNames {
		m[name] = Field(i)
	}
	return m
}()

// String returns the canonical snake_case key of the field.
func (f Field) String() string {
	if f < 0 || f >= numFields {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fieldNames[f]
}

// Label returns a human-readable name for reports.
func (f Field) Label() string {
	if f < 0 || f >= numFields {
		return f.String()
	}
	return fieldLabels[f]
}

// ParseField resolves a canonical key (case-insensitive) to its Field.
func ParseField(name string) (Field, bool) {
	f, ok := fieldByName[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// Field groups, in schema order.
var (
	MainMetrics = []Field{GPR, VacancyLoss, Concessions, BadDebt, OtherIncome, EGI, OpEx, NOI}

	OpExComponents = []Field{
		PropertyTaxes, Insurance, RepairsMaintenance, Utilities, ManagementFees,
		Administrative, Payroll, Marketing, OtherExpenses,
	}

	// CoreOpExComponents are the components whose sum must match OpEx.
	CoreOpExComponents = OpExComponents[:5]

	IncomeComponents = []Field{
		Parking, Laundry, LateFees, PetFees, ApplicationFees, StorageFees,
		AmenityFees, UtilityReimbursements, CleaningFees, CancellationFees, Miscellaneous,
	}

	// TrackedMetrics are the metrics reported by every comparison.
	TrackedMetrics = concatFields(MainMetrics, CoreOpExComponents, IncomeComponents)
)

// AllFields returns every canonical numeric field in schema order.
func AllFields() []Field {
	out := make([]Field, numFields)
	for i := range out {
		out[i] = Field(i)
	}
	return out
}

func concatFields(groups ...[]Field) []Field {
	var out []Field
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is the canonical financial record for one reporting period.
// Every numeric field defaults to zero; presence records which fields were
// actually supplied so that the validator can report gaps.
type Snapshot struct {
	PropertyID *string `json:"property_id"`
	Period     *string `json:"period"`

	GPR         float64 `json:"gpr"`
	VacancyLoss float64 `json:"vacancy_loss"`
	Concessions float64 `json:"concessions"`
	BadDebt     float64 `json:"bad_debt"`
	OtherIncome float64 `json:"other_income"`
	EGI         float64 `json:"egi"`
	OpEx        float64 `json:"opex"`
	NOI         float64 `json:"noi"`

	PropertyTaxes      float64 `json:"property_taxes"`
	Insurance          float64 `json:"insurance"`
	RepairsMaintenance float64 `json:"repairs_maintenance"`
	Utilities          float64 `json:"utilities"`
	ManagementFees     float64 `json:"management_fees"`
	Administrative     float64 `json:"administrative"`
	Payroll            float64 `json:"payroll"`
	Marketing          float64 `json:"marketing"`
	OtherExpenses      float64 `json:"other_expenses"`

	Parking               float64 `json:"parking"`
	Laundry               float64 `json:"laundry"`
	LateFees              float64 `json:"late_fees"`
	PetFees               float64 `json:"pet_fees"`
	ApplicationFees       float64 `json:"application_fees"`
	StorageFees           float64 `json:"storage_fees"`
	AmenityFees           float64 `json:"amenity_fees"`
	UtilityReimbursements float64 `json:"utility_reimbursements"`
	CleaningFees          float64 `json:"cleaning_fees"`
	CancellationFees      float64 `json:"cancellation_fees"`
	Miscellaneous         float64 `json:"miscellaneous"`

	present uint32
}

func (s *Snapshot) ptr(f Field) *float64 {
	switch f {
	case GPR:
		return &s.GPR
	case VacancyLoss:
		return &s.VacancyLoss
	case Concessions:
		return &s.Concessions
	case BadDebt:
		return &s.BadDebt
	case OtherIncome:
		return &s.OtherIncome
	case EGI:
		return &s.EGI
	case OpEx:
		return &s.OpEx
	case NOI:
		return &s.NOI
	case PropertyTaxes:
		return &s.PropertyTaxes
	case Insurance:
		return &s.Insurance
	case RepairsMaintenance:
		return &s.RepairsMaintenance
	case Utilities:
		return &s.Utilities
	case ManagementFees:
		return &s.ManagementFees
	case Administrative:
		return &s.Administrative
	case Payroll:
		return &s.Payroll
	case Marketing:
		return &s.Marketing
	case OtherExpenses:
		return &s.OtherExpenses
	case Parking:
		return &s.Parking
	case Laundry:
		return &s.Laundry
	case LateFees:
		return &s.LateFees
	case PetFees:
		return &s.PetFees
	case ApplicationFees:
		return &s.ApplicationFees
	case StorageFees:
		return &s.StorageFees
	case AmenityFees:
		return &s.AmenityFees
	case UtilityReimbursements:
		return &s.UtilityReimbursements
	case CleaningFees:
		return &s.CleaningFees
	case CancellationFees:
		return &s.CancellationFees
	case Miscellaneous:
		return &s.Miscellaneous
	}
	return nil
}

// Get returns the value of f, or zero for an unknown field.
func (s Snapshot) Get(f Field) float64 {
	if p := s.ptr(f); p != nil {
		return *p
	}
	return 0
}

// Set assigns v to f and marks the field as supplied.
func (s *Snapshot) Set(f Field, v float64) {
	if p := s.ptr(f); p != nil {
		*p = v
		s.present |= 1 << uint(f)
	}
}

// Has reports whether f was supplied. A non-zero value always counts as supplied.
func (s Snapshot) Has(f Field) bool {
	if f < 0 || f >= numFields {
		return false
	}
	return s.present&(1<<uint(f)) != 0 || s.Get(f) != 0
}

// IsEmpty reports whether the snapshot carries no data at all.
func (s Snapshot) IsEmpty() bool {
	if s.PropertyID != nil || s.Period != nil || s.present != 0 {
		return false
	}
	for f := Field(0); f < numFields; f++ {
		if s.Get(f) != 0 {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.PropertyID = cloneString(s.PropertyID)
	out.Period = cloneString(s.Period)
	return out
}

// ToMap flattens the snapshot into the JSON-compatible mapping consumed by
// presentation code.
func (s Snapshot) ToMap() map[string]any {
	m := make(map[string]any, numFields+2)
	m["property_id"] = derefString(s.PropertyID)
	m["period"] = derefString(s.Period)
	for f := Field(0); f < numFields; f++ {
		m[f.String()] = s.Get(f)
	}
	return m
}

// FromMap builds a snapshot from canonical keys. Unknown keys are ignored and
// values are coerced with ToFloat.
func FromMap(values map[string]any) Snapshot {
	var s Snapshot
	for k, v := range values {
		switch k {
		case "property_id":
			s.PropertyID = stringPtr(ToString(v, ""))
			continue
		case "period":
			s.Period = stringPtr(ToString(v, ""))
			continue
		}
		if f, ok := ParseField(k); ok && v != nil {
			s.Set(f, ToFloat(v, 0))
		}
	}
	return s
}

// UnmarshalJSON restores presence for every key found in data.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	*s = FromMap(raw)
	return nil
}

// StringPtr returns nil for an empty string.
func StringPtr(v string) *string { return stringPtr(v) }

func stringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func derefString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
