package normalize

import (
	"sort"

	"noi_analyzer/pkg/core/calc"
)

// primaryAliases lists, per canonical field, the raw keys accepted for it in
// priority order. The canonical key itself always comes first.
var primaryAliases = map[calc.Field][]string{
	calc.GPR:         {"gpr", "gross_potential_rent", "gross_rental_income", "potential_rent", "scheduled_rent"},
	calc.VacancyLoss: {"vacancy_loss", "vacancy", "vacancy_and_credit_loss"},
	calc.Concessions: {"concessions", "rent_concessions"},
	calc.BadDebt:     {"bad_debt", "bad_debt_expense", "credit_loss"},
	calc.OtherIncome: {"other_income", "total_other_income"},
	calc.EGI:         {"egi", "effective_gross_income", "total_revenue", "adjusted_income", "effective_income"},
	calc.OpEx:        {"opex", "total_operating_expenses", "total_expenses", "expenses_total"},
	calc.NOI:         {"noi", "net_operating_income", "net_income"},

	calc.PropertyTaxes:      {"property_taxes", "real_estate_taxes"},
	calc.Insurance:          {"insurance", "property_insurance"},
	calc.RepairsMaintenance: {"repairs_maintenance", "repairs_and_maintenance", "repairs", "maintenance"},
	calc.Utilities:          {"utilities"},
	calc.ManagementFees:     {"management_fees", "management", "management_fee"},
	calc.Administrative:     {"administrative", "general_administrative", "admin"},
	calc.Payroll:            {"payroll", "salaries"},
	calc.Marketing:          {"marketing", "advertising"},
	calc.OtherExpenses:      {"other_expenses"},

	calc.Parking:               {"parking"},
	calc.Laundry:               {"laundry"},
	calc.LateFees:              {"late_fees", "late fees"},
	calc.PetFees:               {"pet_fees", "pet fees", "pet rent", "pet_rent"},
	calc.ApplicationFees:       {"application_fees", "application fees"},
	calc.StorageFees:           {"storage_fees", "storage"},
	calc.AmenityFees:           {"amenity_fees", "amenities"},
	calc.UtilityReimbursements: {"utility_reimbursements", "utility_reimbursement", "rubs"},
	calc.CleaningFees:          {"cleaning_fees"},
	calc.CancellationFees:      {"cancellation_fees"},
	calc.Miscellaneous:         {"miscellaneous", "other"},
}

// FieldSynonyms maps single-word aliases onto canonical fields. It is consulted
// only when no primary alias matched.
var FieldSynonyms = map[string]calc.Field{
	"taxes":                   calc.PropertyTaxes,
	"property_tax":            calc.PropertyTaxes,
	"repairs_and_maintenance": calc.RepairsMaintenance,
	"property_management":     calc.ManagementFees,
	"parking_income":          calc.Parking,
	"laundry_income":          calc.Laundry,
	"misc":                    calc.Miscellaneous,
}

// synonymKeys is FieldSynonyms' key set in sorted order so that lookups are
// deterministic when several synonyms of one field are present.
var synonymKeys = func() []string {
	keys := make([]string, 0, len(FieldSynonyms))
	for k := range FieldSynonyms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}()

// Aliases returns the primary aliases of f in priority order.
func Aliases(f calc.Field) []string {
	return append([]string(nil), primaryAliases[f]...)
}

// lookup finds the first key in m that names f. Primary aliases win over
// synonyms. Null values and nested objects are treated as absent.
func lookup(m map[string]any, f calc.Field) (string, any, bool) {
	for _, key := range primaryAliases[f] {
		if v, ok := scalar(m, key); ok {
			return key, v, true
		}
	}
	for _, key := range synonymKeys {
		if FieldSynonyms[key] != f {
			continue
		}
		if v, ok := scalar(m, key); ok {
			return key, v, true
		}
	}
	return "", nil, false
}

func scalar(m map[string]any, key string) (any, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, false
	}
	if _, nested := v.(map[string]any); nested {
		return nil, false
	}
	return v, true
}

// canonicalName resolves a free-text item name such as "Pet Rent" to a field.
func canonicalName(name string) (calc.Field, bool) {
	key := normalizeKey(name)
	if f, ok := calc.ParseField(key); ok {
		return f, true
	}
	if f, ok := FieldSynonyms[key]; ok {
		return f, true
	}
	for _, f := range calc.AllFields() {
		for _, a := range primaryAliases[f] {
			if normalizeKey(a) == key {
				return f, true
			}
		}
	}
	return 0, false
}
