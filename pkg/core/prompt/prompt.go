// Package prompt holds the LLM prompt library. Built-in prompts are
// registered at start-up and may be overridden by JSON files on disk.
package prompt

// Prompt IDs used by the application.
const (
	NOIExtraction = "extraction.noi_statement"
)

// PromptTemplate is a reusable prompt. UserPromptTmpl is a text/template
// executed against the caller's variables.
type PromptTemplate struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Category       string   `json:"category"`
	Description    string   `json:"description"`
	SystemPrompt   string   `json:"system_prompt"`
	UserPromptTmpl string   `json:"user_prompt_template"`
	Variables      []string `json:"variables"`
	Version        string   `json:"version"`
}

var builtins = []*PromptTemplate{
	{
		ID:          NOIExtraction,
		Name:        "NOI statement extraction",
		Category:    "extraction",
		Description: "Pulls operating statement figures out of one uploaded document",
		SystemPrompt: `You extract property operating statement figures.
Return a single JSON object and nothing else. Use these keys when the value is present:
property_id, period, document_type (current_month, prior_month, budget or prior_year),
gross_potential_rent, vacancy_loss, concessions, bad_debt,
other_income {total, parking, laundry, late_fees, pet_fees, application_fees, storage_fees,
  amenity_fees, utility_reimbursements, cleaning_fees, cancellation_fees, miscellaneous,
  additional_items [{name, amount}]},
effective_gross_income,
operating_expenses {total_operating_expenses, property_taxes, insurance, repairs_maintenance,
  utilities, management_fees, administrative, payroll, marketing, other_expenses},
net_operating_income.
Amounts are plain numbers for the statement period. Omit keys you cannot find.`,
		UserPromptTmpl: `Document name: {{.Name}}
{{- if .TypeHint}}
Document type hint: {{.TypeHint}}
{{- end}}
{{- if .Content}}

Document content:
{{.Content}}
{{- else}}

The document is attached.
{{- end}}`,
		Variables: []string{"Name", "TypeHint", "Content"},
		Version:   "1",
	},
}
