// Package store persists analysis reports in Postgres or on the local
// file system.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"noi_analyzer/pkg/core/comparison"
)

var (
	// ErrReportNotFound is returned when no report exists for an ID.
	ErrReportNotFound = errors.New("report not found")
	// ErrInvalidReportID is returned for IDs that are not UUIDs.
	ErrInvalidReportID = errors.New("invalid report id")
)

// Report is one completed analysis: the comparison results plus the
// warnings raised for each uploaded document.
type Report struct {
	ID         string              `json:"id"`
	PropertyID string              `json:"property_id,omitempty"`
	Period     string              `json:"period,omitempty"`
	Results    *comparison.Results `json:"results"`
	Warnings   map[string][]string `json:"warnings,omitempty"` // keyed by document type
	CreatedAt  time.Time           `json:"created_at"`
}

// NewReport wraps results with a fresh ID and timestamp. Identifiers are
// taken from the current snapshot.
func NewReport(results *comparison.Results, warnings map[string][]string) *Report {
	r := &Report{
		ID:        uuid.NewString(),
		Results:   results,
		Warnings:  warnings,
		CreatedAt: time.Now().UTC(),
	}
	if results != nil {
		if results.Current.PropertyID != nil {
			r.PropertyID = *results.Current.PropertyID
		}
		if results.Current.Period != nil {
			r.Period = *results.Current.Period
		}
	}
	return r
}

// AllWarnings flattens the per-document warnings in document order.
func (r *Report) AllWarnings(order []string) []string {
	var out []string
	for _, doc := range order {
		for _, w := range r.Warnings[doc] {
			out = append(out, doc+": "+w)
		}
	}
	return out
}

// ReportSummary is the listing view of a report.
type ReportSummary struct {
	ID         string    `json:"id"`
	PropertyID string    `json:"property_id,omitempty"`
	Period     string    `json:"period,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReportRepository stores and retrieves reports.
type ReportRepository interface {
	Save(ctx context.Context, r *Report) error
	Load(ctx context.Context, id string) (*Report, error)
	List(ctx context.Context, limit int) ([]ReportSummary, error)
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidReportID
	}
	return nil
}

func summarize(r *Report) ReportSummary {
	return ReportSummary{ID: r.ID, PropertyID: r.PropertyID, Period: r.Period, CreatedAt: r.CreatedAt}
}
