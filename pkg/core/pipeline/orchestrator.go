// Package pipeline runs uploaded statements through extraction,
// normalization, validation and comparison, and persists the report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"noi_analyzer/pkg/core/calc"
	"noi_analyzer/pkg/core/comparison"
	"noi_analyzer/pkg/core/extract"
	"noi_analyzer/pkg/core/logger"
	"noi_analyzer/pkg/core/normalize"
	"noi_analyzer/pkg/core/store"
	"noi_analyzer/pkg/core/validate"
)

// DefaultConcurrency bounds parallel extractions, one per document type.
const DefaultConcurrency = 4

// ErrNoExtractor is returned when documents are submitted without an
// extraction backend.
var ErrNoExtractor = errors.New("no extractor configured")

// DocumentResult is the outcome of processing one document.
type DocumentResult struct {
	Name       string                  `json:"name"`
	Type       DocumentType            `json:"type"`
	Snapshot   calc.Snapshot           `json:"snapshot"`
	Warnings   []string                `json:"warnings,omitempty"`
	Corrected  bool                    `json:"corrected"`
	Empty      bool                    `json:"empty,omitempty"` // no financial data extracted
	Raw        normalize.RawExtraction `json:"-"`
	Err        error                   `json:"-"`
	DurationMs int64                   `json:"duration_ms"`
}

// Orchestrator manages the end-to-end flow:
// Extract -> Normalize -> Validate -> Compare -> Store.
type Orchestrator struct {
	extractor   extract.Extractor
	normalizer  *normalize.Normalizer
	validator   *validate.Validator
	repo        store.ReportRepository
	concurrency int
	logger      arbor.ILogger
}

// NewOrchestrator creates an orchestrator. extractor may be nil when only
// raw extractions are analyzed; no repository is attached by default.
func NewOrchestrator(extractor extract.Extractor, l arbor.ILogger) *Orchestrator {
	l = logger.Or(l)
	return &Orchestrator{
		extractor:   extractor,
		normalizer:  normalize.NewNormalizer(l),
		validator:   validate.NewValidator(validate.DefaultOptions(), l),
		concurrency: DefaultConcurrency,
		logger:      l,
	}
}

// SetRepository attaches report persistence.
func (o *Orchestrator) SetRepository(repo store.ReportRepository) {
	o.repo = repo
}

// SetValidationOptions replaces the validation tolerances.
func (o *Orchestrator) SetValidationOptions(opts validate.Options) {
	o.validator = validate.NewValidator(opts, o.logger)
}

// SetConcurrency bounds parallel extractions; n < 1 is ignored.
func (o *Orchestrator) SetConcurrency(n int) {
	if n > 0 {
		o.concurrency = n
	}
}

// =============================================================================
// SINGLE DOCUMENT
// =============================================================================

// ProcessRaw normalizes and validates one raw extraction. A period found in
// the file name fills an empty snapshot period. An extraction that yields no
// data is returned unvalidated with Empty set.
func (o *Orchestrator) ProcessRaw(name string, docType DocumentType, raw normalize.RawExtraction) (*DocumentResult, error) {
	snap, err := o.normalizer.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize %s: %w", name, err)
	}
	if snap.IsEmpty() {
		o.logger.Warn().Str("document", name).Str("type", string(docType)).Msg("[PIPELINE] No financial data extracted")
		return &DocumentResult{Name: name, Type: docType, Empty: true, Raw: raw}, nil
	}
	if snap.Period == nil {
		if period, ok := DetectPeriod(name); ok {
			snap.Period = calc.StringPtr(period)
		}
	}

	res := o.validator.Run(snap)
	for _, w := range res.Warnings {
		o.logger.Warn().Str("document", name).Str("type", string(docType)).Msg("[PIPELINE] " + w)
	}

	return &DocumentResult{
		Name:      name,
		Type:      docType,
		Snapshot:  res.Snapshot,
		Warnings:  res.Warnings,
		Corrected: res.Corrected(),
		Raw:       raw,
	}, nil
}

// =============================================================================
// ANALYSIS
// =============================================================================

// AnalyzeRaw processes already-extracted documents keyed by type and builds
// the comparison report. A missing current month is fatal.
func (o *Orchestrator) AnalyzeRaw(ctx context.Context, docs map[DocumentType]normalize.RawExtraction) (*store.Report, error) {
	var results []*DocumentResult
	for _, t := range DocumentTypes {
		raw, ok := docs[t]
		if !ok {
			continue
		}
		r, err := o.ProcessRaw(string(t), t, raw)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return o.assemble(ctx, results)
}

// AnalyzeDocuments extracts every document concurrently, classifies it and
// builds the comparison report. Failed or empty documents become warnings;
// when two documents resolve to the same type the first one wins.
func (o *Orchestrator) AnalyzeDocuments(ctx context.Context, docs []extract.Document) (*store.Report, error) {
	if o.extractor == nil {
		return nil, ErrNoExtractor
	}
	start := time.Now()
	o.logger.Info().Int("documents", len(docs)).Msg("[PIPELINE] Starting analysis")

	results := make([]*DocumentResult, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			results[i] = o.processDocument(gctx, doc)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report, err := o.assemble(ctx, results)
	if err != nil {
		return nil, err
	}
	o.logger.Info().
		Str("report_id", report.ID).
		Dur("duration", time.Since(start)).
		Msg("[PIPELINE] Analysis complete")
	return report, nil
}

func (o *Orchestrator) processDocument(ctx context.Context, doc extract.Document) *DocumentResult {
	start := time.Now()
	raw, err := o.extractor.Extract(ctx, doc)
	if err != nil {
		o.logger.Error().Err(err).Str("document", doc.Name).Msg("[PIPELINE] Extraction failed")
		return &DocumentResult{Name: doc.Name, Err: err}
	}

	docType := DetermineDocumentType(doc.Name, raw)
	if hint, ok := StandardizePeriodType(doc.TypeHint); ok {
		docType = hint
	}

	r, err := o.ProcessRaw(doc.Name, docType, raw)
	if err != nil {
		o.logger.Error().Err(err).Str("document", doc.Name).Msg("[PIPELINE] Normalization failed")
		return &DocumentResult{Name: doc.Name, Type: docType, Err: err}
	}
	r.DurationMs = time.Since(start).Milliseconds()
	o.logger.Info().
		Str("document", doc.Name).
		Str("type", string(docType)).
		Int("warnings", len(r.Warnings)).
		Int64("duration_ms", r.DurationMs).
		Msg("[PIPELINE] Document processed")
	return r
}

// assemble picks one snapshot per type, compares and optionally saves.
func (o *Orchestrator) assemble(ctx context.Context, results []*DocumentResult) (*store.Report, error) {
	byType := make(map[DocumentType]*DocumentResult)
	warnings := make(map[string][]string)

	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Err != nil {
			warnings[r.Name] = append(warnings[r.Name], "processing failed: "+r.Err.Error())
			continue
		}
		if r.Empty {
			msg := fmt.Sprintf("%s document %s has no financial data - treated as not provided", r.Type, r.Name)
			warnings[string(r.Type)] = append(warnings[string(r.Type)], msg)
			continue
		}
		if _, dup := byType[r.Type]; dup {
			msg := fmt.Sprintf("duplicate %s document %s ignored", r.Type, r.Name)
			warnings[string(r.Type)] = append(warnings[string(r.Type)], msg)
			o.logger.Warn().Str("document", r.Name).Msg("[PIPELINE] " + msg)
			continue
		}
		byType[r.Type] = r
		if len(r.Warnings) > 0 {
			warnings[string(r.Type)] = append(warnings[string(r.Type)], r.Warnings...)
		}
	}

	current, ok := byType[CurrentMonth]
	if !ok {
		return nil, comparison.ErrMissingCurrent
	}
	compared, err := comparison.BuildComparisonResults(
		&current.Snapshot,
		snapshotOf(byType[PriorMonth]),
		snapshotOf(byType[Budget]),
		snapshotOf(byType[PriorYear]),
	)
	if err != nil {
		return nil, err
	}

	if len(warnings) == 0 {
		warnings = nil
	}
	report := store.NewReport(compared, warnings)

	if o.repo != nil {
		if err := o.repo.Save(ctx, report); err != nil {
			o.logger.Warn().Err(err).Str("report_id", report.ID).Msg("[PIPELINE] Failed to save report")
		}
	}
	return report, nil
}

func snapshotOf(r *DocumentResult) *calc.Snapshot {
	if r == nil {
		return nil
	}
	return &r.Snapshot
}

// WarningOrder lists warning keys with document types first, then any
// failed document names.
func WarningOrder(r *store.Report) []string {
	var order []string
	seen := make(map[string]bool)
	for _, t := range DocumentTypes {
		if _, ok := r.Warnings[string(t)]; ok {
			order = append(order, string(t))
			seen[string(t)] = true
		}
	}
	var rest []string
	for k := range r.Warnings {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}
