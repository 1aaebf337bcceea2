package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"noi_analyzer/pkg/core/calc"
	"noi_analyzer/pkg/core/comparison"
	"noi_analyzer/pkg/core/extract"
	"noi_analyzer/pkg/core/normalize"
	"noi_analyzer/pkg/core/store"
	"noi_analyzer/pkg/core/validate"
)

// --- Mocks ---

type MockExtractor struct {
	ExtractFunc func(ctx context.Context, doc extract.Document) (normalize.RawExtraction, error)
}

func (m *MockExtractor) Extract(ctx context.Context, doc extract.Document) (normalize.RawExtraction, error) {
	return m.ExtractFunc(ctx, doc)
}

type MockRepository struct {
	SaveFunc func(ctx context.Context, r *store.Report) error
	saved    []*store.Report
}

func (m *MockRepository) Save(ctx context.Context, r *store.Report) error {
	m.saved = append(m.saved, r)
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, r)
	}
	return nil
}

func (m *MockRepository) Load(ctx context.Context, id string) (*store.Report, error) {
	for _, r := range m.saved {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, store.ErrReportNotFound
}

func (m *MockRepository) List(ctx context.Context, limit int) ([]store.ReportSummary, error) {
	return nil, nil
}

// --- Fixtures ---

func currentRaw() normalize.RawExtraction {
	return normalize.RawExtraction{
		"property_id":          "PROP-7",
		"gross_potential_rent": 100000,
		"vacancy_loss":         5000,
		"concessions":          2000,
		"bad_debt":             1000,
		"other_income":         map[string]any{"total": 5000, "parking": 3000, "laundry": 2000},
		"operating_expenses":   51000,
		"net_operating_income": 40000,
	}
}

func budgetRaw() normalize.RawExtraction {
	return normalize.RawExtraction{
		"gpr": 99000, "vacancy_loss": 5200, "other_income": 5000,
		"opex": 54500, "egi": 98800, "noi": 44300,
	}
}

func newTestOrchestrator(ex extract.Extractor) *Orchestrator {
	return NewOrchestrator(ex, arbor.NewLogger())
}

// --- Tests ---

func TestProcessRaw(t *testing.T) {
	o := newTestOrchestrator(nil)

	r, err := o.ProcessRaw("actuals_2024-03.json", CurrentMonth, currentRaw())
	require.NoError(t, err)

	assert.Equal(t, 97000.0, r.Snapshot.EGI)
	assert.Equal(t, 46000.0, r.Snapshot.NOI)
	assert.Equal(t, "2024-03", *r.Snapshot.Period)
	assert.Equal(t, "PROP-7", *r.Snapshot.PropertyID)
	assert.True(t, r.Corrected)
	assert.NotEmpty(t, r.Warnings)
}

func TestAnalyzeRaw(t *testing.T) {
	repo := &MockRepository{}
	o := newTestOrchestrator(nil)
	o.SetRepository(repo)

	report, err := o.AnalyzeRaw(context.Background(), map[DocumentType]normalize.RawExtraction{
		CurrentMonth: currentRaw(),
		Budget:       budgetRaw(),
	})
	require.NoError(t, err)

	noiVariance, ok := report.Results.Metric(calc.NOI, comparison.Budget, comparison.KindChange)
	require.True(t, ok)
	assert.InDelta(t, 1700.0, noiVariance, 1e-9)

	pct, _ := report.Results.Metric(calc.NOI, comparison.Budget, comparison.KindPercent)
	assert.InDelta(t, 3.8375, pct, 1e-3)

	assert.Empty(t, report.Results.MonthVsPrior)
	assert.Nil(t, report.Results.Prior)
	assert.Equal(t, "PROP-7", report.PropertyID)
	assert.NotEmpty(t, report.Warnings[string(CurrentMonth)])
	require.Len(t, repo.saved, 1)
	assert.Equal(t, report.ID, repo.saved[0].ID)
}

func TestAnalyzeRaw_MissingCurrent(t *testing.T) {
	_, err := newTestOrchestrator(nil).AnalyzeRaw(context.Background(), map[DocumentType]normalize.RawExtraction{
		Budget: budgetRaw(),
	})
	assert.ErrorIs(t, err, comparison.ErrMissingCurrent)
}

func TestAnalyzeRaw_EmptyDocuments(t *testing.T) {
	t.Run("Empty comparison is skipped", func(t *testing.T) {
		report, err := newTestOrchestrator(nil).AnalyzeRaw(context.Background(), map[DocumentType]normalize.RawExtraction{
			CurrentMonth: {"gpr": 1000},
			Budget:       {},
		})
		require.NoError(t, err)

		assert.Nil(t, report.Results.Budget)
		assert.NotNil(t, report.Results.ActualVsBudget)
		assert.Empty(t, report.Results.ActualVsBudget)
		assert.Contains(t, report.Warnings[string(Budget)], "budget document budget has no financial data - treated as not provided")
	})

	t.Run("Empty current is missing", func(t *testing.T) {
		_, err := newTestOrchestrator(nil).AnalyzeRaw(context.Background(), map[DocumentType]normalize.RawExtraction{
			CurrentMonth: {"notes": "scan unreadable"},
			Budget:       budgetRaw(),
		})
		assert.ErrorIs(t, err, comparison.ErrMissingCurrent)
	})

	t.Run("ProcessRaw flags the document", func(t *testing.T) {
		r, err := newTestOrchestrator(nil).ProcessRaw("plan_2024-03.json", Budget, normalize.RawExtraction{})
		require.NoError(t, err)
		assert.True(t, r.Empty)
		assert.True(t, r.Snapshot.IsEmpty())
		assert.Empty(t, r.Warnings)
	})
}

func TestAnalyzeRaw_SaveFailureIsNotFatal(t *testing.T) {
	o := newTestOrchestrator(nil)
	o.SetRepository(&MockRepository{SaveFunc: func(ctx context.Context, r *store.Report) error {
		return errors.New("database unavailable")
	}})

	report, err := o.AnalyzeRaw(context.Background(), map[DocumentType]normalize.RawExtraction{CurrentMonth: currentRaw()})
	require.NoError(t, err)
	assert.NotNil(t, report.Results)
}

func TestAnalyzeRaw_ValidationOptions(t *testing.T) {
	o := newTestOrchestrator(nil)
	o.SetValidationOptions(validate.Options{Tolerance: 10000, ComponentTolerance: 0.1})

	raw := currentRaw()
	raw["effective_gross_income"] = 97000
	report, err := o.AnalyzeRaw(context.Background(), map[DocumentType]normalize.RawExtraction{CurrentMonth: raw})
	require.NoError(t, err)
	assert.Equal(t, 40000.0, report.Results.Current.NOI, "gap of 6000 is inside the widened tolerance")
}

func TestAnalyzeDocuments(t *testing.T) {
	var calls int32
	ex := &MockExtractor{ExtractFunc: func(ctx context.Context, doc extract.Document) (normalize.RawExtraction, error) {
		atomic.AddInt32(&calls, 1)
		switch doc.Name {
		case "march_actuals.pdf":
			return currentRaw(), nil
		case "2024_budget.pdf":
			return budgetRaw(), nil
		case "statement.pdf":
			raw := budgetRaw()
			raw["document_type"] = "Prior Year Actuals"
			return raw, nil
		case "second_actuals.pdf":
			return normalize.RawExtraction{"gpr": 1}, nil
		}
		return nil, errors.New("unreadable scan")
	}}

	repo := &MockRepository{}
	o := newTestOrchestrator(ex)
	o.SetRepository(repo)
	o.SetConcurrency(2)

	report, err := o.AnalyzeDocuments(context.Background(), []extract.Document{
		{Name: "march_actuals.pdf"},
		{Name: "2024_budget.pdf"},
		{Name: "statement.pdf"},
		{Name: "second_actuals.pdf"},
		{Name: "scan.pdf"},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))

	assert.Equal(t, 100000.0, report.Results.Current.GPR, "first current document wins")
	require.NotNil(t, report.Results.Budget)
	require.NotNil(t, report.Results.PriorYear)
	assert.Nil(t, report.Results.Prior)
	assert.NotEmpty(t, report.Results.YearVsYear)

	assert.Contains(t, report.Warnings["scan.pdf"][0], "unreadable scan")
	assert.Contains(t, report.Warnings[string(CurrentMonth)], "duplicate current_month document second_actuals.pdf ignored")

	order := WarningOrder(report)
	assert.Equal(t, string(CurrentMonth), order[0])
	assert.Equal(t, "scan.pdf", order[len(order)-1])
	assert.Len(t, repo.saved, 1)
}

func TestAnalyzeDocuments_TypeHintOverridesName(t *testing.T) {
	ex := &MockExtractor{ExtractFunc: func(ctx context.Context, doc extract.Document) (normalize.RawExtraction, error) {
		return currentRaw(), nil
	}}

	report, err := newTestOrchestrator(ex).AnalyzeDocuments(context.Background(), []extract.Document{
		{Name: "a.pdf", TypeHint: "current_month"},
		{Name: "b_actuals.pdf", TypeHint: "prior_month"},
	})
	require.NoError(t, err)
	require.NotNil(t, report.Results.Prior)
	assert.InDelta(t, 0.0, report.Results.MonthVsPrior["noi_change"], 1e-9)
}

func TestAnalyzeDocuments_AllFailed(t *testing.T) {
	ex := &MockExtractor{ExtractFunc: func(ctx context.Context, doc extract.Document) (normalize.RawExtraction, error) {
		return nil, extract.ErrExtractionFailed
	}}

	_, err := newTestOrchestrator(ex).AnalyzeDocuments(context.Background(), []extract.Document{{Name: "x.pdf"}})
	assert.ErrorIs(t, err, comparison.ErrMissingCurrent)
}

func TestAnalyzeDocuments_NoExtractor(t *testing.T) {
	_, err := newTestOrchestrator(nil).AnalyzeDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoExtractor)
}

func TestAnalyzeDocuments_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ex := &MockExtractor{ExtractFunc: func(ctx context.Context, doc extract.Document) (normalize.RawExtraction, error) {
		return nil, ctx.Err()
	}}

	_, err := newTestOrchestrator(ex).AnalyzeDocuments(ctx, []extract.Document{{Name: "actuals.pdf"}})
	assert.ErrorIs(t, err, context.Canceled)
}
