package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const reportSchema = `
	CREATE TABLE IF NOT EXISTS noi_reports (
		id          UUID PRIMARY KEY,
		property_id TEXT,
		period      TEXT,
		report_json JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS noi_reports_created_at_idx ON noi_reports (created_at DESC);
`

// PGReportRepo stores reports as JSONB rows in noi_reports.
type PGReportRepo struct {
	pool *pgxpool.Pool
}

// NewPGReportRepo uses p, or the shared pool when p is nil.
func NewPGReportRepo(p *pgxpool.Pool) *PGReportRepo {
	return &PGReportRepo{pool: p}
}

func (r *PGReportRepo) db() (*pgxpool.Pool, error) {
	if r.pool != nil {
		return r.pool, nil
	}
	if p := GetPool(); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("database pool not initialized")
}

// EnsureSchema creates the reports table when missing.
func (r *PGReportRepo) EnsureSchema(ctx context.Context) error {
	p, err := r.db()
	if err != nil {
		return err
	}
	if _, err := p.Exec(ctx, reportSchema); err != nil {
		return fmt.Errorf("failed to create report schema: %w", err)
	}
	return nil
}

// Save upserts the report by ID.
func (r *PGReportRepo) Save(ctx context.Context, rep *Report) error {
	if err := validateID(rep.ID); err != nil {
		return err
	}
	p, err := r.db()
	if err != nil {
		return err
	}

	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	query := `
		INSERT INTO noi_reports (id, property_id, period, report_json, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id)
		DO UPDATE SET
			property_id = EXCLUDED.property_id,
			period = EXCLUDED.period,
			report_json = EXCLUDED.report_json;
	`
	if _, err := p.Exec(ctx, query, rep.ID, rep.PropertyID, rep.Period, data, rep.CreatedAt); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// Load returns the report with the given ID.
func (r *PGReportRepo) Load(ctx context.Context, id string) (*Report, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	p, err := r.db()
	if err != nil {
		return nil, err
	}

	var data []byte
	err = p.QueryRow(ctx, `SELECT report_json FROM noi_reports WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
		}
		return nil, fmt.Errorf("failed to load report: %w", err)
	}

	var rep Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &rep, nil
}

// List returns the newest reports first.
func (r *PGReportRepo) List(ctx context.Context, limit int) ([]ReportSummary, error) {
	p, err := r.db()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := p.Query(ctx, `
		SELECT id::text, COALESCE(property_id, ''), COALESCE(period, ''), created_at
		FROM noi_reports
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var out []ReportSummary
	for rows.Next() {
		var s ReportSummary
		if err := rows.Scan(&s.ID, &s.PropertyID, &s.Period, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
