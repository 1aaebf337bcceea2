package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"noi_analyzer/pkg/core/logger"
)

// FileStore keeps one JSON file per report. It is the local fallback when no
// database is configured.
type FileStore struct {
	dir    string
	logger arbor.ILogger
}

// NewFileStore creates dir when needed. An empty dir selects .cache/reports
// and a nil logger selects the global one.
func NewFileStore(dir string, l arbor.ILogger) (*FileStore, error) {
	if dir == "" {
		dir = filepath.Join(".cache", "reports")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	return &FileStore{dir: dir, logger: logger.Or(l)}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save writes the report atomically.
func (s *FileStore) Save(_ context.Context, rep *Report) error {
	if err := validateID(rep.ID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, rep.ID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save report: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(rep.ID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// Load reads the report with the given ID.
func (s *FileStore) Load(_ context.Context, id string) (*Report, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
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

// List scans the directory and returns the newest reports first.
func (s *FileStore) List(ctx context.Context, limit int) ([]ReportSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	var out []ReportSummary
	for _, e := range entries {
		id, ok := strings.CutSuffix(e.Name(), ".json")
		if e.IsDir() || !ok || validateID(id) != nil {
			continue
		}
		rep, err := s.Load(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Str("file", e.Name()).Msg("[STORE] Skipping unreadable report")
			continue
		}
		out = append(out, summarize(rep))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
