// Command noi reconciles raw extraction JSON files and prints the
// period comparisons.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"noi_analyzer/pkg/core/config"
	"noi_analyzer/pkg/core/logger"
	"noi_analyzer/pkg/core/normalize"
	"noi_analyzer/pkg/core/pipeline"
	"noi_analyzer/pkg/core/report"
	"noi_analyzer/pkg/core/store"
	"noi_analyzer/pkg/core/validate"
)

func main() {
	current := flag.String("current", "", "Current month extraction JSON (required)")
	prior := flag.String("prior", "", "Prior month extraction JSON")
	budget := flag.String("budget", "", "Budget extraction JSON")
	priorYear := flag.String("prior-year", "", "Prior year extraction JSON")
	format := flag.String("format", "markdown", "Output format: json, markdown or html")
	xlsx := flag.String("xlsx", "", "Also write an XLSX workbook to this path")
	save := flag.Bool("save", false, "Persist the report to the configured reports directory")
	configPath := flag.String("config", "config/noi.yaml", "Path to YAML config (optional)")
	flag.Parse()

	if err := run(*configPath, *current, *prior, *budget, *priorYear, *format, *xlsx, *save); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, current, prior, budget, priorYear, format, xlsx string, save bool) error {
	if current == "" {
		return fmt.Errorf("-current is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.Logging.Output = []string{"file"}
	log := logger.Init(cfg.Logging)

	docs := make(map[pipeline.DocumentType]normalize.RawExtraction)
	for docType, path := range map[pipeline.DocumentType]string{
		pipeline.CurrentMonth: current,
		pipeline.PriorMonth:   prior,
		pipeline.Budget:       budget,
		pipeline.PriorYear:    priorYear,
	} {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		raw, err := normalize.ParseRawExtraction(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		docs[docType] = raw
	}

	orch := pipeline.NewOrchestrator(nil, log)
	orch.SetValidationOptions(validate.Options{
		Tolerance:          cfg.Validation.Tolerance,
		ComponentTolerance: cfg.Validation.ComponentTolerance,
	})
	if save {
		fs, err := store.NewFileStore(cfg.Storage.ReportsDir, log)
		if err != nil {
			return err
		}
		orch.SetRepository(fs)
	}

	rep, err := orch.AnalyzeRaw(context.Background(), docs)
	if err != nil {
		return err
	}

	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
	case "markdown", "md":
		fmt.Print(report.Markdown(rep.Results, rep.AllWarnings(pipeline.WarningOrder(rep))))
	case "html":
		page, err := report.RenderHTML(report.Markdown(rep.Results, rep.AllWarnings(pipeline.WarningOrder(rep))))
		if err != nil {
			return err
		}
		fmt.Print(page)
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	if xlsx != "" {
		wb, err := report.ExportExcel(rep.Results)
		if err != nil {
			return err
		}
		defer wb.Close()
		if err := wb.SaveAs(xlsx); err != nil {
			return fmt.Errorf("failed to write %s: %w", xlsx, err)
		}
		fmt.Fprintf(os.Stderr, "Workbook written to %s\n", xlsx)
	}
	if save {
		fmt.Fprintf(os.Stderr, "Report saved as %s\n", rep.ID)
	}
	return nil
}
