// Package analysis exposes the NOI analysis pipeline over HTTP.
package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ternarybob/arbor"

	"noi_analyzer/pkg/core/comparison"
	"noi_analyzer/pkg/core/extract"
	"noi_analyzer/pkg/core/logger"
	"noi_analyzer/pkg/core/normalize"
	"noi_analyzer/pkg/core/pipeline"
	"noi_analyzer/pkg/core/report"
	"noi_analyzer/pkg/core/store"
)

const (
	defaultListLimit = 20
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var errStorageDisabled = errors.New("report storage is not configured")

// Handler serves analysis, extraction and report endpoints.
type Handler struct {
	orchestrator *pipeline.Orchestrator
	repo         store.ReportRepository
	health       func() error
	logger       arbor.ILogger
}

// NewHandler wires the handler. repo may be nil, which disables the report
// endpoints.
func NewHandler(orch *pipeline.Orchestrator, repo store.ReportRepository, l arbor.ILogger) *Handler {
	return &Handler{orchestrator: orch, repo: repo, logger: logger.Or(l)}
}

// SetHealthCheck adds a dependency check to /healthz.
func (h *Handler) SetHealthCheck(check func() error) {
	h.health = check
}

// RegisterRoutes mounts every endpoint on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/healthz", h.Health)

	api := r.Group("/api")
	{
		api.POST("/analyze", h.Analyze)
		api.POST("/extract", h.Extract)

		reports := api.Group("/reports")
		{
			reports.GET("", h.ListReports)
			reports.GET("/:id", h.GetReport)
			reports.GET("/:id/export.xlsx", h.ExportReport)
			reports.GET("/:id/summary.html", h.ReportSummary)
		}
	}
}

// Health handles GET /healthz.
func (h *Handler) Health(c *gin.Context) {
	if h.health != nil {
		if err := h.health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "noi-analyzer"})
}

// =============================================================================
// ANALYSIS
// =============================================================================

// Analyze handles POST /api/analyze. The body maps document types
// (current_month, prior_month, budget, prior_year) to raw extractions. Two
// keys naming the same type are rejected.
func (h *Handler) Analyze(c *gin.Context) {
	var body map[string]json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		h.sendError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	docs := make(map[pipeline.DocumentType]normalize.RawExtraction, len(body))
	keys := make(map[pipeline.DocumentType]string, len(body))
	for key, payload := range body {
		docType, ok := pipeline.StandardizePeriodType(key)
		if !ok {
			h.sendError(c, http.StatusBadRequest, fmt.Sprintf("unknown document type %q", key), nil)
			return
		}
		if prev, dup := keys[docType]; dup {
			h.sendError(c, http.StatusBadRequest,
				fmt.Sprintf("document type %s given twice (%q and %q)", docType, prev, key), nil)
			return
		}
		keys[docType] = key
		raw, err := normalize.ParseRawExtraction(payload)
		if err != nil {
			h.sendError(c, http.StatusBadRequest, "invalid extraction for "+key, err)
			return
		}
		docs[docType] = raw
	}

	rep, err := h.orchestrator.AnalyzeRaw(c.Request.Context(), docs)
	if err != nil {
		h.sendError(c, statusFor(err), "analysis failed", err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// Extract handles POST /api/extract. Files posted under a document type
// field carry that type; files under "files" are classified automatically.
func (h *Handler) Extract(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.sendError(c, http.StatusBadRequest, "failed to parse multipart form", err)
		return
	}

	var docs []extract.Document
	for _, t := range pipeline.DocumentTypes {
		for _, fh := range form.File[string(t)] {
			doc, err := readUpload(fh, string(t))
			if err != nil {
				h.sendError(c, http.StatusBadRequest, "failed to read "+fh.Filename, err)
				return
			}
			docs = append(docs, doc)
		}
	}
	for _, fh := range form.File["files"] {
		doc, err := readUpload(fh, "")
		if err != nil {
			h.sendError(c, http.StatusBadRequest, "failed to read "+fh.Filename, err)
			return
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		h.sendError(c, http.StatusBadRequest, "no files provided", nil)
		return
	}

	h.logger.Info().Int("files", len(docs)).Msg("[API] Extraction request")
	rep, err := h.orchestrator.AnalyzeDocuments(c.Request.Context(), docs)
	if err != nil {
		h.sendError(c, statusFor(err), "analysis failed", err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func readUpload(fh *multipart.FileHeader, typeHint string) (extract.Document, error) {
	f, err := fh.Open()
	if err != nil {
		return extract.Document{}, err
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return extract.Document{}, err
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(content)
	}
	return extract.Document{
		Name:        fh.Filename,
		ContentType: contentType,
		Content:     content,
		TypeHint:    typeHint,
	}, nil
}

// =============================================================================
// REPORTS
// =============================================================================

// ListReports handles GET /api/reports?limit=N.
func (h *Handler) ListReports(c *gin.Context) {
	if h.repo == nil {
		h.sendError(c, http.StatusServiceUnavailable, "reports unavailable", errStorageDisabled)
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit < 1 {
		limit = defaultListLimit
	}
	summaries, err := h.repo.List(c.Request.Context(), limit)
	if err != nil {
		h.sendError(c, statusFor(err), "failed to list reports", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": summaries})
}

// GetReport handles GET /api/reports/:id.
func (h *Handler) GetReport(c *gin.Context) {
	rep, ok := h.loadReport(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rep)
}

// ExportReport handles GET /api/reports/:id/export.xlsx.
func (h *Handler) ExportReport(c *gin.Context) {
	rep, ok := h.loadReport(c)
	if !ok {
		return
	}
	wb, err := report.ExportExcel(rep.Results)
	if err != nil {
		h.sendError(c, http.StatusInternalServerError, "failed to build workbook", err)
		return
	}
	defer wb.Close()

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="noi_report_%s.xlsx"`, rep.ID))
	c.Header("Content-Type", xlsxContentType)
	c.Status(http.StatusOK)
	if err := wb.Write(c.Writer); err != nil {
		h.logger.Error().Err(err).Str("report_id", rep.ID).Msg("[API] Failed to stream workbook")
	}
}

// ReportSummary handles GET /api/reports/:id/summary.html.
func (h *Handler) ReportSummary(c *gin.Context) {
	rep, ok := h.loadReport(c)
	if !ok {
		return
	}
	page, err := report.RenderHTML(report.Markdown(rep.Results, rep.AllWarnings(pipeline.WarningOrder(rep))))
	if err != nil {
		h.sendError(c, http.StatusInternalServerError, "failed to render summary", err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

func (h *Handler) loadReport(c *gin.Context) (*store.Report, bool) {
	if h.repo == nil {
		h.sendError(c, http.StatusServiceUnavailable, "reports unavailable", errStorageDisabled)
		return nil, false
	}
	rep, err := h.repo.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.sendError(c, statusFor(err), "failed to load report", err)
		return nil, false
	}
	return rep, true
}

// =============================================================================
// ERRORS
// =============================================================================

func statusFor(err error) int {
	switch {
	case errors.Is(err, normalize.ErrMalformedExtraction):
		return http.StatusBadRequest
	case errors.Is(err, comparison.ErrMissingCurrent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrReportNotFound), errors.Is(err, store.ErrInvalidReportID):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrNoExtractor):
		return http.StatusServiceUnavailable
	case errors.Is(err, extract.ErrExtractionFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		return "missing_current_period"
	case http.StatusServiceUnavailable:
		return "unavailable"
	case http.StatusBadGateway:
		return "extraction_failed"
	}
	return "internal_error"
}

// sendError writes {"error", "code"} and logs the cause.
func (h *Handler) sendError(c *gin.Context, status int, message string, err error) {
	msg := message
	if err != nil {
		msg = message + ": " + err.Error()
		h.logger.Warn().Err(err).Int("status", status).Str("path", c.FullPath()).Msg("[API] " + message)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": errorCode(status)})
}
