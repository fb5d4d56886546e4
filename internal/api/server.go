// Package api exposes the snapshot store, comparison engine and report
// pipeline over HTTP. Uploads are staged in memory as pending imports; a
// snapshot is only persisted when the operator confirms (baseline import or
// report send).
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/formicag/ACEReportHub/internal/ai"
	"github.com/formicag/ACEReportHub/internal/compare"
	"github.com/formicag/ACEReportHub/internal/db"
	"github.com/formicag/ACEReportHub/internal/ingest"
	"github.com/formicag/ACEReportHub/internal/mailer"
	"github.com/formicag/ACEReportHub/internal/models"
	"github.com/formicag/ACEReportHub/internal/policy"
	"github.com/formicag/ACEReportHub/internal/report"
	"github.com/formicag/ACEReportHub/internal/stats"
	"github.com/formicag/ACEReportHub/internal/validation"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// maxUploadBytes bounds one spreadsheet export upload.
const maxUploadBytes = 20 << 20

type Server struct {
	Echo      *echo.Echo
	DB        *pgxpool.Pool
	Store     *db.Store
	Compare   *compare.Engine
	Validator *validation.Engine
	Generator *report.Generator
	AI        *ai.Client
	MailCfg   mailer.Config

	pol policy.Policy

	// Single-operator model: pending imports live in memory only and are
	// lost on restart, which is fine because the upload is cheap to redo.
	pendingMu sync.Mutex
	pending   map[string]*pendingImport
}

type pendingImport struct {
	ID             string
	ReceivedAt     time.Time
	SourceFilename string
	SourceFileDate *time.Time
	ReportWeekDate string
	Replace        bool
	// ReplacedSnapshotID is set on a replace-week import so preview and
	// report rendering skip the snapshot being replaced, matching what
	// CreateSnapshot will see after its in-transaction delete.
	ReplacedSnapshotID *int64
	Records        []models.OpportunityRecord
	Metrics        models.Metrics
	Comparison     models.ComparisonResult
	Findings       []validation.Finding
}

func NewServer(pool *pgxpool.Pool, pol policy.Policy, mailCfg mailer.Config) (*Server, error) {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	generator, err := report.NewGenerator(pol)
	if err != nil {
		return nil, fmt.Errorf("failed to build report generator: %w", err)
	}

	store := db.NewStore(pool, pol)

	ollamaHost := os.Getenv("OLLAMA_HOST")
	aiClient := ai.NewClient(ollamaHost, os.Getenv("OLLAMA_MODEL"))

	s := &Server{
		Echo:      e,
		DB:        pool,
		Store:     store,
		Compare:   compare.NewEngine(store, pol),
		Validator: validation.NewDefaultEngine(pol),
		Generator: generator,
		AI:        aiClient,
		MailCfg:   mailCfg,
		pol:       pol,
		pending:   map[string]*pendingImport{},
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	api := s.Echo.Group("/api/v1")
	api.GET("/snapshots", s.handleListSnapshots)
	api.GET("/snapshots/:id", s.handleGetSnapshot)
	api.GET("/snapshots/:id/records", s.handleGetSnapshotRecords)
	api.DELETE("/snapshots/:id", s.handleDeleteSnapshot)

	api.POST("/import/baseline", s.handleImportBaseline)
	api.POST("/import/weekly", s.handleImportWeekly)

	api.GET("/report/preview", s.handleReportPreview)
	api.POST("/report/send", s.handleReportSend)

	api.GET("/distribution", s.handleDistribution)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleListSnapshots(c echo.Context) error {
	summaries, err := s.Store.ListSnapshots(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("Failed to list snapshots: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	return c.JSON(http.StatusOK, summaries)
}

func (s *Server) handleGetSnapshot(c echo.Context) error {
	id, err := snapshotID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid snapshot ID"})
	}

	snap, err := s.Store.GetSnapshot(c.Request().Context(), id)
	if errors.Is(err, db.ErrSnapshotNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Snapshot not found"})
	}
	if err != nil {
		c.Logger().Errorf("Failed to get snapshot %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleGetSnapshotRecords(c echo.Context) error {
	id, err := snapshotID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid snapshot ID"})
	}

	records, err := s.Store.GetRecords(c.Request().Context(), id)
	if errors.Is(err, db.ErrSnapshotNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Snapshot not found"})
	}
	if err != nil {
		c.Logger().Errorf("Failed to get records for snapshot %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	return c.JSON(http.StatusOK, records)
}

func (s *Server) handleDeleteSnapshot(c echo.Context) error {
	id, err := snapshotID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid snapshot ID"})
	}

	err = s.Store.DeleteSnapshot(c.Request().Context(), id)
	if errors.Is(err, db.ErrSnapshotNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Snapshot not found"})
	}
	if err != nil {
		c.Logger().Errorf("Failed to delete snapshot %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	return c.JSON(http.StatusOK, map[string]any{"message": "Snapshot deleted", "snapshot_id": id})
}

// handleImportBaseline ingests the first export and persists it immediately.
// The baseline needs no comparison or report, so there is no staging step.
func (s *Server) handleImportBaseline(c echo.Context) error {
	records, filename, err := s.readUpload(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	snapshotID, err := s.Store.CreateSnapshot(c.Request().Context(), db.CreateSnapshotParams{
		Records:        records,
		CaptureTime:    time.Now(),
		SourceFilename: filename,
		SourceFileDate: sourceFileDate(c),
		ReportWeekDate: strings.TrimSpace(c.FormValue("report_week_date")),
		Notes:          "Baseline import",
		Baseline:       true,
	})
	if errors.Is(err, db.ErrDuplicateBaseline) {
		return c.JSON(http.StatusConflict, map[string]string{"error": "A baseline snapshot already exists"})
	}
	if err != nil {
		c.Logger().Errorf("Baseline import failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	snap, err := s.Store.GetSnapshot(c.Request().Context(), snapshotID)
	if err != nil {
		c.Logger().Errorf("Failed to reload baseline snapshot: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"message":     "Baseline snapshot created",
		"snapshot_id": snapshotID,
		"metrics":     snap.Metrics,
		"findings":    s.Validator.Validate(records),
	})
}

// handleImportWeekly stages a weekly export as a pending import and returns
// the preview: metrics, comparison against the baseline, and validation
// findings. Nothing is persisted until /report/send.
func (s *Server) handleImportWeekly(c echo.Context) error {
	ctx := c.Request().Context()

	hasBaseline, err := s.Store.HasAnySnapshot(ctx)
	if err != nil {
		c.Logger().Errorf("Failed to check for baseline: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	if !hasBaseline {
		return c.JSON(http.StatusConflict, map[string]string{"error": "Import a baseline before weekly uploads"})
	}

	reportWeek := strings.TrimSpace(c.FormValue("report_week_date"))
	if reportWeek == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "report_week_date is required"})
	}
	if _, err := time.Parse("2006-01-02", reportWeek); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "report_week_date must be YYYY-MM-DD"})
	}
	replace := strings.EqualFold(c.FormValue("replace"), "true")

	var replacedID *int64
	if existing, err := s.Store.FindByReportWeek(ctx, reportWeek); err != nil {
		c.Logger().Errorf("Failed to check report week: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	} else if existing != nil {
		if !replace {
			return c.JSON(http.StatusConflict, map[string]any{
				"error":       fmt.Sprintf("A snapshot already exists for week %s; re-upload with replace=true to overwrite", reportWeek),
				"snapshot_id": existing.ID,
			})
		}
		replacedID = &existing.ID
	}

	records, filename, err := s.readUpload(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	// On a replace-week import the streak prior must skip the snapshot being
	// replaced, exactly as CreateSnapshot will after its in-tx delete.
	latest, err := s.latestSnapshotExcluding(ctx, replacedID)
	if err != nil {
		c.Logger().Errorf("Failed to load latest snapshot: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	var prior *stats.PriorWeek
	if latest != nil {
		prior = &stats.PriorWeek{
			StaleOpsCount:           latest.Metrics.StaleOpsCount,
			ConsecutiveWeeksNoStale: latest.Metrics.ConsecutiveWeeksNoStale,
		}
	}
	metrics := stats.Compute(records, prior, s.pol)

	comparison, err := s.Compare.CompareWithBaseline(ctx, records)
	if err != nil {
		c.Logger().Errorf("Comparison failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	imp := &pendingImport{
		ID:                 uuid.New().String(),
		ReceivedAt:         time.Now(),
		SourceFilename:     filename,
		SourceFileDate:     sourceFileDate(c),
		ReportWeekDate:     reportWeek,
		Replace:            replace,
		ReplacedSnapshotID: replacedID,
		Records:            records,
		Metrics:            metrics,
		Comparison:         comparison,
		Findings:           s.Validator.Validate(records),
	}

	s.pendingMu.Lock()
	s.pending[imp.ID] = imp
	s.pendingMu.Unlock()

	log.Printf("[API] Staged weekly import %s (%s): %d records, %d findings", imp.ID, filename, len(records), len(imp.Findings))

	return c.JSON(http.StatusOK, map[string]any{
		"import_id":        imp.ID,
		"report_week_date": reportWeek,
		"metrics":          metrics,
		"comparison": map[string]int{
			"new_ops":        len(comparison.NewOps),
			"no_longer_open": len(comparison.NoLongerOpen),
			"status_changes": len(comparison.StatusChanges),
		},
		"findings": imp.Findings,
	})
}

// handleReportPreview renders the full report HTML for a pending import
// without sending anything or persisting a snapshot.
func (s *Server) handleReportPreview(c echo.Context) error {
	imp, errResp := s.lookupPending(c.QueryParam("import_id"))
	if errResp != nil {
		return c.JSON(errResp.code, map[string]string{"error": errResp.msg})
	}

	html, err := s.renderReport(c, imp)
	if err != nil {
		c.Logger().Errorf("Report preview failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	return c.HTML(http.StatusOK, html)
}

type sendRequest struct {
	ImportID string `json:"import_id"`
}

// handleReportSend renders the report for a pending import, emails it to the
// distribution list, and only then persists the snapshot. A send failure
// leaves the store untouched so the operator can retry.
func (s *Server) handleReportSend(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	imp, errResp := s.lookupPending(req.ImportID)
	if errResp != nil {
		return c.JSON(errResp.code, map[string]string{"error": errResp.msg})
	}

	html, err := s.renderReport(c, imp)
	if err != nil {
		c.Logger().Errorf("Report render failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	password := os.Getenv("SMTP_PASSWORD")
	if password == "" {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "SMTP_PASSWORD is not configured"})
	}
	if err := mailer.Send(s.MailCfg, html, password); err != nil {
		c.Logger().Errorf("Report send failed: %v", err)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "Failed to send report email"})
	}

	snapshotID, err := s.Store.CreateSnapshot(c.Request().Context(), db.CreateSnapshotParams{
		Records:        imp.Records,
		CaptureTime:    imp.ReceivedAt,
		SourceFilename: imp.SourceFilename,
		SourceFileDate: imp.SourceFileDate,
		ReportWeekDate: imp.ReportWeekDate,
		Recipients:     s.MailCfg.Recipients(),
		ReplaceWeek:    imp.Replace,
	})
	if errors.Is(err, db.ErrDuplicateReportWeek) {
		return c.JSON(http.StatusConflict, map[string]string{"error": "A snapshot already exists for this report week"})
	}
	if err != nil {
		// The email is out but the snapshot is not saved. Keep the pending
		// import so the operator can retry the persist by sending again.
		c.Logger().Errorf("Snapshot persist after send failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Report sent but snapshot was not saved; retry send"})
	}

	s.pendingMu.Lock()
	delete(s.pending, imp.ID)
	s.pendingMu.Unlock()

	return c.JSON(http.StatusOK, map[string]any{
		"message":     "Report sent and snapshot saved",
		"snapshot_id": snapshotID,
		"recipients":  s.MailCfg.Recipients(),
	})
}

func (s *Server) handleDistribution(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"from":      s.MailCfg.From,
		"to":        s.MailCfg.To,
		"cc":        s.MailCfg.CC,
		"subject":   s.MailCfg.Subject,
		"smtp_host": s.MailCfg.SMTPHost,
		"smtp_port": s.MailCfg.SMTPPort,
	})
}

type handlerError struct {
	code int
	msg  string
}

func (s *Server) lookupPending(importID string) (*pendingImport, *handlerError) {
	if strings.TrimSpace(importID) == "" {
		return nil, &handlerError{http.StatusBadRequest, "import_id is required"}
	}
	s.pendingMu.Lock()
	imp, ok := s.pending[importID]
	s.pendingMu.Unlock()
	if !ok {
		return nil, &handlerError{http.StatusNotFound, "No pending import with that ID; upload the weekly export again"}
	}
	return imp, nil
}

// latestSnapshotExcluding is GetLatest with an optional snapshot skipped;
// nil excludeID means plain GetLatest.
func (s *Server) latestSnapshotExcluding(ctx context.Context, excludeID *int64) (*models.Snapshot, error) {
	if excludeID != nil {
		return s.Store.GetLatestExcluding(ctx, *excludeID)
	}
	return s.Store.GetLatest(ctx)
}

func (s *Server) renderReport(c echo.Context, imp *pendingImport) (string, error) {
	ctx := c.Request().Context()

	// The "previous week" for the delta boxes skips a snapshot that this
	// import is about to replace.
	var prevMetrics *models.Metrics
	latest, err := s.latestSnapshotExcluding(ctx, imp.ReplacedSnapshotID)
	if err != nil {
		return "", err
	}
	if latest != nil {
		m := latest.Metrics
		prevMetrics = &m
	}

	intro := s.AI.GenerateIntro(ctx, imp.Metrics, prevMetrics, imp.Comparison)

	return s.Generator.Generate(report.ReportData{
		GeneratedAt:        time.Now(),
		ReportWeekDate:     imp.ReportWeekDate,
		Intro:              intro,
		Current:            imp.Metrics,
		Previous:           prevMetrics,
		Comparison:         imp.Comparison,
		Records:            imp.Records,
		StaleThresholdDays: s.MailCfg.StaleThresholdDays,
	})
}

// readUpload parses the multipart "file" field into normalized records.
func (s *Server) readUpload(c echo.Context) ([]models.OpportunityRecord, string, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("multipart field \"file\" is required")
	}
	if fileHeader.Size > maxUploadBytes {
		return nil, "", fmt.Errorf("upload exceeds %d bytes", maxUploadBytes)
	}

	f, err := fileHeader.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	rows, err := ingest.ReadCSV(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, "", fmt.Errorf("export contains no data rows")
	}

	records := ingest.NormalizeRows(rows, s.pol, time.Now())
	return records, fileHeader.Filename, nil
}

func snapshotID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

// sourceFileDate reads the optional source_file_date form field. The export
// file's own timestamp is not carried by multipart uploads, so the client
// sends it explicitly when it has one.
func sourceFileDate(c echo.Context) *time.Time {
	raw := strings.TrimSpace(c.FormValue("source_file_date"))
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}
