// internal/collector/handler.go
package collector

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/signalnine/threatscope/internal/analysis"
	"github.com/signalnine/threatscope/internal/notify"
	"github.com/signalnine/threatscope/internal/protocol"
)

// AI add-on status values stored with each analysis.
const (
	AIStatusSkipped     = "skipped"
	AIStatusOK          = "ok"
	AIStatusUnavailable = "llm_unavailable"
	AIStatusError       = "error"
)

// SourceUpload marks runs submitted through the upload API.
const SourceUpload = "upload"

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 500
)

// Pipeline runs an analysis, the optional LLM add-on, persistence and alert
// publishing. Shared by the agent ingest and upload handlers.
type Pipeline struct {
	db        *DB
	analyzer  *analysis.Analyzer
	llm       *LLMClient
	publisher notify.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewPipeline wires the collaborators. llm and publisher may be nil.
func NewPipeline(db *DB, analyzer *analysis.Analyzer, llm *LLMClient, publisher notify.Publisher, logger *zap.Logger) *Pipeline {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		db:        db,
		analyzer:  analyzer,
		llm:       llm,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// runInput describes one batch of log text and where it came from.
type runInput struct {
	lines     []string
	raw       []byte
	timestamp time.Time
	source    string
	hostname  string
	filename  string
	withAI    bool
}

// run analyzes, optionally asks the LLM, stores and publishes.
func (p *Pipeline) run(ctx context.Context, in runInput) (*protocol.StoredAnalysis, *protocol.AIReport, error) {
	outcome := p.analyzer.AnalyzeLines(ctx, in.lines)
	result := outcome.Result

	stored := &protocol.StoredAnalysis{
		Timestamp:          in.timestamp,
		Source:             in.source,
		Hostname:           in.hostname,
		Filename:           in.filename,
		ContentHash:        Fingerprint(in.raw),
		SizeBytes:          int64(len(in.raw)),
		TotalLines:         result.ParsingInfo.TotalLines,
		ParsedLines:        result.ParsingInfo.ParsedLines,
		SkippedLines:       result.ParsingInfo.SkippedLines,
		RiskLevel:          result.RiskAssessment.Level,
		TotalThreats:       result.RiskAssessment.TotalThreats,
		CVSSAggregateScore: result.RiskAssessment.CVSSAggregateScore,
		Result:             &result,
		AIStatus:           AIStatusSkipped,
	}
	if stored.Timestamp.IsZero() {
		stored.Timestamp = p.now()
	}

	var report *protocol.AIReport
	if in.withAI && p.llm.Enabled() {
		var err error
		var latency int64
		report, latency, err = p.llm.Analyze(ctx, BuildUserPrompt(&result, outcome.Entries))
		stored.APILatencyMs = latency
		switch {
		case err == nil:
			stored.AIStatus = AIStatusOK
			stored.AISummary = report.Summary
		case IsUnavailable(err):
			// keep the deterministic result
			p.logger.Warn("LLM unavailable, data preserved",
				zap.String("source", in.source), zap.Error(err))
			stored.AIStatus = AIStatusUnavailable
		default:
			p.logger.Error("LLM error", zap.String("source", in.source), zap.Error(err))
			stored.AIStatus = AIStatusError
		}
	}

	if err := p.db.InsertAnalysis(ctx, stored); err != nil {
		return nil, nil, err
	}

	if err := p.publisher.Publish(ctx, in.source, result.Alerts); err != nil {
		p.logger.Warn("alert publish failed",
			zap.String("source", in.source),
			zap.Int("alerts", len(result.Alerts)),
			zap.Error(err),
		)
	}

	p.logger.Info("analysis stored",
		zap.Int64("id", stored.ID),
		zap.String("source", in.source),
		zap.String("risk_level", stored.RiskLevel),
		zap.Int("total_threats", stored.TotalThreats),
		zap.Int("alerts", len(result.Alerts)),
		zap.String("ai_status", stored.AIStatus),
	)
	return stored, report, nil
}

// IngestHandler handles POST /ingest requests from agents
type IngestHandler struct {
	pipeline        *Pipeline
	apiKey          string
	maxPayloadBytes int64
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(pipeline *Pipeline, apiKey string, maxPayloadBytes int64) *IngestHandler {
	return &IngestHandler{
		pipeline:        pipeline,
		apiKey:          apiKey,
		maxPayloadBytes: maxPayloadBytes,
	}
}

func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Check auth
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if h.apiKey == "" || !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.apiKey)) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// Check content length
	if r.ContentLength > h.maxPayloadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "request entity too large")
		return
	}

	// Read body with limit
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxPayloadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if int64(len(body)) > h.maxPayloadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "request entity too large")
		return
	}

	var batch protocol.LogBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if len(batch.Lines) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"status": "skipped", "reason": "no lines"})
		return
	}

	source := batch.Source
	if source == "" {
		source = batch.Hostname
	}

	stored, _, err := h.pipeline.run(r.Context(), runInput{
		lines:     batch.Lines,
		raw:       []byte(strings.Join(batch.Lines, "\n")),
		timestamp: batch.Timestamp,
		source:    source,
		hostname:  batch.Hostname,
		withAI:    true,
	})
	if err != nil {
		h.pipeline.logger.Error("DB error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, protocol.IngestResponse{
		ID:           stored.ID,
		RiskLevel:    stored.RiskLevel,
		TotalThreats: stored.TotalThreats,
		Alerts:       stored.Result.Alerts,
		AIStatus:     stored.AIStatus,
		LatencyMs:    stored.APILatencyMs,
	})
}

// APIHandler serves the upload and history endpoints under /api
type APIHandler struct {
	pipeline        *Pipeline
	maxPayloadBytes int64
}

func NewAPIHandler(pipeline *Pipeline, maxPayloadBytes int64) *APIHandler {
	return &APIHandler{pipeline: pipeline, maxPayloadBytes: maxPayloadBytes}
}

// Analyze handles POST /api/analyze
func (h *APIHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	h.analyze(w, r, false)
}

// AnalyzeAI handles POST /api/analyze/ai
func (h *APIHandler) AnalyzeAI(w http.ResponseWriter, r *http.Request) {
	if !h.pipeline.llm.Enabled() {
		writeError(w, http.StatusServiceUnavailable, ErrNoEndpoints.Error())
		return
	}
	h.analyze(w, r, true)
}

func (h *APIHandler) analyze(w http.ResponseWriter, r *http.Request, withAI bool) {
	content, filename, status, err := readUpload(w, r, h.maxPayloadBytes)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	stored, report, err := h.pipeline.run(r.Context(), runInput{
		lines:    analysis.SplitLines(string(content)),
		raw:      content,
		source:   SourceUpload,
		filename: filename,
		withAI:   withAI,
	})
	if err != nil {
		h.pipeline.logger.Error("DB error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if !withAI {
		writeJSON(w, http.StatusOK, stored.Result)
		return
	}
	writeJSON(w, http.StatusOK, protocol.AIAnalysisResponse{
		AnalysisResult: *stored.Result,
		AIStatus:       stored.AIStatus,
		AIReport:       report,
	})
}

// ListAnalyses handles GET /api/analyses?source=&limit=
func (h *APIHandler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	rows, err := h.pipeline.db.QueryBySource(r.Context(), r.URL.Query().Get("source"), queryLimit(r))
	if err != nil {
		h.pipeline.logger.Error("query analyses", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// Elevated handles GET /api/analyses/elevated?limit=
func (h *APIHandler) Elevated(w http.ResponseWriter, r *http.Request) {
	rows, err := h.pipeline.db.QueryElevated(r.Context(), queryLimit(r))
	if err != nil {
		h.pipeline.logger.Error("query elevated", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// Stats handles GET /api/stats
func (h *APIHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.pipeline.db.RiskCounts(r.Context())
	if err != nil {
		h.pipeline.logger.Error("risk counts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"risk_levels": counts})
}

var errNoFile = errors.New("missing upload: send multipart field \"file\" or a text/plain body")

// readUpload returns the uploaded text from a multipart "file" field or
// the raw body. On error the returned status is the one to send.
func readUpload(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, string, int, error) {
	if r.ContentLength > limit {
		return nil, "", http.StatusRequestEntityTooLarge, errors.New("request entity too large")
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		data     []byte
		filename string
		err      error
	)
	if mediaType == "multipart/form-data" {
		if err = r.ParseMultipartForm(limit); err == nil {
			file, header, ferr := r.FormFile("file")
			if ferr != nil {
				return nil, "", http.StatusBadRequest, errNoFile
			}
			defer file.Close()
			filename = header.Filename
			data, err = io.ReadAll(file)
		}
	} else {
		data, err = io.ReadAll(r.Body)
	}

	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, "", http.StatusRequestEntityTooLarge, errors.New("request entity too large")
		}
		return nil, "", http.StatusBadRequest, errors.New("failed to read upload")
	}
	if len(data) == 0 {
		return nil, "", http.StatusBadRequest, errNoFile
	}
	return data, filename, 0, nil
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultQueryLimit
	}
	return min(n, maxQueryLimit)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
