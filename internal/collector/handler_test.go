// internal/collector/handler_test.go
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/signalnine/threatscope/internal/analysis"
	"github.com/signalnine/threatscope/internal/notify"
	"github.com/signalnine/threatscope/internal/protocol"
)

var failedLogins = []string{
	"2025-02-20 10:30:45 [ERROR] Failed login for admin from 10.0.0.1",
	"2025-02-20 10:30:46 [ERROR] Failed login for admin from 10.0.0.1",
	"2025-02-20 10:30:47 [ERROR] Failed login for root from 10.0.0.2",
	"2025-02-20 10:30:48 [ERROR] Failed login for guest from 10.0.0.3",
	"2025-02-20 10:30:49 [ERROR] Failed login for guest from 10.0.0.3",
	"2025-02-20 10:31:00 [INFO] Connection accepted from 10.0.0.1",
}

// recordingPublisher captures what the pipeline publishes
type recordingPublisher struct {
	source string
	alerts []protocol.Alert
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, source string, alerts []protocol.Alert) error {
	p.source = source
	p.alerts = append(p.alerts, alerts...)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func testPipeline(t *testing.T, llm *LLMClient, pub *recordingPublisher) *Pipeline {
	t.Helper()
	clock := func() time.Time { return time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC) }
	analyzer := analysis.New(analysis.WithClock(clock), analysis.WithWorkers(2))
	var publisher notify.Publisher
	if pub != nil {
		publisher = pub
	}
	p := NewPipeline(openTestDB(t), analyzer, llm, publisher, nil)
	p.now = clock
	return p
}

func TestIngestHandlerAuth(t *testing.T) {
	handler := NewIngestHandler(testPipeline(t, nil, nil), "secret-key", 1<<20)

	// No auth header
	req := httptest.NewRequest("POST", "/ingest", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	// Wrong auth
	req = httptest.NewRequest("POST", "/ingest", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestIngestHandlerNoKeyConfigured(t *testing.T) {
	handler := NewIngestHandler(testPipeline(t, nil, nil), "", 1<<20)

	req := httptest.NewRequest("POST", "/ingest", strings.NewReader(`{"lines":["x"]}`))
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestIngestHandlerPayloadLimit(t *testing.T) {
	// 100 byte limit
	handler := NewIngestHandler(testPipeline(t, nil, nil), "secret", 100)

	bigPayload := make([]byte, 200)
	req := httptest.NewRequest("POST", "/ingest", bytes.NewReader(bigPayload))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestIngestHandlerInvalidJSON(t *testing.T) {
	handler := NewIngestHandler(testPipeline(t, nil, nil), "secret", 1<<20)

	req := httptest.NewRequest("POST", "/ingest", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestIngestHandlerSkipsEmptyBatch(t *testing.T) {
	p := testPipeline(t, nil, nil)
	handler := NewIngestHandler(p, "secret", 1<<20)

	req := httptest.NewRequest("POST", "/ingest", strings.NewReader(`{"hostname":"h","lines":[]}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusOK)
	}
	rows, _ := p.db.QueryBySource(context.Background(), "", 10)
	if len(rows) != 0 {
		t.Errorf("DB has %d rows, want 0", len(rows))
	}
}

func TestIngestHandlerSuccess(t *testing.T) {
	mockLLM := chatServer(t, reportJSON)
	llm := NewLLMClient([]Endpoint{{URL: mockLLM.URL, Model: "test", APIKey: "key"}}, nil)
	pub := &recordingPublisher{}
	p := testPipeline(t, llm, pub)
	handler := NewIngestHandler(p, "secret", 1<<20)

	batch := protocol.LogBatch{
		Hostname: "test-host",
		Source:   "/var/log/auth.log",
		Lines:    failedLogins,
	}
	body, _ := json.Marshal(batch)

	req := httptest.NewRequest("POST", "/ingest", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d. Body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp protocol.IngestResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if resp.RiskLevel != "MEDIUM" || resp.TotalThreats != 5 {
		t.Errorf("Response = %+v, want MEDIUM with 5 threats", resp)
	}
	if len(resp.Alerts) != 1 || resp.Alerts[0].TriggeredBy != "failed_login_threshold" {
		t.Errorf("Alerts = %+v", resp.Alerts)
	}
	if resp.AIStatus != AIStatusOK {
		t.Errorf("AIStatus = %q, want %q", resp.AIStatus, AIStatusOK)
	}

	rows, err := p.db.QueryBySource(context.Background(), "/var/log/auth.log", 1)
	if err != nil || len(rows) != 1 {
		t.Fatalf("DB has %d results (%v), want 1", len(rows), err)
	}
	if rows[0].Hostname != "test-host" || rows[0].AISummary != "SQL injection from one host" {
		t.Errorf("Stored = %+v", rows[0])
	}
	if rows[0].ContentHash != Fingerprint([]byte(strings.Join(failedLogins, "\n"))) {
		t.Errorf("ContentHash = %q", rows[0].ContentHash)
	}

	if pub.source != "/var/log/auth.log" || len(pub.alerts) != 1 {
		t.Errorf("Published %d alerts for %q", len(pub.alerts), pub.source)
	}
}

func TestIngestHandlerLLMDownStillStores(t *testing.T) {
	llm := NewLLMClient([]Endpoint{{URL: "http://127.0.0.1:59997", Model: "down"}}, nil)
	pub := &recordingPublisher{err: errors.New("broker down")}
	p := testPipeline(t, llm, pub)
	handler := NewIngestHandler(p, "secret", 1<<20)

	body, _ := json.Marshal(protocol.LogBatch{Hostname: "h", Lines: failedLogins})
	req := httptest.NewRequest("POST", "/ingest", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200 even with LLM and broker down", rec.Code)
	}
	var resp protocol.IngestResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.AIStatus != AIStatusUnavailable {
		t.Errorf("AIStatus = %q, want %q", resp.AIStatus, AIStatusUnavailable)
	}

	// source falls back to hostname
	rows, _ := p.db.QueryBySource(context.Background(), "h", 10)
	if len(rows) != 1 {
		t.Errorf("DB has %d rows for hostname source, want 1", len(rows))
	}
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestAnalyzeUploadMultipart(t *testing.T) {
	p := testPipeline(t, nil, nil)
	api := NewAPIHandler(p, 1<<20)

	content := `192.168.1.5 - - [20/Feb/2025:10:30:45 +0000] "GET /search?q=1' OR '1'='1 HTTP/1.1" 200 512 "-" "sqlmap/1.7"` + "\n"
	body, contentType := multipartUpload(t, "access.log", content)

	req := httptest.NewRequest("POST", "/api/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	api.Analyze(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d. Body: %s", rec.Code, rec.Body.String())
	}
	var result protocol.AnalysisResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if result.ParsingInfo.TotalLines != 1 || result.ParsingInfo.FormatQuality.PerfectFormat != 1 {
		t.Errorf("ParsingInfo = %+v", result.ParsingInfo)
	}
	if len(result.ThreatStatistics.WebThreats) != 1 {
		t.Errorf("WebThreats = %+v", result.ThreatStatistics.WebThreats)
	}

	rows, _ := p.db.QueryBySource(context.Background(), SourceUpload, 10)
	if len(rows) != 1 || rows[0].Filename != "access.log" {
		t.Errorf("Stored uploads = %+v", rows)
	}
}

func TestAnalyzeUploadPlainText(t *testing.T) {
	api := NewAPIHandler(testPipeline(t, nil, nil), 1<<20)

	req := httptest.NewRequest("POST", "/api/analyze", strings.NewReader(strings.Join(failedLogins, "\n")))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	api.Analyze(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d. Body: %s", rec.Code, rec.Body.String())
	}
	var result protocol.AnalysisResult
	json.NewDecoder(rec.Body).Decode(&result)
	if result.ThreatStatistics.FailedLogins != 5 {
		t.Errorf("FailedLogins = %d, want 5", result.ThreatStatistics.FailedLogins)
	}
}

func TestAnalyzeUploadErrors(t *testing.T) {
	api := NewAPIHandler(testPipeline(t, nil, nil), 64)

	tests := []struct {
		name        string
		body        string
		contentType string
		want        int
	}{
		{"empty body", "", "text/plain", http.StatusBadRequest},
		{"too large", strings.Repeat("a", 200), "text/plain", http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/analyze", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rec := httptest.NewRecorder()
			api.Analyze(rec, req)
			if rec.Code != tt.want {
				t.Errorf("Status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAnalyzeAIWithoutEndpoints(t *testing.T) {
	api := NewAPIHandler(testPipeline(t, nil, nil), 1<<20)

	req := httptest.NewRequest("POST", "/api/analyze/ai", strings.NewReader("line"))
	rec := httptest.NewRecorder()
	api.AnalyzeAI(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestAnalyzeAI(t *testing.T) {
	mockLLM := chatServer(t, reportJSON)
	llm := NewLLMClient([]Endpoint{{URL: mockLLM.URL, Model: "test"}}, nil)
	api := NewAPIHandler(testPipeline(t, llm, nil), 1<<20)

	req := httptest.NewRequest("POST", "/api/analyze/ai", strings.NewReader(strings.Join(failedLogins, "\n")))
	rec := httptest.NewRecorder()
	api.AnalyzeAI(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d. Body: %s", rec.Code, rec.Body.String())
	}
	var resp protocol.AIAnalysisResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if resp.AIStatus != AIStatusOK || resp.AIReport == nil {
		t.Fatalf("AIStatus = %q, report = %v", resp.AIStatus, resp.AIReport)
	}
	if resp.AIReport.ConfidenceScore != 0.9 {
		t.Errorf("ConfidenceScore = %v, want 0.9", resp.AIReport.ConfidenceScore)
	}
	if resp.RiskAssessment.Level != "MEDIUM" {
		t.Errorf("embedded result Level = %q, want MEDIUM", resp.RiskAssessment.Level)
	}
}

func TestQueryLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", defaultQueryLimit},
		{"limit=5", 5},
		{"limit=-1", defaultQueryLimit},
		{"limit=abc", defaultQueryLimit},
		{"limit=100000", maxQueryLimit},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/api/analyses?"+tt.query, nil)
		if got := queryLimit(req); got != tt.want {
			t.Errorf("queryLimit(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
