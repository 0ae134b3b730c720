// internal/collector/llm_test.go
package collector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const reportJSON = `{"summary": "SQL injection from one host", "threat_level": "High",
 "attack_chains": [{"name": "Recon to SQLi", "description": "scan then inject", "steps": ["scan", "inject"], "severity": "High"}],
 "mitre_attack_techniques": [{"id": "T1190", "name": "Exploit Public-Facing Application", "tactic": "Initial Access"}],
 "indicators_of_compromise": ["192.168.1.5"],
 "recommendations": ["Block 192.168.1.5"],
 "confidence_score": 0.9}`

// chatServer answers chat completions with the given content
func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLLMClientAnalyze(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Method = %q, want POST", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Path = %q, want /chat/completions", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Missing or wrong Authorization header")
		}

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" {
			t.Errorf("Messages = %+v", body.Messages)
		}
		if body.Messages[1].Content != "user prompt" {
			t.Errorf("user content = %q", body.Messages[1].Content)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": reportJSON}},
			},
		})
	}))
	defer server.Close()

	client := NewLLMClient([]Endpoint{{URL: server.URL, Model: "test-model", APIKey: "test-key"}}, nil)
	report, latency, err := client.Analyze(context.Background(), "user prompt")
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}
	if report.ThreatLevel != "High" {
		t.Errorf("ThreatLevel = %q, want High", report.ThreatLevel)
	}
	if len(report.MitreTechniques) != 1 || report.MitreTechniques[0].ID != "T1190" {
		t.Errorf("MitreTechniques = %+v", report.MitreTechniques)
	}
	if len(report.AttackChains) != 1 || len(report.AttackChains[0].Steps) != 2 {
		t.Errorf("AttackChains = %+v", report.AttackChains)
	}
	// Latency can be 0 for very fast mock responses (sub-millisecond)
	if latency < 0 {
		t.Errorf("Latency = %d, want >= 0", latency)
	}
}

func TestLLMClientStripsFences(t *testing.T) {
	srv := chatServer(t, "```json\n"+reportJSON+"\n```")
	client := NewLLMClient([]Endpoint{{URL: srv.URL, Model: "m"}}, nil)

	report, _, err := client.Analyze(context.Background(), "p")
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}
	if report.Summary != "SQL injection from one host" {
		t.Errorf("Summary = %q", report.Summary)
	}
}

func TestLLMClientFallback(t *testing.T) {
	// First server fails, second succeeds
	failServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failServer.Close()
	successServer := chatServer(t, reportJSON)

	endpoints := []Endpoint{
		{URL: failServer.URL, Model: "primary", APIKey: "key1"},
		{URL: successServer.URL, Model: "fallback", APIKey: "key2"},
	}
	client := NewLLMClient(endpoints, nil)
	report, _, err := client.Analyze(context.Background(), "test")
	if err != nil {
		t.Fatalf("Expected fallback to succeed, got: %v", err)
	}
	if report.ThreatLevel != "High" {
		t.Errorf("ThreatLevel = %q, want High", report.ThreatLevel)
	}
}

func TestLLMClientNoFallbackOnClientError(t *testing.T) {
	calls := 0
	authFail := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer authFail.Close()
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer second.Close()

	client := NewLLMClient([]Endpoint{{URL: authFail.URL}, {URL: second.URL}}, nil)
	_, _, err := client.Analyze(context.Background(), "test")
	if err == nil {
		t.Fatal("expected error")
	}
	if IsUnavailable(err) {
		t.Errorf("401 should not be reported as unavailable: %v", err)
	}
	if calls != 0 {
		t.Errorf("second endpoint called %d times, want 0", calls)
	}
}

func TestLLMClientBadJSON(t *testing.T) {
	srv := chatServer(t, "not json at all")
	client := NewLLMClient([]Endpoint{{URL: srv.URL}}, nil)
	_, _, err := client.Analyze(context.Background(), "p")
	if err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("err = %v, want parse failure", err)
	}
}

func TestLLMClientAllUnavailable(t *testing.T) {
	endpoints := []Endpoint{
		{URL: "http://127.0.0.1:59998", Model: "ep1", APIKey: "key"},
		{URL: "http://127.0.0.1:59999", Model: "ep2", APIKey: "key"},
	}
	client := NewLLMClient(endpoints, nil)
	_, _, err := client.Analyze(context.Background(), "test")
	if err == nil {
		t.Fatal("Expected error when all endpoints unavailable")
	}
	if !IsUnavailable(err) {
		t.Errorf("Expected ErrLLMUnavailable, got: %v", err)
	}
}

func TestLLMClientDisabled(t *testing.T) {
	var nilClient *LLMClient
	if nilClient.Enabled() {
		t.Error("nil client reports enabled")
	}
	_, _, err := NewLLMClient(nil, nil).Analyze(context.Background(), "p")
	if err != ErrNoEndpoints {
		t.Errorf("err = %v, want ErrNoEndpoints", err)
	}
}
