// internal/collector/llm.go
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/signalnine/threatscope/internal/protocol"
)

// ErrLLMUnavailable indicates all LLM endpoints are down
var ErrLLMUnavailable = errors.New("all LLM endpoints unavailable")

// ErrNoEndpoints is returned when the add-on was requested but not configured
var ErrNoEndpoints = errors.New("no LLM endpoints configured")

// errTransient marks failures that should fall through to the next endpoint
var errTransient = errors.New("transient")

// Endpoint represents a single LLM provider
type Endpoint struct {
	URL    string
	Model  string
	APIKey string
}

// LLMClient calls OpenAI-compatible chat APIs with an ordered fallback chain
type LLMClient struct {
	endpoints []Endpoint
	client    *http.Client
	logger    *zap.Logger
}

// NewLLMClient creates a new LLM client with fallback chain
func NewLLMClient(endpoints []Endpoint, logger *zap.Logger) *LLMClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMClient{
		endpoints: endpoints,
		client: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
			},
		},
		logger: logger,
	}
}

// Enabled reports whether any endpoint is configured.
func (c *LLMClient) Enabled() bool {
	return c != nil && len(c.endpoints) > 0
}

// Analyze asks the model for a threat report on the given prompt.
// Tries each endpoint in order; returns ErrLLMUnavailable only if ALL fail.
func (c *LLMClient) Analyze(ctx context.Context, userPrompt string) (*protocol.AIReport, int64, error) {
	if !c.Enabled() {
		return nil, 0, ErrNoEndpoints
	}

	var lastErr error
	var totalLatency int64

	for i, ep := range c.endpoints {
		report, latency, err := c.tryEndpoint(ctx, ep, userPrompt)
		totalLatency += latency

		if err == nil {
			if i > 0 {
				c.logger.Info("LLM fallback succeeded",
					zap.Int("endpoint", i+1),
					zap.String("model", ep.Model),
					zap.Int("failures", i),
				)
			}
			return report, totalLatency, nil
		}

		lastErr = err
		if errors.Is(err, errTransient) {
			c.logger.Warn("LLM endpoint unavailable, trying next",
				zap.Int("endpoint", i+1),
				zap.String("model", ep.Model),
				zap.Error(err),
			)
			continue
		}

		// parse or auth error, fallback would not help
		return nil, totalLatency, err
	}

	return nil, totalLatency, fmt.Errorf("%w: %v", ErrLLMUnavailable, lastErr)
}

func (c *LLMClient) tryEndpoint(ctx context.Context, ep Endpoint, userPrompt string) (*protocol.AIReport, int64, error) {
	start := time.Now()

	// OpenAI Chat Completions format
	reqBody := map[string]any{
		"model": ep.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"max_tokens":  2048,
		"temperature": 0.2,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, 0, err
	}

	url := strings.TrimSuffix(ep.URL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, 0, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ep.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		latency := time.Since(start).Milliseconds()
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
			return nil, latency, fmt.Errorf("%w: connection failed: %v", errTransient, err)
		}
		return nil, latency, err
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return nil, latency, fmt.Errorf("%w: HTTP %d", errTransient, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, latency, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, latency, err
	}

	if len(apiResp.Choices) == 0 {
		return nil, latency, fmt.Errorf("empty response from API")
	}

	var report protocol.AIReport
	content := stripFences(apiResp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &report); err != nil {
		return nil, latency, fmt.Errorf("failed to parse LLM response: %w", err)
	}

	return &report, latency, nil
}

// IsUnavailable checks if the error indicates all LLM endpoints are down
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrLLMUnavailable)
}
