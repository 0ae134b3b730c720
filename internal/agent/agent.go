// internal/agent/agent.go
package agent

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/signalnine/threatscope/internal/config"
	"github.com/signalnine/threatscope/internal/protocol"
)

// Agent tails a log file and ships new lines to the collector
type Agent struct {
	cfg    *config.AgentConfig
	client *http.Client
	logger *zap.Logger
	now    func() time.Time
}

// New creates a new agent
func New(cfg *config.AgentConfig, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := &http.Transport{}
	if cfg.TLSSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Agent{
		cfg: cfg,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		logger: logger,
		now:    time.Now,
	}
}

// Run starts the agent loop
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("agent starting",
		zap.String("hostname", a.cfg.Hostname),
		zap.String("log_path", a.cfg.LogPath),
		zap.String("collector", a.cfg.CollectorURL),
		zap.Duration("interval", a.cfg.PollInterval),
	)

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	// Run immediately on start
	a.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("agent shutting down")
			return nil
		case <-ticker.C:
			a.poll(ctx)
		}
	}
}

func (a *Agent) poll(ctx context.Context) {
	err := a.Collect(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoLogFile):
		a.logger.Debug("waiting for log file", zap.String("log_path", a.cfg.LogPath))
	default:
		a.logger.Error("collection error", zap.Error(err))
	}
}

// Collect ships the lines appended since the last successful send. The
// stored offset only moves after the collector accepts the batch.
func (a *Agent) Collect(ctx context.Context) error {
	offset, err := ReadOffset(a.cfg.StateFile)
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}

	lines, next, err := ReadNewLines(a.cfg.LogPath, offset)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		a.logger.Debug("no new lines", zap.Int64("offset", offset))
		return nil
	}

	// Cap lines to bound collector and LLM cost
	total := len(lines)
	lines, truncated := CapLines(lines, a.cfg.MaxLines)
	if truncated {
		a.logger.Warn("batch truncated to most recent lines",
			zap.Int("kept", len(lines)),
			zap.Int("read", total),
		)
	}

	batch := protocol.LogBatch{
		Hostname:  a.cfg.Hostname,
		Source:    a.cfg.Source,
		Timestamp: a.now(),
		Lines:     lines,
	}

	resp, err := a.send(ctx, batch)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}

	if err := WriteOffset(a.cfg.StateFile, next); err != nil {
		return fmt.Errorf("write state: %w", err)
	}

	a.logger.Info("batch shipped",
		zap.Int("lines", len(lines)),
		zap.Int64("offset", next),
		zap.String("risk_level", resp.RiskLevel),
		zap.Int("alerts", len(resp.Alerts)),
	)
	return nil
}

func (a *Agent) send(ctx context.Context, batch protocol.LogBatch) (*protocol.IngestResponse, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.CollectorURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("collector returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out protocol.IngestResponse
	// a skipped batch answers with a different shape; only the status matters
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return &out, nil
}
