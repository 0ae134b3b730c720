// internal/collector/db.go
package collector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/signalnine/threatscope/internal/protocol"
	_ "modernc.org/sqlite"
)

// DB wraps SQLite connection
type DB struct {
	db *sql.DB
}

// NewDB opens or creates the SQLite database
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL lets history queries run while an ingest is writing
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		source TEXT NOT NULL,
		hostname TEXT NOT NULL DEFAULT '',
		filename TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		total_lines INTEGER NOT NULL,
		parsed_lines INTEGER NOT NULL,
		skipped_lines INTEGER NOT NULL,
		risk_level TEXT NOT NULL,
		total_threats INTEGER NOT NULL,
		cvss_aggregate_score REAL NOT NULL,
		result TEXT,
		ai_status TEXT NOT NULL DEFAULT 'skipped',
		ai_summary TEXT,
		api_latency_ms INTEGER,
		created_at TEXT DEFAULT (datetime('now'))
	);
	CREATE INDEX IF NOT EXISTS idx_analyses_source ON analyses(source);
	CREATE INDEX IF NOT EXISTS idx_analyses_risk ON analyses(risk_level);
	CREATE INDEX IF NOT EXISTS idx_analyses_timestamp ON analyses(timestamp);

	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		analysis_id INTEGER NOT NULL REFERENCES analyses(id),
		alert_id TEXT NOT NULL,
		severity TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		ip_address TEXT,
		triggered_by TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_analysis ON alerts(analysis_id);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db: db}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// InsertAnalysis stores a run and its alerts in one transaction and sets a.ID.
func (d *DB) InsertAnalysis(ctx context.Context, a *protocol.StoredAnalysis) error {
	var resultJSON []byte
	if a.Result != nil {
		var err error
		if resultJSON, err = json.Marshal(a.Result); err != nil {
			return err
		}
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO analyses (timestamp, source, hostname, filename, content_hash, size_bytes,
			total_lines, parsed_lines, skipped_lines, risk_level, total_threats,
			cvss_aggregate_score, result, ai_status, ai_summary, api_latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.Timestamp.UTC().Format(time.RFC3339), a.Source, a.Hostname, a.Filename, a.ContentHash, a.SizeBytes,
		a.TotalLines, a.ParsedLines, a.SkippedLines, a.RiskLevel, a.TotalThreats,
		a.CVSSAggregateScore, string(resultJSON), a.AIStatus, a.AISummary, a.APILatencyMs)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	if a.Result != nil {
		for _, al := range a.Result.Alerts {
			var ip sql.NullString
			if al.IPAddress != nil {
				ip = sql.NullString{String: *al.IPAddress, Valid: true}
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO alerts (analysis_id, alert_id, severity, title, description, ip_address, triggered_by, timestamp)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, id, al.ID, al.Severity, al.Title, al.Description, ip, al.TriggeredBy, al.Timestamp)
			if err != nil {
				return fmt.Errorf("insert alert %s: %w", al.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	a.ID = id
	return nil
}

const analysisColumns = `id, timestamp, source, hostname, filename, content_hash, size_bytes,
	total_lines, parsed_lines, skipped_lines, risk_level, total_threats, cvss_aggregate_score,
	result, ai_status, ai_summary, api_latency_ms, created_at`

// QueryBySource returns recent analyses, newest first. An empty source
// matches every run.
func (d *DB) QueryBySource(ctx context.Context, source string, limit int) ([]protocol.StoredAnalysis, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+analysisColumns+`
		FROM analyses
		WHERE ? = '' OR source = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, source, source, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAnalyses(rows)
}

// QueryElevated returns recent analyses rated above LOW
func (d *DB) QueryElevated(ctx context.Context, limit int) ([]protocol.StoredAnalysis, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+analysisColumns+`
		FROM analyses
		WHERE risk_level != 'LOW'
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAnalyses(rows)
}

// RiskCounts returns count of analyses by risk level
func (d *DB) RiskCounts(ctx context.Context) (map[string]int, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT risk_level, COUNT(*) FROM analyses GROUP BY risk_level
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, err
		}
		counts[level] = count
	}
	return counts, rows.Err()
}

// AlertsFor returns the alerts stored with one analysis in insertion order
func (d *DB) AlertsFor(ctx context.Context, analysisID int64) ([]protocol.Alert, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT alert_id, severity, title, description, ip_address, triggered_by, timestamp
		FROM alerts
		WHERE analysis_id = ?
		ORDER BY id
	`, analysisID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := []protocol.Alert{}
	for rows.Next() {
		var a protocol.Alert
		var ip sql.NullString
		if err := rows.Scan(&a.ID, &a.Severity, &a.Title, &a.Description, &ip, &a.TriggeredBy, &a.Timestamp); err != nil {
			return nil, err
		}
		if ip.Valid {
			a.IPAddress = &ip.String
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func scanAnalyses(rows *sql.Rows) ([]protocol.StoredAnalysis, error) {
	results := []protocol.StoredAnalysis{}
	for rows.Next() {
		var a protocol.StoredAnalysis
		var tsStr, createdStr string
		var resultJSON, aiSummary sql.NullString
		var latency sql.NullInt64

		err := rows.Scan(&a.ID, &tsStr, &a.Source, &a.Hostname, &a.Filename, &a.ContentHash, &a.SizeBytes,
			&a.TotalLines, &a.ParsedLines, &a.SkippedLines, &a.RiskLevel, &a.TotalThreats, &a.CVSSAggregateScore,
			&resultJSON, &a.AIStatus, &aiSummary, &latency, &createdStr)
		if err != nil {
			return nil, err
		}

		a.Timestamp, _ = time.Parse(time.RFC3339, tsStr)
		a.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdStr)
		if resultJSON.Valid && resultJSON.String != "" {
			var r protocol.AnalysisResult
			if err := json.Unmarshal([]byte(resultJSON.String), &r); err == nil {
				a.Result = &r
			}
		}
		if aiSummary.Valid {
			a.AISummary = aiSummary.String
		}
		if latency.Valid {
			a.APILatencyMs = latency.Int64
		}

		results = append(results, a)
	}
	return results, rows.Err()
}
