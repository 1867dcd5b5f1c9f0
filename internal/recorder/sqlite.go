package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/model"
)

// SQLiteRecorder persists history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
	now func() time.Time
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log.With().Str("component", "recorder").Logger(), now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trigger_signals (
			id           TEXT PRIMARY KEY,
			timestamp    INTEGER NOT NULL,
			symbol       TEXT NOT NULL,
			level        TEXT NOT NULL,
			priority     INTEGER,
			trigger_type TEXT,
			reasons      TEXT,
			confidence   REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trigger_ts ON trigger_signals(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_trigger_symbol ON trigger_signals(symbol)`,

		`CREATE TABLE IF NOT EXISTS decision_audits (
			id              TEXT PRIMARY KEY,
			timestamp       INTEGER NOT NULL,
			symbol          TEXT NOT NULL,
			action          TEXT,
			is_valid        INTEGER,
			risk_reward     REAL,
			max_loss_pct    REAL,
			payload         TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_ts ON decision_audits(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_symbol ON decision_audits(symbol)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordTrigger(ctx context.Context, sig *model.TriggerSignal) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	ts := sig.CreatedAt
	if ts.IsZero() {
		ts = r.now()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO trigger_signals
		(id, timestamp, symbol, level, priority, trigger_type, reasons, confidence)
		VALUES (?,?,?,?,?,?,?,?)`,
		id, ts.UnixMilli(), sig.Symbol, sig.Level.String(), sig.Priority,
		sig.TriggerType, strings.Join(sig.TriggerReason, "\n"), sig.Confidence,
	)
	if err != nil {
		return "", fmt.Errorf("insert trigger: %w", err)
	}
	return id, nil
}

func (r *SQLiteRecorder) RecordAudit(ctx context.Context, rec *model.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = r.now().UTC()
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO decision_audits
		(id, timestamp, symbol, action, is_valid, risk_reward, max_loss_pct, payload)
		VALUES (?,?,?,?,?,?,?,?)`,
		rec.ID, rec.RecordedAt.UnixMilli(), rec.Symbol, string(rec.Decision.Action),
		rec.IsValid, nullable(rec.RiskRewardRatio), nullable(rec.MaxLossPct), string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// RecentAudits returns up to limit audits, newest first. An empty symbol matches all.
func (r *SQLiteRecorder) RecentAudits(ctx context.Context, symbol string, limit int) ([]model.AuditRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT payload FROM decision_audits`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY timestamp DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audits: %w", err)
	}
	defer rows.Close()

	out := []model.AuditRecord{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		var rec model.AuditRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("decode audit: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}

func nullable(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
