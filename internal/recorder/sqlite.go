package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"HorizonTrader/internal/model"
)

// SQLiteRecorder mirrors run records into a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so the CLI and dashboards can read while the bot writes.
	for _, p := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=3000"} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	r := &SQLiteRecorder{db: db, logger: logger.With(zap.String("component", "recorder"))}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.logger.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp           INTEGER NOT NULL,
			symbol              TEXT NOT NULL,
			trigger             TEXT,
			decision_action     TEXT,
			decision_confidence REAL,
			target_horizon      TEXT,
			action              TEXT NOT NULL,
			qty                 REAL,
			entry_price         REAL,
			order_id            TEXT,
			error               TEXT,
			reason              TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON runs(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_symbol ON runs(symbol, timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(ctx context.Context, rec *model.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO runs
		(timestamp, symbol, trigger, decision_action, decision_confidence, target_horizon,
		 action, qty, entry_price, order_id, error, reason)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.When.Unix(), rec.Symbol, rec.Trigger,
		string(rec.Decision.Action), rec.Decision.Confidence, nullString(string(rec.Decision.TargetHorizon)),
		string(rec.Action), nullFloat(rec.Qty), nullFloat(rec.EntryPrice),
		nullString(rec.OrderID), nullString(rec.Error), rec.Reason,
	)
	return err
}

func (r *SQLiteRecorder) ActionCounts(ctx context.Context, since time.Time) (map[model.Action]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT action, COUNT(*) FROM runs WHERE timestamp >= ? GROUP BY action`, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("count actions: %w", err)
	}
	defer rows.Close()

	out := map[model.Action]int{}
	for rows.Next() {
		var (
			action string
			n      int
		)
		if err := rows.Scan(&action, &n); err != nil {
			return nil, err
		}
		out[model.Action(action)] = n
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
