package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"HorizonTrader/internal/model"
)

// SQLiteStore keeps one row per open position. Every Update runs in a single
// immediate transaction, so concurrent processes serialise on the database lock.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS positions (
		symbol        TEXT PRIMARY KEY,
		qty           REAL NOT NULL,
		entry_price   REAL NOT NULL,
		notional      REAL NOT NULL,
		horizon       TEXT,
		entered_at    TEXT NOT NULL,
		timebox_until TEXT
	)`)
	return err
}

func (s *SQLiteStore) Read(ctx context.Context) (Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, s.db)
}

func (s *SQLiteStore) Write(ctx context.Context, l Ledger) error {
	_, err := s.Update(ctx, func(cur Ledger) error {
		for sym := range cur {
			delete(cur, sym)
		}
		for sym, pos := range l {
			cur[sym] = pos
		}
		return nil
	})
	return err
}

func (s *SQLiteStore) Update(ctx context.Context, fn func(Ledger) error) (Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	l, err := s.load(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := fn(l); err != nil {
		return nil, err
	}
	l.prune()

	if _, err := tx.ExecContext(ctx, `DELETE FROM positions`); err != nil {
		return nil, fmt.Errorf("clear positions: %w", err)
	}
	for sym, pos := range l {
		var until any
		if pos.TimeboxUntil != nil {
			until = pos.TimeboxUntil.String()
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO positions
			(symbol, qty, entry_price, notional, horizon, entered_at, timebox_until)
			VALUES (?,?,?,?,?,?,?)`,
			sym, pos.Qty, pos.EntryPrice, pos.Notional, string(pos.Horizon), pos.EnteredAt.String(), until,
		); err != nil {
			return nil, fmt.Errorf("insert %s: %w", sym, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return l.Clone(), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLiteStore) load(ctx context.Context, q querier) (Ledger, error) {
	rows, err := q.QueryContext(ctx, `SELECT symbol, qty, entry_price, notional, horizon, entered_at, timebox_until FROM positions`)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	l := Ledger{}
	for rows.Next() {
		var (
			sym, entered string
			horizon      sql.NullString
			until        sql.NullString
			pos          model.PositionRecord
		)
		if err := rows.Scan(&sym, &pos.Qty, &pos.EntryPrice, &pos.Notional, &horizon, &entered, &until); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrCorrupt, err)
		}
		pos.Horizon = model.Horizon(horizon.String)
		t, err := time.Parse(model.TimeLayout, entered)
		if err != nil {
			return nil, fmt.Errorf("%w: %s entered_at: %v", ErrCorrupt, sym, err)
		}
		pos.EnteredAt = model.At(t)
		if until.Valid {
			t, err := time.Parse(model.TimeLayout, until.String)
			if err != nil {
				return nil, fmt.Errorf("%w: %s timebox_until: %v", ErrCorrupt, sym, err)
			}
			ts := model.At(t)
			pos.TimeboxUntil = &ts
		}
		l[sym] = pos
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	l.prune()
	return l, nil
}
