// Package runlog is the append-only JSONL audit trail of engine runs.
package runlog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"HorizonTrader/internal/fsutil"
	"HorizonTrader/internal/model"
)

// ErrCorrupt marks a line that could not be decoded.
var ErrCorrupt = errors.New("run log line is corrupt")

// Mirror receives every appended record as a best-effort secondary copy.
type Mirror interface {
	Mirror(rec model.RunRecord)
}

// Log appends records to a JSONL file. Each record is written with one
// O_APPEND write under an in-process mutex and an OS advisory lock.
type Log struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
	mirror Mirror
}

// Option configures a Log.
type Option func(*Log)

// WithMirror forwards each appended record to m.
func WithMirror(m Mirror) Option {
	return func(l *Log) { l.mirror = m }
}

// WithLogger sets the logger used for skipped lines.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

func New(path string, opts ...Option) *Log {
	l := &Log{path: path, logger: zap.NewNop()}
	for _, o := range opts {
		o(l)
	}
	l.logger = l.logger.With(zap.String("component", "runlog"))
	return l
}

func (l *Log) Path() string { return l.path }

// Append writes rec as one line. The mirror is fed only after the primary write succeeded.
func (l *Log) Append(_ context.Context, rec model.RunRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}
	data = append(data, '\n')

	if err := l.write(data); err != nil {
		return err
	}
	if l.mirror != nil {
		l.mirror.Mirror(rec)
	}
	return nil
}

func (l *Log) write(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create run log dir: %w", err)
	}
	lock, err := fsutil.Lock(l.path + ".lock")
	if err != nil {
		return err
	}
	defer lock.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("append run log: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync run log: %w", err)
	}
	return f.Close()
}

// ReadAll returns every decodable record in file order. Corrupt lines are skipped and logged.
// A missing file is an empty history; any other I/O failure is returned.
func (l *Log) ReadAll(_ context.Context) ([]model.RunRecord, error) {
	var out []model.RunRecord
	err := l.scan(func(lineNo int, _ []byte, rec model.RunRecord, derr error) error {
		if derr != nil {
			l.logger.Warn("skipping run log line", zap.Int("line", lineNo), zap.Error(derr))
			return nil
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ForSymbol returns the records for symbol, oldest first.
// A corrupt line that mentions symbol fails the read with ErrCorrupt.
func (l *Log) ForSymbol(_ context.Context, symbol string) ([]model.RunRecord, error) {
	return l.forSymbol(symbol, true)
}

func (l *Log) forSymbol(symbol string, strict bool) ([]model.RunRecord, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	needle := []byte(`"` + symbol + `"`)

	var out []model.RunRecord
	err := l.scan(func(lineNo int, line []byte, rec model.RunRecord, derr error) error {
		if derr != nil {
			if strict && bytes.Contains(bytes.ToUpper(line), needle) {
				return fmt.Errorf("run log line %d for %s: %w", lineNo, symbol, derr)
			}
			l.logger.Warn("skipping run log line", zap.Int("line", lineNo), zap.Error(derr))
			return nil
		}
		if strings.EqualFold(rec.Symbol, symbol) {
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// scan decodes the file line by line. visit sees decode failures in derr;
// a non-nil return from visit stops the scan.
func (l *Log) scan(visit func(lineNo int, line []byte, rec model.RunRecord, derr error) error) error {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open run log: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for lineNo := 1; ; lineNo++ {
		raw, err := r.ReadBytes('\n')
		if line := bytes.TrimSpace(raw); len(line) > 0 {
			rec, derr := decode(line)
			if verr := visit(lineNo, line, rec, derr); verr != nil {
				return verr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read run log: %w", err)
		}
	}
}

// Recent returns at most limit of the newest records, optionally for one symbol, oldest first.
// Unlike ForSymbol it skips corrupt lines for symbol.
func (l *Log) Recent(ctx context.Context, symbol string, limit int) ([]model.RunRecord, error) {
	var (
		recs []model.RunRecord
		err  error
	)
	if symbol == "" {
		recs, err = l.ReadAll(ctx)
	} else {
		recs, err = l.forSymbol(symbol, false)
	}
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(recs) > limit {
		recs = recs[len(recs)-limit:]
	}
	return recs, nil
}

func decode(line []byte) (model.RunRecord, error) {
	var rec model.RunRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return rec, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if rec.Symbol == "" || rec.Action == "" || rec.When.IsZero() {
		return rec, fmt.Errorf("%w: missing when/symbol/action", ErrCorrupt)
	}
	return rec, nil
}
