package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"HorizonTrader/internal/fsutil"
)

// FileStore keeps the ledger as a single JSON document.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Read(_ context.Context) (Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) Write(_ context.Context, l Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := fsutil.Lock(s.path + ".lock")
	if err != nil {
		return err
	}
	defer lock.Unlock()
	return s.save(l)
}

func (s *FileStore) Update(ctx context.Context, fn func(Ledger) error) (Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := fsutil.Lock(s.path + ".lock")
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l, err := s.load()
	if err != nil {
		return nil, err
	}
	if err := fn(l); err != nil {
		return nil, err
	}
	l.prune()
	if err := s.save(l); err != nil {
		return nil, err
	}
	return l.Clone(), nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) load() (Ledger, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Ledger{}, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if len(data) == 0 {
		return Ledger{}, nil
	}
	l := Ledger{}
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	l.prune()
	return l, nil
}

// save never mutates l; callers of Write keep their map as passed.
func (s *FileStore) save(l Ledger) error {
	l = l.Clone()
	l.prune()
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}
