package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileStore persists the record as a JSON file readable only by the owner.
// Writes from other processes are picked up by Watch.
type FileStore struct {
	Notifier
	path string
	mu   sync.Mutex
	last Record
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	s := &FileStore{path: path}
	rec, err := s.read()
	if err != nil {
		return nil, err
	}
	s.last = rec
	return s, nil
}


func (s *FileStore) read() (Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("read store: %w", err)
	}
	if len(data) == 0 {
		return Record{}, nil
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode store %s: %w", s.path, err)
	}
	return rec, nil
}

func (s *FileStore) write(rec Record) error {
	if rec.IsZero() {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove store: %w", err)
		}
		return nil
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write store: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) Set(ctx context.Context, p Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	old, err := s.read()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	cur := p.Apply(old)
	if err := s.write(cur); err != nil {
		s.mu.Unlock()
		return err
	}
	s.last = copyRecord(cur)
	s.mu.Unlock()

	s.Publish(old, cur)
	return nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	old, err := s.read()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.write(Record{}); err != nil {
		s.mu.Unlock()
		return err
	}
	s.last = Record{}
	s.mu.Unlock()

	s.Publish(old, Record{})
	return nil
}

// Watch observes the store file for writes made outside this process and
// publishes them to subscribers. It returns when ctx is done.
func (s *FileStore) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("store watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	// The file is replaced by rename, so watch the directory.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			s.reload()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("store watcher", "err", err)
		}
	}
}

func (s *FileStore) reload() {
	s.mu.Lock()
	cur, err := s.read()
	if err != nil {
		s.mu.Unlock()
		slog.Warn("store reload failed", "path", s.path, "err", err)
		return
	}
	old := s.last
	s.last = copyRecord(cur)
	s.mu.Unlock()

	s.Publish(old, cur)
}
