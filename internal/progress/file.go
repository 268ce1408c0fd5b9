package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileBackend keeps every key in one JSON file so progress survives
// between CLI invocations. Writes replace the file atomically.
type FileBackend struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

type fileEntry struct {
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path, now: time.Now}
}

func (f *FileBackend) read() (map[string]fileEntry, error) {
	entries := map[string]fileEntry{}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}
	return entries, nil
}

func (f *FileBackend) write(entries map[string]fileEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(f.path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".progress-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *FileBackend) live(e fileEntry) bool {
	return e.ExpiresAt.IsZero() || !f.now().After(e.ExpiresAt)
}

func (f *FileBackend) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		return nil, err
	}
	e, ok := entries[key]
	if !ok || !f.live(e) {
		return nil, ErrCacheMiss
	}
	return e.Value, nil
}

func (f *FileBackend) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		return err
	}
	e := fileEntry{Value: value}
	if expiration > 0 {
		e.ExpiresAt = f.now().Add(expiration)
	}
	entries[key] = e
	return f.write(entries)
}

func (f *FileBackend) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return f.write(entries)
}

func (f *FileBackend) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		return false, err
	}
	e, ok := entries[key]
	return ok && f.live(e), nil
}
