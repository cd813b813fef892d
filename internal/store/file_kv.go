package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileKV is a KV persisted as one JSON object on disk. Every write rewrites
// the file through a temporary file and a rename, so a crash leaves either
// the old or the new contents.
type FileKV struct {
	mu    sync.RWMutex
	path  string
	items map[string]string
}

// OpenFileKV loads path, or starts empty when it does not exist yet.
func OpenFileKV(path string) (*FileKV, error) {
	kv := &FileKV{path: path, items: make(map[string]string)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return kv, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &kv.items); err != nil {
			return nil, fmt.Errorf("failed to parse session file %s: %w", path, err)
		}
	}
	if kv.items == nil {
		kv.items = make(map[string]string)
	}
	return kv, nil
}

// Path returns the session file location.
func (f *FileKV) Path() string {
	return f.path
}

func (f *FileKV) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	v, ok := f.items[key]
	return v, ok, nil
}

func (f *FileKV) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, existed := f.items[key]
	f.items[key] = value
	if err := f.flush(); err != nil {
		if existed {
			f.items[key] = prev
		} else {
			delete(f.items, key)
		}
		return err
	}
	return nil
}

// SetMany applies values and rewrites the file once. On a failed write the
// in-memory map is restored, so the batch is all or nothing.
func (f *FileKV) SetMany(_ context.Context, values map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev := make(map[string]string, len(values))
	var added []string
	for k, v := range values {
		if old, existed := f.items[k]; existed {
			prev[k] = old
		} else {
			added = append(added, k)
		}
		f.items[k] = v
	}

	if err := f.flush(); err != nil {
		for k, v := range prev {
			f.items[k] = v
		}
		for _, k := range added {
			delete(f.items, k)
		}
		return err
	}
	return nil
}

func (f *FileKV) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, existed := f.items[key]
	if !existed {
		return nil
	}
	delete(f.items, key)
	if err := f.flush(); err != nil {
		f.items[key] = prev
		return err
	}
	return nil
}

func (f *FileKV) Keys(_ context.Context, prefix string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return sortedKeys(f.items, prefix), nil
}

// flush writes the map to disk. Callers hold the write lock.
func (f *FileKV) flush() error {
	data, err := json.MarshalIndent(f.items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

var _ KV = (*FileKV)(nil)
