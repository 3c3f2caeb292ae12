package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// Paths used by the agent.
const (
	MemoryPath   = "/MEMORY.md"
	SettingsPath = "/config.json"
)

// Files is a flat text store on top of an afero filesystem.
type Files struct {
	mu sync.Mutex
	fs afero.Fs
}

func NewFiles(fs afero.Fs) *Files {
	return &Files{fs: fs}
}

// OpenDir roots a store at dir on the OS filesystem, creating it if needed.
func OpenDir(dir string) (*Files, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return NewFiles(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// ReadFile returns the file contents, or "" when it is missing or unreadable.
func (f *Files) ReadFile(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		return ""
	}
	return string(data)
}

func (f *Files) Exists(path string) bool {
	ok, err := afero.Exists(f.fs, path)
	return err == nil && ok
}

func (f *Files) WriteFile(path, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fs.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create parent of %s: %w", path, err)
	}
	if err := afero.WriteFile(f.fs, path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (f *Files) AppendFile(path, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, err := f.fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	_, werr := file.WriteString(content)
	cerr := file.Close()
	if err := errors.Join(werr, cerr); err != nil {
		return fmt.Errorf("failed to append %s: %w", path, err)
	}
	return nil
}

// SeedMemory creates the long-term memory file on first start.
func (f *Files) SeedMemory() error {
	if f.Exists(MemoryPath) {
		return nil
	}
	return f.WriteFile(MemoryPath, "MicroClaw Memory initialized.\n")
}
