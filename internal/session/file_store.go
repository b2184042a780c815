package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"brokerage-mcp/internal/interfaces"
	"brokerage-mcp/internal/types"
)

// FileStore keeps the session as a JSON file readable only by the owner.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ interfaces.SessionStore = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load(_ context.Context) (types.Session, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return types.Session{}, false, nil
	}
	if err != nil {
		return types.Session{}, false, err
	}
	var sess types.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return types.Session{}, false, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return sess, true, nil
}

func (f *FileStore) Save(_ context.Context, sess types.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
