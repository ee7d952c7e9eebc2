package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"vaultflow/internal/model"
)

// FileSessionStore keeps the session in a JSON file, replaced atomically on save.
type FileSessionStore struct {
	path string
}

func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

// Load reads the session. ok is false when no session was saved yet.
func (f *FileSessionStore) Load(_ context.Context) (model.Session, bool, error) {
	stat, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Session{}, false, nil
		}
		return model.Session{}, false, fmt.Errorf("stat session: %w", err)
	}
	if stat.IsDir() {
		return model.Session{}, false, fmt.Errorf("session path is a directory")
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return model.Session{}, false, fmt.Errorf("read session: %w", err)
	}
	var s model.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return model.Session{}, false, fmt.Errorf("parse session: %w", err)
	}
	return s, true, nil
}

func (f *FileSessionStore) Save(_ context.Context, s model.Session) error {
	if err := ensureDir(f.path); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write session tmp: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}
