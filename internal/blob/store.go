package blob

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Store persists byte and image payloads as files under a single
// directory. The database row only holds the returned path. Content is
// written before the row is inserted and removed after the row is deleted,
// so a crash can at worst leave an unreferenced file, never a row without
// backing content.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Write stores content under a generated unique name and returns the full
// path. ext is appended as a file extension when non-empty (image format).
func (s *Store) Write(content []byte, ext string) (string, error) {
	name := uuid.NewString()
	if ext != "" {
		name = name + "." + ext
	}
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write payload file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize payload file: %w", err)
	}
	return path, nil
}

// Read loads the payload content back from disk.
func (s *Store) Read(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload file: %w", err)
	}
	return b, nil
}

// Remove deletes the payload file. A missing file is not an error: the row
// referencing it is already gone.
func (s *Store) Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
