// Package sessionstore persists the signed-in session in the config directory.
package sessionstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"todo/internal/service"
)

// File stores one session as JSON at Path.
type File struct {
	Path string
}

// New returns a File at path.
func New(path string) *File {
	return &File{Path: path}
}

// Load reads the stored session. It returns nil, nil when nothing is stored.
func (f *File) Load() (*service.Session, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(f.Path), err)
	}

	var s service.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", filepath.Base(f.Path), err)
	}
	if s.User.ID == "" {
		return nil, fmt.Errorf("invalid %s: missing user", filepath.Base(f.Path))
	}
	return &s, nil
}

// Save writes s with mode 0600, creating the directory with mode 0700.
func (f *File) Save(s *service.Session) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}

// Remove deletes the stored session. Removing a missing file is not an error.
func (f *File) Remove() error {
	err := os.Remove(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Exists reports whether a session file is present.
func (f *File) Exists() bool {
	_, err := os.Stat(f.Path)
	return err == nil
}
