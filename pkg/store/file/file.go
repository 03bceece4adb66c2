// Package file implements store.IdentityStore with one plain-text file per
// role. The assistant binding lives in ".assistant" and contains only the
// remote ID.
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/nstogner/labassist/pkg/domain"
	"github.com/nstogner/labassist/pkg/store"
)

// Store is a directory of role files.
type Store struct {
	dir string
}

var _ store.IdentityStore = (*Store)(nil)

// New returns a Store rooted at dir. The directory is created on first Save.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the file that holds the binding for role.
func (s *Store) Path(role string) string {
	return filepath.Join(s.dir, "."+role)
}

func (s *Store) Load(role string) (string, bool, error) {
	if err := validRole(role); err != nil {
		return "", false, err
	}
	path := s.Path(role)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &domain.LocalIOError{Op: "read", Path: path, Err: err}
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", false, nil
	}
	return id, true, nil
}

// Save writes id to a temporary file in the same directory and renames it
// over the role file.
func (s *Store) Save(role, id string) error {
	if err := validRole(role); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("saving %s: empty id", role)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return &domain.LocalIOError{Op: "mkdir", Path: s.dir, Err: err}
	}

	path := s.Path(role)
	tmp, err := os.CreateTemp(s.dir, "."+role+"-*.tmp")
	if err != nil {
		return &domain.LocalIOError{Op: "create", Path: path, Err: err}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(id); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &domain.LocalIOError{Op: "write", Path: tmpPath, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &domain.LocalIOError{Op: "sync", Path: tmpPath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &domain.LocalIOError{Op: "close", Path: tmpPath, Err: err}
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return &domain.LocalIOError{Op: "chmod", Path: tmpPath, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &domain.LocalIOError{Op: "rename", Path: path, Err: err}
	}
	return nil
}

func (s *Store) Delete(role string) error {
	if err := validRole(role); err != nil {
		return err
	}
	path := s.Path(role)
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &domain.LocalIOError{Op: "remove", Path: path, Err: err}
	}
	return nil
}

func validRole(role string) error {
	if role == "" || strings.ContainsAny(role, `/\`) || strings.HasPrefix(role, ".") {
		return fmt.Errorf("invalid role %q", role)
	}
	return nil
}
