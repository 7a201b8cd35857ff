package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalPrefix is the URL path local media is served under.
const LocalPrefix = "/media/"

// LocalStore writes objects below a directory served at LocalPrefix.
type LocalStore struct {
	Dir string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{Dir: dir}
}

func (s *LocalStore) Backend() string { return "local" }

func (s *LocalStore) Save(_ context.Context, name string, data []byte, _ string) (string, error) {
	abs, rel, err := s.resolve(name)
	if err == nil {
		err = writeBytesToFile(abs, data)
	}
	record(s.Backend(), "save", err)
	if err != nil {
		return "", err
	}
	return LocalPrefix + rel, nil
}

// Delete removes the object behind ref. Missing objects and foreign references are ignored.
func (s *LocalStore) Delete(_ context.Context, ref string) error {
	if !strings.HasPrefix(ref, LocalPrefix) {
		return nil
	}
	abs, _, err := s.resolve(strings.TrimPrefix(ref, LocalPrefix))
	if err == nil {
		err = os.Remove(abs)
		if errors.Is(err, os.ErrNotExist) {
			err = nil
		}
	}
	record(s.Backend(), "delete", err)
	return err
}

// resolve maps an object name to a path inside Dir, refusing traversal.
func (s *LocalStore) resolve(name string) (abs, rel string, err error) {
	clean := path.Clean("/" + name)
	if clean == "/" {
		return "", "", fmt.Errorf("invalid object name %q", name)
	}
	rel = strings.TrimPrefix(clean, "/")
	return filepath.Join(s.Dir, filepath.FromSlash(rel)), rel, nil
}

func writeBytesToFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
