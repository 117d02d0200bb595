package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// FileStore keeps one file per run in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// Path is the file of run pid.
func (s *FileStore) Path(pid uuid.UUID) string {
	return filepath.Join(s.dir, objectName(pid))
}

// Put writes rec, replacing an earlier dump of the same run.
func (s *FileStore) Put(_ context.Context, rec *Record) error {
	tmp, err := os.CreateTemp(s.dir, "dump-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := Encode(tmp, rec); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path(rec.PID))
}

// Get reads the record of run pid.
func (s *FileStore) Get(_ context.Context, pid uuid.UUID) (*Record, error) {
	f, err := os.Open(s.Path(pid))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// List returns the stored runs ordered by PID.
func (s *FileStore) List(_ context.Context) ([]uuid.UUID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	pids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, extension) {
			continue
		}
		pid, err := uuid.Parse(strings.TrimSuffix(name, extension))
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i].String() < pids[j].String() })
	return pids, nil
}
