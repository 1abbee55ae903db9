package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FileStore persists the lock record as a single four-line text file on a
// shared filesystem:
//
//	<owner>
//	<token>
//	<acquired_at as float seconds since epoch>
//	<duration as float seconds>
//
// The O_CREATE|O_EXCL creation of that file is the mutual-exclusion
// primitive: the filesystem guarantees that under concurrent acquisition
// attempts exactly one succeeds.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed lock store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the location of the lock file.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) TryAcquire(_ context.Context, rec Record) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create lock dir: %w", err)
		}
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return ErrAlreadyLocked
		}
		return fmt.Errorf("create lock file: %w", err)
	}

	if _, err := file.WriteString(encodeRecord(rec)); err != nil {
		file.Close()
		os.Remove(s.path)
		return fmt.Errorf("write lock record: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(s.path)
		return fmt.Errorf("close lock file: %w", err)
	}
	return nil
}

func (s *FileStore) Get(_ context.Context) (Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, ErrNotLocked
		}
		return Record{}, fmt.Errorf("read lock file: %w", err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		// Malformed records are repaired by deletion, never propagated
		// as a crash.
		os.Remove(s.path)
		return Record{}, ErrCorrupted
	}
	return rec, nil
}

func (s *FileStore) Release(ctx context.Context, owner, token string, force bool) error {
	if force {
		if err := os.Remove(s.path); err != nil {
			if os.IsNotExist(err) {
				return ErrNotLocked
			}
			return fmt.Errorf("remove lock file: %w", err)
		}
		return nil
	}

	rec, err := s.Get(ctx)
	if err != nil {
		return err
	}
	if rec.Owner != owner || rec.Token != token {
		return ErrPermissionDenied
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}

func (s *FileStore) Extend(ctx context.Context, d time.Duration) error {
	rec, err := s.Get(ctx)
	if err != nil {
		return err
	}
	rec.Duration = d

	// Rewrite through a temp file so concurrent readers never observe a
	// partially written record.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".lock-*")
	if err != nil {
		return fmt.Errorf("create temp lock file: %w", err)
	}
	if _, err := tmp.WriteString(encodeRecord(rec)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write lock record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp lock file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace lock file: %w", err)
	}
	return nil
}

func encodeRecord(rec Record) string {
	acquired := float64(rec.AcquiredAt.UnixNano()) / float64(time.Second)
	return strings.Join([]string{
		rec.Owner,
		rec.Token,
		strconv.FormatFloat(acquired, 'f', -1, 64),
		strconv.FormatFloat(rec.Duration.Seconds(), 'f', -1, 64),
	}, "\n")
}

func decodeRecord(data []byte) (Record, error) {
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) < 4 {
		return Record{}, fmt.Errorf("expected 4 lines, got %d", len(lines))
	}

	owner := strings.TrimSpace(lines[0])
	token := strings.TrimSpace(lines[1])
	if owner == "" || token == "" {
		return Record{}, fmt.Errorf("empty owner or token")
	}

	acquired, err := strconv.ParseFloat(strings.TrimSpace(lines[2]), 64)
	if err != nil {
		return Record{}, fmt.Errorf("parse acquisition time: %w", err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(lines[3]), 64)
	if err != nil {
		return Record{}, fmt.Errorf("parse duration: %w", err)
	}

	return Record{
		Owner:      owner,
		Token:      token,
		AcquiredAt: time.Unix(0, int64(acquired*float64(time.Second))),
		Duration:   time.Duration(seconds * float64(time.Second)),
	}, nil
}
