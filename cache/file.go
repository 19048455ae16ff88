package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	defaultDirPerm  = 0o700
	defaultFilePerm = 0o600
	entryExt        = ".json"
)

// FileStore implements Store on the local filesystem.
//
// Entries live at <dir>/<namespace>/<digest>.json as indented JSON so they
// can be inspected by hand. Writes go to a temp file in the target
// directory and are renamed into place, so readers see either the old or
// the new entry. Concurrent writers to the same key: last rename wins.
type FileStore struct {
	dir      string
	dirPerm  os.FileMode
	filePerm os.FileMode
	indent   bool
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithDirPerm sets the permissions used for namespace directories.
func WithDirPerm(mode os.FileMode) FileOption {
	return func(s *FileStore) {
		s.dirPerm = mode
	}
}

// WithFilePerm sets the permissions of entry files.
func WithFilePerm(mode os.FileMode) FileOption {
	return func(s *FileStore) {
		s.filePerm = mode
	}
}

// WithCompactJSON stores entries without indentation.
func WithCompactJSON() FileOption {
	return func(s *FileStore) {
		s.indent = false
	}
}

// NewFileStore creates a file store rooted at dir, creating dir if needed.
func NewFileStore(dir string, opts ...FileOption) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("cache: store dir is empty")
	}
	s := &FileStore{
		dir:      dir,
		dirPerm:  defaultDirPerm,
		filePerm: defaultFilePerm,
		indent:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return nil, fmt.Errorf("%w: create store dir: %v", ErrCacheIO, err)
	}
	return s, nil
}

// Dir returns the root directory of the store.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file path an entry for key is stored at.
func (s *FileStore) Path(key Key) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, key.Namespace, key.Digest+entryExt), nil
}

// Load reads the entry for key. Returns ErrNotFound on miss.
func (s *FileStore) Load(ctx context.Context, key Key) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.Path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is derived from a validated key
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrCacheIO, key, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: corrupt entry %s: %v", ErrCacheIO, key, err)
	}
	if entry.Key != key {
		return nil, fmt.Errorf("%w: entry at %s is keyed %s", ErrCacheIO, key, entry.Key)
	}
	return &entry, nil
}

// Save writes entry atomically, replacing any previous entry for its key.
func (s *FileStore) Save(ctx context.Context, entry *Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.Path(entry.Key)
	if err != nil {
		return err
	}

	var data []byte
	if s.indent {
		data, err = json.MarshalIndent(entry, "", "  ")
	} else {
		data, err = json.Marshal(entry)
	}
	if err != nil {
		return fmt.Errorf("%w: marshal entry %s: %v", ErrEncoding, entry.Key, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return fmt.Errorf("%w: create namespace dir: %v", ErrCacheIO, err)
	}
	if err := writeFileAtomic(dir, path, data, s.filePerm); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrCacheIO, entry.Key, err)
	}
	return nil
}

// Delete removes the entry for key. Idempotent - no error on miss.
func (s *FileStore) Delete(_ context.Context, key Key) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: delete %s: %v", ErrCacheIO, key, err)
	}
	return nil
}

// Probe verifies the store directory is writable by creating and removing
// a temp file.
func (s *FileStore) Probe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.CreateTemp(s.dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("%w: probe: %v", ErrCacheIO, err)
	}
	name := f.Name()
	closeErr := f.Close()
	removeErr := os.Remove(name)
	if err := errors.Join(closeErr, removeErr); err != nil {
		return fmt.Errorf("%w: probe: %v", ErrCacheIO, err)
	}
	return nil
}

func writeFileAtomic(dir, path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(dir, ".entry-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// Ensure FileStore implements Store
var _ Store = (*FileStore)(nil)
