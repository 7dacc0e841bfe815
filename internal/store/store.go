// Package store provides the document store: atomic read/write of JSON
// documents keyed by a filesystem path, advisory exclusive locking bounded
// by a timeout, and version-checked writes. It is the only layer in the
// runtime that touches state documents on disk directly.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
)

// Store is the document store contract. Paths are logical document
// identifiers relative to the store's root (e.g.
// "experiences/west-of-house/state/world.json").
type Store interface {
	// Read loads and unmarshals the document at path into v. Returns
	// apperr.NotFound if it doesn't exist, apperr.Corrupt if it exists but
	// doesn't parse (the document is quarantined as a side effect).
	Read(path string, v any) error

	// Write marshals v and writes it to path via temp-file + atomic
	// rename. If expectedVersion is non-nil, the write fails with
	// apperr.VersionConflict (without writing) unless the document
	// currently at path has metadata._version equal to *expectedVersion,
	// or the document does not yet exist and *expectedVersion == 0.
	Write(path string, v any, expectedVersion *int) error

	// WithLock acquires an advisory exclusive lock on path, bounded by
	// timeout, then runs fn while holding it. The lock is released on
	// every exit path from fn, including panics propagated through fn's
	// own error return.
	WithLock(path string, timeout time.Duration, fn func() error) error

	// List returns document paths under prefix (directory walk, relative
	// to the store root, slash-separated).
	List(prefix string) ([]string, error)

	// Delete removes the document at path. Deleting a path that does not
	// exist is not an error.
	Delete(path string) error

	// Exists reports whether a document exists at path, ignoring locks.
	Exists(path string) bool
}

// versionedMeta is the subset of a document's metadata this package needs
// to read in order to enforce expected-version checks without knowledge of
// the document's full shape.
type versionedMeta struct {
	Metadata struct {
		Version int `json:"_version"`
	} `json:"metadata"`
}

// FileStore is the reference filesystem implementation of Store.
type FileStore struct {
	root string
}

// NewFileStore returns a FileStore rooted at root. root must already exist.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) abs(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

func (s *FileStore) Exists(path string) bool {
	_, err := os.Stat(s.abs(path))
	return err == nil
}

func (s *FileStore) Read(path string, v any) error {
	full := s.abs(path)
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return apperr.New(apperr.NotFound, fmt.Sprintf("no document at %q", path))
		}
		return apperr.Wrap(apperr.TransportError, fmt.Sprintf("reading %q", path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		quarantined := s.quarantine(full)
		msg := fmt.Sprintf("document at %q is unparseable, quarantined at %q", path, quarantined)
		return apperr.Wrap(apperr.Corrupt, msg, err)
	}
	return nil
}

// quarantine renames an unparseable document aside so the store never
// serves it again, and returns the new path. Best-effort: if the rename
// itself fails, the original path is returned unchanged.
func (s *FileStore) quarantine(full string) string {
	dest := fmt.Sprintf("%s.corrupt.%d", full, time.Now().UnixNano())
	if err := os.Rename(full, dest); err != nil {
		return full
	}
	return dest
}

func (s *FileStore) Write(path string, v any, expectedVersion *int) error {
	full := s.abs(path)

	if expectedVersion != nil {
		current, err := s.currentVersion(full)
		if err != nil {
			return err
		}
		if current != *expectedVersion {
			return apperr.New(apperr.VersionConflict,
				fmt.Sprintf("expected version %d for %q, found %d", *expectedVersion, path, current))
		}
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return apperr.Wrap(apperr.TransportError, fmt.Sprintf("creating directory for %q", path), err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.TransportError, fmt.Sprintf("marshaling %q", path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".tmp-*")
	if err != nil {
		return apperr.Wrap(apperr.TransportError, fmt.Sprintf("creating temp file for %q", path), err)
	}
	tmpName := tmp.Name()
	// Ensure the temp file never survives a failed write.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperr.Wrap(apperr.TransportError, fmt.Sprintf("writing %q", path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return apperr.Wrap(apperr.TransportError, fmt.Sprintf("syncing %q", path), err)
	}
	if err := tmp.Close(); err != nil {
		return apperr.Wrap(apperr.TransportError, fmt.Sprintf("closing temp file for %q", path), err)
	}

	if err := os.Rename(tmpName, full); err != nil {
		return apperr.Wrap(apperr.TransportError, fmt.Sprintf("renaming into place for %q", path), err)
	}
	return nil
}

func (s *FileStore) currentVersion(full string) (int, error) {
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, apperr.Wrap(apperr.TransportError, "reading current version", err)
	}
	var meta versionedMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		quarantined := s.quarantine(full)
		return 0, apperr.Wrap(apperr.Corrupt, fmt.Sprintf("document unparseable, quarantined at %q", quarantined), err)
	}
	return meta.Metadata.Version, nil
}

// lockPath returns the sidecar lock file path for a document path. Locking
// a separate sidecar (rather than flock-ing the document itself) keeps the
// atomic rename free to replace the document file without disturbing an
// in-progress lock.
func (s *FileStore) lockPath(path string) string {
	return s.abs(path) + ".lock"
}

func (s *FileStore) WithLock(path string, timeout time.Duration, fn func() error) error {
	full := s.lockPath(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return apperr.Wrap(apperr.TransportError, fmt.Sprintf("creating lock directory for %q", path), err)
	}

	fl := flock.New(full)
	deadlineCtx, cancel := timeoutContext(timeout)
	defer cancel()

	locked, err := fl.TryLockContext(deadlineCtx, 25*time.Millisecond)
	if err != nil || !locked {
		return apperr.New(apperr.LockTimeout, fmt.Sprintf("timed out acquiring lock on %q after %s", path, timeout))
	}
	defer fl.Unlock()

	return fn()
}

func (s *FileStore) List(prefix string) ([]string, error) {
	base := s.abs(prefix)
	var out []string
	err := filepath.WalkDir(base, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == base {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(s.root, p)
		if relErr != nil {
			return relErr
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.TransportError, fmt.Sprintf("listing %q", prefix), err)
	}
	return out, nil
}

func (s *FileStore) Delete(path string) error {
	full := s.abs(path)
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return apperr.Wrap(apperr.TransportError, fmt.Sprintf("deleting %q", path), err)
	}
	return nil
}
