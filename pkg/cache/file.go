package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FileCache keeps rendered artifacts on disk for the CLI. An artifact lives
// at <dir>/<hash[:2]>/<hash[2:]>.json, where hash is the SHA-256 of its key.
type FileCache struct {
	dir string
}

// NewFileCache opens (and creates) a cache rooted at dir.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir}, nil
}

// artifactFile is the on-disk form of one cached render.
type artifactFile struct {
	Data      []byte    `json:"data"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

func (a artifactFile) expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt)
}

// Get returns the artifact stored under key. Expired and unreadable
// entries are removed and reported as misses.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	p := c.path(key)
	a, err := readArtifact(p)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, false, nil
	case errors.Is(err, errCorrupt):
		_ = os.Remove(p)
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	if a.expired(time.Now()) {
		_ = os.Remove(p)
		return nil, false, nil
	}
	return a.Data, true, nil
}

// Set writes the artifact through a temporary file so a concurrent Get
// never sees a partial entry.
func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	now := time.Now()
	a := artifactFile{Data: data, StoredAt: now}
	if ttl > 0 {
		a.ExpiresAt = now.Add(ttl)
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}

	p := c.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".artifact-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

// Delete removes key. A missing entry is not an error.
func (c *FileCache) Delete(ctx context.Context, key string) error {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Close is a no-op.
func (c *FileCache) Close() error { return nil }

// Dir returns the cache root.
func (c *FileCache) Dir() string { return c.dir }

// Clear removes every artifact and returns how many were removed.
func (c *FileCache) Clear() (int, error) {
	return c.sweep(func(string) bool { return true })
}

// Prune removes the artifacts that have expired or can no longer be read,
// and returns how many were removed.
func (c *FileCache) Prune() (int, error) {
	now := time.Now()
	return c.sweep(func(p string) bool {
		a, err := readArtifact(p)
		if errors.Is(err, errCorrupt) {
			return true
		}
		return err == nil && a.expired(now)
	})
}

func (c *FileCache) sweep(remove func(path string) bool) (int, error) {
	entries, err := filepath.Glob(filepath.Join(c.dir, "*", "*.json"))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range entries {
		if !remove(p) {
			continue
		}
		if err := os.Remove(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}

func (c *FileCache) path(key string) string {
	h := Hash([]byte(key))
	return filepath.Join(c.dir, h[:2], h[2:]+".json")
}

var errCorrupt = errors.New("corrupt cache entry")

func readArtifact(p string) (artifactFile, error) {
	var a artifactFile
	raw, err := os.ReadFile(p)
	if err != nil {
		return a, err
	}
	if err := json.Unmarshal(raw, &a); err != nil {
		return a, errCorrupt
	}
	return a, nil
}

var _ Cache = (*FileCache)(nil)
