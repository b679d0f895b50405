package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/matzehuels/fractalglass/pkg/settings"
	"github.com/matzehuels/fractalglass/pkg/source"
)

// State is the persistable part of a session: its settings and image.
type State struct {
	ID        string            `json:"id"`
	Settings  settings.Settings `json:"settings"`
	ImageName string            `json:"image_name,omitempty"`
	Image     string            `json:"image,omitempty"` // data URL
	UpdatedAt time.Time         `json:"updated_at"`
}

// Capture returns the current state of sess.
func Capture(sess *Session) State {
	c := sess.Controller()
	st := State{ID: sess.ID, Settings: c.Settings(), UpdatedAt: time.Now()}
	if img := c.Image(); !img.Empty() {
		st.ImageName = img.Name
		st.Image = img.DataURL()
	}
	return st
}

// Restore decodes the saved image. It returns nil when the state has none.
func (st State) Restore() (*source.Image, error) {
	if st.Image == "" {
		return nil, nil
	}
	img, err := source.FromDataURL(st.Image)
	if err != nil {
		return nil, fmt.Errorf("restore image: %w", err)
	}
	img.Name = st.ImageName
	return img, nil
}

// FileStore saves session states as JSON files in a directory.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewFileStore creates a new file-based state store.
// If baseDir is empty, defaults to the user config dir under fractalglass/sessions.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("get config dir: %w", err)
		}
		baseDir = filepath.Join(dir, "fractalglass", "sessions")
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) statePath(id string) string {
	return filepath.Join(s.baseDir, id+".json")
}

// Load reads a saved state. A missing state is ErrNotFound.
func (s *FileStore) Load(ctx context.Context, id string) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if strings.ContainsAny(id, `/\`) || id == "" {
		return State{}, ErrNotFound
	}
	data, err := os.ReadFile(s.statePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, ErrNotFound
		}
		return State{}, fmt.Errorf("read session file: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("parse session: %w", err)
	}
	st.Settings = st.Settings.Clamp()
	return st, nil
}

// Save writes a state, replacing any earlier one with the same ID.
func (s *FileStore) Save(ctx context.Context, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st.ID == "" || strings.ContainsAny(st.ID, `/\`) {
		return fmt.Errorf("invalid session id %q", st.ID)
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now()
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(s.statePath(st.ID), data, 0600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// Delete removes a saved state.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.statePath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// List returns the IDs of saved states, most recently updated first.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read session dir: %w", err)
	}

	type item struct {
		id  string
		mod time.Time
	}
	var items []item
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		items = append(items, item{strings.TrimSuffix(entry.Name(), ".json"), info.ModTime()})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].mod.After(items[j].mod) })

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.id
	}
	return ids, nil
}

// Path returns the base directory for session files.
func (s *FileStore) Path() string {
	return s.baseDir
}

// =============================================================================
// CLI convenience wrapper
// =============================================================================

const defaultCLIStateID = "last"

// CLIStore wraps FileStore for the terminal panel's single resumable state.
type CLIStore struct {
	store *FileStore
	id    string
}

// NewCLIStore creates a store for the terminal panel. An empty dir uses the
// default location.
func NewCLIStore(dir string) (*CLIStore, error) {
	store, err := NewFileStore(dir)
	if err != nil {
		return nil, err
	}
	return &CLIStore{store: store, id: defaultCLIStateID}, nil
}

// LoadState retrieves the saved state.
func (c *CLIStore) LoadState(ctx context.Context) (State, error) {
	return c.store.Load(ctx, c.id)
}

// SaveState stores st as the resumable state.
func (c *CLIStore) SaveState(ctx context.Context, st State) error {
	st.ID = c.id
	return c.store.Save(ctx, st)
}

// DeleteState removes the saved state.
func (c *CLIStore) DeleteState(ctx context.Context) error {
	return c.store.Delete(ctx, c.id)
}

// Path returns the state file path.
func (c *CLIStore) Path() string {
	return c.store.statePath(c.id)
}
