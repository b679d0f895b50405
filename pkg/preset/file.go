package preset

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/fractalglass/pkg/errors"
	"github.com/matzehuels/fractalglass/pkg/settings"
)

// FileStore keeps presets in one TOML file:
//
//	[[preset]]
//	id = "..."
//	name = "warm"
//	[preset.settings]
//	hue = 30
type FileStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

type presetFile struct {
	Presets []Preset `toml:"preset"`
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store backed by the file at path. The file is
// created on the first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Path returns the presets file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) List(ctx context.Context) ([]Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) Get(ctx context.Context, name string) (Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return Preset{}, err
	}
	if i := index(all, name); i >= 0 {
		return all[i], nil
	}
	return Preset{}, notFound(name)
}

func (s *FileStore) Save(ctx context.Context, name string, st settings.Settings) (Preset, error) {
	st, err := prepare(name, st)
	if err != nil {
		return Preset{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return Preset{}, err
	}
	now := s.now()
	var p Preset
	if i := index(all, name); i >= 0 {
		all[i].Settings = st
		all[i].UpdatedAt = now
		p = all[i]
	} else {
		p = newPreset(name, st, now)
		all = append(all, p)
	}
	if err := s.write(all); err != nil {
		return Preset{}, err
	}
	return p, nil
}

func (s *FileStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return err
	}
	i := index(all, name)
	if i < 0 {
		return notFound(name)
	}
	return s.write(slices.Delete(all, i, i+1))
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) read() ([]Preset, error) {
	var f presetFile
	if _, err := toml.DecodeFile(s.path, &f); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read presets %s", s.path)
	}
	for i := range f.Presets {
		f.Presets[i].Settings = f.Presets[i].Settings.Clamp()
	}
	slices.SortFunc(f.Presets, func(a, b Preset) int { return strings.Compare(a.Name, b.Name) })
	return f.Presets, nil
}

// write replaces the file through a rename so readers never see a partial
// document.
func (s *FileStore) write(all []Preset) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(presetFile{Presets: all}); err != nil {
		return fmt.Errorf("encode presets: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".presets-*.toml")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func index(all []Preset, name string) int {
	return slices.IndexFunc(all, func(p Preset) bool { return p.Name == name })
}
