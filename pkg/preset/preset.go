// Package preset stores named settings snapshots.
//
// A [Preset] is a [settings.Settings] value saved under a name so it can be
// applied to a session later. Two backends implement [Store]:
//   - [FileStore]: a single TOML file, the default for local use
//   - [MongoStore]: a MongoDB collection shared between server instances
//
// Names are validated with [errors.ValidatePresetName]. Saving under an
// existing name replaces its settings but keeps its ID and creation time.
package preset

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/fractalglass/pkg/config"
	"github.com/matzehuels/fractalglass/pkg/errors"
	"github.com/matzehuels/fractalglass/pkg/settings"
)

// Preset is a named settings snapshot.
type Preset struct {
	ID        string            `toml:"id" json:"id" bson:"_id"`
	Name      string            `toml:"name" json:"name" bson:"name"`
	Settings  settings.Settings `toml:"settings" json:"settings" bson:"settings"`
	CreatedAt time.Time         `toml:"created_at" json:"created_at" bson:"created_at"`
	UpdatedAt time.Time         `toml:"updated_at" json:"updated_at" bson:"updated_at"`
}

// Store is the interface for preset storage.
type Store interface {
	// List returns every preset ordered by name.
	List(ctx context.Context) ([]Preset, error)

	// Get returns the preset called name, or a PRESET_NOT_FOUND error.
	Get(ctx context.Context, name string) (Preset, error)

	// Save stores s under name, creating or replacing the preset.
	Save(ctx context.Context, name string, s settings.Settings) (Preset, error)

	// Delete removes the preset called name, or returns PRESET_NOT_FOUND.
	Delete(ctx context.Context, name string) error

	// Close releases the backend's resources.
	Close() error
}

// Open returns the store selected by cfg.
func Open(ctx context.Context, cfg config.Presets) (Store, error) {
	switch cfg.Backend {
	case config.BackendMongo:
		return NewMongoStore(ctx, MongoConfig{
			URI:        cfg.MongoURI,
			Database:   cfg.Database,
			Collection: cfg.Collection,
		})
	case config.BackendFile, "":
		path := cfg.File
		if path == "" {
			dir, err := config.DataDir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(dir, "presets.toml")
		}
		return NewFileStore(path), nil
	default:
		return nil, fmt.Errorf("unknown preset backend %q", cfg.Backend)
	}
}

func newPreset(name string, s settings.Settings, now time.Time) Preset {
	return Preset{
		ID:        uuid.NewString(),
		Name:      name,
		Settings:  s,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// prepare validates a save request and clamps the settings.
func prepare(name string, s settings.Settings) (settings.Settings, error) {
	if err := errors.ValidatePresetName(name); err != nil {
		return s, err
	}
	return s.Clamp(), nil
}

func notFound(name string) error {
	return errors.New(errors.ErrCodePresetNotFound, "preset %q not found", name)
}
