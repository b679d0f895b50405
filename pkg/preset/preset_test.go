package preset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/fractalglass/pkg/config"
	"github.com/matzehuels/fractalglass/pkg/errors"
	"github.com/matzehuels/fractalglass/pkg/settings"
)

func TestFileStoreSaveGet(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "presets.toml")
	store := NewFileStore(path)
	defer store.Close()

	if all, err := store.List(ctx); err != nil || len(all) != 0 {
		t.Fatalf("empty List = %v, %v", all, err)
	}

	s := settings.Defaults()
	s.Hue = 120
	s.Steps = 500 // clamped
	p, err := store.Save(ctx, "warm", s)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(p.ID); err != nil {
		t.Errorf("ID %q is not a UUID", p.ID)
	}
	if p.Settings.Steps != 64 {
		t.Errorf("steps = %d, want clamped 64", p.Settings.Steps)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("presets file not written: %v", err)
	}

	got, err := store.Get(ctx, "warm")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != p.ID || got.Settings.Hue != 120 {
		t.Errorf("Get = %+v", got)
	}
}

func TestFileStoreReplaceKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "presets.toml"))
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	first, err := store.Save(ctx, "a", settings.Defaults())
	if err != nil {
		t.Fatal(err)
	}
	clock = clock.Add(time.Hour)
	s := settings.Defaults()
	s.Flip = true
	second, err := store.Save(ctx, "a", s)
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Error("replacing a preset should keep its ID")
	}
	if !second.CreatedAt.Equal(first.CreatedAt) || !second.UpdatedAt.After(first.UpdatedAt) {
		t.Errorf("timestamps: created %v/%v updated %v/%v",
			first.CreatedAt, second.CreatedAt, first.UpdatedAt, second.UpdatedAt)
	}
	all, _ := store.List(ctx)
	if len(all) != 1 || !all[0].Settings.Flip {
		t.Errorf("List = %+v", all)
	}
}

func TestFileStoreListSorted(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "presets.toml"))
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := store.Save(ctx, name, settings.Defaults()); err != nil {
			t.Fatal(err)
		}
	}
	all, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, p := range all {
		names = append(names, p.Name)
	}
	if strings.Join(names, ",") != "alpha,mid,zeta" {
		t.Errorf("order = %v", names)
	}
}

func TestFileStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "presets.toml"))
	_, _ = store.Save(ctx, "a", settings.Defaults())
	_, _ = store.Save(ctx, "b", settings.Defaults())

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "a"); !errors.Is(err, errors.ErrCodePresetNotFound) {
		t.Errorf("Get deleted: %v", err)
	}
	if err := store.Delete(ctx, "a"); !errors.IsNotFound(err) {
		t.Errorf("second Delete: %v", err)
	}
	if _, err := store.Get(ctx, "b"); err != nil {
		t.Errorf("other preset lost: %v", err)
	}
}

func TestFileStoreRejectsBadNames(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "presets.toml"))
	for _, name := range []string{"", "../x", "has space", strings.Repeat("a", 65)} {
		if _, err := store.Save(ctx, name, settings.Defaults()); !errors.Is(err, errors.ErrCodeInvalidName) {
			t.Errorf("Save(%q) = %v, want INVALID_NAME", name, err)
		}
	}
}

func TestFileStoreClampsHandEditedFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "presets.toml")
	doc := `
[[preset]]
id = "x"
name = "loud"
[preset.settings]
scale = 1000
numOctaves = 20
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := NewFileStore(path).Get(ctx, "loud")
	if err != nil {
		t.Fatal(err)
	}
	if p.Settings.Scale != 40 || p.Settings.NumOctaves != 8 {
		t.Errorf("settings = %+v", p.Settings)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.toml")
	if err := os.WriteFile(path, []byte("[[preset"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path).List(context.Background()); !errors.Is(err, errors.ErrCodeInternal) {
		t.Errorf("List corrupt = %v", err)
	}
}

func TestOpenFileBackend(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	store, err := Open(context.Background(), config.Presets{Backend: config.BackendFile})
	if err != nil {
		t.Fatal(err)
	}
	fs, ok := store.(*FileStore)
	if !ok {
		t.Fatalf("store = %T", store)
	}
	if filepath.Base(fs.Path()) != "presets.toml" || !strings.Contains(fs.Path(), config.AppName) {
		t.Errorf("Path = %s", fs.Path())
	}

	if _, err := Open(context.Background(), config.Presets{Backend: "sqlite"}); err == nil {
		t.Error("unknown backend should fail")
	}
}

func TestMongoStoreUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := NewMongoStore(ctx, MongoConfig{
		URI:            "mongodb://127.0.0.1:1",
		ConnectTimeout: 200 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected connection error")
	}
}
