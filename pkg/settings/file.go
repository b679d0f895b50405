package settings

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Decode reads TOML settings from r. Keys absent from the document keep their
// default value; out-of-range values are clamped.
func Decode(r io.Reader) (Settings, error) {
	s := Defaults()
	md, err := toml.NewDecoder(r).Decode(&s)
	if err != nil {
		return Defaults(), fmt.Errorf("decode settings: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Defaults(), &UnknownFieldError{Key: undecoded[0].String()}
	}
	return s.Clamp(), nil
}

// Encode writes s to w as TOML.
func Encode(w io.Writer, s Settings) error {
	return toml.NewEncoder(w).Encode(s)
}

// Load reads settings from a TOML file.
func Load(path string) (Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return Defaults(), err
	}
	defer f.Close()
	return Decode(f)
}

// Save writes settings to a TOML file, creating parent directories.
func Save(path string, s Settings) error {
	var buf bytes.Buffer
	if err := Encode(&buf, s); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
