// Package source holds the image the effect is applied to.
//
// An [Image] is the raw file bytes plus a MIME type. Vector sinks embed it as
// a data URL, exactly as a browser FileReader would produce it; the raster
// sink decodes it once and reuses the pixels.
//
// Decoding supports the standard library formats (PNG, JPEG, GIF) plus WebP,
// BMP and TIFF through golang.org/x/image. No other validation is performed:
// whatever the decoder accepts is an image.
package source

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrEmpty is returned when an image has no data.
var ErrEmpty = errors.New("empty image")

// Image is a selected source image. The zero value and nil both mean "no image".
// An Image is immutable once created and safe for concurrent use.
type Image struct {
	Name string // original file name, informational
	MIME string // e.g. "image/png"
	Data []byte

	once    sync.Once
	decoded image.Image
	format  string
	err     error
}

// New wraps raw file bytes. If mime is empty it is sniffed from the data.
func New(name, mime string, data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return &Image{Name: name, MIME: mime, Data: data}, nil
}

// Load reads an image file from disk.
func Load(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := New(filepath.Base(path), mimeFromExt(path), data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// FromDataURL parses a base64 data URL ("data:image/png;base64,...").
func FromDataURL(s string) (*Image, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URL")
	}
	mime, enc, _ := strings.Cut(meta, ";")
	if enc != "base64" {
		return nil, fmt.Errorf("unsupported data URL encoding %q", enc)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data URL: %w", err)
	}
	return New("", mime, data)
}

// Empty reports whether img carries no image.
func (img *Image) Empty() bool {
	return img == nil || len(img.Data) == 0
}

// DataURL returns the image encoded as a base64 data URL.
func (img *Image) DataURL() string {
	if img.Empty() {
		return ""
	}
	return "data:" + img.MIME + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// Hash returns the hex SHA-256 of the image bytes.
func (img *Image) Hash() string {
	if img.Empty() {
		return ""
	}
	sum := sha256.Sum256(img.Data)
	return hex.EncodeToString(sum[:])
}

// Decode returns the decoded pixels. The result is computed once.
func (img *Image) Decode() (image.Image, error) {
	if img.Empty() {
		return nil, ErrEmpty
	}
	img.once.Do(func() {
		img.decoded, img.format, img.err = image.Decode(bytes.NewReader(img.Data))
		if img.err != nil {
			img.err = fmt.Errorf("decode %s: %w", img.describe(), img.err)
		}
	})
	return img.decoded, img.err
}

// Size returns the decoded pixel dimensions.
func (img *Image) Size() (int, int, error) {
	d, err := img.Decode()
	if err != nil {
		return 0, 0, err
	}
	b := d.Bounds()
	return b.Dx(), b.Dy(), nil
}

func (img *Image) describe() string {
	if img.Name != "" {
		return img.Name
	}
	return img.MIME
}

func mimeFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".svg":
		return "image/svg+xml"
	}
	return ""
}
