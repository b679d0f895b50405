package errors

import (
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"unicode"
)

// MaxPresetNameLength bounds preset names so they stay usable as file names
// and document keys.
const MaxPresetNameLength = 64

var presetNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidatePresetName validates a preset name for safety and correctness.
// Names become file names in the file store, so the rules are conservative:
//   - No empty names
//   - At most MaxPresetNameLength characters
//   - Letters, digits, '.', '_' and '-' only, starting with a letter or digit
//   - No ".." sequences
func ValidatePresetName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidName, "preset name cannot be empty")
	}
	if len(name) > MaxPresetNameLength {
		return New(ErrCodeInvalidName, "preset name too long (max %d characters)", MaxPresetNameLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidName, "preset name contains invalid control characters")
		}
	}
	if strings.Contains(name, "..") {
		return New(ErrCodeInvalidName, "preset name cannot contain %q", "..")
	}
	if !presetNameRegex.MatchString(name) {
		return New(ErrCodeInvalidName, "invalid preset name: %q", name)
	}
	return nil
}

// imageExtensions are the file extensions offered by the file chooser and
// accepted on upload. Decoding decides whether the bytes really are an image.
var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tif", ".tiff"}

// ImageExtensions returns the accepted image file extensions.
func ImageExtensions() []string {
	return slices.Clone(imageExtensions)
}

// ValidateUpload validates an uploaded image's file name and size.
// A max of zero disables the size check.
func ValidateUpload(filename string, size, max int64) error {
	if size == 0 {
		return New(ErrCodeInvalidImage, "uploaded file is empty")
	}
	if max > 0 && size > max {
		return New(ErrCodeTooLarge, "image too large (%d bytes, max %d)", size, max)
	}
	if filename == "" {
		return nil
	}
	if strings.ContainsRune(filename, '\x00') {
		return New(ErrCodeInvalidImage, "file name contains invalid characters")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != "" && !slices.Contains(imageExtensions, ext) {
		return New(ErrCodeInvalidImage, "unsupported image type %q", ext)
	}
	return nil
}

// ValidateSessionID validates a session identifier taken from a request path.
func ValidateSessionID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "session id cannot be empty")
	}
	if len(id) > 64 {
		return New(ErrCodeInvalidInput, "session id too long")
	}
	for _, r := range id {
		if !(r == '-' || unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return New(ErrCodeInvalidInput, "malformed session id")
		}
	}
	return nil
}
