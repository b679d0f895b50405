package source

import (
	"context"
	"errors"

	"github.com/ncruces/zenity"
)

// ErrCanceled is returned by Choose when the user dismisses the dialog.
var ErrCanceled = errors.New("file selection canceled")

// Patterns lists the file patterns offered by the chooser.
var Patterns = []string{"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.bmp", "*.tif", "*.tiff"}

// Choose opens the platform file chooser filtered to image files and loads the
// selected file.
func Choose(ctx context.Context) (*Image, error) {
	path, err := zenity.SelectFile(
		zenity.Context(ctx),
		zenity.Title("Upload Image"),
		zenity.FileFilters{{
			Name:     "Images",
			Patterns: Patterns,
		}},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return nil, ErrCanceled
		}
		return nil, err
	}
	return Load(path)
}
