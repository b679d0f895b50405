package pipeline

import (
	"context"

	"github.com/matzehuels/fractalglass/pkg/errors"
	"github.com/matzehuels/fractalglass/pkg/source"
)

// Load resolves opts.Input to an image and checks that it decodes.
func Load(ctx context.Context, opts Options) (*source.Image, error) {
	if err := opts.ValidateForLoad(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	in := opts.Input
	var (
		img *source.Image
		err error
	)
	switch {
	case !in.Image.Empty():
		img = in.Image
	case in.Path != "":
		opts.Logger.Debug("loading image", "path", in.Path)
		img, err = source.Load(in.Path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidImage, err, "load %s", in.Path)
		}
	case in.DataURL != "":
		img, err = source.FromDataURL(in.DataURL)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidImage, err, "read data URL")
		}
	default:
		img, err = source.New(in.Name, "", in.Data)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidImage, err, "read image data")
		}
	}

	if _, _, err := img.Size(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidImage, err, "unsupported image")
	}
	return img, nil
}
