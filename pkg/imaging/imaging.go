// Package imaging sniffs and decodes uploaded images.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrNotAnImage  = errors.New("content is not an image")
	ErrUndecodable = errors.New("image cannot be decoded")
	// ErrTooManyPixels is returned before any pixel buffer is allocated.
	ErrTooManyPixels = errors.New("image exceeds the pixel limit")
)

type Decoded struct {
	Format string
	Width  int
	Height int
}

// Sniff returns the detected MIME type, or ErrNotAnImage when the payload
// does not look like an image regardless of what the client declared.
func Sniff(data []byte) (string, error) {
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return mtype.String(), fmt.Errorf("%w: detected %s", ErrNotAnImage, mtype.String())
	}
	return mtype.String(), nil
}

// Decode reads the header and refuses images larger than maxPixels, then
// decodes the pixel data so truncated payloads fail here rather than in the
// estimator. The decoded pixels are not kept. maxPixels <= 0 disables the
// limit.
func Decode(data []byte, maxPixels int64) (*Decoded, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty size %dx%d", ErrUndecodable, cfg.Width, cfg.Height)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d is over %d pixels", ErrTooManyPixels, cfg.Width, cfg.Height, maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	bounds := img.Bounds()
	return &Decoded{
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
