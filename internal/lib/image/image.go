// Package image resizes uploaded tour images and user photos.
package image

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// ErrNotImage is returned for uploads that do not decode as an image.
var ErrNotImage = errors.New("not an image")

// Size is a target crop.
type Size struct {
	Width  int
	Height int
}

var (
	TourSize = Size{Width: 2000, Height: 1333}
	UserSize = Size{Width: 500, Height: 500}
)

const jpegQuality = 90

// Processor writes resized JPEGs under a media directory.
type Processor struct {
	dir string
}

func NewProcessor(dir string) *Processor {
	return &Processor{dir: dir}
}

func (p *Processor) Dir() string { return p.dir }

// SaveTourImage crops r to TourSize and stores it as tours/<name>.
func (p *Processor) SaveTourImage(r io.Reader, name string) error {
	return p.save(r, "tours", name, TourSize)
}

// SaveUserPhoto crops r to UserSize and stores it as users/<name>.
func (p *Processor) SaveUserPhoto(r io.Reader, name string) error {
	return p.save(r, "users", name, UserSize)
}

func (p *Processor) save(r io.Reader, sub, name string, size Size) error {
	src, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	dir := filepath.Join(p.dir, sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}

	dst := imaging.Fill(src, size.Width, size.Height, imaging.Center, imaging.Lanczos)
	if err := imaging.Save(dst, filepath.Join(dir, filepath.Base(name)), imaging.JPEGQuality(jpegQuality)); err != nil {
		return fmt.Errorf("failed to save image %s: %w", name, err)
	}
	return nil
}
