// Package image decodes texture files into tightly packed RGBA8 pixels
// ready for GPU upload.
package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif" // register decoder
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// I/O errors.
var (
	// ErrUnsupportedFormat is returned when no registered decoder accepts the data.
	ErrUnsupportedFormat = errors.New("image: unsupported format")

	// ErrEmptyData is returned when image data is empty.
	ErrEmptyData = errors.New("image: empty data")

	// ErrEmptyImage is returned for images with a zero dimension.
	ErrEmptyImage = errors.New("image: zero width or height")
)

// Pixels is a decoded image in straight-alpha RGBA8, rows packed without
// padding.
type Pixels struct {
	Width  int
	Height int
	Data   []byte
	// Format is the name of the decoder that produced the pixels
	// ("png", "jpeg", ...), or "" for in-memory sources.
	Format string
}

// BytesPerRow returns the row stride of Data.
func (p *Pixels) BytesPerRow() int { return p.Width * 4 }

// Load decodes the image file at path. The format is detected from content.
func Load(path string) (*Pixels, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("image: open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Decode(f)
}

// DecodeBytes decodes an image held in memory.
func DecodeBytes(data []byte) (*Pixels, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}
	return Decode(bytes.NewReader(data))
}

// Decode decodes an image from r, auto-detecting the format among PNG,
// JPEG, GIF, BMP and WebP.
func Decode(r io.Reader) (*Pixels, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedFormat
		}
		return nil, fmt.Errorf("image: decode: %w", err)
	}
	p, err := FromStdImage(img)
	if err != nil {
		return nil, err
	}
	p.Format = format
	return p, nil
}

// FromStdImage converts any image.Image to straight-alpha RGBA8.
func FromStdImage(img image.Image) (*Pixels, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, ErrEmptyImage
	}

	// Fast path: already non-premultiplied with a tight stride.
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Stride == w*4 && nrgba.Rect.Min == (image.Point{}) {
		data := make([]byte, len(nrgba.Pix))
		copy(data, nrgba.Pix)
		return &Pixels{Width: w, Height: h, Data: data}, nil
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return &Pixels{Width: w, Height: h, Data: dst.Pix}, nil
}

// ToStdImage wraps the pixels as an *image.NRGBA without copying.
func (p *Pixels) ToStdImage() *image.NRGBA {
	return &image.NRGBA{
		Pix:    p.Data,
		Stride: p.BytesPerRow(),
		Rect:   image.Rect(0, 0, p.Width, p.Height),
	}
}

// EncodePNG writes the pixels as PNG.
func (p *Pixels) EncodePNG(w io.Writer) error {
	if err := png.Encode(w, p.ToStdImage()); err != nil {
		return fmt.Errorf("image: encode PNG: %w", err)
	}
	return nil
}

// SavePNG writes the pixels to a PNG file.
func (p *Pixels) SavePNG(path string) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("image: create file: %w", err)
	}
	if err := p.EncodePNG(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
