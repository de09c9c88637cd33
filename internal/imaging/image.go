package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// ModeRGB is the only mode a CanonicalImage is ever in.
const ModeRGB = "RGB"

// CanonicalImage is a decoded image normalized to opaque three-channel color.
// It belongs to a single dispatch and is discarded once the adapter returns.
type CanonicalImage struct {
	// Pixels is fully opaque; alpha has been flattened onto white.
	Pixels *image.RGBA

	// Format is the container the bytes arrived in (png, jpeg, webp, ...).
	Format string

	// SourceMode is the color model before normalization, e.g. RGBA or Gray.
	SourceMode string

	// Resized is set when the longest side was scaled down.
	Resized bool
}

// Mode is always RGB.
func (c *CanonicalImage) Mode() string { return ModeRGB }

// Width of the normalized image.
func (c *CanonicalImage) Width() int { return c.Pixels.Bounds().Dx() }

// Height of the normalized image.
func (c *CanonicalImage) Height() int { return c.Pixels.Bounds().Dy() }

// Converted reports whether normalization changed the color model.
func (c *CanonicalImage) Converted() bool { return c.SourceMode != ModeRGB }

// JPEGQuality is used for provider submission.
const JPEGQuality = 92

// JPEG encodes the image as a baseline JPEG, which is three-channel by construction.
func (c *CanonicalImage) JPEG() ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, c.Pixels, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// PNG encodes the image losslessly.
func (c *CanonicalImage) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.Pixels); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Canonicalize flattens src onto an opaque white canvas, scaling it down so
// its longest side is at most maxDimension. maxDimension <= 0 disables scaling.
func Canonicalize(src image.Image, format string, maxDimension int) *CanonicalImage {
	b := src.Bounds()
	w, h := fit(b.Dx(), b.Dy(), maxDimension)
	resized := w != b.Dx() || h != b.Dy()

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if resized {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	} else {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	}

	return &CanonicalImage{
		Pixels:     dst,
		Format:     format,
		SourceMode: colorMode(src),
		Resized:    resized,
	}
}

func fit(w, h, maxDimension int) (int, int) {
	if maxDimension <= 0 || (w <= maxDimension && h <= maxDimension) {
		return w, h
	}
	if w >= h {
		nh := h * maxDimension / w
		return maxDimension, max(nh, 1)
	}
	nw := w * maxDimension / h
	return max(nw, 1), maxDimension
}

// colorMode names the source color model the way image tools usually do.
func colorMode(img image.Image) string {
	switch img.(type) {
	case *image.YCbCr:
		return ModeRGB
	case *image.Gray, *image.Gray16:
		return "L"
	case *image.Paletted:
		return "P"
	case *image.CMYK:
		return "CMYK"
	case *image.NRGBA, *image.NRGBA64, *image.RGBA, *image.RGBA64:
		if opaque, ok := img.(interface{ Opaque() bool }); ok && opaque.Opaque() {
			return ModeRGB
		}
		return "RGBA"
	default:
		return "unknown"
	}
}
