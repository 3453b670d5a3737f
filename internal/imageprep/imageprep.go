// Package imageprep shrinks a photo before upload: EXIF orientation is
// applied, the longest side is bounded, and JPEG quality is stepped down
// until the encoded size fits the budget.
package imageprep

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG decoder
	"math"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// Options bound the prepared image. Qualities are JPEG quality values (1-100).
type Options struct {
	MaxDimension int
	MaxBytes     int
	StartQuality int
	MinQuality   int
	QualityStep  int
}

// DefaultOptions match what the API expects from mobile uploads.
var DefaultOptions = Options{
	MaxDimension: 2048,
	MaxBytes:     3_000_000,
	StartQuality: 90,
	MinQuality:   20,
	QualityStep:  10,
}

// Result is a prepared JPEG.
type Result struct {
	JPEG    []byte
	Width   int
	Height  int
	Quality int
	// Fits is false when even MinQuality exceeded MaxBytes; JPEG then holds
	// the smallest attempt.
	Fits bool
}

// Base64 returns the JPEG encoded for the image_base64 request field.
func (r *Result) Base64() string {
	return base64.StdEncoding.EncodeToString(r.JPEG)
}

// PrepareFile reads and prepares the image at path.
func PrepareFile(path string, opts Options) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return Prepare(data, opts)
}

// Prepare decodes data (JPEG, PNG or WebP) and re-encodes it within opts.
func Prepare(data []byte, opts Options) (*Result, error) {
	if len(data) == 0 {
		return nil, errors.New("image is empty")
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	resized := resize(img, opts.MaxDimension)
	oriented := orient(resized, orientation(data))

	res, err := encode(oriented, opts)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("format", format).
		Int("origWidth", bounds.Dx()).
		Int("origHeight", bounds.Dy()).
		Int("width", res.Width).
		Int("height", res.Height).
		Int("quality", res.Quality).
		Int("bytes", len(res.JPEG)).
		Bool("fits", res.Fits).
		Msg("Image prepared")
	return res, nil
}

// encode runs the quality loop: start high, step down while too large.
func encode(img image.Image, opts Options) (*Result, error) {
	quality := opts.StartQuality
	if quality <= 0 || quality > 100 {
		quality = DefaultOptions.StartQuality
	}
	step := opts.QualityStep
	if step <= 0 {
		step = DefaultOptions.QualityStep
	}

	var buf bytes.Buffer
	for {
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("failed to encode JPEG: %w", err)
		}
		if opts.MaxBytes <= 0 || buf.Len() <= opts.MaxBytes || quality <= opts.MinQuality {
			break
		}
		quality -= step
		if quality < opts.MinQuality {
			quality = opts.MinQuality
		}
	}

	b := img.Bounds()
	return &Result{
		JPEG:    bytes.Clone(buf.Bytes()),
		Width:   b.Dx(),
		Height:  b.Dy(),
		Quality: quality,
		Fits:    opts.MaxBytes <= 0 || buf.Len() <= opts.MaxBytes,
	}, nil
}

// scaledSize fits w×h inside maxDim on the longest side, keeping aspect ratio.
func scaledSize(w, h, maxDim int) (int, int) {
	longest := max(w, h)
	if maxDim <= 0 || longest <= maxDim {
		return w, h
	}
	scale := float64(maxDim) / float64(longest)
	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))
	return nw, nh
}

// resize returns an RGBA copy of img bounded by maxDim.
func resize(img image.Image, maxDim int) *image.RGBA {
	b := img.Bounds()
	w, h := scaledSize(b.Dx(), b.Dy(), maxDim)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
