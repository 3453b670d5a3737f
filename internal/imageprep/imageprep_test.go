package imageprep

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func noise(w, h int) *image.RGBA {
	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

func TestScaledSize(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{4032, 3024, 2048, 2048, 1536},
		{3024, 4032, 2048, 1536, 2048},
		{1000, 800, 2048, 1000, 800},
		{2048, 2048, 2048, 2048, 2048},
		{10000, 1, 2048, 2048, 1},
		{500, 500, 0, 500, 500},
	}
	for _, tt := range tests {
		w, h := scaledSize(tt.w, tt.h, tt.max)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("scaledSize(%d, %d, %d) = %dx%d, want %dx%d", tt.w, tt.h, tt.max, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestPrepare_ResizesAndEncodesJPEG(t *testing.T) {
	data := encodePNG(t, solid(3000, 1500, color.RGBA{200, 120, 40, 255}))

	res, err := Prepare(data, DefaultOptions)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if res.Width != 2048 || res.Height != 1024 {
		t.Errorf("size = %dx%d, want 2048x1024", res.Width, res.Height)
	}
	if res.Quality != DefaultOptions.StartQuality || !res.Fits {
		t.Errorf("quality=%d fits=%v, want first attempt to fit", res.Quality, res.Fits)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(res.JPEG))
	if err != nil || format != "jpeg" {
		t.Fatalf("output is not a JPEG: %v %s", err, format)
	}
	if cfg.Width != 2048 || cfg.Height != 1024 {
		t.Errorf("decoded size = %dx%d", cfg.Width, cfg.Height)
	}

	decoded, err := base64.StdEncoding.DecodeString(res.Base64())
	if err != nil || !bytes.Equal(decoded, res.JPEG) {
		t.Error("Base64 does not round-trip the JPEG bytes")
	}
}

func TestPrepare_SmallImageKeepsSize(t *testing.T) {
	data := encodePNG(t, solid(640, 480, color.RGBA{0, 0, 255, 255}))
	res, err := Prepare(data, DefaultOptions)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if res.Width != 640 || res.Height != 480 {
		t.Errorf("size = %dx%d, want 640x480", res.Width, res.Height)
	}
}

func TestEncode_StepsQualityDown(t *testing.T) {
	img := noise(256, 256)

	var hi bytes.Buffer
	if err := jpeg.Encode(&hi, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
	opts := DefaultOptions
	opts.MaxBytes = hi.Len() - 1

	res, err := encode(img, opts)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if res.Quality >= 90 || res.Quality < opts.MinQuality {
		t.Errorf("quality = %d, want stepped below 90", res.Quality)
	}
	if res.Fits && len(res.JPEG) > opts.MaxBytes {
		t.Errorf("Fits with %d bytes > %d", len(res.JPEG), opts.MaxBytes)
	}
}

func TestEncode_StopsAtMinQuality(t *testing.T) {
	opts := DefaultOptions
	opts.MaxBytes = 10

	res, err := encode(noise(128, 128), opts)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if res.Quality != opts.MinQuality {
		t.Errorf("quality = %d, want %d", res.Quality, opts.MinQuality)
	}
	if res.Fits {
		t.Error("Fits = true for an impossible budget")
	}
	if len(res.JPEG) == 0 {
		t.Error("no JPEG returned")
	}
}

func TestOrient(t *testing.T) {
	// 2x1 source: red | green
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	red := color.RGBA{255, 0, 0, 255}
	green := color.RGBA{0, 255, 0, 255}
	src.SetRGBA(0, 0, red)
	src.SetRGBA(1, 0, green)

	tests := []struct {
		o          int
		w, h       int
		firstPixel color.RGBA
	}{
		{1, 2, 1, red},
		{2, 2, 1, green},
		{3, 2, 1, green},
		{4, 2, 1, red},
		{5, 1, 2, red},
		{6, 1, 2, red},
		{7, 1, 2, green},
		{8, 1, 2, green},
	}
	for _, tt := range tests {
		got := orient(src, tt.o)
		b := got.Bounds()
		if b.Dx() != tt.w || b.Dy() != tt.h {
			t.Errorf("orientation %d: size %dx%d, want %dx%d", tt.o, b.Dx(), b.Dy(), tt.w, tt.h)
			continue
		}
		if p := got.RGBAAt(0, 0); p != tt.firstPixel {
			t.Errorf("orientation %d: top-left = %v, want %v", tt.o, p, tt.firstPixel)
		}
	}
}

func TestOrientation_NoExif(t *testing.T) {
	if o := orientation(encodePNG(t, solid(4, 4, color.RGBA{A: 255}))); o != 1 {
		t.Errorf("orientation = %d, want 1", o)
	}
}

func TestPrepare_Errors(t *testing.T) {
	if _, err := Prepare(nil, DefaultOptions); err == nil {
		t.Error("empty input accepted")
	}
	if _, err := Prepare([]byte("not an image"), DefaultOptions); err == nil {
		t.Error("garbage input accepted")
	}
}
