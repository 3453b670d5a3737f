package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strings"

	"github.com/devello/devello-studios/internal/action"
)

var dataURLHeader = regexp.MustCompile(`^data:(image/[A-Za-z0-9.+-]+);base64,`)

// DecodeBase64Image decodes a client supplied image. A data URL prefix is
// honoured for the MIME type; whitespace from line-wrapped encoders is dropped.
func DecodeBase64Image(s string) ([]byte, string, error) {
	mimeType := ""
	if m := dataURLHeader.FindStringSubmatch(s); m != nil {
		mimeType = m[1]
		s = s[len(m[0]):]
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		var rawErr error
		data, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if rawErr != nil {
			return nil, "", &Error{Kind: KindBadInput, Message: "image_base64 is not valid base64", Err: err}
		}
	}
	if mimeType == "" {
		mimeType = sniffImageType(data)
	}
	return data, mimeType, nil
}

// DataURL wraps bytes as a data URL.
func DataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// sniffImageType detects the image format, defaulting to JPEG which is what
// the mobile client uploads.
func sniffImageType(data []byte) string {
	ct := http.DetectContentType(data)
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/jpeg"
}

// ImageFetcher downloads images referenced by URL with a byte budget.
type ImageFetcher struct {
	HTTPClient *http.Client
	MaxBytes   int64
}

// Fetch downloads url. Bodies larger than MaxBytes are rejected.
func (f *ImageFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", &Error{Kind: KindBadInput, Message: "image_url is not fetchable", Err: err}
	}
	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", &Error{Kind: KindNetwork, Message: "Failed to download image_url", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &Error{
			Kind:    KindBadInput,
			Message: fmt.Sprintf("Failed to download image_url (status %d)", resp.StatusCode),
		}
	}

	reader := io.Reader(resp.Body)
	if f.MaxBytes > 0 {
		reader = io.LimitReader(resp.Body, f.MaxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", &Error{Kind: KindNetwork, Message: "Failed to download image_url", Err: err}
	}
	if f.MaxBytes > 0 && int64(len(data)) > f.MaxBytes {
		return nil, "", &Error{
			Kind:    KindBadInput,
			Message: fmt.Sprintf("image_url exceeds %d bytes", f.MaxBytes),
		}
	}

	mimeType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = sniffImageType(data)
	}
	return data, mimeType, nil
}

// imageBytes resolves an image reference to raw bytes.
func imageBytes(ctx context.Context, fetcher *ImageFetcher, img action.ImageRef) ([]byte, string, error) {
	if img.URL != "" {
		if fetcher == nil {
			fetcher = &ImageFetcher{}
		}
		return fetcher.Fetch(ctx, img.URL)
	}
	return DecodeBase64Image(img.Base64)
}

// imageURL resolves an image reference to something a URL-taking provider
// accepts: the URL itself, or the base64 payload wrapped as a data URL.
func imageURL(img action.ImageRef) string {
	if img.URL != "" {
		return img.URL
	}
	if dataURLHeader.MatchString(img.Base64) {
		return img.Base64
	}
	payload := strings.Join(strings.Fields(img.Base64), "")
	return "data:image/jpeg;base64," + payload
}
