package action

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Limits bound what a request may carry.
type Limits struct {
	// MaxBase64Chars caps the encoded image length (~4.5 MB of JPEG).
	MaxBase64Chars int
	// MaxPromptChars caps the hotspot prompt, counted in characters.
	MaxPromptChars int
}

// DefaultLimits match what the API enforces.
var DefaultLimits = Limits{
	MaxBase64Chars: 6_000_000,
	MaxPromptChars: 400,
}

// ErrorKind classifies a validation failure.
type ErrorKind int

const (
	// KindInvalidRequest means malformed, missing, or out-of-range input.
	KindInvalidRequest ErrorKind = iota
	// KindPayloadTooLarge means the image exceeds the size budget.
	KindPayloadTooLarge
)

func (k ErrorKind) String() string {
	switch k {
	case KindPayloadTooLarge:
		return "payload_too_large"
	default:
		return "invalid_request"
	}
}

// ValidationError reports the first violated constraint of a request.
type ValidationError struct {
	Kind    ErrorKind
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: KindInvalidRequest, Field: field, Message: fmt.Sprintf(format, args...)}
}

// base64Pattern is intentionally lenient: whitespace and newlines from
// line-wrapped encoders are accepted.
var base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/=\s]+$`)

// dataURLPrefix matches "data:image/jpeg;base64," style prefixes.
var dataURLPrefix = regexp.MustCompile(`^data:image/[A-Za-z0-9.+-]+;base64,`)

// StripDataURL removes a data URL prefix from a base64 payload, if present.
func StripDataURL(s string) string {
	if loc := dataURLPrefix.FindStringIndex(s); loc != nil {
		return s[loc[1]:]
	}
	return s
}

// Validate checks req against limits. Shape violations are reported before
// the size check so an empty prompt is never masked by a large image.
func Validate(req EditRequest, limits Limits) error {
	if req == nil {
		return invalid("request", "request is required")
	}
	if err := ValidateImageShape(req.ImageRef()); err != nil {
		return err
	}
	if r, ok := req.(HotspotEditRequest); ok {
		if err := ValidateHotspot(r.Hotspot.X, r.Hotspot.Y); err != nil {
			return err
		}
		if err := ValidatePrompt(r.Prompt, limits.MaxPromptChars); err != nil {
			return err
		}
	}
	return ValidateImageSize(req.ImageRef(), limits.MaxBase64Chars)
}

// ValidateImageShape checks that exactly one well-formed image
// representation is set. Size is checked separately by ValidateImageSize.
func ValidateImageShape(img ImageRef) error {
	switch {
	case img.Base64 != "" && img.URL != "":
		return invalid("image", "provide either image_base64 or image_url, not both")
	case img.Base64 == "" && img.URL == "":
		return invalid("image", "image_base64 or image_url is required")
	case img.URL != "":
		u, err := url.Parse(img.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return invalid("image_url", "image_url must be an absolute http(s) URL")
		}
	default:
		if !base64Pattern.MatchString(StripDataURL(img.Base64)) {
			return invalid("image_base64", "image_base64 must be base64 encoded")
		}
	}
	return nil
}

// ValidateImageSize enforces the encoded size budget. URL references are
// bounded when the server fetches them.
func ValidateImageSize(img ImageRef, maxBase64Chars int) error {
	if maxBase64Chars > 0 && len(img.Base64) > maxBase64Chars {
		return &ValidationError{
			Kind:    KindPayloadTooLarge,
			Field:   "image_base64",
			Message: fmt.Sprintf("image_base64 exceeds %d characters", maxBase64Chars),
		}
	}
	return nil
}

// ValidateHotspot requires both coordinates to lie in [0,1].
func ValidateHotspot(x, y float64) error {
	if math.IsNaN(x) || x < 0 || x > 1 {
		return invalid("hotspot", "hotspot.x must be between 0 and 1")
	}
	if math.IsNaN(y) || y < 0 || y > 1 {
		return invalid("hotspot", "hotspot.y must be between 0 and 1")
	}
	return nil
}

// ValidatePrompt requires a non-blank prompt of at most maxChars characters.
func ValidatePrompt(prompt string, maxChars int) error {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return invalid("prompt", "prompt is required")
	}
	if maxChars > 0 && utf8.RuneCountInString(trimmed) > maxChars {
		return invalid("prompt", "prompt must be at most %d characters", maxChars)
	}
	return nil
}
