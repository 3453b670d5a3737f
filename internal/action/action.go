// Package action builds and validates edit requests before they are sent to
// the generation backend. The same checks run on the device (to fail fast
// without a network round trip) and on the server (which never trusts the
// client).
package action

import (
	"fmt"
	"strings"

	"github.com/devello/devello-studios/internal/apimodel"
)

// Style is a lighting preset.
type Style string

const (
	DramaticDaylight Style = "Dramatic Daylight"
	MiddayBright     Style = "Midday Bright"
	CozyEvening      Style = "Cozy Evening"
)

// DefaultStyle is used when a lighting request names no style.
const DefaultStyle = DramaticDaylight

// Styles lists every preset in display order.
var Styles = []Style{DramaticDaylight, MiddayBright, CozyEvening}

// ParseStyle accepts the wire name ("Cozy Evening") or the short display
// name ("evening"), case-insensitively.
func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultStyle, nil
	case "dramatic daylight", "daylight", "dramatic-daylight":
		return DramaticDaylight, nil
	case "midday bright", "midday", "midday-bright":
		return MiddayBright, nil
	case "cozy evening", "evening", "cozy-evening":
		return CozyEvening, nil
	}
	return "", fmt.Errorf("unknown lighting style %q", s)
}

// ResolveStyle is ParseStyle with the server's fallback: unknown names map to
// DefaultStyle and report false.
func ResolveStyle(s string) (Style, bool) {
	style, err := ParseStyle(s)
	if err != nil {
		return DefaultStyle, false
	}
	return style, true
}

// StyleNames lists the wire names of Styles, quoted, for help text.
func StyleNames() string {
	names := make([]string, len(Styles))
	for i, s := range Styles {
		names[i] = fmt.Sprintf("%q", string(s))
	}
	return strings.Join(names, ", ")
}

// ImageMode is how a deployment transports the source image.
type ImageMode string

const (
	ImageModeBase64 ImageMode = "base64"
	ImageModeURL    ImageMode = "url"
)

// ImageRef points at the source image. Exactly one field is set.
type ImageRef struct {
	Base64 string
	URL    string
}

// FromBase64 wraps a base64 encoded image.
func FromBase64(data string) ImageRef { return ImageRef{Base64: data} }

// FromURL wraps a dereferenceable image URL.
func FromURL(u string) ImageRef { return ImageRef{URL: u} }

// Mode reports which representation the reference uses.
func (r ImageRef) Mode() ImageMode {
	if r.URL != "" {
		return ImageModeURL
	}
	return ImageModeBase64
}

// EditRequest is either a LightingRequest or a HotspotEditRequest.
type EditRequest interface {
	// Kind names the action ("lighting" or "edit") for routing and logs.
	Kind() string
	// ImageRef returns the source image of the request.
	ImageRef() ImageRef
	isEditRequest()
}

// LightingRequest re-renders the whole photo with a lighting preset.
type LightingRequest struct {
	Image ImageRef
	Style Style
}

func (LightingRequest) Kind() string         { return "lighting" }
func (r LightingRequest) ImageRef() ImageRef { return r.Image }
func (LightingRequest) isEditRequest()       {}

// Body converts the request to its wire form.
func (r LightingRequest) Body() apimodel.LightingBody {
	return apimodel.LightingBody{
		ImageBase64: r.Image.Base64,
		ImageURL:    r.Image.URL,
		Style:       string(r.Style),
	}
}

// HotspotEditRequest applies a prompt-driven edit at a point in the photo.
type HotspotEditRequest struct {
	Image   ImageRef
	Hotspot apimodel.Hotspot
	Prompt  string
}

func (HotspotEditRequest) Kind() string         { return "edit" }
func (r HotspotEditRequest) ImageRef() ImageRef { return r.Image }
func (HotspotEditRequest) isEditRequest()       {}

// Body converts the request to its wire form.
func (r HotspotEditRequest) Body() apimodel.EditBody {
	h := r.Hotspot
	return apimodel.EditBody{
		ImageBase64: r.Image.Base64,
		ImageURL:    r.Image.URL,
		Hotspot:     &h,
		Prompt:      r.Prompt,
	}
}

// NewLighting builds and validates a lighting request with default limits.
// An unknown style falls back to DefaultStyle, as the API does.
func NewLighting(img ImageRef, style Style) (LightingRequest, error) {
	style, _ = ResolveStyle(string(style))
	req := LightingRequest{Image: img, Style: style}
	if err := Validate(req, DefaultLimits); err != nil {
		return LightingRequest{}, err
	}
	return req, nil
}

// NewHotspotEdit builds and validates a hotspot edit with default limits.
func NewHotspotEdit(img ImageRef, hotspot apimodel.Hotspot, prompt string) (HotspotEditRequest, error) {
	req := HotspotEditRequest{Image: img, Hotspot: hotspot, Prompt: prompt}
	if err := Validate(req, DefaultLimits); err != nil {
		return HotspotEditRequest{}, err
	}
	return req, nil
}
