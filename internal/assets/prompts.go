// Package assets provides the embedded prompt templates sent to the image
// and text models.
//
// Prompt texts live as files under prompts/ and are embedded at compile time.
package assets

import (
	"bytes"
	_ "embed"
	"math"
	"strings"
	"text/template"

	"github.com/devello/devello-studios/internal/action"
	"github.com/devello/devello-studios/internal/apimodel"
)

// --- Static prompts (lighting presets) ---

//go:embed prompts/lighting-dramatic-daylight.txt
var dramaticDaylightPrompt string

//go:embed prompts/lighting-midday-bright.txt
var middayBrightPrompt string

//go:embed prompts/lighting-cozy-evening.txt
var cozyEveningPrompt string

var lightingPrompts = map[action.Style]string{
	action.DramaticDaylight: dramaticDaylightPrompt,
	action.MiddayBright:     middayBrightPrompt,
	action.CozyEvening:      cozyEveningPrompt,
}

// LightingPrompt returns the relighting instructions for style.
// Unknown styles get the Dramatic Daylight prompt.
func LightingPrompt(style action.Style) string {
	if p, ok := lightingPrompts[style]; ok {
		return strings.TrimSpace(p)
	}
	return strings.TrimSpace(lightingPrompts[action.DefaultStyle])
}

// --- Dynamic prompt templates ---

//go:embed prompts/hotspot-edit.txt
var hotspotEditTemplate string

//go:embed prompts/idea-spark.txt
var ideaSparkTemplate string

// template.Must panics on malformed templates at startup rather than per request.
var (
	hotspotEditTmpl = template.Must(template.New("hotspot-edit").Parse(hotspotEditTemplate))
	ideaSparkTmpl   = template.Must(template.New("idea-spark").Parse(ideaSparkTemplate))
)

// EditPromptData holds the values injected into the hotspot edit template.
type EditPromptData struct {
	Prompt   string
	XPercent int
	YPercent int
}

// RenderEditPrompt renders the localized edit prompt. Hotspot coordinates
// are normalized [0,1] and rendered as rounded percentages.
func RenderEditPrompt(prompt string, hotspot apimodel.Hotspot) string {
	return render(hotspotEditTmpl, EditPromptData{
		Prompt:   prompt,
		XPercent: percent(hotspot.X),
		YPercent: percent(hotspot.Y),
	})
}

// RenderIdeaSparkPrompt renders the product draft prompt for a raw idea.
func RenderIdeaSparkPrompt(idea string) string {
	return render(ideaSparkTmpl, struct{ Idea string }{Idea: idea})
}

// percent rounds half away from zero; inputs are validated to [0,1].
func percent(v float64) int {
	return int(math.Round(v * 100))
}

func render(tmpl *template.Template, data any) string {
	var buf bytes.Buffer
	// Execution errors are not expected with these templates; return what rendered.
	_ = tmpl.Execute(&buf, data)
	return strings.TrimSpace(buf.String())
}
