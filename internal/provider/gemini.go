package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// Gemini model identifiers.
const (
	// ModelGeminiImage returns edited images inline.
	ModelGeminiImage = "gemini-2.5-flash-image"
	// ModelGeminiText drafts idea spark text.
	ModelGeminiText = "gemini-2.5-flash"
)

// contentGenerator is the slice of genai.Models the provider uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini is a synchronous provider: every call returns an Immediate outcome
// carrying the generated image bytes.
type Gemini struct {
	models     contentGenerator
	imageModel string
	textModel  string
	fetcher    *ImageFetcher
}

// GeminiOption customises a Gemini provider.
type GeminiOption func(*Gemini)

// WithGeminiModels overrides the image and text model names.
func WithGeminiModels(imageModel, textModel string) GeminiOption {
	return func(g *Gemini) {
		if imageModel != "" {
			g.imageModel = imageModel
		}
		if textModel != "" {
			g.textModel = textModel
		}
	}
}

// WithImageFetcher sets how image_url references are downloaded.
func WithImageFetcher(f *ImageFetcher) GeminiOption {
	return func(g *Gemini) { g.fetcher = f }
}

// NewGemini creates a Gemini provider backed by the Gemini Developer API.
func NewGemini(ctx context.Context, apiKey string, opts ...GeminiOption) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return newGemini(client.Models, opts...), nil
}

func newGemini(models contentGenerator, opts ...GeminiOption) *Gemini {
	g := &Gemini{
		models:     models,
		imageModel: ModelGeminiImage,
		textModel:  ModelGeminiText,
		fetcher:    &ImageFetcher{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gemini) Name() string { return NameGemini }

// Invoke sends the source image and prompt and waits for the edited image.
func (g *Gemini) Invoke(ctx context.Context, task Task) (out Outcome, err error) {
	start := time.Now()
	defer func() { observe(NameGemini, task.Kind, start, err) }()

	data, mimeType, err := imageBytes(ctx, g.fetcher, task.Image)
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("model", g.imageModel).
		Str("kind", task.Kind).
		Int("image_bytes", len(data)).
		Str("image_mime", mimeType).
		Msg("Sending image to Gemini for editing")

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
			{Text: task.Prompt},
		},
	}}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	resp, err := g.models.GenerateContent(ctx, g.imageModel, contents, config)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("model", g.imageModel).Msg("Gemini image edit failed")
		return nil, Classify(err)
	}

	img, err := extractImage(resp)
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Int("output_bytes", len(img.Data)).
		Str("output_mime", img.MIMEType).
		Dur("duration", time.Since(start)).
		Msg("Gemini image edit complete")
	return img, nil
}

// Status always fails: Gemini never returns Pending.
func (g *Gemini) Status(ctx context.Context, jobID string) (JobStatus, error) {
	return JobStatus{}, ErrUnsupported
}

// GenerateText drafts plain text with the text model.
func (g *Gemini) GenerateText(ctx context.Context, prompt string) (text string, err error) {
	start := time.Now()
	defer func() { observe(NameGemini, "text", start, err) }()

	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: prompt}},
	}}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT"},
	}

	resp, err := g.models.GenerateContent(ctx, g.textModel, contents, config)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("model", g.textModel).Msg("Gemini text generation failed")
		return "", Classify(err)
	}
	return extractText(resp)
}

// extractImage returns the first image part of the first candidate.
func extractImage(resp *genai.GenerateContentResponse) (Immediate, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return Immediate{}, &Error{Kind: KindNoOutput, Provider: NameGemini, Message: "No response from Gemini"}
	}
	content := firstContent(resp)
	if content == nil || len(content.Parts) == 0 {
		return Immediate{}, &Error{Kind: KindNoOutput, Provider: NameGemini, Message: "No content parts in response"}
	}
	for _, part := range content.Parts {
		if part != nil && part.InlineData != nil && strings.HasPrefix(part.InlineData.MIMEType, "image/") && len(part.InlineData.Data) > 0 {
			return Immediate{Data: part.InlineData.Data, MIMEType: part.InlineData.MIMEType}, nil
		}
	}
	return Immediate{}, &Error{Kind: KindNoOutput, Provider: NameGemini, Message: "No image in Gemini response"}
}

// extractText returns the first non-blank text part of the first candidate.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", &Error{Kind: KindNoOutput, Provider: NameGemini, Message: "No response from Gemini"}
	}
	content := firstContent(resp)
	if content == nil {
		return "", &Error{Kind: KindNoOutput, Provider: NameGemini, Message: "No content parts in response"}
	}
	for _, part := range content.Parts {
		if part != nil && strings.TrimSpace(part.Text) != "" {
			return part.Text, nil
		}
	}
	return "", &Error{Kind: KindNoOutput, Provider: NameGemini, Message: "No text in Gemini response"}
}

func firstContent(resp *genai.GenerateContentResponse) *genai.Content {
	if c := resp.Candidates[0]; c != nil {
		return c.Content
	}
	return nil
}
