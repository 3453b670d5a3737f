package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/devello/devello-studios/internal/action"
	"google.golang.org/genai"
)

type fakeModels struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func imageResponse(mimeType string, data []byte) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "Here is your photo"},
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
			}},
		}},
	}
}

func TestGeminiInvoke_Base64(t *testing.T) {
	fake := &fakeModels{resp: imageResponse("image/png", []byte("png-bytes"))}
	g := newGemini(fake)

	// "/9j/" decodes to the JPEG magic bytes.
	out, err := g.Invoke(context.Background(), Task{
		Kind:   "lighting",
		Prompt: "Relight this photo",
		Image:  action.FromBase64("/9j/4AAQ\nSkZJRg=="),
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	imm, ok := out.(Immediate)
	if !ok {
		t.Fatalf("expected Immediate, got %T", out)
	}
	if string(imm.Data) != "png-bytes" || imm.MIMEType != "image/png" {
		t.Errorf("unexpected output %+v", imm)
	}

	if fake.model != ModelGeminiImage {
		t.Errorf("model = %q", fake.model)
	}
	parts := fake.contents[0].Parts
	if len(parts) != 2 || parts[0].InlineData == nil || parts[1].Text != "Relight this photo" {
		t.Fatalf("unexpected parts: %+v", parts)
	}
	if parts[0].InlineData.MIMEType != "image/jpeg" {
		t.Errorf("input MIME = %q, want image/jpeg", parts[0].InlineData.MIMEType)
	}
	if len(fake.config.ResponseModalities) != 2 {
		t.Errorf("ResponseModalities = %v", fake.config.ResponseModalities)
	}
}

func TestGeminiInvoke_FetchesURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/webp")
		w.Write([]byte("webp-bytes"))
	}))
	defer srv.Close()

	fake := &fakeModels{resp: imageResponse("image/png", []byte("out"))}
	g := newGemini(fake, WithImageFetcher(&ImageFetcher{HTTPClient: srv.Client(), MaxBytes: 1024}))

	if _, err := g.Invoke(context.Background(), Task{Kind: "edit", Image: action.FromURL(srv.URL + "/a.webp")}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	blob := fake.contents[0].Parts[0].InlineData
	if string(blob.Data) != "webp-bytes" || blob.MIMEType != "image/webp" {
		t.Errorf("unexpected blob %+v", blob)
	}
}

func TestGeminiInvoke_NoImage(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
	}{
		{"nil response", nil},
		{"no candidates", &genai.GenerateContentResponse{}},
		{"text only", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "I can't do that"}}},
		}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGemini(&fakeModels{resp: tt.resp})
			_, err := g.Invoke(context.Background(), Task{Kind: "edit", Image: action.FromBase64("QUJD")})
			var pe *Error
			if !errors.As(err, &pe) || pe.Kind != KindNoOutput {
				t.Errorf("expected no_output error, got %v", err)
			}
		})
	}
}

func TestGeminiInvoke_APIError(t *testing.T) {
	g := newGemini(&fakeModels{err: genai.APIError{Code: 429, Message: "Resource has been exhausted"}})
	_, err := g.Invoke(context.Background(), Task{Kind: "lighting", Image: action.FromBase64("QUJD")})
	var pe *Error
	if !errors.As(err, &pe) || pe.Kind != KindQuota {
		t.Errorf("expected quota error, got %v", err)
	}
}

func TestGeminiInvoke_BadBase64(t *testing.T) {
	fake := &fakeModels{}
	g := newGemini(fake)
	_, err := g.Invoke(context.Background(), Task{Kind: "lighting", Image: action.FromBase64("!!!")})
	var pe *Error
	if !errors.As(err, &pe) || pe.Kind != KindBadInput {
		t.Errorf("expected bad_input error, got %v", err)
	}
	if fake.contents != nil {
		t.Error("model should not be called with undecodable input")
	}
}

func TestGeminiGenerateText(t *testing.T) {
	fake := &fakeModels{resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: "  "}, {Text: "Title: Walkies"}}},
	}}}}
	g := newGemini(fake)

	got, err := g.GenerateText(context.Background(), "idea prompt")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if got != "Title: Walkies" {
		t.Errorf("text = %q", got)
	}
	if fake.model != ModelGeminiText {
		t.Errorf("model = %q", fake.model)
	}
}

func TestGeminiStatusUnsupported(t *testing.T) {
	g := newGemini(&fakeModels{})
	if _, err := g.Status(context.Background(), "x"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}
