package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/genai"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"api 401", genai.APIError{Code: 401}, KindAuth},
		{"api 403 wrapped", fmt.Errorf("call: %w", genai.APIError{Code: 403}), KindAuth},
		{"api 429", genai.APIError{Code: 429}, KindQuota},
		{"api 400", genai.APIError{Code: 400, Message: "Image too small"}, KindBadInput},
		{"api 500", genai.APIError{Code: 500}, KindUnknown},
		{"deadline", fmt.Errorf("wait: %w", context.DeadlineExceeded), KindNetwork},
		{"invalid key text", errors.New("API key not valid. Please pass a valid API key."), KindAuth},
		{"quota text", errors.New("RESOURCE_EXHAUSTED: quota exceeded"), KindQuota},
		{"network text", errors.New("dial tcp: lookup api: no such host"), KindNetwork},
		{"other", errors.New("something odd"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Kind != tt.want {
				t.Errorf("Classify(%v).Kind = %v, want %v", tt.err, got.Kind, tt.want)
			}
			if got.Err == nil {
				t.Errorf("classified error should wrap the original")
			}
		})
	}
}

func TestClassify_KeepsClassified(t *testing.T) {
	orig := &Error{Kind: KindJobFailed, Message: "NSFW"}
	if got := Classify(fmt.Errorf("wrap: %w", orig)); got != orig {
		t.Errorf("expected the original *Error, got %+v", got)
	}
	if Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}

func TestErrorKindString(t *testing.T) {
	if KindQuota.String() != "quota" || ErrorKind(99).String() != "unknown" {
		t.Error("unexpected ErrorKind strings")
	}
}
