// Package provider wraps the image-generation backends behind one interface.
//
// A provider either finishes while the request is open (Immediate) or accepts
// the job and returns an identifier to poll later (Pending). Asynchronous
// providers also implement StatusChecker.
package provider

import (
	"context"
	"time"

	"github.com/devello/devello-studios/internal/action"
	"github.com/devello/devello-studios/internal/apimodel"
	"github.com/devello/devello-studios/internal/metrics"
)

// Provider names accepted in configuration.
const (
	NameGemini    = "gemini"
	NameReplicate = "replicate"
)

// Task is one generation call: the rendered instructions plus the source image.
type Task struct {
	// Kind is "lighting" or "edit".
	Kind   string
	Prompt string
	Image  action.ImageRef
}

// Outcome is either Immediate or Pending.
type Outcome interface {
	isOutcome()
}

// Immediate is a finished result. Data is set for inline output, URL for
// output hosted by the provider.
type Immediate struct {
	Data     []byte
	MIMEType string
	URL      string
}

// Pending means the provider accepted the job and will finish it later.
type Pending struct {
	JobID string
}

func (Immediate) isOutcome() {}
func (Pending) isOutcome()   {}

// Provider runs generation tasks.
type Provider interface {
	Name() string
	Invoke(ctx context.Context, task Task) (Outcome, error)
}

// StatusChecker is implemented by providers that return Pending outcomes.
type StatusChecker interface {
	Status(ctx context.Context, jobID string) (JobStatus, error)
}

// JobStatus is a provider job state after normalization.
type JobStatus struct {
	Status    apimodel.Status
	OutputURL string
	Error     string
	// Raw is the provider's own status string, kept for logs.
	Raw string
}

// TextGenerator produces free-form text from a prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// MetricsNamespace is the CloudWatch namespace for provider metrics.
const MetricsNamespace = "DevelloStudios"

// observe emits one EMF line per provider call.
func observe(provider, operation string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = Classify(err).Kind.String()
	}
	metrics.New(MetricsNamespace).
		Dimension("Provider", provider).
		Dimension("Operation", operation).
		Dimension("Result", result).
		Metric("ProviderLatencyMs", float64(time.Since(start).Milliseconds()), metrics.UnitMilliseconds).
		Count("ProviderCalls").
		Flush()
}
