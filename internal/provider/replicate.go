package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/replicate/replicate-go"
	"github.com/rs/zerolog"

	"github.com/devello/devello-studios/internal/apimodel"
)

// FluxKontextMaxVersion pins black-forest-labs/flux-kontext-max.
const FluxKontextMaxVersion = "b94039e52f5065899a5f50cc69186801e28d63c74b0a3dafc22ea93bbdf4c36c"

// Replicate is an asynchronous provider: predictions are created and then
// polled through Status.
type Replicate struct {
	client  *replicate.Client
	version string
	webhook *replicate.Webhook
}

type replicateOptions struct {
	version    string
	baseURL    string
	webhook    string
	httpClient *http.Client
	retries    int
}

// ReplicateOption customises a Replicate provider.
type ReplicateOption func(*replicateOptions)

// WithReplicateBaseURL points the client at another API root, including the
// version path (for example "http://127.0.0.1:8080/v1").
func WithReplicateBaseURL(u string) ReplicateOption {
	return func(o *replicateOptions) { o.baseURL = strings.TrimRight(u, "/") }
}

// WithReplicateVersion selects the model version to run.
func WithReplicateVersion(v string) ReplicateOption {
	return func(o *replicateOptions) {
		if v != "" {
			o.version = v
		}
	}
}

// WithReplicateWebhook asks Replicate to POST the finished prediction to u.
func WithReplicateWebhook(u string) ReplicateOption {
	return func(o *replicateOptions) { o.webhook = u }
}

// WithReplicateHTTPClient replaces the HTTP client.
func WithReplicateHTTPClient(c *http.Client) ReplicateOption {
	return func(o *replicateOptions) { o.httpClient = c }
}

// WithReplicateRetries sets how often rate limited (and, for reads, 5xx)
// responses are retried. Negative values keep the client default.
func WithReplicateRetries(n int) ReplicateOption {
	return func(o *replicateOptions) { o.retries = n }
}

// NewReplicate creates a Replicate provider authenticated with token.
func NewReplicate(token string, opts ...ReplicateOption) (*Replicate, error) {
	o := replicateOptions{
		version:    FluxKontextMaxVersion,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retries:    -1,
	}
	for _, opt := range opts {
		opt(&o)
	}

	clientOpts := []replicate.ClientOption{
		replicate.WithToken(token),
		replicate.WithHTTPClient(o.httpClient),
	}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, replicate.WithBaseURL(o.baseURL))
	}
	if o.retries >= 0 {
		clientOpts = append(clientOpts, replicate.WithRetryPolicy(o.retries, &replicate.ConstantBackoff{Base: time.Second}))
	}
	client, err := replicate.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("replicate client: %w", err)
	}

	r := &Replicate{client: client, version: o.version}
	if o.webhook != "" {
		r.webhook = &replicate.Webhook{
			URL:    o.webhook,
			Events: []replicate.WebhookEventType{replicate.WebhookEventCompleted},
		}
	}
	return r, nil
}

func (r *Replicate) Name() string { return NameReplicate }

// Invoke creates a prediction and returns without waiting for it, unless
// the API already finished it.
func (r *Replicate) Invoke(ctx context.Context, task Task) (out Outcome, err error) {
	start := time.Now()
	defer func() { observe(NameReplicate, task.Kind, start, err) }()

	input := replicate.PredictionInput{
		"input_image":      imageURL(task.Image),
		"prompt":           task.Prompt,
		"aspect_ratio":     "match_input_image",
		"output_format":    "png",
		"safety_tolerance": 2,
	}
	p, err := r.client.CreatePrediction(ctx, r.version, input, r.webhook, false)
	if err != nil {
		return nil, replicateError(err)
	}
	if p.ID == "" {
		return nil, &Error{Kind: KindNoOutput, Provider: NameReplicate, Message: "Replicate returned no prediction id"}
	}

	zerolog.Ctx(ctx).Info().
		Str("prediction_id", p.ID).
		Str("status", string(p.Status)).
		Str("kind", task.Kind).
		Dur("duration", time.Since(start)).
		Msg("Replicate prediction created")

	status := normalizePrediction(p)
	switch status.Status {
	case apimodel.StatusSucceeded:
		if status.OutputURL != "" {
			return Immediate{URL: status.OutputURL}, nil
		}
	case apimodel.StatusFailed:
		return nil, &Error{Kind: KindJobFailed, Provider: NameReplicate, Message: status.Error}
	}
	return Pending{JobID: p.ID}, nil
}

// Status fetches a prediction and normalizes its state.
func (r *Replicate) Status(ctx context.Context, jobID string) (js JobStatus, err error) {
	start := time.Now()
	defer func() { observe(NameReplicate, "status", start, err) }()

	p, err := r.client.GetPrediction(ctx, jobID)
	if err != nil {
		return JobStatus{}, replicateError(err)
	}
	js = normalizePrediction(p)

	zerolog.Ctx(ctx).Debug().
		Str("prediction_id", jobID).
		Str("raw_status", js.Raw).
		Str("status", string(js.Status)).
		Msg("Replicate prediction status")
	return js, nil
}

// DecodePrediction parses a prediction document, such as a webhook delivery,
// and returns its id and normalized status.
func DecodePrediction(data []byte) (string, JobStatus, error) {
	var p replicate.Prediction
	if err := json.Unmarshal(data, &p); err != nil {
		return "", JobStatus{}, fmt.Errorf("decode prediction: %w", err)
	}
	if p.ID == "" {
		return "", JobStatus{}, fmt.Errorf("decode prediction: missing id")
	}
	return p.ID, normalizePrediction(&p), nil
}

// normalizePrediction maps an SDK prediction onto NormalizeStatus, which
// works on the raw output and error documents.
func normalizePrediction(p *replicate.Prediction) JobStatus {
	output, _ := json.Marshal(p.Output)
	errDoc, _ := json.Marshal(p.Error)
	return NormalizeStatus(string(p.Status), output, errorText(errDoc))
}

// replicateError classifies an SDK error. API errors keep their HTTP status;
// anything else failed before a response arrived.
func replicateError(err error) error {
	var apiErr *replicate.APIError
	if !errors.As(err, &apiErr) {
		err = fmt.Errorf("replicate request failed: %w", err)
	}
	pe := Classify(err)
	pe.Provider = NameReplicate
	return pe
}
