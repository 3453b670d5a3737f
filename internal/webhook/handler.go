// Package webhook receives Replicate prediction webhooks and records the
// terminal result in the job store, so job status calls are answered from
// the store instead of another provider round trip.
//
// Deliveries are signed the Standard Webhooks way:
//
//	webhook-id:        msg_...
//	webhook-timestamp: unix seconds
//	webhook-signature: v1,<base64 HMAC-SHA256 of "id.timestamp.body">
//
// The HMAC key is the base64 part of the "whsec_..." signing secret. The
// signature itself is checked by replicate.ValidateWebhookRequest; this
// package adds the header and timestamp checks.
//
// Reference: https://replicate.com/docs/topics/webhooks/verify-webhook
package webhook

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/replicate/replicate-go"
	"github.com/rs/zerolog/log"

	"github.com/devello/devello-studios/internal/provider"
	"github.com/devello/devello-studios/internal/store"
)

// Path is where the API serves the webhook.
const Path = "/api/webhooks/replicate"

// maxBodySize bounds a delivery. Predictions echo their input, which can
// hold an inline base64 image.
const maxBodySize = 8 << 20

// Tolerance is how far a delivery timestamp may be from now.
const Tolerance = 5 * time.Minute

const secretPrefix = "whsec_"

// Handler verifies deliveries and completes the matching jobs.
type Handler struct {
	secret replicate.WebhookSigningSecret
	jobs   store.JobStore
	now    func() time.Time
}

// NewHandler creates a webhook handler for the given signing secret.
func NewHandler(secret string, jobs store.JobStore) (*Handler, error) {
	if jobs == nil {
		return nil, errors.New("webhook: job store is required")
	}
	encoded := strings.TrimPrefix(secret, secretPrefix)
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(key) == 0 {
		return nil, fmt.Errorf("webhook: invalid signing secret")
	}
	return &Handler{
		secret: replicate.WebhookSigningSecret{Key: secretPrefix + encoded},
		jobs:   jobs,
		now:    time.Now,
	}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn().Int64("limit", tooLarge.Limit).Msg("Webhook: body too large")
			http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
			return
		}
		log.Error().Err(err).Msg("Webhook: failed to read body")
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if len(body) == 0 {
		log.Warn().Msg("Webhook: empty body")
		http.Error(w, "empty body", http.StatusBadRequest)
		return
	}

	if err := h.verify(r, body); err != nil {
		log.Warn().Err(err).Str("webhookId", r.Header.Get("webhook-id")).Msg("Webhook: rejected delivery")
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	id, js, err := provider.DecodePrediction(body)
	if err != nil {
		log.Warn().Err(err).Msg("Webhook: unreadable prediction")
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	logger := log.With().Str("jobId", id).Str("raw_status", js.Raw).Logger()

	if !js.Status.Terminal() {
		logger.Debug().Msg("Webhook: prediction not finished, ignored")
		w.WriteHeader(http.StatusOK)
		return
	}

	job, err := h.jobs.GetJob(r.Context(), id)
	if err != nil {
		logger.Error().Err(err).Msg("Webhook: job lookup failed")
		http.Error(w, "job lookup failed", http.StatusInternalServerError)
		return
	}
	if job == nil {
		// Not submitted through this API, or already expired.
		logger.Info().Msg("Webhook: unknown job, ignored")
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.jobs.CompleteJob(r.Context(), id, js.Status, js.OutputURL, js.Error); err != nil {
		logger.Error().Err(err).Msg("Webhook: failed to record result")
		http.Error(w, "failed to record result", http.StatusInternalServerError)
		return
	}

	logger.Info().Str("status", string(js.Status)).Msg("Webhook: job completed")
	w.WriteHeader(http.StatusOK)
}

// verify checks the signature headers and timestamp, then the signature.
func (h *Handler) verify(r *http.Request, body []byte) error {
	id := r.Header.Get("webhook-id")
	ts := r.Header.Get("webhook-timestamp")
	if id == "" || ts == "" || r.Header.Get("webhook-signature") == "" {
		return errors.New("missing signature headers")
	}

	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("bad timestamp %q", ts)
	}
	if skew := h.now().Sub(time.Unix(sec, 0)); math.Abs(float64(skew)) > float64(Tolerance) {
		return fmt.Errorf("timestamp outside tolerance: %s", skew)
	}

	// The validator consumes the body, so it gets its own copy.
	signed := r.Clone(r.Context())
	signed.Body = io.NopCloser(bytes.NewReader(body))
	ok, err := replicate.ValidateWebhookRequest(signed, h.secret)
	if err != nil {
		return fmt.Errorf("validate signature: %w", err)
	}
	if !ok {
		return errors.New("no matching signature")
	}
	return nil
}
