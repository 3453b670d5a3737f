package dispatch

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/devello/devello-studios/internal/action"
	"github.com/devello/devello-studios/internal/apimodel"
	"github.com/devello/devello-studios/internal/assets"
	"github.com/devello/devello-studios/internal/auth"
	"github.com/devello/devello-studios/internal/provider"
	"github.com/devello/devello-studios/internal/store"
)

// POST /api/ios/lighting
// Body: {"image_base64"|"image_url": "...", "style": "Cozy Evening"}
func (s *Server) handleLighting(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var body apimodel.LightingBody
	if !s.decodeBody(w, r, &body) {
		return
	}
	r, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	style, known := action.ResolveStyle(body.Style)
	if !known {
		zerolog.Ctx(r.Context()).Warn().Str("style", body.Style).Msg("Unknown lighting style, using default")
	}
	req := action.LightingRequest{
		Image: action.ImageRef{Base64: body.ImageBase64, URL: body.ImageURL},
		Style: style,
	}
	if !s.validate(w, req) {
		return
	}

	s.dispatch(w, r, req, assets.LightingPrompt(style))
}

// POST /api/ios/edit
// Body: {"image_base64"|"image_url": "...", "hotspot": {"x":0.5,"y":0.5}, "prompt": "..."}
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var body apimodel.EditBody
	if !s.decodeBody(w, r, &body) {
		return
	}
	r, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	img := action.ImageRef{Base64: body.ImageBase64, URL: body.ImageURL}
	if body.Hotspot == nil {
		if s.validateImage(w, img) {
			httpError(w, http.StatusBadRequest, apimodel.CodeInvalidRequest, "hotspot is required")
		}
		return
	}
	req := action.HotspotEditRequest{
		Image:   img,
		Hotspot: *body.Hotspot,
		Prompt:  body.Prompt,
	}
	if !s.validate(w, req) {
		return
	}

	s.dispatch(w, r, req, assets.RenderEditPrompt(req.Prompt, req.Hotspot))
}

// decodeBody reads a bounded JSON body into dst.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if s.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpError(w, http.StatusRequestEntityTooLarge, apimodel.CodePayloadTooLarge, "request body too large")
			return false
		}
		httpError(w, http.StatusBadRequest, apimodel.CodeInvalidRequest, "failed to read request body")
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Msg("Malformed request body")
		httpError(w, http.StatusBadRequest, apimodel.CodeInvalidRequest, "invalid request body")
		return false
	}
	return true
}

// validateImage runs the deployment image-mode check and the image shape
// check, writing 400 on failure.
func (s *Server) validateImage(w http.ResponseWriter, img action.ImageRef) bool {
	switch {
	case s.imageMode == action.ImageModeBase64 && img.Base64 == "":
		httpError(w, http.StatusBadRequest, apimodel.CodeInvalidRequest, "image_base64 is required")
		return false
	case s.imageMode == action.ImageModeURL && img.URL == "":
		httpError(w, http.StatusBadRequest, apimodel.CodeInvalidRequest, "image_url is required")
		return false
	}
	if err := action.ValidateImageShape(img); err != nil {
		httpError(w, http.StatusBadRequest, apimodel.CodeInvalidRequest, err.Error())
		return false
	}
	return true
}

// validate runs validateImage and the shared request validation, writing
// 400 or 413 on failure.
func (s *Server) validate(w http.ResponseWriter, req action.EditRequest) bool {
	if !s.validateImage(w, req.ImageRef()) {
		return false
	}
	err := action.Validate(req, s.limits)
	if err == nil {
		return true
	}
	var ve *action.ValidationError
	if errors.As(err, &ve) && ve.Kind == action.KindPayloadTooLarge {
		httpError(w, http.StatusRequestEntityTooLarge, apimodel.CodePayloadTooLarge, ve.Message)
		return false
	}
	httpError(w, http.StatusBadRequest, apimodel.CodeInvalidRequest, err.Error())
	return false
}

// dispatch invokes the provider and shapes its outcome into an ActionResponse.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req action.EditRequest, prompt string) {
	ctx, cancel := s.providerContext(r.Context())
	defer cancel()
	owner := auth.SubjectFromContext(r.Context())
	logger := zerolog.Ctx(r.Context()).With().
		Str("kind", req.Kind()).
		Str("provider", s.provider.Name()).
		Str("imageMode", string(req.ImageRef().Mode())).
		Logger()

	outcome, err := s.provider.Invoke(ctx, provider.Task{
		Kind:   req.Kind(),
		Prompt: prompt,
		Image:  req.ImageRef(),
	})
	if err != nil {
		s.providerError(w, r, req.Kind(), err)
		return
	}

	switch out := outcome.(type) {
	case provider.Immediate:
		outputURL, err := s.outputURL(r, owner, out)
		if err != nil {
			httpError(w, http.StatusInternalServerError, apimodel.CodeProcessingError,
				"failed to store output", err.Error())
			return
		}
		logger.Info().Msg("Edit completed")
		respondJSON(w, http.StatusOK, apimodel.ActionResponse{OK: true, OutputURL: outputURL})

	case provider.Pending:
		if out.JobID == "" {
			httpError(w, http.StatusInternalServerError, apimodel.CodeProcessingError,
				"provider returned no job id")
			return
		}
		s.recordJob(r, owner, req.Kind(), out.JobID)
		logger.Info().Str("jobId", out.JobID).Msg("Edit job submitted")
		respondJSON(w, http.StatusOK, apimodel.ActionResponse{
			OK:        true,
			Status:    apimodel.StatusProcessing,
			JobID:     out.JobID,
			RequestID: out.JobID,
		})

	default:
		httpError(w, http.StatusInternalServerError, apimodel.CodeProcessingError, "unexpected provider result")
	}
}

// outputURL turns an Immediate outcome into the output_url value.
func (s *Server) outputURL(r *http.Request, owner string, out provider.Immediate) (string, error) {
	if len(out.Data) == 0 {
		if out.URL == "" {
			return "", errors.New("provider returned no output")
		}
		return out.URL, nil
	}
	if s.outputs != nil {
		return s.outputs.Publish(r.Context(), owner, out.Data, out.MIMEType)
	}
	return provider.DataURL(out.MIMEType, out.Data), nil
}

// recordJob stores a pending job. Failures are logged; the client can still
// poll the provider directly.
func (s *Server) recordJob(r *http.Request, owner, kind, jobID string) {
	if s.jobs == nil {
		return
	}
	now := s.now().UTC()
	err := s.jobs.PutJob(r.Context(), &store.JobRecord{
		JobID:     jobID,
		RequestID: RequestIDFromContext(r.Context()),
		Provider:  s.provider.Name(),
		Kind:      kind,
		Owner:     owner,
		Status:    apimodel.StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("jobId", jobID).Msg("Failed to record job")
	}
}

// providerError logs the full provider error and returns its safe message.
func (s *Server) providerError(w http.ResponseWriter, r *http.Request, kind string, err error) {
	perr := provider.Classify(err)
	zerolog.Ctx(r.Context()).Error().
		Err(err).
		Str("kind", kind).
		Str("provider", s.provider.Name()).
		Str("errorKind", perr.Kind.String()).
		Msg("Provider call failed")
	msg := perr.Message
	if msg == "" {
		msg = "processing failed"
	}
	httpError(w, http.StatusInternalServerError, apimodel.CodeProcessingError, msg)
}
