package dispatch

import (
	"net/http"
	"strings"

	"github.com/devello/devello-studios/internal/apimodel"
	"github.com/devello/devello-studios/internal/assets"
	"github.com/devello/devello-studios/internal/textutil"
)

// POST /api/ideas/spark
// Body: {"idea": "..."}
func (s *Server) handleIdeaSpark(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var body apimodel.IdeaSparkBody
	if !s.decodeBody(w, r, &body) {
		return
	}
	idea := strings.TrimSpace(body.Idea)
	if idea == "" {
		httpError(w, http.StatusBadRequest, apimodel.CodeInvalidRequest, "Missing idea")
		return
	}
	if s.text == nil {
		httpError(w, http.StatusInternalServerError, apimodel.CodeProcessingError, "Idea spark is not configured")
		return
	}

	ctx, cancel := s.providerContext(r.Context())
	defer cancel()
	draft, err := s.text.GenerateText(ctx, assets.RenderIdeaSparkPrompt(idea))
	if err != nil {
		s.providerError(w, r, "spark", err)
		return
	}
	draft = textutil.PlainDraft(draft)
	if draft == "" {
		httpError(w, http.StatusInternalServerError, apimodel.CodeProcessingError, "Idea spark failed")
		return
	}
	respondJSON(w, http.StatusOK, apimodel.IdeaSparkResponse{OK: true, Draft: draft})
}
