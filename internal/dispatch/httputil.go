package dispatch

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/devello/devello-studios/internal/apimodel"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("Failed to write JSON response")
	}
}

// httpError sends {ok:false, error, code}. clientMsg is returned to the
// caller; internalDetails are logged server-side only.
func httpError(w http.ResponseWriter, status int, code, clientMsg string, internalDetails ...string) {
	if len(internalDetails) > 0 {
		log.Error().
			Int("status", status).
			Str("code", code).
			Str("clientMsg", clientMsg).
			Strs("internalDetails", internalDetails).
			Msg("HTTP error with internal details")
	}
	respondJSON(w, status, apimodel.ErrorResponse{OK: false, Error: clientMsg, Code: code})
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	httpError(w, http.StatusMethodNotAllowed, apimodel.CodeInvalidRequest, "method not allowed")
}
