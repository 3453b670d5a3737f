package dispatch

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/devello/devello-studios/internal/apimodel"
	"github.com/devello/devello-studios/internal/auth"
	"github.com/devello/devello-studios/internal/jobs"
	"github.com/devello/devello-studios/internal/provider"
	"github.com/devello/devello-studios/internal/store"
)

// GET /api/ios/jobs/{jobId}
//
// Terminal results are written to the job store and served from it
// afterwards, so a job reports the same final state on every poll.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	r, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	subject := auth.SubjectFromContext(r.Context())
	logger := zerolog.Ctx(r.Context())

	jobID, _ := jobs.ParseJobID(r.URL.Path, apimodel.PathJobs)
	if jobID == "" {
		httpError(w, http.StatusBadRequest, apimodel.CodeInvalidRequest, "Job ID is required")
		return
	}
	if !jobs.ValidJobID(jobID) {
		httpError(w, http.StatusBadRequest, apimodel.CodeInvalidRequest, "invalid job ID")
		return
	}

	record := s.lookupJob(r, jobID)
	if record != nil && s.verifier != nil && record.Owner != "" && record.Owner != subject {
		logger.Warn().Str("jobId", jobID).Msg("Job requested by non-owner")
		httpError(w, http.StatusNotFound, apimodel.CodeNotFound, "Job not found")
		return
	}
	if record.Terminal() {
		respondJSON(w, http.StatusOK, jobResponse(jobID, record.Status, record.OutputURL, record.Error))
		return
	}

	if s.status == nil {
		httpError(w, http.StatusBadRequest, apimodel.CodeInvalidRequest, "job status is not supported by this provider")
		return
	}

	ctx, cancel := s.providerContext(r.Context())
	defer cancel()
	st, err := s.status.Status(ctx, jobID)
	if err != nil {
		perr := provider.Classify(err)
		if perr.Kind == provider.KindUnsupported {
			httpError(w, http.StatusBadRequest, apimodel.CodeInvalidRequest, perr.Message)
			return
		}
		s.providerError(w, r, "status", err)
		return
	}

	logger.Debug().
		Str("jobId", jobID).
		Str("providerStatus", st.Raw).
		Str("status", string(st.Status)).
		Msg("Job status queried")

	if st.Status.Terminal() {
		st = s.completeJob(r, jobID, st)
	}
	respondJSON(w, http.StatusOK, jobResponse(jobID, st.Status, st.OutputURL, st.Error))
}

func (s *Server) lookupJob(r *http.Request, jobID string) *store.JobRecord {
	if s.jobs == nil {
		return nil
	}
	record, err := s.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("jobId", jobID).Msg("Failed to read job record")
		return nil
	}
	return record
}

// completeJob stores a terminal status and returns whichever terminal result
// the store kept, so concurrent pollers agree.
func (s *Server) completeJob(r *http.Request, jobID string, st provider.JobStatus) provider.JobStatus {
	if s.jobs == nil {
		return st
	}
	if err := s.jobs.CompleteJob(r.Context(), jobID, st.Status, st.OutputURL, st.Error); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("jobId", jobID).Msg("Failed to record job result")
		return st
	}
	record, err := s.jobs.GetJob(r.Context(), jobID)
	if err != nil || !record.Terminal() {
		return st
	}
	return provider.JobStatus{Status: record.Status, OutputURL: record.OutputURL, Error: record.Error, Raw: st.Raw}
}

func jobResponse(jobID string, status apimodel.Status, outputURL, errText string) apimodel.JobStatusResponse {
	resp := apimodel.JobStatusResponse{
		OK:        true,
		Status:    status,
		JobID:     jobID,
		RequestID: jobID,
		Error:     errText,
	}
	if status == apimodel.StatusSucceeded {
		resp.OutputURL = outputURL
	}
	return resp
}
