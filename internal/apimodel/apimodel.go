// Package apimodel defines the JSON contract between the mobile client and the
// edit API. The same types are encoded by the server handlers and decoded by
// the Go client, so field names here are the wire format.
//
// Responses always carry "ok". A synchronous success carries output_url; an
// asynchronous submission carries status "processing" and job_id, and the
// client polls GET /api/ios/jobs/{job_id} until a terminal status.
package apimodel

// Route paths served by the dispatcher.
const (
	PathLighting  = "/api/ios/lighting"
	PathEdit      = "/api/ios/edit"
	PathJobs      = "/api/ios/jobs/"
	PathIdeaSpark = "/api/ideas/spark"
	PathHealth    = "/api/health"
)

// Status is the normalized job status reported to clients.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further polling should happen for s.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Machine-readable error codes returned in the "code" field.
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	CodeProcessingError = "PROCESSING_ERROR"
	CodeNotFound        = "NOT_FOUND"
)

// Hotspot is a normalized (0-1) point inside the image.
type Hotspot struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LightingBody is the request body of POST /api/ios/lighting.
// Exactly one of ImageBase64 and ImageURL is set, depending on the deployment.
type LightingBody struct {
	ImageBase64 string `json:"image_base64,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Style       string `json:"style,omitempty"`
}

// EditBody is the request body of POST /api/ios/edit.
type EditBody struct {
	ImageBase64 string   `json:"image_base64,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	Hotspot     *Hotspot `json:"hotspot,omitempty"`
	Prompt      string   `json:"prompt"`
}

// IdeaSparkBody is the request body of POST /api/ideas/spark.
type IdeaSparkBody struct {
	Idea string `json:"idea"`
}

// ActionResponse is the dispatcher's reply to a lighting or edit request.
//
// Status is empty for synchronous providers; OK alone decides success then.
// OutputURL is either a data: URL holding the generated image inline or an
// http(s) URL the client can fetch.
type ActionResponse struct {
	OK        bool   `json:"ok"`
	Status    Status `json:"status,omitempty"`
	OutputURL string `json:"output_url,omitempty"`
	JobID     string `json:"job_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
}

// PollID returns the identifier to poll with. Some provider revisions only
// populate request_id, so job_id is preferred and request_id is the fallback.
func (r *ActionResponse) PollID() string {
	if r.JobID != "" {
		return r.JobID
	}
	return r.RequestID
}

// JobStatusResponse is the reply of GET /api/ios/jobs/{jobId}. Status is
// always set on success responses.
type JobStatusResponse struct {
	OK        bool   `json:"ok"`
	Status    Status `json:"status,omitempty"`
	OutputURL string `json:"output_url,omitempty"`
	JobID     string `json:"job_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
}

// IdeaSparkResponse is the reply of POST /api/ideas/spark.
type IdeaSparkResponse struct {
	OK    bool   `json:"ok"`
	Draft string `json:"draft,omitempty"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
