package provider

import (
	"encoding/json"
	"strings"

	"github.com/devello/devello-studios/internal/apimodel"
)

// DefaultFailureMessage is reported when a failed job carries no error text.
const DefaultFailureMessage = "Prediction failed"

// NormalizeStatus maps a provider status onto the three client-visible
// values. Unknown statuses are treated as still processing.
func NormalizeStatus(raw string, output json.RawMessage, errText string) JobStatus {
	js := JobStatus{Raw: raw}
	switch strings.ToLower(raw) {
	case "succeeded":
		js.Status = apimodel.StatusSucceeded
		js.OutputURL = FirstOutput(output)
	case "failed", "canceled", "cancelled":
		js.Status = apimodel.StatusFailed
		js.Error = strings.TrimSpace(errText)
		if js.Error == "" {
			js.Error = DefaultFailureMessage
		}
	default:
		js.Status = apimodel.StatusProcessing
	}
	return js
}

// FirstOutput reads a prediction output that is either a string or an array
// of strings and returns the first URL.
func FirstOutput(output json.RawMessage) string {
	if len(output) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(output, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(output, &many); err == nil && len(many) > 0 {
		return many[0]
	}
	return ""
}

// errorText renders a prediction error field, which is null, a string, or an object.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		return obj.Detail
	}
	return string(raw)
}
