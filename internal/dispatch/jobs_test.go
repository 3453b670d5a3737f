package dispatch

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/devello/devello-studios/internal/apimodel"
	"github.com/devello/devello-studios/internal/auth"
	"github.com/devello/devello-studios/internal/provider"
	"github.com/devello/devello-studios/internal/store"
)

func TestJobStatus_PollsToCompletion(t *testing.T) {
	p := &fakeProvider{
		name: provider.NameReplicate,
		statuses: []provider.JobStatus{
			{Status: apimodel.StatusProcessing, Raw: "starting"},
			{Status: apimodel.StatusProcessing, Raw: "processing"},
			{Status: apimodel.StatusSucceeded, OutputURL: "https://replicate.delivery/out.png", Raw: "succeeded"},
		},
	}
	h := New(p).Handler()

	for i, want := range []apimodel.Status{apimodel.StatusProcessing, apimodel.StatusProcessing, apimodel.StatusSucceeded} {
		rec := do(t, h, http.MethodGet, apimodel.PathJobs+"pred-1", "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("poll %d: status = %d", i, rec.Code)
		}
		resp := decode[apimodel.JobStatusResponse](t, rec)
		if resp.Status != want || resp.JobID != "pred-1" || !resp.OK {
			t.Errorf("poll %d: response = %+v", i, resp)
		}
		if want == apimodel.StatusProcessing && resp.OutputURL != "" {
			t.Errorf("poll %d: processing carries output %q", i, resp.OutputURL)
		}
		if want == apimodel.StatusSucceeded && resp.OutputURL != "https://replicate.delivery/out.png" {
			t.Errorf("poll %d: output_url = %q", i, resp.OutputURL)
		}
	}
}

func TestJobStatus_TerminalIsStable(t *testing.T) {
	p := &fakeProvider{
		name: provider.NameReplicate,
		statuses: []provider.JobStatus{
			{Status: apimodel.StatusSucceeded, OutputURL: "https://replicate.delivery/a.png"},
			{Status: apimodel.StatusFailed, Error: "expired"},
		},
	}
	js := store.NewMemoryStore()
	h := New(p, WithJobStore(js)).Handler()

	for i := 0; i < 3; i++ {
		resp := decode[apimodel.JobStatusResponse](t, do(t, h, http.MethodGet, apimodel.PathJobs+"pred-2", "", ""))
		if resp.Status != apimodel.StatusSucceeded || resp.OutputURL != "https://replicate.delivery/a.png" {
			t.Errorf("poll %d: response = %+v", i, resp)
		}
	}
	if p.statusN != 1 {
		t.Errorf("provider queried %d times, want 1", p.statusN)
	}
}

func TestJobStatus_Failed(t *testing.T) {
	p := &fakeProvider{
		name:     provider.NameReplicate,
		statuses: []provider.JobStatus{{Status: apimodel.StatusFailed, Error: provider.DefaultFailureMessage}},
	}
	resp := decode[apimodel.JobStatusResponse](t, do(t, New(p).Handler(), http.MethodGet, apimodel.PathJobs+"pred-3", "", ""))
	if !resp.OK || resp.Status != apimodel.StatusFailed || resp.Error != provider.DefaultFailureMessage {
		t.Errorf("response = %+v", resp)
	}
}

func TestJobStatus_Errors(t *testing.T) {
	verifier := auth.NewVerifier(testSecret, testIssuer)
	token := signToken(t, "user-1")

	tests := []struct {
		name     string
		prov     provider.Provider
		path     string
		token    string
		wantCode int
		wantAPI  string
	}{
		{"missing token", &fakeProvider{name: "r"}, apimodel.PathJobs + "abc", "", 401, apimodel.CodeUnauthorized},
		{"auth before empty id", &fakeProvider{name: "r"}, apimodel.PathJobs, "", 401, apimodel.CodeUnauthorized},
		{"empty id", &fakeProvider{name: "r"}, apimodel.PathJobs, token, 400, apimodel.CodeInvalidRequest},
		{"unsafe id", &fakeProvider{name: "r"}, apimodel.PathJobs + "a%20b", token, 400, apimodel.CodeInvalidRequest},
		{"provider error", &fakeProvider{name: "r", err: errors.New("connection refused")}, apimodel.PathJobs + "abc", token, 500, apimodel.CodeProcessingError},
		{"unsupported", &syncProvider{}, apimodel.PathJobs + "abc", token, 400, apimodel.CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(tt.prov, WithAuth(verifier)).Handler()
			rec := do(t, h, http.MethodGet, tt.path, "", tt.token)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			resp := decode[apimodel.ErrorResponse](t, rec)
			if resp.OK || resp.Code != tt.wantAPI {
				t.Errorf("response = %+v, want code %s", resp, tt.wantAPI)
			}
		})
	}
}

func TestJobStatus_OwnerCheck(t *testing.T) {
	js := store.NewMemoryStore()
	if err := js.PutJob(context.Background(), &store.JobRecord{
		JobID: "pred-9", Owner: "user-1", Status: apimodel.StatusProcessing,
	}); err != nil {
		t.Fatal(err)
	}
	p := &fakeProvider{name: provider.NameReplicate, statuses: []provider.JobStatus{{Status: apimodel.StatusProcessing}}}
	h := New(p, WithJobStore(js), WithAuth(auth.NewVerifier(testSecret, testIssuer))).Handler()

	rec := do(t, h, http.MethodGet, apimodel.PathJobs+"pred-9", "", signToken(t, "user-2"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("other owner status = %d, want 404", rec.Code)
	}
	if p.statusN != 0 {
		t.Error("provider queried for a job owned by someone else")
	}

	rec = do(t, h, http.MethodGet, apimodel.PathJobs+"pred-9", "", signToken(t, "user-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("owner status = %d, want 200", rec.Code)
	}
}
