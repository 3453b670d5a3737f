package resolve

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/devello/devello-studios/internal/action"
	"github.com/devello/devello-studios/internal/apimodel"
)

const sampleDataURL = "data:image/png;base64,iVBORw0KGgo="

// scriptedStatus returns queued responses in order and counts calls.
type scriptedStatus struct {
	responses []*apimodel.JobStatusResponse
	errs      []error
	calls     int
	ids       []string
}

func (s *scriptedStatus) JobStatus(_ context.Context, id string) (*apimodel.JobStatusResponse, error) {
	i := s.calls
	s.calls++
	s.ids = append(s.ids, id)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return &apimodel.JobStatusResponse{OK: true, Status: apimodel.StatusProcessing}, nil
}

func processing(n int) []*apimodel.JobStatusResponse {
	out := make([]*apimodel.JobStatusResponse, n)
	for i := range out {
		out[i] = &apimodel.JobStatusResponse{OK: true, Status: apimodel.StatusProcessing}
	}
	return out
}

// instant records requested waits without sleeping.
type instant struct {
	waits []time.Duration
}

func (w *instant) wait(ctx context.Context, d time.Duration) error {
	w.waits = append(w.waits, d)
	return ctx.Err()
}

func newTestResolver(status StatusFetcher, opts ...Option) (*Resolver, *instant) {
	w := &instant{}
	return New(status, append([]Option{WithWaiter(w.wait)}, opts...)...), w
}

func TestResolve_ImmediateSuccess(t *testing.T) {
	status := &scriptedStatus{}
	r, w := newTestResolver(status)

	res, err := r.Resolve(context.Background(), &apimodel.ActionResponse{OK: true, OutputURL: sampleDataURL})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.OutputURL != sampleDataURL {
		t.Errorf("OutputURL = %q", res.OutputURL)
	}
	if res.Attempts != 0 || status.calls != 0 || len(w.waits) != 0 {
		t.Errorf("attempts=%d calls=%d waits=%d, want no polling", res.Attempts, status.calls, len(w.waits))
	}
}

func TestResolve_PollsUntilSucceeded(t *testing.T) {
	responses := append(processing(5), &apimodel.JobStatusResponse{
		OK: true, Status: apimodel.StatusSucceeded, OutputURL: "https://cdn.example.com/out.png",
	})
	status := &scriptedStatus{responses: responses}
	r, w := newTestResolver(status)

	res, err := r.Resolve(context.Background(), &apimodel.ActionResponse{
		OK: true, Status: apimodel.StatusProcessing, JobID: "abc",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if status.calls != 6 {
		t.Errorf("status calls = %d, want 6", status.calls)
	}
	if res.Attempts != 6 || res.JobID != "abc" {
		t.Errorf("result = %+v", res)
	}
	if len(w.waits) != 6 {
		t.Errorf("waits = %d, want one before every poll", len(w.waits))
	}
	for _, d := range w.waits {
		if d != DefaultInterval {
			t.Errorf("wait = %v, want %v", d, DefaultInterval)
		}
	}
	for _, id := range status.ids {
		if id != "abc" {
			t.Errorf("polled id %q, want abc", id)
		}
	}
}

func TestOptions_IgnoreNonPositive(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		interval time.Duration
		attempts int
	}{
		{"defaults", nil, DefaultInterval, DefaultMaxAttempts},
		{"zero interval", []Option{WithInterval(0)}, DefaultInterval, DefaultMaxAttempts},
		{"negative interval", []Option{WithInterval(-time.Second)}, DefaultInterval, DefaultMaxAttempts},
		{"zero attempts", []Option{WithMaxAttempts(0)}, DefaultInterval, DefaultMaxAttempts},
		{"custom", []Option{WithInterval(time.Second), WithMaxAttempts(3)}, time.Second, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := &scriptedStatus{responses: processing(10)}
			r, w := newTestResolver(status, tt.opts...)
			_, err := r.Resolve(context.Background(), &apimodel.ActionResponse{
				OK: true, Status: apimodel.StatusProcessing, JobID: "job-1",
			})
			var rerr *Error
			if !errors.As(err, &rerr) || rerr.Kind != KindTimeout {
				t.Fatalf("expected timeout, got %v", err)
			}
			if len(w.waits) != tt.attempts {
				t.Errorf("attempts = %d, want %d", len(w.waits), tt.attempts)
			}
			for _, d := range w.waits {
				if d != tt.interval {
					t.Fatalf("wait = %v, want %v", d, tt.interval)
				}
			}
		})
	}
}

func TestResolve_TimesOutAfterMaxAttempts(t *testing.T) {
	status := &scriptedStatus{responses: processing(40)}
	r, _ := newTestResolver(status)

	_, err := r.Resolve(context.Background(), &apimodel.ActionResponse{
		OK: true, Status: apimodel.StatusProcessing, JobID: "slow",
	})
	var re *Error
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if re.Kind != KindTimeout || re.Message != MsgTimeout {
		t.Errorf("err = %+v, want timeout", re)
	}
	if !IsTimeout(err) {
		t.Error("IsTimeout = false")
	}
	if status.calls != DefaultMaxAttempts {
		t.Errorf("status calls = %d, want %d", status.calls, DefaultMaxAttempts)
	}
}

func TestResolve_FailedJob(t *testing.T) {
	tests := []struct {
		name    string
		final   *apimodel.JobStatusResponse
		wantMsg string
	}{
		{
			name:    "provider error",
			final:   &apimodel.JobStatusResponse{OK: true, Status: apimodel.StatusFailed, Error: "NSFW content detected"},
			wantMsg: "NSFW content detected",
		},
		{
			name:    "no error text",
			final:   &apimodel.JobStatusResponse{OK: true, Status: apimodel.StatusFailed},
			wantMsg: MsgNoOutput,
		},
		{
			name:    "succeeded without output",
			final:   &apimodel.JobStatusResponse{OK: true, Status: apimodel.StatusSucceeded},
			wantMsg: MsgNoOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := &scriptedStatus{responses: append(processing(2), tt.final)}
			r, _ := newTestResolver(status)

			_, err := r.Resolve(context.Background(), &apimodel.ActionResponse{
				OK: true, Status: apimodel.StatusProcessing, JobID: "j1",
			})
			var re *Error
			if !errors.As(err, &re) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if re.Kind != KindFailed || re.Message != tt.wantMsg {
				t.Errorf("err = %+v, want failed %q", re, tt.wantMsg)
			}
			if status.calls != 3 {
				t.Errorf("status calls = %d, want 3", status.calls)
			}
		})
	}
}

func TestResolve_InitialResponseFailures(t *testing.T) {
	tests := []struct {
		name    string
		resp    *apimodel.ActionResponse
		wantMsg string
	}{
		{"nil response", nil, MsgNoOutput},
		{"error reported", &apimodel.ActionResponse{OK: false, Error: "Invalid image data"}, "Invalid image data"},
		{"processing without id", &apimodel.ActionResponse{OK: true, Status: apimodel.StatusProcessing}, MsgNoOutput},
		{"ok without output", &apimodel.ActionResponse{OK: true}, MsgNoOutput},
		{"malformed output", &apimodel.ActionResponse{OK: true, OutputURL: "not a url"}, MsgNoOutput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := &scriptedStatus{}
			r, _ := newTestResolver(status)

			_, err := r.Resolve(context.Background(), tt.resp)
			var re *Error
			if !errors.As(err, &re) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if re.Kind != KindFailed || re.Message != tt.wantMsg {
				t.Errorf("err = %+v, want %q", re, tt.wantMsg)
			}
			if status.calls != 0 {
				t.Errorf("status calls = %d, want 0", status.calls)
			}
		})
	}
}

func TestResolve_RequestIDFallback(t *testing.T) {
	status := &scriptedStatus{responses: []*apimodel.JobStatusResponse{
		{OK: true, Status: apimodel.StatusSucceeded, OutputURL: sampleDataURL},
	}}
	r, _ := newTestResolver(status)

	res, err := r.Resolve(context.Background(), &apimodel.ActionResponse{
		OK: true, Status: apimodel.StatusProcessing, RequestID: "req-42",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(status.ids) != 1 || status.ids[0] != "req-42" {
		t.Errorf("polled ids = %v, want [req-42]", status.ids)
	}
	if res.JobID != "req-42" {
		t.Errorf("JobID = %q", res.JobID)
	}
}

func TestResolve_Canceled(t *testing.T) {
	status := &scriptedStatus{}
	r, _ := newTestResolver(status)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, &apimodel.ActionResponse{OK: true, Status: apimodel.StatusProcessing, JobID: "j"})
	var re *Error
	if !errors.As(err, &re) || re.Kind != KindCanceled {
		t.Fatalf("err = %v, want canceled", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("error does not wrap context.Canceled")
	}
	if status.calls != 0 {
		t.Errorf("status calls = %d, want 0 after cancellation", status.calls)
	}
}

func TestResolve_CanceledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	status := &scriptedStatus{}
	calls := 0
	r := New(status, WithWaiter(func(ctx context.Context, _ time.Duration) error {
		calls++
		if calls == 3 {
			cancel()
		}
		return ctx.Err()
	}))

	_, err := r.Resolve(ctx, &apimodel.ActionResponse{OK: true, Status: apimodel.StatusProcessing, JobID: "j"})
	var re *Error
	if !errors.As(err, &re) || re.Kind != KindCanceled {
		t.Fatalf("err = %v, want canceled", err)
	}
	if status.calls != 2 {
		t.Errorf("status calls = %d, want 2", status.calls)
	}
}

type fakeAPIError struct {
	status int
	code   string
	msg    string
}

func (e *fakeAPIError) Error() string     { return e.msg }
func (e *fakeAPIError) HTTPStatus() int   { return e.status }
func (e *fakeAPIError) ErrorCode() string { return e.code }

func TestResolve_StatusErrorsStopPolling(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind Kind
	}{
		{"transport", errors.New("dial tcp: connection refused"), KindTransport},
		{"not found", &fakeAPIError{404, apimodel.CodeNotFound, "Job not found"}, KindFailed},
		{"unauthorized", &fakeAPIError{401, apimodel.CodeUnauthorized, "Invalid token"}, KindUnauthorized},
		{"unauthorized without code", &fakeAPIError{401, "", "Unauthorized"}, KindUnauthorized},
		{"bad request without code", &fakeAPIError{400, "", "Bad Request"}, KindInvalidRequest},
		{"server error", &fakeAPIError{502, "", "Bad Gateway"}, KindFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := &scriptedStatus{errs: []error{nil, tt.err}}
			r, _ := newTestResolver(status)

			_, err := r.Resolve(context.Background(), &apimodel.ActionResponse{
				OK: true, Status: apimodel.StatusProcessing, JobID: "j",
			})
			var re *Error
			if !errors.As(err, &re) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if re.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", re.Kind, tt.wantKind)
			}
			if re.Attempts != 2 || status.calls != 2 {
				t.Errorf("attempts=%d calls=%d, want 2 with no retry", re.Attempts, status.calls)
			}
		})
	}
}

func TestResolve_ObserverStates(t *testing.T) {
	responses := append(processing(1), &apimodel.JobStatusResponse{
		OK: true, Status: apimodel.StatusSucceeded, OutputURL: sampleDataURL,
	})
	var states []string
	r, _ := newTestResolver(&scriptedStatus{responses: responses}, WithObserver(func(e Event) {
		states = append(states, e.State.String())
	}))

	if _, err := r.Resolve(context.Background(), &apimodel.ActionResponse{
		OK: true, Status: apimodel.StatusProcessing, JobID: "j",
	}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	want := "submitted,processing,processing,succeeded"
	if got := strings.Join(states, ","); got != want {
		t.Errorf("states = %s, want %s", got, want)
	}
}

type fakeSubmitter struct {
	resp  *apimodel.ActionResponse
	err   error
	calls int
}

func (s *fakeSubmitter) Submit(context.Context, action.EditRequest) (*apimodel.ActionResponse, error) {
	s.calls++
	return s.resp, s.err
}

func TestRun_InvalidRequestSkipsNetwork(t *testing.T) {
	sub := &fakeSubmitter{}
	r, _ := newTestResolver(&scriptedStatus{})

	req := action.HotspotEditRequest{
		Image:   action.FromBase64("aGVsbG8="),
		Hotspot: apimodel.Hotspot{X: 1.4, Y: 0.5},
		Prompt:  "remove the lamp",
	}
	_, err := r.Run(context.Background(), sub, req)
	var re *Error
	if !errors.As(err, &re) || re.Kind != KindInvalidRequest {
		t.Fatalf("err = %v, want invalid request", err)
	}
	if sub.calls != 0 {
		t.Errorf("submit calls = %d, want 0", sub.calls)
	}
}

func TestRun_SubmitAndPoll(t *testing.T) {
	sub := &fakeSubmitter{resp: &apimodel.ActionResponse{OK: true, Status: apimodel.StatusProcessing, JobID: "p1"}}
	status := &scriptedStatus{responses: []*apimodel.JobStatusResponse{
		{OK: true, Status: apimodel.StatusSucceeded, OutputURL: "https://replicate.delivery/out.png"},
	}}
	r, _ := newTestResolver(status)

	req := action.LightingRequest{Image: action.FromURL("https://example.com/in.jpg"), Style: action.CozyEvening}
	res, err := r.Run(context.Background(), sub, req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.OutputURL != "https://replicate.delivery/out.png" || res.Attempts != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestRun_SubmitRejected(t *testing.T) {
	sub := &fakeSubmitter{err: &fakeAPIError{413, apimodel.CodePayloadTooLarge, "Image too large"}}
	r, _ := newTestResolver(&scriptedStatus{})

	req := action.LightingRequest{Image: action.FromBase64("aGVsbG8="), Style: action.MiddayBright}
	_, err := r.Run(context.Background(), sub, req)
	var re *Error
	if !errors.As(err, &re) || re.Kind != KindInvalidRequest {
		t.Fatalf("err = %v, want invalid request", err)
	}
	if re.Message != "Image too large" {
		t.Errorf("Message = %q", re.Message)
	}
}

func TestValidOutputRef(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{sampleDataURL, true},
		{"data:image/jpeg;base64,/9j/4AAQ", true},
		{"https://cdn.example.com/a.png", true},
		{"http://localhost:8080/a.png", true},
		{"", false},
		{"data:text/plain;base64,aGk=", false},
		{"data:image/png;base64,", false},
		{"ftp://example.com/a.png", false},
		{"https://", false},
		{"/relative/path.png", false},
	}
	for _, tt := range tests {
		if got := ValidOutputRef(tt.ref); got != tt.want {
			t.Errorf("ValidOutputRef(%q) = %v, want %v", tt.ref, got, tt.want)
		}
	}
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleep = %v, want context.Canceled", err)
	}
}
