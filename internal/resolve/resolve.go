// Package resolve turns a dispatcher response into a final output reference.
//
// A response that already carries an output resolves immediately. A response
// reporting status "processing" with a job identifier is polled through the
// job status endpoint at a fixed interval until it reaches a terminal state
// or the attempt budget runs out. Everything else is a failure.
package resolve

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/devello/devello-studios/internal/action"
	"github.com/devello/devello-studios/internal/apimodel"
)

// Polling defaults.
const (
	DefaultInterval    = 2 * time.Second
	DefaultMaxAttempts = 30
)

// User-facing failure messages.
const (
	MsgNoOutput = "failed to retrieve output"
	MsgTimeout  = "processing timed out"
)

// StatusFetcher queries the job status endpoint.
type StatusFetcher interface {
	JobStatus(ctx context.Context, jobID string) (*apimodel.JobStatusResponse, error)
}

// Submitter sends an edit request to the dispatcher.
type Submitter interface {
	Submit(ctx context.Context, req action.EditRequest) (*apimodel.ActionResponse, error)
}

// Waiter blocks for d or until ctx is done, returning ctx.Err() in the latter case.
type Waiter func(ctx context.Context, d time.Duration) error

// Event reports a state transition to an Observer.
type Event struct {
	State   State
	JobID   string
	Attempt int
}

// Observer receives every state transition, in order, on the calling goroutine.
type Observer func(Event)

// Result is a successful resolution.
type Result struct {
	OutputURL string
	JobID     string
	// Attempts is the number of status calls made; zero for immediate results.
	Attempts int
}

// Resolver runs the resolution state machine. A Resolver holds no per-flow
// state and may be shared.
type Resolver struct {
	status      StatusFetcher
	interval    time.Duration
	maxAttempts int
	wait        Waiter
	observer    Observer
	limits      action.Limits
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithInterval sets the delay before each status call. Non-positive values
// are ignored.
func WithInterval(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithMaxAttempts sets the number of status calls before timing out.
func WithMaxAttempts(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithWaiter replaces the sleep between polls (tests use an instant waiter).
func WithWaiter(w Waiter) Option {
	return func(r *Resolver) { r.wait = w }
}

// WithObserver registers a state transition callback.
func WithObserver(o Observer) Option {
	return func(r *Resolver) { r.observer = o }
}

// WithLimits sets the limits used by Run's pre-flight validation.
func WithLimits(l action.Limits) Option {
	return func(r *Resolver) { r.limits = l }
}

// New creates a Resolver that polls through status.
func New(status StatusFetcher, opts ...Option) *Resolver {
	r := &Resolver{
		status:      status,
		interval:    DefaultInterval,
		maxAttempts: DefaultMaxAttempts,
		wait:        sleep,
		limits:      action.DefaultLimits,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run validates req locally, submits it, and resolves the response.
// Invalid requests fail without any network call.
func (r *Resolver) Run(ctx context.Context, sub Submitter, req action.EditRequest) (*Result, error) {
	r.emit(Event{State: StateIdle})

	if err := action.Validate(req, r.limits); err != nil {
		return nil, r.fail(classify(err, "", 0))
	}
	if err := ctx.Err(); err != nil {
		return nil, r.fail(classify(err, "", 0))
	}

	r.emit(Event{State: StateSubmitted})
	resp, err := sub.Submit(ctx, req)
	if err != nil {
		return nil, r.fail(classify(err, "", 0))
	}
	return r.resolve(ctx, resp)
}

// Resolve interprets a dispatcher response, polling when it reports an
// in-progress job.
func (r *Resolver) Resolve(ctx context.Context, resp *apimodel.ActionResponse) (*Result, error) {
	r.emit(Event{State: StateSubmitted})
	return r.resolve(ctx, resp)
}

func (r *Resolver) resolve(ctx context.Context, resp *apimodel.ActionResponse) (*Result, error) {
	if resp == nil {
		return nil, r.fail(&Error{Kind: KindFailed, Message: MsgNoOutput})
	}

	if ValidOutputRef(resp.OutputURL) {
		r.emit(Event{State: StateSucceeded, JobID: resp.PollID()})
		return &Result{OutputURL: resp.OutputURL, JobID: resp.PollID()}, nil
	}

	if resp.Status == apimodel.StatusProcessing {
		if id := strings.TrimSpace(resp.PollID()); id != "" {
			return r.poll(ctx, id)
		}
	}

	return nil, r.fail(&Error{Kind: KindFailed, JobID: resp.PollID(), Message: failureMessage(resp.Error)})
}

// poll runs the fixed-interval loop: wait, one status call, evaluate.
func (r *Resolver) poll(ctx context.Context, jobID string) (*Result, error) {
	r.emit(Event{State: StateProcessing, JobID: jobID})

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := r.wait(ctx, r.interval); err != nil {
			return nil, r.fail(classify(err, jobID, attempt-1))
		}

		status, err := r.status.JobStatus(ctx, jobID)
		if err != nil {
			return nil, r.fail(classify(err, jobID, attempt))
		}
		if status == nil {
			return nil, r.fail(&Error{Kind: KindFailed, JobID: jobID, Attempts: attempt, Message: MsgNoOutput})
		}

		if ValidOutputRef(status.OutputURL) {
			log.Debug().Str("jobId", jobID).Int("attempt", attempt).Msg("Job resolved")
			r.emit(Event{State: StateSucceeded, JobID: jobID, Attempt: attempt})
			return &Result{OutputURL: status.OutputURL, JobID: jobID, Attempts: attempt}, nil
		}
		if status.Status != apimodel.StatusProcessing {
			return nil, r.fail(&Error{
				Kind:     KindFailed,
				JobID:    jobID,
				Attempts: attempt,
				Message:  failureMessage(status.Error),
			})
		}

		log.Debug().Str("jobId", jobID).Int("attempt", attempt).Msg("Job still processing")
		r.emit(Event{State: StateProcessing, JobID: jobID, Attempt: attempt})
	}

	return nil, r.fail(&Error{Kind: KindTimeout, JobID: jobID, Attempts: r.maxAttempts, Message: MsgTimeout})
}

func (r *Resolver) fail(err *Error) *Error {
	state := StateFailed
	switch err.Kind {
	case KindTimeout:
		state = StateTimedOut
	case KindCanceled:
		state = StateCanceled
	}
	log.Debug().
		Str("jobId", err.JobID).
		Str("kind", err.Kind.String()).
		Int("attempts", err.Attempts).
		Msg(err.Message)
	r.emit(Event{State: state, JobID: err.JobID, Attempt: err.Attempts})
	return err
}

func (r *Resolver) emit(e Event) {
	if r.observer != nil {
		r.observer(e)
	}
}

func failureMessage(msg string) string {
	if strings.TrimSpace(msg) == "" {
		return MsgNoOutput
	}
	return msg
}

// ValidOutputRef reports whether ref is a usable output: a base64 image data
// URL or an absolute http(s) URL.
func ValidOutputRef(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return false
	}
	if strings.HasPrefix(ref, "data:") {
		header, payload, ok := strings.Cut(ref, ",")
		return ok && payload != "" &&
			strings.HasPrefix(header, "data:image/") && strings.HasSuffix(header, ";base64")
	}
	u, err := url.Parse(ref)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
