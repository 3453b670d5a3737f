// Package store persists edit job records so the job status endpoint can
// check ownership and replay terminal results.
//
// Records live in a single DynamoDB table keyed by PK=JOB#{jobId}, SK=META.
// A TTL attribute (expiresAt) removes records after JobTTL; provider outputs
// are only hosted for about a day, so older records are useless anyway.
package store

import (
	"context"
	"time"

	"github.com/devello/devello-studios/internal/apimodel"
)

// JobTTL is how long job records are kept.
const JobTTL = 24 * time.Hour

// JobRecord is what the API remembers about an asynchronous job.
type JobRecord struct {
	JobID     string          `dynamodbav:"-" json:"jobId"`
	RequestID string          `dynamodbav:"requestId,omitempty" json:"requestId,omitempty"`
	Provider  string          `dynamodbav:"provider" json:"provider"`
	Kind      string          `dynamodbav:"kind" json:"kind"`
	Owner     string          `dynamodbav:"owner,omitempty" json:"owner,omitempty"`
	Status    apimodel.Status `dynamodbav:"status" json:"status"`
	OutputURL string          `dynamodbav:"outputUrl,omitempty" json:"outputUrl,omitempty"`
	Error     string          `dynamodbav:"error,omitempty" json:"error,omitempty"`
	CreatedAt time.Time       `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt time.Time       `dynamodbav:"updatedAt" json:"updatedAt"`
}

// Terminal reports whether the record holds a final result.
func (r *JobRecord) Terminal() bool {
	return r != nil && r.Status.Terminal()
}

// JobStore persists job records. Implementations are safe for concurrent use.
//
// GetJob returns (nil, nil) when the record does not exist.
type JobStore interface {
	// PutJob creates or replaces a job record.
	PutJob(ctx context.Context, job *JobRecord) error

	// GetJob retrieves a job record by ID.
	GetJob(ctx context.Context, jobID string) (*JobRecord, error)

	// CompleteJob records a terminal result. The first terminal result wins;
	// later calls leave the record unchanged and return nil.
	CompleteJob(ctx context.Context, jobID string, status apimodel.Status, outputURL, errText string) error
}
