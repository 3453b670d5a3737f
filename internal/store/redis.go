package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/devello/devello-studios/internal/apimodel"
)

// DefaultRedisPrefix namespaces job keys.
const DefaultRedisPrefix = "devello:job:"

// maxTxRetries bounds optimistic-lock retries in CompleteJob.
const maxTxRetries = 5

// RedisStore implements JobStore with one JSON value per job and a TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

var _ JobStore = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore. An empty prefix uses DefaultRedisPrefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) key(jobID string) string {
	return s.prefix + jobID
}

func (s *RedisStore) PutJob(ctx context.Context, job *JobRecord) error {
	now := s.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.JobID, err)
	}
	if err := s.client.Set(ctx, s.key(job.JobID), data, JobTTL).Err(); err != nil {
		return fmt.Errorf("put job %s: %w", job.JobID, err)
	}
	log.Debug().Str("jobId", job.JobID).Str("status", string(job.Status)).Msg("Job record stored")
	return nil
}

func (s *RedisStore) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	return s.get(ctx, s.client, jobID)
}

func (s *RedisStore) get(ctx context.Context, c redis.Cmdable, jobID string) (*JobRecord, error) {
	data, err := c.Get(ctx, s.key(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	var job JobRecord
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", jobID, err)
	}
	job.JobID = jobID
	return &job, nil
}

// CompleteJob uses WATCH so two concurrent status calls cannot record
// different terminal results.
func (s *RedisStore) CompleteJob(ctx context.Context, jobID string, status apimodel.Status, outputURL, errText string) error {
	key := s.key(jobID)
	txf := func(tx *redis.Tx) error {
		job, err := s.get(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if job.Terminal() {
			return nil
		}
		if job == nil {
			job = &JobRecord{JobID: jobID, CreatedAt: s.now()}
		}
		job.Status = status
		job.OutputURL = outputURL
		job.Error = errText
		job.UpdatedAt = s.now()

		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("marshal job %s: %w", jobID, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, JobTTL)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("complete job %s -> %s: %w", jobID, status, err)
		}
		return nil
	}
	return fmt.Errorf("complete job %s: too much contention", jobID)
}
