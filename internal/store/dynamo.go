package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"github.com/devello/devello-studios/internal/apimodel"
)

// DynamoDB key constants for the single-table design.
const (
	pkPrefix = "JOB#"
	skMeta   = "META"
)

// DynamoAPI is the subset of the DynamoDB client the store calls.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoStore implements JobStore using AWS DynamoDB.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

// Compile-time interface check.
var _ JobStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		now:       time.Now,
	}
}

// --- Internal helpers ---

func jobPK(jobID string) string {
	return pkPrefix + jobID
}

func (s *DynamoStore) key(jobID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: jobPK(jobID)},
		"SK": &types.AttributeValueMemberS{Value: skMeta},
	}
}

// expiresAt returns the Unix epoch timestamp for record expiration.
func (s *DynamoStore) expiresAt() int64 {
	return s.now().Add(JobTTL).Unix()
}

// putItem marshals a domain object and writes it to DynamoDB with PK, SK, and TTL.
func (s *DynamoStore) putItem(ctx context.Context, pk, sk string, data interface{}) error {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}
	item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(s.expiresAt(), 10)}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

// getItem reads a single item and unmarshals it into out.
// Returns false if the item does not exist (out is not modified).
func (s *DynamoStore) getItem(ctx context.Context, pk, sk string, out interface{}) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, sk, err)
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, sk, err)
	}
	return true, nil
}

// --- Job operations ---

func (s *DynamoStore) PutJob(ctx context.Context, job *JobRecord) error {
	now := s.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	if err := s.putItem(ctx, jobPK(job.JobID), skMeta, job); err != nil {
		return fmt.Errorf("put job %s: %w", job.JobID, err)
	}

	log.Debug().
		Str("jobId", job.JobID).
		Str("provider", job.Provider).
		Str("status", string(job.Status)).
		Msg("Job record stored")
	return nil
}

func (s *DynamoStore) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	var job JobRecord
	found, err := s.getItem(ctx, jobPK(jobID), skMeta, &job)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	if !found {
		return nil, nil
	}
	job.JobID = jobID
	return &job, nil
}

// completeExpression also fills createdAt and expiresAt when the update
// creates the item, so records for jobs that were never stored still expire.
const completeExpression = "SET #s = :s, outputUrl = :o, #e = :e, updatedAt = :u, " +
	"createdAt = if_not_exists(createdAt, :u), expiresAt = if_not_exists(expiresAt, :x)"

// CompleteJob sets the terminal fields with a conditional update so that a
// job already holding a terminal status is never overwritten.
func (s *DynamoStore) CompleteJob(ctx context.Context, jobID string, status apimodel.Status, outputURL, errText string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 s.key(jobID),
		UpdateExpression:    aws.String(completeExpression),
		ConditionExpression: aws.String("attribute_not_exists(#s) OR #s = :processing"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status", // "status" is a DynamoDB reserved word
			"#e": "error",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s":          &types.AttributeValueMemberS{Value: string(status)},
			":o":          &types.AttributeValueMemberS{Value: outputURL},
			":e":          &types.AttributeValueMemberS{Value: errText},
			":u":          &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339Nano)},
			":x":          &types.AttributeValueMemberN{Value: strconv.FormatInt(s.expiresAt(), 10)},
			":processing": &types.AttributeValueMemberS{Value: string(apimodel.StatusProcessing)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			log.Debug().Str("jobId", jobID).Msg("Job already terminal, keeping first result")
			return nil
		}
		return fmt.Errorf("complete job %s -> %s: %w", jobID, status, err)
	}

	log.Debug().Str("jobId", jobID).Str("status", string(status)).Msg("Job completed")
	return nil
}
