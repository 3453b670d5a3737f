// Package s3util stores generated images in S3 and hands out presigned GET
// URLs for them, so large outputs do not travel inline in API responses.
package s3util

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// projectTag is the URL-encoded S3 object tagging string for cost allocation.
const projectTag = "Project=devello-studios"

// DefaultURLExpiry is how long presigned output URLs stay valid.
const DefaultURLExpiry = time.Hour

// PutObjectAPI is the subset of *s3.Client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// PresignAPI is the subset of *s3.PresignClient used for download URLs.
type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// OutputStore uploads generated images under a key prefix.
type OutputStore struct {
	client  PutObjectAPI
	presign PresignAPI
	bucket  string
	prefix  string
	expiry  time.Duration
}

// NewOutputStore creates an OutputStore. prefix may be empty.
func NewOutputStore(client PutObjectAPI, presign PresignAPI, bucket, prefix string) *OutputStore {
	return &OutputStore{
		client:  client,
		presign: presign,
		bucket:  bucket,
		prefix:  prefix,
		expiry:  DefaultURLExpiry,
	}
}

// Publish uploads data and returns a presigned URL for it. owner, when set,
// namespaces the key so outputs of different users never share a prefix.
func (o *OutputStore) Publish(ctx context.Context, owner string, data []byte, mimeType string) (string, error) {
	key := o.objectKey(owner, mimeType)

	log.Debug().
		Str("bucket", o.bucket).
		Str("key", key).
		Int("bytes", len(data)).
		Msg("Uploading generated image to S3")

	tagging := projectTag
	_, err := o.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &o.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &mimeType,
		Tagging:     &tagging,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload output to S3: %w", err)
	}

	url, err := GeneratePresignedURL(ctx, o.presign, o.bucket, key, o.expiry)
	if err != nil {
		return "", err
	}

	log.Info().Str("key", key).Msg("Generated image uploaded to S3")
	return url, nil
}

func (o *OutputStore) objectKey(owner, mimeType string) string {
	ext := ".png"
	if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
		ext = exts[0]
	}
	if owner == "" {
		owner = "anonymous"
	}
	day := time.Now().UTC().Format("2006-01-02")
	return path.Join(o.prefix, "outputs", owner, day, uuid.NewString()+ext)
}

// GeneratePresignedURL creates a pre-signed GET URL for an S3 object.
func GeneratePresignedURL(ctx context.Context, presignClient PresignAPI, bucket, key string, expiry time.Duration) (string, error) {
	result, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket, Key: &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", fmt.Errorf("presign GetObject: %w", err)
	}
	return result.URL, nil
}
