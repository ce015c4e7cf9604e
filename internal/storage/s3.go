// Package storage implements the object storage gateway on top of Amazon S3.
package storage

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/book-expert/logger"
	"github.com/book-expert/narrator/internal/core"
	"github.com/book-expert/narrator/internal/keys"
)

// DefaultPresignExpiry is used when Presign is called with a zero expiry.
const DefaultPresignExpiry = time.Hour

// ObjectAPI is the subset of the S3 client used for uploads.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// PresignAPI is the subset of the S3 presign client used for download links.
type PresignAPI interface {
	PresignGetObject(
		ctx context.Context,
		params *s3.GetObjectInput,
		optFns ...func(*s3.PresignOptions),
	) (*v4.PresignedHTTPRequest, error)
}

// Gateway implements core.Storage with Amazon S3.
type Gateway struct {
	objects   ObjectAPI
	presigner PresignAPI
	log       *logger.Logger
}

// New creates a new Gateway.
func New(objects ObjectAPI, presigner PresignAPI, log *logger.Logger) *Gateway {
	return &Gateway{
		objects:   objects,
		presigner: presigner,
		log:       log,
	}
}

// NewFromClient creates a Gateway backed by a single S3 client.
func NewFromClient(client *s3.Client, log *logger.Logger) *Gateway {
	return New(client, s3.NewPresignClient(client), log)
}

// Upload copies the local file to bucket/key. An existing object under the
// same key is replaced.
func (g *Gateway) Upload(ctx context.Context, localPath, bucket, key string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: failed to open '%s': %w", core.ErrStorage, localPath, err)
	}

	defer func() {
		closeErr := file.Close()
		if closeErr != nil {
			g.log.Warn("Failed to close '%s' after upload: %v", localPath, closeErr)
		}
	}()

	_, err = g.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(keys.ContentType(key)),
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to put object '%s' to bucket '%s': %w", core.ErrStorage, key, bucket, err)
	}

	g.log.Info("Uploaded '%s' to s3://%s/%s", localPath, bucket, key)

	return key, nil
}

// Presign returns a time-limited download URL for bucket/key, or an empty
// string when the link could not be produced.
func (g *Gateway) Presign(ctx context.Context, bucket, key string, expiry time.Duration) string {
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}

	req, err := g.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		g.log.Warn("Failed to generate presigned URL for s3://%s/%s: %v", bucket, key, err)

		return ""
	}

	return req.URL
}
