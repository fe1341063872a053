package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"carrental/backend/internal/config"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3BillArchive keeps a copy of every rendered bill in an S3 bucket.
type S3BillArchive struct {
	bucket string
	client putObjectAPI
}

// NewS3BillArchive creates the archive from the AWS_* settings. Static keys
// are used when present; otherwise the default AWS credential chain applies.
func NewS3BillArchive(ctx context.Context, cfg *config.Config) (*S3BillArchive, error) {
	opts := []func(*aws_config.LoadOptions) error{aws_config.WithRegion(cfg.AwsRegion)}
	if cfg.AwsAccessKeyID != "" {
		opts = append(opts, aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"",
		)))
	}
	awsCfg, err := aws_config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &S3BillArchive{bucket: cfg.AwsS3Bucket, client: s3.NewFromConfig(awsCfg)}, nil
}

// BillKey is the object key of one archived copy of a bill.
func BillKey(bookingID string) string {
	return fmt.Sprintf("bills/%s/%s.html", bookingID, uuid.NewString())
}

// PutBill uploads html and returns its key. Each call writes a new object,
// so regenerated bills do not overwrite earlier ones.
func (a *S3BillArchive) PutBill(ctx context.Context, bookingID string, html []byte) (string, error) {
	key := BillKey(bookingID)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(html),
		ContentType: aws.String("text/html; charset=utf-8"),
		Metadata:    map[string]string{"booking-id": bookingID},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload bill %s: %w", key, err)
	}
	return key, nil
}
