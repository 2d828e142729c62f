package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/mailchimp-clickmap/internal/config"
)

// S3Exporter uploads click-map CSV artifacts to S3.
type S3Exporter struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Exporter creates an S3Exporter from export configuration.
func NewS3Exporter(ctx context.Context, cfg config.ExportConfig) (*S3Exporter, error) {
	var awsCfg aws.Config
	var err error

	if profile := cfg.GetAWSProfile(); profile != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithSharedConfigProfile(profile),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &S3Exporter{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.S3Bucket,
		prefix: cfg.S3Prefix,
	}, nil
}

// ExportKey builds the object key for a run's CSV artifact.
func (e *S3Exporter) ExportKey(runID string, at time.Time) string {
	name := fmt.Sprintf("click_map_%s_%s.csv", at.UTC().Format("2006-01-02"), runID)
	return path.Join(e.prefix, name)
}

// UploadCSV uploads CSV bytes under the given key and returns the
// s3:// location.
func (e *S3Exporter) UploadCSV(ctx context.Context, key string, data []byte) (string, error) {
	_, err := e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("uploading csv to s3: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", e.bucket, key), nil
}
