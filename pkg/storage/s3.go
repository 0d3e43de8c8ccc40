package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// FolderAudit is the S3 prefix for audit archives.
const FolderAudit = "audit"

// ContentTypeJSONLines is the MIME type of archive objects.
const ContentTypeJSONLines = "application/x-ndjson"

// S3Config holds S3 client configuration.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	AuditBucket     string
}

// S3 uploads audit archives.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client using credentials from config or the environment (AWS_ACCESS_KEY_ID,
// AWS_SECRET_ACCESS_KEY), falling back to the default credential chain.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("S3 client using static credentials", zap.String("region", cfg.Region), zap.String("audit_bucket", cfg.AuditBucket))
	} else {
		logger.Warn("S3 client using default credential chain")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
	})
	return &S3{client: client, uploader: uploader, cfg: cfg, logger: logger}, nil
}

// ArchiveKey returns the object key for one day of audit records: audit/YYYY/MM/DD.jsonl.
func ArchiveKey(day time.Time) string {
	day = day.UTC()
	return path.Join(FolderAudit, day.Format("2006"), day.Format("01"), day.Format("02")+".jsonl")
}

// Exists reports whether key is already present in the audit bucket.
func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.AuditBucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, fmt.Errorf("head object: %w", err)
}

// Upload streams body to key in the audit bucket and returns the object URI.
func (s *S3) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.cfg.AuditBucket),
		Key:                  aws.String(key),
		Body:                 body,
		ContentType:          aws.String(contentType),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.cfg.AuditBucket, key), nil
}
