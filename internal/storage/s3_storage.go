package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const (
	// MaxEvidenceSize upper bound of an override evidence attachment
	MaxEvidenceSize int64 = 5 * 1024 * 1024

	evidenceFolder = "evidence"
)

// AllowedEvidenceTypes content types accepted as override evidence
var AllowedEvidenceTypes = []string{"image/jpeg", "image/png", "image/webp", "application/pdf"}

// EvidenceStorage issues upload URLs for override evidence
type EvidenceStorage interface {
	PresignEvidenceUpload(ctx context.Context, commodityID uint, filename, contentType string) (*PresignedURLResponse, error)
	ValidateFileSize(size int64, maxSize int64) error
	ValidateContentType(contentType string, allowedTypes []string) error
}

type S3Storage struct {
	client  *s3.Client
	bucket  string
	baseURL string
	expiry  time.Duration
}

type PresignedURLResponse struct {
	UploadURL string    `json:"upload_url"`
	FileURL   string    `json:"file_url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewS3Storage(region, bucket, accessKeyID, secretAccessKey, baseURL string, expiry time.Duration) *S3Storage {
	var cfg aws.Config
	var err error

	// static credentials when given, default chain otherwise
	if accessKeyID != "" && secretAccessKey != "" {
		cfg = aws.Config{
			Region: region,
			Credentials: credentials.NewStaticCredentialsProvider(
				accessKeyID,
				secretAccessKey,
				"",
			),
		}
	} else {
		cfg, err = config.LoadDefaultConfig(context.TODO(),
			config.WithRegion(region),
		)
		if err != nil {
			cfg = aws.Config{
				Region: region,
			}
		}
	}

	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	return &S3Storage{
		client:  s3.NewFromConfig(cfg),
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		expiry:  expiry,
	}
}

// PresignEvidenceUpload returns a presigned PUT URL under evidence/<commodity>/<day>/
func (s *S3Storage) PresignEvidenceUpload(ctx context.Context, commodityID uint, filename, contentType string) (*PresignedURLResponse, error) {
	if err := s.ValidateContentType(contentType, AllowedEvidenceTypes); err != nil {
		return nil, err
	}

	folder := fmt.Sprintf("%s/%d/%s", evidenceFolder, commodityID, time.Now().UTC().Format("2006-01-02"))
	return s.GeneratePresignedURLWithFolder(ctx, filename, contentType, folder)
}

// GeneratePresignedURLWithFolder generates a pre-signed URL for uploading a file to a specific folder
func (s *S3Storage) GeneratePresignedURLWithFolder(ctx context.Context, filename, contentType, folder string) (*PresignedURLResponse, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	key := fmt.Sprintf("%s/%s%s", folder, uuid.New().String(), ext)

	presignClient := s3.NewPresignClient(s.client)

	presignedReq, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return &PresignedURLResponse{
		UploadURL: presignedReq.URL,
		FileURL:   s.FileURL(key),
		Key:       key,
		ExpiresAt: time.Now().Add(s.expiry),
	}, nil
}

// FileURL public URL of key
func (s *S3Storage) FileURL(key string) string {
	if s.baseURL != "" {
		// CloudFront or custom domain
		return fmt.Sprintf("%s/%s", s.baseURL, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.client.Options().Region, key)
}

// ValidateFileSize validates the file size
func (s *S3Storage) ValidateFileSize(size int64, maxSize int64) error {
	if size > maxSize {
		return fmt.Errorf("file size exceeds maximum allowed size of %d bytes", maxSize)
	}
	return nil
}

// ValidateContentType validates the content type
func (s *S3Storage) ValidateContentType(contentType string, allowedTypes []string) error {
	for _, allowed := range allowedTypes {
		if contentType == allowed {
			return nil
		}
	}
	return fmt.Errorf("content type %s is not allowed", contentType)
}
