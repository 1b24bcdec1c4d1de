package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(baseURL string) *S3Storage {
	return NewS3Storage("ap-southeast-3", "evidence-bucket", "AKIDTEST", "secret", baseURL, 5*time.Minute)
}

func TestS3Storage_PresignEvidenceUpload(t *testing.T) {
	s := newTestStorage("")

	res, err := s.PresignEvidenceUpload(context.Background(), 7, "Bukti Harga.JPG", "image/jpeg")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.Key, "evidence/7/"), res.Key)
	assert.True(t, strings.HasSuffix(res.Key, ".jpg"), res.Key)
	assert.Contains(t, res.UploadURL, "evidence-bucket")
	assert.Contains(t, res.UploadURL, "X-Amz-Signature")
	assert.Equal(t, "https://evidence-bucket.s3.ap-southeast-3.amazonaws.com/"+res.Key, res.FileURL)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), res.ExpiresAt, time.Minute)
}

func TestS3Storage_PresignEvidenceUpload_RejectsContentType(t *testing.T) {
	s := newTestStorage("")

	_, err := s.PresignEvidenceUpload(context.Background(), 7, "script.sh", "text/x-shellscript")
	assert.Error(t, err)
}

func TestS3Storage_FileURLWithBaseURL(t *testing.T) {
	s := newTestStorage("https://cdn.example.id/")
	assert.Equal(t, "https://cdn.example.id/evidence/a.png", s.FileURL("evidence/a.png"))
}

func TestS3Storage_ValidateFileSize(t *testing.T) {
	s := newTestStorage("")
	assert.NoError(t, s.ValidateFileSize(MaxEvidenceSize, MaxEvidenceSize))
	assert.Error(t, s.ValidateFileSize(MaxEvidenceSize+1, MaxEvidenceSize))
}
