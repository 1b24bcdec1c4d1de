package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hargapangan/pangan-monitor/internal/app/model"
	"github.com/hargapangan/pangan-monitor/internal/app/repository"
	"github.com/hargapangan/pangan-monitor/internal/db"
	"github.com/hargapangan/pangan-monitor/internal/hargaapi"
	"github.com/hargapangan/pangan-monitor/internal/reconcile"
	"github.com/hargapangan/pangan-monitor/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvidenceStorage struct {
	presigned []string
}

func (s *fakeEvidenceStorage) PresignEvidenceUpload(ctx context.Context, commodityID uint, filename, contentType string) (*storage.PresignedURLResponse, error) {
	key := fmt.Sprintf("evidence/%d/2025-03-10/abc.pdf", commodityID)
	s.presigned = append(s.presigned, key)
	return &storage.PresignedURLResponse{
		UploadURL: "https://bucket.example/" + key + "?sig=1",
		FileURL:   "https://cdn.example/" + key,
		Key:       key,
		ExpiresAt: testNow.Add(15 * time.Minute),
	}, nil
}

func (s *fakeEvidenceStorage) ValidateFileSize(size int64, maxSize int64) error {
	if size > maxSize {
		return fmt.Errorf("too large")
	}
	return nil
}

func (s *fakeEvidenceStorage) ValidateContentType(contentType string, allowedTypes []string) error {
	for _, allowed := range allowedTypes {
		if contentType == allowed {
			return nil
		}
	}
	return fmt.Errorf("not allowed")
}

func setupOverrideServiceTest(t *testing.T, backend *fakeBackend) (OverrideService, repository.OverrideRepository, *recordingNotifier) {
	setClock(t, testNow)

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	repo := repository.NewOverrideRepository(testDB)
	notifier := &recordingNotifier{}
	svc := NewOverrideService(backend, nil, nil, repo, &fakeEvidenceStorage{}, 50, notifier)
	return svc, repo, notifier
}

func validOverride(price float64) OverrideSubmitInput {
	return OverrideSubmitInput{
		OverrideInput: reconcile.OverrideInput{
			CommodityID:   1,
			OverridePrice: price,
			Reason:        "Harga di lapangan naik karena gagal panen",
			SourceInfo:    "Survei Dinas Pertanian",
		},
		UserID: "42",
	}
}

func TestOverrideService_Preview(t *testing.T) {
	backend := &fakeBackend{
		national: []reconcile.NationalRaw{nationalRaw(1, "Beras Medium", 10000, "2025-03-10")},
	}
	svc, _, _ := setupOverrideServiceTest(t, backend)
	ctx := context.Background()

	current := 20000.0
	tests := []struct {
		name        string
		commodityID uint
		proposed    float64
		current     *float64
		deviation   float64
		tier        reconcile.Tier
		baseline    bool
	}{
		{name: "baseline from feed", commodityID: 1, proposed: 15000, deviation: 50, tier: reconcile.TierAutoApproved, baseline: true},
		{name: "above threshold", commodityID: 1, proposed: 15001, deviation: 50.01, tier: reconcile.TierRequiresAdmin, baseline: true},
		{name: "explicit baseline", commodityID: 1, proposed: 10000, current: &current, deviation: -50, tier: reconcile.TierAutoApproved, baseline: true},
		{name: "unknown commodity", commodityID: 5, proposed: 99999, deviation: 0, tier: reconcile.TierAutoApproved, baseline: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval, err := svc.Preview(ctx, hargaapi.Session{}, tt.commodityID, tt.proposed, tt.current)
			require.NoError(t, err)
			assert.Equal(t, tt.deviation, eval.DeviationPercent)
			assert.Equal(t, tt.tier, eval.Tier)
			assert.Equal(t, tt.baseline, eval.HasBaseline)
		})
	}

	_, err := svc.Preview(ctx, hargaapi.Session{}, 1, 0, nil)
	_, ok := reconcile.AsFieldErrors(err)
	assert.True(t, ok)
}

func TestOverrideService_Submit_Forwarded(t *testing.T) {
	backend := &fakeBackend{
		national: []reconcile.NationalRaw{nationalRaw(1, "Beras Medium", 10000, "2025-03-10")},
	}
	svc, repo, notifier := setupOverrideServiceTest(t, backend)

	in := validOverride(16000)
	in.Evidence = &hargaapi.File{Name: "bukti.pdf", ContentType: "application/pdf", Reader: strings.NewReader("%PDF")}

	outcome, err := svc.Submit(context.Background(), hargaapi.Session{Token: "t"}, in)
	require.NoError(t, err)

	assert.Equal(t, "Override berhasil diajukan", outcome.Message)
	assert.Equal(t, reconcile.TierRequiresAdmin, outcome.Evaluation.Tier)
	assert.Equal(t, model.OverrideForwarded, outcome.Submission.Status)

	require.Len(t, backend.overrides, 1)
	assert.Equal(t, "2025-03-10", backend.overrides[0].Date)
	assert.NotNil(t, backend.overrides[0].Evidence)

	stored, err := repo.FindByID(outcome.Submission.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OverrideForwarded, stored.Status)
	assert.Equal(t, "42", stored.UserID)
	assert.Equal(t, 60.0, stored.DeviationPercent)
	assert.Len(t, stored.Warnings, 1)

	assert.Equal(t, []string{"override_submitted"}, notifier.changes)
}

func TestOverrideService_Submit_BaselineUnavailable(t *testing.T) {
	backend := &fakeBackend{err: hargaapi.ErrNetwork}
	svc, repo, _ := setupOverrideServiceTest(t, backend)
	ctx := context.Background()

	// preview reports the failure, submission still goes through
	_, err := svc.Preview(ctx, hargaapi.Session{}, 1, 12000, nil)
	assert.ErrorIs(t, err, hargaapi.ErrNetwork)

	outcome, err := svc.Submit(ctx, hargaapi.Session{Token: "t"}, validOverride(12000))
	require.NoError(t, err)
	require.Len(t, backend.overrides, 1)

	assert.False(t, outcome.Evaluation.HasBaseline)
	assert.Equal(t, 0.0, outcome.Evaluation.DeviationPercent)
	assert.Equal(t, reconcile.TierAutoApproved, outcome.Evaluation.Tier)

	stored, err := repo.FindByID(outcome.Submission.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OverrideForwarded, stored.Status)
	require.Len(t, stored.Warnings, 1)
	assert.Contains(t, stored.Warnings[0], "gagal diambil")
}

func TestOverrideService_Submit_Rejected(t *testing.T) {
	backend := &fakeBackend{
		submitErr: &hargaapi.RejectedError{StatusCode: 409, Message: "Override untuk tanggal ini sudah ada"},
	}
	svc, repo, notifier := setupOverrideServiceTest(t, backend)

	outcome, err := svc.Submit(context.Background(), hargaapi.Session{}, validOverride(12000))
	require.Error(t, err)
	assert.Nil(t, outcome)

	msg, ok := hargaapi.RejectionMessage(err)
	require.True(t, ok)
	assert.Equal(t, "Override untuk tanggal ini sudah ada", msg)

	history, total, err := repo.FindAll(repository.OverrideFilter{})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, model.OverrideRejected, history[0].Status)
	assert.Equal(t, "Override untuk tanggal ini sudah ada", history[0].BackendMessage)
	assert.False(t, history[0].HasBaseline)
	assert.Empty(t, notifier.changes)
}

func TestOverrideService_Submit_Invalid(t *testing.T) {
	backend := &fakeBackend{}
	svc, repo, _ := setupOverrideServiceTest(t, backend)
	ctx := context.Background()

	in := validOverride(12000)
	in.Reason = "pendek"
	in.Date = "2025-03-11"
	_, err := svc.Submit(ctx, hargaapi.Session{}, in)
	fields, ok := reconcile.AsFieldErrors(err)
	require.True(t, ok)
	assert.Contains(t, fields, "reason")
	assert.Contains(t, fields, "date")

	in = validOverride(12000)
	in.Evidence = &hargaapi.File{Name: "bukti.exe", ContentType: "application/x-msdownload", Reader: strings.NewReader("MZ")}
	_, err = svc.Submit(ctx, hargaapi.Session{}, in)
	assert.ErrorIs(t, err, ErrInvalidEvidenceType)

	assert.Empty(t, backend.overrides)
	_, total, err := repo.FindAll(repository.OverrideFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestOverrideService_PresignEvidence(t *testing.T) {
	svc, _, _ := setupOverrideServiceTest(t, &fakeBackend{})
	ctx := context.Background()

	presigned, err := svc.PresignEvidence(ctx, 1, "bukti.pdf", "application/pdf", 1024)
	require.NoError(t, err)
	assert.Equal(t, "evidence/1/2025-03-10/abc.pdf", presigned.Key)

	_, err = svc.PresignEvidence(ctx, 1, "bukti.pdf", "application/pdf", storage.MaxEvidenceSize+1)
	assert.ErrorIs(t, err, ErrEvidenceTooLarge)

	_, err = svc.PresignEvidence(ctx, 1, "bukti.gif", "image/gif", 1024)
	assert.ErrorIs(t, err, ErrInvalidEvidenceType)

	disabled := NewOverrideService(&fakeBackend{}, nil, nil, nil, nil, 50, nil)
	_, err = disabled.PresignEvidence(ctx, 1, "bukti.pdf", "application/pdf", 1024)
	assert.ErrorIs(t, err, ErrEvidenceStorageDisabled)
}
