package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hargapangan/pangan-monitor/internal/app/model"
	"github.com/hargapangan/pangan-monitor/internal/app/repository"
	"github.com/hargapangan/pangan-monitor/internal/cache"
	"github.com/hargapangan/pangan-monitor/internal/hargaapi"
	"github.com/hargapangan/pangan-monitor/internal/reconcile"
	"github.com/hargapangan/pangan-monitor/internal/storage"
	"github.com/hargapangan/pangan-monitor/pkg/logger"
)

var (
	ErrEvidenceStorageDisabled = errors.New("evidence storage is not configured")
	ErrInvalidEvidenceType     = errors.New("evidence content type is not allowed")
	ErrEvidenceTooLarge        = errors.New("evidence file is too large")
)

// OverrideSubmitInput override received from a client
type OverrideSubmitInput struct {
	reconcile.OverrideInput
	UserID string
	// CurrentPrice baseline shown to the user; fetched from the national feed when nil
	CurrentPrice *float64
	EvidenceKey  string
	Evidence     *hargaapi.File
}

// OverrideOutcome result of a forwarded override
type OverrideOutcome struct {
	Submission *model.OverrideSubmission    `json:"submission"`
	Evaluation reconcile.OverrideEvaluation `json:"evaluation"`
	Message    string                       `json:"message"`
}

// OverrideService evaluates, forwards and audits manual price overrides
type OverrideService interface {
	Preview(ctx context.Context, sess hargaapi.Session, commodityID uint, proposed float64, current *float64) (*reconcile.OverrideEvaluation, error)
	Submit(ctx context.Context, sess hargaapi.Session, in OverrideSubmitInput) (*OverrideOutcome, error)
	History(filter repository.OverrideFilter) ([]model.OverrideSubmission, int64, error)
	PresignEvidence(ctx context.Context, commodityID uint, filename, contentType string, size int64) (*storage.PresignedURLResponse, error)
}

type overrideService struct {
	backend  PriceBackend
	national *nationalFeed
	repo     repository.OverrideRepository
	evidence storage.EvidenceStorage
	policy   reconcile.OverridePolicy
	notifier ChangeNotifier
}

// NewOverrideService creates an override service; evidence and notifier may be nil
func NewOverrideService(
	backend PriceBackend,
	snapshotCache cache.SnapshotCache,
	snapshots repository.SnapshotRepository,
	repo repository.OverrideRepository,
	evidence storage.EvidenceStorage,
	threshold float64,
	notifier ChangeNotifier,
) OverrideService {
	return &overrideService{
		backend:  backend,
		national: newNationalFeed(backend, snapshotCache, snapshots),
		repo:     repo,
		evidence: evidence,
		policy:   reconcile.NewOverridePolicy(threshold),
		notifier: notifier,
	}
}

func (s *overrideService) Preview(ctx context.Context, sess hargaapi.Session, commodityID uint, proposed float64, current *float64) (*reconcile.OverrideEvaluation, error) {
	if !(proposed > 0) {
		return nil, reconcile.FieldErrors{"override_price": "price must be greater than 0"}
	}

	if current == nil && commodityID != 0 {
		baseline, err := s.baseline(ctx, sess, commodityID)
		if err != nil {
			return nil, err
		}
		current = baseline
	}

	eval := s.policy.Evaluate(proposed, current)
	return &eval, nil
}

func (s *overrideService) Submit(ctx context.Context, sess hargaapi.Session, in OverrideSubmitInput) (*OverrideOutcome, error) {
	if strings.TrimSpace(in.Date) == "" {
		in.Date = today()
	}
	if err := reconcile.ValidateOverride(in.OverrideInput, now()); err != nil {
		return nil, err
	}
	if in.Evidence != nil && !allowedEvidence(in.Evidence.ContentType) {
		return nil, ErrInvalidEvidenceType
	}

	// the evaluation is advisory: an unreachable baseline never blocks a submission
	current, baselineFailed := in.CurrentPrice, false
	if current == nil {
		baseline, err := s.baseline(ctx, sess, in.CommodityID)
		if err != nil {
			logger.Warn("Submitting override without baseline", map[string]interface{}{
				"commodity_id": in.CommodityID,
				"error":        err.Error(),
			})
			baselineFailed = true
		}
		current = baseline
	}
	eval := s.policy.Evaluate(in.OverridePrice, current)

	submission := &model.OverrideSubmission{
		UserID:           in.UserID,
		CommodityID:      in.CommodityID,
		OverridePrice:    in.OverridePrice,
		CurrentPrice:     eval.CurrentPrice,
		DeviationPercent: eval.DeviationPercent,
		HasBaseline:      eval.HasBaseline,
		Tier:             string(eval.Tier),
		Reason:           strings.TrimSpace(in.Reason),
		SourceInfo:       strings.TrimSpace(in.SourceInfo),
		PriceDate:        in.Date,
		EvidenceKey:      in.EvidenceKey,
		Status:           model.OverrideFailed,
		Warnings:         s.warnings(eval, in, baselineFailed),
	}
	if err := s.repo.Create(submission); err != nil {
		return nil, err
	}

	result, err := s.backend.SubmitOverride(ctx, sess, hargaapi.OverrideRequest{
		CommodityID:   in.CommodityID,
		OverridePrice: in.OverridePrice,
		Reason:        submission.Reason,
		SourceInfo:    submission.SourceInfo,
		Date:          in.Date,
		EvidenceKey:   in.EvidenceKey,
		Evidence:      in.Evidence,
	})
	if err != nil {
		if msg, ok := hargaapi.RejectionMessage(err); ok {
			submission.Status = model.OverrideRejected
			submission.BackendMessage = msg
		} else {
			submission.BackendMessage = err.Error()
		}
		s.record(submission)

		logger.Error("Failed to submit override", err, map[string]interface{}{
			"submission_id": submission.ID,
			"commodity_id":  in.CommodityID,
			"status":        submission.Status,
		})
		return nil, fmt.Errorf("failed to submit override: %w", err)
	}

	submission.Status = model.OverrideForwarded
	submission.BackendMessage = result.Message
	s.record(submission)

	logger.Info("Override forwarded", map[string]interface{}{
		"submission_id":     submission.ID,
		"commodity_id":      in.CommodityID,
		"tier":              submission.Tier,
		"deviation_percent": submission.DeviationPercent,
	})

	if s.notifier != nil {
		s.notifier.NotifyChange(sess, in.CommodityID, "override_submitted")
	}

	return &OverrideOutcome{
		Submission: submission,
		Evaluation: eval,
		Message:    result.Message,
	}, nil
}

func (s *overrideService) History(filter repository.OverrideFilter) ([]model.OverrideSubmission, int64, error) {
	return s.repo.FindAll(filter)
}

func (s *overrideService) PresignEvidence(ctx context.Context, commodityID uint, filename, contentType string, size int64) (*storage.PresignedURLResponse, error) {
	if s.evidence == nil {
		return nil, ErrEvidenceStorageDisabled
	}
	if commodityID == 0 {
		return nil, reconcile.FieldErrors{"commodity_id": "commodity is required"}
	}
	if strings.TrimSpace(filename) == "" {
		return nil, reconcile.FieldErrors{"filename": "filename is required"}
	}
	if err := s.evidence.ValidateFileSize(size, storage.MaxEvidenceSize); err != nil {
		return nil, ErrEvidenceTooLarge
	}
	if err := s.evidence.ValidateContentType(contentType, storage.AllowedEvidenceTypes); err != nil {
		return nil, ErrInvalidEvidenceType
	}

	presigned, err := s.evidence.PresignEvidenceUpload(ctx, commodityID, filename, contentType)
	if err != nil {
		logger.Error("Failed to presign evidence upload", err, map[string]interface{}{
			"commodity_id": commodityID,
		})
		return nil, err
	}
	return presigned, nil
}

func (s *overrideService) baseline(ctx context.Context, sess hargaapi.Session, commodityID uint) (*float64, error) {
	latest, err := s.national.latestFor(ctx, sess, commodityID)
	if err != nil {
		logger.Error("Failed to fetch override baseline", err, map[string]interface{}{
			"commodity_id": commodityID,
		})
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}
	price := latest.Price
	return &price, nil
}

func (s *overrideService) warnings(eval reconcile.OverrideEvaluation, in OverrideSubmitInput, baselineFailed bool) []string {
	warnings := []string{}
	switch {
	case baselineFailed:
		warnings = append(warnings, "Harga nasional saat ini gagal diambil, deviasi dihitung 0%")
	case !eval.HasBaseline:
		warnings = append(warnings, "Harga nasional saat ini tidak tersedia, deviasi dihitung 0%")
	}
	if eval.Tier == reconcile.TierRequiresAdmin {
		warnings = append(warnings, fmt.Sprintf(
			"Deviasi %.2f%% melebihi batas %.0f%%, perlu persetujuan admin",
			eval.DeviationPercent, s.policy.Threshold,
		))
		if in.Evidence == nil && in.EvidenceKey == "" {
			warnings = append(warnings, "Tidak ada bukti pendukung yang dilampirkan")
		}
	}
	return warnings
}

// record persists the final status; the backend outcome stands even if this fails
func (s *overrideService) record(submission *model.OverrideSubmission) {
	if err := s.repo.Update(submission); err != nil {
		logger.Warn("Failed to record override outcome", map[string]interface{}{
			"submission_id": submission.ID,
			"error":         err.Error(),
		})
	}
}

func allowedEvidence(contentType string) bool {
	for _, allowed := range storage.AllowedEvidenceTypes {
		if contentType == allowed {
			return true
		}
	}
	return false
}
