package controller

import (
	"context"
	"io"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/hargapangan/pangan-monitor/internal/app/model"
	"github.com/hargapangan/pangan-monitor/internal/app/repository"
	"github.com/hargapangan/pangan-monitor/internal/app/service"
	"github.com/hargapangan/pangan-monitor/internal/hargaapi"
	"github.com/hargapangan/pangan-monitor/internal/reconcile"
	"github.com/hargapangan/pangan-monitor/internal/storage"
)

func newTestRouter(userID, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("user_role", role)
		c.Set("session", hargaapi.Session{Token: "upstream-token"})
		c.Next()
	})
	return router
}

type stubPriceService struct {
	list    *service.PriceList
	record  *reconcile.PriceRecord
	err     error
	created []service.MarketPriceInput
	image   []byte
	deleted [][2]uint
	session hargaapi.Session
}

func (s *stubPriceService) GetCurrentPrices(ctx context.Context, sess hargaapi.Session, q service.CurrentPricesQuery) (*service.PriceList, error) {
	s.session = sess
	return s.list, s.err
}

func (s *stubPriceService) ListMarketPrices(ctx context.Context, sess hargaapi.Session, q hargaapi.MarketPricesQuery) (*service.PriceList, error) {
	return s.list, s.err
}

func (s *stubPriceService) CreateMarketPrice(ctx context.Context, sess hargaapi.Session, in service.MarketPriceInput) (*reconcile.PriceRecord, error) {
	s.created = append(s.created, in)
	if in.Image != nil {
		s.image, _ = io.ReadAll(in.Image.Reader)
	}
	return s.record, s.err
}

func (s *stubPriceService) UpdateMarketPrice(ctx context.Context, sess hargaapi.Session, id uint, in service.MarketPriceInput) (*reconcile.PriceRecord, error) {
	return s.record, s.err
}

func (s *stubPriceService) DeleteMarketPrice(ctx context.Context, sess hargaapi.Session, id uint, commodityID uint) error {
	s.deleted = append(s.deleted, [2]uint{id, commodityID})
	return s.err
}

type stubComparisonService struct {
	report *service.ComparisonReport
	err    error
	query  service.CompareQuery
}

func (s *stubComparisonService) Compare(ctx context.Context, sess hargaapi.Session, q service.CompareQuery) (*service.ComparisonReport, error) {
	s.query = q
	return s.report, s.err
}

func (s *stubComparisonService) CompareCommodity(ctx context.Context, sess hargaapi.Session, commodityID uint) (*reconcile.Comparison, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &s.report.Comparison, nil
}

type stubTrendService struct {
	report *service.TrendReport
	err    error
	days   int
}

func (s *stubTrendService) GetTrend(ctx context.Context, sess hargaapi.Session, commodityID uint, days int) (*service.TrendReport, error) {
	s.days = days
	return s.report, s.err
}

type stubOverrideService struct {
	eval      *reconcile.OverrideEvaluation
	outcome   *service.OverrideOutcome
	presigned *storage.PresignedURLResponse
	err       error
	submitted []service.OverrideSubmitInput
	evidence  []byte
	filter    repository.OverrideFilter
	history   []model.OverrideSubmission
}

func (s *stubOverrideService) Preview(ctx context.Context, sess hargaapi.Session, commodityID uint, proposed float64, current *float64) (*reconcile.OverrideEvaluation, error) {
	return s.eval, s.err
}

func (s *stubOverrideService) Submit(ctx context.Context, sess hargaapi.Session, in service.OverrideSubmitInput) (*service.OverrideOutcome, error) {
	s.submitted = append(s.submitted, in)
	if in.Evidence != nil {
		s.evidence, _ = io.ReadAll(in.Evidence.Reader)
	}
	return s.outcome, s.err
}

func (s *stubOverrideService) History(filter repository.OverrideFilter) ([]model.OverrideSubmission, int64, error) {
	s.filter = filter
	return s.history, int64(len(s.history)), s.err
}

func (s *stubOverrideService) PresignEvidence(ctx context.Context, commodityID uint, filename, contentType string, size int64) (*storage.PresignedURLResponse, error) {
	return s.presigned, s.err
}

type stubFeed struct {
	mu        sync.Mutex
	latest    *reconcile.Comparison
	refreshed []uint
	sessions  []hargaapi.Session
}

func (f *stubFeed) Refresh(sess hargaapi.Session, commodityID uint) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, commodityID)
	f.sessions = append(f.sessions, sess)
	return uint64(len(f.refreshed))
}

func (f *stubFeed) Latest(commodityID uint) (*reconcile.Comparison, uint64, bool) {
	if f.latest == nil {
		return nil, 0, false
	}
	return f.latest, 1, true
}

func (f *stubFeed) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refreshed)
}
