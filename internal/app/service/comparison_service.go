package service

import (
	"context"
	"time"

	"github.com/hargapangan/pangan-monitor/internal/app/repository"
	"github.com/hargapangan/pangan-monitor/internal/cache"
	"github.com/hargapangan/pangan-monitor/internal/hargaapi"
	"github.com/hargapangan/pangan-monitor/internal/reconcile"
	"github.com/hargapangan/pangan-monitor/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// CompareQuery filters of a comparison. Date pins a single day; StartDate and
// EndDate give a range. With neither, the window is today.
type CompareQuery struct {
	CommodityID uint
	Date        string
	StartDate   string
	EndDate     string
}

// ComparisonReport comparison plus how it was produced
type ComparisonReport struct {
	reconcile.Comparison
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	DroppedNational int    `json:"dropped_national"`
	DroppedMarket   int    `json:"dropped_market"`
}

// ComparisonService reconciles national prices with market submissions
type ComparisonService interface {
	Compare(ctx context.Context, sess hargaapi.Session, q CompareQuery) (*ComparisonReport, error)
	CompareCommodity(ctx context.Context, sess hargaapi.Session, commodityID uint) (*reconcile.Comparison, error)
}

type comparisonService struct {
	backend  PriceBackend
	national *nationalFeed
}

// NewComparisonService creates a comparison service
func NewComparisonService(backend PriceBackend, snapshotCache cache.SnapshotCache, snapshots repository.SnapshotRepository) ComparisonService {
	return &comparisonService{
		backend:  backend,
		national: newNationalFeed(backend, snapshotCache, snapshots),
	}
}

// window resolves the query into inclusive day bounds
func (q CompareQuery) window() (time.Time, time.Time, error) {
	if q.Date != "" {
		fields := reconcile.FieldErrors{}
		d, err := reconcile.ParseDate(q.Date)
		if err != nil {
			fields["date"] = "date must be YYYY-MM-DD"
			return time.Time{}, time.Time{}, fields
		}
		return d, d, nil
	}

	if err := validateRange(q.StartDate, q.EndDate); err != nil {
		return time.Time{}, time.Time{}, err
	}

	to := reconcile.Day(now())
	if q.EndDate != "" {
		to, _ = reconcile.ParseDate(q.EndDate)
	}
	from := to
	if q.StartDate != "" {
		from, _ = reconcile.ParseDate(q.StartDate)
	}
	return from, to, nil
}

func (s *comparisonService) Compare(ctx context.Context, sess hargaapi.Session, q CompareQuery) (*ComparisonReport, error) {
	from, to, err := q.window()
	if err != nil {
		return nil, err
	}
	startDate := from.Format(reconcile.DateLayout)
	endDate := to.Format(reconcile.DateLayout)

	var (
		national        []reconcile.PriceRecord
		droppedNational int
		rawMarket       []reconcile.MarketRaw
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		national, droppedNational, err = s.national.records(gctx, sess, "")
		if err != nil {
			logger.Error("Failed to fetch national prices for comparison", err, map[string]interface{}{
				"commodity_id": q.CommodityID,
			})
		}
		return err
	})
	g.Go(func() error {
		var err error
		rawMarket, err = s.backend.ListAllMarketPrices(gctx, sess, hargaapi.MarketPricesQuery{
			CommodityID: q.CommodityID,
			StartDate:   startDate,
			EndDate:     endDate,
		})
		if err != nil {
			logger.Error("Failed to fetch market prices for comparison", err, map[string]interface{}{
				"commodity_id": q.CommodityID,
				"start_date":   startDate,
				"end_date":     endDate,
			})
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	market, droppedMarket := newNormalizer().NormalizeMarket(rawMarket)

	if droppedNational > 0 || droppedMarket > 0 {
		logger.Warn("Comparison skipped malformed records", map[string]interface{}{
			"commodity_id":     q.CommodityID,
			"dropped_national": droppedNational,
			"dropped_market":   droppedMarket,
		})
	}

	// The national feed publishes one current price per commodity, so the
	// national side is the latest price published on or before the window end.
	comparison := reconcile.Compare(reconcile.CompareInput{
		CommodityID: q.CommodityID,
		National:    onOrBefore(national, to),
		Market:      within(market, from, to),
	})

	return &ComparisonReport{
		Comparison:      comparison,
		StartDate:       startDate,
		EndDate:         endDate,
		DroppedNational: droppedNational,
		DroppedMarket:   droppedMarket,
	}, nil
}

func (s *comparisonService) CompareCommodity(ctx context.Context, sess hargaapi.Session, commodityID uint) (*reconcile.Comparison, error) {
	report, err := s.Compare(ctx, sess, CompareQuery{CommodityID: commodityID})
	if err != nil {
		return nil, err
	}
	return &report.Comparison, nil
}

func onOrBefore(records []reconcile.PriceRecord, to time.Time) []reconcile.PriceRecord {
	out := make([]reconcile.PriceRecord, 0, len(records))
	for _, rec := range records {
		if !reconcile.Day(rec.Date).After(to) {
			out = append(out, rec)
		}
	}
	return out
}

func within(records []reconcile.PriceRecord, from, to time.Time) []reconcile.PriceRecord {
	out := make([]reconcile.PriceRecord, 0, len(records))
	for _, rec := range records {
		day := reconcile.Day(rec.Date)
		if day.Before(from) || day.After(to) {
			continue
		}
		out = append(out, rec)
	}
	return out
}
