package service

import (
	"context"

	"github.com/hargapangan/pangan-monitor/internal/app/repository"
	"github.com/hargapangan/pangan-monitor/internal/hargaapi"
	"github.com/hargapangan/pangan-monitor/internal/reconcile"
	"github.com/hargapangan/pangan-monitor/pkg/logger"
)

// MaxTrendDays upper bound of a trend lookback
const MaxTrendDays = 365

// Where the national side of a trend came from
const (
	NationalFromBackend = "backend"
	NationalFromArchive = "archive"
)

// TrendReport chart series of one commodity
type TrendReport struct {
	CommodityID    uint                   `json:"commodity_id"`
	Days           int                    `json:"days"`
	Points         []reconcile.TrendPoint `json:"points"`
	Dropped        int                    `json:"dropped"`
	NationalSource string                 `json:"national_source"`
}

// TrendService builds national vs. market price charts
type TrendService interface {
	GetTrend(ctx context.Context, sess hargaapi.Session, commodityID uint, days int) (*TrendReport, error)
}

type trendService struct {
	backend     PriceBackend
	snapshots   repository.SnapshotRepository
	defaultDays int
}

// NewTrendService creates a trend service; snapshots may be nil
func NewTrendService(backend PriceBackend, snapshots repository.SnapshotRepository, defaultDays int) TrendService {
	if defaultDays <= 0 {
		defaultDays = reconcile.DefaultLookbackDays
	}
	return &trendService{
		backend:     backend,
		snapshots:   snapshots,
		defaultDays: defaultDays,
	}
}

func (s *trendService) GetTrend(ctx context.Context, sess hargaapi.Session, commodityID uint, days int) (*TrendReport, error) {
	if commodityID == 0 {
		return nil, reconcile.FieldErrors{"commodity_id": "commodity is required"}
	}
	if days <= 0 {
		days = s.defaultDays
	}
	if days > MaxTrendDays {
		return nil, reconcile.FieldErrors{"days": "days cannot exceed 365"}
	}

	data, err := s.backend.MarketPriceTrends(ctx, sess, commodityID)
	if err != nil {
		logger.Error("Failed to fetch price trends", err, map[string]interface{}{
			"commodity_id": commodityID,
		})
		return nil, err
	}

	current := now()
	national, droppedNational := reconcile.SeriesFromPoints(data.NationalPrices, current)
	market, droppedMarket := reconcile.SeriesFromPoints(data.MarketPrices, current)
	dropped := droppedNational + droppedMarket
	if dropped > 0 {
		logger.Warn("Dropped malformed trend points", map[string]interface{}{
			"commodity_id": commodityID,
			"dropped":      dropped,
		})
	}

	source := NationalFromBackend
	if len(national) == 0 {
		if archived := s.archived(commodityID, days); len(archived) > 0 {
			national = archived
			source = NationalFromArchive
		}
	}

	points := reconcile.Lookback(reconcile.BuildTrend(national, market), days, current)

	return &TrendReport{
		CommodityID:    commodityID,
		Days:           days,
		Points:         points,
		Dropped:        dropped,
		NationalSource: source,
	}, nil
}

// archived national series of commodityID from the local snapshot archive
func (s *trendService) archived(commodityID uint, days int) map[string]float64 {
	if s.snapshots == nil {
		return nil
	}

	end := reconcile.Day(now())
	start := end.AddDate(0, 0, -(days - 1))
	snapshots, err := s.snapshots.FindByCommodityAndDateRange(
		commodityID,
		start.Format(reconcile.DateLayout),
		end.Format(reconcile.DateLayout),
	)
	if err != nil {
		logger.Warn("Trend archive fallback failed", map[string]interface{}{
			"commodity_id": commodityID,
			"error":        err.Error(),
		})
		return nil
	}

	series := make(map[string]float64, len(snapshots))
	for _, snap := range snapshots {
		series[snap.PriceDate] = snap.Price
	}
	return series
}
