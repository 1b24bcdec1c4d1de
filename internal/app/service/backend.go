package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hargapangan/pangan-monitor/internal/app/model"
	"github.com/hargapangan/pangan-monitor/internal/app/repository"
	"github.com/hargapangan/pangan-monitor/internal/cache"
	"github.com/hargapangan/pangan-monitor/internal/hargaapi"
	"github.com/hargapangan/pangan-monitor/internal/reconcile"
	"github.com/hargapangan/pangan-monitor/pkg/logger"
)

// now is the clock of every service; tests replace it
var now = time.Now

// PriceBackend the upstream price backend; *hargaapi.Client implements it
type PriceBackend interface {
	ListCurrentPrices(ctx context.Context, sess hargaapi.Session, q hargaapi.CurrentPricesQuery) (*hargaapi.CurrentPricesPage, error)
	ListAllCurrentPrices(ctx context.Context, sess hargaapi.Session, category string) ([]reconcile.NationalRaw, error)
	ListMarketPrices(ctx context.Context, sess hargaapi.Session, q hargaapi.MarketPricesQuery) (*hargaapi.MarketPricesPage, error)
	ListAllMarketPrices(ctx context.Context, sess hargaapi.Session, q hargaapi.MarketPricesQuery) ([]reconcile.MarketRaw, error)
	MarketPriceTrends(ctx context.Context, sess hargaapi.Session, commodityID uint) (*hargaapi.TrendData, error)
	SubmitOverride(ctx context.Context, sess hargaapi.Session, req hargaapi.OverrideRequest) (*hargaapi.SubmitResult, error)
	CreateMarketPrice(ctx context.Context, sess hargaapi.Session, req hargaapi.MarketPriceRequest) (*reconcile.MarketRaw, error)
	UpdateMarketPrice(ctx context.Context, sess hargaapi.Session, id uint, req hargaapi.MarketPriceRequest) (*reconcile.MarketRaw, error)
	DeleteMarketPrice(ctx context.Context, sess hargaapi.Session, id uint) error
}

// ChangeNotifier is told about every price write; the live feed implements it
type ChangeNotifier interface {
	NotifyChange(sess hargaapi.Session, commodityID uint, reason string)
}

func today() string {
	return now().UTC().Format(reconcile.DateLayout)
}

func newNormalizer() *reconcile.Normalizer {
	return reconcile.NewNormalizer(func() time.Time { return now() })
}

// nationalFeed reads the whole national feed through the day cache and archives
// every fresh fetch
type nationalFeed struct {
	backend    PriceBackend
	cache      cache.SnapshotCache
	snapshots  repository.SnapshotRepository
	normalizer *reconcile.Normalizer
}

func newNationalFeed(backend PriceBackend, snapshotCache cache.SnapshotCache, snapshots repository.SnapshotRepository) *nationalFeed {
	return &nationalFeed{
		backend:    backend,
		cache:      snapshotCache,
		snapshots:  snapshots,
		normalizer: newNormalizer(),
	}
}

func (f *nationalFeed) fetch(ctx context.Context, sess hargaapi.Session, category string) ([]reconcile.NationalRaw, bool, error) {
	date := today()

	if f.cache != nil {
		items, ok, err := f.cache.GetNational(ctx, date, category)
		if err == nil && ok {
			return items, false, nil
		}
	}

	items, err := f.backend.ListAllCurrentPrices(ctx, sess, category)
	if err != nil {
		return nil, false, err
	}

	if f.cache != nil {
		if err := f.cache.SetNational(ctx, date, category, items); err != nil {
			logger.Warn("Failed to cache national feed", map[string]interface{}{
				"category": category,
				"error":    err.Error(),
			})
		}
	}
	return items, true, nil
}

// records returns the normalized feed and the number of dropped payloads
func (f *nationalFeed) records(ctx context.Context, sess hargaapi.Session, category string) ([]reconcile.PriceRecord, int, error) {
	raws, fresh, err := f.fetch(ctx, sess, category)
	if err != nil {
		return nil, 0, err
	}

	records, dropped := f.normalizer.NormalizeNational(raws)
	if dropped > 0 {
		logger.Warn("Dropped malformed national price records", map[string]interface{}{
			"category": category,
			"dropped":  dropped,
			"total":    len(raws),
		})
	}

	if fresh {
		f.archive(records)
	}
	return records, dropped, nil
}

// latestFor the most recent national record of commodityID
func (f *nationalFeed) latestFor(ctx context.Context, sess hargaapi.Session, commodityID uint) (*reconcile.PriceRecord, error) {
	records, _, err := f.records(ctx, sess, "")
	if err != nil {
		return nil, err
	}

	var latest *reconcile.PriceRecord
	for i := range records {
		if records[i].Commodity.ID != commodityID {
			continue
		}
		if latest == nil || !records[i].Date.Before(latest.Date) {
			latest = &records[i]
		}
	}
	return latest, nil
}

func (f *nationalFeed) archive(records []reconcile.PriceRecord) {
	if f.snapshots == nil || len(records) == 0 {
		return
	}

	snapshots := make([]model.PriceSnapshot, 0, len(records))
	seen := make(map[string]int, len(records))
	for _, rec := range records {
		snap := model.PriceSnapshot{
			CommodityID:   rec.Commodity.ID,
			CommodityName: rec.Commodity.Name,
			Unit:          rec.Commodity.Unit,
			Category:      string(rec.Commodity.Category),
			Price:         rec.Price,
			PriceDate:     rec.DateKey(),
		}
		// one row per commodity and day, the later record wins
		key := fmt.Sprintf("%d:%s", snap.CommodityID, snap.PriceDate)
		if i, ok := seen[key]; ok {
			snapshots[i] = snap
			continue
		}
		seen[key] = len(snapshots)
		snapshots = append(snapshots, snap)
	}

	if err := f.snapshots.UpsertMany(snapshots); err != nil {
		logger.Warn("Failed to archive national prices", map[string]interface{}{
			"count": len(snapshots),
			"error": err.Error(),
		})
	}
}
