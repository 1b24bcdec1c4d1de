package service

import (
	"context"
	"fmt"

	"github.com/hargapangan/pangan-monitor/internal/app/repository"
	"github.com/hargapangan/pangan-monitor/internal/cache"
	"github.com/hargapangan/pangan-monitor/internal/hargaapi"
	"github.com/hargapangan/pangan-monitor/internal/reconcile"
	"github.com/hargapangan/pangan-monitor/pkg/logger"
)

// PriceList normalized page of price records
type PriceList struct {
	Records    []reconcile.PriceRecord `json:"data"`
	Dropped    int                     `json:"dropped"`
	Pagination *hargaapi.Pagination    `json:"pagination,omitempty"`
}

// CurrentPricesQuery filters of the national price listing. Page 0 returns the whole feed.
type CurrentPricesQuery struct {
	Category string
	Page     int
	Limit    int
}

// MarketPriceInput market submission received from a client
type MarketPriceInput struct {
	hargaapi.MarketPriceRequest
}

func (in MarketPriceInput) validation() reconcile.MarketPriceInput {
	return reconcile.MarketPriceInput{
		CommodityID:    in.CommodityID,
		CommodityName:  in.CommodityName,
		Price:          in.Price,
		Date:           in.Date,
		MarketName:     in.MarketName,
		MarketLocation: in.MarketLocation,
		Quality:        in.Quality,
	}
}

// PriceService reads national and market prices and forwards market submissions
type PriceService interface {
	GetCurrentPrices(ctx context.Context, sess hargaapi.Session, q CurrentPricesQuery) (*PriceList, error)
	ListMarketPrices(ctx context.Context, sess hargaapi.Session, q hargaapi.MarketPricesQuery) (*PriceList, error)
	CreateMarketPrice(ctx context.Context, sess hargaapi.Session, in MarketPriceInput) (*reconcile.PriceRecord, error)
	UpdateMarketPrice(ctx context.Context, sess hargaapi.Session, id uint, in MarketPriceInput) (*reconcile.PriceRecord, error)
	DeleteMarketPrice(ctx context.Context, sess hargaapi.Session, id uint, commodityID uint) error
}

type priceService struct {
	backend  PriceBackend
	national *nationalFeed
	notifier ChangeNotifier
}

// NewPriceService creates a price service; notifier may be nil
func NewPriceService(
	backend PriceBackend,
	snapshotCache cache.SnapshotCache,
	snapshots repository.SnapshotRepository,
	notifier ChangeNotifier,
) PriceService {
	return &priceService{
		backend:  backend,
		national: newNationalFeed(backend, snapshotCache, snapshots),
		notifier: notifier,
	}
}

func (s *priceService) GetCurrentPrices(ctx context.Context, sess hargaapi.Session, q CurrentPricesQuery) (*PriceList, error) {
	if q.Page <= 0 {
		records, dropped, err := s.national.records(ctx, sess, q.Category)
		if err != nil {
			logger.Error("Failed to fetch national prices", err, map[string]interface{}{
				"category": q.Category,
			})
			return nil, err
		}
		return &PriceList{Records: records, Dropped: dropped}, nil
	}

	page, err := s.backend.ListCurrentPrices(ctx, sess, hargaapi.CurrentPricesQuery{
		Category: q.Category,
		Page:     q.Page,
		Limit:    q.Limit,
	})
	if err != nil {
		logger.Error("Failed to fetch national price page", err, map[string]interface{}{
			"category": q.Category,
			"page":     q.Page,
		})
		return nil, err
	}

	records, dropped := s.national.normalizer.NormalizeNational(page.Items)
	if dropped > 0 {
		logger.Warn("Dropped malformed national price records", map[string]interface{}{
			"page":    q.Page,
			"dropped": dropped,
		})
	}
	pagination := page.Pagination
	return &PriceList{Records: records, Dropped: dropped, Pagination: &pagination}, nil
}

func (s *priceService) ListMarketPrices(ctx context.Context, sess hargaapi.Session, q hargaapi.MarketPricesQuery) (*PriceList, error) {
	if err := validateRange(q.StartDate, q.EndDate); err != nil {
		return nil, err
	}

	page, err := s.backend.ListMarketPrices(ctx, sess, q)
	if err != nil {
		logger.Error("Failed to fetch market prices", err, map[string]interface{}{
			"commodity_id": q.CommodityID,
		})
		return nil, err
	}

	records, dropped := newNormalizer().NormalizeMarket(page.Items)
	if dropped > 0 {
		logger.Warn("Dropped malformed market price records", map[string]interface{}{
			"commodity_id": q.CommodityID,
			"dropped":      dropped,
		})
	}
	pagination := page.Pagination
	return &PriceList{Records: records, Dropped: dropped, Pagination: &pagination}, nil
}

func (s *priceService) CreateMarketPrice(ctx context.Context, sess hargaapi.Session, in MarketPriceInput) (*reconcile.PriceRecord, error) {
	if err := reconcile.ValidateMarketPrice(in.validation(), now()); err != nil {
		return nil, err
	}
	in.Quality = string(reconcile.ParseQuality(in.Quality))

	raw, err := s.backend.CreateMarketPrice(ctx, sess, in.MarketPriceRequest)
	if err != nil {
		logger.Error("Failed to create market price", err, map[string]interface{}{
			"commodity_id": in.CommodityID,
			"market_name":  in.MarketName,
		})
		return nil, err
	}

	record, err := s.settle(raw, in.CommodityID)
	if err != nil {
		return nil, err
	}
	s.notify(sess, record.Commodity.ID, "market_price_created")
	return record, nil
}

func (s *priceService) UpdateMarketPrice(ctx context.Context, sess hargaapi.Session, id uint, in MarketPriceInput) (*reconcile.PriceRecord, error) {
	if err := reconcile.ValidateMarketPrice(in.validation(), now()); err != nil {
		return nil, err
	}
	in.Quality = string(reconcile.ParseQuality(in.Quality))

	raw, err := s.backend.UpdateMarketPrice(ctx, sess, id, in.MarketPriceRequest)
	if err != nil {
		logger.Error("Failed to update market price", err, map[string]interface{}{
			"market_price_id": id,
		})
		return nil, err
	}

	record, err := s.settle(raw, in.CommodityID)
	if err != nil {
		return nil, err
	}
	s.notify(sess, record.Commodity.ID, "market_price_updated")
	return record, nil
}

func (s *priceService) DeleteMarketPrice(ctx context.Context, sess hargaapi.Session, id uint, commodityID uint) error {
	if err := s.backend.DeleteMarketPrice(ctx, sess, id); err != nil {
		logger.Error("Failed to delete market price", err, map[string]interface{}{
			"market_price_id": id,
		})
		return err
	}

	s.notify(sess, commodityID, "market_price_deleted")
	return nil
}

// settle normalizes the stored record echoed by the backend
func (s *priceService) settle(raw *reconcile.MarketRaw, commodityID uint) (*reconcile.PriceRecord, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty market price response", hargaapi.ErrUnexpectedResponse)
	}
	if raw.CommodityID == 0 && raw.Commodity == nil {
		raw.CommodityID = commodityID
	}

	record, err := newNormalizer().Normalize(*raw)
	if err != nil {
		logger.Warn("Backend returned a malformed market price", map[string]interface{}{
			"market_price_id": raw.ID,
			"error":           err.Error(),
		})
		return nil, err
	}
	return &record, nil
}

func (s *priceService) notify(sess hargaapi.Session, commodityID uint, reason string) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyChange(sess, commodityID, reason)
}

// validateRange rejects malformed or inverted optional date bounds
func validateRange(startDate, endDate string) error {
	fields := reconcile.FieldErrors{}
	var start, end string

	if startDate != "" {
		d, err := reconcile.ParseDate(startDate)
		if err != nil {
			fields["start_date"] = "date must be YYYY-MM-DD"
		} else {
			start = d.Format(reconcile.DateLayout)
		}
	}
	if endDate != "" {
		d, err := reconcile.ParseDate(endDate)
		if err != nil {
			fields["end_date"] = "date must be YYYY-MM-DD"
		} else {
			end = d.Format(reconcile.DateLayout)
		}
	}
	if start != "" && end != "" && start > end {
		fields["end_date"] = "end date cannot be before start date"
	}

	if len(fields) > 0 {
		return fields
	}
	return nil
}
