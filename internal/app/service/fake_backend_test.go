package service

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/hargapangan/pangan-monitor/internal/hargaapi"
	"github.com/hargapangan/pangan-monitor/internal/reconcile"
)

// fakeBackend in-memory PriceBackend
type fakeBackend struct {
	mu sync.Mutex

	national []reconcile.NationalRaw
	market   []reconcile.MarketRaw
	trends   *hargaapi.TrendData

	err       error
	submitErr error

	nationalCalls int
	marketQueries []hargaapi.MarketPricesQuery
	overrides     []hargaapi.OverrideRequest
	created       []hargaapi.MarketPriceRequest
	updated       map[uint]hargaapi.MarketPriceRequest
	deleted       []uint
}

func (f *fakeBackend) ListCurrentPrices(ctx context.Context, sess hargaapi.Session, q hargaapi.CurrentPricesQuery) (*hargaapi.CurrentPricesPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &hargaapi.CurrentPricesPage{
		Items:      f.national,
		Pagination: hargaapi.Pagination{Page: q.Page, Limit: q.Limit, Total: len(f.national), TotalPages: 1},
	}, nil
}

func (f *fakeBackend) ListAllCurrentPrices(ctx context.Context, sess hargaapi.Session, category string) ([]reconcile.NationalRaw, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nationalCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.national, nil
}

func (f *fakeBackend) ListMarketPrices(ctx context.Context, sess hargaapi.Session, q hargaapi.MarketPricesQuery) (*hargaapi.MarketPricesPage, error) {
	items, err := f.ListAllMarketPrices(ctx, sess, q)
	if err != nil {
		return nil, err
	}
	return &hargaapi.MarketPricesPage{
		Items:      items,
		Pagination: hargaapi.Pagination{Page: 1, Limit: 20, Total: len(items), TotalPages: 1},
	}, nil
}

func (f *fakeBackend) ListAllMarketPrices(ctx context.Context, sess hargaapi.Session, q hargaapi.MarketPricesQuery) ([]reconcile.MarketRaw, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marketQueries = append(f.marketQueries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.market, nil
}

func (f *fakeBackend) MarketPriceTrends(ctx context.Context, sess hargaapi.Session, commodityID uint) (*hargaapi.TrendData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.trends == nil {
		return &hargaapi.TrendData{}, nil
	}
	return f.trends, nil
}

func (f *fakeBackend) SubmitOverride(ctx context.Context, sess hargaapi.Session, req hargaapi.OverrideRequest) (*hargaapi.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overrides = append(f.overrides, req)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &hargaapi.SubmitResult{Message: "Override berhasil diajukan"}, nil
}

func (f *fakeBackend) CreateMarketPrice(ctx context.Context, sess hargaapi.Session, req hargaapi.MarketPriceRequest) (*reconcile.MarketRaw, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, req)
	return echoMarket(uint(len(f.created)), req), nil
}

func (f *fakeBackend) UpdateMarketPrice(ctx context.Context, sess hargaapi.Session, id uint, req hargaapi.MarketPriceRequest) (*reconcile.MarketRaw, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.updated == nil {
		f.updated = make(map[uint]hargaapi.MarketPriceRequest)
	}
	f.updated[id] = req
	return echoMarket(id, req), nil
}

func (f *fakeBackend) DeleteMarketPrice(ctx context.Context, sess hargaapi.Session, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func echoMarket(id uint, req hargaapi.MarketPriceRequest) *reconcile.MarketRaw {
	return &reconcile.MarketRaw{
		ID:             id,
		Price:          json.RawMessage(strconv.FormatFloat(req.Price, 'f', -1, 64)),
		Date:           req.Date,
		CommodityID:    req.CommodityID,
		CommodityName:  req.CommodityName,
		MarketName:     req.MarketName,
		MarketLocation: req.MarketLocation,
		Quality:        req.Quality,
	}
}

// recordingNotifier ChangeNotifier that remembers every call
type recordingNotifier struct {
	mu      sync.Mutex
	changes []string
	ids     []uint
}

func (n *recordingNotifier) NotifyChange(sess hargaapi.Session, commodityID uint, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, reason)
	n.ids = append(n.ids, commodityID)
}

func nationalRaw(commodityID uint, name string, price float64, date string) reconcile.NationalRaw {
	return reconcile.NationalRaw{
		ID:    commodityID * 10,
		Price: json.RawMessage(strconv.FormatFloat(price, 'f', -1, 64)),
		Date:  date,
		Commodity: &reconcile.RawCommodity{
			ID:       commodityID,
			Name:     name,
			Unit:     "kg",
			Category: "beras",
		},
	}
}

func marketRaw(id, commodityID uint, name string, price float64, date, market string) reconcile.MarketRaw {
	return reconcile.MarketRaw{
		ID:            id,
		Price:         json.RawMessage(strconv.FormatFloat(price, 'f', -1, 64)),
		Date:          date,
		CommodityID:   commodityID,
		CommodityName: name,
		MarketName:    market,
	}
}

// setClock pins the service clock for the duration of the test
func setClock(t *testing.T, at time.Time) {
	t.Helper()
	previous := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = previous })
}
