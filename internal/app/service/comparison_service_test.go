package service

import (
	"context"
	"testing"
	"time"

	"github.com/hargapangan/pangan-monitor/internal/cache"
	"github.com/hargapangan/pangan-monitor/internal/hargaapi"
	"github.com/hargapangan/pangan-monitor/internal/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func comparisonBackend() *fakeBackend {
	return &fakeBackend{
		national: []reconcile.NationalRaw{
			nationalRaw(1, "Beras Medium", 12000, "2025-03-08"),
			nationalRaw(2, "Cabai Merah", 50000, "2025-03-10"),
		},
		market: []reconcile.MarketRaw{
			marketRaw(1, 1, "Beras Medium", 13000, "2025-03-10", "Pasar Minggu"),
			marketRaw(2, 1, "Beras Medium", 14000, "2025-03-10", "Pasar Senen"),
			marketRaw(3, 1, "Beras Medium", 11000, "2025-03-01", "Pasar Senen"),
			marketRaw(4, 9, "Jahe", 30000, "2025-03-10", "Pasar Minggu"),
		},
	}
}

func TestComparisonService_Compare_DefaultWindow(t *testing.T) {
	setClock(t, testNow)
	backend := comparisonBackend()
	svc := NewComparisonService(backend, cache.NewMemorySnapshotCache(time.Minute), nil)

	report, err := svc.Compare(context.Background(), hargaapi.Session{}, CompareQuery{})
	require.NoError(t, err)

	assert.Equal(t, "2025-03-10", report.StartDate)
	assert.Equal(t, "2025-03-10", report.EndDate)
	require.Len(t, backend.marketQueries, 1)
	assert.Equal(t, "2025-03-10", backend.marketQueries[0].StartDate)

	// sorted by commodity name
	require.Len(t, report.Results, 3)
	assert.Equal(t, "Beras Medium", report.Results[0].Commodity.Name)
	assert.Equal(t, "Cabai Merah", report.Results[1].Commodity.Name)
	assert.Equal(t, "Jahe", report.Results[2].Commodity.Name)

	// national published two days before the window still counts
	beras := report.Results[0]
	require.NotNil(t, beras.NationalPrice)
	assert.Equal(t, 12000.0, *beras.NationalPrice)
	assert.Equal(t, "2025-03-08", beras.NationalDate)
	assert.Len(t, beras.MarketPrices, 2)
	assert.Equal(t, 13500.0, *beras.AverageMarketPrice)
	assert.Equal(t, 1500.0, *beras.Difference)
	assert.Equal(t, 12.5, *beras.DifferencePercentage)

	assert.False(t, report.Results[1].Resolved())
	assert.False(t, report.Results[2].Resolved())
	assert.Equal(t, 3, report.Summary.TotalCommodities)
	assert.Equal(t, 1, report.Summary.Resolved)
	assert.Equal(t, 1, report.Summary.HigherInMarket)
}

func TestComparisonService_Compare_Windows(t *testing.T) {
	setClock(t, testNow)

	tests := []struct {
		name       string
		query      CompareQuery
		wantErr    string
		wantMarket int
		wantNat    bool
	}{
		{
			name:       "single day before national publication",
			query:      CompareQuery{CommodityID: 1, Date: "2025-03-01"},
			wantMarket: 1,
			wantNat:    false,
		},
		{
			name:       "range",
			query:      CompareQuery{CommodityID: 1, StartDate: "2025-03-01", EndDate: "2025-03-10"},
			wantMarket: 3,
			wantNat:    true,
		},
		{
			name:    "malformed date",
			query:   CompareQuery{Date: "kemarin"},
			wantErr: "date",
		},
		{
			name:    "inverted range",
			query:   CompareQuery{StartDate: "2025-03-10", EndDate: "2025-03-01"},
			wantErr: "end_date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewComparisonService(comparisonBackend(), nil, nil)
			report, err := svc.Compare(context.Background(), hargaapi.Session{}, tt.query)
			if tt.wantErr != "" {
				fields, ok := reconcile.AsFieldErrors(err)
				require.True(t, ok)
				assert.Contains(t, fields, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, report.Results, 1)
			assert.Len(t, report.Results[0].MarketPrices, tt.wantMarket)
			assert.Equal(t, tt.wantNat, report.Results[0].NationalPrice != nil)
		})
	}
}

func TestComparisonService_CompareCommodity(t *testing.T) {
	setClock(t, testNow)
	svc := NewComparisonService(comparisonBackend(), nil, nil)

	comparison, err := svc.CompareCommodity(context.Background(), hargaapi.Session{}, 2)
	require.NoError(t, err)
	require.Len(t, comparison.Results, 1)
	assert.Equal(t, uint(2), comparison.Results[0].Commodity.ID)
	assert.Empty(t, comparison.Results[0].MarketPrices)
}

func TestComparisonService_Compare_BackendError(t *testing.T) {
	setClock(t, testNow)
	svc := NewComparisonService(&fakeBackend{err: hargaapi.ErrUnauthorized}, nil, nil)

	report, err := svc.Compare(context.Background(), hargaapi.Session{}, CompareQuery{})
	assert.ErrorIs(t, err, hargaapi.ErrUnauthorized)
	assert.Nil(t, report)
}
