package service

import (
	"context"
	"testing"

	"github.com/hargapangan/pangan-monitor/internal/app/model"
	"github.com/hargapangan/pangan-monitor/internal/app/repository"
	"github.com/hargapangan/pangan-monitor/internal/db"
	"github.com/hargapangan/pangan-monitor/internal/hargaapi"
	"github.com/hargapangan/pangan-monitor/internal/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrendService_GetTrend(t *testing.T) {
	setClock(t, testNow)
	backend := &fakeBackend{
		trends: &hargaapi.TrendData{
			NationalPrices: []reconcile.DatedPrice{
				{Date: "2025-03-08", Price: 12000},
				{Date: "2025-03-10", Price: 12100},
				{Date: "2025-01-01", Price: 11000},
			},
			MarketPrices: []reconcile.DatedPrice{
				{Date: "2025-03-09", Price: 13000},
				{Date: "2025-03-09", Price: 14000},
				{Date: "2025-03-12", Price: 15000},
				{Date: "bukan-tanggal", Price: 15000},
			},
		},
	}
	svc := NewTrendService(backend, nil, 7)

	report, err := svc.GetTrend(context.Background(), hargaapi.Session{}, 1, 0)
	require.NoError(t, err)

	assert.Equal(t, 7, report.Days)
	assert.Equal(t, NationalFromBackend, report.NationalSource)
	assert.Equal(t, 2, report.Dropped)

	require.Len(t, report.Points, 3)
	assert.Equal(t, "2025-03-08", report.Points[0].Date)
	assert.Nil(t, report.Points[0].Market)
	assert.Equal(t, "2025-03-09", report.Points[1].Date)
	assert.Nil(t, report.Points[1].National)
	assert.Equal(t, 13500.0, *report.Points[1].Market)
	assert.Equal(t, 12100.0, *report.Points[2].National)
}

func TestTrendService_ArchiveFallback(t *testing.T) {
	setClock(t, testNow)

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	snapshots := repository.NewSnapshotRepository(testDB)
	require.NoError(t, snapshots.UpsertMany([]model.PriceSnapshot{
		{CommodityID: 1, CommodityName: "Beras Medium", Price: 12000, PriceDate: "2025-03-09"},
		{CommodityID: 1, CommodityName: "Beras Medium", Price: 11000, PriceDate: "2025-02-01"},
	}))

	backend := &fakeBackend{
		trends: &hargaapi.TrendData{
			MarketPrices: []reconcile.DatedPrice{{Date: "2025-03-09", Price: 13000}},
		},
	}
	svc := NewTrendService(backend, snapshots, 30)

	report, err := svc.GetTrend(context.Background(), hargaapi.Session{}, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, NationalFromArchive, report.NationalSource)
	require.Len(t, report.Points, 1)
	assert.Equal(t, 12000.0, *report.Points[0].National)
	assert.Equal(t, 13000.0, *report.Points[0].Market)
}

func TestTrendService_Validation(t *testing.T) {
	setClock(t, testNow)
	svc := NewTrendService(&fakeBackend{}, nil, 30)

	tests := []struct {
		name        string
		commodityID uint
		days        int
		field       string
	}{
		{name: "missing commodity", commodityID: 0, days: 7, field: "commodity_id"},
		{name: "too many days", commodityID: 1, days: 400, field: "days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.GetTrend(context.Background(), hargaapi.Session{}, tt.commodityID, tt.days)
			fields, ok := reconcile.AsFieldErrors(err)
			require.True(t, ok)
			assert.Contains(t, fields, tt.field)
		})
	}
}
