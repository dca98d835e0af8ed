package backend

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ireland-samantha/shopkeeper-bot/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture() (*fakeBackend, *Access, *manualClock) {
	fb := &fakeBackend{
		stock: []domain.StockItem{
			{ID: "ip11", Model: "iPhone 11", Price: 450000, Quantity: 1},
			{ID: "ip13", Model: "iPhone 13", Price: 800000, Quantity: 2},
		},
		stores: []domain.StoreInfo{{ID: "centro", Name: "Centro"}},
		info:   domain.BusinessInfo{Name: "Fono Store"},
	}
	cache, clock := newTestCache(10 * time.Second)
	return fb, NewAccess(fb, cache, discardLogger()), clock
}

func TestAccess_UnfilteredStockIsCached(t *testing.T) {
	fb, a, clock := newFixture()
	ctx := context.Background()

	first := a.ListStock(ctx, domain.StockFilter{})
	second := a.ListStock(ctx, domain.StockFilter{})
	require.Len(t, first, 2)
	require.Same(t, &first[0], &second[0], "same snapshot served from cache")
	require.Equal(t, int32(1), fb.stockHits.Load())

	clock.t = clock.t.Add(10 * time.Second)
	a.ListStock(ctx, domain.StockFilter{})
	require.Equal(t, int32(2), fb.stockHits.Load())
}

func TestAccess_FilteredStockBypassesCache(t *testing.T) {
	fb, a, _ := newFixture()
	ctx := context.Background()

	got := a.ListStock(ctx, domain.StockFilter{Model: "iphone 13"})
	require.Len(t, got, 1)
	a.ListStock(ctx, domain.StockFilter{Model: "iphone 13"})
	require.Equal(t, int32(2), fb.stockHits.Load())
}

func TestAccess_InvalidateAllForcesRefetch(t *testing.T) {
	fb, a, _ := newFixture()
	ctx := context.Background()

	a.ListStores(ctx)
	a.BusinessInfo(ctx)
	a.ListStores(ctx)
	a.BusinessInfo(ctx)
	require.Equal(t, int32(1), fb.storeHits.Load())
	require.Equal(t, int32(1), fb.infoHits.Load())

	a.InvalidateAll()
	a.ListStores(ctx)
	a.BusinessInfo(ctx)
	require.Equal(t, int32(2), fb.storeHits.Load())
	require.Equal(t, int32(2), fb.infoHits.Load())
}

func TestAccess_FailuresDegradeToEmpty(t *testing.T) {
	fb, a, _ := newFixture()
	fb.setFail(true)
	ctx := context.Background()

	require.Nil(t, a.ListStock(ctx, domain.StockFilter{}))
	require.Nil(t, a.ListStores(ctx))
	require.Equal(t, domain.BusinessInfo{}, a.BusinessInfo(ctx))
	require.False(t, a.Reserve(ctx, "ip11"))
	require.False(t, a.Release(ctx, "ip11"))
	require.False(t, a.CreateAppointment(ctx, domain.Appointment{}))
	require.False(t, a.CheckAvailability(ctx, domain.Slot{}), "errors read as occupied")
	require.Nil(t, a.FindAppointment(ctx, "c1"))
	require.False(t, a.RescheduleAppointment(ctx, "a1", domain.Slot{}))
	require.False(t, a.CancelAppointment(ctx, "c1"))
	require.Nil(t, a.AppointmentsOn(ctx, "2026-01-01"))
	require.Nil(t, a.CreateSale(ctx, domain.SaleInput{}))
	require.Nil(t, a.FindOrCreateClient(ctx, domain.ClientInput{Phone: "1"}))
	require.False(t, a.RecordPurchase(ctx, "1", "x"))
	require.Nil(t, a.RecentClients(ctx, 5))
	require.Equal(t, domain.Stats{Date: "2026-01-01"}, a.Stats(ctx, "2026-01-01"))
}

func TestAccess_FailedFillIsRetried(t *testing.T) {
	fb, a, _ := newFixture()
	ctx := context.Background()

	fb.setFail(true)
	require.Nil(t, a.ListStores(ctx))
	fb.setFail(false)
	require.Len(t, a.ListStores(ctx), 1)
}

func TestAccess_NilCache(t *testing.T) {
	fb := &fakeBackend{stores: []domain.StoreInfo{{ID: "x"}}}
	a := NewAccess(fb, nil, discardLogger())
	ctx := context.Background()

	a.ListStores(ctx)
	a.ListStores(ctx)
	a.InvalidateAll()
	require.Equal(t, int32(2), fb.storeHits.Load())
}

func TestSeed_AppliesToSeeders(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stock.yaml"), []byte("stock:\n  - id: a\n    model: iPhone 12\n"), 0o644))

	fb := &fakeBackend{}
	require.NoError(t, Seed(context.Background(), fb, filepath.Join(dir, "*.yaml"), discardLogger()))
	require.Len(t, fb.applied, 1)
	require.Equal(t, "iPhone 12", fb.applied[0].Stock[0].Model)

	require.NoError(t, Seed(context.Background(), fb, "", discardLogger()))
	require.Len(t, fb.applied, 1)
}
