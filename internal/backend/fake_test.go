package backend

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ireland-samantha/shopkeeper-bot/internal/backend/seed"
	"github.com/ireland-samantha/shopkeeper-bot/internal/domain"
)

var errDown = errors.New("backend down")

// fakeBackend counts calls and can be switched into a failing mode.
type fakeBackend struct {
	mu        sync.Mutex
	stock     []domain.StockItem
	stores    []domain.StoreInfo
	info      domain.BusinessInfo
	fail      bool
	delay     time.Duration
	stockHits atomic.Int32
	storeHits atomic.Int32
	infoHits  atomic.Int32
	applied   []seed.File
}

func (f *fakeBackend) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errDown
	}
	return nil
}

func (f *fakeBackend) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) ListStock(_ context.Context, filter domain.StockFilter) ([]domain.StockItem, error) {
	f.stockHits.Add(1)
	time.Sleep(f.delay)
	if err := f.err(); err != nil {
		return nil, err
	}
	var out []domain.StockItem
	for _, it := range f.stock {
		if filter.Matches(it) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeBackend) Reserve(context.Context, string) (bool, error) { return true, f.err() }
func (f *fakeBackend) Release(context.Context, string) error       { return f.err() }

func (f *fakeBackend) ListStores(context.Context) ([]domain.StoreInfo, error) {
	f.storeHits.Add(1)
	return f.stores, f.err()
}

func (f *fakeBackend) BusinessInfo(context.Context) (domain.BusinessInfo, error) {
	f.infoHits.Add(1)
	return f.info, f.err()
}

func (f *fakeBackend) CreateAppointment(context.Context, domain.Appointment) (bool, error) {
	return true, f.err()
}

func (f *fakeBackend) CheckAvailability(context.Context, domain.Slot) (bool, error) {
	return true, f.err()
}

func (f *fakeBackend) FindAppointment(context.Context, string) (*domain.Appointment, error) {
	return nil, f.err()
}

func (f *fakeBackend) RescheduleAppointment(context.Context, string, domain.Slot) (bool, error) {
	return true, f.err()
}

func (f *fakeBackend) CancelAppointment(context.Context, string) (bool, error) {
	return true, f.err()
}

func (f *fakeBackend) AppointmentsOn(context.Context, string) ([]domain.Appointment, error) {
	return nil, f.err()
}

func (f *fakeBackend) CreateSale(_ context.Context, in domain.SaleInput) (*domain.Sale, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	return &domain.Sale{ID: "s1", CustomerRef: in.CustomerRef, Total: in.Total}, nil
}

func (f *fakeBackend) FindOrCreateClient(_ context.Context, in domain.ClientInput) (*domain.Client, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	return &domain.Client{ID: in.Phone, Phone: in.Phone}, nil
}

func (f *fakeBackend) RecordPurchase(context.Context, string, string) error { return f.err() }

func (f *fakeBackend) RecentClients(context.Context, int) ([]domain.Client, error) {
	return nil, f.err()
}

func (f *fakeBackend) Stats(_ context.Context, date string) (domain.Stats, error) {
	if err := f.err(); err != nil {
		return domain.Stats{}, err
	}
	return domain.Stats{Date: date, SalesCount: 2}, nil
}

func (f *fakeBackend) Apply(_ context.Context, file seed.File) error {
	f.applied = append(f.applied, file)
	return nil
}
