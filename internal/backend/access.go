package backend

import (
	"context"
	"log/slog"

	"github.com/ireland-samantha/shopkeeper-bot/internal/domain"
)

// Access is the data layer used by the dialogue engine. It never returns
// errors: backend failures are logged and reported as the empty or false
// result, so a flaky backend degrades replies instead of breaking them.
//
// Unfiltered stock listings, the store directory and business metadata are
// served from the cache. Writes always go to the backend and do not
// invalidate cached reads; callers tolerate up to one cache TTL of staleness.
type Access struct {
	backend Backend
	cache   *Cache
	logger  *slog.Logger
}

// NewAccess wraps b. A nil cache disables caching.
func NewAccess(b Backend, cache *Cache, logger *slog.Logger) *Access {
	return &Access{
		backend: b,
		cache:   cache,
		logger:  logger.With("backend", b.Name()),
	}
}

// InvalidateAll drops every cached read, for out-of-band configuration
// changes.
func (a *Access) InvalidateAll() {
	if a.cache != nil {
		a.cache.InvalidateAll()
	}
}

// ListStock returns matching stock. Only the unfiltered listing is cached.
func (a *Access) ListStock(ctx context.Context, filter domain.StockFilter) []domain.StockItem {
	if !filter.IsZero() || a.cache == nil {
		items, err := a.backend.ListStock(ctx, filter)
		if err != nil {
			a.logger.Warn("list stock failed", "error", err)
			return nil
		}
		return items
	}

	v, err := a.cache.Fetch(ctx, resourceStock, func(ctx context.Context) (any, error) {
		return a.backend.ListStock(ctx, domain.StockFilter{})
	})
	if err != nil {
		a.logger.Warn("list stock failed", "error", err)
		return nil
	}
	return v.([]domain.StockItem)
}

// Reserve takes one unit. It fails closed.
func (a *Access) Reserve(ctx context.Context, productRef string) bool {
	ok, err := a.backend.Reserve(ctx, productRef)
	if err != nil {
		a.logger.Warn("reserve failed", "product", productRef, "error", err)
		return false
	}
	return ok
}

// Release returns one reserved unit.
func (a *Access) Release(ctx context.Context, productRef string) bool {
	if err := a.backend.Release(ctx, productRef); err != nil {
		a.logger.Error("release failed", "product", productRef, "error", err)
		return false
	}
	return true
}

// ListStores returns the store directory.
func (a *Access) ListStores(ctx context.Context) []domain.StoreInfo {
	fill := func(ctx context.Context) (any, error) { return a.backend.ListStores(ctx) }
	if a.cache == nil {
		v, err := fill(ctx)
		if err != nil {
			a.logger.Warn("list stores failed", "error", err)
			return nil
		}
		return v.([]domain.StoreInfo)
	}
	v, err := a.cache.Fetch(ctx, resourceStores, fill)
	if err != nil {
		a.logger.Warn("list stores failed", "error", err)
		return nil
	}
	return v.([]domain.StoreInfo)
}

// BusinessInfo returns tenant metadata, or the zero value when unavailable.
func (a *Access) BusinessInfo(ctx context.Context) domain.BusinessInfo {
	fill := func(ctx context.Context) (any, error) { return a.backend.BusinessInfo(ctx) }
	var (
		v   any
		err error
	)
	if a.cache == nil {
		v, err = fill(ctx)
	} else {
		v, err = a.cache.Fetch(ctx, resourceBusiness, fill)
	}
	if err != nil {
		a.logger.Warn("business info failed", "error", err)
		return domain.BusinessInfo{}
	}
	return v.(domain.BusinessInfo)
}

// CreateAppointment books a slot.
func (a *Access) CreateAppointment(ctx context.Context, appt domain.Appointment) bool {
	ok, err := a.backend.CreateAppointment(ctx, appt)
	if err != nil {
		a.logger.Warn("create appointment failed", "customer", appt.CustomerRef, "error", err)
		return false
	}
	return ok
}

// CheckAvailability reports whether slot is free. Errors read as occupied.
func (a *Access) CheckAvailability(ctx context.Context, slot domain.Slot) bool {
	ok, err := a.backend.CheckAvailability(ctx, slot)
	if err != nil {
		a.logger.Warn("check availability failed", "date", slot.Date, "time", slot.Time, "error", err)
		return false
	}
	return ok
}

// FindAppointment returns the customer's active appointment, or nil.
func (a *Access) FindAppointment(ctx context.Context, customerRef string) *domain.Appointment {
	appt, err := a.backend.FindAppointment(ctx, customerRef)
	if err != nil {
		a.logger.Warn("find appointment failed", "customer", customerRef, "error", err)
		return nil
	}
	return appt
}

// RescheduleAppointment moves an appointment to slot.
func (a *Access) RescheduleAppointment(ctx context.Context, id string, slot domain.Slot) bool {
	ok, err := a.backend.RescheduleAppointment(ctx, id, slot)
	if err != nil {
		a.logger.Warn("reschedule appointment failed", "appointment", id, "error", err)
		return false
	}
	return ok
}

// CancelAppointment cancels the customer's active appointment.
func (a *Access) CancelAppointment(ctx context.Context, customerRef string) bool {
	ok, err := a.backend.CancelAppointment(ctx, customerRef)
	if err != nil {
		a.logger.Warn("cancel appointment failed", "customer", customerRef, "error", err)
		return false
	}
	return ok
}

// AppointmentsOn lists the day's appointments.
func (a *Access) AppointmentsOn(ctx context.Context, date string) []domain.Appointment {
	appts, err := a.backend.AppointmentsOn(ctx, date)
	if err != nil {
		a.logger.Warn("list appointments failed", "date", date, "error", err)
		return nil
	}
	return appts
}

// CreateSale records a sale, or returns nil.
func (a *Access) CreateSale(ctx context.Context, in domain.SaleInput) *domain.Sale {
	sale, err := a.backend.CreateSale(ctx, in)
	if err != nil {
		a.logger.Warn("create sale failed", "customer", in.CustomerRef, "error", err)
		return nil
	}
	return sale
}

// FindOrCreateClient returns the client record, or nil.
func (a *Access) FindOrCreateClient(ctx context.Context, in domain.ClientInput) *domain.Client {
	client, err := a.backend.FindOrCreateClient(ctx, in)
	if err != nil {
		a.logger.Warn("find or create client failed", "customer", in.Phone, "error", err)
		return nil
	}
	return client
}

// RecordPurchase updates the client's purchase history.
func (a *Access) RecordPurchase(ctx context.Context, clientID, product string) bool {
	if err := a.backend.RecordPurchase(ctx, clientID, product); err != nil {
		a.logger.Warn("record purchase failed", "client", clientID, "error", err)
		return false
	}
	return true
}

// RecentClients lists the most recently seen clients.
func (a *Access) RecentClients(ctx context.Context, limit int) []domain.Client {
	clients, err := a.backend.RecentClients(ctx, limit)
	if err != nil {
		a.logger.Warn("recent clients failed", "error", err)
		return nil
	}
	return clients
}

// Stats summarizes a day; the zero value carries only the date on failure.
func (a *Access) Stats(ctx context.Context, date string) domain.Stats {
	stats, err := a.backend.Stats(ctx, date)
	if err != nil {
		a.logger.Warn("stats failed", "date", date, "error", err)
		return domain.Stats{Date: date}
	}
	return stats
}
