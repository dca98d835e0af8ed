// Package backend defines the data contract shared by the interchangeable
// persistence backends, and the cached, non-failing access layer the rest of
// the bot talks to.
package backend

import (
	"context"

	"github.com/ireland-samantha/shopkeeper-bot/internal/domain"
)

// Backend is implemented by every persistence backend. Implementations report
// transport problems as errors; "not found" and "not possible" outcomes are
// reported as zero values or false with a nil error.
type Backend interface {
	// Name identifies the implementation in logs.
	Name() string

	// ListStock returns items matching filter. The zero filter lists all.
	ListStock(ctx context.Context, filter domain.StockFilter) ([]domain.StockItem, error)
	// Reserve takes one unit of productRef. It returns false when no unit is
	// left.
	Reserve(ctx context.Context, productRef string) (bool, error)
	// Release returns one previously reserved unit of productRef.
	Release(ctx context.Context, productRef string) error

	ListStores(ctx context.Context) ([]domain.StoreInfo, error)
	BusinessInfo(ctx context.Context) (domain.BusinessInfo, error)

	// CreateAppointment books appt.Slot. It returns false when the slot is
	// already held by a non-cancelled appointment.
	CreateAppointment(ctx context.Context, appt domain.Appointment) (bool, error)
	// CheckAvailability reports whether slot is free.
	CheckAvailability(ctx context.Context, slot domain.Slot) (bool, error)
	// FindAppointment returns the customer's first non-cancelled appointment,
	// or nil.
	FindAppointment(ctx context.Context, customerRef string) (*domain.Appointment, error)
	// RescheduleAppointment moves appointment id to slot. It returns false when
	// the new slot is taken or the appointment does not exist.
	RescheduleAppointment(ctx context.Context, id string, slot domain.Slot) (bool, error)
	// CancelAppointment cancels the customer's first non-cancelled
	// appointment. It returns false when there is none.
	CancelAppointment(ctx context.Context, customerRef string) (bool, error)
	// AppointmentsOn lists non-cancelled appointments for a date.
	AppointmentsOn(ctx context.Context, date string) ([]domain.Appointment, error)

	CreateSale(ctx context.Context, in domain.SaleInput) (*domain.Sale, error)
	FindOrCreateClient(ctx context.Context, in domain.ClientInput) (*domain.Client, error)
	// RecordPurchase increments the client's purchase counter and remembers
	// the product.
	RecordPurchase(ctx context.Context, clientID, product string) error
	RecentClients(ctx context.Context, limit int) ([]domain.Client, error)

	// Stats summarizes activity for date (YYYY-MM-DD).
	Stats(ctx context.Context, date string) (domain.Stats, error)
}
