// Package sales turns data-layer outcomes for purchases and appointments
// into results the dialogue engine can reply with.
package sales

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ireland-samantha/shopkeeper-bot/internal/domain"
)

// Store is the part of the backend access layer the orchestrator writes to.
// Implementations report failures as false or nil, never as errors.
type Store interface {
	Reserve(ctx context.Context, productRef string) bool
	Release(ctx context.Context, productRef string) bool
	CreateSale(ctx context.Context, in domain.SaleInput) *domain.Sale
	FindOrCreateClient(ctx context.Context, in domain.ClientInput) *domain.Client
	RecordPurchase(ctx context.Context, clientID, product string) bool
	CreateAppointment(ctx context.Context, appt domain.Appointment) bool
	FindAppointment(ctx context.Context, customerRef string) *domain.Appointment
	RescheduleAppointment(ctx context.Context, id string, slot domain.Slot) bool
	CancelAppointment(ctx context.Context, customerRef string) bool
}

// Customer-facing messages.
const (
	MsgUnavailable      = "Uy, ese equipo ya no está disponible. ¿Querés que te muestre otras opciones?"
	MsgSaleFailed       = "No pude registrar la compra en este momento. ¿Probamos de nuevo en unos minutos?"
	MsgSlotTaken        = "Ese horario ya está ocupado. ¿Te sirve otro?"
	MsgNoAppointment    = "No encontré ningún turno a tu nombre."
	MsgAppointmentError = "No pude actualizar el turno ahora. Probá de nuevo en un rato."
)

// SaleRequest describes one purchase. ProductRef may be empty for sales of
// items not tracked in stock.
type SaleRequest struct {
	CustomerRef   string
	CustomerName  string
	ProductRef    string
	ProductName   string
	Quantity      int
	UnitPrice     float64
	PaymentMethod string
}

// Result is the outcome of an orchestrated operation.
type Result struct {
	OK          bool
	Message     string
	Sale        *domain.Sale
	Appointment *domain.Appointment
}

// Orchestrator coordinates multi-step writes.
type Orchestrator struct {
	store  Store
	logger *slog.Logger
}

// New creates an Orchestrator.
func New(store Store, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{store: store, logger: logger}
}

// ProcessSale reserves stock, records the sale and updates the customer
// record. A failed reservation stops before any other write. If the sale
// cannot be recorded, the units reserved for it are released again.
func (o *Orchestrator) ProcessSale(ctx context.Context, req SaleRequest) Result {
	qty := req.Quantity
	if qty <= 0 {
		qty = 1
	}

	reserved := 0
	if req.ProductRef != "" {
		for reserved < qty {
			if !o.store.Reserve(ctx, req.ProductRef) {
				break
			}
			reserved++
		}
		if reserved < qty {
			o.release(ctx, req.ProductRef, reserved)
			o.logger.Info("sale rejected: out of stock", "customer", req.CustomerRef, "product", req.ProductRef)
			return Result{Message: MsgUnavailable}
		}
	}

	sale := o.store.CreateSale(ctx, domain.SaleInput{
		CustomerRef: req.CustomerRef,
		Items: []domain.SaleItem{{
			ProductRef: req.ProductRef,
			Name:       req.ProductName,
			Quantity:   qty,
			UnitPrice:  req.UnitPrice,
		}},
		Total:         req.UnitPrice * float64(qty),
		PaymentMethod: req.PaymentMethod,
	})
	if sale == nil {
		o.release(ctx, req.ProductRef, reserved)
		o.logger.Error("sale not recorded", "customer", req.CustomerRef, "product", req.ProductRef)
		return Result{Message: MsgSaleFailed}
	}

	client := o.store.FindOrCreateClient(ctx, domain.ClientInput{Phone: req.CustomerRef, Name: req.CustomerName})
	if client == nil || !o.store.RecordPurchase(ctx, client.ID, req.ProductName) {
		// The sale stands; only the customer summary is behind.
		o.logger.Warn("customer record not updated", "customer", req.CustomerRef, "sale", sale.ID)
	}

	o.logger.Info("sale recorded", "customer", req.CustomerRef, "sale", sale.ID, "total", sale.Total)
	return Result{
		OK:      true,
		Sale:    sale,
		Message: fmt.Sprintf("¡Compra registrada! %s por $%s. Te esperamos para retirarlo.", req.ProductName, domain.FormatPrice(sale.Total)),
	}
}

func (o *Orchestrator) release(ctx context.Context, productRef string, n int) {
	for i := 0; i < n; i++ {
		if !o.store.Release(ctx, productRef) {
			o.logger.Error("reserved unit not released", "product", productRef)
		}
	}
}

// ScheduleAppointment books appt. A false result means the slot was taken.
func (o *Orchestrator) ScheduleAppointment(ctx context.Context, appt domain.Appointment) Result {
	if !o.store.CreateAppointment(ctx, appt) {
		return Result{Message: MsgSlotTaken}
	}
	return Result{
		OK:          true,
		Appointment: &appt,
		Message:     fmt.Sprintf("¡Listo! Te agendé el turno para el %s. Te esperamos.", appt.Slot.Label()),
	}
}

// ModifyAppointment moves the customer's first active appointment to slot.
// Customers with several appointments always move the oldest one.
func (o *Orchestrator) ModifyAppointment(ctx context.Context, customerRef string, slot domain.Slot) Result {
	appt := o.store.FindAppointment(ctx, customerRef)
	if appt == nil {
		return Result{Message: MsgNoAppointment}
	}
	if slot.Store == "" {
		slot.Store = appt.Slot.Store
	}
	if !o.store.RescheduleAppointment(ctx, appt.ID, slot) {
		return Result{Appointment: appt, Message: MsgSlotTaken}
	}
	moved := *appt
	moved.Slot = slot
	return Result{
		OK:          true,
		Appointment: &moved,
		Message:     fmt.Sprintf("Listo, cambié tu turno al %s.", slot.Label()),
	}
}

// CancelAppointment cancels the customer's first active appointment.
func (o *Orchestrator) CancelAppointment(ctx context.Context, customerRef string) Result {
	appt := o.store.FindAppointment(ctx, customerRef)
	if appt == nil {
		return Result{Message: MsgNoAppointment}
	}
	if !o.store.CancelAppointment(ctx, customerRef) {
		return Result{Appointment: appt, Message: MsgAppointmentError}
	}
	return Result{
		OK:          true,
		Appointment: appt,
		Message:     fmt.Sprintf("Cancelé tu turno del %s. Cuando quieras sacamos otro.", appt.Slot.Label()),
	}
}

// QueryAppointment describes the customer's first active appointment.
func (o *Orchestrator) QueryAppointment(ctx context.Context, customerRef string) Result {
	appt := o.store.FindAppointment(ctx, customerRef)
	if appt == nil {
		return Result{Message: MsgNoAppointment + " ¿Querés que agendemos uno?"}
	}
	return Result{
		OK:          true,
		Appointment: appt,
		Message:     fmt.Sprintf("Tenés turno el %s.", appt.Slot.Label()),
	}
}
