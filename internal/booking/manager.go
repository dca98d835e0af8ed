// Package booking collects appointment details over several turns and books
// the visit once date and time are known.
package booking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ireland-samantha/shopkeeper-bot/internal/domain"
	"github.com/ireland-samantha/shopkeeper-bot/internal/sales"
	"github.com/ireland-samantha/shopkeeper-bot/internal/storage"
)

// DefaultAlternatives is how many free times are proposed for a taken slot.
const DefaultAlternatives = 2

// MsgBookingFailed is sent when a free slot could not be booked.
const MsgBookingFailed = "No pude agendar el turno en este momento. ¿Me lo confirmás de nuevo en un ratito?"

// probeOffsets are the distances, in minutes, tried around a taken time.
var probeOffsets = []int{30, 60, 90, 120}

const minutesPerDay = 24 * 60

// Extractor pulls appointment fields out of a customer message.
type Extractor interface {
	ExtractAppointmentSlots(ctx context.Context, text string, history []storage.Message) (domain.AppointmentDraft, error)
}

// Calendar answers slot availability.
type Calendar interface {
	CheckAvailability(ctx context.Context, slot domain.Slot) bool
}

// Scheduler books an appointment and phrases the outcome.
type Scheduler interface {
	ScheduleAppointment(ctx context.Context, appt domain.Appointment) sales.Result
}

// Manager runs the slot-filling dialogue.
type Manager struct {
	store     storage.ConversationStore
	extractor Extractor
	calendar  Calendar
	scheduler Scheduler
	storeID   string
	logger    *slog.Logger
}

// NewManager creates a Manager that books into storeID.
func NewManager(
	store storage.ConversationStore,
	extractor Extractor,
	calendar Calendar,
	scheduler Scheduler,
	storeID string,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		store:     store,
		extractor: extractor,
		calendar:  calendar,
		scheduler: scheduler,
		storeID:   storeID,
		logger:    logger,
	}
}

// Handle processes one message of a booking dialogue and returns the reply.
func (m *Manager) Handle(ctx context.Context, customerID, displayName, text string) string {
	conv := m.store.Get(ctx, customerID)
	draft, _ := storage.ContextValue[domain.AppointmentDraft](conv.Context, storage.KeyPendingAppointment)

	learned, err := m.extractor.ExtractAppointmentSlots(ctx, text, conv.Recent(storage.RecentWindow))
	if err != nil {
		m.logger.Warn("appointment extraction failed", "customer", customerID, "error", err)
		learned = domain.AppointmentDraft{}
	}
	draft = draft.Merge(learned)

	if draft.Name == "" {
		draft.Name = displayName
	}
	if draft.Product == "" {
		draft.Product = productFromContext(conv.Context)
	}

	if !draft.Complete() {
		m.store.MergeContext(ctx, customerID, storage.Context{storage.KeyPendingAppointment: draft})
		m.store.SetState(ctx, customerID, storage.StateSchedulingAppointment)
		return promptFor(draft)
	}

	slot := domain.Slot{Store: m.storeID, Date: draft.Date, Time: draft.Time}
	if m.calendar.CheckAvailability(ctx, slot) {
		res := m.scheduler.ScheduleAppointment(ctx, domain.Appointment{
			Slot:         slot,
			CustomerRef:  customerID,
			CustomerName: draft.Name,
			Product:      draft.Product,
			Status:       domain.AppointmentConfirmed,
		})
		if res.OK {
			m.store.MergeContext(ctx, customerID, storage.Context{storage.KeyPendingAppointment: nil})
			m.store.SetState(ctx, customerID, storage.StateAppointmentConfirmed)
			m.logger.Info("appointment booked", "customer", customerID, "date", slot.Date, "time", slot.Time)
			return res.Message
		}
		// A slot that still reads as free was not lost to another customer.
		if m.calendar.CheckAvailability(ctx, slot) {
			m.logger.Warn("appointment not booked", "customer", customerID, "date", slot.Date, "time", slot.Time)
			m.store.MergeContext(ctx, customerID, storage.Context{storage.KeyPendingAppointment: draft})
			m.store.SetState(ctx, customerID, storage.StateSchedulingAppointment)
			return MsgBookingFailed
		}
	}

	alternatives := m.NearestFree(ctx, slot, DefaultAlternatives)
	m.store.MergeContext(ctx, customerID, storage.Context{storage.KeyPendingAppointment: draft})
	m.store.SetState(ctx, customerID, storage.StateSchedulingAppointment)
	if len(alternatives) == 0 {
		return fmt.Sprintf("No pude reservar las %s y no encontré horarios libres cerca ese día. ¿Probamos otro día?", slot.Time)
	}
	return fmt.Sprintf("Las %s ya están ocupadas. Tengo libre %s. ¿Cuál te queda mejor?", slot.Time, joinOr(alternatives))
}

// NearestFree proposes up to count free times near a taken slot. At each
// offset the earlier time is tried before the later one. Times outside the
// day are skipped.
func (m *Manager) NearestFree(ctx context.Context, slot domain.Slot, count int) []string {
	if count <= 0 {
		count = DefaultAlternatives
	}
	start, ok := parseClock(slot.Time)
	if !ok {
		return nil
	}

	occupied := map[int]bool{start: true}
	var free []string
	for _, offset := range probeOffsets {
		for _, candidate := range [2]int{start - offset, start + offset} {
			if candidate < 0 || candidate >= minutesPerDay || occupied[candidate] {
				continue
			}
			probe := slot
			probe.Time = formatClock(candidate)
			if !m.calendar.CheckAvailability(ctx, probe) {
				occupied[candidate] = true
				continue
			}
			free = append(free, probe.Time)
			if len(free) == count {
				return free
			}
		}
	}
	return free
}

func promptFor(d domain.AppointmentDraft) string {
	switch d.Missing() {
	case domain.FieldDate:
		if d.Time != "" {
			return fmt.Sprintf("Perfecto, a las %s. ¿Qué día te queda bien para venir?", d.Time)
		}
		return "¿Qué día te queda bien para venir?"
	case domain.FieldTime:
		return fmt.Sprintf("¿A qué hora te queda cómodo el %s?", domain.Slot{Date: d.Date}.DayLabel())
	default:
		return ""
	}
}

// productFromContext names the product the customer is interested in: the
// pending purchase if there is one, else the first stock result shown.
func productFromContext(c storage.Context) string {
	if p, ok := storage.ContextValue[domain.PendingPurchase](c, storage.KeyPendingPurchase); ok && p.Name != "" {
		return p.Name
	}
	if items, ok := storage.ContextValue[[]domain.StockItem](c, storage.KeyLastStockResults); ok && len(items) > 0 {
		return items[0].Label()
	}
	return ""
}

func parseClock(s string) (int, bool) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func joinOr(items []string) string {
	if len(items) < 2 {
		return strings.Join(items, "")
	}
	return strings.Join(items[:len(items)-1], ", ") + " o " + items[len(items)-1]
}
