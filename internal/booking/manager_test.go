package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ireland-samantha/shopkeeper-bot/internal/domain"
	"github.com/ireland-samantha/shopkeeper-bot/internal/sales"
	"github.com/ireland-samantha/shopkeeper-bot/internal/storage"
)

type scriptedExtractor struct {
	drafts map[string]domain.AppointmentDraft
	err    error
}

func (e scriptedExtractor) ExtractAppointmentSlots(_ context.Context, text string, _ []storage.Message) (domain.AppointmentDraft, error) {
	if e.err != nil {
		return domain.AppointmentDraft{}, e.err
	}
	return e.drafts[text], nil
}

// fakeCalendar treats every time as free unless listed in taken. race makes
// another customer take the slot at booking time; failing makes booking fail
// without the slot being taken.
type fakeCalendar struct {
	taken   map[string]bool
	probes  []string
	booked  []domain.Appointment
	race    bool
	failing bool
}

func (c *fakeCalendar) CheckAvailability(_ context.Context, slot domain.Slot) bool {
	c.probes = append(c.probes, slot.Time)
	return !c.taken[slot.Time]
}

func (c *fakeCalendar) ScheduleAppointment(_ context.Context, appt domain.Appointment) sales.Result {
	if c.race {
		if c.taken == nil {
			c.taken = map[string]bool{}
		}
		c.taken[appt.Slot.Time] = true
	}
	if c.failing || c.taken[appt.Slot.Time] {
		return sales.Result{Message: sales.MsgSlotTaken}
	}
	c.booked = append(c.booked, appt)
	return sales.Result{OK: true, Appointment: &appt, Message: "Turno confirmado para el " + appt.Slot.Label()}
}

func newTestManager(ext Extractor, cal *fakeCalendar) (*Manager, *storage.MemoryStore) {
	store := storage.NewMemoryStore(time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(store, ext, cal, cal, "centro", logger), store
}

func pending(t *testing.T, store *storage.MemoryStore, key string) (domain.AppointmentDraft, bool) {
	t.Helper()
	return storage.ContextValue[domain.AppointmentDraft](store.Get(context.Background(), key).Context, storage.KeyPendingAppointment)
}

func TestNearestFree_EarlierThenLater(t *testing.T) {
	cal := &fakeCalendar{taken: map[string]bool{"15:00": true}}
	m, _ := newTestManager(scriptedExtractor{}, cal)

	got := m.NearestFree(context.Background(), domain.Slot{Store: "centro", Date: "2024-05-02", Time: "15:00"}, 2)
	require.Equal(t, []string{"14:30", "15:30"}, got)
	require.Equal(t, []string{"14:30", "15:30"}, cal.probes)
}

func TestNearestFree_SkipsOccupiedAndDayBounds(t *testing.T) {
	cal := &fakeCalendar{taken: map[string]bool{"00:30": true, "01:00": true, "01:30": true}}
	m, _ := newTestManager(scriptedExtractor{}, cal)

	got := m.NearestFree(context.Background(), domain.Slot{Date: "2024-05-02", Time: "00:30"}, 3)
	require.Equal(t, []string{"00:00", "02:00", "02:30"}, got)

	cal.taken = map[string]bool{}
	got = m.NearestFree(context.Background(), domain.Slot{Date: "2024-05-02", Time: "23:30"}, 4)
	require.Equal(t, []string{"23:00", "22:30", "22:00", "21:30"}, got)
}

func TestNearestFree_Exhausted(t *testing.T) {
	taken := map[string]bool{}
	for _, tm := range []string{"13:00", "13:30", "14:00", "14:30", "15:30", "16:00", "16:30", "17:00"} {
		taken[tm] = true
	}
	m, _ := newTestManager(scriptedExtractor{}, &fakeCalendar{taken: taken})
	require.Empty(t, m.NearestFree(context.Background(), domain.Slot{Time: "15:00"}, 2))
	require.Nil(t, m.NearestFree(context.Background(), domain.Slot{Time: "tarde"}, 2))
}

func TestHandle_PromptsDateBeforeTime(t *testing.T) {
	ext := scriptedExtractor{drafts: map[string]domain.AppointmentDraft{
		"puedo ir a las 4": {Time: "16:00"},
		"quiero un turno":  {},
	}}
	cal := &fakeCalendar{}
	m, store := newTestManager(ext, cal)
	ctx := context.Background()

	reply := m.Handle(ctx, "c1", "Ana", "quiero un turno")
	require.Equal(t, "¿Qué día te queda bien para venir?", reply)
	require.Equal(t, storage.StateSchedulingAppointment, store.GetState(ctx, "c1"))

	reply = m.Handle(ctx, "c1", "Ana", "puedo ir a las 4")
	require.Contains(t, reply, "16:00")
	require.Contains(t, reply, "Qué día")

	draft, ok := pending(t, store, "c1")
	require.True(t, ok)
	require.Equal(t, "16:00", draft.Time)
	require.Equal(t, "Ana", draft.Name)
	require.Empty(t, cal.probes)
}

func TestHandle_AsksForTimeWhenDateKnown(t *testing.T) {
	ext := scriptedExtractor{drafts: map[string]domain.AppointmentDraft{"el jueves": {Date: "2024-05-02"}}}
	m, _ := newTestManager(ext, &fakeCalendar{})

	require.Equal(t, "¿A qué hora te queda cómodo el jueves 02/05?", m.Handle(context.Background(), "c1", "", "el jueves"))
}

func TestHandle_BooksWhenComplete(t *testing.T) {
	ext := scriptedExtractor{drafts: map[string]domain.AppointmentDraft{
		"a las 4": {Time: "16:00"},
		"mañana":  {Date: "2024-05-02"},
	}}
	cal := &fakeCalendar{}
	m, store := newTestManager(ext, cal)
	ctx := context.Background()
	store.MergeContext(ctx, "c1", storage.Context{
		storage.KeyPendingPurchase: domain.PendingPurchase{ProductRef: "ip11", Name: "iPhone 11 128GB negro"},
	})

	m.Handle(ctx, "c1", "Ana", "a las 4")
	reply := m.Handle(ctx, "c1", "Ana", "mañana")

	require.Contains(t, reply, "jueves 02/05 a las 16:00")
	require.Equal(t, storage.StateAppointmentConfirmed, store.GetState(ctx, "c1"))
	_, ok := pending(t, store, "c1")
	require.False(t, ok)

	require.Len(t, cal.booked, 1)
	appt := cal.booked[0]
	require.Equal(t, domain.Slot{Store: "centro", Date: "2024-05-02", Time: "16:00"}, appt.Slot)
	require.Equal(t, "Ana", appt.CustomerName)
	require.Equal(t, "iPhone 11 128GB negro", appt.Product)
}

func TestHandle_ProductFromLastStockResults(t *testing.T) {
	ext := scriptedExtractor{drafts: map[string]domain.AppointmentDraft{"jueves 10hs": {Date: "2024-05-02", Time: "10:00"}}}
	cal := &fakeCalendar{}
	m, store := newTestManager(ext, cal)
	ctx := context.Background()
	store.MergeContext(ctx, "c1", storage.Context{
		storage.KeyLastStockResults: []domain.StockItem{{Model: "iPhone 13", Storage: "256GB"}},
	})

	m.Handle(ctx, "c1", "", "jueves 10hs")
	require.Len(t, cal.booked, 1)
	require.Equal(t, "iPhone 13 256GB", cal.booked[0].Product)
}

func TestHandle_OccupiedProposesAlternatives(t *testing.T) {
	ext := scriptedExtractor{drafts: map[string]domain.AppointmentDraft{
		"jueves a las 3": {Date: "2024-05-02", Time: "15:00"},
		"14:30":          {Time: "14:30"},
	}}
	cal := &fakeCalendar{taken: map[string]bool{"15:00": true}}
	m, store := newTestManager(ext, cal)
	ctx := context.Background()

	reply := m.Handle(ctx, "c1", "Ana", "jueves a las 3")
	require.Equal(t, "Las 15:00 ya están ocupadas. Tengo libre 14:30 o 15:30. ¿Cuál te queda mejor?", reply)
	require.Equal(t, storage.StateSchedulingAppointment, store.GetState(ctx, "c1"))
	require.Empty(t, cal.booked)

	// The date is kept; only the time changes.
	reply = m.Handle(ctx, "c1", "Ana", "14:30")
	require.Contains(t, reply, "14:30")
	require.Len(t, cal.booked, 1)
	require.Equal(t, "2024-05-02", cal.booked[0].Slot.Date)
}

func TestHandle_LostRaceProposesAlternatives(t *testing.T) {
	ext := scriptedExtractor{drafts: map[string]domain.AppointmentDraft{"x": {Date: "2024-05-02", Time: "12:00"}}}
	cal := &fakeCalendar{race: true}
	m, store := newTestManager(ext, cal)

	reply := m.Handle(context.Background(), "c1", "", "x")
	require.Contains(t, reply, "11:30 o 12:30")
	require.Equal(t, storage.StateSchedulingAppointment, store.GetState(context.Background(), "c1"))
}

func TestHandle_BookingFailureOnFreeSlotIsNotReportedAsTaken(t *testing.T) {
	ext := scriptedExtractor{drafts: map[string]domain.AppointmentDraft{"x": {Date: "2024-05-02", Time: "16:00"}}}
	cal := &fakeCalendar{failing: true}
	m, store := newTestManager(ext, cal)
	ctx := context.Background()

	reply := m.Handle(ctx, "c1", "Ana", "x")
	require.Equal(t, MsgBookingFailed, reply)
	require.NotContains(t, reply, "ocupad")
	require.Equal(t, storage.StateSchedulingAppointment, store.GetState(ctx, "c1"))
	draft, ok := pending(t, store, "c1")
	require.True(t, ok)
	require.Equal(t, "16:00", draft.Time)

	// Once the backend recovers the same draft books.
	cal.failing = false
	reply = m.Handle(ctx, "c1", "Ana", "dale")
	require.Contains(t, reply, "16:00")
	require.Len(t, cal.booked, 1)
}

func TestHandle_NoAlternativesMessageIsNeutral(t *testing.T) {
	ext := scriptedExtractor{drafts: map[string]domain.AppointmentDraft{"x": {Date: "2024-05-02", Time: "15:00"}}}
	taken := map[string]bool{}
	for _, tm := range []string{"13:00", "13:30", "14:00", "14:30", "15:00", "15:30", "16:00", "16:30", "17:00"} {
		taken[tm] = true
	}
	m, _ := newTestManager(ext, &fakeCalendar{taken: taken})

	reply := m.Handle(context.Background(), "c1", "Ana", "x")
	require.Equal(t, "No pude reservar las 15:00 y no encontré horarios libres cerca ese día. ¿Probamos otro día?", reply)
}

func TestHandle_ExtractionFailureKeepsDraft(t *testing.T) {
	cal := &fakeCalendar{}
	m, store := newTestManager(scriptedExtractor{err: errors.New("llm down")}, cal)
	ctx := context.Background()
	store.MergeContext(ctx, "c1", storage.Context{storage.KeyPendingAppointment: domain.AppointmentDraft{Date: "2024-05-02"}})

	reply := m.Handle(ctx, "c1", "", "a las cinco")
	require.Contains(t, reply, "A qué hora")

	draft, ok := pending(t, store, "c1")
	require.True(t, ok)
	require.Equal(t, "2024-05-02", draft.Date)
}
