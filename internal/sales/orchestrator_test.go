package sales

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ireland-samantha/shopkeeper-bot/internal/domain"
)

type fakeStore struct {
	stock        map[string]int
	failSale     bool
	calls        []string
	appointments []domain.Appointment
	taken        map[domain.Slot]bool
	failCancel   bool
	purchases    map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		stock:     map[string]int{"ip11": 1, "ip13": 3, "empty": 0},
		taken:     map[domain.Slot]bool{},
		purchases: map[string]string{},
	}
}

func (f *fakeStore) Reserve(_ context.Context, ref string) bool {
	f.calls = append(f.calls, "reserve")
	if f.stock[ref] <= 0 {
		return false
	}
	f.stock[ref]--
	return true
}

func (f *fakeStore) Release(_ context.Context, ref string) bool {
	f.calls = append(f.calls, "release")
	f.stock[ref]++
	return true
}

func (f *fakeStore) CreateSale(_ context.Context, in domain.SaleInput) *domain.Sale {
	f.calls = append(f.calls, "createSale")
	if f.failSale {
		return nil
	}
	return &domain.Sale{ID: "s1", CustomerRef: in.CustomerRef, Items: in.Items, Total: in.Total, Status: domain.SaleStatusCompleted}
}

func (f *fakeStore) FindOrCreateClient(_ context.Context, in domain.ClientInput) *domain.Client {
	f.calls = append(f.calls, "findOrCreateClient")
	return &domain.Client{ID: "cl-" + in.Phone, Phone: in.Phone, Name: in.Name}
}

func (f *fakeStore) RecordPurchase(_ context.Context, id, product string) bool {
	f.calls = append(f.calls, "recordPurchase")
	f.purchases[id] = product
	return true
}

func (f *fakeStore) CreateAppointment(_ context.Context, appt domain.Appointment) bool {
	if f.taken[appt.Slot] {
		return false
	}
	f.taken[appt.Slot] = true
	appt.ID = "a" + appt.Slot.Time
	f.appointments = append(f.appointments, appt)
	return true
}

func (f *fakeStore) FindAppointment(_ context.Context, ref string) *domain.Appointment {
	for i := range f.appointments {
		if f.appointments[i].CustomerRef == ref {
			a := f.appointments[i]
			return &a
		}
	}
	return nil
}

func (f *fakeStore) RescheduleAppointment(_ context.Context, id string, slot domain.Slot) bool {
	if f.taken[slot] {
		return false
	}
	for i := range f.appointments {
		if f.appointments[i].ID == id {
			delete(f.taken, f.appointments[i].Slot)
			f.appointments[i].Slot = slot
			f.taken[slot] = true
			return true
		}
	}
	return false
}

func (f *fakeStore) CancelAppointment(_ context.Context, ref string) bool {
	if f.failCancel {
		return false
	}
	for i := range f.appointments {
		if f.appointments[i].CustomerRef == ref {
			delete(f.taken, f.appointments[i].Slot)
			f.appointments = append(f.appointments[:i], f.appointments[i+1:]...)
			return true
		}
	}
	return false
}

func newTestOrchestrator() (*Orchestrator, *fakeStore) {
	store := newFakeStore()
	return New(store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func TestProcessSale_Success(t *testing.T) {
	o, store := newTestOrchestrator()

	res := o.ProcessSale(context.Background(), SaleRequest{
		CustomerRef: "5491100000000", CustomerName: "Ana",
		ProductRef: "ip11", ProductName: "iPhone 11", UnitPrice: 450000,
		PaymentMethod: "transfer",
	})
	require.True(t, res.OK)
	require.NotNil(t, res.Sale)
	require.Contains(t, res.Message, "450.000")
	require.Equal(t, []string{"reserve", "createSale", "findOrCreateClient", "recordPurchase"}, store.calls)
	require.Equal(t, "iPhone 11", store.purchases["cl-5491100000000"])
	require.Equal(t, 0, store.stock["ip11"])
}

func TestProcessSale_OutOfStockStopsEarly(t *testing.T) {
	o, store := newTestOrchestrator()

	res := o.ProcessSale(context.Background(), SaleRequest{CustomerRef: "c1", ProductRef: "empty", ProductName: "iPhone X"})
	require.False(t, res.OK)
	require.Equal(t, MsgUnavailable, res.Message)
	require.Equal(t, []string{"reserve"}, store.calls)
}

func TestProcessSale_PartialReservationReleased(t *testing.T) {
	o, store := newTestOrchestrator()

	res := o.ProcessSale(context.Background(), SaleRequest{CustomerRef: "c1", ProductRef: "ip13", Quantity: 5})
	require.False(t, res.OK)
	require.Equal(t, 3, store.stock["ip13"])
	require.NotContains(t, store.calls, "createSale")
}

func TestProcessSale_FailedSaleReleasesReservation(t *testing.T) {
	o, store := newTestOrchestrator()
	store.failSale = true

	res := o.ProcessSale(context.Background(), SaleRequest{CustomerRef: "c1", ProductRef: "ip11", UnitPrice: 1})
	require.False(t, res.OK)
	require.Equal(t, MsgSaleFailed, res.Message)
	require.Equal(t, []string{"reserve", "createSale", "release"}, store.calls)
	require.Equal(t, 1, store.stock["ip11"])
}

func TestProcessSale_UntrackedProductSkipsReserve(t *testing.T) {
	o, store := newTestOrchestrator()

	res := o.ProcessSale(context.Background(), SaleRequest{CustomerRef: "c1", ProductName: "Funda", UnitPrice: 5000, Quantity: 2})
	require.True(t, res.OK)
	require.InDelta(t, 10000, res.Sale.Total, 0.01)
	require.NotContains(t, store.calls, "reserve")
}

func TestAppointmentLifecycle(t *testing.T) {
	o, store := newTestOrchestrator()
	ctx := context.Background()
	slot := domain.Slot{Store: "centro", Date: "2024-05-02", Time: "16:00"}

	res := o.QueryAppointment(ctx, "c1")
	require.False(t, res.OK)

	res = o.ScheduleAppointment(ctx, domain.Appointment{Slot: slot, CustomerRef: "c1"})
	require.True(t, res.OK)
	require.Contains(t, res.Message, "jueves 02/05 a las 16:00")

	res = o.ScheduleAppointment(ctx, domain.Appointment{Slot: slot, CustomerRef: "c2"})
	require.False(t, res.OK)
	require.Equal(t, MsgSlotTaken, res.Message)

	res = o.QueryAppointment(ctx, "c1")
	require.True(t, res.OK)
	require.Contains(t, res.Message, "16:00")

	// Store is kept from the existing appointment.
	res = o.ModifyAppointment(ctx, "c1", domain.Slot{Date: "2024-05-03", Time: "11:00"})
	require.True(t, res.OK)
	require.Equal(t, "centro", store.appointments[0].Slot.Store)
	require.Equal(t, "11:00", store.appointments[0].Slot.Time)

	res = o.CancelAppointment(ctx, "c1")
	require.True(t, res.OK)
	require.Contains(t, res.Message, "11:00")
	require.Empty(t, store.appointments)
}

func TestModifyAppointment_Outcomes(t *testing.T) {
	o, store := newTestOrchestrator()
	ctx := context.Background()

	res := o.ModifyAppointment(ctx, "ghost", domain.Slot{Date: "2024-05-03", Time: "11:00"})
	require.Equal(t, MsgNoAppointment, res.Message)

	store.CreateAppointment(ctx, domain.Appointment{Slot: domain.Slot{Store: "centro", Date: "2024-05-03", Time: "10:00"}, CustomerRef: "c1"})
	store.CreateAppointment(ctx, domain.Appointment{Slot: domain.Slot{Store: "centro", Date: "2024-05-03", Time: "11:00"}, CustomerRef: "c2"})

	res = o.ModifyAppointment(ctx, "c1", domain.Slot{Date: "2024-05-03", Time: "11:00"})
	require.False(t, res.OK)
	require.Equal(t, MsgSlotTaken, res.Message)
}

func TestCancelAppointment_Outcomes(t *testing.T) {
	o, store := newTestOrchestrator()
	ctx := context.Background()

	require.Equal(t, MsgNoAppointment, o.CancelAppointment(ctx, "c1").Message)

	store.CreateAppointment(ctx, domain.Appointment{Slot: domain.Slot{Date: "2024-05-03", Time: "10:00"}, CustomerRef: "c1"})
	store.failCancel = true
	res := o.CancelAppointment(ctx, "c1")
	require.False(t, res.OK)
	require.Equal(t, MsgAppointmentError, res.Message)
}
