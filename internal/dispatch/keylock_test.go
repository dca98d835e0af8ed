package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSequencer_ServesTicketsInTakeOrder(t *testing.T) {
	s := newSequencer()
	tickets := make([]*ticket, 8)
	for i := range tickets {
		tickets[i] = s.Take("c1")
	}

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := len(tickets) - 1; i >= 0; i-- {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tickets[i].Wait()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			tickets[i].Done()
		}(i)
	}
	wg.Wait()

	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, order)
	require.Zero(t, s.size())
}

func TestSequencer_KeysAreIndependent(t *testing.T) {
	s := newSequencer()
	first := s.Take("c1")
	other := s.Take("c2")

	done := make(chan struct{})
	go func() {
		other.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("c2 waited on c1")
	}
	require.Equal(t, 2, s.size())

	first.Wait()
	first.Done()
	other.Done()
	require.Zero(t, s.size())
}

func TestSequencer_LaterTicketWaits(t *testing.T) {
	s := newSequencer()
	first := s.Take("c1")
	second := s.Take("c1")

	released := make(chan struct{})
	go func() {
		second.Wait()
		close(released)
	}()
	select {
	case <-released:
		t.Fatal("second ticket ran before the first was done")
	case <-time.After(50 * time.Millisecond):
	}

	first.Wait()
	first.Done()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("second ticket never released")
	}
	second.Done()
	require.Zero(t, s.size())
}
