package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ireland-samantha/shopkeeper-bot/internal/dispatch"
	"github.com/ireland-samantha/shopkeeper-bot/internal/storage"
)

type recordingHandler struct {
	mu       sync.Mutex
	accepted []string
	got      []dispatch.Inbound
}

// Accept records the arrival order synchronously, the handled order when the
// returned function runs.
func (h *recordingHandler) Accept(in dispatch.Inbound) func(context.Context) string {
	h.mu.Lock()
	h.accepted = append(h.accepted, in.Text)
	h.mu.Unlock()
	return func(context.Context) string {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.got = append(h.got, in)
		return "ok"
	}
}

type countingCache struct{ calls int }

func (c *countingCache) InvalidateAll() { c.calls++ }

func newTestServer() (*Server, *recordingHandler, *storage.MemoryStore, *countingCache) {
	h := &recordingHandler{}
	store := storage.NewMemoryStore(time.Hour)
	cache := &countingCache{}
	return New(":0", h, store, cache, slog.New(slog.NewTextHandler(io.Discard, nil))), h, store, cache
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _, _, _ := newTestServer()
	rec := do(s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListConversations(t *testing.T) {
	s, _, store, _ := newTestServer()
	ctx := context.Background()
	store.AppendMessage(ctx, "c1", storage.RoleCustomer, "hola")
	store.SetState(ctx, "c1", storage.StateSchedulingAppointment)
	store.MergeContext(ctx, "c1", storage.Context{storage.KeyPendingPurchase: "x"})

	rec := do(s, http.MethodGet, "/conversations", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []conversationSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "c1", got[0].ID)
	require.Equal(t, "SCHEDULING_APPOINTMENT", got[0].State)
	require.Equal(t, 1, got[0].Messages)
	require.Equal(t, []string{storage.KeyPendingPurchase}, got[0].ContextKeys)
}

func TestInvalidateCache(t *testing.T) {
	s, _, _, cache := newTestServer()
	rec := do(s, http.MethodPost, "/cache/invalidate", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, 1, cache.calls)
}

func TestReceiveMessage(t *testing.T) {
	s, h, _, _ := newTestServer()

	rec := do(s, http.MethodPost, "/messages", `{"customerId":" 549110 ","text":"hola","displayName":"Ana"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	s.Wait()

	require.Equal(t, []dispatch.Inbound{{CustomerID: "549110", Text: "hola", DisplayName: "Ana"}}, h.got)
}

func TestReceiveMessage_AcceptsInRequestOrder(t *testing.T) {
	s, h, _, _ := newTestServer()

	texts := []string{"puedo ir a las 4", "mañana", "soy Ana"}
	for _, text := range texts {
		rec := do(s, http.MethodPost, "/messages", `{"customerId":"c1","text":"`+text+`"}`)
		require.Equal(t, http.StatusAccepted, rec.Code)
	}
	s.Wait()

	require.Equal(t, texts, h.accepted)
	require.Len(t, h.got, 3)
}

func TestReceiveMessage_Validation(t *testing.T) {
	s, h, _, _ := newTestServer()

	rec := do(s, http.MethodPost, "/messages", `{"customerId":"c1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodPost, "/messages", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodGet, "/messages", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	s.Wait()
	require.Empty(t, h.got)
}

func TestRun_StopsOnCancel(t *testing.T) {
	s, _, _, _ := newTestServer()
	s.addr = "127.0.0.1:0"
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
