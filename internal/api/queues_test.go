package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dialdesk/acd/internal/device"
	"github.com/dialdesk/acd/internal/queue"
	"github.com/dialdesk/acd/internal/types"
)

func newQueueRouter(t *testing.T) (*chi.Mux, *queue.Registry) {
	t.Helper()
	devices := device.NewRegistry(zerolog.Nop())
	queues := queue.NewRegistry(devices, zerolog.Nop())
	h := NewQueueHandler(queues, zerolog.Nop())

	r := chi.NewRouter()
	r.Get("/api/queues", h.ListQueues)
	r.Get("/api/queues/{name}", h.GetQueue)
	return r, queues
}

func TestListQueues(t *testing.T) {
	r, queues := newQueueRouter(t)
	queues.Load(queue.Config{Name: "support", Strategy: "ringall",
		Members: []types.MemberConfig{{Interface: "SIP/1001"}}})
	queues.Load(queue.Config{Name: "sales", Strategy: "leastrecent"})

	req := httptest.NewRequest(http.MethodGet, "/api/queues", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Queues []types.QueueSnapshot `json:"queues"`
		Count  int                   `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 2 || len(resp.Queues) != 2 {
		t.Fatalf("count = %d, queues = %d", resp.Count, len(resp.Queues))
	}
	// Sorted by name; no waiting list in the summary view.
	if resp.Queues[0].Name != "sales" || resp.Queues[1].Name != "support" {
		t.Errorf("order: %s, %s", resp.Queues[0].Name, resp.Queues[1].Name)
	}
	if resp.Queues[1].Waiters != nil {
		t.Error("summary snapshot must not carry waiters")
	}
	if len(resp.Queues[1].Members) != 1 {
		t.Errorf("members = %d", len(resp.Queues[1].Members))
	}
}

func TestGetQueueWithWaiters(t *testing.T) {
	r, queues := newQueueRouter(t)
	q := queues.Load(queue.Config{Name: "support", Strategy: "ringall"})

	e := queue.NewEntry(q, queue.JoinRequest{CallID: "caller-1", Priority: 3, MaxPenalty: -1}, time.Now())
	if err := q.Stats().Insert(e, 0, 0); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/queues/support", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap types.QueueSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.WaitingCount != 1 || len(snap.Waiters) != 1 {
		t.Fatalf("waiting = %d, waiters = %d", snap.WaitingCount, len(snap.Waiters))
	}
	w := snap.Waiters[0]
	if w.CallID != "caller-1" || w.Position != 1 || w.Priority != 3 {
		t.Errorf("waiter = %+v", w)
	}
}

func TestGetQueueNotFound(t *testing.T) {
	r, _ := newQueueRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/queues/ghost", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
