package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dialdesk/acd/internal/types"
)

// fakeLogStore serves canned records keyed by date and queue.
type fakeLogStore struct {
	byDate  map[string][]types.QueueLogRecord
	byQueue map[string][]types.QueueLogRecord
	fail    bool
}

func (s *fakeLogStore) SaveQueueLog(types.QueueLogRecord) error { return nil }

func (s *fakeLogStore) GetQueueLogs(dateKey string) ([]types.QueueLogRecord, error) {
	if s.fail {
		return nil, errors.New("store down")
	}
	return s.byDate[dateKey], nil
}

func (s *fakeLogStore) GetQueueLogsByQueue(dateKey, queue string) ([]types.QueueLogRecord, error) {
	if s.fail {
		return nil, errors.New("store down")
	}
	return s.byQueue[dateKey+"/"+queue], nil
}

func (s *fakeLogStore) TruncateAll() error { return nil }

func newLogRouter(store *fakeLogStore) *chi.Mux {
	h := NewLogHandler(store, zerolog.Nop())
	r := chi.NewRouter()
	r.Get("/api/logs", h.GetLogs)
	r.Get("/api/logs/{queue}", h.GetQueueLogs)
	return r
}

func TestGetLogsByDate(t *testing.T) {
	store := &fakeLogStore{byDate: map[string][]types.QueueLogRecord{
		"2026-08-29": {
			{DateKey: "2026-08-29", Queue: "support", Event: types.EventEnterQueue},
			{DateKey: "2026-08-29", Queue: "support", Event: types.EventConnect},
		},
	}}
	r := newLogRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/api/logs?date=2026-08-29", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var records []types.QueueLogRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[1].Event != types.EventConnect {
		t.Fatalf("records = %+v", records)
	}
}

func TestGetLogsEmptyDateIsEmptyArray(t *testing.T) {
	r := newLogRouter(&fakeLogStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/logs?date=1999-01-01", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	// Clients get [] rather than null.
	if body := rec.Body.String(); body != "[]\n" {
		t.Fatalf("body = %q", body)
	}
}

func TestGetQueueLogs(t *testing.T) {
	store := &fakeLogStore{byQueue: map[string][]types.QueueLogRecord{
		"2026-08-29/support": {{Queue: "support", Event: types.EventAbandon}},
	}}
	r := newLogRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/api/logs/support?date=2026-08-29", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var records []types.QueueLogRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Event != types.EventAbandon {
		t.Fatalf("records = %+v", records)
	}
}

func TestGetLogsStoreFailure(t *testing.T) {
	r := newLogRouter(&fakeLogStore{fail: true})

	req := httptest.NewRequest(http.MethodGet, "/api/logs", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}
