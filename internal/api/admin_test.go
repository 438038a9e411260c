package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dialdesk/acd/internal/auth"
	"github.com/dialdesk/acd/internal/device"
	"github.com/dialdesk/acd/internal/directory"
	"github.com/dialdesk/acd/internal/queue"
	"github.com/dialdesk/acd/internal/types"
)

type wipeFailStore struct{ fakeLogStore }

func (s *wipeFailStore) TruncateAll() error { return errors.New("table locked") }

func newAdminHandler(t *testing.T) (*AdminHandler, *queue.Registry) {
	t.Helper()
	devices := device.NewRegistry(zerolog.Nop())
	queues := queue.NewRegistry(devices, zerolog.Nop())

	dir := directory.New(nil, nil, zerolog.Nop())
	dir.SetStatic([]queue.Config{
		{Name: "sales", Strategy: "ringall", Members: []types.MemberConfig{{Interface: "SIP/1001"}}},
		{Name: "support", Strategy: "leastrecent"},
	})

	h := NewAdminHandler(queues, dir, &fakeLogStore{}, zerolog.Nop())
	return h, queues
}

func TestAdminReload(t *testing.T) {
	h, queues := newAdminHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/reload", nil)
	rec := httptest.NewRecorder()
	h.Reload(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["queues"].(float64) != 2 {
		t.Fatalf("queues = %v", resp["queues"])
	}
	for _, name := range []string{"sales", "support"} {
		if _, err := queues.Find(name); err != nil {
			t.Fatalf("reload did not install %s: %v", name, err)
		}
	}
}

func TestAdminRemoveQueue(t *testing.T) {
	h, queues := newAdminHandler(t)
	queues.Load(queue.Config{Name: "sales", Strategy: "ringall"})

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/queues", nil)
	rec := httptest.NewRecorder()
	h.RemoveQueue(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing name: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/admin/queues?name=ghost", nil)
	rec = httptest.NewRecorder()
	h.RemoveQueue(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown queue: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/admin/queues?name=sales", nil)
	rec = httptest.NewRecorder()
	h.RemoveQueue(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, err := queues.Find("sales"); err == nil {
		t.Fatal("queue still registered")
	}
}

func TestAdminWipeQueueLog(t *testing.T) {
	devices := device.NewRegistry(zerolog.Nop())
	queues := queue.NewRegistry(devices, zerolog.Nop())
	dir := directory.New(nil, nil, zerolog.Nop())

	h := NewAdminHandler(queues, dir, &wipeFailStore{}, zerolog.Nop())
	req := httptest.NewRequest(http.MethodDelete, "/api/admin/queue-log", nil)
	rec := httptest.NewRecorder()
	h.WipeQueueLog(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}

	h = NewAdminHandler(queues, dir, &fakeLogStore{}, zerolog.Nop())
	rec = httptest.NewRecorder()
	h.WipeQueueLog(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func withRole(req *http.Request, role string) *http.Request {
	claims := &auth.Claims{Role: role}
	return req.WithContext(context.WithValue(req.Context(), auth.UserContextKey, claims))
}

func TestRequireAdmin(t *testing.T) {
	probe := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	guarded := RequireAdmin(probe)

	cases := []struct {
		role string
		want int
	}{
		{"admin", http.StatusNoContent},
		{"supervisor", http.StatusForbidden},
		{"agent", http.StatusForbidden},
	}
	for _, tc := range cases {
		req := withRole(httptest.NewRequest(http.MethodPost, "/", nil), tc.role)
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("role %s: status = %d, want %d", tc.role, rec.Code, tc.want)
		}
	}

	// No claims at all.
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("anonymous: status = %d", rec.Code)
	}
}

func TestRequireSupervisorOrAdmin(t *testing.T) {
	probe := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	guarded := RequireSupervisorOrAdmin(probe)

	for role, want := range map[string]int{
		"admin":      http.StatusNoContent,
		"supervisor": http.StatusNoContent,
		"agent":      http.StatusForbidden,
	} {
		req := withRole(httptest.NewRequest(http.MethodPost, "/", nil), role)
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("role %s: status = %d, want %d", role, rec.Code, want)
		}
	}
}
