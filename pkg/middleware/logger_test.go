package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func logOneRequest(t *testing.T, handler http.HandlerFunc, method, path string) map[string]interface{} {
	t.Helper()
	var buf bytes.Buffer
	logged := Logger(zerolog.New(&buf))(handler)

	rec := httptest.NewRecorder()
	logged.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output not valid json: %v", err)
	}
	return entry
}

func TestLoggerRecordsRequestFields(t *testing.T) {
	entry := logOneRequest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}, http.MethodGet, "/api/queues/support")

	if entry["method"] != "GET" {
		t.Errorf("method = %v", entry["method"])
	}
	if entry["path"] != "/api/queues/support" {
		t.Errorf("path = %v", entry["path"])
	}
	// Handler never called WriteHeader, default 200 still recorded.
	if entry["status"] != float64(200) {
		t.Errorf("status = %v", entry["status"])
	}
	if entry["message"] != "request completed" {
		t.Errorf("message = %v", entry["message"])
	}
	if _, ok := entry["duration"]; !ok {
		t.Error("duration field missing")
	}
}

func TestLoggerCapturesErrorStatus(t *testing.T) {
	entry := logOneRequest(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such queue", http.StatusNotFound)
	}, http.MethodDelete, "/api/admin/queues")

	if entry["status"] != float64(404) {
		t.Errorf("status = %v", entry["status"])
	}
}
