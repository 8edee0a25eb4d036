package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hidangan/delivery-api/internal/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newLoggedRouter(logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fine"))
	})
	r.Get("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})
	return r
}

func TestRequestLogger_WritesStructuredEntry(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := newLoggedRouter(zap.New(core))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ok", nil))

	entries := logs.FilterMessage("request").All()
	if len(entries) != 1 {
		t.Fatalf("entries: got %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Level != zapcore.InfoLevel {
		t.Errorf("level: got %v, want info", e.Level)
	}
	fields := e.ContextMap()
	if fields["method"] != "GET" || fields["path"] != "/ok" {
		t.Errorf("method/path: got %v %v", fields["method"], fields["path"])
	}
	if fields["status"] != int64(http.StatusOK) || fields["bytes"] != int64(4) {
		t.Errorf("status/bytes: got %v %v", fields["status"], fields["bytes"])
	}
	if id, _ := fields["request_id"].(string); id == "" {
		t.Error("expected a request_id field")
	}
}

func TestRequestLogger_LevelFollowsStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := newLoggedRouter(zap.New(core))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	if got := logs.FilterLevelExact(zapcore.WarnLevel).FilterMessage("request").Len(); got != 1 {
		t.Errorf("warn entries for 404: got %d, want 1", got)
	}
}

func TestRequestLogger_LogsPanics(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := newLoggedRouter(zap.New(core))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", rr.Code)
	}
	panics := logs.FilterMessage("request panicked").All()
	if len(panics) != 1 {
		t.Fatalf("panic entries: got %d, want 1", len(panics))
	}
	if panics[0].ContextMap()["panic"] != "kaboom" {
		t.Errorf("panic value: got %v", panics[0].ContextMap()["panic"])
	}
}
