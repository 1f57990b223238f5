package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestServer_HealthEndpoints(t *testing.T) {
	srv := New(DefaultConfig(), testLogger(), nil)

	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", http.NoBody))
	if w.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/health", http.NoBody))
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", w.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Service != "homewatt" || resp.Status != "ok" {
		t.Errorf("health = %+v, want ok/homewatt", resp)
	}
}

func TestServer_ReadyzReflectsChecker(t *testing.T) {
	failing := ReadinessChecker(func(context.Context) error {
		return errors.New("database offline")
	})
	srv := New(DefaultConfig(), testLogger(), failing)

	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/readyz", http.NoBody))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz status = %d, want 503", w.Code)
	}
}

type stubRoutes struct{ hit bool }

func (s *stubRoutes) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/stub", func(w http.ResponseWriter, _ *http.Request) {
		s.hit = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestServer_MountsRegistrars(t *testing.T) {
	stub := &stubRoutes{}
	srv := New(DefaultConfig(), testLogger(), nil, stub)

	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/stub", http.NoBody))
	if w.Code != http.StatusOK || !stub.hit {
		t.Errorf("stub route: status = %d, hit = %v", w.Code, stub.hit)
	}
}
