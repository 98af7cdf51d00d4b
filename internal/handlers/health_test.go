package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealth(t *testing.T) {
	if err := Configure(Dependencies{}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	Health(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected Content-Type application/json, got %q", ct)
	}

	var resp healthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Database != "unconfigured" {
		t.Fatalf("unexpected health response: %+v", resp)
	}
	if resp.Time.IsZero() {
		t.Fatal("expected response time to be populated")
	}
}

func TestHealthPingsDatabase(t *testing.T) {
	withTestDatabase(t)

	rr := call(t, Health, http.MethodGet, "/healthz", nil)
	expectStatus(t, rr, http.StatusOK)
	if resp := decode[healthResponse](t, rr); resp.Database != "ok" {
		t.Fatalf("expected database ok, got %+v", resp)
	}
}
