package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"compounder/internal/compounding"
)

func TestOutcome(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{compounding.Invalid("quantity", "bad"), "invalid"},
		{&compounding.NotFoundError{Resource: "lot", ID: 1}, "not_found"},
		{&compounding.IncompatibleUnitsError{}, "incompatible_units"},
		{&compounding.InsufficientStockError{}, "insufficient_stock"},
		{&compounding.ConflictError{Message: "x"}, "conflict"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range cases {
		if got := Outcome(tt.err); got != tt.want {
			t.Fatalf("Outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	t.Parallel()

	m := New()
	router := chi.NewRouter()
	router.Use(m.Middleware)
	router.Get("/api/lots/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, path := range []string{"/api/lots/1", "/api/lots/2"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.APIRequestCounter.WithLabelValues(http.MethodGet, "/api/lots/{id}")); got != 2 {
		t.Fatalf("requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.APIErrorCounter.WithLabelValues(http.MethodGet, "/api/lots/{id}", "404")); got != 2 {
		t.Fatalf("errors = %v, want 2", got)
	}
}

func TestDomainCounters(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveMovement("saida", nil)
	m.ObserveMovement("saida", &compounding.InsufficientStockError{})
	m.ObserveEstimate(time.Now(), nil)
	m.TrackDBOperation("consume lot")(time.Now())

	if got := testutil.ToFloat64(m.MovementCounter.WithLabelValues("saida", "insufficient_stock")); got != 1 {
		t.Fatalf("insufficient_stock = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.EstimateCounter.WithLabelValues("ok")); got != 1 {
		t.Fatalf("estimates = %v, want 1", got)
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveMovement("entrada", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "compounder_inventory_movements_total") {
		t.Fatalf("expected movement counter in exposition, got %s", rec.Body.String())
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveMovement("saida", nil)
	m.ObserveEstimate(time.Now(), nil)
	m.TrackDBOperation("x")(time.Now())

	called := false
	handler := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Fatal("expected nil metrics middleware to pass through")
	}
}
