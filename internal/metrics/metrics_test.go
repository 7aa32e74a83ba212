package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMiddlewareWithChiRouter(t *testing.T) {
	HTTPRequestsTotal.Reset()

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/recetas/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("GET", "/recetas/"+id, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rec.Code)
		}
	}

	// all three requests share the route pattern label
	got := counterValue(HTTPRequestsTotal.WithLabelValues("GET", "/recetas/{id}", "200"))
	if got != 3 {
		t.Errorf("Expected 3 requests recorded for pattern, got %v", got)
	}
}

func TestMiddlewareUnmatchedPath(t *testing.T) {
	HTTPRequestsTotal.Reset()

	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/random/123", nil))

	if got := counterValue(HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Errorf("Expected unmatched request to be counted once, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	RecordLogin("success")
	ObserveRevocationCheck("redis", time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	for _, name := range []string{
		"recetas_auth_login_attempts_total",
		"recetas_auth_revocation_check_duration_seconds",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("Expected body to contain %s", name)
		}
	}
}

func TestMetricsRegistration(t *testing.T) {
	metrics := []prometheus.Collector{
		HTTPRequestsTotal,
		HTTPRequestDuration,
		HTTPRequestsInFlight,
		DBConnectionsOpen,
		DBConnectionsInUse,
		DBConnectionsIdle,
		LoginAttemptsTotal,
		LockoutsTotal,
		TokensRevokedTotal,
		RevocationCheckDuration,
		RevokedTokensPurged,
		RecipeVotesTotal,
		MediaUploadsTotal,
	}

	for _, m := range metrics {
		desc := make(chan *prometheus.Desc, 10)
		m.Describe(desc)
		close(desc)

		count := 0
		for range desc {
			count++
		}
		if count == 0 {
			t.Errorf("Metric has no descriptions")
		}
	}
}

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return -1
	}
	return m.GetCounter().GetValue()
}
