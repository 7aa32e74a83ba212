package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_AllUp(t *testing.T) {
	h := NewHandler(Config{Service: "users", Version: "test"})
	h.AddCheck("database", true, func(context.Context) error { return nil })
	h.AddCheck("redis", false, func(context.Context) error { return nil })

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "users", body.Service)
	assert.Equal(t, "up", body.Services["database"].Status)
	assert.Equal(t, "up", body.Services["redis"].Status)
}

func TestHealth_OptionalDownDegrades(t *testing.T) {
	h := NewHandler(Config{Service: "recipes"})
	h.AddCheck("database", true, func(context.Context) error { return nil })
	h.AddCheck("redis", false, func(context.Context) error { return errors.New("dial tcp: refused") })

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "dial tcp: refused", body.Services["redis"].Error)
}

func TestReadiness(t *testing.T) {
	dbUp := true
	h := NewHandler(Config{})
	h.AddCheck("database", true, func(context.Context) error {
		if dbUp {
			return nil
		}
		return errors.New("down")
	})
	h.AddCheck("redis", false, func(context.Context) error { return errors.New("down") })

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "optional checks do not gate readiness")

	dbUp = false
	rec = httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	dbUp = true
	h.SetReady(false)
	rec = httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLiveness(t *testing.T) {
	h := NewHandler(Config{})
	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"alive":true`)
}
