package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djfrancesco/poesie-francaise-scraper/internal/builder"
)

func TestHealthz(t *testing.T) {
	s := New(":0", nil, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestReadyzWaitsForFirstStep(t *testing.T) {
	tracker := NewTracker("run-1")
	s := New(":0", tracker, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	tracker.Begin("fetch_poets", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusReportsProgress(t *testing.T) {
	tracker := NewTracker("run-1")
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	tracker.Begin("fetch_poems", start)
	tracker.PoetDone(builder.PoetEvent{PoetSlug: "victor-hugo", Stored: 3})
	tracker.PoetDone(builder.PoetEvent{PoetSlug: "paul-verlaine", Stored: 2})
	tracker.Finish(&builder.Summary{RunID: "run-1", Poets: 2, Poems: 5}, errors.New("store down"), start.Add(time.Minute))

	s := New(":0", tracker, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "fetch_poems", got.Step)
	assert.Equal(t, 2, got.PoetsDone)
	assert.Equal(t, 5, got.PoemsDone)
	require.NotNil(t, got.LastPoet)
	assert.Equal(t, "paul-verlaine", got.LastPoet.PoetSlug)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 5, got.Summary.Poems)
	assert.Equal(t, "store down", got.Error)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, got.FinishedAt.Equal(start.Add(time.Minute)))
}

func TestStatusWithoutTracker(t *testing.T) {
	s := New(":0", nil, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := New(":0", nil, nil)
	s.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestStartAndShutdown(t *testing.T) {
	s := New("127.0.0.1:0", nil, nil)
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}
