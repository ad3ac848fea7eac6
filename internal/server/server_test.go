package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lotshot/lotshot/internal/config"
	"github.com/lotshot/lotshot/internal/ratelimit"
	reconciledomain "github.com/lotshot/lotshot/internal/reconcile/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type reconcileStub struct {
	requests []reconciledomain.RunRequest
	result   *reconciledomain.RunResult
	err      error
}

func (s *reconcileStub) Run(_ context.Context, req reconciledomain.RunRequest) (*reconciledomain.RunResult, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type guardStub struct {
	held     bool
	released bool
}

func (g *guardStub) Acquire(context.Context) (func(), bool, error) {
	if g.held {
		return func() {}, false, nil
	}
	return func() { g.released = true }, true, nil
}

func newTestServer(stub *reconcileStub, guard ratelimit.RunGuard) *Server {
	engine := NewEngine(prometheus.NewRegistry())
	s := NewServer(ServerParam{
		Engine:       engine,
		Log:          zap.NewNop(),
		Config:       config.Config{},
		ReconcileSvc: stub,
		RunGuard:     guard,
	})
	s.RegisterRoutes()
	return s
}

func TestRunReconciliationReturnsResult(t *testing.T) {
	stub := &reconcileStub{result: &reconciledomain.RunResult{TotalReported: 7}}
	s := newTestServer(stub, &guardStub{})

	body := strings.NewReader(`{"dry_run": true, "backfill": true}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/reconciliation/runs", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	if assert.Len(t, stub.requests, 1) {
		assert.True(t, stub.requests[0].DryRun)
		assert.True(t, stub.requests[0].Backfill)
	}

	var result reconciledomain.RunResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	assert.Equal(t, 7, result.TotalReported)
}

func TestRunReconciliationReleasesGuard(t *testing.T) {
	stub := &reconcileStub{result: &reconciledomain.RunResult{}}
	guard := &guardStub{}
	s := newTestServer(stub, guard)

	req := httptest.NewRequest(http.MethodPost, "/v1/reconciliation/runs", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, guard.released)
}

func TestRunReconciliationConflictsWhileRunInProgress(t *testing.T) {
	stub := &reconcileStub{result: &reconciledomain.RunResult{}}
	s := newTestServer(stub, &guardStub{held: true})

	req := httptest.NewRequest(http.MethodPost, "/v1/reconciliation/runs", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, stub.requests)

	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	assert.Equal(t, "conflict", resp.Error.Type)
}

func TestRunReconciliationRejectsMalformedBody(t *testing.T) {
	stub := &reconcileStub{}
	s := newTestServer(stub, &guardStub{})

	req := httptest.NewRequest(http.MethodPost, "/v1/reconciliation/runs", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, stub.requests)

	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	assert.Equal(t, "validation_error", resp.Error.Type)
}

func TestRunReconciliationMapsInvalidTenant(t *testing.T) {
	stub := &reconcileStub{err: reconciledomain.ErrInvalidTenantID}
	s := newTestServer(stub, &guardStub{})

	req := httptest.NewRequest(http.MethodPost, "/v1/reconciliation/runs", strings.NewReader(`{"tenant_id": "bogus"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunReconciliationMapsUnknownErrors(t *testing.T) {
	stub := &reconcileStub{err: errors.New("database unavailable")}
	s := newTestServer(stub, &guardStub{})

	req := httptest.NewRequest(http.MethodPost, "/v1/reconciliation/runs", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	assert.Equal(t, "internal_error", resp.Error.Type)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(&reconcileStub{}, &guardStub{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
