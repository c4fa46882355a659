package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"rebalancer/internal/config"
	"rebalancer/internal/rebalancer"
)

type fakeController struct {
	state             rebalancer.State
	waitingInfo       string
	halted            bool
	resumed           bool
	rebalanced        bool
	rebalanceErr      error
}

func (f *fakeController) Halt(ctx context.Context)            { f.halted = true }
func (f *fakeController) Resume()                              { f.resumed = true }
func (f *fakeController) RebalanceAtMarket(ctx context.Context) error {
	f.rebalanced = true
	return f.rebalanceErr
}
func (f *fakeController) State() rebalancer.State { return f.state }
func (f *fakeController) WaitingInfo() string     { return f.waitingInfo }

func newTestServer(ctrl Controller) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(config.DashboardConfig{Port: 0}, ctrl, nil, logger)
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()
	s := newTestServer(&fakeController{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	t.Parallel()
	ctrl := &fakeController{state: rebalancer.StateHalted, waitingInfo: "balance below limit"}
	s := newTestServer(ctrl)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); !contains(body, "halted") || !contains(body, "balance below limit") {
		t.Errorf("status body = %q, missing expected fields", body)
	}
}

func TestHandleHaltRejectsNonPost(t *testing.T) {
	t.Parallel()
	ctrl := &fakeController{}
	s := newTestServer(ctrl)
	req := httptest.NewRequest(http.MethodGet, "/control/halt", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
	if ctrl.halted {
		t.Errorf("GET should not invoke Halt")
	}
}

func TestHandleHaltInvokesController(t *testing.T) {
	t.Parallel()
	ctrl := &fakeController{}
	s := newTestServer(ctrl)
	req := httptest.NewRequest(http.MethodPost, "/control/halt", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if !ctrl.halted {
		t.Errorf("POST /control/halt should invoke Controller.Halt")
	}
}

func TestHandleResumeInvokesController(t *testing.T) {
	t.Parallel()
	ctrl := &fakeController{}
	s := newTestServer(ctrl)
	req := httptest.NewRequest(http.MethodPost, "/control/resume", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if !ctrl.resumed {
		t.Errorf("POST /control/resume should invoke Controller.Resume")
	}
}

func TestHandleRebalanceSuccess(t *testing.T) {
	t.Parallel()
	ctrl := &fakeController{}
	s := newTestServer(ctrl)
	req := httptest.NewRequest(http.MethodPost, "/control/rebalance", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if !ctrl.rebalanced {
		t.Errorf("POST /control/rebalance should invoke Controller.RebalanceAtMarket")
	}
}

func TestHandleRebalanceFailure(t *testing.T) {
	t.Parallel()
	ctrl := &fakeController{rebalanceErr: errTest{}}
	s := newTestServer(ctrl)
	req := httptest.NewRequest(http.MethodPost, "/control/rebalance", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 on controller error", rec.Code)
	}
}

type errTest struct{}

func (errTest) Error() string { return "rebalance failed" }

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
