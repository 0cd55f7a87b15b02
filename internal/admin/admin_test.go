package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goldstone-mgmt/southd/internal/reconciler"
	"github.com/goldstone-mgmt/southd/pkg/transponder"
)

// fakeReconciler returns canned entity statuses.
type fakeReconciler struct {
	statuses []reconciler.EntityStatus
}

func (f *fakeReconciler) Status() []reconciler.EntityStatus { return f.statuses }

func (f *fakeReconciler) Degraded() bool {
	for _, st := range f.statuses {
		if st.State == reconciler.StateDegraded || st.Fault {
			return true
		}
	}
	return false
}

func TestHealth_AllSteady(t *testing.T) {
	t.Parallel()

	s := &Server{manager: &fakeReconciler{statuses: []reconciler.EntityStatus{
		{Ref: transponder.ModuleRef("piu1"), State: reconciler.StateSteady},
		{Ref: transponder.NetworkInterfaceRef("piu1", "0"), State: reconciler.StateSteady},
	}}}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	s.handleHealth().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if resp.Status != "ok" {
		t.Errorf("status = %q, want %q", resp.Status, "ok")
	}
	if resp.Entities != 2 {
		t.Errorf("entities = %d, want 2", resp.Entities)
	}
}

func TestHealth_DegradedEntity(t *testing.T) {
	t.Parallel()

	s := &Server{manager: &fakeReconciler{statuses: []reconciler.EntityStatus{
		{Ref: transponder.ModuleRef("piu1"), State: reconciler.StateSteady},
		{Ref: transponder.NetworkInterfaceRef("piu1", "0"), State: reconciler.StateDegraded},
	}}}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	s.handleHealth().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if resp.Status != "degraded" {
		t.Errorf("status = %q, want %q", resp.Status, "degraded")
	}
	if resp.Degraded != 1 {
		t.Errorf("degraded = %d, want 1", resp.Degraded)
	}
}

func TestHealth_FaultedEntity(t *testing.T) {
	t.Parallel()

	s := &Server{manager: &fakeReconciler{statuses: []reconciler.EntityStatus{
		{Ref: transponder.ModuleRef("piu1"), State: reconciler.StateSteady, Fault: true},
	}}}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	s.handleHealth().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestHealth_NoManager(t *testing.T) {
	t.Parallel()

	s := &Server{}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	s.handleHealth().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestStatus_ReportsEntities(t *testing.T) {
	t.Parallel()

	s := &Server{
		startedAt: time.Now().Add(-42 * time.Second),
		manager: &fakeReconciler{statuses: []reconciler.EntityStatus{
			{Ref: transponder.HostInterfaceRef("piu1", "0"), State: reconciler.StateSteady, CacheVersion: 7},
		}},
	}

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()
	s.handleStatus().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp StatusResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(resp.Entities) != 1 {
		t.Fatalf("entities = %d, want 1", len(resp.Entities))
	}
	if resp.Entities[0].CacheVersion != 7 {
		t.Errorf("cache version = %d, want 7", resp.Entities[0].CacheVersion)
	}
	if resp.Uptime < 41 {
		t.Errorf("uptime = %v, want >= 41s", resp.Uptime)
	}
}

func TestEvents_NoHub(t *testing.T) {
	t.Parallel()

	s := &Server{}

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	rr := httptest.NewRecorder()
	s.handleEvents().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestValidate_BindAddress(t *testing.T) {
	t.Parallel()

	s := &Server{config: Config{Bind: "127.0.0.1:0"}}
	if err := s.Validate(); err != nil {
		t.Errorf("valid bind rejected: %v", err)
	}

	s = &Server{config: Config{Bind: "not a bind addr"}}
	if err := s.Validate(); err == nil {
		t.Error("invalid bind accepted")
	}
}
