//go:build e2e
// +build e2e

// Package e2e provides end-to-end tests for the biovisord API.
// They expect a running daemon, by default on localhost:8080.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/biovisor/biovisor/internal/domain"
)

var baseURL = getEnv("API_URL", "http://localhost:8080")

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// TestMain waits for the daemon before running anything.
func TestMain(m *testing.M) {
	ready := false
	for i := 0; i < 30; i++ {
		resp, err := http.Get(baseURL + "/healthz")
		if err == nil && resp.StatusCode == 200 {
			resp.Body.Close()
			ready = true
			break
		}
		time.Sleep(1 * time.Second)
	}
	if !ready {
		fmt.Println("biovisord not reachable at", baseURL)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// =============================================================================
// Helper types and functions
// =============================================================================

type VMResponse struct {
	ID          string `json:"id"`
	State       string `json:"state"`
	Priority    int    `json:"priority"`
	ErrorReason string `json:"error_reason,omitempty"`
}

type ListVMsResponse struct {
	VMs []VMResponse `json:"vms"`
}

type StatusResponse struct {
	VMCount     int    `json:"vm_count"`
	Tick        uint64 `json:"tick"`
	Utilization struct {
		RibosomesPct float64 `json:"ribosomes_pct"`
		EnergyPct    float64 `json:"energy_pct"`
		MemoryPct    float64 `json:"memory_pct"`
	} `json:"utilization"`
}

func doJSON(t *testing.T, method, path string, body any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, baseURL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, data, err)
		}
	}
	return resp.StatusCode
}

func createVM(t *testing.T, id string, ribosomes int64, energy float64, memory int64) VMResponse {
	t.Helper()

	var vm VMResponse
	code := doJSON(t, http.MethodPost, "/api/v1/vms", map[string]any{
		"id": id,
		"demand": map[string]any{
			"ribosomes":      ribosomes,
			"energy_percent": energy,
			"memory_units":   memory,
		},
	}, &vm)
	if code != http.StatusCreated {
		t.Fatalf("create %s: expected 201, got %d", id, code)
	}
	return vm
}

func destroyVM(t *testing.T, id string) {
	t.Helper()
	if code := doJSON(t, http.MethodDelete, "/api/v1/vms/"+id, nil, nil); code != http.StatusNoContent {
		t.Fatalf("destroy %s: expected 204, got %d", id, code)
	}
}

// =============================================================================
// Tests
// =============================================================================

func TestVMLifecycle(t *testing.T) {
	vm := createVM(t, "e2e-life", 50, 5, 64)
	defer destroyVM(t, vm.ID)

	if vm.State != string(domain.VMStateCreated) {
		t.Fatalf("expected CREATED, got %q", vm.State)
	}

	var after VMResponse
	if code := doJSON(t, http.MethodPost, "/api/v1/vms/"+vm.ID+"/start", nil, &after); code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d", code)
	}
	if after.State != string(domain.VMStateRunning) {
		t.Fatalf("expected RUNNING, got %q", after.State)
	}

	if code := doJSON(t, http.MethodPost, "/api/v1/vms/"+vm.ID+"/pause", nil, &after); code != http.StatusOK {
		t.Fatalf("pause: expected 200, got %d", code)
	}
	if after.State != string(domain.VMStatePaused) {
		t.Fatalf("expected PAUSED, got %q", after.State)
	}

	if code := doJSON(t, http.MethodPost, "/api/v1/vms/"+vm.ID+"/resume", nil, &after); code != http.StatusOK {
		t.Fatalf("resume: expected 200, got %d", code)
	}
	if after.State != string(domain.VMStateRunning) {
		t.Fatalf("expected RUNNING, got %q", after.State)
	}
}

func TestDestroyReleasesResources(t *testing.T) {
	var before StatusResponse
	if code := doJSON(t, http.MethodGet, "/api/v1/status", nil, &before); code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", code)
	}

	vm := createVM(t, "e2e-release", 100, 10, 128)

	var during StatusResponse
	doJSON(t, http.MethodGet, "/api/v1/status", nil, &during)
	if during.Utilization.RibosomesPct <= before.Utilization.RibosomesPct {
		t.Error("expected ribosome utilization to increase after create")
	}

	destroyVM(t, vm.ID)

	var after StatusResponse
	doJSON(t, http.MethodGet, "/api/v1/status", nil, &after)
	if after.Utilization.RibosomesPct != before.Utilization.RibosomesPct {
		t.Errorf("expected utilization restored, before=%v after=%v",
			before.Utilization.RibosomesPct, after.Utilization.RibosomesPct)
	}
}

func TestInvalidTransitionRejected(t *testing.T) {
	vm := createVM(t, "e2e-invalid", 10, 2, 16)
	defer destroyVM(t, vm.ID)

	if code := doJSON(t, http.MethodPost, "/api/v1/vms/"+vm.ID+"/resume", nil, nil); code != http.StatusConflict {
		t.Fatalf("resume on created: expected 409, got %d", code)
	}
}

func TestTickAdvances(t *testing.T) {
	vm := createVM(t, "e2e-tick", 10, 2, 16)
	defer destroyVM(t, vm.ID)

	if code := doJSON(t, http.MethodPost, "/api/v1/vms/"+vm.ID+"/start", nil, nil); code != http.StatusOK {
		t.Fatal("start failed")
	}

	var first StatusResponse
	doJSON(t, http.MethodGet, "/api/v1/status", nil, &first)

	time.Sleep(500 * time.Millisecond)

	var second StatusResponse
	doJSON(t, http.MethodGet, "/api/v1/status", nil, &second)
	if second.Tick <= first.Tick {
		t.Errorf("expected tick counter to advance, first=%d second=%d", first.Tick, second.Tick)
	}
}
