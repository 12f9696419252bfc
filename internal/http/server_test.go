package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/atena-labs/sentinel-console/agent/internal/model"
	"github.com/atena-labs/sentinel-console/agent/internal/notify"
	"github.com/atena-labs/sentinel-console/agent/internal/scan"
	"github.com/atena-labs/sentinel-console/agent/internal/storage"
	"github.com/atena-labs/sentinel-console/agent/internal/ws"
)

type stubEngine struct {
	status  model.ScanStatus
	results []model.Device
	device  *model.Device
	ping    model.PingResult
	started []string
}

func (s *stubEngine) StartScan(_ context.Context, subnet string) error {
	s.started = append(s.started, subnet)
	return nil
}
func (s *stubEngine) StopScan(context.Context) error { return nil }
func (s *stubEngine) ScanStatus(context.Context) (model.ScanStatus, error) {
	return s.status, nil
}
func (s *stubEngine) ScanResults(context.Context) ([]model.Device, error) {
	return s.results, nil
}
func (s *stubEngine) RefreshDevice(context.Context, string) (*model.Device, error) {
	return s.device, nil
}
func (s *stubEngine) PingDiagnostic(context.Context, string) (model.PingResult, error) {
	return s.ping, nil
}

type noopAcker struct{}

func (noopAcker) AcknowledgeAlert(context.Context, int64) error { return nil }

func newTestAPI(t *testing.T, engine *stubEngine) *API {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := storage.New(context.Background(), filepath.Join(t.TempDir(), "api.db"), logger)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	queue := notify.NewQueue(noopAcker{}, repo, logger)
	session := scan.NewSession(engine, repo, time.Second, 2*time.Second, logger)
	monitor := scan.NewMonitor(session, logger)
	t.Cleanup(monitor.Stop)
	hub := ws.NewHub(logger)
	return New(session, monitor, queue, repo, hub, logger)
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	api := newTestAPI(t, &stubEngine{})
	rec := doRequest(t, api.Handler(), http.MethodGet, "/healthz", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestStartScanValidation(t *testing.T) {
	engine := &stubEngine{}
	api := newTestAPI(t, engine)
	handler := api.Handler()

	rec := doRequest(t, handler, http.MethodPost, "/api/scanner/start", `{"subnet":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty subnet should 400, got %d", rec.Code)
	}
	if len(engine.started) != 0 {
		t.Fatalf("rejected request must not reach the engine")
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/scanner/start", `{"subnet":"10.0.0.0/24"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("valid subnet should 202, got %d", rec.Code)
	}
	if len(engine.started) != 1 {
		t.Fatalf("expected engine start, got %v", engine.started)
	}
}

func TestScanStatusReflectsOptimisticSeed(t *testing.T) {
	api := newTestAPI(t, &stubEngine{})
	handler := api.Handler()

	doRequest(t, handler, http.MethodPost, "/api/scanner/start", `{"subnet":"10.0.0.0/24"}`)
	rec := doRequest(t, handler, http.MethodGet, "/api/scanner/status", "")

	var status model.ScanStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Running || !status.Pending {
		t.Fatalf("expected optimistic pending status, got %+v", status)
	}
}

func TestRefreshDeviceEndpoint(t *testing.T) {
	engine := &stubEngine{device: &model.Device{IP: "10.0.0.7", Hostname: "core-switch"}}
	api := newTestAPI(t, engine)
	handler := api.Handler()

	rec := doRequest(t, handler, http.MethodPost, "/api/scan/individual", `{"ip":"10.0.0.7"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Success bool         `json:"success"`
		Data    model.Device `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !payload.Success || payload.Data.Hostname != "core-switch" {
		t.Fatalf("unexpected payload %+v", payload)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/scan/individual", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing ip should 400, got %d", rec.Code)
	}
}

func TestMonitorStartValidation(t *testing.T) {
	api := newTestAPI(t, &stubEngine{device: &model.Device{IP: "10.0.0.7"}})
	handler := api.Handler()

	rec := doRequest(t, handler, http.MethodPost, "/api/monitor/start", `{"ip":"10.0.0.7","s":3}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("sub-floor interval should 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "interval_too_short") {
		t.Fatalf("expected interval_too_short code, got %s", rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/monitor/start", `{"ip":"10.0.0.7","s":30}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("valid interval should 202, got %d", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/monitor", "")
	var status struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Active {
		t.Fatalf("expected active monitor")
	}

	doRequest(t, handler, http.MethodPost, "/api/monitor/stop", "")
	rec = doRequest(t, handler, http.MethodGet, "/api/monitor", "")
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Active {
		t.Fatalf("expected stopped monitor")
	}
}

func TestNotificationLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t, &stubEngine{})
	handler := api.Handler()

	api.queue.Upsert(model.Toast{ID: "sys-5", Title: "Alerta", Type: model.ToastCritical})

	rec := doRequest(t, handler, http.MethodGet, "/api/notifications", "")
	var listing struct {
		Items []model.Toast `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&listing); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listing.Items) != 1 || listing.Items[0].ID != "sys-5" {
		t.Fatalf("unexpected listing %+v", listing.Items)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/notifications/sys-5/snooze", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("snooze should 202, got %d", rec.Code)
	}
	if len(api.queue.Snapshot()) != 0 {
		t.Fatalf("snoozed toast must leave the queue")
	}
}

func TestPreferencesEndpoints(t *testing.T) {
	api := newTestAPI(t, &stubEngine{})
	handler := api.Handler()

	rec := doRequest(t, handler, http.MethodGet, "/api/preferences/theme", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing key should 404, got %d", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodPut, "/api/preferences/theme", `{"value":"dark"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("put should 202, got %d", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/preferences/theme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get should 200, got %d", rec.Code)
	}
	var payload struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Value != "dark" {
		t.Fatalf("expected stored value, got %q", payload.Value)
	}
}

func TestPingEndpointPassesOutputVerbatim(t *testing.T) {
	engine := &stubEngine{ping: model.PingResult{
		Success: true,
		Output:  "PING 10.0.0.1 (10.0.0.1): 56 data bytes\n64 bytes from 10.0.0.1: icmp_seq=0 ttl=64 time=0.3 ms",
	}}
	api := newTestAPI(t, engine)

	rec := doRequest(t, api.Handler(), http.MethodPost, "/api/scanner/diagnostics/ping", `{"ip":"10.0.0.1"}`)
	var result model.PingResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Success || result.Output != engine.ping.Output {
		t.Fatalf("ping output must pass through untouched, got %+v", result)
	}
}
