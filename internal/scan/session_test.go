package scan

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/atena-labs/sentinel-console/agent/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeEngine struct {
	mu           sync.Mutex
	status       model.ScanStatus
	statusErr    error
	results      []model.Device
	resultsCalls int
	started      []string
	startErr     error
	stopCalls    int
	refreshed    []string
	device       *model.Device
	refreshErr   error
	pingResult   model.PingResult
}

func (f *fakeEngine) StartScan(_ context.Context, subnet string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, subnet)
	return f.startErr
}

func (f *fakeEngine) StopScan(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return nil
}

func (f *fakeEngine) ScanStatus(context.Context) (model.ScanStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.statusErr
}

func (f *fakeEngine) ScanResults(context.Context) ([]model.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resultsCalls++
	return f.results, nil
}

func (f *fakeEngine) RefreshDevice(_ context.Context, ip string) (*model.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, ip)
	return f.device, f.refreshErr
}

func (f *fakeEngine) PingDiagnostic(context.Context, string) (model.PingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingResult, nil
}

func (f *fakeEngine) setStatus(status model.ScanStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

func newTestSession(engine *fakeEngine) *Session {
	return NewSession(engine, nil, time.Second, 2*time.Second, testLogger())
}

func drainTriggers(s *Session) int {
	count := 0
	for {
		select {
		case <-s.refreshCh:
			count++
		default:
			return count
		}
	}
}

func TestStartScanSeedsPendingStatus(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestSession(engine)

	if err := s.StartScan(context.Background(), "192.168.1.0/24"); err != nil {
		t.Fatalf("start scan: %v", err)
	}

	status := s.Status()
	if !status.Running || !status.Pending {
		t.Fatalf("expected optimistic pending running status, got %+v", status)
	}
	if len(status.Logs) != 1 {
		t.Fatalf("expected seeded log line, got %d", len(status.Logs))
	}
	if len(engine.started) != 1 || engine.started[0] != "192.168.1.0/24" {
		t.Fatalf("expected engine start with subnet, got %v", engine.started)
	}
}

func TestStartScanRejectsEmptySubnet(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestSession(engine)

	if err := s.StartScan(context.Background(), ""); !errors.Is(err, ErrEmptySubnet) {
		t.Fatalf("expected ErrEmptySubnet, got %v", err)
	}
	if len(engine.started) != 0 {
		t.Fatalf("empty subnet must not reach the engine")
	}
}

func TestStartScanSurfacesEngineFailure(t *testing.T) {
	engine := &fakeEngine{startErr: errors.New("engine busy")}
	s := newTestSession(engine)

	if err := s.StartScan(context.Background(), "10.0.0.0/24"); err == nil {
		t.Fatalf("expected start failure to surface")
	}
	if s.Status().Running {
		t.Fatalf("failed start must not seed optimistic status")
	}
}

func TestStatusPollOverwritesPendingState(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestSession(engine)

	if err := s.StartScan(context.Background(), "10.0.0.0/24"); err != nil {
		t.Fatalf("start scan: %v", err)
	}
	drainTriggers(s)

	engine.setStatus(model.ScanStatus{Running: true, Progress: 12, ETR: "40s"})
	s.pollStatus(context.Background())

	status := s.Status()
	if status.Pending {
		t.Fatalf("poll must replace pending state with confirmed state")
	}
	if status.Progress != 12 || status.ETR != "40s" {
		t.Fatalf("expected ground truth status, got %+v", status)
	}
}

func TestCompletionEdgeTriggersExactlyOneRefetch(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestSession(engine)

	engine.setStatus(model.ScanStatus{Running: true, ETR: "5m"})
	s.pollStatus(context.Background())
	if n := drainTriggers(s); n != 0 {
		t.Fatalf("running status must not trigger refetch, got %d", n)
	}

	engine.setStatus(model.ScanStatus{Running: false, ETR: model.ETRFinished})
	s.pollStatus(context.Background())
	if n := drainTriggers(s); n != 1 {
		t.Fatalf("expected exactly one refetch on completion edge, got %d", n)
	}

	// Steady finished state: no further triggers.
	s.pollStatus(context.Background())
	if n := drainTriggers(s); n != 0 {
		t.Fatalf("expected no refetch without a transition, got %d", n)
	}
}

func TestIdleStopDoesNotTriggerRefetch(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestSession(engine)

	engine.setStatus(model.ScanStatus{Running: false, ETR: "Portal Sentinel em repouso..."})
	s.pollStatus(context.Background())
	if n := drainTriggers(s); n != 0 {
		t.Fatalf("idle status must not trigger refetch, got %d", n)
	}
}

func TestPollResultsReplacesWholeList(t *testing.T) {
	engine := &fakeEngine{results: []model.Device{
		{IP: "10.0.0.1", Hostname: "alpha"},
		{IP: "10.0.0.2", Hostname: "beta"},
	}}
	s := newTestSession(engine)

	s.pollResults(context.Background())
	if len(s.Devices()) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(s.Devices()))
	}

	engine.mu.Lock()
	engine.results = []model.Device{{IP: "10.0.0.3", Hostname: "gamma"}}
	engine.mu.Unlock()
	s.pollResults(context.Background())

	devices := s.Devices()
	if len(devices) != 1 || devices[0].IP != "10.0.0.3" {
		t.Fatalf("expected wholesale replacement, got %+v", devices)
	}
}

func TestRefreshDevicePatchesInPlace(t *testing.T) {
	engine := &fakeEngine{
		results: []model.Device{
			{IP: "10.0.0.1", Hostname: "alpha"},
			{IP: "10.0.0.2", Hostname: "beta"},
		},
		device: &model.Device{IP: "10.0.0.2", Hostname: "beta-updated", StatusCode: model.DeviceOnline},
	}
	s := newTestSession(engine)
	s.pollResults(context.Background())
	drainTriggers(s)

	device, err := s.RefreshDevice(context.Background(), "10.0.0.2")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if device.Hostname != "beta-updated" {
		t.Fatalf("expected fresh device record, got %+v", device)
	}

	devices := s.Devices()
	if len(devices) != 2 {
		t.Fatalf("refresh must not change list size, got %d", len(devices))
	}
	if devices[0].Hostname != "alpha" {
		t.Fatalf("other rows must stay untouched, got %+v", devices[0])
	}
	if devices[1].Hostname != "beta-updated" {
		t.Fatalf("expected in-place patch, got %+v", devices[1])
	}
	if n := drainTriggers(s); n != 1 {
		t.Fatalf("refresh must mark results stale, got %d triggers", n)
	}
}

func TestLoopsRunOnIndependentCadences(t *testing.T) {
	engine := &fakeEngine{}
	s := NewSession(engine, nil, 10*time.Millisecond, 25*time.Millisecond, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	engine.mu.Lock()
	resultsCalls := engine.resultsCalls
	engine.mu.Unlock()
	// ~12 status ticks vs ~4 results ticks in the window; the exact counts
	// depend on scheduling, only the decoupling matters.
	if resultsCalls < 2 {
		t.Fatalf("expected results loop to run, got %d calls", resultsCalls)
	}
}
