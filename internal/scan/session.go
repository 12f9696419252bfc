package scan

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/atena-labs/sentinel-console/agent/internal/model"
)

var ErrEmptySubnet = errors.New("subnet is empty")

// Engine is the slice of the backend the session drives. The actual
// port/OS/SNMP fingerprinting runs server-side; this is only its protocol.
type Engine interface {
	StartScan(ctx context.Context, subnet string) error
	StopScan(ctx context.Context) error
	ScanStatus(ctx context.Context) (model.ScanStatus, error)
	ScanResults(ctx context.Context) ([]model.Device, error)
	RefreshDevice(ctx context.Context, ip string) (*model.Device, error)
	PingDiagnostic(ctx context.Context, ip string) (model.PingResult, error)
}

// Inventory persists the last known device list across agent restarts.
type Inventory interface {
	UpsertDevices(ctx context.Context, devices []model.Device) error
}

// Session owns the lifecycle of the in-flight scan: start/stop, the two
// poll loops and single-device re-probes. Status polls at a fast cadence
// (progress bar, console); results poll slower since the payload is heavy.
// The loops stay independent and are never collapsed into one.
type Session struct {
	engine    Engine
	inventory Inventory
	logger    *slog.Logger

	statusInterval  time.Duration
	resultsInterval time.Duration
	refreshCh       chan struct{}

	mu      sync.RWMutex
	status  model.ScanStatus
	devices []model.Device
}

func NewSession(engine Engine, inventory Inventory, statusInterval, resultsInterval time.Duration, logger *slog.Logger) *Session {
	if statusInterval <= 0 {
		statusInterval = time.Second
	}
	if resultsInterval <= 0 {
		resultsInterval = 2 * time.Second
	}
	return &Session{
		engine:          engine,
		inventory:       inventory,
		logger:          logger,
		statusInterval:  statusInterval,
		resultsInterval: resultsInterval,
		refreshCh:       make(chan struct{}, 1),
	}
}

// Run drives both poll loops until the context is cancelled.
func (s *Session) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.statusLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.resultsLoop(ctx)
	}()
	wg.Wait()
}

// StartScan issues a start request and optimistically seeds local status to
// a pending running state with an initial log line. The next status poll
// overwrites it with ground truth.
func (s *Session) StartScan(ctx context.Context, subnet string) error {
	if subnet == "" {
		return ErrEmptySubnet
	}
	if err := s.engine.StartScan(ctx, subnet); err != nil {
		return err
	}
	s.mu.Lock()
	s.status = model.ScanStatus{
		Running: true,
		Pending: true,
		ETR:     "Iniciando...",
		Logs: []model.ScanLogEntry{{
			Msg:  "Iniciando Sentinel Engine...",
			Time: time.Now().Format("15:04:05"),
		}},
	}
	s.mu.Unlock()
	s.TriggerResultsRefresh()
	return nil
}

// StopScan issues a stop request. No optimistic update: stopping is rare
// and the 1s status cadence reflects it quickly enough.
func (s *Session) StopScan(ctx context.Context) error {
	return s.engine.StopScan(ctx)
}

// RefreshDevice re-probes a single IP, patches that device in place in the
// local list and marks the results list stale for re-fetch.
func (s *Session) RefreshDevice(ctx context.Context, ip string) (*model.Device, error) {
	device, err := s.engine.RefreshDevice(ctx, ip)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	patched := false
	for i := range s.devices {
		if s.devices[i].IP == device.IP {
			s.devices[i] = *device
			patched = true
			break
		}
	}
	if !patched {
		s.devices = append(s.devices, *device)
	}
	s.mu.Unlock()

	if s.inventory != nil {
		if err := s.inventory.UpsertDevices(ctx, []model.Device{*device}); err != nil {
			s.logger.Warn("inventory upsert failed", "ip", device.IP, "err", err)
		}
	}
	s.TriggerResultsRefresh()
	return device, nil
}

// Ping runs a one-shot diagnostic whose output is displayed verbatim.
func (s *Session) Ping(ctx context.Context, ip string) (model.PingResult, error) {
	return s.engine.PingDiagnostic(ctx, ip)
}

// Status returns the current status read model.
func (s *Session) Status() model.ScanStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := s.status
	status.Logs = append([]model.ScanLogEntry(nil), s.status.Logs...)
	return status
}

// Devices returns a copy of the current device list.
func (s *Session) Devices() []model.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Device, len(s.devices))
	copy(out, s.devices)
	return out
}

// TriggerResultsRefresh requests one out-of-cadence results fetch. Multiple
// triggers before the fetch coalesce into one.
func (s *Session) TriggerResultsRefresh() {
	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
}

func (s *Session) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(s.statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollStatus(ctx)
		}
	}
}

func (s *Session) resultsLoop(ctx context.Context) {
	for {
		timer := time.NewTimer(s.resultsInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.refreshCh:
			timer.Stop()
		case <-timer.C:
		}
		s.pollResults(ctx)
	}
}

// pollStatus re-fetches scan status unconditionally. On the transition from
// running to finished the device list is invalidated once, independent of
// the results cadence.
func (s *Session) pollStatus(ctx context.Context) {
	status, err := s.engine.ScanStatus(ctx)
	if err != nil {
		s.logger.Debug("status poll failed", "err", err)
		return
	}
	s.mu.Lock()
	prev := s.status
	s.status = status
	s.mu.Unlock()

	if prev.Running && status.Finished() {
		s.TriggerResultsRefresh()
	}
}

func (s *Session) pollResults(ctx context.Context) {
	devices, err := s.engine.ScanResults(ctx)
	if err != nil {
		s.logger.Debug("results poll failed", "err", err)
		return
	}
	s.mu.Lock()
	s.devices = devices
	s.mu.Unlock()

	if s.inventory != nil && len(devices) > 0 {
		if err := s.inventory.UpsertDevices(ctx, devices); err != nil {
			s.logger.Warn("inventory upsert failed", "devices", len(devices), "err", err)
		}
	}
}
