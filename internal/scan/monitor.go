package scan

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/atena-labs/sentinel-console/agent/internal/model"
)

var ErrIntervalTooShort = errors.New("monitor interval below 5 second minimum")

// Refresher re-probes one device. Satisfied by *Session.
type Refresher interface {
	RefreshDevice(ctx context.Context, ip string) (*model.Device, error)
}

// Monitor is the client-side recurring re-probe timer scoped to one open
// device detail view. No server-side cron is involved: it is a local
// countdown that fires RefreshDevice and rewinds.
type Monitor struct {
	refresher Refresher
	logger    *slog.Logger

	mu        sync.Mutex
	ip        string
	spec      model.MonitorSpec
	remaining time.Duration
	cancel    context.CancelFunc
}

func NewMonitor(refresher Refresher, logger *slog.Logger) *Monitor {
	return &Monitor{refresher: refresher, logger: logger}
}

// Start begins monitoring the given IP. A spec below the 5-second floor is
// rejected and no timer starts. Starting while active retargets the timer.
func (m *Monitor) Start(ctx context.Context, ip string, spec model.MonitorSpec) error {
	if spec.Interval() < model.MinMonitorInterval {
		return ErrIntervalTooShort
	}

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.ip = ip
	m.spec = spec
	m.remaining = spec.Interval()
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop cancels the timer. Called explicitly or when the detail view closes.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.mu.Unlock()
}

// Active reports whether a countdown is running.
func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// TimeLeft returns the remaining countdown.
func (m *Monitor) TimeLeft() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remaining
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick advances the countdown by one second. On reaching zero it fires the
// re-probe and rewinds to the configured interval, floored at 5 seconds.
func (m *Monitor) tick(ctx context.Context) {
	m.mu.Lock()
	m.remaining -= time.Second
	fire := m.remaining <= 0
	ip := m.ip
	if fire {
		interval := m.spec.Interval()
		if interval < model.MinMonitorInterval {
			interval = model.MinMonitorInterval
		}
		m.remaining = interval
	}
	m.mu.Unlock()

	if !fire {
		return
	}
	if _, err := m.refresher.RefreshDevice(ctx, ip); err != nil {
		m.logger.Warn("monitor re-probe failed", "ip", ip, "err", err)
	}
}
