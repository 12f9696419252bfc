package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/atena-labs/sentinel-console/agent/internal/model"
)

// Upstream is the slice of the backend the aggregator polls each cycle.
type Upstream interface {
	IntelligenceAlerts(ctx context.Context) ([]model.IntelAlert, error)
	ActiveAlerts(ctx context.Context) ([]model.SystemAlert, error)
	TicketStats(ctx context.Context) (model.TicketStats, error)
	ScanStatus(ctx context.Context) (model.ScanStatus, error)
}

const (
	defaultCycleInterval  = 2 * time.Second
	defaultPausedInterval = 500 * time.Millisecond

	// Visual countdown for system alert toasts. Removal is governed by the
	// upstream active list, not this value.
	systemAlertDuration = time.Minute
)

// Aggregator reconciles the toast queue against four upstream sources. Each
// cycle runs the sources sequentially and only schedules the next cycle
// after the current one completes, so responses from different cycles never
// interleave.
type Aggregator struct {
	queue    *Queue
	upstream Upstream
	store    SnoozeStore
	logger   *slog.Logger

	cycleInterval  time.Duration
	pausedInterval time.Duration

	baseline *model.TicketStats
	now      func() time.Time
}

func NewAggregator(queue *Queue, upstream Upstream, store SnoozeStore, cycleInterval time.Duration, logger *slog.Logger) *Aggregator {
	if cycleInterval <= 0 {
		cycleInterval = defaultCycleInterval
	}
	return &Aggregator{
		queue:          queue,
		upstream:       upstream,
		store:          store,
		logger:         logger,
		cycleInterval:  cycleInterval,
		pausedInterval: defaultPausedInterval,
		now:            time.Now,
	}
}

// Run drives the cycle loop until the context is cancelled. While the queue
// is paused (user interacting with the active toast) no upstream fetch
// happens and the loop just rechecks quickly.
func (a *Aggregator) Run(ctx context.Context) {
	for {
		interval := a.cycleInterval
		if a.queue.Paused() {
			interval = a.pausedInterval
		} else {
			a.Cycle(ctx)
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Cycle runs one reconciliation pass: intelligence, system alerts, ticket
// deltas, scanner status, strictly in that order. Every source failure is
// swallowed and logged; the next tick self-heals.
func (a *Aggregator) Cycle(ctx context.Context) {
	a.checkIntelligence(ctx)
	a.checkSystemAlerts(ctx)
	a.checkTicketDelta(ctx)
	a.checkScanner(ctx)
}

func (a *Aggregator) checkIntelligence(ctx context.Context) {
	alerts, err := a.upstream.IntelligenceAlerts(ctx)
	if err != nil {
		a.logger.Debug("intelligence fetch failed", "err", err)
		return
	}
	if len(alerts) == 0 {
		return
	}
	latest := alerts[0]
	if !latest.Critical() {
		return
	}
	title := latest.Title
	if title == "" {
		title = "Alerta Crítico (AI)"
	}
	message := latest.Message
	if message == "" {
		message = latest.Description
	}
	if message == "" {
		message = "Detectada anomalia severa no sistema."
	}
	a.queue.Upsert(model.Toast{
		ID:      model.IntelAlertPrefix + latest.ID,
		Title:   title,
		Message: message,
		Type:    model.ToastCritical,
	})
}

func (a *Aggregator) checkSystemAlerts(ctx context.Context) {
	alerts, err := a.upstream.ActiveAlerts(ctx)
	if err != nil {
		a.logger.Warn("active alerts fetch failed", "err", err)
		return
	}

	active := make(map[int64]struct{}, len(alerts))
	for _, alert := range alerts {
		active[alert.ID] = struct{}{}
		if alert.Acknowledged {
			continue
		}
		toastID := model.SystemAlertPrefix + strconv.FormatInt(alert.ID, 10)
		if a.snoozed(ctx, toastID) {
			continue
		}
		a.queue.Upsert(model.Toast{
			ID:       toastID,
			Title:    alert.Title,
			Message:  alert.Message,
			Type:     model.ToastTypeForSeverity(alert.Severity),
			Duration: systemAlertDuration,
		})
	}

	// Server-side resolution: drop any sys- toast no longer in the active
	// list. Only runs on a successful fetch so a flaky upstream cannot wipe
	// the queue.
	a.queue.RemoveWhere(func(toast model.Toast) bool {
		if !strings.HasPrefix(toast.ID, model.SystemAlertPrefix) {
			return false
		}
		alertID, err := strconv.ParseInt(strings.TrimPrefix(toast.ID, model.SystemAlertPrefix), 10, 64)
		if err != nil {
			return false
		}
		_, stillActive := active[alertID]
		return !stillActive
	})
}

func (a *Aggregator) checkTicketDelta(ctx context.Context) {
	stats, err := a.upstream.TicketStats(ctx)
	if err != nil {
		a.logger.Debug("ticket stats fetch failed", "err", err)
		return
	}
	baseline := a.baseline
	a.baseline = &stats
	if baseline == nil {
		// First cycle establishes the baseline silently.
		return
	}
	if stats.New > baseline.New {
		diff := stats.New - baseline.New
		a.queue.Upsert(model.Toast{
			Title:   "Novo Chamado",
			Message: fmt.Sprintf("%d novo(s) chamado(s) aberto(s) recentemente.", diff),
			Type:    model.ToastInfo,
		})
	}
	if stats.Solved > baseline.Solved {
		a.queue.Upsert(model.Toast{
			Title:   "Chamado Resolvido",
			Message: "Um incidente foi marcado como solucionado.",
			Type:    model.ToastSuccess,
		})
	}
}

func (a *Aggregator) checkScanner(ctx context.Context) {
	status, err := a.upstream.ScanStatus(ctx)
	if err != nil {
		a.logger.Debug("scanner status fetch failed", "err", err)
		return
	}
	if !status.Running {
		a.queue.Remove(model.ScannerToastID)
		return
	}
	a.queue.Upsert(model.Toast{
		ID:       model.ScannerToastID,
		Title:    "Escaneamento em Progresso",
		Message:  fmt.Sprintf("Analisando rede... %d%%", status.Progress),
		Type:     model.ToastProcess,
		Progress: status.Progress,
	})
}

func (a *Aggregator) snoozed(ctx context.Context, toastID string) bool {
	if a.store == nil {
		return false
	}
	snoozed, err := a.store.IsSnoozed(ctx, toastID, a.now())
	if err != nil {
		a.logger.Warn("snooze lookup failed", "id", toastID, "err", err)
		return false
	}
	return snoozed
}
