package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atena-labs/sentinel-console/agent/internal/metrics"
	"github.com/atena-labs/sentinel-console/agent/internal/model"
	"github.com/atena-labs/sentinel-console/agent/internal/notify"
	"github.com/atena-labs/sentinel-console/agent/internal/scan"
	"github.com/atena-labs/sentinel-console/agent/internal/storage"
	"github.com/atena-labs/sentinel-console/agent/internal/ws"
)

type API struct {
	session *scan.Session
	monitor *scan.Monitor
	queue   *notify.Queue
	repo    *storage.Repository
	hub     *ws.Hub
	logger  *slog.Logger
}

func New(session *scan.Session, monitor *scan.Monitor, queue *notify.Queue, repo *storage.Repository, hub *ws.Hub, logger *slog.Logger) *API {
	return &API{session: session, monitor: monitor, queue: queue, repo: repo, hub: hub, logger: logger}
}

// Logger satisfies the request-logging middleware.
func (a *API) Logger() *slog.Logger {
	return a.logger
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"ws_clients": a.hub.ClientCount(),
	})
}

func (a *API) agentMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, metrics.Collect())
}

func (a *API) listNotifications(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": a.queue.Snapshot()})
}

func (a *API) ackNotification(w http.ResponseWriter, r *http.Request) {
	a.queue.Acknowledge(r.Context(), chi.URLParam(r, "id"))
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (a *API) snoozeNotification(w http.ResponseWriter, r *http.Request) {
	if err := a.queue.Snooze(r.Context(), chi.URLParam(r, "id")); err != nil {
		// The toast is already gone from the queue; only the persisted
		// window failed. Surface it so the UI can warn.
		writeError(w, http.StatusInternalServerError, "snooze_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (a *API) removeNotification(w http.ResponseWriter, r *http.Request) {
	a.queue.Remove(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) pauseNotifications(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Paused bool `json:"paused"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	a.queue.SetPaused(payload.Paused)
	writeJSON(w, http.StatusOK, map[string]any{"paused": payload.Paused})
}

func (a *API) startScan(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Subnet string `json:"subnet"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	if err := a.session.StartScan(r.Context(), payload.Subnet); err != nil {
		if errors.Is(err, scan.ErrEmptySubnet) {
			writeError(w, http.StatusBadRequest, "empty_subnet", "Subnet must not be empty")
			return
		}
		writeError(w, http.StatusBadGateway, "start_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (a *API) stopScan(w http.ResponseWriter, r *http.Request) {
	if err := a.session.StopScan(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, "stop_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (a *API) scanStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.session.Status())
}

func (a *API) scanResults(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.session.Devices())
}

func (a *API) refreshDevice(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		IP string `json:"ip"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.IP == "" {
		writeError(w, http.StatusBadRequest, "invalid_payload", "IP missing")
		return
	}
	device, err := a.session.RefreshDevice(r.Context(), payload.IP)
	if err != nil {
		writeError(w, http.StatusBadGateway, "refresh_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": device})
}

func (a *API) pingDiagnostic(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		IP string `json:"ip"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.IP == "" {
		writeError(w, http.StatusBadRequest, "invalid_payload", "IP missing")
		return
	}
	result, err := a.session.Ping(r.Context(), payload.IP)
	if err != nil {
		writeError(w, http.StatusBadGateway, "ping_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) startMonitor(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		IP string `json:"ip"`
		model.MonitorSpec
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.IP == "" {
		writeError(w, http.StatusBadRequest, "invalid_payload", "IP missing")
		return
	}
	// The countdown outlives the request, so it is tied to the process
	// context, not to r.Context().
	if err := a.monitor.Start(context.Background(), payload.IP, payload.MonitorSpec); err != nil {
		if errors.Is(err, scan.ErrIntervalTooShort) {
			writeError(w, http.StatusBadRequest, "interval_too_short", "Minimum monitoring interval is 5 seconds")
			return
		}
		writeError(w, http.StatusInternalServerError, "monitor_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (a *API) stopMonitor(w http.ResponseWriter, _ *http.Request) {
	a.monitor.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) monitorStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"active":        a.monitor.Active(),
		"time_left_sec": int(a.monitor.TimeLeft().Seconds()),
	})
}

func (a *API) getPreference(w http.ResponseWriter, r *http.Request) {
	value, err := a.repo.GetPreference(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "Preference not set")
			return
		}
		writeError(w, http.StatusInternalServerError, "get_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"value": value})
}

func (a *API) setPreference(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	if err := a.repo.SetPreference(r.Context(), chi.URLParam(r, "key"), payload.Value); err != nil {
		writeError(w, http.StatusInternalServerError, "set_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (a *API) listInventory(w http.ResponseWriter, r *http.Request) {
	devices, err := a.repo.ListDevices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": devices, "count": len(devices)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

// RunServer starts and gracefully stops the HTTP server with context
// cancellation.
func RunServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", "err", err)
			return err
		}
		return nil
	}
}
