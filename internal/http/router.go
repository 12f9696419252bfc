package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler builds the full routing tree for the agent API and the event
// stream endpoint. The websocket route skips the timeout and the logging
// wrapper: both get in the way of a hijacked long-lived connection.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RecoverJSON)

	r.Get("/ws", a.hub.ServeHTTP)

	r.Group(func(g chi.Router) {
		g.Use(middleware.Timeout(20 * time.Second))
		g.Use(RequestLogger(a))

		g.Get("/healthz", a.health)
		g.Route("/api", func(api chi.Router) {
			api.Get("/notifications", a.listNotifications)
			api.Post("/notifications/pause", a.pauseNotifications)
			api.Post("/notifications/{id}/ack", a.ackNotification)
			api.Post("/notifications/{id}/snooze", a.snoozeNotification)
			api.Delete("/notifications/{id}", a.removeNotification)

			api.Post("/scanner/start", a.startScan)
			api.Post("/scanner/stop", a.stopScan)
			api.Get("/scanner/status", a.scanStatus)
			api.Get("/scanner/results", a.scanResults)
			api.Post("/scan/individual", a.refreshDevice)
			api.Post("/scanner/diagnostics/ping", a.pingDiagnostic)

			api.Post("/monitor/start", a.startMonitor)
			api.Post("/monitor/stop", a.stopMonitor)
			api.Get("/monitor", a.monitorStatus)

			api.Get("/inventory", a.listInventory)
			api.Get("/preferences/{key}", a.getPreference)
			api.Put("/preferences/{key}", a.setPreference)

			api.Get("/agent/metrics", a.agentMetrics)
		})
	})

	return r
}
