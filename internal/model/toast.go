package model

import (
	"strings"
	"time"
)

type ToastType string

const (
	ToastInfo     ToastType = "info"
	ToastSuccess  ToastType = "success"
	ToastWarning  ToastType = "warning"
	ToastCritical ToastType = "critical"
	ToastProcess  ToastType = "process"
)

const (
	// SystemAlertPrefix marks toasts whose lifecycle is governed by the
	// upstream active-alerts list, not by a local expiry timer.
	SystemAlertPrefix = "sys-"
	// IntelAlertPrefix marks AI anomaly toasts, same persistence class.
	IntelAlertPrefix = "ai-"
	// ScannerToastID is the singleton toast mirroring a scan in progress.
	ScannerToastID = "scanner-active"
)

// Toast is a single queued notification entry.
type Toast struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Message  string        `json:"message"`
	Type     ToastType     `json:"type"`
	Duration time.Duration `json:"duration_ms,omitempty"`
	// StartTime is stamped on first insertion and never reset by merges.
	StartTime time.Time `json:"start_time"`
	// Progress is only meaningful for ToastProcess.
	Progress int `json:"progress,omitempty"`
}

// IsPersistentID reports whether the id carries a persistent-class prefix.
func IsPersistentID(id string) bool {
	return strings.HasPrefix(id, SystemAlertPrefix) || strings.HasPrefix(id, IntelAlertPrefix)
}

// DefaultDuration returns the display duration applied when the caller did
// not specify one. Process toasts never expire on their own.
func DefaultDuration(t ToastType) time.Duration {
	switch t {
	case ToastCritical:
		return 15 * time.Second
	case ToastWarning:
		return 9 * time.Second
	case ToastProcess:
		return 0
	default:
		return 5 * time.Second
	}
}

// ToastTypeForSeverity maps an alert severity to a toast type.
func ToastTypeForSeverity(severity string) ToastType {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "disaster", "high":
		return ToastCritical
	case "average", "warning":
		return ToastWarning
	default:
		return ToastInfo
	}
}

type QueueEventKind string

const (
	QueueEventAdded   QueueEventKind = "added"
	QueueEventUpdated QueueEventKind = "updated"
	QueueEventRemoved QueueEventKind = "removed"
)

type SoundCue string

const (
	SoundNone     SoundCue = ""
	SoundWarning  SoundCue = "warning"
	SoundCritical SoundCue = "critical"
)

// QueueEvent describes one mutation of the toast queue. Sound is set only
// on first insertion of warning/critical toasts, never on merges.
type QueueEvent struct {
	Kind  QueueEventKind `json:"kind"`
	Toast Toast          `json:"toast"`
	Sound SoundCue       `json:"sound,omitempty"`
}
