package model

import "time"

// ETRFinished is the terminal ETR label reported by the scan engine.
const ETRFinished = "Concluído"

type ScanLogEntry struct {
	Msg  string `json:"msg"`
	Time string `json:"time"`
}

type ScanResultsSummary struct {
	Added      int `json:"added"`
	Updated    int `json:"updated"`
	TotalFound int `json:"total_found"`
}

// ScanStatus is the server-reported state of the current scan session.
// Pending marks a locally seeded optimistic value that has not yet been
// confirmed by a status poll; the next poll overwrites it wholesale.
type ScanStatus struct {
	Running     bool               `json:"running"`
	Progress    int                `json:"progress"`
	ScannedIPs  int                `json:"scanned_ips"`
	TotalIPs    int                `json:"total_ips"`
	ETR         string             `json:"etr"`
	Logs        []ScanLogEntry     `json:"logs"`
	LastResults ScanResultsSummary `json:"last_results"`
	Pending     bool               `json:"pending,omitempty"`
}

// Finished reports the terminal completed state (as opposed to idle).
func (s ScanStatus) Finished() bool {
	return !s.Running && s.ETR == ETRFinished
}

type DeviceStatus string

const (
	DeviceOnline  DeviceStatus = "ONLINE"
	DeviceOffline DeviceStatus = "OFFLINE"
)

// PrinterSupply is one consumable level reported by a printer audit.
type PrinterSupply struct {
	Name    string `json:"name"`
	Level   int    `json:"level"`
	MaxCap  int    `json:"max_capacity,omitempty"`
	Kind    string `json:"kind,omitempty"`
	ColorID string `json:"color,omitempty"`
}

type PrinterData struct {
	Model    string          `json:"model,omitempty"`
	Serial   string          `json:"serial,omitempty"`
	Supplies []PrinterSupply `json:"supplies,omitempty"`
	Trays    []string        `json:"trays,omitempty"`
	Covers   []string        `json:"covers,omitempty"`
	Alerts   []string        `json:"alerts,omitempty"`
	PageJobs int             `json:"page_jobs,omitempty"`
}

// Device is one scan result row, keyed by IP. Rows are immutable snapshots
// per results poll; ScanType is a transient tag present only for the scan
// that produced or changed the row.
type Device struct {
	IP          string       `json:"ip"`
	Hostname    string       `json:"hostname"`
	MAC         string       `json:"mac"`
	Vendor      string       `json:"vendor"`
	OSDetail    string       `json:"os_detail"`
	DeviceType  string       `json:"device_type"`
	StatusCode  DeviceStatus `json:"status_code"`
	LastSeen    string       `json:"last_seen"`
	ScanType    string       `json:"scan_type,omitempty"`
	Ports       []int        `json:"ports,omitempty"`
	Confidence  int          `json:"confidence,omitempty"`
	PrinterData *PrinterData `json:"printer_data,omitempty"`
	UpdatedAt   time.Time    `json:"-"`
}

// PingResult is the outcome of a one-shot diagnostic probe. Output is
// displayed verbatim; Message carries the server's failure text.
type PingResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Message string `json:"message,omitempty"`
}
