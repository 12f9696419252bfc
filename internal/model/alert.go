package model

// SystemAlert is one unresolved alert from the /api/alerts/active feed.
type SystemAlert struct {
	ID           int64  `json:"id"`
	DeviceID     int64  `json:"device_id"`
	Hostname     string `json:"hostname"`
	Severity     string `json:"severity"`
	Title        string `json:"title"`
	Message      string `json:"message"`
	TriggeredAt  string `json:"triggered_at"`
	Acknowledged bool   `json:"acknowledged"`
	MonitorType  string `json:"monitor_type"`
}

// IntelAlert is one AI-flagged anomaly from /api/ai/intelligence. The feed
// is newest-first; only the head entry is considered for toasting.
type IntelAlert struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Priority    string `json:"priority"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Message     string `json:"message"`
	TicketID    string `json:"ticket_id,omitempty"`
}

// Critical reports whether the anomaly warrants a critical toast.
func (a IntelAlert) Critical() bool {
	return a.Priority == "high" || a.Type == "critical"
}

// TicketStats is the aggregate ticket counter snapshot from /api/glpi/stats.
type TicketStats struct {
	Total      int `json:"total"`
	New        int `json:"new"`
	Processing int `json:"processing"`
	Planned    int `json:"planned"`
	Pending    int `json:"pending"`
	Solved     int `json:"solved"`
	Closed     int `json:"closed"`
}
