package model

import "time"

// MinMonitorInterval is the enforced floor for the per-device re-probe
// timer. Specs below it are rejected outright.
const MinMonitorInterval = 5 * time.Second

// MonitorSpec is a user-configured h/m/s recurring re-probe interval.
type MonitorSpec struct {
	Hours   int `json:"h"`
	Minutes int `json:"m"`
	Seconds int `json:"s"`
}

func (m MonitorSpec) Interval() time.Duration {
	return time.Duration(m.Hours)*time.Hour +
		time.Duration(m.Minutes)*time.Minute +
		time.Duration(m.Seconds)*time.Second
}
