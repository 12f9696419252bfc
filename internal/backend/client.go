package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/atena-labs/sentinel-console/agent/internal/model"
)

const defaultTimeout = 10 * time.Second

// Client talks to the dashboard backend REST API. All calls carry the
// request context and decode into typed payloads at the boundary.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return NewClientWithHTTPClient(baseURL, token, &http.Client{Timeout: defaultTimeout})
}

func NewClientWithHTTPClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if httpClient.Timeout == 0 {
		httpClient.Timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		http:    httpClient,
	}
}

// StartScan begins a scan over the given subnet. The subnet is free text;
// validation is the scan engine's responsibility.
func (c *Client) StartScan(ctx context.Context, subnet string) error {
	return c.post(ctx, "/api/scanner/start", map[string]string{"subnet": subnet}, nil)
}

// StopScan aborts the running scan.
func (c *Client) StopScan(ctx context.Context) error {
	return c.post(ctx, "/api/scanner/stop", nil, nil)
}

// ScanStatus polls progress, logs and ETR of the current session.
func (c *Client) ScanStatus(ctx context.Context) (model.ScanStatus, error) {
	var status model.ScanStatus
	if err := c.get(ctx, "/api/scanner/status", &status); err != nil {
		return model.ScanStatus{}, err
	}
	// The engine does not guarantee a bounded progress value; clamp here so
	// downstream consumers never see anything outside [0,100].
	if status.Progress < 0 {
		status.Progress = 0
	}
	if status.Progress > 100 {
		status.Progress = 100
	}
	return status, nil
}

// ScanResults fetches the full current device list.
func (c *Client) ScanResults(ctx context.Context) ([]model.Device, error) {
	var devices []model.Device
	if err := c.get(ctx, "/api/scanner/results", &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

type refreshResponse struct {
	Success bool          `json:"success"`
	Data    *model.Device `json:"data"`
	Message string        `json:"message"`
}

// RefreshDevice triggers a single-target re-probe and returns the fresh
// device record.
func (c *Client) RefreshDevice(ctx context.Context, ip string) (*model.Device, error) {
	var payload refreshResponse
	if err := c.post(ctx, "/api/scan/individual", map[string]string{"ip": ip}, &payload); err != nil {
		return nil, err
	}
	if !payload.Success || payload.Data == nil {
		msg := payload.Message
		if msg == "" {
			msg = "device unreachable"
		}
		return nil, fmt.Errorf("refresh %s: %s", ip, msg)
	}
	return payload.Data, nil
}

// PingDiagnostic runs a one-shot ICMP-style probe. A failed probe is not an
// error: the result carries the server's message for inline display.
func (c *Client) PingDiagnostic(ctx context.Context, ip string) (model.PingResult, error) {
	var result model.PingResult
	if err := c.post(ctx, "/api/scanner/diagnostics/ping", map[string]string{"ip": ip}, &result); err != nil {
		return model.PingResult{}, err
	}
	return result, nil
}

// IntelligenceAlerts fetches AI-flagged anomalies, newest first.
func (c *Client) IntelligenceAlerts(ctx context.Context) ([]model.IntelAlert, error) {
	var alerts []model.IntelAlert
	if err := c.get(ctx, "/api/ai/intelligence", &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// ActiveAlerts fetches the unresolved system alerts list.
func (c *Client) ActiveAlerts(ctx context.Context) ([]model.SystemAlert, error) {
	var alerts []model.SystemAlert
	if err := c.get(ctx, "/api/alerts/active", &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// AcknowledgeAlert persists an acknowledgement server-side.
func (c *Client) AcknowledgeAlert(ctx context.Context, alertID int64) error {
	return c.post(ctx, fmt.Sprintf("/api/alerts/%d/ack", alertID), nil, nil)
}

// TicketStats fetches aggregate ticket counters.
func (c *Client) TicketStats(ctx context.Context) (model.TicketStats, error) {
	var stats model.TicketStats
	if err := c.get(ctx, "/api/glpi/stats", &stats); err != nil {
		return model.TicketStats{}, err
	}
	return stats, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, string(excerpt))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}
