package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/atena-labs/sentinel-console/agent/internal/model"
)

var ErrNotFound = errors.New("not found")

// Snooze records a suppression window for a toast id. An existing window is
// replaced wholesale.
func (r *Repository) Snooze(ctx context.Context, toastID string, until time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO snoozed_alerts(toast_id, expires_at) VALUES (?, ?)
		ON CONFLICT(toast_id) DO UPDATE SET expires_at=excluded.expires_at`,
		toastID, until.UTC().Format(time.RFC3339Nano))
	return err
}

// IsSnoozed reports whether the toast id is inside an active suppression
// window. Expired records are purged at lookup time; there is no background
// sweep.
func (r *Repository) IsSnoozed(ctx context.Context, toastID string, now time.Time) (bool, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT expires_at FROM snoozed_alerts WHERE toast_id = ?`, toastID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	expiry, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil || !now.Before(expiry) {
		if _, delErr := r.db.ExecContext(ctx,
			`DELETE FROM snoozed_alerts WHERE toast_id = ?`, toastID); delErr != nil {
			return false, delErr
		}
		return false, nil
	}
	return true, nil
}

func (r *Repository) SetPreference(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO preferences(key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func (r *Repository) GetPreference(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// UpsertDevices merges a results poll into the local inventory. Rows are
// keyed by IP and overwritten field-for-field; devices absent from this
// poll keep their last known snapshot.
func (r *Repository) UpsertDevices(ctx context.Context, devices []model.Device) error {
	if len(devices) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO devices (ip, hostname, mac, vendor, os_detail, device_type, status_code, last_seen, ports_json, printer_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ip) DO UPDATE SET
			hostname=excluded.hostname,
			mac=excluded.mac,
			vendor=excluded.vendor,
			os_detail=excluded.os_detail,
			device_type=excluded.device_type,
			status_code=excluded.status_code,
			last_seen=excluded.last_seen,
			ports_json=excluded.ports_json,
			printer_json=excluded.printer_json,
			updated_at=excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, device := range devices {
		ports, err := json.Marshal(device.Ports)
		if err != nil {
			return err
		}
		var printer any
		if device.PrinterData != nil {
			encoded, err := json.Marshal(device.PrinterData)
			if err != nil {
				return err
			}
			printer = string(encoded)
		}
		if _, err := stmt.ExecContext(ctx,
			device.IP,
			device.Hostname,
			device.MAC,
			device.Vendor,
			device.OSDetail,
			device.DeviceType,
			string(device.StatusCode),
			device.LastSeen,
			string(ports),
			printer,
			now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) ListDevices(ctx context.Context) ([]model.Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ip, hostname, mac, vendor, os_detail, device_type, status_code, last_seen, ports_json, printer_json, updated_at
		FROM devices ORDER BY ip`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Device
	for rows.Next() {
		var (
			device    model.Device
			status    string
			portsJSON string
			printer   sql.NullString
			updatedAt string
		)
		if err := rows.Scan(&device.IP, &device.Hostname, &device.MAC, &device.Vendor,
			&device.OSDetail, &device.DeviceType, &status, &device.LastSeen,
			&portsJSON, &printer, &updatedAt); err != nil {
			return nil, err
		}
		device.StatusCode = model.DeviceStatus(status)
		if portsJSON != "" {
			if err := json.Unmarshal([]byte(portsJSON), &device.Ports); err != nil {
				return nil, err
			}
		}
		if printer.Valid && printer.String != "" {
			data := &model.PrinterData{}
			if err := json.Unmarshal([]byte(printer.String), data); err != nil {
				return nil, err
			}
			device.PrinterData = data
		}
		if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			device.UpdatedAt = ts.UTC()
		}
		result = append(result, device)
	}
	return result, rows.Err()
}
