package db

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// CaptureRecord is one catalogued capture directory: where it lives on
// disk and the acquisition totals from its header.
type CaptureRecord struct {
	ID           string `json:"id"`
	Path         string `json:"path"`
	DeviceVendor string `json:"device_vendor"`
	DeviceModel  string `json:"device_model"`
	SamplerateHz uint64 `json:"samplerate_hz"`
	UnitSize     int    `json:"unit_size"`
	ChannelCount int    `json:"channel_count"`
	TotalSamples uint64 `json:"total_samples"`
	TotalRecords uint64 `json:"total_records"`
	TriggerCount uint64 `json:"trigger_count"`
	CreatedNs    int64  `json:"created_ns"`
	Notes        string `json:"notes"`
}

func (r *CaptureRecord) String() string {
	return fmt.Sprintf("Capture %s: %s (%d samples, %d channels, %d Hz)",
		r.ID, r.Path, r.TotalSamples, r.ChannelCount, r.SamplerateHz)
}

// InsertCapture adds a capture to the catalogue. A missing ID is
// assigned and a missing creation time is stamped from the clock.
func (db *DB) InsertCapture(rec *CaptureRecord) error {
	if rec == nil {
		return fmt.Errorf("nil capture record")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedNs == 0 {
		rec.CreatedNs = db.clock.Now().UnixNano()
	}

	query := `
		INSERT INTO captures (
			id, path, device_vendor, device_model, samplerate_hz,
			unit_size, channel_count, total_samples, total_records,
			trigger_count, created_ns, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := db.retryOnBusy(func() error {
		_, err := db.DB.Exec(
			query,
			rec.ID,
			rec.Path,
			rec.DeviceVendor,
			rec.DeviceModel,
			rec.SamplerateHz,
			rec.UnitSize,
			rec.ChannelCount,
			rec.TotalSamples,
			rec.TotalRecords,
			rec.TriggerCount,
			rec.CreatedNs,
			rec.Notes,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert capture: %w", err)
	}
	return nil
}

// GetCapture retrieves a catalogued capture by ID.
func (db *DB) GetCapture(id string) (*CaptureRecord, error) {
	query := `
		SELECT
			id, path, device_vendor, device_model, samplerate_hz,
			unit_size, channel_count, total_samples, total_records,
			trigger_count, created_ns, notes
		FROM captures
		WHERE id = ?
	`

	var rec CaptureRecord
	err := db.DB.QueryRow(query, id).Scan(
		&rec.ID,
		&rec.Path,
		&rec.DeviceVendor,
		&rec.DeviceModel,
		&rec.SamplerateHz,
		&rec.UnitSize,
		&rec.ChannelCount,
		&rec.TotalSamples,
		&rec.TotalRecords,
		&rec.TriggerCount,
		&rec.CreatedNs,
		&rec.Notes,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("capture not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get capture: %w", err)
	}

	return &rec, nil
}

// ListCaptures returns catalogued captures, newest first. limit <= 0
// means no limit.
func (db *DB) ListCaptures(limit int) ([]CaptureRecord, error) {
	query := `
		SELECT
			id, path, device_vendor, device_model, samplerate_hz,
			unit_size, channel_count, total_samples, total_records,
			trigger_count, created_ns, notes
		FROM captures
		ORDER BY created_ns DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list captures: %w", err)
	}
	defer rows.Close()

	var records []CaptureRecord
	for rows.Next() {
		var rec CaptureRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.Path,
			&rec.DeviceVendor,
			&rec.DeviceModel,
			&rec.SamplerateHz,
			&rec.UnitSize,
			&rec.ChannelCount,
			&rec.TotalSamples,
			&rec.TotalRecords,
			&rec.TriggerCount,
			&rec.CreatedNs,
			&rec.Notes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// SetCaptureNotes updates the free-form notes on a catalogued capture.
func (db *DB) SetCaptureNotes(id, notes string) error {
	err := db.retryOnBusy(func() error {
		result, err := db.DB.Exec("UPDATE captures SET notes = ? WHERE id = ?", notes, id)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("capture not found: %s", id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update capture notes: %w", err)
	}
	return nil
}

// DeleteCapture removes a capture from the catalogue. The capture
// directory on disk is untouched.
func (db *DB) DeleteCapture(id string) error {
	err := db.retryOnBusy(func() error {
		result, err := db.DB.Exec("DELETE FROM captures WHERE id = ?", id)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("capture not found: %s", id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete capture: %w", err)
	}
	return nil
}
