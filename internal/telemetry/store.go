package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/HerbHall/homewatt/internal/store"
)

// Store provides database access to collected readings.
type Store struct {
	db *sql.DB
}

// NewStore creates a telemetry Store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate applies the telemetry schema.
func Migrate(ctx context.Context, s *store.Store) error {
	return s.Migrate(ctx, "telemetry", migrations())
}

// Insert stores a reading and fills in its assigned ID.
func (s *Store) Insert(ctx context.Context, r *Reading) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO readings (
			device_serial, power_w, energy_import_t1_kwh, energy_import_t2_kwh,
			energy_export_t1_kwh, energy_export_t2_kwh, gas_m3, wifi_strength_pct, taken_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.DeviceSerial, r.PowerW, r.EnergyImportT1, r.EnergyImportT2,
		r.EnergyExportT1, r.EnergyExportT2, r.GasM3, r.WifiStrengthPct, r.TakenAt,
	)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	r.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading last insert id: %w", err)
	}
	return nil
}

// Latest returns the most recent reading for a device. Returns nil, nil
// when the device has no readings.
func (s *Store) Latest(ctx context.Context, serial string) (*Reading, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, device_serial, power_w, energy_import_t1_kwh, energy_import_t2_kwh,
			energy_export_t1_kwh, energy_export_t2_kwh, gas_m3, wifi_strength_pct, taken_at
		FROM readings WHERE device_serial = ?
		ORDER BY taken_at DESC, id DESC LIMIT 1`,
		serial,
	)
	r, err := scanReading(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("latest reading: %w", err)
	}
	return r, nil
}

// PowerSince returns the power samples for a device taken at or after the
// given time, in ascending time order, suitable for charting.
func (s *Store) PowerSince(ctx context.Context, serial string, since time.Time) ([]PowerPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT taken_at, power_w FROM readings
		WHERE device_serial = ? AND taken_at >= ?
		ORDER BY taken_at ASC, id ASC`,
		serial, since,
	)
	if err != nil {
		return nil, fmt.Errorf("power since: %w", err)
	}
	defer rows.Close()

	var points []PowerPoint
	for rows.Next() {
		var p PowerPoint
		if err := rows.Scan(&p.TakenAt, &p.PowerW); err != nil {
			return nil, fmt.Errorf("scan power point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate power points: %w", err)
	}
	return points, nil
}

// ListSince returns full readings for a device taken at or after the given
// time, newest first, capped at limit rows (0 means no cap).
func (s *Store) ListSince(ctx context.Context, serial string, since time.Time, limit int) ([]Reading, error) {
	query := `
		SELECT id, device_serial, power_w, energy_import_t1_kwh, energy_import_t2_kwh,
			energy_export_t1_kwh, energy_export_t2_kwh, gas_m3, wifi_strength_pct, taken_at
		FROM readings WHERE device_serial = ? AND taken_at >= ?
		ORDER BY taken_at DESC, id DESC`
	args := []any{serial, since}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reading row: %w", err)
		}
		readings = append(readings, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reading rows: %w", err)
	}
	return readings, nil
}

// PruneBefore deletes readings older than the cutoff and reports how many
// rows were removed.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM readings WHERE taken_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune readings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (*Reading, error) {
	var r Reading
	err := row.Scan(
		&r.ID, &r.DeviceSerial, &r.PowerW, &r.EnergyImportT1, &r.EnergyImportT2,
		&r.EnergyExportT1, &r.EnergyExportT2, &r.GasM3, &r.WifiStrengthPct, &r.TakenAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
