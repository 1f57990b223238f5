package device

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/HerbHall/homewatt/internal/store"
)

// Store provides database access to the device registry.
type Store struct {
	db *sql.DB
}

// NewStore creates a device Store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate applies the device registry schema.
func Migrate(ctx context.Context, s *store.Store) error {
	return s.Migrate(ctx, "device", migrations())
}

// Upsert inserts the device if its serial is new, or refreshes an existing
// row's address, product details, firmware, and last_seen. Existing rows keep
// their name, enabled flag, and discovered_at. Returns true when a new row
// was created.
func (s *Store) Upsert(ctx context.Context, d *Device) (created bool, err error) {
	existing, err := s.Get(ctx, d.Serial)
	if err != nil {
		return false, err
	}

	if existing == nil {
		enabled := 0
		if d.Enabled {
			enabled = 1
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO devices (
				serial, name, address, product_type, product_name, firmware,
				enabled, discovered_at, last_seen
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.Serial, d.Name, d.Address, string(d.ProductType), d.ProductName,
			d.Firmware, enabled, d.DiscoveredAt, d.LastSeen,
		)
		if err != nil {
			return false, fmt.Errorf("insert device: %w", err)
		}
		return true, nil
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE devices
		SET address = ?, product_type = ?, product_name = ?, firmware = ?,
			last_seen = MAX(last_seen, ?)
		WHERE serial = ?`,
		d.Address, string(d.ProductType), d.ProductName, d.Firmware,
		d.LastSeen, d.Serial,
	)
	if err != nil {
		return false, fmt.Errorf("update device: %w", err)
	}
	return false, nil
}

// Get returns a device by serial. Returns nil, nil if not found.
func (s *Store) Get(ctx context.Context, serial string) (*Device, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT serial, name, address, product_type, product_name, firmware,
			enabled, discovered_at, last_seen
		FROM devices WHERE serial = ?`,
		serial,
	)
	d, err := scanDevice(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get device: %w", err)
	}
	return d, nil
}

// List returns all devices ordered by discovery time.
func (s *Store) List(ctx context.Context) ([]Device, error) {
	return s.list(ctx, `
		SELECT serial, name, address, product_type, product_name, firmware,
			enabled, discovered_at, last_seen
		FROM devices ORDER BY discovered_at`,
	)
}

// ListEnabled returns all enabled devices ordered by discovery time.
func (s *Store) ListEnabled(ctx context.Context) ([]Device, error) {
	return s.list(ctx, `
		SELECT serial, name, address, product_type, product_name, firmware,
			enabled, discovered_at, last_seen
		FROM devices WHERE enabled = 1 ORDER BY discovered_at`,
	)
}

// TouchLastSeen advances last_seen for a device. The timestamp never moves
// backwards, so out-of-order poll completions cannot regress it.
func (s *Store) TouchLastSeen(ctx context.Context, serial string, seen time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE devices SET last_seen = MAX(last_seen, ?) WHERE serial = ?`,
		seen, serial,
	)
	if err != nil {
		return fmt.Errorf("touch last_seen: %w", err)
	}
	return nil
}

// SetEnabled enables or disables polling for a device.
func (s *Store) SetEnabled(ctx context.Context, serial string, enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE devices SET enabled = ? WHERE serial = ?`, v, serial,
	)
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set enabled rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set enabled: device %q not found", serial)
	}
	return nil
}

// SetName updates a device's display name.
func (s *Store) SetName(ctx context.Context, serial, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE devices SET name = ? WHERE serial = ?`, name, serial,
	)
	if err != nil {
		return fmt.Errorf("set name: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set name rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set name: device %q not found", serial)
	}
	return nil
}

// Delete removes a device from the registry.
func (s *Store) Delete(ctx context.Context, serial string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE serial = ?`, serial)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	return nil
}

func (s *Store) list(ctx context.Context, query string) ([]Device, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device row: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate device rows: %w", err)
	}
	return devices, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*Device, error) {
	var d Device
	var productType string
	var enabledInt int
	err := row.Scan(
		&d.Serial, &d.Name, &d.Address, &productType, &d.ProductName,
		&d.Firmware, &enabledInt, &d.DiscoveredAt, &d.LastSeen,
	)
	if err != nil {
		return nil, err
	}
	d.ProductType = ProductType(productType)
	d.Enabled = enabledInt != 0
	return &d, nil
}
