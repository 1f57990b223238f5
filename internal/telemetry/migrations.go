package telemetry

import (
	"database/sql"

	"github.com/HerbHall/homewatt/internal/store"
)

func migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create readings table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS readings (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						device_serial TEXT NOT NULL,
						power_w REAL NOT NULL,
						energy_import_t1_kwh REAL,
						energy_import_t2_kwh REAL,
						energy_export_t1_kwh REAL,
						energy_export_t2_kwh REAL,
						gas_m3 REAL,
						wifi_strength_pct INTEGER,
						taken_at DATETIME NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_readings_device_time ON readings(device_serial, taken_at)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
