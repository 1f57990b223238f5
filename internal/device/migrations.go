package device

import (
	"database/sql"

	"github.com/HerbHall/homewatt/internal/store"
)

func migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create devices table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS devices (
						serial TEXT PRIMARY KEY,
						name TEXT NOT NULL DEFAULT '',
						address TEXT NOT NULL,
						product_type TEXT NOT NULL,
						product_name TEXT NOT NULL DEFAULT '',
						firmware TEXT NOT NULL DEFAULT '',
						enabled INTEGER NOT NULL DEFAULT 1,
						discovered_at DATETIME NOT NULL,
						last_seen DATETIME NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_devices_enabled ON devices(enabled)`,
					`CREATE INDEX IF NOT EXISTS idx_devices_address ON devices(address)`,
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
