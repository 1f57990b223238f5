// Package device holds the device registry: the persistent inventory of
// HomeWizard devices known to HomeWatt, keyed by serial number.
package device

import "time"

// Device is a HomeWizard device known to the registry. The serial number
// is the stable identity; the IP address may change between discoveries.
type Device struct {
	Serial       string      `json:"serial"`
	Name         string      `json:"name"`
	Address      string      `json:"address"`
	ProductType  ProductType `json:"product_type"`
	ProductName  string      `json:"product_name"`
	Firmware     string      `json:"firmware,omitempty"`
	Enabled      bool        `json:"enabled"`
	DiscoveredAt time.Time   `json:"discovered_at"`
	LastSeen     time.Time   `json:"last_seen"`
}
