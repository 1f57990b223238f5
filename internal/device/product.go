package device

// ProductType identifies a HomeWizard product by its API product_type string.
type ProductType string

const (
	ProductP1Meter      ProductType = "HWE-P1"
	ProductEnergySocket ProductType = "HWE-SKT"
	ProductKWhMeter1    ProductType = "HWE-KWH1"
	ProductKWhMeter3    ProductType = "HWE-KWH3"
	ProductWaterMeter   ProductType = "HWE-WTR"
	ProductDisplay      ProductType = "HWE-DSP"
	ProductBattery      ProductType = "HWE-BAT"
	ProductSDM230       ProductType = "SDM230-wifi"
	ProductSDM630       ProductType = "SDM630-wifi"
	ProductUnknown      ProductType = ""
)

// Supported reports whether HomeWatt can poll energy readings from this
// product. Unsupported products are still recorded during discovery but
// are excluded from polling.
func (p ProductType) Supported() bool {
	switch p {
	case ProductP1Meter, ProductEnergySocket, ProductKWhMeter1, ProductKWhMeter3:
		return true
	default:
		return false
	}
}

// Known reports whether the product type is a recognized HomeWizard product,
// supported or not.
func (p ProductType) Known() bool {
	switch p {
	case ProductP1Meter, ProductEnergySocket, ProductKWhMeter1, ProductKWhMeter3,
		ProductWaterMeter, ProductDisplay, ProductBattery, ProductSDM230, ProductSDM630:
		return true
	default:
		return false
	}
}

// DisplayName returns a human-readable product name.
func (p ProductType) DisplayName() string {
	switch p {
	case ProductP1Meter:
		return "P1 Meter"
	case ProductEnergySocket:
		return "Energy Socket"
	case ProductKWhMeter1:
		return "kWh Meter (1 phase)"
	case ProductKWhMeter3:
		return "kWh Meter (3 phase)"
	case ProductWaterMeter:
		return "Water Meter"
	case ProductDisplay:
		return "Display"
	case ProductBattery:
		return "Plug-In Battery"
	case ProductSDM230:
		return "SDM230 kWh Meter"
	case ProductSDM630:
		return "SDM630 kWh Meter"
	default:
		return "Unknown Device"
	}
}

func (p ProductType) String() string {
	return string(p)
}
