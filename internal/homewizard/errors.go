package homewizard

import (
	"errors"
	"fmt"

	"github.com/HerbHall/homewatt/internal/device"
)

// ErrUnreachable indicates the device did not answer at the network level
// (timeout, connection refused, no route). Callers treat this as routine:
// it feeds liveness tracking rather than the error log.
var ErrUnreachable = errors.New("device unreachable")

// ErrMalformed indicates the device answered but the response could not be
// interpreted. The reading is dropped.
var ErrMalformed = errors.New("malformed device response")

// UnsupportedProductError indicates a device whose product type HomeWatt
// cannot poll for energy data.
type UnsupportedProductError struct {
	ProductType device.ProductType
}

func (e *UnsupportedProductError) Error() string {
	return fmt.Sprintf("unsupported product type %q", e.ProductType)
}
