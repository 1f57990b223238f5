package homewizard

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Some HomeWizard firmware revisions serialize numeric fields as strings
// ("42.5" instead of 42.5). FlexFloat and FlexInt accept both forms.

// FlexFloat is a float64 that unmarshals from a JSON number or a numeric
// string. Null leaves the pointer nil when used as *FlexFloat.
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		// A quoted empty string falls through to ParseFloat and fails there.
		// Returning nil instead would leave the already-allocated pointer at
		// zero and make the field look like a real 0 reading.
		s = s[1 : len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse numeric field %q: %w", string(data), err)
	}
	*f = FlexFloat(v)
	return nil
}

// Float returns the value as *float64, or nil for a nil receiver.
func (f *FlexFloat) Float() *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	return &v
}

// FlexInt is an int that unmarshals from a JSON number or a numeric string,
// rounding fractional values to the nearest integer.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	var raw FlexFloat
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = FlexInt(math.Round(float64(raw)))
	return nil
}

// Int returns the value as *int, or nil for a nil receiver.
func (f *FlexInt) Int() *int {
	if f == nil {
		return nil
	}
	v := int(*f)
	return &v
}
