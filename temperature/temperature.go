// Package temperature holds temperature units and conversions between them
package temperature

import (
	"fmt"
	"math"
)

type (
	// Celsius is a temperature in C
	Celsius float64

	// Kelvin is a temperature in K
	Kelvin float64

	// Fahrenheit is a temperature in deg F
	Fahrenheit float64
)

// Unknown is reported when a temperature could not be read
var Unknown = Celsius(math.NaN())

// Range is an inclusive interval of setpoints
type Range struct {
	Min, Max Celsius
}

// Contains reports if c lies in the range
func (r Range) Contains(c Celsius) bool {
	return c >= r.Min && c <= r.Max
}

// Clamp limits c to the range
func (r Range) Clamp(c Celsius) Celsius {
	if c < r.Min {
		return r.Min
	}
	if c > r.Max {
		return r.Max
	}
	return c
}

// IsUnknown is true for the Unknown sentinel
func (c Celsius) IsUnknown() bool {
	return math.IsNaN(float64(c))
}

func (c Celsius) String() string {
	if c.IsUnknown() {
		return "unknown"
	}
	return fmt.Sprintf("%.1f C", float64(c))
}

// C2F converts a temp in Celsius to Fahrenheit
func C2F(c Celsius) Fahrenheit {
	return Fahrenheit(c*9/5 + 32)
}

// C2K converts a temp in Celsius to Kelvin
func C2K(c Celsius) Kelvin {
	return Kelvin(c + 273.15)
}

// K2C converts a temp in Kelvin to Celsius
func K2C(k Kelvin) Celsius {
	return Celsius(k - 273.15)
}

// F2C converts a temp in Fahrenheit to Celcius
func F2C(f Fahrenheit) Celsius {
	return Celsius((f - 32) * 5 / 9)
}
