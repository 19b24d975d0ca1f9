package imset

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Dimensionless is the unit assigned to bare numeric attributes.
const Dimensionless = "dimensionless"

// unitNames maps the unit symbols that appear in vendor metadata to
// canonical spelled-out names. Unknown symbols make quantity parsing
// fail, which sends the value down the plain-text fallback.
var unitNames = map[string]string{
	"s":      "second",
	"ms":     "millisecond",
	"us":     "microsecond",
	"µs":     "microsecond",
	"ns":     "nanosecond",
	"m":      "meter",
	"cm":     "centimeter",
	"mm":     "millimeter",
	"um":     "micrometer",
	"µm":     "micrometer",
	"nm":     "nanometer",
	"Hz":     "hertz",
	"kHz":    "kilohertz",
	"MHz":    "megahertz",
	"%":      "percent",
	"count":  "count",
	"counts": "count",
	"px":     "pixel",
	"pixel":  "pixel",
	"K":      "kelvin",
	"V":      "volt",
	"mV":     "millivolt",
	"A":      "ampere",
	"mA":     "milliampere",
	"Pa":     "pascal",
	"kPa":    "kilopascal",
	"bar":    "bar",
	"mbar":   "millibar",
	"J":      "joule",
	"mJ":     "millijoule",
	"W":      "watt",
	"mW":     "milliwatt",
	"°":      "degree",
	"deg":    "degree",
}

// numberToken matches a leading numeric literal (integer, decimal or
// exponent form) at the start of a string.
var numberToken = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// startsWithNumber reports whether s begins with a numeric token.
func startsWithNumber(s string) bool {
	return numberToken.MatchString(s)
}

// Quantity is a parsed physical value: a magnitude and a canonical unit.
type Quantity struct {
	Magnitude float64
	// Integral is set when the magnitude was written as an integer.
	Integral bool
	Unit     string
}

// ParseQuantity parses strings like "6.5 µm" or "9000 µs" into a
// magnitude and a canonical unit name. The unit part must be a known
// symbol; a missing unit parses as dimensionless.
func ParseQuantity(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	loc := numberToken.FindStringIndex(s)
	if loc == nil {
		return Quantity{}, fmt.Errorf("no numeric magnitude in %q", s)
	}
	magText := s[loc[0]:loc[1]]
	rest := strings.TrimSpace(s[loc[1]:])

	mag, err := strconv.ParseFloat(magText, 64)
	if err != nil {
		return Quantity{}, fmt.Errorf("bad magnitude %q: %w", magText, err)
	}
	q := Quantity{
		Magnitude: mag,
		Integral:  !strings.ContainsAny(magText, ".eE"),
	}

	if rest == "" {
		q.Unit = Dimensionless
		return q, nil
	}
	name, ok := unitNames[rest]
	if !ok {
		return Quantity{}, fmt.Errorf("unknown unit %q", rest)
	}
	q.Unit = name
	return q, nil
}
