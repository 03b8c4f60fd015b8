// Package units formats sample rates and sample counts for display and
// parses the size strings accepted by CLI flags.
package units

import (
	"fmt"
	"strconv"
	"strings"
)

// SI multipliers used for rates and sample counts. Sample rates scale
// in decimal steps, not powers of two.
const (
	Kilo uint64 = 1_000
	Mega uint64 = 1_000_000
	Giga uint64 = 1_000_000_000
)

// Samplerate renders a rate in Hz with an SI prefix, e.g. 1000000 ->
// "1 MHz", 1500000 -> "1.5 MHz", 8 -> "8 Hz". Fractions print only the
// significant digits.
func Samplerate(hz uint64) string {
	switch {
	case hz >= Giga:
		return scaled(hz, Giga, "GHz")
	case hz >= Mega:
		return scaled(hz, Mega, "MHz")
	case hz >= Kilo:
		return scaled(hz, Kilo, "kHz")
	}
	return fmt.Sprintf("%d Hz", hz)
}

// SampleCount renders a sample count for CLI summaries, e.g. 192 ->
// "192", 2000 -> "2 k", 1000000 -> "1 M". Counts that are not exact
// multiples stay plain digits so nothing is rounded away.
func SampleCount(n uint64) string {
	switch {
	case n >= Giga && n%Giga == 0:
		return fmt.Sprintf("%d G", n/Giga)
	case n >= Mega && n%Mega == 0:
		return fmt.Sprintf("%d M", n/Mega)
	case n >= Kilo && n%Kilo == 0:
		return fmt.Sprintf("%d k", n/Kilo)
	}
	return strconv.FormatUint(n, 10)
}

// ParseSizeString parses a sample count with an optional decimal SI
// suffix: "192", "1k", "2M", "1 g". Suffixes are case-insensitive.
func ParseSizeString(s string) (uint64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("empty size string")
	}

	mult := uint64(1)
	switch trimmed[len(trimmed)-1] {
	case 'k', 'K':
		mult = Kilo
	case 'm', 'M':
		mult = Mega
	case 'g', 'G':
		mult = Giga
	}
	if mult != 1 {
		trimmed = strings.TrimSpace(trimmed[:len(trimmed)-1])
	}

	n, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %v", s, err)
	}
	if mult > 1 && n > ^uint64(0)/mult {
		return 0, fmt.Errorf("size %q overflows", s)
	}
	return n * mult, nil
}

// scaled formats hz/div with the fraction trimmed to its significant
// digits, using integer math so large rates stay exact.
func scaled(hz, div uint64, unit string) string {
	q := hz / div
	rem := hz % div
	if rem == 0 {
		return fmt.Sprintf("%d %s", q, unit)
	}
	width := len(strconv.FormatUint(div, 10)) - 1
	frac := strings.TrimRight(fmt.Sprintf("%0*d", width, rem), "0")
	return fmt.Sprintf("%d.%s %s", q, frac, unit)
}
