package cart

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Format configures presentation-side number rendering. The engine itself
// produces exact numeric values; formatting is a pure transform applied
// afterward.
type Format struct {
	Decimals     int
	DecimalPoint string
	ThousandsSep string
}

// DefaultFormat renders two decimals with "." and "," separators.
func DefaultFormat() Format {
	return Format{
		Decimals:     2,
		DecimalPoint: ".",
		ThousandsSep: ",",
	}
}

// Formatter renders exact engine values for display, rounding half up at
// the configured number of decimals.
type Formatter struct {
	format Format
}

// NewFormatter creates a Formatter for the given Format.
func NewFormatter(format Format) Formatter {
	if format.DecimalPoint == "" {
		format.DecimalPoint = "."
	}

	return Formatter{format: format}
}

// Format renders the value as a string.
func (f Formatter) Format(value float64) string {
	rounded := decimal.NewFromFloat(value).StringFixed(int32(f.format.Decimals))

	negative := strings.HasPrefix(rounded, "-")
	rounded = strings.TrimPrefix(rounded, "-")

	integerPart, fractionPart, hasFraction := strings.Cut(rounded, ".")

	rendered := groupThousands(integerPart, f.format.ThousandsSep)
	if hasFraction {
		rendered += f.format.DecimalPoint + fractionPart
	}

	if negative {
		rendered = "-" + rendered
	}

	return rendered
}

func groupThousands(digits string, separator string) string {
	if separator == "" || len(digits) <= 3 {
		return digits
	}

	var grouped strings.Builder
	leading := len(digits) % 3
	if leading > 0 {
		grouped.WriteString(digits[:leading])
	}

	for i := leading; i < len(digits); i += 3 {
		if grouped.Len() > 0 {
			grouped.WriteString(separator)
		}

		grouped.WriteString(digits[i : i+3])
	}

	return grouped.String()
}
