package measure

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatSize renders a byte count in the largest base-1024 unit that keeps the
// mantissa below 1024, with up to two fraction digits and trailing zeros
// stripped. FormatSize(0) returns "0 Bytes".
func FormatSize(bytes int64) string {
	if bytes == 0 {
		return "0 Bytes"
	}
	value := float64(bytes)
	unit := 0
	for value >= 1024 && unit < len(sizeUnits)-1 {
		value /= 1024
		unit++
	}
	value = math.Round(value*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[unit]
}

// FormatCentimeters renders a length measurement for display, e.g. "100.2 cm".
func FormatCentimeters(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + " cm"
}

// FormatBMI renders a BMI value with one decimal, e.g. "24.7".
func FormatBMI(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// StepDecimal adjusts a free-form decimal profile field by delta and renders
// the result with two decimals, matching the +/- controls of the profile form.
// Non-numeric input is rejected rather than propagated as "NaN".
func StepDecimal(value string, delta float64) (string, error) {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return "", fmt.Errorf("not a number: %q", value)
	}
	return strconv.FormatFloat(parsed+delta, 'f', 2, 64), nil
}
