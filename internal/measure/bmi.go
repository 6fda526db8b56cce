// Package measure holds the pure derivations that turn a raw measurement
// record into presentation-ready values.
package measure

import (
	"errors"
	"math"
)

// Category buckets a BMI value.
type Category string

const (
	Underweight  Category = "Underweight"
	NormalWeight Category = "Normal weight"
	Overweight   Category = "Overweight"
	Obese        Category = "Obese"
)

// ErrInvalidBMI marks a BMI that is negative or non-finite. Such values are a
// contract violation of the analyzer service and must surface as an error
// instead of silently defaulting to a category.
var ErrInvalidBMI = errors.New("bmi out of range")

// BMICategory maps a BMI value onto its category. Thresholds are evaluated in
// order, first match wins.
func BMICategory(bmi float64) (Category, error) {
	if bmi < 0 || math.IsNaN(bmi) || math.IsInf(bmi, 0) {
		return "", ErrInvalidBMI
	}
	switch {
	case bmi < 18.5:
		return Underweight, nil
	case bmi < 25:
		return NormalWeight, nil
	case bmi < 30:
		return Overweight, nil
	default:
		return Obese, nil
	}
}
