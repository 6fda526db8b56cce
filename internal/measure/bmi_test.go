package measure_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bodymetrics/internal/measure"
)

func TestBMICategory_Thresholds(t *testing.T) {
	cases := []struct {
		name string
		bmi  float64
		want measure.Category
	}{
		{"zero", 0, measure.Underweight},
		{"underweight", 17.0, measure.Underweight},
		{"just below normal", 18.499, measure.Underweight},
		{"lower normal bound", 18.5, measure.NormalWeight},
		{"upper normal", 24.999, measure.NormalWeight},
		{"lower overweight bound", 25.0, measure.Overweight},
		{"upper overweight", 29.999, measure.Overweight},
		{"lower obese bound", 30.0, measure.Obese},
		{"far obese", 45.2, measure.Obese},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := measure.BMICategory(tc.bmi)

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBMICategory_InvalidInput(t *testing.T) {
	cases := []struct {
		name string
		bmi  float64
	}{
		{"negative", -1},
		{"nan", math.NaN()},
		{"positive infinity", math.Inf(1)},
		{"negative infinity", math.Inf(-1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := measure.BMICategory(tc.bmi)

			assert.ErrorIs(t, err, measure.ErrInvalidBMI)
			assert.Empty(t, got)
		})
	}
}
