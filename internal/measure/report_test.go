package measure_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bodymetrics/internal/measure"
	"bodymetrics/internal/model"
)

func TestBuildReport(t *testing.T) {
	result := &model.MeasurementResult{
		Gender:      "Male",
		Shoulder:    45.1,
		Waist:       84.3,
		Chest:       100.2,
		InseamLeft:  78.0,
		InseamRight: 78.4,
		Hips:        95.6,
		BMI:         24.7,
	}

	report, err := measure.BuildReport(result)

	require.NoError(t, err)
	assert.Equal(t, "Male", report.Gender)
	assert.Equal(t, "24.7", report.BMI)
	assert.Equal(t, measure.NormalWeight, report.Category)
	assert.Equal(t, "Normal weight (BMI: 24.7)", report.StatusLine)

	require.Len(t, report.Measurements, 6)
	assert.Equal(t, measure.Measurement{Label: "Chest", Value: "100.2 cm"}, report.Measurements[0])
	assert.Equal(t, measure.Measurement{Label: "Waist", Value: "84.3 cm"}, report.Measurements[1])
	assert.Equal(t, measure.Measurement{Label: "Shoulders", Value: "45.1 cm"}, report.Measurements[2])
	assert.Equal(t, measure.Measurement{Label: "Hips", Value: "95.6 cm"}, report.Measurements[3])
	assert.Equal(t, measure.Measurement{Label: "Inseam (left)", Value: "78.0 cm"}, report.Measurements[4])
	assert.Equal(t, measure.Measurement{Label: "Inseam (right)", Value: "78.4 cm"}, report.Measurements[5])
}

func TestBuildReport_InvalidBMI(t *testing.T) {
	result := &model.MeasurementResult{Gender: "Female", BMI: -3}

	report, err := measure.BuildReport(result)

	assert.ErrorIs(t, err, measure.ErrInvalidBMI)
	assert.Nil(t, report)
}
