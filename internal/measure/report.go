package measure

import (
	"fmt"

	"bodymetrics/internal/model"
)

// Measurement is one labelled, formatted value of the results panel.
type Measurement struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Report is the presentation view of a measurement result.
type Report struct {
	Gender       string        `json:"gender"`
	Measurements []Measurement `json:"measurements"`
	BMI          string        `json:"bmi"`
	Category     Category      `json:"bmiCategory"`
	StatusLine   string        `json:"statusLine"`
}

// BuildReport derives the displayable report from a decoded result. It fails
// when the BMI cannot be categorized, which callers surface as a decode-level
// contract violation.
func BuildReport(res *model.MeasurementResult) (*Report, error) {
	category, err := BMICategory(res.BMI)
	if err != nil {
		return nil, err
	}
	bmi := FormatBMI(res.BMI)
	return &Report{
		Gender: res.Gender,
		Measurements: []Measurement{
			{Label: "Chest", Value: FormatCentimeters(res.Chest)},
			{Label: "Waist", Value: FormatCentimeters(res.Waist)},
			{Label: "Shoulders", Value: FormatCentimeters(res.Shoulder)},
			{Label: "Hips", Value: FormatCentimeters(res.Hips)},
			{Label: "Inseam (left)", Value: FormatCentimeters(res.InseamLeft)},
			{Label: "Inseam (right)", Value: FormatCentimeters(res.InseamRight)},
		},
		BMI:        bmi,
		Category:   category,
		StatusLine: fmt.Sprintf("%s (BMI: %s)", category, bmi),
	}, nil
}
