// Package analyzer submits staged media to the remote pose-estimation
// service and decodes its measurement response.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"bodymetrics/internal/model"
)

// FallbackMessage is surfaced when the service fails without a more specific
// transport message.
const FallbackMessage = "body analysis service is unavailable, please try again"

// TransportError covers network failures and non-2xx responses.
type TransportError struct {
	Status  int
	Message string
}

func (e *TransportError) Error() string { return e.Message }

// DecodeError covers 2xx responses whose body violates the measurement
// contract. Decoding is all-or-nothing: no partial result ever escapes.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string { return "invalid analyzer response: " + e.Reason }

// Client performs the multipart call against the configured endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient builds a Client for the injected endpoint.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// Analyze issues exactly one POST with the media and the profile fields
// forwarded verbatim, and returns the strictly decoded result.
func (c *Client) Analyze(ctx context.Context, media io.Reader, name, contentType string, profile model.PersonalProfile) (*model.MeasurementResult, error) {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(form, media, name, contentType, profile))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, pr)
	if err != nil {
		return nil, fmt.Errorf("build analyzer request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("%s (status %d)", FallbackMessage, resp.StatusCode),
		}
	}
	return decodeResult(resp.Body)
}

func writeForm(form *multipart.Writer, media io.Reader, name, contentType string, profile model.PersonalProfile) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(name)))
	header.Set("Content-Type", contentType)
	part, err := form.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, media); err != nil {
		return err
	}
	fields := map[string]string{
		"height": profile.HeightCm,
		"weight": profile.WeightKg,
		"gender": string(profile.Gender),
	}
	for _, key := range []string{"height", "weight", "gender"} {
		if err := form.WriteField(key, fields[key]); err != nil {
			return err
		}
	}
	return form.Close()
}

func escapeQuotes(s string) string {
	return strings.NewReplacer("\\", "\\\\", `"`, "\\\"").Replace(s)
}

// wireResult mirrors the response schema with optional fields so missing
// values are detectable instead of defaulting to zero.
type wireResult struct {
	Gender      *string  `json:"gender"`
	Shoulder    *float64 `json:"shoulder"`
	Waist       *float64 `json:"waist"`
	Chest       *float64 `json:"chest"`
	InseamLeft  *float64 `json:"inseam_left"`
	InseamRight *float64 `json:"inseam_right"`
	Hips        *float64 `json:"hips"`
	BMI         *float64 `json:"bmi"`
}

func decodeResult(body io.Reader) (*model.MeasurementResult, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &TransportError{Message: err.Error()}
	}
	var wire wireResult
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, &DecodeError{Reason: err.Error()}
	}
	numbers := map[string]*float64{
		"shoulder":     wire.Shoulder,
		"waist":        wire.Waist,
		"chest":        wire.Chest,
		"inseam_left":  wire.InseamLeft,
		"inseam_right": wire.InseamRight,
		"hips":         wire.Hips,
		"bmi":          wire.BMI,
	}
	for field, value := range numbers {
		if value == nil {
			return nil, &DecodeError{Reason: "missing field " + field}
		}
		if math.IsNaN(*value) || math.IsInf(*value, 0) {
			return nil, &DecodeError{Reason: "non-finite field " + field}
		}
	}
	if wire.Gender == nil {
		return nil, &DecodeError{Reason: "missing field gender"}
	}
	if *wire.BMI < 0 {
		return nil, &DecodeError{Reason: "negative bmi"}
	}
	return &model.MeasurementResult{
		Gender:      *wire.Gender,
		Shoulder:    *wire.Shoulder,
		Waist:       *wire.Waist,
		Chest:       *wire.Chest,
		InseamLeft:  *wire.InseamLeft,
		InseamRight: *wire.InseamRight,
		Hips:        *wire.Hips,
		BMI:         *wire.BMI,
	}, nil
}
