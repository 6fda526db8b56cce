// Package model contains the session aggregate shared across packages.
package model

import (
	"errors"
	"time"
)

// IntakeStatus describes the media-intake lifecycle of a session.
type IntakeStatus string

const (
	IntakeIdle      IntakeStatus = "idle"
	IntakeUploading IntakeStatus = "uploading"
	IntakeReady     IntakeStatus = "ready"
	IntakeRejected  IntakeStatus = "rejected"
)

// AnalysisStatus describes the analysis lifecycle of a session.
type AnalysisStatus string

const (
	AnalysisNotAnalyzed AnalysisStatus = "not_analyzed"
	AnalysisAnalyzing   AnalysisStatus = "analyzing"
	AnalysisAnalyzed    AnalysisStatus = "analyzed"
	AnalysisFailed      AnalysisStatus = "failed"
)

// Gender is the closed set of profile gender values forwarded to the analyzer.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// Valid reports whether g is one of the accepted gender values.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// Intake validation failures. Both are local pre-flight errors and never
// reach the network.
var (
	ErrFileTooLarge    = errors.New("file size must be less than 200MB")
	ErrUnsupportedType = errors.New("please upload a valid video or image file (MP4, AVI, MOV, MKV, MPEG4, JPEG, PNG, WEBP)")
)

// MediaFile references a staged media blob. The bytes themselves live in
// staging storage; ObjectKey is the opaque handle to them.
type MediaFile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	ObjectKey   string `json:"-"`
}

// PersonalProfile holds the user-entered biometrics. Height and weight are
// free-form decimal strings forwarded verbatim to the analyzer.
type PersonalProfile struct {
	HeightCm string `json:"height"`
	WeightKg string `json:"weight"`
	Gender   Gender `json:"gender"`
}

// MeasurementResult is the decoded analyzer response. It is only ever fully
// populated; a failed decode never produces a partial result.
type MeasurementResult struct {
	Gender      string  `json:"gender"`
	Shoulder    float64 `json:"shoulder"`
	Waist       float64 `json:"waist"`
	Chest       float64 `json:"chest"`
	InseamLeft  float64 `json:"inseam_left"`
	InseamRight float64 `json:"inseam_right"`
	Hips        float64 `json:"hips"`
	BMI         float64 `json:"bmi"`
}

// IntakeState is the visible upload lifecycle. Progress is monotonic within
// one upload run and resets to 0 when a new run begins. Rejection holds the
// dismissible notice of the most recent rejected candidate; a rejection does
// not disturb a previously ready file.
type IntakeState struct {
	Status    IntakeStatus `json:"status"`
	Progress  int          `json:"progress"`
	Rejection string       `json:"rejection,omitempty"`
}

// AnalysisState tracks the single outstanding analysis attempt, if any.
type AnalysisState struct {
	Status  AnalysisStatus `json:"status"`
	Message string         `json:"message,omitempty"`
}

// Session aggregates the profile, the current media file (at most one) and
// both lifecycle states. Sessions never expire on their own.
type Session struct {
	ID        string             `json:"id"`
	Profile   PersonalProfile    `json:"profile"`
	Media     *MediaFile         `json:"media,omitempty"`
	Intake    IntakeState        `json:"intake"`
	Analysis  AnalysisState      `json:"analysis"`
	Result    *MeasurementResult `json:"result,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// NewSession returns an idle session with the given profile.
func NewSession(id string, profile PersonalProfile) *Session {
	return &Session{
		ID:       id,
		Profile:  profile,
		Intake:   IntakeState{Status: IntakeIdle},
		Analysis: AnalysisState{Status: AnalysisNotAnalyzed},
	}
}

// DefaultProfile mirrors the values the analyzer page starts with.
func DefaultProfile() PersonalProfile {
	return PersonalProfile{HeightCm: "170.00", WeightKg: "75.00", Gender: GenderMale}
}
