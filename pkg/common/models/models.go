package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Study lifecycle
type StudyStatus string

const (
	StudyPlanned    StudyStatus = "PLANNED"
	StudyActive     StudyStatus = "ACTIVE"
	StudyCompleted  StudyStatus = "COMPLETED"
	StudyTerminated StudyStatus = "TERMINATED"
	StudySuspended  StudyStatus = "SUSPENDED"
)

type StudyPhase string

const (
	PhasePreclinical StudyPhase = "PRECLINICAL"
	PhaseI           StudyPhase = "PHASE_I"
	PhaseII          StudyPhase = "PHASE_II"
	PhaseIII         StudyPhase = "PHASE_III"
	PhaseIV          StudyPhase = "PHASE_IV"
)

type Study struct {
	ID        uuid.UUID   `json:"id"`
	StudyCode string      `json:"study_code"`
	Title     string      `json:"title"`
	Objective string      `json:"objective,omitempty"`
	Phase     StudyPhase  `json:"phase"`
	Status    StudyStatus `json:"status"`
	StartDate time.Time   `json:"start_date"`
	EndDate   *time.Time  `json:"end_date,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Patient lifecycle
type PatientStatus string

const (
	PatientEnrolled     PatientStatus = "ENROLLED"
	PatientActive       PatientStatus = "ACTIVE"
	PatientCompleted    PatientStatus = "COMPLETED"
	PatientWithdrawn    PatientStatus = "WITHDRAWN"
	PatientDiscontinued PatientStatus = "DISCONTINUED"
)

type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
	GenderOther  Gender = "OTHER"
)

type Patient struct {
	ID             uuid.UUID     `json:"id"`
	StudyID        uuid.UUID     `json:"study_id"`
	PatientCode    string        `json:"patient_code"`
	Age            int           `json:"age"`
	Gender         Gender        `json:"gender"`
	Weight         *float64      `json:"weight,omitempty"`
	Height         *float64      `json:"height,omitempty"`
	Status         PatientStatus `json:"status"`
	EnrollmentDate time.Time     `json:"enrollment_date"`
	CompletionDate *time.Time    `json:"completion_date,omitempty"`
	MedicalHistory string        `json:"medical_history,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Adverse events
type Severity string

const (
	SeverityMild     Severity = "MILD"
	SeverityModerate Severity = "MODERATE"
	SeveritySevere   Severity = "SEVERE"
)

// Causality is an ordered scale from UNRELATED up to DEFINITE.
type Causality string

const (
	CausalityUnrelated Causality = "UNRELATED"
	CausalityUnlikely  Causality = "UNLIKELY"
	CausalityPossible  Causality = "POSSIBLE"
	CausalityProbable  Causality = "PROBABLE"
	CausalityDefinite  Causality = "DEFINITE"
)

type Outcome string

const (
	OutcomeRecovered    Outcome = "RECOVERED"
	OutcomeRecovering   Outcome = "RECOVERING"
	OutcomeNotRecovered Outcome = "NOT_RECOVERED"
	OutcomeFatal        Outcome = "FATAL"
	OutcomeUnknown      Outcome = "UNKNOWN"
)

type AdverseEvent struct {
	ID             uuid.UUID  `json:"id"`
	PatientID      uuid.UUID  `json:"patient_id"`
	StudyID        uuid.UUID  `json:"study_id"`
	EventTerm      string     `json:"event_term"`
	Severity       Severity   `json:"severity"`
	Causality      Causality  `json:"causality"`
	OnsetDate      time.Time  `json:"onset_date"`
	ResolutionDate *time.Time `json:"resolution_date,omitempty"`
	Description    string     `json:"description,omitempty"`
	Outcome        Outcome    `json:"outcome"`
	Serious        bool       `json:"serious"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Efficacy measurements
type MeasurementType string

const (
	MeasurementBloodPressureSystolic  MeasurementType = "BLOOD_PRESSURE_SYSTOLIC"
	MeasurementBloodPressureDiastolic MeasurementType = "BLOOD_PRESSURE_DIASTOLIC"
	MeasurementHeartRate              MeasurementType = "HEART_RATE"
	MeasurementWeight                 MeasurementType = "WEIGHT"
	MeasurementPainScore              MeasurementType = "PAIN_SCORE"
	MeasurementTumorSize              MeasurementType = "TUMOR_SIZE"
	MeasurementBiomarkerLevel         MeasurementType = "BIOMARKER_LEVEL"
	MeasurementQualityOfLifeScore     MeasurementType = "QUALITY_OF_LIFE_SCORE"
	MeasurementEfficacyScore          MeasurementType = "EFFICACY_SCORE"
	MeasurementLaboratoryValue        MeasurementType = "LABORATORY_VALUE"
	MeasurementImaging                MeasurementType = "IMAGING_MEASUREMENT"
	MeasurementOther                  MeasurementType = "OTHER"
)

type MeasurementStatus string

const (
	MeasurementRecorded     MeasurementStatus = "RECORDED"
	MeasurementVerified     MeasurementStatus = "VERIFIED"
	MeasurementQueryPending MeasurementStatus = "QUERY_PENDING"
	MeasurementCorrected    MeasurementStatus = "CORRECTED"
	MeasurementInvalid      MeasurementStatus = "INVALID"
)

type EfficacyMeasurement struct {
	ID              uuid.UUID         `json:"id"`
	PatientID       uuid.UUID         `json:"patient_id"`
	StudyID         uuid.UUID         `json:"study_id"`
	MeasurementDate time.Time         `json:"measurement_date"`
	StudyDay        int               `json:"study_day"`
	MeasurementType MeasurementType   `json:"measurement_type"`
	Value           *float64          `json:"value,omitempty"`
	Unit            string            `json:"unit,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	Status          MeasurementStatus `json:"status"`
	NormalRangeLow  *float64          `json:"normal_range_low,omitempty"`
	NormalRangeHigh *float64          `json:"normal_range_high,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// WithinNormalRange reports whether the value sits inside [low, high].
// Missing value or missing bounds count as out of range.
func (m EfficacyMeasurement) WithinNormalRange() bool {
	if m.Value == nil || m.NormalRangeLow == nil || m.NormalRangeHigh == nil {
		return false
	}
	return *m.Value >= *m.NormalRangeLow && *m.Value <= *m.NormalRangeHigh
}

// PercentChangeFrom computes the percentage change of this measurement
// relative to baseline, rounded to two decimals. Nil when either value is
// absent or the baseline is zero.
func (m EfficacyMeasurement) PercentChangeFrom(baseline *float64) *float64 {
	if baseline == nil || m.Value == nil || *baseline == 0 {
		return nil
	}
	change := math.Round((*m.Value-*baseline)/(*baseline)*100*100) / 100
	return &change
}

// IsDrugRelated reports whether the causality assessment implicates the
// study drug (PROBABLE or DEFINITE).
func (e AdverseEvent) IsDrugRelated() bool {
	return e.Causality == CausalityProbable || e.Causality == CausalityDefinite
}
