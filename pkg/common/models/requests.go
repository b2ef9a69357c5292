package models

import "time"

// Create/update request payloads. Pointer fields on update requests mean
// "leave unchanged" when nil.

type CreateStudyRequest struct {
	StudyCode string     `json:"study_code"`
	Title     string     `json:"title"`
	Objective string     `json:"objective,omitempty"`
	Phase     StudyPhase `json:"phase"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

type UpdateStudyRequest struct {
	Title     *string    `json:"title,omitempty"`
	Objective *string    `json:"objective,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

type UpdateStudyStatusRequest struct {
	Status StudyStatus `json:"status"`
}

type CreatePatientRequest struct {
	PatientCode    string   `json:"patient_code"`
	Age            int      `json:"age"`
	Gender         Gender   `json:"gender"`
	Weight         *float64 `json:"weight,omitempty"`
	Height         *float64 `json:"height,omitempty"`
	MedicalHistory string   `json:"medical_history,omitempty"`
}

type UpdatePatientRequest struct {
	Weight         *float64 `json:"weight,omitempty"`
	Height         *float64 `json:"height,omitempty"`
	MedicalHistory *string  `json:"medical_history,omitempty"`
}

type UpdatePatientStatusRequest struct {
	Status PatientStatus `json:"status"`
}

type CreateAdverseEventRequest struct {
	EventTerm      string     `json:"event_term"`
	Severity       Severity   `json:"severity"`
	Causality      Causality  `json:"causality"`
	OnsetDate      time.Time  `json:"onset_date"`
	ResolutionDate *time.Time `json:"resolution_date,omitempty"`
	Description    string     `json:"description,omitempty"`
	Serious        bool       `json:"serious"`
}

type CreateMeasurementRequest struct {
	MeasurementDate time.Time       `json:"measurement_date"`
	StudyDay        int             `json:"study_day"`
	MeasurementType MeasurementType `json:"measurement_type"`
	Value           *float64        `json:"value,omitempty"`
	Unit            string          `json:"unit,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	NormalRangeLow  *float64        `json:"normal_range_low,omitempty"`
	NormalRangeHigh *float64        `json:"normal_range_high,omitempty"`
}
