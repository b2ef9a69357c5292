package events

import "github.com/preclinical-platform/platform/pkg/common/models"

// Lifecycle events published by the study service on every committed write.
// Payloads carry the post-write entity snapshot.

type Event interface {
	EventType() string
}

type StudyCreated struct {
	Study models.Study
}

func (StudyCreated) EventType() string { return "study.created" }

type StudyStatusChanged struct {
	Study     models.Study
	OldStatus models.StudyStatus
	NewStatus models.StudyStatus
}

func (StudyStatusChanged) EventType() string { return "study.status_changed" }

type PatientEnrolled struct {
	Patient models.Patient
}

func (PatientEnrolled) EventType() string { return "patient.enrolled" }

type PatientUpdated struct {
	Patient models.Patient
}

func (PatientUpdated) EventType() string { return "patient.updated" }

type PatientStatusChanged struct {
	Patient   models.Patient
	OldStatus models.PatientStatus
	NewStatus models.PatientStatus
}

func (PatientStatusChanged) EventType() string { return "patient.status_changed" }

type MeasurementRecorded struct {
	Measurement models.EfficacyMeasurement
}

func (MeasurementRecorded) EventType() string { return "measurement.recorded" }

// SeriousAdverseEventAlert fires exactly once per serious adverse event
// creation. It is the only trigger for the critical alert channel.
type SeriousAdverseEventAlert struct {
	Event models.AdverseEvent
}

func (SeriousAdverseEventAlert) EventType() string { return "adverse_event.sae_alert" }
