package study

import (
	"context"

	"github.com/google/uuid"
	"github.com/preclinical-platform/platform/pkg/common/models"
)

// Store contracts consumed by the lifecycle and analysis services. The gorm
// Repository implements all four; tests substitute in-memory fakes.

type StudyStore interface {
	GetStudy(ctx context.Context, id uuid.UUID) (models.Study, error)
	GetStudyByCode(ctx context.Context, code string) (models.Study, error)
	ListStudiesByStatus(ctx context.Context, status models.StudyStatus) ([]models.Study, error)
	ListStudiesByPhaseAndStatus(ctx context.Context, phase models.StudyPhase, status models.StudyStatus) ([]models.Study, error)
	SaveStudy(ctx context.Context, study models.Study) (models.Study, error)
}

type PatientStore interface {
	GetPatient(ctx context.Context, id uuid.UUID) (models.Patient, error)
	GetPatientByCode(ctx context.Context, code string) (models.Patient, error)
	ListPatientsByStudy(ctx context.Context, studyID uuid.UUID) ([]models.Patient, error)
	CountPatientsByStudy(ctx context.Context, studyID uuid.UUID) (int64, error)
	CountCompletedPatientsByStudy(ctx context.Context, studyID uuid.UUID) (int64, error)
	SavePatient(ctx context.Context, patient models.Patient) (models.Patient, error)
}

type AdverseEventStore interface {
	ListEventsByStudy(ctx context.Context, studyID uuid.UUID) ([]models.AdverseEvent, error)
	ListEventsByPatient(ctx context.Context, patientID uuid.UUID) ([]models.AdverseEvent, error)
	ListAllEvents(ctx context.Context) ([]models.AdverseEvent, error)
	SaveEvent(ctx context.Context, event models.AdverseEvent) (models.AdverseEvent, error)
}

type MeasurementStore interface {
	ListMeasurementsByStudy(ctx context.Context, studyID uuid.UUID) ([]models.EfficacyMeasurement, error)
	ListMeasurementsByPatient(ctx context.Context, patientID uuid.UUID) ([]models.EfficacyMeasurement, error)
	ListMeasurementsByPatientAndType(ctx context.Context, patientID uuid.UUID, measurementType models.MeasurementType) ([]models.EfficacyMeasurement, error)
	SaveMeasurement(ctx context.Context, measurement models.EfficacyMeasurement) (models.EfficacyMeasurement, error)
}
