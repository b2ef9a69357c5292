package analysis

import (
	"context"

	"github.com/google/uuid"
	"github.com/preclinical-platform/platform/pkg/common/errs"
	"github.com/preclinical-platform/platform/pkg/common/models"
)

// fakeStore holds fixture records and satisfies the four store contracts the
// analysis service reads from.
type fakeStore struct {
	studies      []models.Study
	patients     []models.Patient
	events       []models.AdverseEvent
	measurements []models.EfficacyMeasurement

	eventListCalls int
}

func (f *fakeStore) GetStudy(_ context.Context, id uuid.UUID) (models.Study, error) {
	for _, study := range f.studies {
		if study.ID == id {
			return study, nil
		}
	}
	return models.Study{}, errs.NotFound("study %s not found", id)
}

func (f *fakeStore) GetStudyByCode(_ context.Context, code string) (models.Study, error) {
	for _, study := range f.studies {
		if study.StudyCode == code {
			return study, nil
		}
	}
	return models.Study{}, errs.NotFound("study with code %s not found", code)
}

func (f *fakeStore) ListStudiesByStatus(_ context.Context, status models.StudyStatus) ([]models.Study, error) {
	var out []models.Study
	for _, study := range f.studies {
		if study.Status == status {
			out = append(out, study)
		}
	}
	return out, nil
}

func (f *fakeStore) ListStudiesByPhaseAndStatus(_ context.Context, phase models.StudyPhase, status models.StudyStatus) ([]models.Study, error) {
	var out []models.Study
	for _, study := range f.studies {
		if study.Phase == phase && study.Status == status {
			out = append(out, study)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveStudy(_ context.Context, study models.Study) (models.Study, error) {
	f.studies = append(f.studies, study)
	return study, nil
}

func (f *fakeStore) GetPatient(_ context.Context, id uuid.UUID) (models.Patient, error) {
	for _, patient := range f.patients {
		if patient.ID == id {
			return patient, nil
		}
	}
	return models.Patient{}, errs.NotFound("patient %s not found", id)
}

func (f *fakeStore) GetPatientByCode(_ context.Context, code string) (models.Patient, error) {
	for _, patient := range f.patients {
		if patient.PatientCode == code {
			return patient, nil
		}
	}
	return models.Patient{}, errs.NotFound("patient with code %s not found", code)
}

func (f *fakeStore) ListPatientsByStudy(_ context.Context, studyID uuid.UUID) ([]models.Patient, error) {
	var out []models.Patient
	for _, patient := range f.patients {
		if patient.StudyID == studyID {
			out = append(out, patient)
		}
	}
	return out, nil
}

func (f *fakeStore) CountPatientsByStudy(_ context.Context, studyID uuid.UUID) (int64, error) {
	var count int64
	for _, patient := range f.patients {
		if patient.StudyID == studyID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) CountCompletedPatientsByStudy(_ context.Context, studyID uuid.UUID) (int64, error) {
	var count int64
	for _, patient := range f.patients {
		if patient.StudyID == studyID && patient.Status == models.PatientCompleted {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) SavePatient(_ context.Context, patient models.Patient) (models.Patient, error) {
	f.patients = append(f.patients, patient)
	return patient, nil
}

func (f *fakeStore) ListEventsByStudy(_ context.Context, studyID uuid.UUID) ([]models.AdverseEvent, error) {
	f.eventListCalls++
	var out []models.AdverseEvent
	for _, evt := range f.events {
		if evt.StudyID == studyID {
			out = append(out, evt)
		}
	}
	return out, nil
}

func (f *fakeStore) ListEventsByPatient(_ context.Context, patientID uuid.UUID) ([]models.AdverseEvent, error) {
	var out []models.AdverseEvent
	for _, evt := range f.events {
		if evt.PatientID == patientID {
			out = append(out, evt)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAllEvents(_ context.Context) ([]models.AdverseEvent, error) {
	out := make([]models.AdverseEvent, len(f.events))
	copy(out, f.events)
	return out, nil
}

func (f *fakeStore) SaveEvent(_ context.Context, event models.AdverseEvent) (models.AdverseEvent, error) {
	f.events = append(f.events, event)
	return event, nil
}

func (f *fakeStore) ListMeasurementsByStudy(_ context.Context, studyID uuid.UUID) ([]models.EfficacyMeasurement, error) {
	var out []models.EfficacyMeasurement
	for _, m := range f.measurements {
		if m.StudyID == studyID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) ListMeasurementsByPatient(_ context.Context, patientID uuid.UUID) ([]models.EfficacyMeasurement, error) {
	var out []models.EfficacyMeasurement
	for _, m := range f.measurements {
		if m.PatientID == patientID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) ListMeasurementsByPatientAndType(_ context.Context, patientID uuid.UUID, measurementType models.MeasurementType) ([]models.EfficacyMeasurement, error) {
	var out []models.EfficacyMeasurement
	for _, m := range f.measurements {
		if m.PatientID == patientID && m.MeasurementType == measurementType {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveMeasurement(_ context.Context, measurement models.EfficacyMeasurement) (models.EfficacyMeasurement, error) {
	f.measurements = append(f.measurements, measurement)
	return measurement, nil
}
