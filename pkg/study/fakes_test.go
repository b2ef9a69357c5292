package study

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/preclinical-platform/platform/pkg/common/errs"
	"github.com/preclinical-platform/platform/pkg/common/models"
)

// fakeStore is an in-memory implementation of the four store contracts,
// mirroring the repository's not-found and duplicate-key behavior.
type fakeStore struct {
	mu            sync.Mutex
	studies       map[uuid.UUID]models.Study
	patients      map[uuid.UUID]models.Patient
	events        []models.AdverseEvent
	measurements  []models.EfficacyMeasurement
	studyGetCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		studies:  make(map[uuid.UUID]models.Study),
		patients: make(map[uuid.UUID]models.Patient),
	}
}

func (f *fakeStore) GetStudy(_ context.Context, id uuid.UUID) (models.Study, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.studyGetCalls++
	study, ok := f.studies[id]
	if !ok {
		return models.Study{}, errs.NotFound("study %s not found", id)
	}
	return study, nil
}

func (f *fakeStore) GetStudyByCode(_ context.Context, code string) (models.Study, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, study := range f.studies {
		if study.StudyCode == code {
			return study, nil
		}
	}
	return models.Study{}, errs.NotFound("study with code %s not found", code)
}

func (f *fakeStore) ListStudiesByStatus(_ context.Context, status models.StudyStatus) ([]models.Study, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Study
	for _, study := range f.studies {
		if study.Status == status {
			out = append(out, study)
		}
	}
	return out, nil
}

func (f *fakeStore) ListStudiesByPhaseAndStatus(_ context.Context, phase models.StudyPhase, status models.StudyStatus) ([]models.Study, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Study
	for _, study := range f.studies {
		if study.Phase == phase && study.Status == status {
			out = append(out, study)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveStudy(_ context.Context, study models.Study) (models.Study, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.studies {
		if existing.StudyCode == study.StudyCode && existing.ID != study.ID {
			return models.Study{}, errs.DuplicateKey("study code %s already exists", study.StudyCode)
		}
	}
	f.studies[study.ID] = study
	return study, nil
}

func (f *fakeStore) GetPatient(_ context.Context, id uuid.UUID) (models.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	patient, ok := f.patients[id]
	if !ok {
		return models.Patient{}, errs.NotFound("patient %s not found", id)
	}
	return patient, nil
}

func (f *fakeStore) GetPatientByCode(_ context.Context, code string) (models.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, patient := range f.patients {
		if patient.PatientCode == code {
			return patient, nil
		}
	}
	return models.Patient{}, errs.NotFound("patient with code %s not found", code)
}

func (f *fakeStore) ListPatientsByStudy(_ context.Context, studyID uuid.UUID) ([]models.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Patient
	for _, patient := range f.patients {
		if patient.StudyID == studyID {
			out = append(out, patient)
		}
	}
	return out, nil
}

func (f *fakeStore) CountPatientsByStudy(_ context.Context, studyID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, patient := range f.patients {
		if patient.StudyID == studyID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) CountCompletedPatientsByStudy(_ context.Context, studyID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, patient := range f.patients {
		if patient.StudyID == studyID && patient.Status == models.PatientCompleted {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) SavePatient(_ context.Context, patient models.Patient) (models.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.patients {
		if existing.PatientCode == patient.PatientCode && existing.ID != patient.ID {
			return models.Patient{}, errs.DuplicateKey("patient code %s already exists", patient.PatientCode)
		}
	}
	f.patients[patient.ID] = patient
	return patient, nil
}

func (f *fakeStore) ListEventsByStudy(_ context.Context, studyID uuid.UUID) ([]models.AdverseEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AdverseEvent
	for _, evt := range f.events {
		if evt.StudyID == studyID {
			out = append(out, evt)
		}
	}
	return out, nil
}

func (f *fakeStore) ListEventsByPatient(_ context.Context, patientID uuid.UUID) ([]models.AdverseEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AdverseEvent
	for _, evt := range f.events {
		if evt.PatientID == patientID {
			out = append(out, evt)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAllEvents(_ context.Context) ([]models.AdverseEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AdverseEvent, len(f.events))
	copy(out, f.events)
	return out, nil
}

func (f *fakeStore) SaveEvent(_ context.Context, event models.AdverseEvent) (models.AdverseEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return event, nil
}

func (f *fakeStore) ListMeasurementsByStudy(_ context.Context, studyID uuid.UUID) ([]models.EfficacyMeasurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EfficacyMeasurement
	for _, m := range f.measurements {
		if m.StudyID == studyID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) ListMeasurementsByPatient(_ context.Context, patientID uuid.UUID) ([]models.EfficacyMeasurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EfficacyMeasurement
	for _, m := range f.measurements {
		if m.PatientID == patientID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) ListMeasurementsByPatientAndType(_ context.Context, patientID uuid.UUID, measurementType models.MeasurementType) ([]models.EfficacyMeasurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EfficacyMeasurement
	for _, m := range f.measurements {
		if m.PatientID == patientID && m.MeasurementType == measurementType {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveMeasurement(_ context.Context, measurement models.EfficacyMeasurement) (models.EfficacyMeasurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.measurements = append(f.measurements, measurement)
	return measurement, nil
}
