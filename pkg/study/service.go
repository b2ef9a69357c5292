package study

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/preclinical-platform/platform/pkg/common/cache"
	"github.com/preclinical-platform/platform/pkg/common/config"
	"github.com/preclinical-platform/platform/pkg/common/errs"
	"github.com/preclinical-platform/platform/pkg/common/logger"
	"github.com/preclinical-platform/platform/pkg/common/models"
	"github.com/preclinical-platform/platform/pkg/events"
)

// Service is the lifecycle engine for studies and patients. Every committed
// write publishes its event synchronously and evicts exactly the cache keys
// it invalidated. Status transitions are deliberately unconstrained beyond
// the enrollment gate; see the status tests for the documented behavior.
type Service struct {
	studies      StudyStore
	patients     PatientStore
	events       AdverseEventStore
	measurements MeasurementStore
	bus          *events.Bus
	cache        cache.Cache
	props        config.Properties
	now          func() time.Time
}

func NewService(studies StudyStore, patients PatientStore, adverseEvents AdverseEventStore, measurements MeasurementStore, bus *events.Bus, c cache.Cache, props config.Properties) *Service {
	return &Service{
		studies:      studies,
		patients:     patients,
		events:       adverseEvents,
		measurements: measurements,
		bus:          bus,
		cache:        c,
		props:        props,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) CreateStudy(ctx context.Context, req models.CreateStudyRequest) (models.Study, error) {
	if err := validateCreateStudy(req); err != nil {
		return models.Study{}, err
	}

	now := s.now()
	endDate := req.EndDate
	if endDate == nil && s.props.Study.DefaultStudyDurationDays > 0 {
		d := req.StartDate.AddDate(0, 0, s.props.Study.DefaultStudyDurationDays)
		endDate = &d
	}

	study := models.Study{
		ID:        uuid.New(),
		StudyCode: req.StudyCode,
		Title:     req.Title,
		Objective: req.Objective,
		Phase:     req.Phase,
		Status:    models.StudyPlanned,
		StartDate: req.StartDate,
		EndDate:   endDate,
		CreatedAt: now,
		UpdatedAt: now,
	}

	saved, err := s.studies.SaveStudy(ctx, study)
	if err != nil {
		return models.Study{}, err
	}
	s.bus.Publish(ctx, events.StudyCreated{Study: saved})

	if s.props.Study.AutoActivateOnCreation {
		return s.SetStudyStatus(ctx, saved.ID, models.StudyActive)
	}
	return saved, nil
}

func (s *Service) GetStudyByID(ctx context.Context, id uuid.UUID) (models.Study, error) {
	var study models.Study
	if data, ok := s.cache.Get(ctx, cache.StudyKey(id)); ok {
		if err := json.Unmarshal(data, &study); err == nil {
			return study, nil
		}
	}

	study, err := s.studies.GetStudy(ctx, id)
	if err != nil {
		return models.Study{}, err
	}
	s.cacheStudy(ctx, study)
	return study, nil
}

func (s *Service) GetStudyByCode(ctx context.Context, code string) (models.Study, error) {
	var study models.Study
	if data, ok := s.cache.Get(ctx, cache.StudyCodeKey(code)); ok {
		if err := json.Unmarshal(data, &study); err == nil {
			return study, nil
		}
	}

	study, err := s.studies.GetStudyByCode(ctx, code)
	if err != nil {
		return models.Study{}, err
	}
	s.cacheStudy(ctx, study)
	return study, nil
}

func (s *Service) GetActiveStudies(ctx context.Context) ([]models.Study, error) {
	return s.studies.ListStudiesByStatus(ctx, models.StudyActive)
}

func (s *Service) GetStudiesByPhase(ctx context.Context, phase models.StudyPhase) ([]models.Study, error) {
	return s.studies.ListStudiesByPhaseAndStatus(ctx, phase, models.StudyActive)
}

// UpdateStudy applies a partial update to title, objective and end date.
// Absent fields are left untouched. Status is never changed here.
func (s *Service) UpdateStudy(ctx context.Context, id uuid.UUID, req models.UpdateStudyRequest) (models.Study, error) {
	study, err := s.GetStudyByID(ctx, id)
	if err != nil {
		return models.Study{}, err
	}
	if err := validateUpdateStudy(study, req); err != nil {
		return models.Study{}, err
	}

	if req.Title != nil {
		study.Title = *req.Title
	}
	if req.Objective != nil {
		study.Objective = *req.Objective
	}
	if req.EndDate != nil {
		study.EndDate = req.EndDate
	}
	study.UpdatedAt = s.now()

	saved, err := s.studies.SaveStudy(ctx, study)
	if err != nil {
		return models.Study{}, err
	}
	s.evictStudy(ctx, saved)
	return saved, nil
}

// SetStudyStatus sets the status unconditionally; no transition table is
// enforced at this layer. The only gate tied to status is patient
// enrollment, which requires ACTIVE.
func (s *Service) SetStudyStatus(ctx context.Context, id uuid.UUID, status models.StudyStatus) (models.Study, error) {
	study, err := s.GetStudyByID(ctx, id)
	if err != nil {
		return models.Study{}, err
	}

	oldStatus := study.Status
	study.Status = status
	study.UpdatedAt = s.now()

	saved, err := s.studies.SaveStudy(ctx, study)
	if err != nil {
		return models.Study{}, err
	}
	s.evictStudy(ctx, saved)
	s.bus.Publish(ctx, events.StudyStatusChanged{Study: saved, OldStatus: oldStatus, NewStatus: status})
	return saved, nil
}

// EnrollPatient creates a patient against a study. The study must be ACTIVE
// and below the configured enrollment ceiling; anything else is IllegalState
// and no patient record is created.
func (s *Service) EnrollPatient(ctx context.Context, studyID uuid.UUID, req models.CreatePatientRequest) (models.Patient, error) {
	study, err := s.GetStudyByID(ctx, studyID)
	if err != nil {
		return models.Patient{}, err
	}
	if study.Status != models.StudyActive {
		return models.Patient{}, errs.IllegalState("cannot enroll patient in non-active study %s", study.StudyCode)
	}
	if err := validateCreatePatient(req, s.props.Patient); err != nil {
		return models.Patient{}, err
	}

	if s.props.Study.MaxEnrollment > 0 {
		enrolled, err := s.patients.CountPatientsByStudy(ctx, studyID)
		if err != nil {
			return models.Patient{}, err
		}
		if enrolled >= int64(s.props.Study.MaxEnrollment) {
			return models.Patient{}, errs.IllegalState("study %s reached its enrollment limit of %d", study.StudyCode, s.props.Study.MaxEnrollment)
		}
	}

	now := s.now()
	patient := models.Patient{
		ID:             uuid.New(),
		StudyID:        studyID,
		PatientCode:    req.PatientCode,
		Age:            req.Age,
		Gender:         req.Gender,
		Weight:         req.Weight,
		Height:         req.Height,
		Status:         models.PatientEnrolled,
		EnrollmentDate: now,
		MedicalHistory: req.MedicalHistory,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	saved, err := s.patients.SavePatient(ctx, patient)
	if err != nil {
		return models.Patient{}, err
	}
	s.bus.Publish(ctx, events.PatientEnrolled{Patient: saved})
	return saved, nil
}

func (s *Service) GetPatientByID(ctx context.Context, id uuid.UUID) (models.Patient, error) {
	var patient models.Patient
	if data, ok := s.cache.Get(ctx, cache.PatientKey(id)); ok {
		if err := json.Unmarshal(data, &patient); err == nil {
			return patient, nil
		}
	}

	patient, err := s.patients.GetPatient(ctx, id)
	if err != nil {
		return models.Patient{}, err
	}
	s.cachePatient(ctx, patient)
	return patient, nil
}

func (s *Service) GetPatientByCode(ctx context.Context, code string) (models.Patient, error) {
	var patient models.Patient
	if data, ok := s.cache.Get(ctx, cache.PatientCodeKey(code)); ok {
		if err := json.Unmarshal(data, &patient); err == nil {
			return patient, nil
		}
	}

	patient, err := s.patients.GetPatientByCode(ctx, code)
	if err != nil {
		return models.Patient{}, err
	}
	s.cachePatient(ctx, patient)
	return patient, nil
}

func (s *Service) GetPatientsByStudy(ctx context.Context, studyID uuid.UUID) ([]models.Patient, error) {
	if _, err := s.GetStudyByID(ctx, studyID); err != nil {
		return nil, err
	}
	return s.patients.ListPatientsByStudy(ctx, studyID)
}

// UpdatePatient applies a partial update to weight, height and medical
// history. Absent fields are left untouched.
func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, req models.UpdatePatientRequest) (models.Patient, error) {
	patient, err := s.GetPatientByID(ctx, id)
	if err != nil {
		return models.Patient{}, err
	}
	if err := validateUpdatePatient(req); err != nil {
		return models.Patient{}, err
	}

	if req.Weight != nil {
		patient.Weight = req.Weight
	}
	if req.Height != nil {
		patient.Height = req.Height
	}
	if req.MedicalHistory != nil {
		patient.MedicalHistory = *req.MedicalHistory
	}
	patient.UpdatedAt = s.now()

	saved, err := s.patients.SavePatient(ctx, patient)
	if err != nil {
		return models.Patient{}, err
	}
	s.evictPatient(ctx, saved)
	s.bus.Publish(ctx, events.PatientUpdated{Patient: saved})
	return saved, nil
}

// SetPatientStatus sets the status unconditionally. The first transition
// into COMPLETED stamps the completion date; repeated completions leave the
// already-set date untouched.
func (s *Service) SetPatientStatus(ctx context.Context, id uuid.UUID, status models.PatientStatus) (models.Patient, error) {
	patient, err := s.GetPatientByID(ctx, id)
	if err != nil {
		return models.Patient{}, err
	}

	oldStatus := patient.Status
	patient.Status = status
	if status == models.PatientCompleted && patient.CompletionDate == nil {
		completed := s.now()
		patient.CompletionDate = &completed
	}
	patient.UpdatedAt = s.now()

	saved, err := s.patients.SavePatient(ctx, patient)
	if err != nil {
		return models.Patient{}, err
	}
	s.evictPatient(ctx, saved)
	s.bus.Publish(ctx, events.PatientStatusChanged{Patient: saved, OldStatus: oldStatus, NewStatus: status})
	return saved, nil
}

// RecordAdverseEvent persists a new adverse event against a patient. The
// study reference is denormalized from the patient. A serious event
// publishes exactly one SeriousAdverseEventAlert, synchronously and without
// retry; delivery reliability beyond that is the notifier's concern.
func (s *Service) RecordAdverseEvent(ctx context.Context, patientID uuid.UUID, req models.CreateAdverseEventRequest) (models.AdverseEvent, error) {
	patient, err := s.GetPatientByID(ctx, patientID)
	if err != nil {
		return models.AdverseEvent{}, err
	}
	if err := validateCreateAdverseEvent(req); err != nil {
		return models.AdverseEvent{}, err
	}

	now := s.now()
	event := models.AdverseEvent{
		ID:             uuid.New(),
		PatientID:      patient.ID,
		StudyID:        patient.StudyID,
		EventTerm:      req.EventTerm,
		Severity:       req.Severity,
		Causality:      req.Causality,
		OnsetDate:      req.OnsetDate,
		ResolutionDate: req.ResolutionDate,
		Description:    req.Description,
		Outcome:        models.OutcomeUnknown,
		Serious:        req.Serious,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	saved, err := s.events.SaveEvent(ctx, event)
	if err != nil {
		return models.AdverseEvent{}, err
	}

	if saved.Serious && s.props.AdverseEvent.AutoReportSeriousEvents {
		logger.Log.WithFields(map[string]interface{}{
			"event_term": saved.EventTerm,
			"patient_id": saved.PatientID,
		}).Warn("serious adverse event recorded")
		s.bus.Publish(ctx, events.SeriousAdverseEventAlert{Event: saved})
	}
	return saved, nil
}

func (s *Service) GetPatientAdverseEvents(ctx context.Context, patientID uuid.UUID) ([]models.AdverseEvent, error) {
	if _, err := s.GetPatientByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.events.ListEventsByPatient(ctx, patientID)
}

func (s *Service) RecordMeasurement(ctx context.Context, patientID uuid.UUID, req models.CreateMeasurementRequest) (models.EfficacyMeasurement, error) {
	patient, err := s.GetPatientByID(ctx, patientID)
	if err != nil {
		return models.EfficacyMeasurement{}, err
	}
	if err := validateCreateMeasurement(req); err != nil {
		return models.EfficacyMeasurement{}, err
	}

	now := s.now()
	measurement := models.EfficacyMeasurement{
		ID:              uuid.New(),
		PatientID:       patient.ID,
		StudyID:         patient.StudyID,
		MeasurementDate: req.MeasurementDate,
		StudyDay:        req.StudyDay,
		MeasurementType: req.MeasurementType,
		Value:           req.Value,
		Unit:            req.Unit,
		Notes:           req.Notes,
		Status:          models.MeasurementRecorded,
		NormalRangeLow:  req.NormalRangeLow,
		NormalRangeHigh: req.NormalRangeHigh,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	saved, err := s.measurements.SaveMeasurement(ctx, measurement)
	if err != nil {
		return models.EfficacyMeasurement{}, err
	}
	s.bus.Publish(ctx, events.MeasurementRecorded{Measurement: saved})
	return saved, nil
}

func (s *Service) GetPatientMeasurements(ctx context.Context, patientID uuid.UUID) ([]models.EfficacyMeasurement, error) {
	if _, err := s.GetPatientByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.measurements.ListMeasurementsByPatient(ctx, patientID)
}

func (s *Service) StudyStatistics(ctx context.Context, studyID uuid.UUID) (models.StudyStatisticsReport, error) {
	study, err := s.GetStudyByID(ctx, studyID)
	if err != nil {
		return models.StudyStatisticsReport{}, err
	}

	totalPatients, err := s.patients.CountPatientsByStudy(ctx, studyID)
	if err != nil {
		return models.StudyStatisticsReport{}, err
	}
	completedPatients, err := s.patients.CountCompletedPatientsByStudy(ctx, studyID)
	if err != nil {
		return models.StudyStatisticsReport{}, err
	}
	adverseEvents, err := s.events.ListEventsByStudy(ctx, studyID)
	if err != nil {
		return models.StudyStatisticsReport{}, err
	}

	var serious int64
	for _, evt := range adverseEvents {
		if evt.Serious {
			serious++
		}
	}

	return models.StudyStatisticsReport{
		StudyID:              studyID,
		StudyCode:            study.StudyCode,
		TotalPatients:        totalPatients,
		CompletedPatients:    completedPatients,
		TotalAdverseEvents:   int64(len(adverseEvents)),
		SeriousAdverseEvents: serious,
	}, nil
}

func (s *Service) cacheStudy(ctx context.Context, study models.Study) {
	if data, err := json.Marshal(study); err == nil {
		s.cache.Set(ctx, cache.StudyKey(study.ID), data)
		s.cache.Set(ctx, cache.StudyCodeKey(study.StudyCode), data)
	}
}

func (s *Service) evictStudy(ctx context.Context, study models.Study) {
	s.cache.Delete(ctx, cache.StudyKey(study.ID), cache.StudyCodeKey(study.StudyCode))
}

func (s *Service) cachePatient(ctx context.Context, patient models.Patient) {
	if data, err := json.Marshal(patient); err == nil {
		s.cache.Set(ctx, cache.PatientKey(patient.ID), data)
		s.cache.Set(ctx, cache.PatientCodeKey(patient.PatientCode), data)
	}
}

func (s *Service) evictPatient(ctx context.Context, patient models.Patient) {
	s.cache.Delete(ctx, cache.PatientKey(patient.ID), cache.PatientCodeKey(patient.PatientCode))
}
