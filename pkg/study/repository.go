package study

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/preclinical-platform/platform/pkg/common/errs"
	"github.com/preclinical-platform/platform/pkg/common/models"
	"gorm.io/gorm"
)

// Repository persists the four clinical entities through gorm. Children hold
// parent ids only; relationships are never loaded as live object graphs.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type studyModel struct {
	ID        uuid.UUID  `gorm:"primaryKey;column:id"`
	StudyCode string     `gorm:"column:study_code;uniqueIndex"`
	Title     string     `gorm:"column:title"`
	Objective string     `gorm:"column:objective"`
	Phase     string     `gorm:"column:phase"`
	Status    string     `gorm:"column:status"`
	StartDate time.Time  `gorm:"column:start_date"`
	EndDate   *time.Time `gorm:"column:end_date"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at"`
}

func (studyModel) TableName() string { return "studies" }

type patientModel struct {
	ID             uuid.UUID  `gorm:"primaryKey;column:id"`
	StudyID        uuid.UUID  `gorm:"column:study_id;index"`
	PatientCode    string     `gorm:"column:patient_code;uniqueIndex"`
	Age            int        `gorm:"column:age"`
	Gender         string     `gorm:"column:gender"`
	Weight         *float64   `gorm:"column:weight"`
	Height         *float64   `gorm:"column:height"`
	Status         string     `gorm:"column:status"`
	EnrollmentDate time.Time  `gorm:"column:enrollment_date"`
	CompletionDate *time.Time `gorm:"column:completion_date"`
	MedicalHistory string     `gorm:"column:medical_history"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (patientModel) TableName() string { return "patients" }

type adverseEventModel struct {
	ID             uuid.UUID  `gorm:"primaryKey;column:id"`
	PatientID      uuid.UUID  `gorm:"column:patient_id;index"`
	StudyID        uuid.UUID  `gorm:"column:study_id;index"`
	EventTerm      string     `gorm:"column:event_term"`
	Severity       string     `gorm:"column:severity"`
	Causality      string     `gorm:"column:causality"`
	OnsetDate      time.Time  `gorm:"column:onset_date"`
	ResolutionDate *time.Time `gorm:"column:resolution_date"`
	Description    string     `gorm:"column:description"`
	Outcome        string     `gorm:"column:outcome"`
	Serious        bool       `gorm:"column:serious"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (adverseEventModel) TableName() string { return "adverse_events" }

type measurementModel struct {
	ID              uuid.UUID  `gorm:"primaryKey;column:id"`
	PatientID       uuid.UUID  `gorm:"column:patient_id;index"`
	StudyID         uuid.UUID  `gorm:"column:study_id;index"`
	MeasurementDate time.Time  `gorm:"column:measurement_date"`
	StudyDay        int        `gorm:"column:study_day"`
	MeasurementType string     `gorm:"column:measurement_type"`
	Value           *float64   `gorm:"column:measurement_value"`
	Unit            string     `gorm:"column:unit"`
	Notes           string     `gorm:"column:notes"`
	Status          string     `gorm:"column:status"`
	NormalRangeLow  *float64   `gorm:"column:normal_range_low"`
	NormalRangeHigh *float64   `gorm:"column:normal_range_high"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

func (measurementModel) TableName() string { return "efficacy_measurements" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&studyModel{},
		&patientModel{},
		&adverseEventModel{},
		&measurementModel{},
	)
}

func (r *Repository) GetStudy(ctx context.Context, id uuid.UUID) (models.Study, error) {
	var row studyModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return models.Study{}, translate(err, "study not found with id: "+id.String())
	}
	return buildStudy(row), nil
}

func (r *Repository) GetStudyByCode(ctx context.Context, code string) (models.Study, error) {
	var row studyModel
	if err := r.db.WithContext(ctx).First(&row, "study_code = ?", code).Error; err != nil {
		return models.Study{}, translate(err, "study not found with code: "+code)
	}
	return buildStudy(row), nil
}

func (r *Repository) ListStudiesByStatus(ctx context.Context, status models.StudyStatus) ([]models.Study, error) {
	var rows []studyModel
	if err := r.db.WithContext(ctx).Where("status = ?", string(status)).Order("created_at").Find(&rows).Error; err != nil {
		return nil, errs.Unexpected(err)
	}
	studies := make([]models.Study, 0, len(rows))
	for _, row := range rows {
		studies = append(studies, buildStudy(row))
	}
	return studies, nil
}

func (r *Repository) ListStudiesByPhaseAndStatus(ctx context.Context, phase models.StudyPhase, status models.StudyStatus) ([]models.Study, error) {
	var rows []studyModel
	err := r.db.WithContext(ctx).
		Where("phase = ? AND status = ?", string(phase), string(status)).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, errs.Unexpected(err)
	}
	studies := make([]models.Study, 0, len(rows))
	for _, row := range rows {
		studies = append(studies, buildStudy(row))
	}
	return studies, nil
}

func (r *Repository) SaveStudy(ctx context.Context, study models.Study) (models.Study, error) {
	row := studyModel{
		ID:        study.ID,
		StudyCode: study.StudyCode,
		Title:     study.Title,
		Objective: study.Objective,
		Phase:     string(study.Phase),
		Status:    string(study.Status),
		StartDate: study.StartDate,
		EndDate:   study.EndDate,
		CreatedAt: study.CreatedAt,
		UpdatedAt: study.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Study{}, errs.DuplicateKey("study code already exists: %s", study.StudyCode)
		}
		return models.Study{}, errs.Unexpected(err)
	}
	return buildStudy(row), nil
}

func (r *Repository) GetPatient(ctx context.Context, id uuid.UUID) (models.Patient, error) {
	var row patientModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return models.Patient{}, translate(err, "patient not found with id: "+id.String())
	}
	return buildPatient(row), nil
}

func (r *Repository) GetPatientByCode(ctx context.Context, code string) (models.Patient, error) {
	var row patientModel
	if err := r.db.WithContext(ctx).First(&row, "patient_code = ?", code).Error; err != nil {
		return models.Patient{}, translate(err, "patient not found with code: "+code)
	}
	return buildPatient(row), nil
}

func (r *Repository) ListPatientsByStudy(ctx context.Context, studyID uuid.UUID) ([]models.Patient, error) {
	var rows []patientModel
	if err := r.db.WithContext(ctx).Where("study_id = ?", studyID).Order("enrollment_date").Find(&rows).Error; err != nil {
		return nil, errs.Unexpected(err)
	}
	patients := make([]models.Patient, 0, len(rows))
	for _, row := range rows {
		patients = append(patients, buildPatient(row))
	}
	return patients, nil
}

func (r *Repository) CountPatientsByStudy(ctx context.Context, studyID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&patientModel{}).Where("study_id = ?", studyID).Count(&count).Error; err != nil {
		return 0, errs.Unexpected(err)
	}
	return count, nil
}

func (r *Repository) CountCompletedPatientsByStudy(ctx context.Context, studyID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&patientModel{}).
		Where("study_id = ? AND status = ?", studyID, string(models.PatientCompleted)).
		Count(&count).Error
	if err != nil {
		return 0, errs.Unexpected(err)
	}
	return count, nil
}

func (r *Repository) SavePatient(ctx context.Context, patient models.Patient) (models.Patient, error) {
	row := patientModel{
		ID:             patient.ID,
		StudyID:        patient.StudyID,
		PatientCode:    patient.PatientCode,
		Age:            patient.Age,
		Gender:         string(patient.Gender),
		Weight:         patient.Weight,
		Height:         patient.Height,
		Status:         string(patient.Status),
		EnrollmentDate: patient.EnrollmentDate,
		CompletionDate: patient.CompletionDate,
		MedicalHistory: patient.MedicalHistory,
		CreatedAt:      patient.CreatedAt,
		UpdatedAt:      patient.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Patient{}, errs.DuplicateKey("patient code already exists: %s", patient.PatientCode)
		}
		return models.Patient{}, errs.Unexpected(err)
	}
	return buildPatient(row), nil
}

func (r *Repository) ListEventsByStudy(ctx context.Context, studyID uuid.UUID) ([]models.AdverseEvent, error) {
	var rows []adverseEventModel
	if err := r.db.WithContext(ctx).Where("study_id = ?", studyID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, errs.Unexpected(err)
	}
	return buildEvents(rows), nil
}

func (r *Repository) ListEventsByPatient(ctx context.Context, patientID uuid.UUID) ([]models.AdverseEvent, error) {
	var rows []adverseEventModel
	if err := r.db.WithContext(ctx).Where("patient_id = ?", patientID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, errs.Unexpected(err)
	}
	return buildEvents(rows), nil
}

func (r *Repository) ListAllEvents(ctx context.Context) ([]models.AdverseEvent, error) {
	var rows []adverseEventModel
	if err := r.db.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, errs.Unexpected(err)
	}
	return buildEvents(rows), nil
}

func (r *Repository) SaveEvent(ctx context.Context, event models.AdverseEvent) (models.AdverseEvent, error) {
	row := adverseEventModel{
		ID:             event.ID,
		PatientID:      event.PatientID,
		StudyID:        event.StudyID,
		EventTerm:      event.EventTerm,
		Severity:       string(event.Severity),
		Causality:      string(event.Causality),
		OnsetDate:      event.OnsetDate,
		ResolutionDate: event.ResolutionDate,
		Description:    event.Description,
		Outcome:        string(event.Outcome),
		Serious:        event.Serious,
		CreatedAt:      event.CreatedAt,
		UpdatedAt:      event.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		return models.AdverseEvent{}, errs.Unexpected(err)
	}
	return buildEvent(row), nil
}

func (r *Repository) ListMeasurementsByStudy(ctx context.Context, studyID uuid.UUID) ([]models.EfficacyMeasurement, error) {
	var rows []measurementModel
	if err := r.db.WithContext(ctx).Where("study_id = ?", studyID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, errs.Unexpected(err)
	}
	return buildMeasurements(rows), nil
}

func (r *Repository) ListMeasurementsByPatient(ctx context.Context, patientID uuid.UUID) ([]models.EfficacyMeasurement, error) {
	var rows []measurementModel
	if err := r.db.WithContext(ctx).Where("patient_id = ?", patientID).Order("study_day").Find(&rows).Error; err != nil {
		return nil, errs.Unexpected(err)
	}
	return buildMeasurements(rows), nil
}

func (r *Repository) ListMeasurementsByPatientAndType(ctx context.Context, patientID uuid.UUID, measurementType models.MeasurementType) ([]models.EfficacyMeasurement, error) {
	var rows []measurementModel
	err := r.db.WithContext(ctx).
		Where("patient_id = ? AND measurement_type = ?", patientID, string(measurementType)).
		Order("study_day").
		Find(&rows).Error
	if err != nil {
		return nil, errs.Unexpected(err)
	}
	return buildMeasurements(rows), nil
}

func (r *Repository) SaveMeasurement(ctx context.Context, measurement models.EfficacyMeasurement) (models.EfficacyMeasurement, error) {
	row := measurementModel{
		ID:              measurement.ID,
		PatientID:       measurement.PatientID,
		StudyID:         measurement.StudyID,
		MeasurementDate: measurement.MeasurementDate,
		StudyDay:        measurement.StudyDay,
		MeasurementType: string(measurement.MeasurementType),
		Value:           measurement.Value,
		Unit:            measurement.Unit,
		Notes:           measurement.Notes,
		Status:          string(measurement.Status),
		NormalRangeLow:  measurement.NormalRangeLow,
		NormalRangeHigh: measurement.NormalRangeHigh,
		CreatedAt:       measurement.CreatedAt,
		UpdatedAt:       measurement.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		return models.EfficacyMeasurement{}, errs.Unexpected(err)
	}
	return buildMeasurement(row), nil
}

func translate(err error, notFoundMsg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.NotFound("%s", notFoundMsg)
	}
	return errs.Unexpected(err)
}

func buildStudy(row studyModel) models.Study {
	return models.Study{
		ID:        row.ID,
		StudyCode: row.StudyCode,
		Title:     row.Title,
		Objective: row.Objective,
		Phase:     models.StudyPhase(row.Phase),
		Status:    models.StudyStatus(row.Status),
		StartDate: row.StartDate,
		EndDate:   row.EndDate,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func buildPatient(row patientModel) models.Patient {
	return models.Patient{
		ID:             row.ID,
		StudyID:        row.StudyID,
		PatientCode:    row.PatientCode,
		Age:            row.Age,
		Gender:         models.Gender(row.Gender),
		Weight:         row.Weight,
		Height:         row.Height,
		Status:         models.PatientStatus(row.Status),
		EnrollmentDate: row.EnrollmentDate,
		CompletionDate: row.CompletionDate,
		MedicalHistory: row.MedicalHistory,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

func buildEvent(row adverseEventModel) models.AdverseEvent {
	return models.AdverseEvent{
		ID:             row.ID,
		PatientID:      row.PatientID,
		StudyID:        row.StudyID,
		EventTerm:      row.EventTerm,
		Severity:       models.Severity(row.Severity),
		Causality:      models.Causality(row.Causality),
		OnsetDate:      row.OnsetDate,
		ResolutionDate: row.ResolutionDate,
		Description:    row.Description,
		Outcome:        models.Outcome(row.Outcome),
		Serious:        row.Serious,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

func buildEvents(rows []adverseEventModel) []models.AdverseEvent {
	events := make([]models.AdverseEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, buildEvent(row))
	}
	return events
}

func buildMeasurement(row measurementModel) models.EfficacyMeasurement {
	return models.EfficacyMeasurement{
		ID:              row.ID,
		PatientID:       row.PatientID,
		StudyID:         row.StudyID,
		MeasurementDate: row.MeasurementDate,
		StudyDay:        row.StudyDay,
		MeasurementType: models.MeasurementType(row.MeasurementType),
		Value:           row.Value,
		Unit:            row.Unit,
		Notes:           row.Notes,
		Status:          models.MeasurementStatus(row.Status),
		NormalRangeLow:  row.NormalRangeLow,
		NormalRangeHigh: row.NormalRangeHigh,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func buildMeasurements(rows []measurementModel) []models.EfficacyMeasurement {
	measurements := make([]models.EfficacyMeasurement, 0, len(rows))
	for _, row := range rows {
		measurements = append(measurements, buildMeasurement(row))
	}
	return measurements
}
