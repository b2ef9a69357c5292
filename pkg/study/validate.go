package study

import (
	"fmt"
	"regexp"

	"github.com/preclinical-platform/platform/pkg/common/config"
	"github.com/preclinical-platform/platform/pkg/common/errs"
	"github.com/preclinical-platform/platform/pkg/common/models"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9-]+$`)

const (
	minWeightKg = 30.0
	maxWeightKg = 300.0
	minHeightCm = 100.0
	maxHeightCm = 250.0
)

func validateCreateStudy(req models.CreateStudyRequest) error {
	fields := map[string]string{}
	if req.StudyCode == "" {
		fields["study_code"] = "study code is required"
	} else if len(req.StudyCode) < 3 || len(req.StudyCode) > 20 {
		fields["study_code"] = "study code must be between 3 and 20 characters"
	} else if !codePattern.MatchString(req.StudyCode) {
		fields["study_code"] = "study code must contain only uppercase letters, numbers, and hyphens"
	}
	if len(req.Title) < 10 || len(req.Title) > 200 {
		fields["title"] = "title must be between 10 and 200 characters"
	}
	if len(req.Objective) > 1000 {
		fields["objective"] = "objective must not exceed 1000 characters"
	}
	if req.Phase == "" {
		fields["phase"] = "study phase is required"
	}
	if req.StartDate.IsZero() {
		fields["start_date"] = "start date is required"
	}
	if req.EndDate != nil && !req.StartDate.IsZero() && !req.EndDate.After(req.StartDate) {
		fields["end_date"] = "end date must be after start date"
	}
	if len(fields) > 0 {
		return errs.Validation(fields)
	}
	return nil
}

func validateUpdateStudy(study models.Study, req models.UpdateStudyRequest) error {
	fields := map[string]string{}
	if req.Title != nil && (len(*req.Title) < 10 || len(*req.Title) > 200) {
		fields["title"] = "title must be between 10 and 200 characters"
	}
	if req.Objective != nil && len(*req.Objective) > 1000 {
		fields["objective"] = "objective must not exceed 1000 characters"
	}
	if req.EndDate != nil && !req.EndDate.After(study.StartDate) {
		fields["end_date"] = "end date must be after start date"
	}
	if len(fields) > 0 {
		return errs.Validation(fields)
	}
	return nil
}

func validateCreatePatient(req models.CreatePatientRequest, props config.PatientProperties) error {
	fields := map[string]string{}
	if req.PatientCode == "" {
		fields["patient_code"] = "patient code is required"
	} else if !codePattern.MatchString(req.PatientCode) {
		fields["patient_code"] = "patient code must contain only uppercase letters, numbers, and hyphens"
	}
	if req.Age < props.MinAge || req.Age > props.MaxAge {
		fields["age"] = fmt.Sprintf("age must be between %d and %d", props.MinAge, props.MaxAge)
	}
	if req.Gender == "" {
		fields["gender"] = "gender is required"
	}
	if req.Weight != nil && (*req.Weight < minWeightKg || *req.Weight > maxWeightKg) {
		fields["weight"] = fmt.Sprintf("weight must be between %.0f and %.0f kg", minWeightKg, maxWeightKg)
	}
	if req.Height != nil && (*req.Height < minHeightCm || *req.Height > maxHeightCm) {
		fields["height"] = fmt.Sprintf("height must be between %.0f and %.0f cm", minHeightCm, maxHeightCm)
	}
	if len(req.MedicalHistory) > 500 {
		fields["medical_history"] = "medical history must not exceed 500 characters"
	}
	if len(fields) > 0 {
		return errs.Validation(fields)
	}
	return nil
}

func validateUpdatePatient(req models.UpdatePatientRequest) error {
	fields := map[string]string{}
	if req.Weight != nil && (*req.Weight < minWeightKg || *req.Weight > maxWeightKg) {
		fields["weight"] = fmt.Sprintf("weight must be between %.0f and %.0f kg", minWeightKg, maxWeightKg)
	}
	if req.Height != nil && (*req.Height < minHeightCm || *req.Height > maxHeightCm) {
		fields["height"] = fmt.Sprintf("height must be between %.0f and %.0f cm", minHeightCm, maxHeightCm)
	}
	if req.MedicalHistory != nil && len(*req.MedicalHistory) > 500 {
		fields["medical_history"] = "medical history must not exceed 500 characters"
	}
	if len(fields) > 0 {
		return errs.Validation(fields)
	}
	return nil
}

func validateCreateAdverseEvent(req models.CreateAdverseEventRequest) error {
	fields := map[string]string{}
	if req.EventTerm == "" {
		fields["event_term"] = "event term is required"
	}
	if req.Severity == "" {
		fields["severity"] = "severity is required"
	}
	if req.Causality == "" {
		fields["causality"] = "causality is required"
	}
	if req.OnsetDate.IsZero() {
		fields["onset_date"] = "onset date is required"
	}
	if req.ResolutionDate != nil && req.ResolutionDate.Before(req.OnsetDate) {
		fields["resolution_date"] = "resolution date must not precede onset date"
	}
	if len(req.Description) > 1000 {
		fields["description"] = "description must not exceed 1000 characters"
	}
	if len(fields) > 0 {
		return errs.Validation(fields)
	}
	return nil
}

func validateCreateMeasurement(req models.CreateMeasurementRequest) error {
	fields := map[string]string{}
	if req.MeasurementDate.IsZero() {
		fields["measurement_date"] = "measurement date is required"
	}
	if req.StudyDay < 1 {
		fields["study_day"] = "study day must be a positive integer"
	}
	if req.MeasurementType == "" {
		fields["measurement_type"] = "measurement type is required"
	}
	if req.Value == nil {
		fields["value"] = "value is required"
	}
	if len(req.Notes) > 500 {
		fields["notes"] = "notes must not exceed 500 characters"
	}
	if req.NormalRangeLow != nil && req.NormalRangeHigh != nil && *req.NormalRangeLow > *req.NormalRangeHigh {
		fields["normal_range_low"] = "normal range low must not exceed normal range high"
	}
	if len(fields) > 0 {
		return errs.Validation(fields)
	}
	return nil
}
