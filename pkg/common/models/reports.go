package models

import (
	"time"

	"github.com/google/uuid"
)

// Derived analytics reports. All of these are computed from store reads and
// never mutate the underlying records.

type SafetyAnalysisReport struct {
	StudyID           uuid.UUID         `json:"study_id"`
	StudyCode         string            `json:"study_code"`
	EventsBySeverity  map[Severity]int  `json:"events_by_severity"`
	EventsByCausality map[Causality]int `json:"events_by_causality"`
	FrequentEvents    []string          `json:"frequent_events"`
	SeriousEventRate  float64           `json:"serious_event_rate"`
	SafetySignals     []string          `json:"safety_signals"`
	AnalysisDate      time.Time         `json:"analysis_date"`
}

const EfficacyMethodology = "Descriptive statistics with trend analysis"

type EfficacyAnalysisReport struct {
	StudyID           uuid.UUID       `json:"study_id"`
	MeasurementType   MeasurementType `json:"measurement_type"`
	NoData            bool            `json:"no_data"`
	MeanValue         float64         `json:"mean_value"`
	MinValue          float64         `json:"min_value"`
	MaxValue          float64         `json:"max_value"`
	TotalMeasurements int             `json:"total_measurements"`
	UniquePatients    int             `json:"unique_patients"`
	Insights          []string        `json:"insights"`
	ConfidenceLevel   float64         `json:"confidence_level"`
	Methodology       string          `json:"methodology"`
	GeneratedAt       time.Time       `json:"generated_at"`
}

type EnrollmentTrends struct {
	StudyID             uuid.UUID      `json:"study_id"`
	EnrollmentByMonth   map[string]int `json:"enrollment_by_month"`
	TotalEnrolled       int            `json:"total_enrolled"`
	EnrollmentVelocity  float64        `json:"enrollment_velocity"`
	FirstEnrollmentDate time.Time      `json:"first_enrollment_date"`
	LastEnrollmentDate  time.Time      `json:"last_enrollment_date"`
}

// TermCount pairs an event term with its occurrence count. A slice keeps the
// descending-count insertion order that a map would lose.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

type AdverseEventsSummary struct {
	TotalEvents      int            `json:"total_events"`
	SeriousEvents    int            `json:"serious_events"`
	EventsBySeverity map[string]int `json:"events_by_severity"`
	TopEvents        []TermCount    `json:"top_events"`
}

type TrendDirection string

const (
	TrendImproving TrendDirection = "IMPROVING"
	TrendDeclining TrendDirection = "DECLINING"
	TrendStable    TrendDirection = "STABLE"
)

type MeasurementPoint struct {
	StudyDay          int       `json:"study_day"`
	Value             *float64  `json:"value,omitempty"`
	Date              time.Time `json:"date"`
	WithinNormalRange bool      `json:"within_normal_range"`
}

type MeasurementTrends struct {
	PatientID                 uuid.UUID          `json:"patient_id"`
	MeasurementType           MeasurementType    `json:"measurement_type"`
	DataPoints                []MeasurementPoint `json:"data_points"`
	TotalMeasurements         int                `json:"total_measurements"`
	PercentChangeFromBaseline *float64           `json:"percent_change_from_baseline,omitempty"`
	TrendDirection            TrendDirection     `json:"trend_direction,omitempty"`
}

type StudyStatisticsReport struct {
	StudyID              uuid.UUID `json:"study_id"`
	StudyCode            string    `json:"study_code"`
	TotalPatients        int64     `json:"total_patients"`
	CompletedPatients    int64     `json:"completed_patients"`
	TotalAdverseEvents   int64     `json:"total_adverse_events"`
	SeriousAdverseEvents int64     `json:"serious_adverse_events"`
}
