package analysis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/preclinical-platform/platform/pkg/common/cache"
	"github.com/preclinical-platform/platform/pkg/common/errs"
	"github.com/preclinical-platform/platform/pkg/common/logger"
	"github.com/preclinical-platform/platform/pkg/common/models"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func newTestService(store *fakeStore) *Service {
	return NewService(store, store, store, store, cache.NewMemoryCache())
}

func fixtureStudy() models.Study {
	return models.Study{
		ID:        uuid.New(),
		StudyCode: "ONCO-2024-001",
		Status:    models.StudyActive,
	}
}

func addPatients(store *fakeStore, studyID uuid.UUID, count int, enrolled time.Time) []models.Patient {
	patients := make([]models.Patient, 0, count)
	for i := 0; i < count; i++ {
		p := models.Patient{
			ID:             uuid.New(),
			StudyID:        studyID,
			Status:         models.PatientActive,
			EnrollmentDate: enrolled,
		}
		store.patients = append(store.patients, p)
		patients = append(patients, p)
	}
	return patients
}

func addEvent(store *fakeStore, studyID uuid.UUID, term string, severity models.Severity, causality models.Causality, serious bool) {
	store.events = append(store.events, models.AdverseEvent{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		StudyID:   studyID,
		EventTerm: term,
		Severity:  severity,
		Causality: causality,
		OnsetDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		Serious:   serious,
	})
}

func TestSafetyAnalysisSignals(t *testing.T) {
	store := &fakeStore{}
	study := fixtureStudy()
	store.studies = append(store.studies, study)
	addPatients(store, study.ID, 20, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	for i := 0; i < 3; i++ {
		addEvent(store, study.ID, "Nausea", models.SeveritySevere, models.CausalityProbable, true)
	}
	addEvent(store, study.ID, "Dizziness", models.SeverityModerate, models.CausalityDefinite, false)
	addEvent(store, study.ID, "Headache", models.SeverityMild, models.CausalityPossible, false)
	addEvent(store, study.ID, "Headache", models.SeverityMild, models.CausalityUnlikely, false)

	report, err := newTestService(store).GenerateSafetyAnalysis(context.Background(), study.ID)
	if err != nil {
		t.Fatalf("failed to generate safety analysis: %v", err)
	}

	// 3 serious events over 20 patients.
	if report.SeriousEventRate != 15.0 {
		t.Fatalf("expected serious event rate 15.0, got %v", report.SeriousEventRate)
	}

	wantSignals := []string{
		"HIGH_SERIOUS_EVENT_RATE: 15.0%",
		"FREQUENT_EVENT: Nausea (3 cases)",
		"HIGH_DRUG_RELATED_EVENTS: 4 events",
	}
	if len(report.SafetySignals) != len(wantSignals) {
		t.Fatalf("expected %d signals, got %v", len(wantSignals), report.SafetySignals)
	}
	for i, want := range wantSignals {
		if report.SafetySignals[i] != want {
			t.Fatalf("signal %d: expected %q, got %q", i, want, report.SafetySignals[i])
		}
	}

	if report.EventsBySeverity[models.SeveritySevere] != 3 ||
		report.EventsBySeverity[models.SeverityModerate] != 1 ||
		report.EventsBySeverity[models.SeverityMild] != 2 {
		t.Fatalf("unexpected severity grouping: %v", report.EventsBySeverity)
	}
	if _, present := report.EventsByCausality[models.CausalityUnrelated]; present {
		t.Fatal("absent causality categories must not be zero-filled")
	}

	// Terms occurring more than once, most frequent first.
	if len(report.FrequentEvents) != 2 || report.FrequentEvents[0] != "Nausea" || report.FrequentEvents[1] != "Headache" {
		t.Fatalf("unexpected frequent events: %v", report.FrequentEvents)
	}
}

func TestSafetyAnalysisEmptyStudy(t *testing.T) {
	store := &fakeStore{}
	study := fixtureStudy()
	store.studies = append(store.studies, study)

	report, err := newTestService(store).GenerateSafetyAnalysis(context.Background(), study.ID)
	if err != nil {
		t.Fatalf("failed to generate safety analysis: %v", err)
	}
	if report.SeriousEventRate != 0 {
		t.Fatalf("expected zero serious event rate, got %v", report.SeriousEventRate)
	}
	if len(report.SafetySignals) != 0 {
		t.Fatalf("expected no signals, got %v", report.SafetySignals)
	}
	if len(report.EventsBySeverity) != 0 || len(report.EventsByCausality) != 0 {
		t.Fatalf("expected empty groupings, got %v / %v", report.EventsBySeverity, report.EventsByCausality)
	}
}

func TestSafetyAnalysisUnknownStudy(t *testing.T) {
	_, err := newTestService(&fakeStore{}).GenerateSafetyAnalysis(context.Background(), uuid.New())
	if !errs.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSafetyAnalysisCached(t *testing.T) {
	store := &fakeStore{}
	study := fixtureStudy()
	store.studies = append(store.studies, study)
	svc := newTestService(store)

	if _, err := svc.GenerateSafetyAnalysis(context.Background(), study.ID); err != nil {
		t.Fatalf("first analysis failed: %v", err)
	}
	if _, err := svc.GenerateSafetyAnalysis(context.Background(), study.ID); err != nil {
		t.Fatalf("second analysis failed: %v", err)
	}
	if store.eventListCalls != 1 {
		t.Fatalf("expected one store read, got %d", store.eventListCalls)
	}
}

func addMeasurement(store *fakeStore, studyID, patientID uuid.UUID, day int, value float64, low, high *float64) {
	store.measurements = append(store.measurements, models.EfficacyMeasurement{
		ID:              uuid.New(),
		PatientID:       patientID,
		StudyID:         studyID,
		MeasurementDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day-1),
		StudyDay:        day,
		MeasurementType: models.MeasurementBloodPressureSystolic,
		Value:           &value,
		NormalRangeLow:  low,
		NormalRangeHigh: high,
	})
}

func TestEfficacyAnalysisNoData(t *testing.T) {
	store := &fakeStore{}
	study := fixtureStudy()
	store.studies = append(store.studies, study)

	report, err := newTestService(store).AnalyzeEfficacy(context.Background(), study.ID, models.MeasurementHeartRate, EfficacyFilter{})
	if err != nil {
		t.Fatalf("failed to analyze efficacy: %v", err)
	}
	if !report.NoData {
		t.Fatal("expected no-data report")
	}
	if len(report.Insights) != 1 || report.Insights[0] != "No data available for analysis" {
		t.Fatalf("unexpected insights: %v", report.Insights)
	}
}

func TestEfficacyAnalysisInsights(t *testing.T) {
	store := &fakeStore{}
	study := fixtureStudy()
	store.studies = append(store.studies, study)

	low, high := 90.0, 150.0
	p1, p2 := uuid.New(), uuid.New()
	for i := 1; i <= 12; i++ {
		patient := p1
		if i%2 == 0 {
			patient = p2
		}
		addMeasurement(store, study.ID, patient, i, float64(100+i), &low, &high)
	}

	report, err := newTestService(store).AnalyzeEfficacy(context.Background(), study.ID, models.MeasurementBloodPressureSystolic, EfficacyFilter{})
	if err != nil {
		t.Fatalf("failed to analyze efficacy: %v", err)
	}

	if report.MeanValue != 106.5 {
		t.Fatalf("expected mean 106.5, got %v", report.MeanValue)
	}
	if report.MinValue != 101 || report.MaxValue != 112 {
		t.Fatalf("unexpected min/max: %v/%v", report.MinValue, report.MaxValue)
	}
	if report.TotalMeasurements != 12 || report.UniquePatients != 2 {
		t.Fatalf("unexpected counts: %d measurements, %d patients", report.TotalMeasurements, report.UniquePatients)
	}
	if report.ConfidenceLevel != 95.0 {
		t.Fatalf("expected confidence level 95.0, got %v", report.ConfidenceLevel)
	}
	if report.Methodology != models.EfficacyMethodology {
		t.Fatalf("unexpected methodology: %q", report.Methodology)
	}

	wantInsights := []string{
		"Average measurement value: 106.50",
		"Sufficient data points for trend analysis (12 measurements)",
		"Most measurements within expected normal ranges",
	}
	if len(report.Insights) != len(wantInsights) {
		t.Fatalf("expected %d insights, got %v", len(wantInsights), report.Insights)
	}
	for i, want := range wantInsights {
		if report.Insights[i] != want {
			t.Fatalf("insight %d: expected %q, got %q", i, want, report.Insights[i])
		}
	}
}

func TestEfficacyAnalysisAbnormalTiers(t *testing.T) {
	low, high := 90.0, 150.0

	build := func(abnormal int) *fakeStore {
		store := &fakeStore{}
		store.studies = append(store.studies, fixtureStudy())
		study := store.studies[0]
		patient := uuid.New()
		for i := 1; i <= 10; i++ {
			value := 100.0
			if i <= abnormal {
				value = 200.0
			}
			addMeasurement(store, study.ID, patient, i, value, &low, &high)
		}
		return store
	}

	store := build(3) // 30% out of range
	report, err := newTestService(store).AnalyzeEfficacy(context.Background(), store.studies[0].ID, models.MeasurementBloodPressureSystolic, EfficacyFilter{})
	if err != nil {
		t.Fatalf("failed to analyze efficacy: %v", err)
	}
	if got := report.Insights[2]; got != "HIGH ALERT: 30% of measurements outside normal range" {
		t.Fatalf("expected high alert insight, got %q", got)
	}

	store = build(2) // 20% out of range
	report, err = newTestService(store).AnalyzeEfficacy(context.Background(), store.studies[0].ID, models.MeasurementBloodPressureSystolic, EfficacyFilter{})
	if err != nil {
		t.Fatalf("failed to analyze efficacy: %v", err)
	}
	if got := report.Insights[2]; got != "CAUTION: 20% of measurements outside normal range" {
		t.Fatalf("expected caution insight, got %q", got)
	}
}

func TestEfficacyAnalysisIgnoresMissingValues(t *testing.T) {
	store := &fakeStore{}
	study := fixtureStudy()
	store.studies = append(store.studies, study)
	patient := uuid.New()
	addMeasurement(store, study.ID, patient, 1, 100, nil, nil)
	store.measurements = append(store.measurements, models.EfficacyMeasurement{
		ID:              uuid.New(),
		PatientID:       patient,
		StudyID:         study.ID,
		StudyDay:        2,
		MeasurementType: models.MeasurementBloodPressureSystolic,
	})

	report, err := newTestService(store).AnalyzeEfficacy(context.Background(), study.ID, models.MeasurementBloodPressureSystolic, EfficacyFilter{})
	if err != nil {
		t.Fatalf("failed to analyze efficacy: %v", err)
	}
	// The value-less record must not be aggregated as zero.
	if report.MeanValue != 100 || report.MinValue != 100 || report.MaxValue != 100 {
		t.Fatalf("expected mean/min/max 100 over numeric values, got %v/%v/%v",
			report.MeanValue, report.MinValue, report.MaxValue)
	}
	if report.TotalMeasurements != 2 {
		t.Fatalf("expected both records counted, got %d", report.TotalMeasurements)
	}
}

func TestEfficacyAnalysisAllValuesMissing(t *testing.T) {
	store := &fakeStore{}
	study := fixtureStudy()
	store.studies = append(store.studies, study)
	store.measurements = append(store.measurements, models.EfficacyMeasurement{
		ID:              uuid.New(),
		PatientID:       uuid.New(),
		StudyID:         study.ID,
		StudyDay:        1,
		MeasurementType: models.MeasurementBloodPressureSystolic,
	})

	report, err := newTestService(store).AnalyzeEfficacy(context.Background(), study.ID, models.MeasurementBloodPressureSystolic, EfficacyFilter{})
	if err != nil {
		t.Fatalf("failed to analyze efficacy: %v", err)
	}
	if !report.NoData {
		t.Fatal("expected no-data report when no record carries a value")
	}
}

func TestEfficacyAnalysisDayFilter(t *testing.T) {
	store := &fakeStore{}
	study := fixtureStudy()
	store.studies = append(store.studies, study)
	patient := uuid.New()
	for i := 1; i <= 8; i++ {
		addMeasurement(store, study.ID, patient, i, float64(100+i), nil, nil)
	}

	fromDay := 5
	report, err := newTestService(store).AnalyzeEfficacy(context.Background(), study.ID, models.MeasurementBloodPressureSystolic, EfficacyFilter{FromDay: &fromDay})
	if err != nil {
		t.Fatalf("failed to analyze efficacy: %v", err)
	}
	if report.TotalMeasurements != 4 {
		t.Fatalf("expected 4 measurements after day filter, got %d", report.TotalMeasurements)
	}
}

func TestEnrollmentTrends(t *testing.T) {
	store := &fakeStore{}
	study := fixtureStudy()
	store.studies = append(store.studies, study)

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	first := now.AddDate(0, 0, -70)
	addPatients(store, study.ID, 4, first)
	addPatients(store, study.ID, 1, now.AddDate(0, 0, -7))

	svc := newTestService(store)
	svc.now = func() time.Time { return now }

	trends, err := svc.GetEnrollmentTrends(context.Background(), study.ID)
	if err != nil {
		t.Fatalf("failed to get enrollment trends: %v", err)
	}
	if trends.TotalEnrolled != 5 {
		t.Fatalf("expected 5 enrolled, got %d", trends.TotalEnrolled)
	}
	// 5 patients over 10 weeks.
	if trends.EnrollmentVelocity != 0.5 {
		t.Fatalf("expected velocity 0.5, got %v", trends.EnrollmentVelocity)
	}
	if !trends.FirstEnrollmentDate.Equal(first) {
		t.Fatalf("unexpected first enrollment date: %s", trends.FirstEnrollmentDate)
	}
	if trends.EnrollmentByMonth[first.Format("2006-01")] != 4 {
		t.Fatalf("unexpected month buckets: %v", trends.EnrollmentByMonth)
	}
}

func TestAdverseEventsSummaryTopEvents(t *testing.T) {
	store := &fakeStore{}
	study := fixtureStudy()
	store.studies = append(store.studies, study)

	for i := 0; i < 3; i++ {
		addEvent(store, study.ID, "Nausea", models.SeverityMild, models.CausalityPossible, false)
	}
	for i := 0; i < 3; i++ {
		addEvent(store, study.ID, "Headache", models.SeverityMild, models.CausalityPossible, false)
	}
	addEvent(store, study.ID, "Rash", models.SeveritySevere, models.CausalityProbable, true)

	summary, err := newTestService(store).GetAdverseEventsSummary(context.Background(), &study.ID, nil, nil)
	if err != nil {
		t.Fatalf("failed to summarize adverse events: %v", err)
	}
	if summary.TotalEvents != 7 || summary.SeriousEvents != 1 {
		t.Fatalf("unexpected totals: %+v", summary)
	}
	// Ties keep first-encounter order.
	if len(summary.TopEvents) != 3 ||
		summary.TopEvents[0].Term != "Nausea" || summary.TopEvents[0].Count != 3 ||
		summary.TopEvents[1].Term != "Headache" ||
		summary.TopEvents[2].Term != "Rash" {
		t.Fatalf("unexpected top events: %v", summary.TopEvents)
	}
}

func TestAdverseEventsSummaryDateWindow(t *testing.T) {
	store := &fakeStore{}
	study := fixtureStudy()
	store.studies = append(store.studies, study)
	addEvent(store, study.ID, "Nausea", models.SeverityMild, models.CausalityPossible, false)

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	summary, err := newTestService(store).GetAdverseEventsSummary(context.Background(), &study.ID, &start, &end)
	if err != nil {
		t.Fatalf("failed to summarize adverse events: %v", err)
	}
	if summary.TotalEvents != 0 {
		t.Fatalf("expected window to exclude the April event, got %d", summary.TotalEvents)
	}
}

func TestMeasurementTrendsDirections(t *testing.T) {
	cases := []struct {
		name          string
		firstValue    float64
		lastValue     float64
		wantChange    float64
		wantDirection models.TrendDirection
	}{
		{"improving", 100, 120, 20, models.TrendImproving},
		{"declining", 100, 90, -10, models.TrendDeclining},
		{"stable", 100, 103, 3, models.TrendStable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeStore{}
			study := fixtureStudy()
			store.studies = append(store.studies, study)
			patient := uuid.New()
			// Out of order on purpose: trends must sort by study day.
			addMeasurement(store, study.ID, patient, 10, tc.lastValue, nil, nil)
			addMeasurement(store, study.ID, patient, 1, tc.firstValue, nil, nil)

			trends, err := newTestService(store).GetPatientMeasurementTrends(context.Background(), patient, models.MeasurementBloodPressureSystolic)
			if err != nil {
				t.Fatalf("failed to get trends: %v", err)
			}
			if trends.PercentChangeFromBaseline == nil || *trends.PercentChangeFromBaseline != tc.wantChange {
				t.Fatalf("expected change %v, got %v", tc.wantChange, trends.PercentChangeFromBaseline)
			}
			if trends.TrendDirection != tc.wantDirection {
				t.Fatalf("expected direction %s, got %s", tc.wantDirection, trends.TrendDirection)
			}
			if trends.DataPoints[0].StudyDay != 1 {
				t.Fatalf("expected data points ordered by study day, got %v", trends.DataPoints)
			}
		})
	}
}

func TestMeasurementTrendsInsufficientData(t *testing.T) {
	store := &fakeStore{}
	study := fixtureStudy()
	store.studies = append(store.studies, study)
	patient := uuid.New()
	addMeasurement(store, study.ID, patient, 1, 100, nil, nil)

	trends, err := newTestService(store).GetPatientMeasurementTrends(context.Background(), patient, models.MeasurementBloodPressureSystolic)
	if err != nil {
		t.Fatalf("failed to get trends: %v", err)
	}
	if trends.TotalMeasurements != 1 {
		t.Fatalf("expected one measurement, got %d", trends.TotalMeasurements)
	}
	if trends.PercentChangeFromBaseline != nil || trends.TrendDirection != "" {
		t.Fatalf("expected no trend fields, got %v / %s", trends.PercentChangeFromBaseline, trends.TrendDirection)
	}
}

func TestMeasurementTrendsZeroBaseline(t *testing.T) {
	store := &fakeStore{}
	study := fixtureStudy()
	store.studies = append(store.studies, study)
	patient := uuid.New()
	addMeasurement(store, study.ID, patient, 1, 0, nil, nil)
	addMeasurement(store, study.ID, patient, 10, 50, nil, nil)

	trends, err := newTestService(store).GetPatientMeasurementTrends(context.Background(), patient, models.MeasurementBloodPressureSystolic)
	if err != nil {
		t.Fatalf("failed to get trends: %v", err)
	}
	if trends.PercentChangeFromBaseline != nil || trends.TrendDirection != "" {
		t.Fatalf("expected no trend for zero baseline, got %v / %s", trends.PercentChangeFromBaseline, trends.TrendDirection)
	}
}
