package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/preclinical-platform/platform/pkg/common/cache"
	"github.com/preclinical-platform/platform/pkg/common/logger"
	"github.com/preclinical-platform/platform/pkg/common/models"
	"github.com/preclinical-platform/platform/pkg/study"
)

// Service derives safety, efficacy and enrollment analytics from store
// reads. Every operation is a pure read: reports never mutate records, and
// empty inputs produce "no data" reports, not errors. Safety and efficacy
// reports are cached by study (and measurement type) until the scheduled
// refresh recomputes them; record writes do not invalidate them.
type Service struct {
	studies      study.StudyStore
	patients     study.PatientStore
	events       study.AdverseEventStore
	measurements study.MeasurementStore
	cache        cache.Cache
	now          func() time.Time
}

func NewService(studies study.StudyStore, patients study.PatientStore, adverseEvents study.AdverseEventStore, measurements study.MeasurementStore, c cache.Cache) *Service {
	return &Service{
		studies:      studies,
		patients:     patients,
		events:       adverseEvents,
		measurements: measurements,
		cache:        c,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// EfficacyFilter narrows an efficacy analysis to a measurement-date window
// and/or a study-day window. Nil bounds are open.
type EfficacyFilter struct {
	FromDate *time.Time
	ToDate   *time.Time
	FromDay  *int
	ToDay    *int
}

func (f EfficacyFilter) empty() bool {
	return f.FromDate == nil && f.ToDate == nil && f.FromDay == nil && f.ToDay == nil
}

func (f EfficacyFilter) matches(m models.EfficacyMeasurement) bool {
	if f.FromDate != nil && m.MeasurementDate.Before(*f.FromDate) {
		return false
	}
	if f.ToDate != nil && m.MeasurementDate.After(*f.ToDate) {
		return false
	}
	if f.FromDay != nil && m.StudyDay < *f.FromDay {
		return false
	}
	if f.ToDay != nil && m.StudyDay > *f.ToDay {
		return false
	}
	return true
}

func (s *Service) GenerateSafetyAnalysis(ctx context.Context, studyID uuid.UUID) (models.SafetyAnalysisReport, error) {
	var report models.SafetyAnalysisReport
	if data, ok := s.cache.Get(ctx, cache.SafetyReportKey(studyID)); ok {
		if err := json.Unmarshal(data, &report); err == nil {
			return report, nil
		}
	}

	report, err := s.computeSafetyAnalysis(ctx, studyID)
	if err != nil {
		return models.SafetyAnalysisReport{}, err
	}
	if data, err := json.Marshal(report); err == nil {
		s.cache.Set(ctx, cache.SafetyReportKey(studyID), data)
	}
	return report, nil
}

func (s *Service) computeSafetyAnalysis(ctx context.Context, studyID uuid.UUID) (models.SafetyAnalysisReport, error) {
	logger.Log.WithField("study_id", studyID).Info("generating safety analysis")

	st, err := s.studies.GetStudy(ctx, studyID)
	if err != nil {
		return models.SafetyAnalysisReport{}, err
	}
	adverseEvents, err := s.events.ListEventsByStudy(ctx, studyID)
	if err != nil {
		return models.SafetyAnalysisReport{}, err
	}
	totalPatients, err := s.patients.CountPatientsByStudy(ctx, studyID)
	if err != nil {
		return models.SafetyAnalysisReport{}, err
	}

	bySeverity := make(map[models.Severity]int)
	byCausality := make(map[models.Causality]int)
	var serious int
	for _, evt := range adverseEvents {
		bySeverity[evt.Severity]++
		byCausality[evt.Causality]++
		if evt.Serious {
			serious++
		}
	}

	termCounts := countTerms(adverseEvents)
	frequent := make([]string, 0)
	for _, tc := range topTerms(termCounts, 10, 2) {
		frequent = append(frequent, tc.Term)
	}

	var seriousRate float64
	if totalPatients > 0 {
		seriousRate = float64(serious) / float64(totalPatients) * 100
	}

	return models.SafetyAnalysisReport{
		StudyID:           studyID,
		StudyCode:         st.StudyCode,
		EventsBySeverity:  bySeverity,
		EventsByCausality: byCausality,
		FrequentEvents:    frequent,
		SeriousEventRate:  seriousRate,
		SafetySignals:     identifySafetySignals(adverseEvents, termCounts, totalPatients),
		AnalysisDate:      s.now(),
	}, nil
}

// identifySafetySignals applies the three heuristic detectors: serious-event
// rate, term clustering, and causality concentration. Signals are patterns
// flagged for human review, not causal findings.
func identifySafetySignals(adverseEvents []models.AdverseEvent, termCounts []models.TermCount, totalPatients int64) []string {
	signals := make([]string, 0)

	var serious, drugRelated int
	for _, evt := range adverseEvents {
		if evt.Serious {
			serious++
		}
		if evt.IsDrugRelated() {
			drugRelated++
		}
	}

	var seriousRate float64
	if totalPatients > 0 {
		seriousRate = float64(serious) / float64(totalPatients)
	}
	if seriousRate > 0.1 {
		signals = append(signals, fmt.Sprintf("HIGH_SERIOUS_EVENT_RATE: %.1f%%", math.Round(seriousRate*1000)/10))
	}

	clusterThreshold := math.Max(3, float64(totalPatients)*0.05)
	for _, tc := range termCounts {
		if float64(tc.Count) >= clusterThreshold {
			signals = append(signals, fmt.Sprintf("FREQUENT_EVENT: %s (%d cases)", tc.Term, tc.Count))
		}
	}

	if float64(drugRelated) > float64(totalPatients)*0.15 {
		signals = append(signals, fmt.Sprintf("HIGH_DRUG_RELATED_EVENTS: %d events", drugRelated))
	}

	return signals
}

func (s *Service) AnalyzeEfficacy(ctx context.Context, studyID uuid.UUID, measurementType models.MeasurementType, filter EfficacyFilter) (models.EfficacyAnalysisReport, error) {
	cacheable := filter.empty()
	key := cache.EfficacyReportKey(studyID, string(measurementType))
	if cacheable {
		var report models.EfficacyAnalysisReport
		if data, ok := s.cache.Get(ctx, key); ok {
			if err := json.Unmarshal(data, &report); err == nil {
				return report, nil
			}
		}
	}

	report, err := s.computeEfficacyAnalysis(ctx, studyID, measurementType, filter)
	if err != nil {
		return models.EfficacyAnalysisReport{}, err
	}
	if cacheable {
		if data, err := json.Marshal(report); err == nil {
			s.cache.Set(ctx, key, data)
		}
	}
	return report, nil
}

func (s *Service) computeEfficacyAnalysis(ctx context.Context, studyID uuid.UUID, measurementType models.MeasurementType, filter EfficacyFilter) (models.EfficacyAnalysisReport, error) {
	logger.Log.WithFields(map[string]interface{}{
		"study_id":         studyID,
		"measurement_type": measurementType,
	}).Info("analyzing efficacy")

	all, err := s.measurements.ListMeasurementsByStudy(ctx, studyID)
	if err != nil {
		return models.EfficacyAnalysisReport{}, err
	}

	measurements := make([]models.EfficacyMeasurement, 0, len(all))
	for _, m := range all {
		if m.MeasurementType == measurementType && filter.matches(m) {
			measurements = append(measurements, m)
		}
	}

	// Empty input is a reportable state, never an error.
	if len(measurements) == 0 {
		return models.EfficacyAnalysisReport{
			StudyID:         studyID,
			MeasurementType: measurementType,
			NoData:          true,
			Insights:        []string{"No data available for analysis"},
			GeneratedAt:     s.now(),
		}, nil
	}

	// Mean, min and max are computed over numeric values only; a record
	// without a value still counts toward totals and normal-range insights.
	var sum, minValue, maxValue float64
	var counted int
	patients := make(map[uuid.UUID]struct{})
	for _, m := range measurements {
		patients[m.PatientID] = struct{}{}
		if m.Value == nil {
			continue
		}
		value := *m.Value
		sum += value
		if counted == 0 || value < minValue {
			minValue = value
		}
		if counted == 0 || value > maxValue {
			maxValue = value
		}
		counted++
	}
	if counted == 0 {
		return models.EfficacyAnalysisReport{
			StudyID:         studyID,
			MeasurementType: measurementType,
			NoData:          true,
			Insights:        []string{"No data available for analysis"},
			GeneratedAt:     s.now(),
		}, nil
	}
	mean := sum / float64(counted)

	return models.EfficacyAnalysisReport{
		StudyID:           studyID,
		MeasurementType:   measurementType,
		MeanValue:         mean,
		MinValue:          minValue,
		MaxValue:          maxValue,
		TotalMeasurements: len(measurements),
		UniquePatients:    len(patients),
		Insights:          efficacyInsights(measurements, mean),
		ConfidenceLevel:   95.0,
		Methodology:       models.EfficacyMethodology,
		GeneratedAt:       s.now(),
	}, nil
}

// efficacyInsights builds the ordered insight list: mean, data sufficiency,
// then the out-of-normal-range alert tier.
func efficacyInsights(measurements []models.EfficacyMeasurement, mean float64) []string {
	insights := make([]string, 0, 3)

	insights = append(insights, fmt.Sprintf("Average measurement value: %.2f", math.Round(mean*100)/100))

	if len(measurements) >= 10 {
		insights = append(insights, fmt.Sprintf("Sufficient data points for trend analysis (%d measurements)", len(measurements)))
	} else {
		insights = append(insights, "Limited data points - more measurements needed for robust analysis")
	}

	var abnormal int
	for _, m := range measurements {
		if !m.WithinNormalRange() {
			abnormal++
		}
	}
	abnormalRate := float64(abnormal) / float64(len(measurements)) * 100

	switch {
	case abnormalRate > 20:
		insights = append(insights, fmt.Sprintf("HIGH ALERT: %.0f%% of measurements outside normal range", math.Round(abnormalRate)))
	case abnormalRate > 10:
		insights = append(insights, fmt.Sprintf("CAUTION: %.0f%% of measurements outside normal range", math.Round(abnormalRate)))
	default:
		insights = append(insights, "Most measurements within expected normal ranges")
	}

	return insights
}

func (s *Service) GetEnrollmentTrends(ctx context.Context, studyID uuid.UUID) (models.EnrollmentTrends, error) {
	patients, err := s.patients.ListPatientsByStudy(ctx, studyID)
	if err != nil {
		return models.EnrollmentTrends{}, err
	}

	byMonth := make(map[string]int)
	first := s.now()
	last := s.now()
	for i, p := range patients {
		byMonth[p.EnrollmentDate.Format("2006-01")]++
		if i == 0 || p.EnrollmentDate.Before(first) {
			first = p.EnrollmentDate
		}
		if i == 0 || p.EnrollmentDate.After(last) {
			last = p.EnrollmentDate
		}
	}

	weeks := int64(s.now().Sub(first).Hours() / (24 * 7))
	var velocity float64
	if weeks > 0 {
		velocity = math.Round(float64(len(patients))/float64(weeks)*100) / 100
	}

	return models.EnrollmentTrends{
		StudyID:             studyID,
		EnrollmentByMonth:   byMonth,
		TotalEnrolled:       len(patients),
		EnrollmentVelocity:  velocity,
		FirstEnrollmentDate: first,
		LastEnrollmentDate:  last,
	}, nil
}

// GetAdverseEventsSummary summarizes adverse events, optionally scoped to a
// study and an inclusive onset-date window.
func (s *Service) GetAdverseEventsSummary(ctx context.Context, studyID *uuid.UUID, startDate, endDate *time.Time) (models.AdverseEventsSummary, error) {
	var adverseEvents []models.AdverseEvent
	var err error
	if studyID != nil {
		adverseEvents, err = s.events.ListEventsByStudy(ctx, *studyID)
	} else {
		adverseEvents, err = s.events.ListAllEvents(ctx)
	}
	if err != nil {
		return models.AdverseEventsSummary{}, err
	}

	if startDate != nil && endDate != nil {
		filtered := make([]models.AdverseEvent, 0, len(adverseEvents))
		for _, evt := range adverseEvents {
			if !evt.OnsetDate.Before(*startDate) && !evt.OnsetDate.After(*endDate) {
				filtered = append(filtered, evt)
			}
		}
		adverseEvents = filtered
	}

	bySeverity := make(map[string]int)
	var serious int
	for _, evt := range adverseEvents {
		bySeverity[string(evt.Severity)]++
		if evt.Serious {
			serious++
		}
	}

	return models.AdverseEventsSummary{
		TotalEvents:      len(adverseEvents),
		SeriousEvents:    serious,
		EventsBySeverity: bySeverity,
		TopEvents:        topTerms(countTerms(adverseEvents), 5, 1),
	}, nil
}

// GetPatientMeasurementTrends orders a patient's measurements of one type
// by study day and derives the baseline-relative trend. Fewer than two
// points yields data without trend fields.
func (s *Service) GetPatientMeasurementTrends(ctx context.Context, patientID uuid.UUID, measurementType models.MeasurementType) (models.MeasurementTrends, error) {
	measurements, err := s.measurements.ListMeasurementsByPatientAndType(ctx, patientID, measurementType)
	if err != nil {
		return models.MeasurementTrends{}, err
	}

	sort.SliceStable(measurements, func(i, j int) bool {
		return measurements[i].StudyDay < measurements[j].StudyDay
	})

	points := make([]models.MeasurementPoint, 0, len(measurements))
	for _, m := range measurements {
		points = append(points, models.MeasurementPoint{
			StudyDay:          m.StudyDay,
			Value:             m.Value,
			Date:              m.MeasurementDate,
			WithinNormalRange: m.WithinNormalRange(),
		})
	}

	trends := models.MeasurementTrends{
		PatientID:         patientID,
		MeasurementType:   measurementType,
		DataPoints:        points,
		TotalMeasurements: len(measurements),
	}

	if len(measurements) >= 2 {
		first := measurements[0]
		last := measurements[len(measurements)-1]
		if change := last.PercentChangeFrom(first.Value); change != nil {
			trends.PercentChangeFromBaseline = change
			switch {
			case *change > 5:
				trends.TrendDirection = models.TrendImproving
			case *change < -5:
				trends.TrendDirection = models.TrendDeclining
			default:
				trends.TrendDirection = models.TrendStable
			}
		}
	}

	return trends, nil
}

// countTerms tallies event terms preserving first-encounter order.
func countTerms(adverseEvents []models.AdverseEvent) []models.TermCount {
	index := make(map[string]int)
	counts := make([]models.TermCount, 0)
	for _, evt := range adverseEvents {
		if i, ok := index[evt.EventTerm]; ok {
			counts[i].Count++
			continue
		}
		index[evt.EventTerm] = len(counts)
		counts = append(counts, models.TermCount{Term: evt.EventTerm, Count: 1})
	}
	return counts
}

// topTerms keeps terms occurring at least minCount times, sorted by
// descending count with encounter order breaking ties, capped at limit.
func topTerms(counts []models.TermCount, limit, minCount int) []models.TermCount {
	kept := make([]models.TermCount, 0, len(counts))
	for _, tc := range counts {
		if tc.Count >= minCount {
			kept = append(kept, tc)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Count > kept[j].Count })
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}
