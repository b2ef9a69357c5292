package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/preclinical-platform/platform/pkg/analysis"
	"github.com/preclinical-platform/platform/pkg/common/cache"
	"github.com/preclinical-platform/platform/pkg/common/config"
	"github.com/preclinical-platform/platform/pkg/common/logger"
	"github.com/preclinical-platform/platform/pkg/common/models"
	"github.com/preclinical-platform/platform/pkg/study"
)

// Scheduler runs the recurring background sweeps: safety report refresh,
// SAE reporting compliance, and the weekly/monthly roll-up reports. Each
// task runs on its own ticker goroutine; a failing or panicking task is
// logged and retried on the next tick, never crashing the process.
type Scheduler struct {
	studies  study.StudyStore
	patients study.PatientStore
	events   study.AdverseEventStore
	analysis *analysis.Service
	cache    cache.Cache
	props    config.Properties
	now      func() time.Time

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(studies study.StudyStore, patients study.PatientStore, adverseEvents study.AdverseEventStore, analysisService *analysis.Service, c cache.Cache, props config.Properties) *Scheduler {
	return &Scheduler{
		studies:  studies,
		patients: patients,
		events:   adverseEvents,
		analysis: analysisService,
		cache:    c,
		props:    props,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.spawn(ctx, "safety-report-refresh", time.Hour, s.refreshSafetyReports)
	s.spawn(ctx, "sae-compliance-sweep", time.Hour, s.sweepSAECompliance)
	s.spawn(ctx, "weekly-study-report", 7*24*time.Hour, s.weeklyStudyReport)
	s.spawn(ctx, "monthly-enrollment-report", 30*24*time.Hour, s.monthlyEnrollmentReport)
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) spawn(ctx context.Context, name string, interval time.Duration, task func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runTask(ctx, name, task)
			}
		}
	}()
}

func (s *Scheduler) runTask(ctx context.Context, name string, task func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.WithField("task", name).Errorf("scheduled task panicked: %v", r)
		}
	}()
	if err := task(ctx); err != nil {
		logger.Log.WithError(err).WithField("task", name).Error("scheduled task failed")
	}
}

// refreshSafetyReports recomputes the cached safety report for every active
// study so reads stay warm between record writes.
func (s *Scheduler) refreshSafetyReports(ctx context.Context) error {
	active, err := s.studies.ListStudiesByStatus(ctx, models.StudyActive)
	if err != nil {
		return err
	}
	for _, st := range active {
		s.cache.Delete(ctx, cache.SafetyReportKey(st.ID))
		if _, err := s.analysis.GenerateSafetyAnalysis(ctx, st.ID); err != nil {
			logger.Log.WithError(err).WithField("study_id", st.ID).Error("failed to refresh safety report")
		}
	}
	return nil
}

// sweepSAECompliance flags serious adverse events still unresolved past the
// configured regulatory reporting window.
func (s *Scheduler) sweepSAECompliance(ctx context.Context) error {
	adverseEvents, err := s.events.ListAllEvents(ctx)
	if err != nil {
		return err
	}
	deadline := s.now().Add(-time.Duration(s.props.AdverseEvent.SAEReportingTimeframeHrs) * time.Hour)
	for _, evt := range adverseEvents {
		if !evt.Serious || evt.ResolutionDate != nil {
			continue
		}
		if evt.CreatedAt.Before(deadline) {
			logger.Log.WithFields(map[string]interface{}{
				"adverse_event_id": evt.ID,
				"study_id":         evt.StudyID,
				"event_term":       evt.EventTerm,
				"recorded_at":      evt.CreatedAt,
			}).Warn("serious adverse event past reporting window without resolution")
		}
	}
	return nil
}

func (s *Scheduler) weeklyStudyReport(ctx context.Context) error {
	active, err := s.studies.ListStudiesByStatus(ctx, models.StudyActive)
	if err != nil {
		return err
	}
	for _, st := range active {
		enrolled, err := s.patients.CountPatientsByStudy(ctx, st.ID)
		if err != nil {
			logger.Log.WithError(err).WithField("study_id", st.ID).Error("failed to build weekly report")
			continue
		}
		adverseEvents, err := s.events.ListEventsByStudy(ctx, st.ID)
		if err != nil {
			logger.Log.WithError(err).WithField("study_id", st.ID).Error("failed to build weekly report")
			continue
		}
		var serious int
		for _, evt := range adverseEvents {
			if evt.Serious {
				serious++
			}
		}
		logger.Log.WithFields(map[string]interface{}{
			"study_code":     st.StudyCode,
			"enrolled":       enrolled,
			"adverse_events": len(adverseEvents),
			"serious_events": serious,
		}).Info("weekly study report")
	}
	return nil
}

func (s *Scheduler) monthlyEnrollmentReport(ctx context.Context) error {
	active, err := s.studies.ListStudiesByStatus(ctx, models.StudyActive)
	if err != nil {
		return err
	}
	for _, st := range active {
		trends, err := s.analysis.GetEnrollmentTrends(ctx, st.ID)
		if err != nil {
			logger.Log.WithError(err).WithField("study_id", st.ID).Error("failed to build enrollment report")
			continue
		}
		logger.Log.WithFields(map[string]interface{}{
			"study_code":          st.StudyCode,
			"total_enrolled":      trends.TotalEnrolled,
			"enrollment_velocity": trends.EnrollmentVelocity,
		}).Info("monthly enrollment report")
	}
	return nil
}
