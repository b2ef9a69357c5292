package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/preclinical-platform/platform/pkg/common/config"
	"github.com/preclinical-platform/platform/pkg/common/logger"
	"github.com/preclinical-platform/platform/pkg/common/models"
	"github.com/preclinical-platform/platform/pkg/common/pool"
	"github.com/preclinical-platform/platform/pkg/events"
)

// Sender delivers a composed message. The default implementation writes to
// the structured log; a real SMTP gateway can be substituted at wiring time.
type Sender interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// LogSender records outbound notifications in the service log instead of
// delivering them. Used when email delivery is disabled or unconfigured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, to []string, subject, body string) error {
	logger.Log.WithFields(map[string]interface{}{
		"to":      to,
		"subject": subject,
	}).Info(body)
	return nil
}

// EmailNotifier turns lifecycle events into notifications. Routine
// notifications share a general pool; serious adverse event alerts run on a
// small dedicated pool so a backlog of routine mail cannot delay them.
// Delivery is fire-and-forget: failures are logged, never retried, and never
// surfaced to the operation that raised the event.
type EmailNotifier struct {
	sender   Sender
	props    config.Properties
	general  *pool.Pool
	critical *pool.Pool
}

func NewEmailNotifier(sender Sender, props config.Properties) *EmailNotifier {
	if sender == nil {
		sender = LogSender{}
	}
	return &EmailNotifier{
		sender:   sender,
		props:    props,
		general:  pool.New("notify", 5, 15, 200),
		critical: pool.New("notify-sae", 2, 5, 50),
	}
}

// HandleEvent is the bus subscription point.
func (n *EmailNotifier) HandleEvent(ctx context.Context, evt events.Event) error {
	if !n.props.Email.Enabled {
		return nil
	}
	switch e := evt.(type) {
	case events.StudyCreated:
		n.notifyStudyCreated(e.Study)
	case events.StudyStatusChanged:
		n.notifyStudyStatusChanged(e.Study, e.OldStatus, e.NewStatus)
	case events.PatientEnrolled:
		n.notifyPatientEnrolled(e.Patient)
	case events.PatientStatusChanged:
		n.notifyPatientStatusChanged(e.Patient, e.OldStatus, e.NewStatus)
	case events.SeriousAdverseEventAlert:
		n.notifySeriousAdverseEvent(e.Event)
	}
	return nil
}

func (n *EmailNotifier) Close() {
	n.general.Close()
	n.critical.Close()
}

func (n *EmailNotifier) notifyStudyCreated(study models.Study) {
	subject := fmt.Sprintf("New study created: %s", study.StudyCode)
	body := fmt.Sprintf("Study %s (%s) has been created in phase %s and awaits activation.",
		study.StudyCode, study.Title, study.Phase)
	n.submit(n.general, []string{n.props.Email.RegulatoryTeamEmail}, subject, body)
}

func (n *EmailNotifier) notifyStudyStatusChanged(study models.Study, oldStatus, newStatus models.StudyStatus) {
	subject := fmt.Sprintf("Study %s status changed: %s -> %s", study.StudyCode, oldStatus, newStatus)
	body := fmt.Sprintf("Study %s transitioned from %s to %s on %s.",
		study.StudyCode, oldStatus, newStatus, time.Now().UTC().Format(time.RFC3339))
	n.submit(n.general, []string{n.props.Email.RegulatoryTeamEmail}, subject, body)
}

func (n *EmailNotifier) notifyPatientEnrolled(patient models.Patient) {
	subject := fmt.Sprintf("Patient enrolled: %s", patient.PatientCode)
	body := fmt.Sprintf("Patient %s enrolled in study %s on %s.",
		patient.PatientCode, patient.StudyID, patient.EnrollmentDate.Format("2006-01-02"))
	n.submit(n.general, []string{n.props.Email.RegulatoryTeamEmail}, subject, body)
}

func (n *EmailNotifier) notifyPatientStatusChanged(patient models.Patient, oldStatus, newStatus models.PatientStatus) {
	subject := fmt.Sprintf("Patient %s status changed: %s -> %s", patient.PatientCode, oldStatus, newStatus)
	body := fmt.Sprintf("Patient %s in study %s transitioned from %s to %s.",
		patient.PatientCode, patient.StudyID, oldStatus, newStatus)
	n.submit(n.general, []string{n.props.Email.RegulatoryTeamEmail}, subject, body)
}

func (n *EmailNotifier) notifySeriousAdverseEvent(event models.AdverseEvent) {
	recipients := append([]string{n.props.Email.SafetyTeamEmail}, n.props.AdverseEvent.SAENotificationEmails...)
	subject := fmt.Sprintf("SERIOUS ADVERSE EVENT: %s (study %s)", event.EventTerm, event.StudyID)
	body := fmt.Sprintf(
		"A serious adverse event was recorded.\nTerm: %s\nSeverity: %s\nCausality: %s\nOnset: %s\nRegulatory reporting is due within %d hours.",
		event.EventTerm, event.Severity, event.Causality,
		event.OnsetDate.Format("2006-01-02"), n.props.AdverseEvent.SAEReportingTimeframeHrs)
	n.submit(n.critical, recipients, subject, body)
}

func (n *EmailNotifier) submit(p *pool.Pool, to []string, subject, body string) {
	p.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := n.sender.Send(ctx, to, subject, body); err != nil {
			logger.Log.WithError(err).WithField("subject", subject).Error("failed to send notification")
		}
	})
}
