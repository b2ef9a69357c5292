package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/preclinical-platform/platform/pkg/common/logger"
	"github.com/preclinical-platform/platform/pkg/events"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type auditLogModel struct {
	ID         uuid.UUID      `gorm:"column:id;primaryKey"`
	EventType  string         `gorm:"column:event_type;index"`
	EntityType string         `gorm:"column:entity_type;index"`
	EntityID   uuid.UUID      `gorm:"column:entity_id;index"`
	Payload    datatypes.JSON `gorm:"column:payload"`
	RecordedAt time.Time      `gorm:"column:recorded_at"`
}

func (auditLogModel) TableName() string { return "audit_logs" }

// Recorder persists one append-only audit row per lifecycle event, with the
// full event payload as JSON. Rows are never updated or deleted. A failed
// write is logged and dropped; the audit trail is best-effort and must not
// affect the operation that raised the event.
type Recorder struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRecorder(db *gorm.DB) (*Recorder, error) {
	if err := db.AutoMigrate(&auditLogModel{}); err != nil {
		return nil, err
	}
	return &Recorder{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// HandleEvent is the bus subscription point.
func (r *Recorder) HandleEvent(ctx context.Context, evt events.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	entityType, entityID := entityRef(evt)
	row := auditLogModel{
		ID:         uuid.New(),
		EventType:  evt.EventType(),
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    datatypes.JSON(payload),
		RecordedAt: r.now(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"audit":       true,
		"event_type":  row.EventType,
		"entity_type": entityType,
		"entity_id":   entityID,
	}).Info("AUDIT: lifecycle event recorded")
	return nil
}

func entityRef(evt events.Event) (string, uuid.UUID) {
	switch e := evt.(type) {
	case events.StudyCreated:
		return "study", e.Study.ID
	case events.StudyStatusChanged:
		return "study", e.Study.ID
	case events.PatientEnrolled:
		return "patient", e.Patient.ID
	case events.PatientUpdated:
		return "patient", e.Patient.ID
	case events.PatientStatusChanged:
		return "patient", e.Patient.ID
	case events.MeasurementRecorded:
		return "measurement", e.Measurement.ID
	case events.SeriousAdverseEventAlert:
		return "adverse_event", e.Event.ID
	default:
		return "unknown", uuid.Nil
	}
}
