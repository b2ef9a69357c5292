package study

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/preclinical-platform/platform/pkg/common/errs"
	"github.com/preclinical-platform/platform/pkg/common/logger"
	"github.com/preclinical-platform/platform/pkg/common/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/studies", h.handleCreateStudy).Methods(http.MethodPost)
	r.HandleFunc("/studies/active", h.handleListActiveStudies).Methods(http.MethodGet)
	r.HandleFunc("/studies/code/{code}", h.handleGetStudyByCode).Methods(http.MethodGet)
	r.HandleFunc("/studies/{id}", h.handleGetStudy).Methods(http.MethodGet)
	r.HandleFunc("/studies/{id}", h.handleUpdateStudy).Methods(http.MethodPatch)
	r.HandleFunc("/studies/{id}/status", h.handleSetStudyStatus).Methods(http.MethodPatch)
	r.HandleFunc("/studies/{id}/statistics", h.handleStudyStatistics).Methods(http.MethodGet)
	r.HandleFunc("/studies/{id}/patients", h.handleEnrollPatient).Methods(http.MethodPost)
	r.HandleFunc("/studies/{id}/patients", h.handleListPatients).Methods(http.MethodGet)
	r.HandleFunc("/patients/code/{code}", h.handleGetPatientByCode).Methods(http.MethodGet)
	r.HandleFunc("/patients/{id}", h.handleGetPatient).Methods(http.MethodGet)
	r.HandleFunc("/patients/{id}", h.handleUpdatePatient).Methods(http.MethodPatch)
	r.HandleFunc("/patients/{id}/status", h.handleSetPatientStatus).Methods(http.MethodPatch)
	r.HandleFunc("/patients/{id}/adverse-events", h.handleRecordAdverseEvent).Methods(http.MethodPost)
	r.HandleFunc("/patients/{id}/adverse-events", h.handleListAdverseEvents).Methods(http.MethodGet)
	r.HandleFunc("/patients/{id}/measurements", h.handleRecordMeasurement).Methods(http.MethodPost)
	r.HandleFunc("/patients/{id}/measurements", h.handleListMeasurements).Methods(http.MethodGet)
}

func (h *Handler) handleCreateStudy(w http.ResponseWriter, r *http.Request) {
	var req models.CreateStudyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	study, err := h.service.CreateStudy(r.Context(), req)
	if err != nil {
		writeError(w, err, "failed to create study")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"study": study})
}

func (h *Handler) handleGetStudy(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid study id", http.StatusBadRequest)
		return
	}
	study, err := h.service.GetStudyByID(r.Context(), id)
	if err != nil {
		writeError(w, err, "failed to get study")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"study": study})
}

func (h *Handler) handleGetStudyByCode(w http.ResponseWriter, r *http.Request) {
	study, err := h.service.GetStudyByCode(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeError(w, err, "failed to get study")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"study": study})
}

func (h *Handler) handleListActiveStudies(w http.ResponseWriter, r *http.Request) {
	phase := r.URL.Query().Get("phase")

	var (
		studies []models.Study
		err     error
	)
	if phase != "" {
		studies, err = h.service.GetStudiesByPhase(r.Context(), models.StudyPhase(phase))
	} else {
		studies, err = h.service.GetActiveStudies(r.Context())
	}
	if err != nil {
		writeError(w, err, "failed to list studies")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": studies})
}

func (h *Handler) handleUpdateStudy(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid study id", http.StatusBadRequest)
		return
	}
	var req models.UpdateStudyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	study, err := h.service.UpdateStudy(r.Context(), id, req)
	if err != nil {
		writeError(w, err, "failed to update study")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"study": study})
}

func (h *Handler) handleSetStudyStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid study id", http.StatusBadRequest)
		return
	}
	var req models.UpdateStudyStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Status == "" {
		http.Error(w, "status is required", http.StatusBadRequest)
		return
	}
	study, err := h.service.SetStudyStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, err, "failed to update study status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"study": study})
}

func (h *Handler) handleStudyStatistics(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid study id", http.StatusBadRequest)
		return
	}
	report, err := h.service.StudyStatistics(r.Context(), id)
	if err != nil {
		writeError(w, err, "failed to generate study statistics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"statistics": report})
}

func (h *Handler) handleEnrollPatient(w http.ResponseWriter, r *http.Request) {
	studyID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid study id", http.StatusBadRequest)
		return
	}
	var req models.CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	patient, err := h.service.EnrollPatient(r.Context(), studyID, req)
	if err != nil {
		writeError(w, err, "failed to enroll patient")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"patient": patient})
}

func (h *Handler) handleListPatients(w http.ResponseWriter, r *http.Request) {
	studyID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid study id", http.StatusBadRequest)
		return
	}
	patients, err := h.service.GetPatientsByStudy(r.Context(), studyID)
	if err != nil {
		writeError(w, err, "failed to list patients")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": patients})
}

func (h *Handler) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}
	patient, err := h.service.GetPatientByID(r.Context(), id)
	if err != nil {
		writeError(w, err, "failed to get patient")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"patient": patient})
}

func (h *Handler) handleGetPatientByCode(w http.ResponseWriter, r *http.Request) {
	patient, err := h.service.GetPatientByCode(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeError(w, err, "failed to get patient")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"patient": patient})
}

func (h *Handler) handleUpdatePatient(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}
	var req models.UpdatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	patient, err := h.service.UpdatePatient(r.Context(), id, req)
	if err != nil {
		writeError(w, err, "failed to update patient")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"patient": patient})
}

func (h *Handler) handleSetPatientStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}
	var req models.UpdatePatientStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Status == "" {
		http.Error(w, "status is required", http.StatusBadRequest)
		return
	}
	patient, err := h.service.SetPatientStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, err, "failed to update patient status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"patient": patient})
}

func (h *Handler) handleRecordAdverseEvent(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}
	var req models.CreateAdverseEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	event, err := h.service.RecordAdverseEvent(r.Context(), patientID, req)
	if err != nil {
		writeError(w, err, "failed to record adverse event")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"adverse_event": event})
}

func (h *Handler) handleListAdverseEvents(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}
	events, err := h.service.GetPatientAdverseEvents(r.Context(), patientID)
	if err != nil {
		writeError(w, err, "failed to list adverse events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": events})
}

func (h *Handler) handleRecordMeasurement(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}
	var req models.CreateMeasurementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	measurement, err := h.service.RecordMeasurement(r.Context(), patientID, req)
	if err != nil {
		writeError(w, err, "failed to record measurement")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"measurement": measurement})
}

func (h *Handler) handleListMeasurements(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}
	measurements, err := h.service.GetPatientMeasurements(r.Context(), patientID)
	if err != nil {
		writeError(w, err, "failed to list measurements")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": measurements})
}

// writeError maps the error taxonomy to responses. Unexpected errors are
// logged with context and surfaced without internal detail.
func writeError(w http.ResponseWriter, err error, logMsg string) {
	switch errs.KindOf(err) {
	case errs.KindNotFound:
		http.Error(w, err.Error(), http.StatusNotFound)
	case errs.KindIllegalState:
		http.Error(w, err.Error(), http.StatusConflict)
	case errs.KindDuplicateKey:
		http.Error(w, err.Error(), http.StatusConflict)
	case errs.KindValidation:
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"message":           "validation failed",
			"validation_errors": errs.ValidationFields(err),
		})
	default:
		logger.Log.WithError(err).Error(logMsg)
		http.Error(w, logMsg, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
