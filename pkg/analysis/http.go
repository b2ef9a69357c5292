package analysis

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

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
	r.HandleFunc("/analysis/studies/{id}/safety", h.handleSafetyAnalysis).Methods(http.MethodGet)
	r.HandleFunc("/analysis/studies/{id}/efficacy/{type}", h.handleEfficacyAnalysis).Methods(http.MethodGet)
	r.HandleFunc("/analysis/studies/{id}/enrollment-trends", h.handleEnrollmentTrends).Methods(http.MethodGet)
	r.HandleFunc("/analysis/adverse-events/summary", h.handleAdverseEventsSummary).Methods(http.MethodGet)
	r.HandleFunc("/analysis/patients/{id}/measurements/{type}/trends", h.handleMeasurementTrends).Methods(http.MethodGet)
}

func (h *Handler) handleSafetyAnalysis(w http.ResponseWriter, r *http.Request) {
	studyID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid study id", http.StatusBadRequest)
		return
	}
	report, err := h.service.GenerateSafetyAnalysis(r.Context(), studyID)
	if err != nil {
		writeError(w, err, "failed to generate safety analysis")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"report": report})
}

func (h *Handler) handleEfficacyAnalysis(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	studyID, err := uuid.Parse(vars["id"])
	if err != nil {
		http.Error(w, "invalid study id", http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	var filter EfficacyFilter
	if filter.FromDate, err = parseDateParam(query.Get("from_date")); err != nil {
		http.Error(w, "invalid from_date", http.StatusBadRequest)
		return
	}
	if filter.ToDate, err = parseDateParam(query.Get("to_date")); err != nil {
		http.Error(w, "invalid to_date", http.StatusBadRequest)
		return
	}
	if filter.FromDay, err = parseIntParam(query.Get("from_day")); err != nil {
		http.Error(w, "invalid from_day", http.StatusBadRequest)
		return
	}
	if filter.ToDay, err = parseIntParam(query.Get("to_day")); err != nil {
		http.Error(w, "invalid to_day", http.StatusBadRequest)
		return
	}

	report, err := h.service.AnalyzeEfficacy(r.Context(), studyID, models.MeasurementType(vars["type"]), filter)
	if err != nil {
		writeError(w, err, "failed to analyze efficacy")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"report": report})
}

func (h *Handler) handleEnrollmentTrends(w http.ResponseWriter, r *http.Request) {
	studyID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid study id", http.StatusBadRequest)
		return
	}
	trends, err := h.service.GetEnrollmentTrends(r.Context(), studyID)
	if err != nil {
		writeError(w, err, "failed to get enrollment trends")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"trends": trends})
}

func (h *Handler) handleAdverseEventsSummary(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var studyID *uuid.UUID
	if raw := query.Get("study_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid study_id", http.StatusBadRequest)
			return
		}
		studyID = &id
	}
	startDate, err := parseDateParam(query.Get("start_date"))
	if err != nil {
		http.Error(w, "invalid start_date", http.StatusBadRequest)
		return
	}
	endDate, err := parseDateParam(query.Get("end_date"))
	if err != nil {
		http.Error(w, "invalid end_date", http.StatusBadRequest)
		return
	}

	summary, err := h.service.GetAdverseEventsSummary(r.Context(), studyID, startDate, endDate)
	if err != nil {
		writeError(w, err, "failed to summarize adverse events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"summary": summary})
}

func (h *Handler) handleMeasurementTrends(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	patientID, err := uuid.Parse(vars["id"])
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}
	trends, err := h.service.GetPatientMeasurementTrends(r.Context(), patientID, models.MeasurementType(vars["type"]))
	if err != nil {
		writeError(w, err, "failed to get measurement trends")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"trends": trends})
}

func parseDateParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		if t, err = time.Parse("2006-01-02", raw); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func parseIntParam(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func writeError(w http.ResponseWriter, err error, logMsg string) {
	switch errs.KindOf(err) {
	case errs.KindNotFound:
		http.Error(w, err.Error(), http.StatusNotFound)
	case errs.KindIllegalState:
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
