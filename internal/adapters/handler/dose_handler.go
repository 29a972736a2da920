package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/medtrack/adherence-service/internal/core/domain"
	"github.com/medtrack/adherence-service/internal/core/ports"
)

// DoseHandler handles HTTP requests for the day view and dose recording
type DoseHandler struct {
	doseService ports.DoseService
}

// NewDoseHandler creates a new dose handler
func NewDoseHandler(doseService ports.DoseService) *DoseHandler {
	return &DoseHandler{
		doseService: doseService,
	}
}

// DosesForDate handles GET /doses?date=YYYY-MM-DD
// Defaults to today when the date parameter is absent.
func (h *DoseHandler) DosesForDate(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := generateRequestID()

	userID, role, ok := authedUser(w, r, requestID)
	if !ok {
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = domain.DateOf(time.Now())
	}

	doses, err := h.doseService.DosesForDate(r.Context(), userID, date)
	if err != nil {
		log.Printf("[%s] Failed to get doses: user_id=%s, date=%s, error=%v", requestID, userID, date, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if doses == nil {
		doses = []domain.DoseForDay{}
	}

	logStructured(requestID, userID.String(), role, "GET", "/doses", http.StatusOK, time.Since(startTime))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(doses); err != nil {
		log.Printf("[%s] Failed to encode response: %v", requestID, err)
	}
}

// RecordDose handles POST /doses (PATIENT only)
// Records or updates the outcome of one scheduled dose occurrence.
func (h *DoseHandler) RecordDose(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := generateRequestID()

	userID, role, ok := authedUser(w, r, requestID)
	if !ok {
		return
	}

	var req ports.RecordDoseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[%s] Failed to decode request: %v", requestID, err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Date == "" {
		req.Date = domain.DateOf(time.Now())
	}

	record, err := h.doseService.RecordDose(r.Context(), userID, req)
	if err != nil {
		writeMedicationError(w, requestID, userID, req.MedicationID, err)
		return
	}

	logStructured(requestID, userID.String(), role, "POST", "/doses", http.StatusOK, time.Since(startTime))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(record); err != nil {
		log.Printf("[%s] Failed to encode response: %v", requestID, err)
	}
}
