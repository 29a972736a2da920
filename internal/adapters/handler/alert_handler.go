package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/medtrack/adherence-service/internal/core/ports"
)

// AlertHandler handles HTTP requests that raise alert events directly
type AlertHandler struct {
	doseService ports.DoseService
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(doseService ports.DoseService) *AlertHandler {
	return &AlertHandler{
		doseService: doseService,
	}
}

// PanicRequest represents the optional body of a panic alert
type PanicRequest struct {
	Note string `json:"note,omitempty"`
}

// Panic handles POST /alerts/panic (PATIENT only)
// Publishes a panic event to the caregiver alert queue immediately.
func (h *AlertHandler) Panic(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := generateRequestID()

	userID, role, ok := authedUser(w, r, requestID)
	if !ok {
		return
	}

	// Body is optional; a bare POST is a valid panic
	var req PanicRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.doseService.PublishPanic(r.Context(), userID, req.Note); err != nil {
		log.Printf("[%s] Failed to publish panic: user_id=%s, error=%v", requestID, userID, err)
		http.Error(w, "failed to raise alert", http.StatusInternalServerError)
		return
	}

	logStructured(requestID, userID.String(), role, "POST", "/alerts/panic", http.StatusAccepted, time.Since(startTime))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "alert raised"}); err != nil {
		log.Printf("[%s] Failed to encode response: %v", requestID, err)
	}
}
