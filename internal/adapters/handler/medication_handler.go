package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/medtrack/adherence-service/internal/adapters/middleware"
	"github.com/medtrack/adherence-service/internal/core/domain"
	"github.com/medtrack/adherence-service/internal/core/ports"
)

// MedicationHandler handles HTTP requests for medication operations
type MedicationHandler struct {
	medicationService ports.MedicationService
}

// NewMedicationHandler creates a new medication handler
func NewMedicationHandler(medicationService ports.MedicationService) *MedicationHandler {
	return &MedicationHandler{
		medicationService: medicationService,
	}
}

// StockAdjustmentRequest represents the request body for a relative stock change
type StockAdjustmentRequest struct {
	Quantity  int    `json:"quantity"`
	Direction string `json:"direction"` // "add" or "subtract"
}

// SetStockRequest represents the request body for an absolute stock set
type SetStockRequest struct {
	Quantity int `json:"quantity"`
}

// CreateMedication handles POST /medications (PATIENT only)
func (h *MedicationHandler) CreateMedication(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := generateRequestID()

	userID, role, ok := authedUser(w, r, requestID)
	if !ok {
		return
	}

	var req ports.MedicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[%s] Failed to decode request: %v", requestID, err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	med, err := h.medicationService.CreateMedication(r.Context(), userID, req)
	if err != nil {
		log.Printf("[%s] Failed to create medication: user_id=%s, error=%v", requestID, userID, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	logStructured(requestID, userID.String(), role, "POST", "/medications", http.StatusCreated, time.Since(startTime))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(med); err != nil {
		log.Printf("[%s] Failed to encode response: %v", requestID, err)
	}
}

// ListMedications handles GET /medications
func (h *MedicationHandler) ListMedications(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := generateRequestID()

	userID, role, ok := authedUser(w, r, requestID)
	if !ok {
		return
	}

	meds, err := h.medicationService.ListMedications(r.Context(), userID)
	if err != nil {
		log.Printf("[%s] Failed to list medications: user_id=%s, error=%v", requestID, userID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	logStructured(requestID, userID.String(), role, "GET", "/medications", http.StatusOK, time.Since(startTime))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(meds); err != nil {
		log.Printf("[%s] Failed to encode response: %v", requestID, err)
	}
}

// GetMedication handles GET /medications/{medication_id}
func (h *MedicationHandler) GetMedication(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := generateRequestID()

	userID, role, ok := authedUser(w, r, requestID)
	if !ok {
		return
	}

	medicationID, ok := pathUUID(w, r, requestID, "medication_id")
	if !ok {
		return
	}

	med, err := h.medicationService.GetMedication(r.Context(), medicationID, userID)
	if err != nil {
		writeMedicationError(w, requestID, userID, medicationID, err)
		return
	}

	logStructured(requestID, userID.String(), role, "GET", "/medications/"+medicationID.String(), http.StatusOK, time.Since(startTime))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(med); err != nil {
		log.Printf("[%s] Failed to encode response: %v", requestID, err)
	}
}

// UpdateMedication handles PUT /medications/{medication_id} (PATIENT only)
func (h *MedicationHandler) UpdateMedication(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := generateRequestID()

	userID, role, ok := authedUser(w, r, requestID)
	if !ok {
		return
	}

	medicationID, ok := pathUUID(w, r, requestID, "medication_id")
	if !ok {
		return
	}

	var req ports.MedicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[%s] Failed to decode request: %v", requestID, err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	med, err := h.medicationService.UpdateMedication(r.Context(), medicationID, userID, req)
	if err != nil {
		writeMedicationError(w, requestID, userID, medicationID, err)
		return
	}

	logStructured(requestID, userID.String(), role, "PUT", "/medications/"+medicationID.String(), http.StatusOK, time.Since(startTime))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(med); err != nil {
		log.Printf("[%s] Failed to encode response: %v", requestID, err)
	}
}

// DeactivateMedication handles DELETE /medications/{medication_id} (PATIENT only)
// The definition and its dose history are kept; it stops projecting doses.
func (h *MedicationHandler) DeactivateMedication(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := generateRequestID()

	userID, role, ok := authedUser(w, r, requestID)
	if !ok {
		return
	}

	medicationID, ok := pathUUID(w, r, requestID, "medication_id")
	if !ok {
		return
	}

	if err := h.medicationService.DeactivateMedication(r.Context(), medicationID, userID); err != nil {
		writeMedicationError(w, requestID, userID, medicationID, err)
		return
	}

	logStructured(requestID, userID.String(), role, "DELETE", "/medications/"+medicationID.String(), http.StatusNoContent, time.Since(startTime))

	w.WriteHeader(http.StatusNoContent)
}

// SetStock handles PUT /medications/{medication_id}/stock (PATIENT only)
func (h *MedicationHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := generateRequestID()

	userID, role, ok := authedUser(w, r, requestID)
	if !ok {
		return
	}

	medicationID, ok := pathUUID(w, r, requestID, "medication_id")
	if !ok {
		return
	}

	var req SetStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[%s] Failed to decode request: %v", requestID, err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	med, err := h.medicationService.SetStock(r.Context(), medicationID, userID, req.Quantity)
	if err != nil {
		writeMedicationError(w, requestID, userID, medicationID, err)
		return
	}

	logStructured(requestID, userID.String(), role, "PUT", "/medications/"+medicationID.String()+"/stock", http.StatusOK, time.Since(startTime))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(med); err != nil {
		log.Printf("[%s] Failed to encode response: %v", requestID, err)
	}
}

// AdjustStock handles POST /medications/{medication_id}/stock/adjustments (PATIENT only)
func (h *MedicationHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := generateRequestID()

	userID, role, ok := authedUser(w, r, requestID)
	if !ok {
		return
	}

	medicationID, ok := pathUUID(w, r, requestID, "medication_id")
	if !ok {
		return
	}

	var req StockAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[%s] Failed to decode request: %v", requestID, err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	med, err := h.medicationService.AdjustStock(r.Context(), medicationID, userID, req.Quantity, req.Direction)
	if err != nil {
		writeMedicationError(w, requestID, userID, medicationID, err)
		return
	}

	logStructured(requestID, userID.String(), role, "POST", "/medications/"+medicationID.String()+"/stock/adjustments", http.StatusOK, time.Since(startTime))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(med); err != nil {
		log.Printf("[%s] Failed to encode response: %v", requestID, err)
	}
}

// LowStock handles GET /medications/low-stock
func (h *MedicationHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := generateRequestID()

	userID, role, ok := authedUser(w, r, requestID)
	if !ok {
		return
	}

	meds, err := h.medicationService.LowStockMedications(r.Context(), userID)
	if err != nil {
		log.Printf("[%s] Failed to list low stock medications: user_id=%s, error=%v", requestID, userID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if meds == nil {
		meds = []*domain.Medication{}
	}

	logStructured(requestID, userID.String(), role, "GET", "/medications/low-stock", http.StatusOK, time.Since(startTime))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(meds); err != nil {
		log.Printf("[%s] Failed to encode response: %v", requestID, err)
	}
}

// authedUser extracts and parses the authenticated user from context
func authedUser(w http.ResponseWriter, r *http.Request, requestID string) (uuid.UUID, string, bool) {
	userIDStr, ok := middleware.GetUserID(r.Context())
	if !ok {
		log.Printf("[%s] Failed to get user ID from context", requestID)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return uuid.Nil, "", false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		log.Printf("[%s] Invalid user ID: %v", requestID, err)
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return uuid.Nil, "", false
	}

	role, _ := middleware.GetRole(r.Context())
	return userID, role, true
}

// pathUUID extracts a UUID path parameter
func pathUUID(w http.ResponseWriter, r *http.Request, requestID, name string) (uuid.UUID, bool) {
	idStr := r.PathValue(name)
	id, err := uuid.Parse(idStr)
	if err != nil {
		log.Printf("[%s] Invalid %s: %v", requestID, name, err)
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// writeMedicationError maps service errors to HTTP status codes
func writeMedicationError(w http.ResponseWriter, requestID string, userID, medicationID uuid.UUID, err error) {
	log.Printf("[%s] Medication operation failed: user_id=%s, medication_id=%s, error=%v", requestID, userID, medicationID, err)
	if errors.Is(err, domain.ErrMedicationNotFound) {
		http.Error(w, "medication not found", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}
