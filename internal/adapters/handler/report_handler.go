package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/medtrack/adherence-service/internal/core/domain"
	"github.com/medtrack/adherence-service/internal/core/ports"
)

// DefaultAdherenceWindowDays is the rolling window used when the
// caller does not specify one
const DefaultAdherenceWindowDays = 7

// ReportHandler handles HTTP requests for adherence reporting
type ReportHandler struct {
	doseService ports.DoseService
}

// NewReportHandler creates a new report handler
func NewReportHandler(doseService ports.DoseService) *ReportHandler {
	return &ReportHandler{
		doseService: doseService,
	}
}

// AdherenceResponse represents a rolling adherence rate
type AdherenceResponse struct {
	Days int `json:"days"`
	Rate int `json:"rate"`
}

// DaySummary handles GET /reports/day?date=YYYY-MM-DD
// Defaults to today when the date parameter is absent.
func (h *ReportHandler) DaySummary(w http.ResponseWriter, r *http.Request) {
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

	summary, err := h.doseService.DaySummary(r.Context(), userID, date)
	if err != nil {
		log.Printf("[%s] Failed to get day summary: user_id=%s, date=%s, error=%v", requestID, userID, date, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	logStructured(requestID, userID.String(), role, "GET", "/reports/day", http.StatusOK, time.Since(startTime))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		log.Printf("[%s] Failed to encode response: %v", requestID, err)
	}
}

// WeeklySeries handles GET /reports/weekly
// Returns seven per-day rate points ending today, oldest first.
func (h *ReportHandler) WeeklySeries(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := generateRequestID()

	userID, role, ok := authedUser(w, r, requestID)
	if !ok {
		return
	}

	points, err := h.doseService.WeeklySeries(r.Context(), userID)
	if err != nil {
		log.Printf("[%s] Failed to get weekly series: user_id=%s, error=%v", requestID, userID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	logStructured(requestID, userID.String(), role, "GET", "/reports/weekly", http.StatusOK, time.Since(startTime))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(points); err != nil {
		log.Printf("[%s] Failed to encode response: %v", requestID, err)
	}
}

// Adherence handles GET /reports/adherence?days=N
func (h *ReportHandler) Adherence(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := generateRequestID()

	userID, role, ok := authedUser(w, r, requestID)
	if !ok {
		return
	}

	days := DefaultAdherenceWindowDays
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		parsed, err := strconv.Atoi(daysStr)
		if err != nil || parsed <= 0 {
			log.Printf("[%s] Invalid days parameter: %s", requestID, daysStr)
			http.Error(w, "days must be a positive integer", http.StatusBadRequest)
			return
		}
		days = parsed
	}

	rate, err := h.doseService.RollingRate(r.Context(), userID, days)
	if err != nil {
		log.Printf("[%s] Failed to get adherence rate: user_id=%s, days=%d, error=%v", requestID, userID, days, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	logStructured(requestID, userID.String(), role, "GET", "/reports/adherence", http.StatusOK, time.Since(startTime))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(AdherenceResponse{Days: days, Rate: rate}); err != nil {
		log.Printf("[%s] Failed to encode response: %v", requestID, err)
	}
}
