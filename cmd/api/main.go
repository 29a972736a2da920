package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/medtrack/adherence-service/internal/adapters/handler"
	"github.com/medtrack/adherence-service/internal/adapters/middleware"
	"github.com/medtrack/adherence-service/internal/adapters/repository"
	"github.com/medtrack/adherence-service/internal/config"
	"github.com/medtrack/adherence-service/internal/core/services"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Connect to database with retry logic
	db, err := config.ConnectDatabase(cfg.DatabaseURL, 5, 2*time.Second)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Create schema on startup (POC-friendly)
	if err := config.InitDatabase(db); err != nil {
		log.Fatalf("Failed to initialize database schema: %v", err)
	}

	// Initialize RabbitMQ publisher for caregiver alert events
	alertPublisher, err := repository.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.AlertsQueueName)
	if err != nil {
		log.Fatalf("Failed to initialize RabbitMQ publisher: %v", err)
	}
	defer alertPublisher.Close()

	// Initialize repositories
	sqlRepo := repository.NewSQLRepository(db)

	// Initialize services
	sessions := services.NewSessionManager(sqlRepo, sqlRepo)
	medicationService := services.NewMedicationService(sqlRepo, sessions)
	doseService := services.NewDoseService(sqlRepo, sqlRepo, sessions, alertPublisher)

	// Initialize RabbitMQ consumer for medication sync
	// This consumer runs in the same pod as the adherence-service and
	// applies medication upserts pushed by the companion sync service
	syncConsumer, err := repository.NewMedicationSyncConsumer(cfg.RabbitMQURL, cfg.SyncQueueName, medicationService)
	if err != nil {
		log.Fatalf("Failed to initialize RabbitMQ sync consumer: %v", err)
	}
	defer syncConsumer.Close()

	// Start sync consumer in background goroutine (non-blocking)
	// The consumer will process messages asynchronously while the HTTP server runs
	// Note: In multi-replica deployments, each replica will have its own consumer,
	// and RabbitMQ will distribute messages across replicas using round-robin
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()
	go func() {
		if err := syncConsumer.StartConsuming(consumerCtx); err != nil {
			log.Printf("Medication sync consumer error: %v", err)
		}
	}()
	log.Println("Medication sync consumer started in background, listening for medication upserts")

	// Schedule the missed dose sweep
	sweeper := cron.New()
	_, err = sweeper.AddFunc(cfg.SweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
		defer cancel()
		published, err := doseService.RunMissedDoseSweep(ctx, time.Now())
		if err != nil {
			log.Printf("Missed dose sweep failed: %v", err)
			return
		}
		if published > 0 {
			log.Printf("Missed dose sweep published %d alert(s)", published)
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule missed dose sweep: %v", err)
	}
	sweeper.Start()
	log.Printf("Missed dose sweep scheduled (%s)", cfg.SweepSchedule)

	// Initialize handlers
	medicationHandler := handler.NewMedicationHandler(medicationService)
	doseHandler := handler.NewDoseHandler(doseService)
	reportHandler := handler.NewReportHandler(doseService)
	alertHandler := handler.NewAlertHandler(doseService)
	healthHandler := handler.NewHealthHandler(db)

	// Initialize JWT middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTPublicKey)

	// Setup HTTP router
	mux := http.NewServeMux()

	// Health endpoints (OpenShift compatible, no auth required)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /health/ready", healthHandler.Ready)
	mux.HandleFunc("GET /health/live", healthHandler.Live)

	// Medication definition and inventory - PATIENT manages their own
	mux.HandleFunc("POST /medications", authMiddleware.RequireRole(middleware.RolePatient, medicationHandler.CreateMedication))
	mux.HandleFunc("GET /medications", authMiddleware.RequireAuth(medicationHandler.ListMedications))
	mux.HandleFunc("GET /medications/low-stock", authMiddleware.RequireAuth(medicationHandler.LowStock))
	mux.HandleFunc("GET /medications/{medication_id}", authMiddleware.RequireAuth(medicationHandler.GetMedication))
	mux.HandleFunc("PUT /medications/{medication_id}", authMiddleware.RequireRole(middleware.RolePatient, medicationHandler.UpdateMedication))
	mux.HandleFunc("DELETE /medications/{medication_id}", authMiddleware.RequireRole(middleware.RolePatient, medicationHandler.DeactivateMedication))
	mux.HandleFunc("PUT /medications/{medication_id}/stock", authMiddleware.RequireRole(middleware.RolePatient, medicationHandler.SetStock))
	mux.HandleFunc("POST /medications/{medication_id}/stock/adjustments", authMiddleware.RequireRole(middleware.RolePatient, medicationHandler.AdjustStock))

	// Day view and dose recording
	mux.HandleFunc("GET /doses", authMiddleware.RequireAuth(doseHandler.DosesForDate))
	mux.HandleFunc("POST /doses", authMiddleware.RequireRole(middleware.RolePatient, doseHandler.RecordDose))

	// Adherence reporting
	mux.HandleFunc("GET /reports/day", authMiddleware.RequireAuth(reportHandler.DaySummary))
	mux.HandleFunc("GET /reports/weekly", authMiddleware.RequireAuth(reportHandler.WeeklySeries))
	mux.HandleFunc("GET /reports/adherence", authMiddleware.RequireAuth(reportHandler.Adherence))

	// Direct alerts
	mux.HandleFunc("POST /alerts/panic", authMiddleware.RequireRole(middleware.RolePatient, alertHandler.Panic))

	// Wrap mux with metrics middleware to track all HTTP requests
	loggedRouter := middleware.MetricsMiddleware(mux)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      loggedRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting Adherence Service on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Stop the sweep scheduler and wait for a running sweep to finish
	sweepCtx := sweeper.Stop()
	<-sweepCtx.Done()
	log.Println("Missed dose sweep scheduler stopped")

	// Cancel consumer context to stop processing new messages
	consumerCancel()
	log.Println("Medication sync consumer stopped")

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
