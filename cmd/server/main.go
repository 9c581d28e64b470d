package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"transform-orchestrator/api/rest/handlers"
	"transform-orchestrator/api/rest/routes"
	"transform-orchestrator/config"
	"transform-orchestrator/core/buildtool"
	"transform-orchestrator/core/client"
	"transform-orchestrator/core/events"
	"transform-orchestrator/core/models"
	"transform-orchestrator/core/orchestrator"
	"transform-orchestrator/core/repository"
	"transform-orchestrator/core/validator"
	"transform-orchestrator/storage"

	"github.com/gorilla/mux"
)

func main() {
	cfg := config.Load()

	// Job history persistence is optional; the recorder is nil-safe
	var recorder *repository.Recorder
	var jobRepo *repository.JobRepository
	var eventRepo *repository.EventRepository
	var artifactRepo *repository.ArtifactRepository
	if cfg.DatabaseURL != "" {
		db, err := repository.NewDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		recorder = repository.NewRecorder(db)
		jobRepo = repository.NewJobRepository(db)
		eventRepo = repository.NewEventRepository(db)
		artifactRepo = repository.NewArtifactRepository(db)
		log.Println("Database connected successfully")
	}

	// Status event hub for UI observers
	hub := events.NewHub()

	// Backend transformation service client
	backend := client.New(cfg.BackendEndpoint, cfg.BackendToken, cfg.KMSKeyARN)

	// Project validation with the bytecode JDK probe
	projectValidator := validator.New(&validator.BytecodeProbe{})

	scratch := storage.NewScratchManager(cfg.ScratchRoot)

	opts := orchestrator.Options{
		PollInterval:    cfg.PollInterval,
		PollBudget:      cfg.PollBudget,
		MaxPayloadBytes: cfg.MaxPayloadBytes,
		Interactive:     true,
	}

	sink := multiSink{hub, recorder}
	transformHandler := handlers.NewTransformHandler(projectValidator, backend, buildtool.ExecRunner{}, scratch, sink, opts).WithJobHistory(jobRepo, artifactRepo)
	historyHandler := handlers.NewHistoryHandler(jobRepo, eventRepo, artifactRepo)

	// Setup routes
	r := mux.NewRouter()
	routes.SetupRoutes(r, transformHandler, historyHandler, hub)

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Start server
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Starting server on port %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if err := server.Shutdown(context.Background()); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}

// multiSink fans a status event out to every configured observer
type multiSink struct {
	hub      *events.Hub
	recorder *repository.Recorder
}

func (m multiSink) Publish(event models.StatusEvent) {
	if m.hub != nil {
		m.hub.Publish(event)
	}
	m.recorder.Publish(event) // nil-safe
}

var _ orchestrator.EventSink = multiSink{}
