package routes

import (
	"transform-orchestrator/api/rest/handlers"
	"transform-orchestrator/core/events"

	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *mux.Router, transform *handlers.TransformHandler, history *handlers.HistoryHandler, hub *events.Hub) {
	api := r.PathPrefix("/v1").Subrouter()

	// Project discovery
	api.HandleFunc("/projects", transform.ListProjects).Methods("GET")

	// Transformation lifecycle, one endpoint per conversation event kind
	api.HandleFunc("/transformations", transform.StartTransformation).Methods("POST")
	api.HandleFunc("/transformations/{id}", transform.GetTransformation).Methods("GET")
	api.HandleFunc("/transformations/{id}/stop", transform.StopTransformation).Methods("POST")
	api.HandleFunc("/transformations/{id}/java-home", transform.ProvideJavaHome).Methods("POST")
	api.HandleFunc("/transformations/{id}/authorize", transform.AnswerAuthorization).Methods("POST")
	api.HandleFunc("/transformations/{id}/resume", transform.Resume).Methods("POST")

	// Dependency human-in-the-loop round
	api.HandleFunc("/transformations/{id}/hil/versions", transform.ListDependencyVersions).Methods("GET")
	api.HandleFunc("/transformations/{id}/hil/select", transform.SelectDependencyVersion).Methods("POST")
	api.HandleFunc("/transformations/{id}/hil/skip", transform.SkipDependencySelection).Methods("POST")

	// Persisted job history
	api.HandleFunc("/jobs", history.ListJobs).Methods("GET")
	api.HandleFunc("/jobs/{id}", history.GetJob).Methods("GET")
	api.HandleFunc("/jobs/{id}/events", history.GetJobEvents).Methods("GET")
	api.HandleFunc("/jobs/{id}/artifacts", history.GetJobArtifacts).Methods("GET")

	// Status event stream
	api.Handle("/events", hub).Methods("GET")
}
