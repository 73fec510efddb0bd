// handlers/admin_handler.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gewnthar/surveyetl/services"
)

// Handler serves the admin API over one pipeline. Tasks run one at a time.
type Handler struct {
	pipeline *services.Pipeline
	ping     func(ctx context.Context) error
	running  sync.Mutex
}

// NewHandler returns a Handler. ping checks the output target and may be nil.
func NewHandler(pipeline *services.Pipeline, ping func(ctx context.Context) error) *Handler {
	return &Handler{pipeline: pipeline, ping: ping}
}

// Routes registers the admin API on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.HealthHandler)
	mux.HandleFunc("GET /api/loads", h.LoadsHandler)
	mux.HandleFunc("GET /api/surveys", h.SurveysHandler)
	mux.HandleFunc("GET /api/metadata", h.MetadataHandler)
	mux.HandleFunc("POST /api/admin/tasks/{task}", h.RunTaskHandler)
}

// Helper to respond with JSON
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshalling JSON response: %v", err)
		http.Error(w, `{"error":"Failed to marshal JSON response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Helper to respond with an error
func respondWithError(w http.ResponseWriter, code int, message string) {
	log.Printf("API Error %d: %s", code, message)
	respondWithJSON(w, code, map[string]string{"error": message})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			log.Printf("Health check failed: ping error: %v", err)
			respondWithJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": "output target unreachable"})
			return
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "survey pipeline is healthy"})
}

// LoadsHandler returns the load log.
func (h *Handler) LoadsHandler(w http.ResponseWriter, r *http.Request) {
	loads, err := h.pipeline.Loads(r.Context())
	if errors.Is(err, services.ErrNoLoadLog) {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to read load log: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, loads)
}

// RunTaskHandler runs a pipeline task and waits for it to finish.
// Expects POST requests to /api/admin/tasks/{task}.
func (h *Handler) RunTaskHandler(w http.ResponseWriter, r *http.Request) {
	task := r.PathValue("task")
	if !h.running.TryLock() {
		respondWithError(w, http.StatusConflict, "Another task is already running")
		return
	}
	defer h.running.Unlock()

	start := time.Now()
	err := h.pipeline.RunTask(r.Context(), task)
	if errors.Is(err, services.ErrUnknownTask) {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Task %s failed: %v", task, err))
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"message":  fmt.Sprintf("Task %s completed successfully.", task),
		"duration": time.Since(start).Round(time.Millisecond).String(),
	})
}
